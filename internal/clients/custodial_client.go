package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/pkg/retrier"
)

// CustodialClient talks to the custodial wallet service that holds keys on
// behalf of users. Signing through it is only ever invoked after the user
// confirmed the pending approval.
type CustodialClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retrier    *retrier.Retrier
}

// NewCustodialClient creates a client for the custodial signing API.
func NewCustodialClient(baseURL, apiKey string) *CustodialClient {
	return &CustodialClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retrier: retrier.New(
			retrier.WithInitialInterval(500*time.Millisecond),
			retrier.WithMaxRetries(2),
		),
	}
}

type custodialSignRequest struct {
	WalletID    string `json:"walletId"`
	Transaction string `json:"transaction"`
}

type custodialSignResponse struct {
	SignedTransaction string `json:"signedTransaction"`
	Error             string `json:"error,omitempty"`
}

// Sign submits the unsigned transaction for the custodial wallet to sign
// and returns the fully signed bytes. Transport failures are retried; a
// rejection by the service is terminal.
func (c *CustodialClient) Sign(ctx context.Context, walletID string, unsigned []byte) ([]byte, error) {
	body, err := json.Marshal(custodialSignRequest{
		WalletID:    walletID,
		Transaction: base64.StdEncoding.EncodeToString(unsigned),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal custodial sign request")
	}

	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return c.signOnce(ctx, body)
	})
}

func (c *CustodialClient) signOnce(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build custodial sign request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "custodial sign request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read custodial sign response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custodial service returned status %d", resp.StatusCode)
	}

	var signResp custodialSignResponse
	if err := json.Unmarshal(raw, &signResp); err != nil {
		return nil, errors.Wrap(err, "decode custodial sign response")
	}
	if signResp.Error != "" {
		return nil, fmt.Errorf("custodial sign error: %s", signResp.Error)
	}

	signed, err := base64.StdEncoding.DecodeString(signResp.SignedTransaction)
	if err != nil {
		return nil, errors.Wrap(err, "decode signed transaction")
	}
	return signed, nil
}
