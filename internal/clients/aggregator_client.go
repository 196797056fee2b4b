// Package clients contains the outbound network clients: the quote/route
// aggregator, the chain RPC node and the custodial signing service.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/domain"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// ErrNoRoute is returned when the aggregator cannot find an executable
// route for the requested pair and amount.
var ErrNoRoute = errors.New("no route for requested pair")

// AggregatorClient talks to a Jupiter-style quote/route aggregator.
type AggregatorClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewAggregatorClient creates a client for the aggregator API at baseURL.
func NewAggregatorClient(baseURL string) *AggregatorClient {
	return &AggregatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// quoteResponse mirrors the aggregator's quote payload. Amount fields come
// back as strings.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    uint16 `json:"slippageBps"`
	PlatformFee    *struct {
		Amount string `json:"amount"`
		FeeBps uint16 `json:"feeBps"`
	} `json:"platformFee"`
	RoutePlan []struct {
		SwapInfo struct {
			AmmKey    string `json:"ammKey"`
			Label     string `json:"label"`
			FeeAmount string `json:"feeAmount"`
			FeeMint   string `json:"feeMint"`
		} `json:"swapInfo"`
		Percent uint8 `json:"percent"`
	} `json:"routePlan"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type swapRequest struct {
	QuoteResponse   json.RawMessage `json:"quoteResponse"`
	UserPublicKey   string          `json:"userPublicKey"`
	FeeAccount      string          `json:"feeAccount,omitempty"`
	WrapUnwrapSOL   bool            `json:"wrapAndUnwrapSol"`
	AsLegacyTx      bool            `json:"asLegacyTransaction,omitempty"`
	DynamicSlippage bool            `json:"dynamicSlippage,omitempty"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	Error                string `json:"error,omitempty"`
}

type priceResponse struct {
	Data map[string]struct {
		Price decimal.Decimal `json:"price"`
	} `json:"data"`
}

type referralClaimRequest struct {
	FeeAccount string `json:"feeAccount"`
	Mint       string `json:"mint,omitempty"`
}

type referralClaimResponse struct {
	Transactions []string `json:"transactions"`
	Error        string   `json:"error,omitempty"`
}

// Quote fetches an executable route for the pair. feeBps is the platform
// fee the aggregator should reserve along the route.
func (c *AggregatorClient) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps, feeBps uint16) (*domain.Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.FormatUint(uint64(slippageBps), 10))
	if feeBps > 0 {
		params.Set("platformFeeBps", strconv.FormatUint(uint64(feeBps), 10))
	}

	raw, err := c.get(ctx, "/quote?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode quote response")
	}
	if resp.Error != "" {
		if isNoRoute(resp.ErrorCode, resp.Error) {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("aggregator quote error: %s", resp.Error)
	}
	if len(resp.RoutePlan) == 0 {
		return nil, ErrNoRoute
	}

	return mapQuote(&resp, raw)
}

// SwapTransaction asks the aggregator to build the unsigned swap transaction
// embedding the referral fee account. Returns the serialized transaction
// bytes and the blockhash validity height reported by the aggregator.
func (c *AggregatorClient) SwapTransaction(ctx context.Context, quote *domain.Quote, userPublicKey, feeAccount string) ([]byte, uint64, error) {
	if len(quote.Raw) == 0 {
		return nil, 0, errors.New("quote is missing the raw aggregator payload")
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse: quote.Raw,
		UserPublicKey: userPublicKey,
		FeeAccount:    feeAccount,
		WrapUnwrapSOL: true,
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "marshal swap request")
	}

	raw, err := c.post(ctx, "/swap", body)
	if err != nil {
		return nil, 0, err
	}

	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, errors.Wrap(err, "decode swap response")
	}
	if resp.Error != "" {
		return nil, 0, fmt.Errorf("aggregator swap error: %s", resp.Error)
	}
	txBytes, err := decodeBase64(resp.SwapTransaction)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decode swap transaction")
	}

	return txBytes, resp.LastValidBlockHeight, nil
}

// Prices returns spot prices of the given mints denominated in vsMint.
// Mints unknown to the aggregator are absent from the result.
func (c *AggregatorClient) Prices(ctx context.Context, mints []string, vsMint string) (map[string]decimal.Decimal, error) {
	if len(mints) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	params := url.Values{}
	params.Set("ids", strings.Join(mints, ","))
	params.Set("vsToken", vsMint)

	raw, err := c.get(ctx, "/price?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp priceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode price response")
	}

	prices := make(map[string]decimal.Decimal, len(resp.Data))
	for mint, entry := range resp.Data {
		prices[mint] = entry.Price
	}
	return prices, nil
}

// ReferralClaimTransactions returns unsigned transactions that move the
// accumulated protocol fees from the referral fee account into its owner.
func (c *AggregatorClient) ReferralClaimTransactions(ctx context.Context, feeAccount string) ([][]byte, error) {
	body, err := json.Marshal(referralClaimRequest{FeeAccount: feeAccount})
	if err != nil {
		return nil, errors.Wrap(err, "marshal referral claim request")
	}

	raw, err := c.post(ctx, "/referral/claim", body)
	if err != nil {
		return nil, err
	}

	var resp referralClaimResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode referral claim response")
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("aggregator referral claim error: %s", resp.Error)
	}

	txs := make([][]byte, 0, len(resp.Transactions))
	for _, encoded := range resp.Transactions {
		txBytes, err := decodeBase64(encoded)
		if err != nil {
			return nil, errors.Wrap(err, "decode referral claim transaction")
		}
		txs = append(txs, txBytes)
	}
	return txs, nil
}

func mapQuote(resp *quoteResponse, raw json.RawMessage) (*domain.Quote, error) {
	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse quote inAmount")
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse quote outAmount")
	}
	priceImpact := decimal.Zero
	if resp.PriceImpactPct != "" {
		priceImpact, err = decimal.NewFromString(resp.PriceImpactPct)
		if err != nil {
			return nil, errors.Wrap(err, "parse quote priceImpactPct")
		}
	}

	quote := &domain.Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		SlippageBps:    resp.SlippageBps,
		PriceImpactPct: priceImpact,
		Raw:            raw,
	}
	if resp.PlatformFee != nil {
		quote.PlatformFee, err = strconv.ParseUint(resp.PlatformFee.Amount, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse quote platform fee")
		}
		quote.PlatformFeeBps = resp.PlatformFee.FeeBps
	}
	for _, hop := range resp.RoutePlan {
		feeAmount, err := strconv.ParseUint(hop.SwapInfo.FeeAmount, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse route hop fee")
		}
		quote.Hops = append(quote.Hops, domain.RouteHop{
			Pool:      hop.SwapInfo.AmmKey,
			FeeMint:   hop.SwapInfo.FeeMint,
			FeeAmount: feeAmount,
		})
	}
	return quote, nil
}

func isNoRoute(code, message string) bool {
	if strings.EqualFold(code, "COULD_NOT_FIND_ANY_ROUTE") {
		return true
	}
	return strings.Contains(strings.ToLower(message), "route")
}

func (c *AggregatorClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *AggregatorClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *AggregatorClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		raw, retryable, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, errors.Wrapf(lastErr, "aggregator request failed after %d attempts", c.maxRetries)
}

func (c *AggregatorClient) doOnce(ctx context.Context, method, path string, body []byte) (raw []byte, retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, false, errors.Wrap(err, "build aggregator request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, errors.Wrap(err, "aggregator request")
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.Wrap(err, "read aggregator response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, false, nil
	case resp.StatusCode == http.StatusBadRequest:
		// 400 carries an error payload the caller can interpret (no route
		// and similar). Not retryable.
		return raw, false, nil
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("aggregator returned status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("aggregator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}
