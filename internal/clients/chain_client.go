package clients

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrMintNotFound is returned when on-chain metadata for a mint cannot
	// be resolved.
	ErrMintNotFound = errors.New("mint not found")
	// ErrBlockhashExpired is returned when the chain moves past a
	// transaction's blockhash validity window before it confirms.
	ErrBlockhashExpired = errors.New("blockhash expired")
)

const broadcastMaxRetries = 3

// BlockhashContext pins a transaction to the blockhash it was built
// against; confirmation polling stops once the chain moves past
// LastValidHeight.
type BlockhashContext struct {
	Blockhash       solana.Hash
	LastValidHeight uint64
}

// ChainClient wraps the Solana JSON-RPC node.
type ChainClient struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

// NewChainClient connects to the RPC node at endpoint. commitment is one of
// processed, confirmed, finalized.
func NewChainClient(endpoint, commitment string, logger *zap.Logger) *ChainClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := rpc.CommitmentType(commitment)
	if c == "" {
		c = rpc.CommitmentConfirmed
	}
	return &ChainClient{
		rpc:        rpc.New(endpoint),
		commitment: c,
		logger:     logger,
	}
}

// LatestBlockhash returns the current blockhash and its validity window.
func (c *ChainClient) LatestBlockhash(ctx context.Context) (BlockhashContext, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return BlockhashContext{}, errors.Wrap(err, "getLatestBlockhash")
	}
	return BlockhashContext{
		Blockhash:       out.Value.Blockhash,
		LastValidHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// SendRawTransaction submits signed transaction bytes. The RPC layer
// retransmits up to broadcastMaxRetries times; a stale quote or expired
// blockhash surfaces here as a send error.
func (c *ChainClient) SendRawTransaction(ctx context.Context, signed []byte) (solana.Signature, error) {
	maxRetries := uint(broadcastMaxRetries)
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		SkipPreflight:       false,
		MaxRetries:          &maxRetries,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "sendRawTransaction")
	}
	return sig, nil
}

// SignatureStatus reports whether the signature reached the client's
// commitment level. The second return value carries an execution error
// reported by the network, if any.
func (c *ChainClient) SignatureStatus(ctx context.Context, sig solana.Signature) (confirmed bool, execErr error, err error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return false, nil, errors.Wrap(err, "getSignatureStatuses")
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return false, errors.Errorf("transaction failed on chain: %v", status.Err), nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil, nil
	}
	return false, nil, nil
}

// BlockHeight returns the current block height at the client's commitment.
func (c *ChainClient) BlockHeight(ctx context.Context) (uint64, error) {
	height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
	if err != nil {
		return 0, errors.Wrap(err, "getBlockHeight")
	}
	return height, nil
}

// Balance returns the native balance of the address in base units.
func (c *ChainClient) Balance(ctx context.Context, address string) (uint64, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %s", address)
	}
	out, err := c.rpc.GetBalance(ctx, pub, c.commitment)
	if err != nil {
		return 0, errors.Wrap(err, "getBalance")
	}
	return out.Value, nil
}

// TokenBalance returns the owner's balance of mint, read from the
// associated token account. A missing account reads as zero.
func (c *ChainClient) TokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	ownerPub, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid owner %s", owner)
	}
	mintPub, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid mint %s", mint)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerPub, mintPub)
	if err != nil {
		return 0, errors.Wrap(err, "derive associated token address")
	}
	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.commitment)
	if err != nil {
		if isAccountNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "getTokenAccountBalance")
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse token balance")
	}
	return amount, nil
}

// MintDecimals resolves the decimal precision of a mint from its on-chain
// supply metadata.
func (c *ChainClient) MintDecimals(ctx context.Context, mint string) (uint8, error) {
	mintPub, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, errors.Wrapf(ErrMintNotFound, "invalid mint %s", mint)
	}
	out, err := c.rpc.GetTokenSupply(ctx, mintPub, c.commitment)
	if err != nil {
		if isAccountNotFound(err) {
			return 0, errors.Wrapf(ErrMintNotFound, "mint %s", mint)
		}
		return 0, errors.Wrap(err, "getTokenSupply")
	}
	return out.Value.Decimals, nil
}

// WaitForConfirmation polls the signature status until confirmation, an
// execution error, or the blockhash validity window closing.
func (c *ChainClient) WaitForConfirmation(ctx context.Context, sig solana.Signature, bh BlockhashContext, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			confirmed, execErr, err := c.SignatureStatus(ctx, sig)
			if err != nil {
				c.logger.Warn("signature status poll failed", zap.Error(err), zap.String("signature", sig.String()))
				continue
			}
			if execErr != nil {
				return execErr
			}
			if confirmed {
				return nil
			}

			height, err := c.BlockHeight(ctx)
			if err != nil {
				c.logger.Warn("block height poll failed", zap.Error(err))
				continue
			}
			if bh.LastValidHeight > 0 && height > bh.LastValidHeight {
				return errors.Wrapf(ErrBlockhashExpired, "at height %d", height)
			}
		}
	}
}

func isAccountNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "invalid param") ||
		strings.Contains(msg, "not found")
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
