// Package broadcaster submits signed transactions and awaits finality.
package broadcaster

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/internal/clients"
	"go.uber.org/zap"
)

var (
	// ErrBroadcastFailed means the network rejected the transaction or
	// reported an execution error. Terminal: the trade is never silently
	// retried, since a stale quote could execute at a materially
	// different price.
	ErrBroadcastFailed = errors.New("broadcast failed")
	// ErrConfirmationTimeout means the transaction was sent but did not
	// confirm within the blockhash validity window. The signature is
	// surfaced so the user can verify independently.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
)

const defaultPollInterval = 2 * time.Second

type chain interface {
	SendRawTransaction(ctx context.Context, signed []byte) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, bh clients.BlockhashContext, pollInterval time.Duration) error
}

// Broadcaster submits signed transactions through the chain client, which
// bounds retransmissions at the RPC layer.
type Broadcaster struct {
	chain          chain
	pollInterval   time.Duration
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// New creates a Broadcaster. confirmTimeout caps the confirmation wait in
// addition to the blockhash validity window.
func New(chain chain, confirmTimeout time.Duration, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	return &Broadcaster{
		chain:          chain,
		pollInterval:   defaultPollInterval,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}
}

// Submit broadcasts the signed transaction and returns its signature.
func (b *Broadcaster) Submit(ctx context.Context, signed []byte) (solana.Signature, error) {
	sig, err := b.chain.SendRawTransaction(ctx, signed)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrBroadcastFailed, err.Error())
	}
	b.logger.Info("transaction broadcast", zap.String("signature", sig.String()))
	return sig, nil
}

// AwaitConfirmation polls for finality. Exceeding the blockhash validity
// window or the confirmation timeout yields ErrConfirmationTimeout; an
// execution error reported by the network yields ErrBroadcastFailed.
func (b *Broadcaster) AwaitConfirmation(ctx context.Context, sig solana.Signature, bh clients.BlockhashContext) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.confirmTimeout)
	defer cancel()

	err := b.chain.WaitForConfirmation(waitCtx, sig, bh, b.pollInterval)
	if err == nil {
		b.logger.Info("transaction confirmed", zap.String("signature", sig.String()))
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, clients.ErrBlockhashExpired) {
		return errors.Wrapf(ErrConfirmationTimeout, "signature %s", sig.String())
	}
	return errors.Wrapf(ErrBroadcastFailed, "signature %s: %s", sig.String(), err.Error())
}
