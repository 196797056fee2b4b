// Package txbuilder turns a quote into an unsigned, network-ready
// transaction embedding the platform's referral fee account.
package txbuilder

import (
	"context"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/internal/clients"
	"github.com/tokenpost/tradecore/internal/domain"
)

type swapBuilder interface {
	SwapTransaction(ctx context.Context, quote *domain.Quote, userPublicKey, feeAccount string) ([]byte, uint64, error)
}

type blockhasher interface {
	LatestBlockhash(ctx context.Context) (clients.BlockhashContext, error)
}

// Builder constructs unsigned swap transactions via the aggregator.
type Builder struct {
	aggregator swapBuilder
	chain      blockhasher
	feeAccount string
}

// New creates a Builder. feeAccount is the on-chain account collecting the
// platform's share of each trade's fee.
func New(aggregator swapBuilder, chain blockhasher, feeAccount string) *Builder {
	return &Builder{
		aggregator: aggregator,
		chain:      chain,
		feeAccount: feeAccount,
	}
}

// Build asks the aggregator for the swap transaction and records the
// blockhash context it was built against.
func (b *Builder) Build(ctx context.Context, quote *domain.Quote, userPublicKey string) (*domain.UnsignedTransaction, error) {
	txBytes, lastValidHeight, err := b.aggregator.SwapTransaction(ctx, quote, userPublicKey, b.feeAccount)
	if err != nil {
		return nil, errors.Wrap(err, "build swap transaction")
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return nil, errors.Wrap(err, "decode swap transaction")
	}

	if lastValidHeight == 0 {
		bh, err := b.chain.LatestBlockhash(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fetch blockhash validity window")
		}
		lastValidHeight = bh.LastValidHeight
	}

	return &domain.UnsignedTransaction{
		Bytes:           txBytes,
		Blockhash:       tx.Message.RecentBlockhash,
		LastValidHeight: lastValidHeight,
	}, nil
}
