// Package quote acquires executable swap routes from the aggregator.
package quote

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/internal/domain"
	"go.uber.org/zap"
)

// ErrInvalidAmount is returned when a quote is requested for a zero amount.
var ErrInvalidAmount = errors.New("quote amount must be positive")

type aggregator interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps, feeBps uint16) (*domain.Quote, error)
}

// Service fetches quotes. Quotes are never cached: price is time-sensitive
// and callers must re-quote if more than a few seconds elapse before use.
type Service struct {
	aggregator     aggregator
	platformFeeBps uint16
	logger         *zap.Logger
}

// New creates a quote service charging platformFeeBps on every route.
func New(aggregator aggregator, platformFeeBps uint16, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		aggregator:     aggregator,
		platformFeeBps: platformFeeBps,
		logger:         logger,
	}
}

// GetQuote validates the request and asks the aggregator for a route.
func (s *Service) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint16) (*domain.Quote, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	q, err := s.aggregator.Quote(ctx, inputMint, outputMint, amount, slippageBps, s.platformFeeBps)
	if err != nil {
		return nil, errors.Wrapf(err, "quote %s -> %s", inputMint, outputMint)
	}

	s.logger.Debug("quote acquired",
		zap.String("input_mint", inputMint),
		zap.String("output_mint", outputMint),
		zap.Uint64("in_amount", q.InAmount),
		zap.Uint64("out_amount", q.OutAmount),
		zap.Int("hops", len(q.Hops)),
		zap.String("price_impact_pct", q.PriceImpactPct.String()))

	return q, nil
}
