package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/domain"
)

type priceAPI interface {
	Prices(ctx context.Context, mints []string, vsMint string) (map[string]decimal.Decimal, error)
}

// AggregatorPricer resolves spot prices from the aggregator's price API.
type AggregatorPricer struct {
	client priceAPI
}

// NewAggregatorPricer creates a pricer backed by the aggregator.
func NewAggregatorPricer(client priceAPI) *AggregatorPricer {
	return &AggregatorPricer{client: client}
}

// GetPrice returns the mint's price in the native asset. The native asset
// itself always prices at 1.
func (p *AggregatorPricer) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	if domain.IsNativeMint(mint) {
		return decimal.NewFromInt(1), nil
	}

	prices, err := p.client.Prices(ctx, []string{mint}, domain.NativeMint)
	if err != nil {
		return decimal.Decimal{}, err
	}
	price, ok := prices[mint]
	if !ok {
		return decimal.Decimal{}, errors.Errorf("aggregator returned no price for %s", mint)
	}
	return price, nil
}
