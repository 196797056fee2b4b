package settlement

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/domain"
	"github.com/tokenpost/tradecore/internal/services/pricer"
	"golang.org/x/sync/errgroup"
)

// baseSignatureFeeLamports is the flat network fee per transaction
// signature.
const baseSignatureFeeLamports = 5_000

type decimalsResolver interface {
	DecimalsFor(ctx context.Context, mint string) (uint8, error)
}

// FeeEstimator converts per-hop route fees into the native asset for
// display in the trade summary.
type FeeEstimator struct {
	pricer    pricer.Pricer
	converter decimalsResolver
}

// NewFeeEstimator creates a FeeEstimator.
func NewFeeEstimator(p pricer.Pricer, converter decimalsResolver) *FeeEstimator {
	return &FeeEstimator{pricer: p, converter: converter}
}

// EstimateNetworkFee sums the base signature fee and every route hop's fee
// converted into the native asset. Spot prices and decimal precision for
// every distinct fee mint are fetched concurrently; hops already
// denominated in the native asset skip conversion.
func (e *FeeEstimator) EstimateNetworkFee(ctx context.Context, quote *domain.Quote) (decimal.Decimal, []domain.HopFee, error) {
	type mintInfo struct {
		price    decimal.Decimal
		decimals uint8
	}

	var mu sync.Mutex
	infos := make(map[string]mintInfo)

	g, gctx := errgroup.WithContext(ctx)
	for _, mint := range quote.FeeMints() {
		if domain.IsNativeMint(mint) {
			continue
		}
		g.Go(func() error {
			price, err := e.pricer.GetPrice(gctx, mint)
			if err != nil {
				return errors.Wrapf(err, "price for fee mint %s", mint)
			}
			decimals, err := e.converter.DecimalsFor(gctx, mint)
			if err != nil {
				return err
			}
			mu.Lock()
			infos[mint] = mintInfo{price: price, decimals: decimals}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Decimal{}, nil, err
	}

	total := decimal.NewFromInt(baseSignatureFeeLamports).Shift(-int32(domain.NativeDecimals))
	hopFees := make([]domain.HopFee, 0, len(quote.Hops))
	for _, hop := range quote.Hops {
		var nativeValue decimal.Decimal
		if domain.IsNativeMint(hop.FeeMint) {
			nativeValue = decimal.NewFromUint64(hop.FeeAmount).Shift(-int32(domain.NativeDecimals))
		} else {
			info := infos[hop.FeeMint]
			feeUI := decimal.NewFromUint64(hop.FeeAmount).Shift(-int32(info.decimals))
			nativeValue = feeUI.Mul(info.price)
		}
		total = total.Add(nativeValue)
		hopFees = append(hopFees, domain.HopFee{
			Pool:          hop.Pool,
			FeeMint:       hop.FeeMint,
			FeeAmount:     hop.FeeAmount,
			NativeUIValue: nativeValue,
		})
	}

	return total, hopFees, nil
}
