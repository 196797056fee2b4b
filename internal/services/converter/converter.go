// Package converter translates between user-facing decimal amounts and
// on-chain base units.
package converter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/domain"
)

// mintInfoer resolves on-chain decimal precision for a mint.
type mintInfoer interface {
	MintDecimals(ctx context.Context, mint string) (uint8, error)
}

// Converter converts amounts using on-chain mint metadata. Conversions
// themselves are pure; only decimal-precision lookup touches the network.
type Converter struct {
	chain mintInfoer
}

// New creates a Converter backed by the given chain client.
func New(chain mintInfoer) *Converter {
	return &Converter{chain: chain}
}

// ToBaseUnits converts a UI decimal amount into base units, rounding
// half-to-nearest at the mint's precision. Negative input is rejected.
func (c *Converter) ToBaseUnits(ui decimal.Decimal, decimals uint8) (uint64, error) {
	if ui.IsNegative() {
		return 0, errors.Errorf("amount must not be negative, got %s", ui.String())
	}
	scaled := ui.Shift(int32(decimals)).Round(0)
	big := scaled.BigInt()
	if !big.IsUint64() {
		return 0, errors.Errorf("amount %s overflows base units at %d decimals", ui.String(), decimals)
	}
	return big.Uint64(), nil
}

// FromBaseUnits converts base units back into a UI decimal amount.
func (c *Converter) FromBaseUnits(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-int32(decimals))
}

// DecimalsFor returns the decimal precision of a mint. The native asset has
// a fixed system-wide precision; any other mint is resolved from its
// on-chain metadata.
func (c *Converter) DecimalsFor(ctx context.Context, mint string) (uint8, error) {
	if domain.IsNativeMint(mint) {
		return domain.NativeDecimals, nil
	}
	decimals, err := c.chain.MintDecimals(ctx, mint)
	if err != nil {
		return 0, errors.Wrapf(err, "resolve decimals for mint %s", mint)
	}
	return decimals, nil
}

// TokenAmount builds a TokenAmount for the mint, resolving its precision.
func (c *Converter) TokenAmount(ctx context.Context, mint string, amount uint64) (domain.TokenAmount, error) {
	decimals, err := c.DecimalsFor(ctx, mint)
	if err != nil {
		return domain.TokenAmount{}, err
	}
	return domain.TokenAmount{Mint: mint, Amount: amount, Decimals: decimals}, nil
}
