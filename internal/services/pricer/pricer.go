// Package pricer provides spot prices of mints in native-asset terms.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"
)

// Pricer returns the spot price of a mint denominated in the native asset.
type Pricer interface {
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, error)
}
