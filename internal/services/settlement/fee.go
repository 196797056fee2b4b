// Package settlement computes platform fees, estimates network costs and
// disburses creator rewards from the platform vault.
package settlement

import (
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/domain"
)

const bpsDenominator = 10_000

// ComputeFee returns the platform fee owed on a completed trade and the
// mint it is denominated in.
//
// Buys charge a flat percentage of the input amount. Sells read the fee the
// aggregator reports for the route, since multi-hop sell routes may apply
// the fee at a different stage than a flat percentage of input.
func ComputeFee(direction domain.Direction, quote *domain.Quote) (mint string, amount uint64) {
	switch direction {
	case domain.DirectionBuy:
		fee := decimal.NewFromUint64(quote.InAmount).
			Mul(decimal.NewFromInt(int64(quote.PlatformFeeBps))).
			Div(decimal.NewFromInt(bpsDenominator))
		return quote.InputMint, uint64(fee.IntPart())
	default:
		return quote.OutputMint, quote.PlatformFee
	}
}

// CreatorShare returns the portion of the platform fee credited to the
// creator who attached the token to the post.
func CreatorShare(feeAmount uint64, shareBps uint16) uint64 {
	share := decimal.NewFromUint64(feeAmount).
		Mul(decimal.NewFromInt(int64(shareBps))).
		Div(decimal.NewFromInt(bpsDenominator))
	return uint64(share.IntPart())
}
