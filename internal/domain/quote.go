package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RouteHop is one leg of a multi-step swap route through an intermediate
// liquidity pool.
type RouteHop struct {
	// Pool identifies the AMM the hop trades through.
	Pool string `json:"pool"`
	// FeeMint is the mint the hop's fee is denominated in.
	FeeMint string `json:"fee_mint"`
	// FeeAmount is the hop fee in base units of FeeMint.
	FeeAmount uint64 `json:"fee_amount"`
}

// Quote is an executable route returned by the aggregator. Immutable once
// returned; a stale quote is only discovered as a broadcast-time failure.
type Quote struct {
	InputMint      string          `json:"input_mint"`
	OutputMint     string          `json:"output_mint"`
	InAmount       uint64          `json:"in_amount"`
	OutAmount      uint64          `json:"out_amount"`
	Hops           []RouteHop      `json:"hops"`
	SlippageBps    uint16          `json:"slippage_bps"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
	// PlatformFee is the fee amount the aggregator reports for the route,
	// denominated in the output mint.
	PlatformFee    uint64 `json:"platform_fee"`
	PlatformFeeBps uint16 `json:"platform_fee_bps"`

	// Raw is the untouched aggregator quote payload. The swap-build endpoint
	// requires the original quote to be echoed back verbatim.
	Raw json.RawMessage `json:"-"`
}

// MinimumReceived returns the slippage-adjusted floor of the output amount.
func (q *Quote) MinimumReceived() uint64 {
	out := decimal.NewFromUint64(q.OutAmount)
	factor := decimal.NewFromInt(10_000 - int64(q.SlippageBps)).Div(decimal.NewFromInt(10_000))
	return uint64(out.Mul(factor).IntPart())
}

// FeeMints returns the distinct fee mints across all route hops.
func (q *Quote) FeeMints() []string {
	seen := make(map[string]struct{}, len(q.Hops))
	mints := make([]string, 0, len(q.Hops))
	for _, hop := range q.Hops {
		if _, ok := seen[hop.FeeMint]; ok {
			continue
		}
		seen[hop.FeeMint] = struct{}{}
		mints = append(mints, hop.FeeMint)
	}
	return mints
}
