package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalState is the lifecycle state of a pending approval slot.
type ApprovalState int

const (
	ApprovalStatePending ApprovalState = iota
	ApprovalStateConfirmed
	ApprovalStateCancelled
)

// String returns the string representation of the approval state.
func (s ApprovalState) String() string {
	switch s {
	case ApprovalStatePending:
		return "pending"
	case ApprovalStateConfirmed:
		return "confirmed"
	case ApprovalStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// HopFee is one route hop's fee expressed in the native asset for display.
type HopFee struct {
	Pool          string          `json:"pool"`
	FeeMint       string          `json:"fee_mint"`
	FeeAmount     uint64          `json:"fee_amount"`
	NativeUIValue decimal.Decimal `json:"native_ui_value"`
}

// TradeSummary is the human-readable breakdown shown to the user before a
// delegated signer confirms a trade.
type TradeSummary struct {
	Direction       Direction       `json:"direction"`
	In              TokenAmount     `json:"in"`
	Out             TokenAmount     `json:"out"`
	MinimumReceived TokenAmount     `json:"minimum_received"`
	PlatformFee     TokenAmount     `json:"platform_fee"`
	PriceImpactPct  decimal.Decimal `json:"price_impact_pct"`
	// NetworkFeeUI is the estimated total network fee in native UI units.
	NetworkFeeUI decimal.Decimal `json:"network_fee_ui"`
	HopFees      []HopFee        `json:"hop_fees"`
}

// PendingApproval is the single-slot record of a trade suspended on user
// confirmation. It is created and consumed exclusively by the executor; the
// UI layer only reads it and signals a resolution.
type PendingApproval struct {
	ID string `json:"id"`
	// Transaction is the serialized unsigned transaction awaiting the
	// delegated signer. Never exposed for mutation.
	Transaction []byte        `json:"-"`
	Summary     TradeSummary  `json:"summary"`
	Signer      string        `json:"signer"`
	State       ApprovalState `json:"state"`
	CreatedAt   time.Time     `json:"created_at"`
}
