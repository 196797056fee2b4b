package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Direction of a trade relative to the posted token.
type Direction int

const (
	// DirectionBuy spends the native asset to acquire the token.
	DirectionBuy Direction = iota
	// DirectionSell converts the token back to the native asset.
	DirectionSell
)

const (
	directionStringBuy  = "buy"
	directionStringSell = "sell"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return directionStringBuy
	case DirectionSell:
		return directionStringSell
	default:
		return "unknown"
	}
}

// ParseDirection converts a wire string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case directionStringBuy:
		return DirectionBuy, nil
	case directionStringSell:
		return DirectionSell, nil
	}
	return 0, fmt.Errorf("unknown trade direction %q", s)
}

// TradeIntent is the user's request to trade a posted token.
type TradeIntent struct {
	Direction Direction `json:"direction"`
	// TokenMint is the mint of the token attached to the post.
	TokenMint string `json:"token_mint"`
	// UIAmount is the user-entered amount: native asset for buys, token
	// for sells.
	UIAmount decimal.Decimal `json:"ui_amount"`
	// SlippageBps is the tolerated slippage in basis points.
	SlippageBps uint16 `json:"slippage_bps"`
	// Creator is the wallet of the creator who attached the token to the
	// post; it receives a share of the platform fee.
	Creator string `json:"creator"`
}

// TradeState tracks a trade through the execution pipeline.
type TradeState int

const (
	TradeStateIdle TradeState = iota
	TradeStateAwaitingApproval
	TradeStateSigning
	TradeStateProcessing
	TradeStateConfirmed
	TradeStateFailed
	TradeStateCancelled
)

// String returns the string representation of the trade state.
func (s TradeState) String() string {
	switch s {
	case TradeStateIdle:
		return "idle"
	case TradeStateAwaitingApproval:
		return "awaiting_approval"
	case TradeStateSigning:
		return "signing"
	case TradeStateProcessing:
		return "processing"
	case TradeStateConfirmed:
		return "confirmed"
	case TradeStateFailed:
		return "failed"
	case TradeStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TradeOutcome is the terminal result of a submitted trade.
type TradeOutcome struct {
	ID        string     `json:"id"`
	State     TradeState `json:"state"`
	Direction Direction  `json:"direction"`
	// Signature is set once the transaction was broadcast, even if the
	// trade later failed, so the user can verify it independently.
	Signature solana.Signature `json:"signature,omitempty"`
	In        TokenAmount      `json:"in"`
	Out       TokenAmount      `json:"out"`
	// PlatformFee is the fee the platform collected on the trade.
	PlatformFee TokenAmount `json:"platform_fee"`
	// CreatorReward is the ledger credit granted to the post creator,
	// in base units of the native asset.
	CreatorReward uint64 `json:"creator_reward"`
	Err           string `json:"error,omitempty"`
}

// UnsignedTransaction is a network-ready transaction awaiting signature.
type UnsignedTransaction struct {
	// Bytes is the serialized unsigned transaction.
	Bytes []byte
	// Blockhash context the transaction was built against.
	Blockhash       solana.Hash
	LastValidHeight uint64
}
