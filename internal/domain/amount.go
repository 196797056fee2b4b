package domain

import "github.com/shopspring/decimal"

// TokenAmount couples a raw base-unit amount with the mint's decimal
// precision. The UI-facing value is always derived from the raw amount,
// never stored, so the two representations cannot diverge.
type TokenAmount struct {
	Mint     string `json:"mint"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// UIAmount returns the human-readable decimal value of the amount.
func (a TokenAmount) UIAmount() decimal.Decimal {
	return decimal.NewFromUint64(a.Amount).Shift(-int32(a.Decimals))
}

// String returns the UI-facing decimal representation.
func (a TokenAmount) String() string {
	return a.UIAmount().String()
}
