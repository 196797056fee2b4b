package domain

import "time"

// ChangeKind classifies a ledger entry as a credit or a debit.
type ChangeKind string

const (
	ChangeKindCredit ChangeKind = "CREDIT"
	ChangeKindDebit  ChangeKind = "DEBIT"
)

// ChangeReason records why a balance changed.
type ChangeReason string

const (
	ChangeReasonTradeReward ChangeReason = "TRADE_REWARD"
	ChangeReasonClaim       ChangeReason = "CLAIM"
)

// LedgerEntry is one append-only balance change for a beneficiary. The
// current balance of a beneficiary is the ResultingBalance of its latest
// entry; history is kept for audit only and is never summed at read time.
type LedgerEntry struct {
	Beneficiary string `json:"beneficiary"`
	PrevBalance uint64 `json:"prev_balance"`
	// Change is signed: positive for credits, negative for debits.
	Change           int64        `json:"change"`
	ResultingBalance uint64       `json:"resulting_balance"`
	Kind             ChangeKind   `json:"kind"`
	Reason           ChangeReason `json:"reason"`
	Time             time.Time    `json:"time"`
}

// LedgerEntryRecord pairs a ledger entry with its store index for streaming.
type LedgerEntryRecord struct {
	Index uint64      `json:"index"`
	Entry LedgerEntry `json:"entry"`
}

// ClaimStatus is the terminal status of a settlement attempt.
type ClaimStatus string

const (
	ClaimStatusSuccess ClaimStatus = "SUCCESS"
	ClaimStatusFailed  ClaimStatus = "FAILED"
)

// Claim records one attempt to settle a beneficiary's balance to zero.
// A successful claim always equals the balance at claim time; there are no
// partial claims.
type Claim struct {
	Beneficiary string      `json:"beneficiary"`
	Amount      uint64      `json:"amount"`
	Status      ClaimStatus `json:"status"`
	// Signature of the disbursement transaction, set on success.
	Signature string    `json:"signature,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}
