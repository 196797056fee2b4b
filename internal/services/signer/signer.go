// Package signer models the two wallet signing capabilities: a direct
// signer that holds its own keys, and a delegated signer whose custodial
// backend may only be invoked after explicit user approval.
package signer

// Signer identifies the wallet a trade executes from. The executor branches
// on the two capability variants below, never on concrete implementations.
type Signer interface {
	PublicKey() string
}

// Direct is a signer holding its own keys. Signing needs no user
// interaction beyond normal request latency.
type Direct interface {
	Signer
	Sign(unsigned []byte) ([]byte, error)
}
