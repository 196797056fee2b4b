package signer

import "context"

// Delegated is a custodial signer. The executor must obtain interactive
// user approval before calling SignApproved; the custodial backend never
// sees a transaction the user did not confirm.
type Delegated interface {
	Signer
	SignApproved(ctx context.Context, unsigned []byte) ([]byte, error)
}

// custodialBackend is the remote signing API of the custodial wallet
// service.
type custodialBackend interface {
	Sign(ctx context.Context, walletID string, unsigned []byte) ([]byte, error)
}

// Custodial is a delegated signer backed by a custodial wallet service.
type Custodial struct {
	backend   custodialBackend
	walletID  string
	publicKey string
}

// NewCustodial creates a delegated signer for the custodial wallet
// identified by walletID with the given public key.
func NewCustodial(backend custodialBackend, walletID, publicKey string) *Custodial {
	return &Custodial{
		backend:   backend,
		walletID:  walletID,
		publicKey: publicKey,
	}
}

// PublicKey returns the custodial wallet's public key.
func (c *Custodial) PublicKey() string {
	return c.publicKey
}

// SignApproved forwards the user-confirmed transaction to the custodial
// backend for signing.
func (c *Custodial) SignApproved(ctx context.Context, unsigned []byte) ([]byte, error) {
	return c.backend.Sign(ctx, c.walletID, unsigned)
}
