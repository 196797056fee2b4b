package signer

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Keypair is a direct signer backed by a local ed25519 private key.
type Keypair struct {
	key solana.PrivateKey
}

// NewKeypairFromBase58 parses a base58-encoded private key.
func NewKeypairFromBase58(encoded string) (*Keypair, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return &Keypair{key: key}, nil
}

// PublicKey returns the base58 public key of the keypair.
func (k *Keypair) PublicKey() string {
	return k.key.PublicKey().String()
}

// Sign deserializes the transaction, signs it with the local key and
// returns the serialized signed bytes.
func (k *Keypair) Sign(unsigned []byte) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(unsigned))
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(k.key.PublicKey()) {
			return &k.key
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "serialize signed transaction")
	}
	return signed, nil
}
