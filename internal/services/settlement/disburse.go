package settlement

import (
	"context"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/internal/clients"
	"github.com/tokenpost/tradecore/internal/domain"
	"go.uber.org/zap"
)

// ErrDisbursementFailed means the vault transfer or the protocol-fee claim
// failed. The reward ledger is left untouched and the claim may be retried.
var ErrDisbursementFailed = errors.New("disbursement failed")

const disbursePollInterval = 2 * time.Second

type chainops interface {
	Balance(ctx context.Context, address string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)
	LatestBlockhash(ctx context.Context) (clients.BlockhashContext, error)
	SendRawTransaction(ctx context.Context, signed []byte) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, bh clients.BlockhashContext, pollInterval time.Duration) error
}

type claimTxProvider interface {
	ReferralClaimTransactions(ctx context.Context, feeAccount string) ([][]byte, error)
}

// Disburser pays creator rewards out of the platform vault. When the vault
// runs short it first claims the accumulated protocol fees from the
// referral fee account.
type Disburser struct {
	chain      chainops
	aggregator claimTxProvider
	vaultKey   solana.PrivateKey
	feeAccount string
	logger     *zap.Logger
}

// NewDisburser creates a Disburser controlling the vault identified by
// vaultKey.
func NewDisburser(chain chainops, aggregator claimTxProvider, vaultKey solana.PrivateKey, feeAccount string, logger *zap.Logger) *Disburser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Disburser{
		chain:      chain,
		aggregator: aggregator,
		vaultKey:   vaultKey,
		feeAccount: feeAccount,
		logger:     logger,
	}
}

// Disburse transfers owed base units of the native asset from the vault to
// the beneficiary. The vault balance is re-read inside every call, never
// cached; claims are processed close together and a stale read could
// overdraw the vault.
func (d *Disburser) Disburse(ctx context.Context, beneficiary string, owed uint64) (solana.Signature, error) {
	beneficiaryPub, err := solana.PublicKeyFromBase58(beneficiary)
	if err != nil {
		return solana.Signature{}, errors.Wrapf(ErrDisbursementFailed, "invalid beneficiary %s", beneficiary)
	}
	vault := d.vaultKey.PublicKey()

	// Wrapped native balance counts toward the vault; unwrap it first.
	if err := d.unwrapNative(ctx, vault); err != nil {
		return solana.Signature{}, errors.Wrap(ErrDisbursementFailed, err.Error())
	}

	vaultBalance, err := d.chain.Balance(ctx, vault.String())
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrDisbursementFailed, err.Error())
	}

	if vaultBalance < owed {
		d.logger.Info("vault underfunded, claiming protocol fees",
			zap.Uint64("vault_balance", vaultBalance),
			zap.Uint64("owed", owed))
		if err := d.claimProtocolFees(ctx); err != nil {
			return solana.Signature{}, errors.Wrap(ErrDisbursementFailed, err.Error())
		}
		vaultBalance, err = d.chain.Balance(ctx, vault.String())
		if err != nil {
			return solana.Signature{}, errors.Wrap(ErrDisbursementFailed, err.Error())
		}
		if vaultBalance < owed {
			return solana.Signature{}, errors.Wrapf(ErrDisbursementFailed,
				"vault underfunded after protocol fee claim: have %d, owe %d", vaultBalance, owed)
		}
	}

	sig, err := d.transfer(ctx, vault, beneficiaryPub, owed)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrDisbursementFailed, err.Error())
	}

	d.logger.Info("reward disbursed",
		zap.String("beneficiary", beneficiary),
		zap.Uint64("amount", owed),
		zap.String("signature", sig.String()))
	return sig, nil
}

// unwrapNative closes the vault's wrapped-native token account so its
// lamports count toward the vault balance.
func (d *Disburser) unwrapNative(ctx context.Context, vault solana.PublicKey) error {
	wrapped, err := d.chain.TokenBalance(ctx, vault.String(), domain.NativeMint)
	if err != nil {
		return errors.Wrap(err, "read wrapped native balance")
	}
	if wrapped == 0 {
		return nil
	}

	mint, err := solana.PublicKeyFromBase58(domain.NativeMint)
	if err != nil {
		return err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(vault, mint)
	if err != nil {
		return errors.Wrap(err, "derive wrapped native account")
	}

	ix, err := token.NewCloseAccountInstruction(ata, vault, vault, nil).ValidateAndBuild()
	if err != nil {
		return errors.Wrap(err, "build unwrap instruction")
	}

	_, err = d.buildSignSend(ctx, vault, []solana.Instruction{ix})
	if err != nil {
		return errors.Wrap(err, "unwrap native")
	}
	d.logger.Info("unwrapped native balance", zap.Uint64("amount", wrapped))
	return nil
}

// claimProtocolFees moves the accumulated platform fees from the referral
// fee account into the vault.
func (d *Disburser) claimProtocolFees(ctx context.Context) error {
	txs, err := d.aggregator.ReferralClaimTransactions(ctx, d.feeAccount)
	if err != nil {
		return errors.Wrap(err, "fetch protocol fee claim transactions")
	}
	for _, raw := range txs {
		if err := d.signAndSendRaw(ctx, raw); err != nil {
			return errors.Wrap(err, "execute protocol fee claim")
		}
	}
	return nil
}

func (d *Disburser) transfer(ctx context.Context, from, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	ix := system.NewTransferInstruction(lamports, from, to).Build()
	return d.buildSignSend(ctx, from, []solana.Instruction{ix})
}

func (d *Disburser) buildSignSend(ctx context.Context, payer solana.PublicKey, instructions []solana.Instruction) (solana.Signature, error) {
	bh, err := d.chain.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "fetch blockhash")
	}

	tx, err := solana.NewTransaction(instructions, bh.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "build transaction")
	}
	if _, err := tx.Sign(d.vaultSigner()); err != nil {
		return solana.Signature{}, errors.Wrap(err, "sign transaction")
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "serialize transaction")
	}

	sig, err := d.chain.SendRawTransaction(ctx, signed)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := d.chain.WaitForConfirmation(ctx, sig, bh, disbursePollInterval); err != nil {
		return solana.Signature{}, errors.Wrapf(err, "confirm %s", sig.String())
	}
	return sig, nil
}

// signAndSendRaw signs a prebuilt transaction with the vault key and
// submits it.
func (d *Disburser) signAndSendRaw(ctx context.Context, raw []byte) error {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return errors.Wrap(err, "decode transaction")
	}
	if _, err := tx.Sign(d.vaultSigner()); err != nil {
		return errors.Wrap(err, "sign transaction")
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "serialize transaction")
	}

	sig, err := d.chain.SendRawTransaction(ctx, signed)
	if err != nil {
		return err
	}

	bh, err := d.chain.LatestBlockhash(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch blockhash for confirmation window")
	}
	return d.chain.WaitForConfirmation(ctx, sig, bh, disbursePollInterval)
}

func (d *Disburser) vaultSigner() func(key solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(d.vaultKey.PublicKey()) {
			return &d.vaultKey
		}
		return nil
	}
}
