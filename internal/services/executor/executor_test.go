package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tokenpost/tradecore/internal/clients"
	"github.com/tokenpost/tradecore/internal/domain"
	"github.com/tokenpost/tradecore/internal/services/converter"
	"github.com/tokenpost/tradecore/internal/services/signer"
	"go.uber.org/zap"
)

const (
	testTokenMint = "TokenMint1111111111111111111111111111111111"
	testCreator   = "Creator111111111111111111111111111111111111"
	testWallet    = "Wallet1111111111111111111111111111111111111"
)

type fakeQuotes struct {
	quote        *domain.Quote
	err          error
	lastSlippage uint16
}

func (f *fakeQuotes) GetQuote(_ context.Context, inputMint, outputMint string, amount uint64, slippageBps uint16) (*domain.Quote, error) {
	f.lastSlippage = slippageBps
	if f.err != nil {
		return nil, f.err
	}
	q := *f.quote
	q.InputMint = inputMint
	q.OutputMint = outputMint
	q.InAmount = amount
	return &q, nil
}

type fakeBuilder struct {
	err error
}

func (f *fakeBuilder) Build(_ context.Context, _ *domain.Quote, _ string) (*domain.UnsignedTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UnsignedTransaction{Bytes: []byte("unsigned"), LastValidHeight: 100}, nil
}

type fakeMintInfo struct{}

func (fakeMintInfo) MintDecimals(_ context.Context, _ string) (uint8, error) {
	return 6, nil
}

type fakeBalances struct {
	native uint64
	token  uint64
}

func (f *fakeBalances) Balance(_ context.Context, _ string) (uint64, error) {
	return f.native, nil
}

func (f *fakeBalances) TokenBalance(_ context.Context, _, _ string) (uint64, error) {
	return f.token, nil
}

type fakeSender struct {
	mu         sync.Mutex
	submitted  [][]byte
	submitErr  error
	confirmErr error
}

func (f *fakeSender) Submit(_ context.Context, signed []byte) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return solana.Signature{}, f.submitErr
	}
	f.submitted = append(f.submitted, signed)
	return solana.Signature{}, nil
}

func (f *fakeSender) AwaitConfirmation(_ context.Context, _ solana.Signature, _ clients.BlockhashContext) error {
	return f.confirmErr
}

func (f *fakeSender) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeFees struct{}

func (fakeFees) EstimateNetworkFee(_ context.Context, _ *domain.Quote) (decimal.Decimal, []domain.HopFee, error) {
	return decimal.RequireFromString("0.000005"), nil, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	credits map[string]uint64
	err     error
}

func (f *fakeLedger) Credit(beneficiary string, amount uint64, _ domain.ChangeReason) (domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.LedgerEntry{}, f.err
	}
	if f.credits == nil {
		f.credits = make(map[string]uint64)
	}
	f.credits[beneficiary] += amount
	return domain.LedgerEntry{Beneficiary: beneficiary, ResultingBalance: f.credits[beneficiary]}, nil
}

func (f *fakeLedger) creditFor(beneficiary string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credits[beneficiary]
}

type fakeDirect struct{}

func (fakeDirect) PublicKey() string { return testWallet }

func (fakeDirect) Sign(unsigned []byte) ([]byte, error) {
	return append([]byte("signed:"), unsigned...), nil
}

type fakeDelegated struct{}

func (fakeDelegated) PublicKey() string { return testWallet }

func (fakeDelegated) SignApproved(_ context.Context, unsigned []byte) ([]byte, error) {
	return append([]byte("signed:"), unsigned...), nil
}

type fixture struct {
	exec   *Executor
	quotes *fakeQuotes
	sender *fakeSender
	ledger *fakeLedger
}

func newFixture(t *testing.T, s signer.Signer) *fixture {
	t.Helper()

	quotes := &fakeQuotes{
		quote: &domain.Quote{
			OutAmount:      40_000_000,
			SlippageBps:    50,
			PlatformFeeBps: 100,
			PlatformFee:    10_000_000,
			PriceImpactPct: decimal.RequireFromString("0.01"),
		},
	}
	sender := &fakeSender{}
	ledger := &fakeLedger{}

	cfg := Config{
		Quotes:             quotes,
		Builder:            &fakeBuilder{},
		Converter:          converter.New(fakeMintInfo{}),
		Chain:              &fakeBalances{native: 2_000_000_000, token: 2_000_000_000},
		Sender:             sender,
		Fees:               fakeFees{},
		Ledger:             ledger,
		Signer:             s,
		CreatorShareBps:    5_000,
		DefaultSlippageBps: 75,
		Logger:             zap.NewNop(),
	}

	return &fixture{exec: New(cfg), quotes: quotes, sender: sender, ledger: ledger}
}

func buyIntent() domain.TradeIntent {
	return domain.TradeIntent{
		Direction:   domain.DirectionBuy,
		TokenMint:   testTokenMint,
		UIAmount:    decimal.NewFromInt(1),
		SlippageBps: 50,
		Creator:     testCreator,
	}
}

func TestSubmitTrade_DirectConfirmsAndCreditsCreator(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	outcome, err := f.exec.SubmitTrade(context.Background(), buyIntent())
	require.NoError(t, err)
	require.Equal(t, domain.TradeStateConfirmed, outcome.State)
	require.Equal(t, 1, f.sender.submissions())

	// 1 native in base units at 100 bps is a 10_000_000 fee; the creator
	// share at 5000 bps is half of it.
	require.Equal(t, uint64(5_000_000), outcome.CreatorReward)
	require.Equal(t, uint64(5_000_000), f.ledger.creditFor(testCreator))
	require.Equal(t, domain.NativeMint, outcome.In.Mint)
	require.Equal(t, testTokenMint, outcome.Out.Mint)
}

func TestSubmitTrade_SlippageDefaultsWhenUnset(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	intent := buyIntent()
	intent.SlippageBps = 0
	_, err := f.exec.SubmitTrade(context.Background(), intent)
	require.NoError(t, err)
	require.Equal(t, uint16(75), f.quotes.lastSlippage)
}

func TestSubmitTrade_ExplicitSlippageWins(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	intent := buyIntent()
	intent.SlippageBps = 25
	_, err := f.exec.SubmitTrade(context.Background(), intent)
	require.NoError(t, err)
	require.Equal(t, uint16(25), f.quotes.lastSlippage)
}

func TestSubmitTrade_NoCreatorNoCredit(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	intent := buyIntent()
	intent.Creator = ""

	outcome, err := f.exec.SubmitTrade(context.Background(), intent)
	require.NoError(t, err)
	require.Equal(t, domain.TradeStateConfirmed, outcome.State)
	require.Zero(t, outcome.CreatorReward)
	require.Empty(t, f.ledger.credits)
}

func TestSubmitTrade_SellUsesQuotedFee(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	intent := buyIntent()
	intent.Direction = domain.DirectionSell

	outcome, err := f.exec.SubmitTrade(context.Background(), intent)
	require.NoError(t, err)
	require.Equal(t, domain.TradeStateConfirmed, outcome.State)
	require.Equal(t, testTokenMint, outcome.In.Mint)
	require.Equal(t, domain.NativeMint, outcome.Out.Mint)

	// sells take the quote's reported fee of 10_000_000, half to creator
	require.Equal(t, uint64(5_000_000), outcome.CreatorReward)
}

func TestSubmitTrade_InsufficientBalance(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	intent := buyIntent()
	intent.UIAmount = decimal.NewFromInt(100) // wallet holds 2 native

	outcome, err := f.exec.SubmitTrade(context.Background(), intent)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, domain.TradeStateFailed, outcome.State)
	require.Zero(t, f.sender.submissions())
}

func TestSubmitTrade_NoRouteLeavesSlotFree(t *testing.T) {
	f := newFixture(t, fakeDelegated{})
	f.quotes.err = errors.Wrap(clients.ErrNoRoute, "aggregator")

	outcome, err := f.exec.SubmitTrade(context.Background(), buyIntent())
	require.ErrorIs(t, err, clients.ErrNoRoute)
	require.Equal(t, domain.TradeStateFailed, outcome.State)

	_, pending := f.exec.PendingApproval()
	require.False(t, pending, "a failed quote must never occupy the approval slot")
}

func TestSubmitTrade_RejectsNativeTokenMint(t *testing.T) {
	f := newFixture(t, fakeDirect{})

	intent := buyIntent()
	intent.TokenMint = domain.NativeMint

	_, err := f.exec.SubmitTrade(context.Background(), intent)
	require.Error(t, err)
	require.Zero(t, f.sender.submissions())
}

func TestSubmitTrade_BroadcastFailureSurfacesSignature(t *testing.T) {
	f := newFixture(t, fakeDirect{})
	f.sender.confirmErr = errors.New("confirmation timed out")

	outcome, err := f.exec.SubmitTrade(context.Background(), buyIntent())
	require.Error(t, err)
	require.Equal(t, domain.TradeStateFailed, outcome.State)
	require.Zero(t, f.ledger.creditFor(testCreator), "failed trades must not credit rewards")
}

func TestSubmitTrade_DelegatedConfirm(t *testing.T) {
	f := newFixture(t, fakeDelegated{})

	done := make(chan struct{})
	var outcome domain.TradeOutcome
	var submitErr error
	go func() {
		defer close(done)
		outcome, submitErr = f.exec.SubmitTrade(context.Background(), buyIntent())
	}()

	require.Eventually(t, func() bool {
		_, ok := f.exec.PendingApproval()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	approval, ok := f.exec.PendingApproval()
	require.True(t, ok)
	require.Equal(t, domain.ApprovalStatePending, approval.State)
	require.Equal(t, testWallet, approval.Signer)
	require.Equal(t, domain.NativeMint, approval.Summary.In.Mint)
	require.True(t, approval.Summary.NetworkFeeUI.IsPositive())

	require.NoError(t, f.exec.Resolve(true))
	<-done

	require.NoError(t, submitErr)
	require.Equal(t, domain.TradeStateConfirmed, outcome.State)
	require.Equal(t, 1, f.sender.submissions())
	require.Equal(t, uint64(5_000_000), f.ledger.creditFor(testCreator))

	_, pending := f.exec.PendingApproval()
	require.False(t, pending, "the slot must be freed after resolution")
}

func TestSubmitTrade_DelegatedCancel(t *testing.T) {
	f := newFixture(t, fakeDelegated{})

	done := make(chan struct{})
	var outcome domain.TradeOutcome
	var submitErr error
	go func() {
		defer close(done)
		outcome, submitErr = f.exec.SubmitTrade(context.Background(), buyIntent())
	}()

	require.Eventually(t, func() bool {
		_, ok := f.exec.PendingApproval()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.exec.Resolve(false))
	<-done

	require.ErrorIs(t, submitErr, ErrApprovalCancelled)
	require.Equal(t, domain.TradeStateCancelled, outcome.State)
	require.Zero(t, f.sender.submissions(), "cancelled trades must never reach the network")
	require.Empty(t, f.ledger.credits)

	_, pending := f.exec.PendingApproval()
	require.False(t, pending)
}

func TestSubmitTrade_SecondTradeRejectedWhilePending(t *testing.T) {
	f := newFixture(t, fakeDelegated{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.exec.SubmitTrade(context.Background(), buyIntent())
	}()

	require.Eventually(t, func() bool {
		_, ok := f.exec.PendingApproval()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err := f.exec.SubmitTrade(context.Background(), buyIntent())
	require.ErrorIs(t, err, ErrApprovalInProgress)

	require.NoError(t, f.exec.Resolve(false))
	<-done
}

func TestResolve_NoPending(t *testing.T) {
	f := newFixture(t, fakeDelegated{})
	require.Error(t, f.exec.Resolve(true))
}
