// Package executor drives a trade from intent to settled outcome,
// coordinating quoting, signing, broadcast and reward settlement.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/clients"
	"github.com/tokenpost/tradecore/internal/domain"
	"github.com/tokenpost/tradecore/internal/services/settlement"
	"github.com/tokenpost/tradecore/internal/services/signer"
	"go.uber.org/zap"
)

var (
	// ErrApprovalInProgress means a trade is already suspended on user
	// approval. The slot holds one trade at a time; resolve or cancel it
	// before submitting another.
	ErrApprovalInProgress = errors.New("another trade is awaiting approval")
	// ErrApprovalCancelled means the user declined the trade. Nothing was
	// signed or broadcast.
	ErrApprovalCancelled = errors.New("trade cancelled by user")
	// ErrInsufficientBalance means the signing wallet cannot cover the
	// requested input amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type quoteProvider interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint16) (*domain.Quote, error)
}

type txBuilder interface {
	Build(ctx context.Context, quote *domain.Quote, userPublicKey string) (*domain.UnsignedTransaction, error)
}

type amountConverter interface {
	DecimalsFor(ctx context.Context, mint string) (uint8, error)
	ToBaseUnits(ui decimal.Decimal, decimals uint8) (uint64, error)
	TokenAmount(ctx context.Context, mint string, amount uint64) (domain.TokenAmount, error)
}

type balanceReader interface {
	Balance(ctx context.Context, address string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)
}

type transactionSender interface {
	Submit(ctx context.Context, signed []byte) (solana.Signature, error)
	AwaitConfirmation(ctx context.Context, sig solana.Signature, bh clients.BlockhashContext) error
}

type networkFeeEstimator interface {
	EstimateNetworkFee(ctx context.Context, quote *domain.Quote) (decimal.Decimal, []domain.HopFee, error)
}

type rewardLedger interface {
	Credit(beneficiary string, amount uint64, reason domain.ChangeReason) (domain.LedgerEntry, error)
}

// pending is the occupied approval slot: the suspended trade plus the
// channel its goroutine blocks on until the user resolves it.
type pending struct {
	approval domain.PendingApproval
	decision chan bool
}

// Executor owns the trade pipeline and the single approval slot. One
// Executor serves one signing wallet.
type Executor struct {
	quotes          quoteProvider
	builder         txBuilder
	converter       amountConverter
	chain           balanceReader
	sender          transactionSender
	fees            networkFeeEstimator
	ledger          rewardLedger
	signer          signer.Signer
	creatorShareBps uint16
	defaultSlippage uint16
	logger          *zap.Logger

	mu      sync.Mutex
	pending *pending
}

// Config wires an Executor.
type Config struct {
	Quotes          quoteProvider
	Builder         txBuilder
	Converter       amountConverter
	Chain           balanceReader
	Sender          transactionSender
	Fees            networkFeeEstimator
	Ledger          rewardLedger
	Signer          signer.Signer
	CreatorShareBps uint16
	// DefaultSlippageBps applies when a trade intent carries no slippage
	// tolerance of its own.
	DefaultSlippageBps uint16
	Logger             *zap.Logger
}

// New creates an Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		quotes:          cfg.Quotes,
		builder:         cfg.Builder,
		converter:       cfg.Converter,
		chain:           cfg.Chain,
		sender:          cfg.Sender,
		fees:            cfg.Fees,
		ledger:          cfg.Ledger,
		signer:          cfg.Signer,
		creatorShareBps: cfg.CreatorShareBps,
		defaultSlippage: cfg.DefaultSlippageBps,
		logger:          logger,
	}
}

// SubmitTrade runs the trade pipeline to completion. With a delegated
// signer the call suspends until the user resolves the approval or ctx is
// cancelled. The returned outcome is also populated on error so partial
// progress, in particular a broadcast signature, is never lost.
func (e *Executor) SubmitTrade(ctx context.Context, intent domain.TradeIntent) (domain.TradeOutcome, error) {
	outcome := domain.TradeOutcome{
		ID:        uuid.NewString(),
		State:     domain.TradeStateIdle,
		Direction: intent.Direction,
	}

	if err := validateIntent(intent); err != nil {
		outcome.State = domain.TradeStateFailed
		outcome.Err = err.Error()
		return outcome, err
	}

	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		outcome.State = domain.TradeStateFailed
		outcome.Err = ErrApprovalInProgress.Error()
		return outcome, ErrApprovalInProgress
	}
	e.mu.Unlock()

	inputMint, outputMint := tradeMints(intent)

	decimals, err := e.converter.DecimalsFor(ctx, inputMint)
	if err != nil {
		return e.fail(outcome, errors.Wrap(err, "resolve input mint"))
	}

	amount, err := e.converter.ToBaseUnits(intent.UIAmount, decimals)
	if err != nil {
		return e.fail(outcome, err)
	}
	if amount == 0 {
		return e.fail(outcome, errors.Errorf("amount %s is below the smallest unit of the input asset", intent.UIAmount.String()))
	}

	if err := e.checkBalance(ctx, intent.Direction, inputMint, amount); err != nil {
		return e.fail(outcome, err)
	}

	slippageBps := intent.SlippageBps
	if slippageBps == 0 {
		slippageBps = e.defaultSlippage
	}

	q, err := e.quotes.GetQuote(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		return e.fail(outcome, err)
	}

	unsigned, err := e.builder.Build(ctx, q, e.signer.PublicKey())
	if err != nil {
		return e.fail(outcome, err)
	}

	if outcome.In, err = e.converter.TokenAmount(ctx, q.InputMint, q.InAmount); err != nil {
		return e.fail(outcome, err)
	}
	if outcome.Out, err = e.converter.TokenAmount(ctx, q.OutputMint, q.OutAmount); err != nil {
		return e.fail(outcome, err)
	}
	feeMint, feeAmount := settlement.ComputeFee(intent.Direction, q)
	if outcome.PlatformFee, err = e.converter.TokenAmount(ctx, feeMint, feeAmount); err != nil {
		return e.fail(outcome, err)
	}

	var signed []byte
	switch s := e.signer.(type) {
	case signer.Direct:
		outcome.State = domain.TradeStateSigning
		signed, err = s.Sign(unsigned.Bytes)
		if err != nil {
			return e.fail(outcome, errors.Wrap(err, "sign transaction"))
		}
	case signer.Delegated:
		signed, err = e.approveAndSign(ctx, s, outcome, q, unsigned)
		if err != nil {
			if errors.Is(err, ErrApprovalCancelled) {
				outcome.State = domain.TradeStateCancelled
				outcome.Err = err.Error()
				return outcome, err
			}
			return e.fail(outcome, err)
		}
	default:
		return e.fail(outcome, errors.Errorf("unsupported signer type %T", e.signer))
	}

	return e.broadcast(ctx, outcome, intent, q, unsigned, signed)
}

func validateIntent(intent domain.TradeIntent) error {
	if intent.TokenMint == "" {
		return errors.New("token mint is required")
	}
	if domain.IsNativeMint(intent.TokenMint) {
		return errors.New("token mint must not be the native asset")
	}
	if !intent.UIAmount.IsPositive() {
		return errors.Errorf("amount must be positive, got %s", intent.UIAmount.String())
	}
	return nil
}

func tradeMints(intent domain.TradeIntent) (inputMint, outputMint string) {
	if intent.Direction == domain.DirectionBuy {
		return domain.NativeMint, intent.TokenMint
	}
	return intent.TokenMint, domain.NativeMint
}

func (e *Executor) checkBalance(ctx context.Context, direction domain.Direction, inputMint string, amount uint64) error {
	owner := e.signer.PublicKey()

	var balance uint64
	var err error
	if direction == domain.DirectionBuy {
		balance, err = e.chain.Balance(ctx, owner)
	} else {
		balance, err = e.chain.TokenBalance(ctx, owner, inputMint)
	}
	if err != nil {
		return errors.Wrap(err, "read wallet balance")
	}

	if balance < amount {
		return errors.Wrapf(ErrInsufficientBalance, "have %d, need %d of %s", balance, amount, inputMint)
	}
	return nil
}

// approveAndSign parks the trade in the approval slot and blocks until the
// user resolves it. The slot is freed on every exit path.
func (e *Executor) approveAndSign(ctx context.Context, s signer.Delegated, outcome domain.TradeOutcome, q *domain.Quote, unsigned *domain.UnsignedTransaction) ([]byte, error) {
	summary, err := e.buildSummary(ctx, outcome, q)
	if err != nil {
		return nil, err
	}

	slot := &pending{
		approval: domain.PendingApproval{
			ID:          outcome.ID,
			Transaction: unsigned.Bytes,
			Summary:     summary,
			Signer:      s.PublicKey(),
			State:       domain.ApprovalStatePending,
			CreatedAt:   time.Now(),
		},
		decision: make(chan bool, 1),
	}

	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		return nil, ErrApprovalInProgress
	}
	e.pending = slot
	e.mu.Unlock()

	e.logger.Info("trade awaiting approval",
		zap.String("trade_id", outcome.ID),
		zap.String("signer", s.PublicKey()))

	defer func() {
		e.mu.Lock()
		if e.pending == slot {
			e.pending = nil
		}
		e.mu.Unlock()
	}()

	select {
	case confirmed := <-slot.decision:
		if !confirmed {
			e.logger.Info("trade cancelled", zap.String("trade_id", outcome.ID))
			return nil, ErrApprovalCancelled
		}
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "approval interrupted")
	}

	signed, err := s.SignApproved(ctx, unsigned.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "delegated signing")
	}
	return signed, nil
}

func (e *Executor) buildSummary(ctx context.Context, outcome domain.TradeOutcome, q *domain.Quote) (domain.TradeSummary, error) {
	minReceived, err := e.converter.TokenAmount(ctx, q.OutputMint, q.MinimumReceived())
	if err != nil {
		return domain.TradeSummary{}, err
	}

	networkFee, hopFees, err := e.fees.EstimateNetworkFee(ctx, q)
	if err != nil {
		// Fee estimation is advisory: a pricing outage must not block
		// the trade itself.
		e.logger.Warn("network fee estimate unavailable", zap.Error(err))
		networkFee = decimal.Zero
		hopFees = nil
	}

	return domain.TradeSummary{
		Direction:       outcome.Direction,
		In:              outcome.In,
		Out:             outcome.Out,
		MinimumReceived: minReceived,
		PlatformFee:     outcome.PlatformFee,
		PriceImpactPct:  q.PriceImpactPct,
		NetworkFeeUI:    networkFee,
		HopFees:         hopFees,
	}, nil
}

func (e *Executor) broadcast(ctx context.Context, outcome domain.TradeOutcome, intent domain.TradeIntent, q *domain.Quote, unsigned *domain.UnsignedTransaction, signed []byte) (domain.TradeOutcome, error) {
	outcome.State = domain.TradeStateProcessing

	sig, err := e.sender.Submit(ctx, signed)
	if err != nil {
		return e.fail(outcome, err)
	}
	outcome.Signature = sig

	bh := clients.BlockhashContext{
		Blockhash:       unsigned.Blockhash,
		LastValidHeight: unsigned.LastValidHeight,
	}
	if err := e.sender.AwaitConfirmation(ctx, sig, bh); err != nil {
		return e.fail(outcome, err)
	}

	outcome.State = domain.TradeStateConfirmed
	e.settleReward(&outcome, intent, q)

	e.logger.Info("trade confirmed",
		zap.String("trade_id", outcome.ID),
		zap.String("direction", outcome.Direction.String()),
		zap.String("signature", sig.String()),
		zap.Uint64("in_amount", outcome.In.Amount),
		zap.Uint64("out_amount", outcome.Out.Amount),
		zap.Uint64("creator_reward", outcome.CreatorReward))

	return outcome, nil
}

// settleReward credits the post creator's share of the platform fee. The
// trade is already confirmed, so a ledger failure is logged and surfaced
// on the outcome without failing the trade.
func (e *Executor) settleReward(outcome *domain.TradeOutcome, intent domain.TradeIntent, q *domain.Quote) {
	if intent.Creator == "" {
		return
	}

	_, feeAmount := settlement.ComputeFee(intent.Direction, q)
	reward := settlement.CreatorShare(feeAmount, e.creatorShareBps)
	if reward == 0 {
		return
	}

	if _, err := e.ledger.Credit(intent.Creator, reward, domain.ChangeReasonTradeReward); err != nil {
		e.logger.Error("creator reward credit failed",
			zap.String("trade_id", outcome.ID),
			zap.String("creator", intent.Creator),
			zap.Uint64("reward", reward),
			zap.Error(err))
		outcome.Err = errors.Wrap(err, "credit creator reward").Error()
		return
	}
	outcome.CreatorReward = reward
}

func (e *Executor) fail(outcome domain.TradeOutcome, err error) (domain.TradeOutcome, error) {
	outcome.State = domain.TradeStateFailed
	outcome.Err = err.Error()
	return outcome, err
}

// PendingApproval returns a copy of the currently suspended approval, or
// false when the slot is free.
func (e *Executor) PendingApproval() (domain.PendingApproval, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return domain.PendingApproval{}, false
	}
	return e.pending.approval, true
}

// Resolve delivers the user's decision for the suspended trade. It returns
// an error when no approval is pending.
func (e *Executor) Resolve(confirm bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return errors.New("no trade is awaiting approval")
	}

	if confirm {
		e.pending.approval.State = domain.ApprovalStateConfirmed
	} else {
		e.pending.approval.State = domain.ApprovalStateCancelled
	}

	select {
	case e.pending.decision <- confirm:
	default:
	}
	return nil
}
