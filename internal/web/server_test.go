package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/tokenpost/tradecore/internal/domain"
	"github.com/tokenpost/tradecore/internal/services/executor"
	"github.com/tokenpost/tradecore/internal/storage/rewards"
	"go.uber.org/zap"
)

type fakeExecutor struct {
	outcome  domain.TradeOutcome
	err      error
	approval *domain.PendingApproval
	resolved []bool
}

func (f *fakeExecutor) SubmitTrade(_ context.Context, _ domain.TradeIntent) (domain.TradeOutcome, error) {
	return f.outcome, f.err
}

func (f *fakeExecutor) PendingApproval() (domain.PendingApproval, bool) {
	if f.approval == nil {
		return domain.PendingApproval{}, false
	}
	return *f.approval, true
}

func (f *fakeExecutor) Resolve(confirm bool) error {
	if f.approval == nil {
		return errors.New("no trade is awaiting approval")
	}
	f.resolved = append(f.resolved, confirm)
	return nil
}

type fakeLedger struct {
	balances map[string]uint64
	claims   map[string][]domain.Claim
	entries  []domain.LedgerEntryRecord
	claimErr error
}

func (f *fakeLedger) Balance(beneficiary string) uint64 {
	return f.balances[beneficiary]
}

func (f *fakeLedger) Claim(ctx context.Context, beneficiary string, disburse rewards.DisburseFunc) (domain.Claim, error) {
	if f.claimErr != nil {
		return domain.Claim{}, f.claimErr
	}
	owed := f.balances[beneficiary]
	if owed == 0 {
		return domain.Claim{}, rewards.ErrNothingToClaim
	}
	sig, err := disburse(ctx, beneficiary, owed)
	if err != nil {
		return domain.Claim{Beneficiary: beneficiary, Amount: owed, Status: domain.ClaimStatusFailed, Error: err.Error()}, err
	}
	f.balances[beneficiary] = 0
	return domain.Claim{Beneficiary: beneficiary, Amount: owed, Status: domain.ClaimStatusSuccess, Signature: sig}, nil
}

func (f *fakeLedger) ClaimsFor(beneficiary string) []domain.Claim {
	return f.claims[beneficiary]
}

func (f *fakeLedger) EntriesAfter(index uint64) ([]domain.LedgerEntryRecord, error) {
	var out []domain.LedgerEntryRecord
	for _, r := range f.entries {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(exec *fakeExecutor, ledger *fakeLedger) http.Handler {
	disburse := func(_ context.Context, _ string, _ uint64) (string, error) {
		return "paysig", nil
	}
	s := NewServer(":0", exec, ledger, disburse, zap.NewNop())
	return s.routes()
}

func TestHandleTrade_OK(t *testing.T) {
	exec := &fakeExecutor{outcome: domain.TradeOutcome{ID: "t1", State: domain.TradeStateConfirmed}}
	h := newTestServer(exec, &fakeLedger{})

	body := `{"direction": "buy", "token_mint": "Mint1", "ui_amount": "1.5", "slippage_bps": 50, "creator": "C1"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trade", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var outcome domain.TradeOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	require.Equal(t, "t1", outcome.ID)
}

func TestHandleTrade_BadDirection(t *testing.T) {
	h := newTestServer(&fakeExecutor{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trade", strings.NewReader(`{"direction": "hodl", "ui_amount": "1"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrade_BadAmount(t *testing.T) {
	h := newTestServer(&fakeExecutor{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trade", strings.NewReader(`{"direction": "buy", "ui_amount": "abc"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrade_ApprovalInProgress(t *testing.T) {
	exec := &fakeExecutor{err: executor.ErrApprovalInProgress}
	h := newTestServer(exec, &fakeLedger{})

	body := `{"direction": "buy", "token_mint": "Mint1", "ui_amount": "1"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trade", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleTrade_CancelledIsNotAnError(t *testing.T) {
	exec := &fakeExecutor{
		outcome: domain.TradeOutcome{ID: "t1", State: domain.TradeStateCancelled},
		err:     executor.ErrApprovalCancelled,
	}
	h := newTestServer(exec, &fakeLedger{})

	body := `{"direction": "buy", "token_mint": "Mint1", "ui_amount": "1"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trade", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome domain.TradeOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	require.Equal(t, domain.TradeStateCancelled, outcome.State)
}

func TestHandleApproval_Empty(t *testing.T) {
	h := newTestServer(&fakeExecutor{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/approval", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleApproval_Pending(t *testing.T) {
	exec := &fakeExecutor{approval: &domain.PendingApproval{ID: "t1", Signer: "Wallet1"}}
	h := newTestServer(exec, &fakeLedger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/approval", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var approval domain.PendingApproval
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approval))
	require.Equal(t, "t1", approval.ID)
}

func TestHandleApprovalResolve(t *testing.T) {
	exec := &fakeExecutor{approval: &domain.PendingApproval{ID: "t1"}}
	h := newTestServer(exec, &fakeLedger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/approval/resolve", strings.NewReader(`{"confirm": true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []bool{true}, exec.resolved)
}

func TestHandleApprovalResolve_NonePending(t *testing.T) {
	h := newTestServer(&fakeExecutor{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/approval/resolve", strings.NewReader(`{"confirm": false}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRewardBalance(t *testing.T) {
	ledger := &fakeLedger{balances: map[string]uint64{"C1": 750}}
	h := newTestServer(&fakeExecutor{}, ledger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rewards/C1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Beneficiary string `json:"beneficiary"`
		Balance     uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "C1", resp.Beneficiary)
	require.Equal(t, uint64(750), resp.Balance)
}

func TestHandleRewardClaim(t *testing.T) {
	ledger := &fakeLedger{balances: map[string]uint64{"C1": 750}}
	h := newTestServer(&fakeExecutor{}, ledger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rewards/C1/claim", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var claim domain.Claim
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	require.Equal(t, domain.ClaimStatusSuccess, claim.Status)
	require.Equal(t, uint64(750), claim.Amount)
	require.Equal(t, "paysig", claim.Signature)
	require.Zero(t, ledger.balances["C1"])
}

func TestHandleRewardClaim_NothingToClaim(t *testing.T) {
	h := newTestServer(&fakeExecutor{}, &fakeLedger{balances: map[string]uint64{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rewards/C1/claim", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleRewardClaims(t *testing.T) {
	ledger := &fakeLedger{claims: map[string][]domain.Claim{
		"C1": {{Beneficiary: "C1", Amount: 10, Status: domain.ClaimStatusSuccess}},
	}}
	h := newTestServer(&fakeExecutor{}, ledger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rewards/C1/claims", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var claims []domain.Claim
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claims))
	require.Len(t, claims, 1)
}
