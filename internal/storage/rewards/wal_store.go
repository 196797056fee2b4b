// Package rewards persists the append-only reward ledger and its claim
// history in a WAL.
package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultLedgerDir   = "./wal/rewards"
	ledgerSegmentLimit = 1000
	ledgerMaxSegments  = 100

	entryKeyPrefix = "reward_entry_"
	claimKeyPrefix = "reward_claim_"
)

// ErrNothingToClaim is returned when a claim is attempted against a zero
// balance. No network action is taken and no entry is appended.
var ErrNothingToClaim = errors.New("nothing to claim")

// DisburseFunc performs the on-chain payout of owed base units to the
// beneficiary, returning the transaction signature.
type DisburseFunc func(ctx context.Context, beneficiary string, owed uint64) (string, error)

// walRecord is one persisted ledger event. A successful claim carries both
// the zeroing debit entry and the claim in a single record so the two can
// never be separated.
type walRecord struct {
	Entry *domain.LedgerEntry `json:"entry,omitempty"`
	Claim *domain.Claim       `json:"claim,omitempty"`
}

// WALStore is the append-only reward ledger. The current balance of a
// beneficiary is the resulting balance of its latest entry; history is
// retained for audit only.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex

	// tails holds the latest entry per beneficiary.
	tails  map[string]domain.LedgerEntry
	claims map[string][]domain.Claim

	// lockMu guards beneficiaryLocks; each per-beneficiary lock serializes
	// claims against concurrent credits and other claims for that key.
	lockMu           sync.Mutex
	beneficiaryLocks map[string]*sync.Mutex

	nowFn func() time.Time
}

// NewWALStore opens (or creates) the reward ledger under dir and rebuilds
// the per-beneficiary tails from the log.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultLedgerDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: ledgerSegmentLimit,
		MaxSegments:      ledgerMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init reward ledger WAL")
	}

	s := &WALStore{
		wal:              wal,
		tails:            make(map[string]domain.LedgerEntry),
		claims:           make(map[string][]domain.Claim),
		beneficiaryLocks: make(map[string]*sync.Mutex),
		nowFn:            time.Now,
	}

	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, entryKeyPrefix) && !strings.HasPrefix(msg.Key, claimKeyPrefix) {
			continue
		}
		var record walRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return nil, errors.Wrapf(err, "decode ledger record %s", msg.Key)
		}
		s.apply(record)
	}

	return s, nil
}

func (s *WALStore) apply(record walRecord) {
	if record.Entry != nil {
		s.tails[record.Entry.Beneficiary] = *record.Entry
	}
	if record.Claim != nil {
		s.claims[record.Claim.Beneficiary] = append(s.claims[record.Claim.Beneficiary], *record.Claim)
	}
}

func (s *WALStore) lockFor(beneficiary string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.beneficiaryLocks[beneficiary]
	if !ok {
		lock = &sync.Mutex{}
		s.beneficiaryLocks[beneficiary] = lock
	}
	return lock
}

func (s *WALStore) persist(key string, record walRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal ledger record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return errors.Wrap(err, "append ledger record")
	}
	s.apply(record)
	return nil
}

// Credit appends a CREDIT entry for the beneficiary. The resulting balance
// is the previous resulting balance plus amount.
func (s *WALStore) Credit(beneficiary string, amount uint64, reason domain.ChangeReason) (domain.LedgerEntry, error) {
	if s == nil || s.wal == nil {
		return domain.LedgerEntry{}, errors.New("reward ledger is not initialized")
	}
	if beneficiary == "" {
		return domain.LedgerEntry{}, errors.New("beneficiary is required")
	}

	lock := s.lockFor(beneficiary)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	prev := s.balanceLocked(beneficiary)
	s.mu.RUnlock()

	entry := domain.LedgerEntry{
		Beneficiary:      beneficiary,
		PrevBalance:      prev,
		Change:           int64(amount),
		ResultingBalance: prev + amount,
		Kind:             domain.ChangeKindCredit,
		Reason:           reason,
		Time:             s.nowFn(),
	}

	key := fmt.Sprintf("%s%s", entryKeyPrefix, beneficiary)
	if err := s.persist(key, walRecord{Entry: &entry}); err != nil {
		return domain.LedgerEntry{}, err
	}
	return entry, nil
}

// Balance returns the beneficiary's current balance: the resulting balance
// of its latest entry, zero if it has none.
func (s *WALStore) Balance(beneficiary string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balanceLocked(beneficiary)
}

func (s *WALStore) balanceLocked(beneficiary string) uint64 {
	tail, ok := s.tails[beneficiary]
	if !ok {
		return 0
	}
	return tail.ResultingBalance
}

// Claim settles the beneficiary's balance to zero. The per-beneficiary
// lock is held across the disbursement so two simultaneous claims cannot
// both observe the same positive balance. On success the zeroing DEBIT and
// the SUCCESS claim are appended as one atomic record; on failure a FAILED
// claim is recorded and the balance is left unchanged.
func (s *WALStore) Claim(ctx context.Context, beneficiary string, disburse DisburseFunc) (domain.Claim, error) {
	if s == nil || s.wal == nil {
		return domain.Claim{}, errors.New("reward ledger is not initialized")
	}

	lock := s.lockFor(beneficiary)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	owed := s.balanceLocked(beneficiary)
	s.mu.RUnlock()

	if owed == 0 {
		return domain.Claim{}, ErrNothingToClaim
	}

	sig, err := disburse(ctx, beneficiary, owed)
	if err != nil {
		claim := domain.Claim{
			Beneficiary: beneficiary,
			Amount:      owed,
			Status:      domain.ClaimStatusFailed,
			Error:       err.Error(),
			Time:        s.nowFn(),
		}
		key := fmt.Sprintf("%s%s", claimKeyPrefix, beneficiary)
		if persistErr := s.persist(key, walRecord{Claim: &claim}); persistErr != nil {
			return claim, persistErr
		}
		return claim, err
	}

	now := s.nowFn()
	entry := domain.LedgerEntry{
		Beneficiary:      beneficiary,
		PrevBalance:      owed,
		Change:           -int64(owed),
		ResultingBalance: 0,
		Kind:             domain.ChangeKindDebit,
		Reason:           domain.ChangeReasonClaim,
		Time:             now,
	}
	claim := domain.Claim{
		Beneficiary: beneficiary,
		Amount:      owed,
		Status:      domain.ClaimStatusSuccess,
		Signature:   sig,
		Time:        now,
	}

	key := fmt.Sprintf("%s%s", claimKeyPrefix, beneficiary)
	if err := s.persist(key, walRecord{Entry: &entry, Claim: &claim}); err != nil {
		return claim, err
	}
	return claim, nil
}

// ClaimsFor returns the claim history for the beneficiary, oldest first.
func (s *WALStore) ClaimsFor(beneficiary string) []domain.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claims := make([]domain.Claim, len(s.claims[beneficiary]))
	copy(claims, s.claims[beneficiary])
	return claims
}

// EntriesAfter returns all ledger entries written after the provided WAL
// index.
func (s *WALStore) EntriesAfter(index uint64) ([]domain.LedgerEntryRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("reward ledger is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.LedgerEntryRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, entryKeyPrefix) && !strings.HasPrefix(key, claimKeyPrefix) {
			continue
		}
		var record walRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode ledger record")
		}
		if record.Entry == nil {
			continue
		}
		records = append(records, domain.LedgerEntryRecord{
			Index: idx,
			Entry: *record.Entry,
		})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("reward ledger is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
