package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/mmdatafocus/fund_ledger/models"
)

// Store is the durable side of the ledger. Commit must be atomic: either the
// whole change set is persisted or none of it is.
type Store interface {
	Load(ctx context.Context) (*models.LedgerSnapshot, error)
	Commit(ctx context.Context, cs *models.ChangeSet) error
}

// MemoryStore keeps committed state in process. Used by tests and by
// LEDGER_STORE=memory runs; reopening a Ledger on the same MemoryStore
// replays what was committed.
type MemoryStore struct {
	mu           sync.Mutex
	requests     map[int64]*models.BudgetRequest
	allocations  map[int64]*models.FundAllocation
	accounts     map[string]*models.AccountProfile
	totals       map[models.FundTotalKey]models.FundTotal
	transactions []*models.LedgerTransaction
	events       []models.LedgerEvent
	counters     models.LedgerCounters
	commits      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:    map[int64]*models.BudgetRequest{},
		allocations: map[int64]*models.FundAllocation{},
		accounts:    map[string]*models.AccountProfile{},
		totals:      map[models.FundTotalKey]models.FundTotal{},
	}
}

func (s *MemoryStore) Load(ctx context.Context) (*models.LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &models.LedgerSnapshot{Counters: s.counters}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, a.Clone())
	}
	sort.Slice(snap.Accounts, func(i, j int) bool {
		if snap.Accounts[i].RegisteredAt.Equal(snap.Accounts[j].RegisteredAt) {
			return snap.Accounts[i].Identity < snap.Accounts[j].Identity
		}
		return snap.Accounts[i].RegisteredAt.Before(snap.Accounts[j].RegisteredAt)
	})
	for _, r := range s.requests {
		snap.Requests = append(snap.Requests, r.Clone())
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].ID < snap.Requests[j].ID })
	for _, a := range s.allocations {
		snap.Allocations = append(snap.Allocations, a.Clone())
	}
	sort.Slice(snap.Allocations, func(i, j int) bool { return snap.Allocations[i].ID < snap.Allocations[j].ID })
	for _, t := range s.totals {
		snap.FundTotals = append(snap.FundTotals, t)
	}
	for _, t := range s.transactions {
		c := *t
		snap.Transactions = append(snap.Transactions, &c)
	}
	return snap, nil
}

func (s *MemoryStore) Commit(ctx context.Context, cs *models.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range cs.Accounts {
		s.accounts[a.Identity] = a.Clone()
	}
	for _, r := range cs.Requests {
		s.requests[r.ID] = r.Clone()
	}
	for _, a := range cs.Allocations {
		s.allocations[a.ID] = a.Clone()
	}
	for _, t := range cs.FundTotals {
		s.totals[t.Key()] = t
	}
	for _, t := range cs.Transactions {
		c := *t
		s.transactions = append(s.transactions, &c)
	}
	s.events = append(s.events, cs.Events...)
	s.counters = cs.Counters
	s.commits++
	return nil
}

// Events returns every event committed so far, in commit order.
func (s *MemoryStore) Events() []models.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LedgerEvent(nil), s.events...)
}

// Commits returns the number of successful commits.
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}
