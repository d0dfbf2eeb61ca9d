package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fund-ledger")

// LedgerIdentity is the source identity of compliance releases.
const LedgerIdentity = "ledger"

type Options struct {
	// Operator is auto-registered as the first Admin when the store is empty.
	Operator     string
	OperatorName string
	// ChainKey keys the transaction hash chain; empty or exactly 32 bytes.
	ChainKey    []byte
	PhoneRegion string
	Ordering    OrderingSource
	Now         func() time.Time
	Logger      *logrus.Logger
	Notifiers   []Notifier
}

// Ledger owns the fund allocation state. Mutations are strictly serialized:
// each one validates, commits to the Store and applies in memory before the
// next begins. Queries take a read lock and return copies.
type Ledger struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	pendingMu sync.Mutex
	pending   []models.LedgerEvent

	store       Store
	notifiers   []Notifier
	logger      *logrus.Logger
	now         func() time.Time
	ordering    OrderingSource
	hasher      *chainHasher
	phoneRegion string

	registry            *registry
	requests            map[int64]*models.BudgetRequest
	requestsByRequester map[string][]int64
	allocations         map[int64]*models.FundAllocation
	allocationsByVendor map[string][]int64
	fundTotals          map[models.FundTotalKey]int64
	log                 []*models.LedgerTransaction
	counters            models.LedgerCounters
}

// Open loads the ledger from store, verifies the transaction chain and, on an
// empty store, registers opts.Operator as the first Admin.
func Open(ctx context.Context, store Store, opts Options) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger: store is required")
	}
	operator := strings.TrimSpace(opts.Operator)
	if operator == "" {
		return nil, errors.New("ledger: operator identity is required")
	}
	hasher, err := newChainHasher(opts.ChainKey)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:               store,
		notifiers:           append([]Notifier(nil), opts.Notifiers...),
		logger:              opts.Logger,
		now:                 opts.Now,
		ordering:            opts.Ordering,
		hasher:              hasher,
		phoneRegion:         opts.PhoneRegion,
		registry:            newRegistry(),
		requests:            map[int64]*models.BudgetRequest{},
		requestsByRequester: map[string][]int64{},
		allocations:         map[int64]*models.FundAllocation{},
		allocationsByVendor: map[string][]int64{},
		fundTotals:          map[models.FundTotalKey]int64{},
	}
	if l.logger == nil {
		l.logger = config.GetLogger()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.ordering == nil {
		l.ordering = MonotonicTicks{}
	}
	if l.phoneRegion == "" {
		l.phoneRegion = "MM"
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	if err := l.hydrate(snap); err != nil {
		return nil, err
	}

	if snap.IsEmpty() {
		name := strings.TrimSpace(opts.OperatorName)
		if name == "" {
			name = operator
		}
		if err := l.bootstrapOperator(ctx, operator, name); err != nil {
			return nil, err
		}
	} else if p := l.registry.get(operator); p == nil || p.Role != models.RoleAdmin {
		l.logger.WithFields(logrus.Fields{
			"field":    "ledger.Open",
			"operator": operator,
		}).Warn("configured operator is not a registered admin of the loaded ledger")
	}
	return l, nil
}

func (l *Ledger) hydrate(snap *models.LedgerSnapshot) error {
	if snap == nil {
		return nil
	}
	for _, a := range snap.Accounts {
		l.registry.put(a.Clone())
	}
	for _, r := range snap.Requests {
		c := r.Clone()
		l.requests[c.ID] = c
		l.requestsByRequester[c.Requester] = append(l.requestsByRequester[c.Requester], c.ID)
	}
	for _, a := range snap.Allocations {
		c := a.Clone()
		l.allocations[c.ID] = c
		l.allocationsByVendor[c.Vendor] = append(l.allocationsByVendor[c.Vendor], c.ID)
	}
	for _, t := range snap.FundTotals {
		l.fundTotals[t.Key()] = t.Amount
	}
	for _, t := range snap.Transactions {
		c := *t
		l.log = append(l.log, &c)
	}
	l.counters = snap.Counters
	l.counters.ID = models.LedgerCountersRowID

	if report := verifyTransactions(l.hasher, l.log); !report.Valid {
		return fmt.Errorf("ledger: transaction chain broken at id %d: %s", report.BrokenAt, report.Reason)
	}
	if n := int64(len(l.log)); n != l.counters.LastTransactionID {
		return fmt.Errorf("ledger: transaction log has %d entries but counters expect %d", n, l.counters.LastTransactionID)
	}
	return nil
}

func (l *Ledger) bootstrapOperator(ctx context.Context, operator, name string) error {
	caller := Admin(operator)
	return l.mutate(ctx, "BootstrapOperator", caller, func(m *mutation) error {
		p := &models.AccountProfile{
			Identity:        operator,
			Role:            models.RoleAdmin,
			Name:            name,
			Active:          true,
			ReputationScore: models.ReputationOperator,
			BaseReputation:  models.ReputationOperator,
			RegisteredAt:    m.now,
		}
		m.putAccount(p)
		m.emit(models.EventUserRegistered, 0, operator, 0, string(models.RoleAdmin))
		return nil
	})
}

// mutate runs fn against a staged copy of the state under the write lock.
// Nothing is applied unless fn succeeds and the store commits.
func (l *Ledger) mutate(ctx context.Context, op string, caller Caller, fn func(m *mutation) error) error {
	ctx, span := tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.caller", caller.Identity),
		attribute.String("ledger.role", string(caller.Role)),
	))
	defer span.End()

	l.mu.Lock()
	m := l.begin(ctx, op, caller)
	if err := fn(m); err != nil {
		l.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	cs := m.changeSet()
	if err := l.store.Commit(ctx, cs); err != nil {
		l.mu.Unlock()
		config.LogError(l.logger, "ledger", op, "store.Commit", nil, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	l.apply(cs)
	l.enqueue(cs.Events)
	l.mu.Unlock()

	l.deliver()
	span.SetAttributes(attribute.Int("ledger.transactions", len(cs.Transactions)))
	return nil
}

func (l *Ledger) apply(cs *models.ChangeSet) {
	for _, a := range cs.Accounts {
		l.registry.put(a)
	}
	for _, r := range cs.Requests {
		if _, ok := l.requests[r.ID]; !ok {
			l.requestsByRequester[r.Requester] = append(l.requestsByRequester[r.Requester], r.ID)
		}
		l.requests[r.ID] = r
	}
	for _, a := range cs.Allocations {
		if _, ok := l.allocations[a.ID]; !ok {
			l.allocationsByVendor[a.Vendor] = append(l.allocationsByVendor[a.Vendor], a.ID)
		}
		l.allocations[a.ID] = a
	}
	for _, t := range cs.FundTotals {
		l.fundTotals[t.Key()] = t.Amount
	}
	l.log = append(l.log, cs.Transactions...)
	l.counters = cs.Counters
}

// enqueue is called under the write lock, so pending is in commit order.
func (l *Ledger) enqueue(events []models.LedgerEvent) {
	l.pendingMu.Lock()
	l.pending = append(l.pending, events...)
	l.pendingMu.Unlock()
}

// deliver drains pending events to the notifiers. Whoever holds notifyMu
// delivers every queued event, including those of later commits, so a
// mutation returns only after its own events were delivered.
func (l *Ledger) deliver() {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	for {
		l.pendingMu.Lock()
		batch := l.pending
		l.pending = nil
		l.pendingMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			for _, n := range l.notifiers {
				n.Notify(ev)
			}
		}
	}
}

// authorize resolves caller against the registry and checks its role.
func (l *Ledger) authorize(op string, caller Caller, roles ...models.Role) (*models.AccountProfile, error) {
	identity := caller.Identity
	if strings.TrimSpace(identity) == "" {
		return nil, unauthorized(op, "caller identity is required")
	}
	// Requests, allocations and transactions key on the raw identity.
	if strings.TrimSpace(identity) != identity {
		return nil, unauthorized(op, "caller identity %q is not in canonical form", identity)
	}
	p := l.registry.get(identity)
	if p == nil {
		return nil, unauthorized(op, "caller %s is not registered", identity)
	}
	if !p.Active {
		return nil, unauthorized(op, "caller %s is inactive", identity)
	}
	if caller.Role != p.Role {
		return nil, unauthorized(op, "caller %s presented role %s but is registered as %s", identity, caller.Role, p.Role)
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	return nil, unauthorized(op, "role %s may not perform this operation", p.Role)
}

// mutation is the staging area of one ledger operation.
type mutation struct {
	l             *Ledger
	op            string
	caller        Caller
	now           time.Time
	correlationID string
	counters      models.LedgerCounters

	requests     map[int64]*models.BudgetRequest
	allocations  map[int64]*models.FundAllocation
	accounts     map[string]*models.AccountProfile
	totals       map[models.FundTotalKey]int64
	transactions []*models.LedgerTransaction
	events       []models.LedgerEvent
}

func (l *Ledger) begin(ctx context.Context, op string, caller Caller) *mutation {
	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	return &mutation{
		l:      l,
		op:     op,
		caller: caller,
		// MySQL DATETIME(3) keeps milliseconds; truncate so reloaded rows hash the same.
		now:           l.now().UTC().Truncate(time.Millisecond),
		correlationID: cid,
		counters:      l.counters,
		requests:      map[int64]*models.BudgetRequest{},
		allocations:   map[int64]*models.FundAllocation{},
		accounts:      map[string]*models.AccountProfile{},
		totals:        map[models.FundTotalKey]int64{},
	}
}

func (m *mutation) request(id int64) (*models.BudgetRequest, error) {
	if r, ok := m.requests[id]; ok {
		return r, nil
	}
	r, ok := m.l.requests[id]
	if !ok {
		return nil, notFound(m.op, "budget request %d does not exist", id)
	}
	c := r.Clone()
	m.requests[id] = c
	return c, nil
}

func (m *mutation) putRequest(r *models.BudgetRequest) {
	m.requests[r.ID] = r
}

func (m *mutation) allocation(id int64) (*models.FundAllocation, error) {
	if a, ok := m.allocations[id]; ok {
		return a, nil
	}
	a, ok := m.l.allocations[id]
	if !ok {
		return nil, notFound(m.op, "fund allocation %d does not exist", id)
	}
	c := a.Clone()
	m.allocations[id] = c
	return c, nil
}

func (m *mutation) putAllocation(a *models.FundAllocation) {
	m.allocations[a.ID] = a
}

// account returns a staged copy of the profile, or nil when unregistered.
func (m *mutation) account(identity string) *models.AccountProfile {
	if p, ok := m.accounts[identity]; ok {
		return p
	}
	p := m.l.registry.get(identity)
	if p == nil {
		return nil
	}
	c := p.Clone()
	m.accounts[identity] = c
	return c
}

func (m *mutation) putAccount(p *models.AccountProfile) {
	m.accounts[p.Identity] = p
}

// add applies delta to *total, refusing a sum that would leave int64.
func (m *mutation) add(what string, total *int64, delta int64) error {
	cur := *total
	if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
		return invalidInput(m.op, "%s would overflow (%d %+d)", what, cur, delta)
	}
	*total = cur + delta
	return nil
}

func (m *mutation) addFundTotal(scope models.FundScope, name string, delta int64) error {
	key := models.FundTotalKey{Scope: scope, Name: name}
	cur, ok := m.totals[key]
	if !ok {
		cur = m.l.fundTotals[key]
	}
	if err := m.add(fmt.Sprintf("%s %q total", scope, name), &cur, delta); err != nil {
		return err
	}
	m.totals[key] = cur
	return nil
}

func (m *mutation) emit(kind models.EventKind, entityID int64, subject string, amount int64, detail string) {
	m.events = append(m.events, models.LedgerEvent{
		Kind:          kind,
		Role:          m.caller.Role,
		Actor:         m.caller.Identity,
		EntityID:      entityID,
		Subject:       subject,
		Amount:        amount,
		Detail:        detail,
		OccurredAt:    m.now,
		CorrelationID: m.correlationID,
	})
}

func (m *mutation) changeSet() *models.ChangeSet {
	cs := &models.ChangeSet{
		Transactions: m.transactions,
		Events:       m.events,
		Counters:     m.counters,
	}
	cs.Counters.ID = models.LedgerCountersRowID
	for _, p := range m.accounts {
		cs.Accounts = append(cs.Accounts, p)
	}
	sort.Slice(cs.Accounts, func(i, j int) bool { return cs.Accounts[i].Identity < cs.Accounts[j].Identity })
	for _, r := range m.requests {
		cs.Requests = append(cs.Requests, r)
	}
	sort.Slice(cs.Requests, func(i, j int) bool { return cs.Requests[i].ID < cs.Requests[j].ID })
	for _, a := range m.allocations {
		cs.Allocations = append(cs.Allocations, a)
	}
	sort.Slice(cs.Allocations, func(i, j int) bool { return cs.Allocations[i].ID < cs.Allocations[j].ID })
	for k, v := range m.totals {
		cs.FundTotals = append(cs.FundTotals, models.FundTotal{Scope: k.Scope, Name: k.Name, Amount: v})
	}
	sort.Slice(cs.FundTotals, func(i, j int) bool {
		if cs.FundTotals[i].Scope == cs.FundTotals[j].Scope {
			return cs.FundTotals[i].Name < cs.FundTotals[j].Name
		}
		return cs.FundTotals[i].Scope < cs.FundTotals[j].Scope
	})
	return cs
}
