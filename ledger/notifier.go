package ledger

import (
	"sync"

	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/sirupsen/logrus"
)

// Notifier receives every committed LedgerEvent in commit order.
// Notify must not block. It may call ledger queries, which can already
// reflect later commits, but not mutations.
type Notifier interface {
	Notify(ev models.LedgerEvent)
}

type NotifierFunc func(ev models.LedgerEvent)

func (f NotifierFunc) Notify(ev models.LedgerEvent) { f(ev) }

// EventRecorder keeps every event it sees.
type EventRecorder struct {
	mu     sync.Mutex
	events []models.LedgerEvent
}

func (r *EventRecorder) Notify(ev models.LedgerEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *EventRecorder) Events() []models.LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.LedgerEvent(nil), r.events...)
}

// Kinds returns the recorded event kinds in order.
func (r *EventRecorder) Kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *EventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// LogNotifier writes each event as a structured logrus entry.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) Notify(ev models.LedgerEvent) {
	if n.Logger == nil {
		return
	}
	n.Logger.WithFields(logrus.Fields{
		"field":          "LedgerEvent",
		"kind":           ev.Kind,
		"role":           ev.Role,
		"actor":          ev.Actor,
		"entity_id":      ev.EntityID,
		"subject":        ev.Subject,
		"amount":         ev.Amount,
		"correlation_id": ev.CorrelationID,
	}).Info(ev.Detail)
}
