package ledger

import (
	"fmt"

	"github.com/mmdatafocus/fund_ledger/models"
)

func clampReputation(score int) int {
	if score < models.ReputationMin {
		return models.ReputationMin
	}
	if score > models.ReputationMax {
		return models.ReputationMax
	}
	return score
}

// adjustReputation applies delta to a staged profile, clamped to [0,100].
func (m *mutation) adjustReputation(p *models.AccountProfile, delta int) {
	old := p.ReputationScore
	p.ReputationScore = clampReputation(old + delta)
	m.emit(models.EventReputationUpdated, 0, p.Identity, int64(p.ReputationScore),
		fmt.Sprintf("%d -> %d (%+d)", old, p.ReputationScore, delta))
}

// ReputationAudit compares a cached reputation score with the score replayed
// from the transaction log.
type ReputationAudit struct {
	Identity    string `json:"identity"`
	Base        int    `json:"base"`
	Cached      int    `json:"cached"`
	Derived     int    `json:"derived"`
	Adjustments int    `json:"adjustments"`
	Consistent  bool   `json:"consistent"`
}

// DeriveReputation replays compliance releases and emergency withdrawals of
// identity from its base score, clamping after each step.
func (l *Ledger) DeriveReputation(identity string) (ReputationAudit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p := l.registry.get(identity)
	if p == nil {
		return ReputationAudit{}, notFound("DeriveReputation", "account %s is not registered", identity)
	}
	return ReplayReputations([]*models.AccountProfile{p}, l.log)[0], nil
}

// ReplayReputations audits every account against one pass over log. Audits
// come back in the order of accounts.
func ReplayReputations(accounts []*models.AccountProfile, log []*models.LedgerTransaction) []ReputationAudit {
	audits := make([]ReputationAudit, len(accounts))
	index := make(map[string]int, len(accounts))
	for i, p := range accounts {
		audits[i] = ReputationAudit{Identity: p.Identity, Base: p.BaseReputation, Cached: p.ReputationScore, Derived: p.BaseReputation}
		index[p.Identity] = i
	}
	step := func(identity string, delta int) {
		i, ok := index[identity]
		if !ok {
			return
		}
		audits[i].Derived = clampReputation(audits[i].Derived + delta)
		audits[i].Adjustments++
	}
	for _, t := range log {
		switch t.Kind {
		case models.TransactionKindComplianceRelease:
			step(t.To, models.ReputationReleaseBonus)
		case models.TransactionKindWithdrawal:
			step(t.From, models.ReputationRecoveryPenalty)
		}
	}
	for i := range audits {
		audits[i].Consistent = audits[i].Derived == audits[i].Cached
	}
	return audits
}
