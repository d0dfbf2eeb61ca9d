package ledger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/fund_ledger/models"
)

func TestRecord_ChainsHashesAndProvenance(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 3)

	txs := f.l.Transactions()
	prev := ""
	for i, tx := range txs {
		id := int64(i + 1)
		if tx.ID != id || tx.BlockRef != uint64(id) {
			t.Fatalf("unexpected sequencing: %+v", tx)
		}
		if want := provenanceTag(uint64(id), id); tx.Provenance != want {
			t.Fatalf("expected provenance %s, got %s", want, tx.Provenance)
		}
		if tx.PrevHash != prev || len(tx.Hash) != 64 {
			t.Fatalf("unexpected chain link: %+v", tx)
		}
		if !tx.Reversible {
			t.Fatalf("allocation entries are reversible")
		}
		prev = tx.Hash
	}
	if c := f.l.Counters(); c.LastHash != prev || c.BlockTick != 3 {
		t.Fatalf("counters out of step with log: %+v", c)
	}
	if report := f.l.VerifyChain(); !report.Valid || report.Length != 3 || report.LastHash != prev {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestVerifyTransactions_DetectsTampering(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 4)

	cases := []struct {
		name   string
		mutate func(txs []*models.LedgerTransaction) []*models.LedgerTransaction
		broken int64
	}{
		{"amount", func(txs []*models.LedgerTransaction) []*models.LedgerTransaction {
			txs[2].Amount = 10
			return txs
		}, 3},
		{"description", func(txs []*models.LedgerTransaction) []*models.LedgerTransaction {
			txs[0].Description = "approved"
			return txs
		}, 1},
		{"dropped entry", func(txs []*models.LedgerTransaction) []*models.LedgerTransaction {
			return append(txs[:1], txs[2:]...)
		}, 3},
		{"reordered", func(txs []*models.LedgerTransaction) []*models.LedgerTransaction {
			txs[1], txs[2] = txs[2], txs[1]
			return txs
		}, 3},
	}
	for _, tc := range cases {
		report, err := VerifyTransactions(nil, tc.mutate(f.l.Transactions()))
		if err != nil {
			t.Fatalf("%s: VerifyTransactions error: %v", tc.name, err)
		}
		if report.Valid || report.BrokenAt != tc.broken {
			t.Fatalf("%s: expected break at %d, got %+v", tc.name, tc.broken, report)
		}
	}

	if report, _ := VerifyTransactions(nil, f.l.Transactions()); !report.Valid {
		t.Fatalf("untouched log must verify: %+v", report)
	}
	if report, _ := VerifyTransactions(bytes.Repeat([]byte{7}, 32), f.l.Transactions()); report.Valid {
		t.Fatalf("log must not verify under a different key")
	}
	if _, err := VerifyTransactions([]byte("short"), nil); err == nil {
		t.Fatalf("expected short key error")
	}
}

func TestChainKey_IsUsedForHashing(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	l, err := Open(context.Background(), NewMemoryStore(), Options{Operator: operator, ChainKey: key, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	r, err := l.SubmitRequest(context.Background(), Admin(operator), models.NewBudgetRequest{Department: "IT", Project: "X", Amount: 1})
	if err != nil {
		t.Fatalf("SubmitRequest error: %v", err)
	}
	if _, err := l.RejectRequest(context.Background(), Admin(operator), r.ID, "no"); err != nil {
		t.Fatalf("RejectRequest error: %v", err)
	}
	if report, _ := VerifyTransactions(key, l.Transactions()); !report.Valid {
		t.Fatalf("expected valid chain under configured key: %+v", report)
	}
	if report, _ := VerifyTransactions(nil, l.Transactions()); report.Valid {
		t.Fatalf("chain must not verify under the default key")
	}
}

func TestClockTicks_AlwaysAdvance(t *testing.T) {
	at := time.UnixMilli(5_000)
	c := ClockTicks{Now: func() time.Time { return at }}
	if got := c.Next(0); got != 5_000 {
		t.Fatalf("expected 5000, got %d", got)
	}
	if got := c.Next(5_000); got != 5_001 {
		t.Fatalf("expected 5001 when clock stalls, got %d", got)
	}
	if got := c.Next(9_000); got != 9_001 {
		t.Fatalf("expected 9001 when clock runs behind, got %d", got)
	}
	if got := (MonotonicTicks{}).Next(41); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
