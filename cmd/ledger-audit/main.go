// ledger-audit verifies a persisted ledger offline: the transaction hash
// chain first, then (when the chain is intact) the full reconciliation of
// counters, fund totals and reputation scores.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/ledger-audit
//	go run ./cmd/ledger-audit --source snapshot.json --json
//	go run ./cmd/ledger-audit --dump snapshot.json
//
// Exit status is 0 when clean, 2 when issues were found and 1 on errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/workflow"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var errReadOnly = errors.New("ledger-audit opens the ledger read-only")

// snapshotStore serves an already loaded snapshot and refuses commits.
type snapshotStore struct {
	snap *models.LedgerSnapshot
}

func (s snapshotStore) Load(context.Context) (*models.LedgerSnapshot, error) { return s.snap, nil }
func (s snapshotStore) Commit(context.Context, *models.ChangeSet) error      { return errReadOnly }

type auditResult struct {
	Chain          ledger.ChainReport             `json:"chain"`
	Reconciliation *workflow.ReconciliationReport `json:"reconciliation,omitempty"`
}

func (r auditResult) clean() bool {
	return r.Chain.Valid && (r.Reconciliation == nil || r.Reconciliation.OK())
}

func loadSnapshot(ctx context.Context, source string) (*models.LedgerSnapshot, error) {
	if source == "mysql" {
		config.ConnectDatabaseWithRetry()
		db := config.GetDB()
		if db == nil {
			return nil, errors.New("database not initialized; set DB_* env vars")
		}
		return models.NewGormLedgerStore(db).Load(ctx)
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	var snap models.LedgerSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	return &snap, nil
}

func audit(ctx context.Context, snap *models.LedgerSnapshot, operator string, key []byte, logger *logrus.Logger) (auditResult, error) {
	var res auditResult
	chain, err := ledger.VerifyTransactions(key, snap.Transactions)
	if err != nil {
		return res, err
	}
	res.Chain = chain
	if !chain.Valid {
		return res, nil
	}

	l, err := ledger.Open(ctx, snapshotStore{snap: snap}, ledger.Options{
		Operator: operator,
		ChainKey: key,
		Logger:   logger,
	})
	if err != nil {
		return res, err
	}
	report := workflow.ReconcileLedger(l)
	res.Reconciliation = &report
	return res, nil
}

func main() {
	settings := config.LoadLedgerSettings()

	source := flag.String("source", "mysql", `"mysql" or the path of a JSON snapshot`)
	operator := flag.String("operator", settings.Operator, "operator identity (defaults to LEDGER_OPERATOR_ID)")
	chainKey := flag.String("chain-key", string(settings.ChainKey), "32-byte chain key (defaults to LEDGER_CHAIN_KEY)")
	dump := flag.String("dump", "", "write the loaded snapshot as JSON to this path and exit")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	logger := config.GetLogger()
	ctx := context.Background()

	snap, err := loadSnapshot(ctx, *source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load ledger: %v\n", err)
		os.Exit(1)
	}

	if *dump != "" {
		raw, err := json.MarshalIndent(snap, "", "  ")
		if err == nil {
			err = os.WriteFile(*dump, raw, 0o600)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to dump snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d transactions to %s\n", len(snap.Transactions), *dump)
		return
	}

	if snap.IsEmpty() {
		fmt.Println("ledger is empty; nothing to audit")
		return
	}
	if *operator == "" {
		fmt.Fprintln(os.Stderr, "--operator or LEDGER_OPERATOR_ID is required")
		os.Exit(1)
	}

	var key []byte
	if *chainKey != "" {
		key = []byte(*chainKey)
	}
	res, err := audit(ctx, snap, *operator, key, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	} else {
		printResult(res)
	}
	if !res.clean() {
		os.Exit(2)
	}
}

func printResult(res auditResult) {
	if res.Chain.Valid {
		fmt.Printf("chain: ok (%d transactions, head %s)\n", res.Chain.Length, res.Chain.LastHash)
	} else {
		fmt.Printf("chain: BROKEN at transaction %d: %s\n", res.Chain.BrokenAt, res.Chain.Reason)
		return
	}
	r := res.Reconciliation
	fmt.Printf("allocated funds: %d (expected %d)\n", r.AllocatedFunds, r.ExpectedAllocatedFunds)
	fmt.Printf("released funds:  %d (expected %d)\n", r.ReleasedFunds, r.ExpectedReleasedFunds)
	if r.OK() {
		fmt.Println("reconciliation: ok")
		return
	}
	for _, issue := range r.Issues {
		fmt.Printf("issue: [%s] %s\n", issue.CheckType, issue.Details)
	}
}
