// seed-admin opens the MySQL-backed ledger so the operator identity is
// registered as its first Admin, then prints a bearer token for it.
//
// Usage (from the repository root):
//
//	LEDGER_OPERATOR_ID=... DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// It takes the writer lease first, so it refuses to run while a server
// instance is writing.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/utils"
	"github.com/mmdatafocus/fund_ledger/workflow"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	settings := config.LoadLedgerSettings()
	if settings.Operator == "" {
		fmt.Fprintln(os.Stderr, "LEDGER_OPERATOR_ID is required")
		return 1
	}
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		return 1
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		return 1
	}

	config.ConnectRedisWithRetry(ctx)
	keeper := workflow.NewLeaseKeeper(config.GetRedisLock(), settings.WriterLeaseTTL, logger)
	if err := keeper.TryAcquire(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "writer lease unavailable (is a server running?): %v\n", err)
		return 2
	}
	defer func() { _ = keeper.Release(context.Background()) }()

	store := models.NewGormLedgerStore(db)
	if err := keeper.FenceStore(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "failed to claim writer fence: %v\n", err)
		return 1
	}

	l, err := ledger.Open(ctx, store, ledger.Options{
		Operator:    settings.Operator,
		ChainKey:    settings.ChainKey,
		PhoneRegion: settings.PhoneRegion,
		Logger:      logger,
		Notifiers:   []ledger.Notifier{ledger.LogNotifier{Logger: logger}},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open ledger: %v\n", err)
		return 1
	}

	p, err := l.GetAccount(settings.Operator)
	if err != nil || p.Role != models.RoleAdmin || !p.Active {
		fmt.Fprintf(os.Stderr, "operator %q is not an active Admin of this ledger\n", settings.Operator)
		return 2
	}

	token, err := utils.JwtGenerate(p.Identity, string(p.Role))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		return 1
	}
	fmt.Printf("Operator %q is Admin (accounts=%d, transactions=%d)\n", p.Identity, len(l.ListAccounts()), l.TransactionCount())
	fmt.Println(token)
	return 0
}
