package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type stubSource struct {
	txs   []*models.LedgerTransaction
	stats ledger.DashboardStats
}

func (s stubSource) Transactions() []*models.LedgerTransaction { return s.txs }
func (s stubSource) GetDashboardStats() ledger.DashboardStats  { return s.stats }

func TestWriteLedgerWorkbook(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)
	src := stubSource{
		txs: []*models.LedgerTransaction{
			{ID: 1, Kind: models.TransactionKindAllocation, From: "admin", To: "vendor-1", Amount: 5000,
				Description: "Allocation for request #1", CreatedAt: at, BlockRef: 1, Provenance: "blk-1/tx-1",
				Reversible: true, Hash: "aa"},
			{ID: 2, Kind: models.TransactionKindComplianceRelease, From: "ledger", To: "vendor-1", Amount: 5000,
				Description: "Compliance release for allocation #1", CreatedAt: at, BlockRef: 2, Provenance: "blk-2/tx-2",
				PrevHash: "aa", Hash: "bb"},
		},
		stats: ledger.DashboardStats{TotalTransactions: 2, ReleasedFunds: 5000, AllocatedEver: 5000, ReleaseRatio: decimal.NewFromInt(1)},
	}

	var buf bytes.Buffer
	if err := WriteLedgerWorkbook(&buf, src); err != nil {
		t.Fatalf("WriteLedgerWorkbook error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(TransactionsSheet)
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][11] != "Hash" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[2][1] != "ComplianceRelease" || rows[2][4] != "5000" || rows[2][8] != "blk-2/tx-2" {
		t.Fatalf("unexpected release row: %v", rows[2])
	}
	if rows[1][6] != "2025-03-14T09:26:53.589Z" {
		t.Fatalf("unexpected timestamp %q", rows[1][6])
	}

	dash, err := f.GetRows(DashboardSheet)
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	last := dash[len(dash)-1]
	if last[0] != "ReleaseRatio" || last[1] != "1.0000" {
		t.Fatalf("unexpected ratio row: %v", last)
	}
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename(time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("MMT", 23400)))
	if got != "ledger-20250101-203405.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
}
