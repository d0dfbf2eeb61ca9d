package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/xuri/excelize/v2"
)

const (
	TransactionsSheet = "Transactions"
	DashboardSheet    = "Dashboard"

	ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// LedgerSource is the read side of the ledger an export needs.
type LedgerSource interface {
	Transactions() []*models.LedgerTransaction
	GetDashboardStats() ledger.DashboardStats
}

var transactionHeadings = []string{
	"ID", "Kind", "From", "To", "Amount", "Description",
	"CreatedAt", "BlockRef", "Provenance", "Reversible", "PrevHash", "Hash",
}

func transactionCellValues(t *models.LedgerTransaction) []interface{} {
	return []interface{}{
		t.ID, string(t.Kind), t.From, t.To, t.Amount, t.Description,
		t.CreatedAt.UTC().Format(time.RFC3339Nano), t.BlockRef, t.Provenance, t.Reversible, t.PrevHash, t.Hash,
	}
}

func dashboardRows(s ledger.DashboardStats) [][]interface{} {
	return [][]interface{}{
		{"TotalRequests", s.TotalRequests},
		{"PendingRequests", s.PendingRequests},
		{"ApprovedRequests", s.ApprovedRequests},
		{"RejectedRequests", s.RejectedRequests},
		{"AllocatedRequests", s.AllocatedRequests},
		{"TotalAllocations", s.TotalAllocations},
		{"ReleasedAllocations", s.ReleasedAllocations},
		{"RecoveredAllocations", s.RecoveredAllocations},
		{"AwaitingCompliance", s.AwaitingCompliance},
		{"TotalTransactions", s.TotalTransactions},
		{"TotalAccounts", s.TotalAccounts},
		{"ActiveVendors", s.ActiveVendors},
		{"AllocatedFunds", s.AllocatedFunds},
		{"ReleasedFunds", s.ReleasedFunds},
		{"AllocatedEver", s.AllocatedEver},
		{"ReleaseRatio", s.ReleaseRatio.StringFixed(4)},
	}
}

func writeRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// BuildLedgerWorkbook lays the transaction log (oldest first) and the
// dashboard figures out on two sheets.
func BuildLedgerWorkbook(src LedgerSource) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(DashboardSheet); err != nil {
		return nil, err
	}

	headings := make([]interface{}, len(transactionHeadings))
	for i, h := range transactionHeadings {
		headings[i] = h
	}
	if err := writeRow(f, TransactionsSheet, 1, headings); err != nil {
		return nil, err
	}
	for i, t := range src.Transactions() {
		if err := writeRow(f, TransactionsSheet, i+2, transactionCellValues(t)); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
	}

	if err := writeRow(f, DashboardSheet, 1, []interface{}{"Metric", "Value"}); err != nil {
		return nil, err
	}
	for i, row := range dashboardRows(src.GetDashboardStats()) {
		if err := writeRow(f, DashboardSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func WriteLedgerWorkbook(w io.Writer, src LedgerSource) error {
	f, err := BuildLedgerWorkbook(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func ExportFilename(now time.Time) string {
	return fmt.Sprintf("ledger-%s.xlsx", now.UTC().Format("20060102-150405"))
}
