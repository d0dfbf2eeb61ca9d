package ledger

import (
	"testing"

	"github.com/mmdatafocus/fund_ledger/models"
)

func seedTransactions(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := f.submit(f.admin, "IT", 1)
		if _, err := f.l.RejectRequest(f.ctx, f.admin, r.ID, "no"); err != nil {
			t.Fatalf("RejectRequest error: %v", err)
		}
	}
}

func TestGetTransactionHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 5)

	cases := []struct {
		limit, offset int
		want          []int64
	}{
		{2, 0, []int64{5, 4}},
		{5, 0, []int64{5, 4, 3, 2, 1}},
		{100, 0, []int64{5, 4, 3, 2, 1}},
		{5, 3, []int64{2, 1}},
		{1, 4, []int64{1}},
		{3, 5, []int64{}},
		{3, 50, []int64{}},
		{0, 0, []int64{}},
	}
	for _, tc := range cases {
		page, err := f.l.GetTransactionHistory(tc.limit, tc.offset)
		if err != nil {
			t.Fatalf("GetTransactionHistory(%d, %d) error: %v", tc.limit, tc.offset, err)
		}
		if len(page) != len(tc.want) {
			t.Fatalf("GetTransactionHistory(%d, %d) expected %v, got %d items", tc.limit, tc.offset, tc.want, len(page))
		}
		for i, tx := range page {
			if tx.ID != tc.want[i] {
				t.Fatalf("GetTransactionHistory(%d, %d) item %d expected id %d, got %d", tc.limit, tc.offset, i, tc.want[i], tx.ID)
			}
		}
	}
}

func TestGetTransactionHistory_RejectsBadPaging(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 1)
	for _, tc := range [][2]int{{-1, 0}, {1, -1}, {MaxPageSize + 1, 0}} {
		_, err := f.l.GetTransactionHistory(tc[0], tc[1])
		expectKind(t, err, ErrInvalidInput)
	}
}

func TestGetTransactionHistory_ReturnsCopies(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 1)
	page, _ := f.l.GetTransactionHistory(1, 0)
	page[0].Amount = 999
	if report := f.l.VerifyChain(); !report.Valid {
		t.Fatalf("mutating a returned page must not affect the log: %+v", report)
	}
}

func TestListQueries(t *testing.T) {
	f := newFixture(t)
	v1 := f.register("vendor-1", models.RoleVendor)
	v2 := f.register("vendor-2", models.RoleVendor)
	f.allocated(v1, 10)
	f.allocated(v2, 20)
	f.allocated(v1, 30)

	reqs := f.l.ListRequestsByRequester(v1.Identity)
	if len(reqs) != 2 || reqs[0].ID != 1 || reqs[1].ID != 3 {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	allocs := f.l.ListAllocationsByVendor(v1.Identity)
	if len(allocs) != 2 || allocs[0].AllocatedAmount != 10 || allocs[1].AllocatedAmount != 30 {
		t.Fatalf("unexpected allocations %+v", allocs)
	}
	if got := f.l.ListRequestsByRequester("nobody"); len(got) != 0 {
		t.Fatalf("expected no requests, got %d", len(got))
	}
	_, err := f.l.GetRequest(4)
	expectKind(t, err, ErrNotFound)
	_, err = f.l.GetAllocation(-1)
	expectKind(t, err, ErrNotFound)
	_, err = f.l.GetAccount("nobody")
	expectKind(t, err, ErrNotFound)

	allocs[0].AllocatedAmount = 0
	if a, _ := f.l.GetAllocation(allocs[0].ID); a.AllocatedAmount != 10 {
		t.Fatalf("queries must return copies")
	}
}

func TestGetDashboardStats(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)
	f.register("auditor-1", models.RoleAuditor)

	a := f.allocated(vendor, 300)
	f.allocated(vendor, 100)
	f.submit(vendor, "Ops", 5)
	if _, err := f.l.SubmitComplianceDocuments(f.ctx, vendor, a.ID, []string{"d"}); err != nil {
		t.Fatalf("SubmitComplianceDocuments error: %v", err)
	}
	if _, err := f.l.VerifyCompliance(f.ctx, f.admin, a.ID); err != nil {
		t.Fatalf("VerifyCompliance error: %v", err)
	}

	s := f.l.GetDashboardStats()
	if s.TotalRequests != 3 || s.PendingRequests != 1 || s.AllocatedRequests != 2 {
		t.Fatalf("unexpected request stats: %+v", s)
	}
	if s.TotalAllocations != 2 || s.ReleasedAllocations != 1 || s.AwaitingCompliance != 1 {
		t.Fatalf("unexpected allocation stats: %+v", s)
	}
	if s.TotalAccounts != 3 || s.ActiveVendors != 1 || s.TotalTransactions != 3 {
		t.Fatalf("unexpected account stats: %+v", s)
	}
	if s.AllocatedFunds != 400 || s.ReleasedFunds != 300 || s.ReleaseRatio.String() != "0.75" {
		t.Fatalf("unexpected fund stats: %+v", s)
	}
}

func TestSnapshot_IsConsistentCopy(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)
	a := f.allocated(vendor, 700)
	seedTransactions(t, f, 2)

	snap := f.l.Snapshot()
	if snap.Counters != f.l.Counters() || len(snap.Transactions) != f.l.TransactionCount() {
		t.Fatalf("snapshot disagrees with the ledger: %+v", snap.Counters)
	}
	if len(snap.Accounts) != 2 || snap.Accounts[0].Identity != operator || len(snap.Allocations) != 1 || len(snap.Requests) != 3 {
		t.Fatalf("unexpected snapshot contents: %d accounts, %d allocations, %d requests", len(snap.Accounts), len(snap.Allocations), len(snap.Requests))
	}
	if report := f.l.VerifySnapshotChain(snap); !report.Valid || report.Length != 3 {
		t.Fatalf("unexpected snapshot chain: %+v", report)
	}

	snap.Allocations[0].AllocatedAmount = 1
	snap.Accounts[1].ReputationScore = 0
	snap.Transactions[0].Amount = 1
	if got, _ := f.l.GetAllocation(a.ID); got.AllocatedAmount != 700 {
		t.Fatalf("mutating the snapshot changed the allocation")
	}
	if got, _ := f.l.GetAccount(vendor.Identity); got.ReputationScore != models.ReputationDefault {
		t.Fatalf("mutating the snapshot changed the account")
	}
	if report := f.l.VerifyChain(); !report.Valid {
		t.Fatalf("mutating the snapshot changed the log: %+v", report)
	}
	if report := f.l.VerifySnapshotChain(snap); report.Valid {
		t.Fatalf("a tampered snapshot must fail verification")
	}
}
