package ledger

import (
	"math"
	"testing"

	"github.com/mmdatafocus/fund_ledger/models"
)

func TestSubmitRequest_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)
	f.rec.Reset()

	cases := []struct {
		name  string
		input models.NewBudgetRequest
	}{
		{"zero amount", models.NewBudgetRequest{Department: "IT", Project: "X", Amount: 0}},
		{"negative amount", models.NewBudgetRequest{Department: "IT", Project: "X", Amount: -5}},
		{"blank department", models.NewBudgetRequest{Department: "   ", Project: "X", Amount: 5}},
		{"missing project", models.NewBudgetRequest{Department: "IT", Amount: 5}},
		{"amount above cap", models.NewBudgetRequest{Department: "IT", Project: "X", Amount: models.MaxAmount + 1}},
		{"max int64 amount", models.NewBudgetRequest{Department: "IT", Project: "X", Amount: math.MaxInt64}},
	}
	for _, tc := range cases {
		_, err := f.l.SubmitRequest(f.ctx, vendor, tc.input)
		if KindOf(err) != ErrInvalidInput {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
	if len(f.rec.Events()) != 0 {
		t.Fatalf("rejected submissions must not emit events")
	}
	if _, err := f.l.SubmitRequest(f.ctx, vendor, models.NewBudgetRequest{Department: "IT", Project: "X", Amount: models.MaxAmount}); err != nil {
		t.Fatalf("amount at the cap must be accepted: %v", err)
	}
}

func TestSubmitRequest_AssignsSequentialIds(t *testing.T) {
	f := newFixture(t)
	auditor := f.register("auditor-1", models.RoleAuditor)
	f.rec.Reset()
	for want := int64(1); want <= 3; want++ {
		r := f.submit(auditor, " Finance ", 10*want)
		if r.ID != want || r.State != models.BudgetStatePending || r.Requester != auditor.Identity {
			t.Fatalf("unexpected request: %+v", r)
		}
		if r.Department != "Finance" {
			t.Fatalf("expected trimmed department, got %q", r.Department)
		}
	}
	if f.l.TransactionCount() != 0 {
		t.Fatalf("submitting must not write transactions")
	}
	if got := f.rec.Kinds(); len(got) != 3 || got[0] != models.EventBudgetRequestCreated {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestSubmitRequest_RequiresRegisteredActiveCaller(t *testing.T) {
	f := newFixture(t)
	input := models.NewBudgetRequest{Department: "IT", Project: "X", Amount: 5}

	_, err := f.l.SubmitRequest(f.ctx, Vendor("stranger"), input)
	expectKind(t, err, ErrUnauthorized)

	vendor := f.register("vendor-1", models.RoleVendor)
	_, err = f.l.SubmitRequest(f.ctx, Admin(vendor.Identity), input)
	expectKind(t, err, ErrUnauthorized)

	if _, err := f.l.SetAccountActive(f.ctx, f.admin, vendor.Identity, false); err != nil {
		t.Fatalf("SetAccountActive error: %v", err)
	}
	_, err = f.l.SubmitRequest(f.ctx, vendor, input)
	expectKind(t, err, ErrUnauthorized)
}

func TestApproveRequest_Transitions(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)
	r := f.submit(vendor, "IT", 300)

	_, err := f.l.ApproveRequest(f.ctx, vendor, r.ID)
	expectKind(t, err, ErrUnauthorized)
	_, err = f.l.ApproveRequest(f.ctx, f.admin, 99)
	expectKind(t, err, ErrNotFound)
	_, err = f.l.ApproveRequest(f.ctx, f.admin, 0)
	expectKind(t, err, ErrNotFound)

	got, err := f.l.ApproveRequest(f.ctx, f.admin, r.ID)
	if err != nil {
		t.Fatalf("ApproveRequest error: %v", err)
	}
	if got.State != models.BudgetStateApproved || got.ApprovedBy == nil || *got.ApprovedBy != operator || got.ApprovedAt == nil {
		t.Fatalf("unexpected approved request: %+v", got)
	}
	if f.l.GetFundTotal(models.FundScopeDepartment, "IT") != 300 || f.l.GetFundTotal(models.FundScopeProject, "P-IT") != 300 {
		t.Fatalf("approval must add to department and project totals")
	}

	_, err = f.l.ApproveRequest(f.ctx, f.admin, r.ID)
	expectKind(t, err, ErrInvalidState)
	_, err = f.l.RejectRequest(f.ctx, f.admin, r.ID, "late")
	expectKind(t, err, ErrInvalidState)
	if f.l.GetFundTotal(models.FundScopeDepartment, "IT") != 300 {
		t.Fatalf("double approval must not double count")
	}
}

func TestRejectRequest_Validation(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)
	r := f.submit(vendor, "IT", 300)

	_, err := f.l.RejectRequest(f.ctx, f.admin, r.ID, "  ")
	expectKind(t, err, ErrInvalidInput)
	_, err = f.l.RejectRequest(f.ctx, f.admin, 42, "reason")
	expectKind(t, err, ErrNotFound)

	if _, err := f.l.RejectRequest(f.ctx, f.admin, r.ID, "reason"); err != nil {
		t.Fatalf("RejectRequest error: %v", err)
	}
	_, err = f.l.RejectRequest(f.ctx, f.admin, r.ID, "again")
	expectKind(t, err, ErrInvalidState)
	_, err = f.l.ApproveRequest(f.ctx, f.admin, r.ID)
	expectKind(t, err, ErrInvalidState)
	_, err = f.l.AllocateFunds(f.ctx, f.admin, r.ID, vendor.Identity, "")
	expectKind(t, err, ErrInvalidState)
	if f.l.TransactionCount() != 1 {
		t.Fatalf("expected exactly one transaction, got %d", f.l.TransactionCount())
	}
}

func TestCallerIdentity_MustBeCanonical(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)
	a := f.allocated(vendor, 100)
	pending := f.submit(vendor, "IT", 5)
	f.rec.Reset()
	commits := f.store.Commits()

	input := models.NewBudgetRequest{Department: "IT", Project: "X", Amount: 5}
	for _, padded := range []string{" vendor-1", "vendor-1 ", "\tvendor-1\n"} {
		_, err := f.l.SubmitRequest(f.ctx, Vendor(padded), input)
		expectKind(t, err, ErrUnauthorized)
		_, err = f.l.SubmitComplianceDocuments(f.ctx, Vendor(padded), a.ID, []string{"doc"})
		expectKind(t, err, ErrUnauthorized)
		if got := f.l.ListRequestsByRequester(padded); len(got) != 0 {
			t.Fatalf("request indexed under %q: %+v", padded, got)
		}
	}
	_, err := f.l.ApproveRequest(f.ctx, Admin(" "+operator), pending.ID)
	expectKind(t, err, ErrUnauthorized)

	if got := f.l.ListRequestsByRequester(vendor.Identity); len(got) != 2 {
		t.Fatalf("expected the two canonical requests, got %d", len(got))
	}
	if f.store.Commits() != commits || len(f.rec.Events()) != 0 {
		t.Fatalf("refused callers must not change the ledger")
	}
}
