package ledger

import (
	"testing"

	"github.com/mmdatafocus/fund_ledger/models"
)

func TestClampReputation(t *testing.T) {
	cases := map[int]int{-40: 0, 0: 0, 50: 50, 100: 100, 130: 100}
	for in, want := range cases {
		if got := clampReputation(in); got != want {
			t.Fatalf("clampReputation(%d) expected %d, got %d", in, want, got)
		}
	}
}

func TestReputation_PenaltiesClampAtZero(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)

	want := []int{30, 10, 0, 0}
	for i, score := range want {
		a := f.allocated(vendor, int64(10+i))
		if _, err := f.l.EmergencyRecover(f.ctx, f.admin, a.ID, "clawback"); err != nil {
			t.Fatalf("EmergencyRecover error: %v", err)
		}
		p, _ := f.l.GetAccount(vendor.Identity)
		if p.ReputationScore != score {
			t.Fatalf("after %d recoveries expected %d, got %d", i+1, score, p.ReputationScore)
		}
	}
}

func TestReputation_BonusesClampAtHundredAndReplay(t *testing.T) {
	f := newFixture(t)
	vendor := f.register("vendor-1", models.RoleVendor)

	for i := 0; i < 6; i++ {
		a := f.allocated(vendor, 5)
		if _, err := f.l.SubmitComplianceDocuments(f.ctx, vendor, a.ID, []string{"doc"}); err != nil {
			t.Fatalf("SubmitComplianceDocuments error: %v", err)
		}
		if _, err := f.l.VerifyCompliance(f.ctx, f.admin, a.ID); err != nil {
			t.Fatalf("VerifyCompliance error: %v", err)
		}
	}
	a := f.allocated(vendor, 5)
	if _, err := f.l.EmergencyRecover(f.ctx, f.admin, a.ID, "x"); err != nil {
		t.Fatalf("EmergencyRecover error: %v", err)
	}

	audit, err := f.l.DeriveReputation(vendor.Identity)
	if err != nil {
		t.Fatalf("DeriveReputation error: %v", err)
	}
	if audit.Cached != 80 || audit.Derived != 80 || !audit.Consistent || audit.Adjustments != 7 {
		t.Fatalf("unexpected audit: %+v", audit)
	}
	_, err = f.l.DeriveReputation("ghost")
	expectKind(t, err, ErrNotFound)
}
