package utils

import (
	"strings"
	"testing"
)

func TestJwtGenerate_RoundTripsCallerClaims(t *testing.T) {
	token, err := JwtGenerate("vendor-1", "Vendor")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}
	claims, err := ParseCallerClaims(token)
	if err != nil {
		t.Fatalf("ParseCallerClaims error: %v", err)
	}
	if claims.Identity != "vendor-1" || claims.Role != "Vendor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Subject != "vendor-1" {
		t.Fatalf("expected subject vendor-1, got %q", claims.Subject)
	}
}

func TestParseCallerClaims_RejectsTamperedToken(t *testing.T) {
	token, err := JwtGenerate("admin-1", "Admin")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token segments, got %d", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := ParseCallerClaims(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
	if _, err := ParseCallerClaims("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
