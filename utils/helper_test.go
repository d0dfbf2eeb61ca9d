package utils

import (
	"strings"
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	got, err := NormalizePhoneNumber("+1 650-253-0000", "US")
	if err != nil {
		t.Fatalf("NormalizePhoneNumber error: %v", err)
	}
	if got != "+16502530000" {
		t.Fatalf("expected +16502530000, got %s", got)
	}
	if _, err := NormalizePhoneNumber("12", "US"); err == nil {
		t.Fatalf("expected short number to be rejected")
	}
	if _, err := NormalizePhoneNumber("not a phone", "US"); err == nil {
		t.Fatalf("expected garbage to be rejected")
	}
}

func TestSanitizeObjectName(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":            "invoice.pdf",
		"../../etc/passwd":       "passwd",
		`C:\docs\Q1 report.xlsx`: "Q1_report.xlsx",
		"...":                    "document",
		"":                       "document",
	}
	for in, expected := range cases {
		if got := SanitizeObjectName(in); got != expected {
			t.Fatalf("SanitizeObjectName(%q) expected %q, got %q", in, expected, got)
		}
	}
}

func TestComplianceObjectName(t *testing.T) {
	got := ComplianceObjectName(7, "receipt 1.pdf")
	if !strings.HasPrefix(got, "compliance/allocation-7/") || !strings.HasSuffix(got, "_receipt_1.pdf") {
		t.Fatalf("unexpected object name %q", got)
	}
}

func TestDetectDocumentMimeType(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%")
	if got := DetectDocumentMimeType("a.pdf", pdf); got != "application/pdf" || !IsAllowedDocumentType(got) {
		t.Fatalf("expected allowed application/pdf, got %s", got)
	}
	if got := DetectDocumentMimeType("a.txt", []byte("hello world")); IsAllowedDocumentType(got) {
		t.Fatalf("expected plain text (%s) to be rejected", got)
	}
}

type sampleInput struct {
	Name   string `validate:"required"`
	Amount int64  `validate:"gt=0"`
}

func TestFormatValidationErrors(t *testing.T) {
	err := ValidateStruct(sampleInput{})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if got := FormatValidationErrors(err); got != "Amount: gt, Name: required" {
		t.Fatalf("unexpected message %q", got)
	}
	if err := ValidateStruct(sampleInput{Name: "x", Amount: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
