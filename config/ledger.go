package config

import (
	"os"
	"strings"
	"time"
)

const (
	LedgerStoreMemory = "memory"
	LedgerStoreMySQL  = "mysql"
)

// LedgerSettings carries the env-driven knobs of the ledger process.
//
// Set via env:
// - LEDGER_OPERATOR_ID: identity auto-registered as the first Admin (required)
// - LEDGER_CHAIN_KEY: optional 32-byte key for the keyed transaction hash chain
// - LEDGER_PHONE_REGION: default region for contact phone validation (default "MM")
// - LEDGER_NOTIFICATION_TOPIC: Pub/Sub topic for ledger notifications
// - LEDGER_STORE: memory|mysql (default mysql)
// - LEDGER_WRITER_LEASE_SECONDS: redis writer lease TTL (default 30)
type LedgerSettings struct {
	Operator          string
	ChainKey          []byte
	PhoneRegion       string
	NotificationTopic string
	Store             string
	WriterLeaseTTL    time.Duration
}

func LoadLedgerSettings() LedgerSettings {
	s := LedgerSettings{
		Operator:          strings.TrimSpace(os.Getenv("LEDGER_OPERATOR_ID")),
		PhoneRegion:       strings.ToUpper(strings.TrimSpace(os.Getenv("LEDGER_PHONE_REGION"))),
		NotificationTopic: strings.TrimSpace(os.Getenv("LEDGER_NOTIFICATION_TOPIC")),
		Store:             strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_STORE"))),
		WriterLeaseTTL:    time.Duration(intFromEnv("LEDGER_WRITER_LEASE_SECONDS", 30)) * time.Second,
	}
	if key := os.Getenv("LEDGER_CHAIN_KEY"); key != "" {
		s.ChainKey = []byte(key)
	}
	if s.PhoneRegion == "" {
		s.PhoneRegion = "MM"
	}
	if s.Store != LedgerStoreMemory {
		s.Store = LedgerStoreMySQL
	}
	if s.WriterLeaseTTL <= 0 {
		s.WriterLeaseTTL = 30 * time.Second
	}
	return s
}
