package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/zeebo/blake3"
)

// OrderingSource supplies the block reference stamped on each transaction.
// Next must return a value greater than last.
type OrderingSource interface {
	Next(last uint64) uint64
}

// MonotonicTicks numbers transactions 1, 2, 3, ... in commit order.
type MonotonicTicks struct{}

func (MonotonicTicks) Next(last uint64) uint64 { return last + 1 }

// ClockTicks uses Unix milliseconds, bumped when the clock does not advance.
type ClockTicks struct {
	Now func() time.Time
}

func (c ClockTicks) Next(last uint64) uint64 {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	ms := now().UnixMilli()
	if ms <= 0 || uint64(ms) <= last {
		return last + 1
	}
	return uint64(ms)
}

func provenanceTag(blockRef uint64, id int64) string {
	return fmt.Sprintf("blk-%d/tx-%d", blockRef, id)
}

// chainDomainKey is the default BLAKE3 key of the transaction chain: the
// ASCII domain name zero-padded to 32 bytes.
var chainDomainKey = [32]byte{
	'f', 'u', 'n', 'd', '-', 'l', 'e', 'd', 'g', 'e', 'r', '.', 't', 'x', '.',
	'c', 'h', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

type chainHasher struct {
	key [32]byte
}

// newChainHasher returns a hasher keyed with key, or with the domain key when
// key is empty. A non-empty key must be exactly 32 bytes.
func newChainHasher(key []byte) (*chainHasher, error) {
	h := &chainHasher{key: chainDomainKey}
	if len(key) == 0 {
		return h, nil
	}
	if len(key) != len(h.key) {
		return nil, fmt.Errorf("ledger: chain key must be %d bytes, got %d", len(h.key), len(key))
	}
	copy(h.key[:], key)
	return h, nil
}

type chainPayload struct {
	ID          int64                  `json:"id"`
	Kind        models.TransactionKind `json:"kind"`
	From        string                 `json:"from"`
	To          string                 `json:"to"`
	Amount      int64                  `json:"amount"`
	Description string                 `json:"description"`
	CreatedAt   int64                  `json:"created_at_ms"`
	BlockRef    uint64                 `json:"block_ref"`
	Provenance  string                 `json:"provenance"`
	Reversible  bool                   `json:"reversible"`
	PrevHash    string                 `json:"prev_hash"`
}

func (h *chainHasher) hash(t *models.LedgerTransaction) string {
	payload, err := json.Marshal(chainPayload{
		ID:          t.ID,
		Kind:        t.Kind,
		From:        t.From,
		To:          t.To,
		Amount:      t.Amount,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UnixMilli(),
		BlockRef:    t.BlockRef,
		Provenance:  t.Provenance,
		Reversible:  t.Reversible,
		PrevHash:    t.PrevHash,
	})
	if err != nil {
		// Only plain strings and integers are marshalled.
		panic("ledger: chain payload encoding failed: " + err.Error())
	}
	hasher, err := blake3.NewKeyed(h.key[:])
	if err != nil {
		panic("ledger: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return hex.EncodeToString(hasher.Sum(nil))
}

// record appends a transaction to the staged log. Ids are gap-free from 1.
func (m *mutation) record(kind models.TransactionKind, from, to string, amount int64, description string) (*models.LedgerTransaction, error) {
	if !kind.IsValid() {
		return nil, invalidInput(m.op, "unknown transaction kind %q", kind)
	}
	if amount < 0 {
		return nil, invalidInput(m.op, "transaction amount must not be negative")
	}
	id := m.counters.LastTransactionID + 1
	blockRef := m.l.ordering.Next(m.counters.BlockTick)
	t := &models.LedgerTransaction{
		ID:          id,
		Kind:        kind,
		From:        from,
		To:          to,
		Amount:      amount,
		Description: description,
		CreatedAt:   m.now,
		BlockRef:    blockRef,
		Provenance:  provenanceTag(blockRef, id),
		Reversible:  kind.IsReversible(),
		PrevHash:    m.counters.LastHash,
	}
	t.Hash = m.l.hasher.hash(t)

	m.counters.LastTransactionID = id
	m.counters.BlockTick = blockRef
	m.counters.LastHash = t.Hash
	m.transactions = append(m.transactions, t)
	m.emit(models.EventTransactionRecorded, id, to, amount, string(kind))
	return t, nil
}

// ChainReport is the result of verifying the transaction hash chain.
type ChainReport struct {
	Length   int    `json:"length"`
	LastHash string `json:"last_hash"`
	Valid    bool   `json:"valid"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func verifyTransactions(h *chainHasher, txs []*models.LedgerTransaction) ChainReport {
	report := ChainReport{Length: len(txs), Valid: true}
	prev := ""
	var lastBlock uint64
	for i, t := range txs {
		fail := func(format string, args ...any) ChainReport {
			report.Valid = false
			report.BrokenAt = t.ID
			report.Reason = fmt.Sprintf(format, args...)
			return report
		}
		if want := int64(i + 1); t.ID != want {
			return fail("expected id %d, found %d", want, t.ID)
		}
		if t.PrevHash != prev {
			return fail("prev hash does not match transaction %d", t.ID-1)
		}
		if i > 0 && t.BlockRef <= lastBlock {
			return fail("block ref %d does not advance past %d", t.BlockRef, lastBlock)
		}
		if t.Provenance != provenanceTag(t.BlockRef, t.ID) {
			return fail("provenance %q does not match block ref", t.Provenance)
		}
		if got := h.hash(t); got != t.Hash {
			return fail("hash mismatch")
		}
		prev = t.Hash
		lastBlock = t.BlockRef
	}
	report.LastHash = prev
	return report
}

// VerifyTransactions checks an exported transaction log against key (the
// default domain key when empty). Transactions must be in id order.
func VerifyTransactions(key []byte, txs []*models.LedgerTransaction) (ChainReport, error) {
	h, err := newChainHasher(key)
	if err != nil {
		return ChainReport{}, err
	}
	return verifyTransactions(h, txs), nil
}

// VerifyChain re-hashes the in-memory transaction log.
func (l *Ledger) VerifyChain() ChainReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyTransactions(l.hasher, l.log)
}
