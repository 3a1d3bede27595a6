package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dulpton-point/services/store"
)

// GenesisHash is the previous hash of an account's first transaction.
const GenesisHash = "GENESIS"

var ErrDuplicateReference = errors.New("ledger: reference already used")

type AccountSeed struct {
	Username string
	Email    string
}

// Credit describes a positive balance change.
type Credit struct {
	AccountID   string
	Amount      int64
	Kind        store.TransactionKind
	Description string
	Metadata    map[string]any
	Reference   string
	// Refund credits do not count toward lifetime earnings.
	Refund bool
	// Stats receives the weekly earnings bookkeeping when set; the caller
	// persists it. When nil the ledger loads and saves the stats row itself.
	Stats *store.ProgressionStats
}

// Debit describes a withdrawal.
type Debit struct {
	AccountID   string
	Amount      int64
	Description string
	Metadata    map[string]any
	Reference   string
	Pending     bool
}

// Posting is the result of a balance change.
type Posting struct {
	Account     *store.Account     `json:"account"`
	Transaction *store.Transaction `json:"transaction"`
}

type ChainReport struct {
	Valid    bool   `json:"valid"`
	Entries  int    `json:"entries"`
	BrokenAt string `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func hashFields(t *store.Transaction) map[string]string {
	return map[string]string{
		"id":            t.ID,
		"account_id":    t.AccountID,
		"number":        t.Number,
		"kind":          t.Kind.String(),
		"amount":        fmt.Sprintf("%d", t.Amount),
		"balance_after": fmt.Sprintf("%d", t.BalanceAfter),
		"reference_id":  t.Reference(),
		"description":   t.Description,
		"created_at":    t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash": t.PreviousHash,
	}
}

// ComputeHash covers the immutable fields and the previous hash. Status and
// metadata are excluded.
func ComputeHash(t *store.Transaction) string {
	fields := hashFields(t)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Verify walks transactions oldest first and reports the first entry whose
// hash or link does not match.
func Verify(txs []store.Transaction) ChainReport {
	report := ChainReport{Valid: true, Entries: len(txs)}
	prev := GenesisHash
	for i := range txs {
		t := &txs[i]
		switch {
		case t.PreviousHash != prev:
			return ChainReport{Entries: len(txs), BrokenAt: t.ID, Reason: "previous hash mismatch"}
		case t.Hash != ComputeHash(t):
			return ChainReport{Entries: len(txs), BrokenAt: t.ID, Reason: "hash mismatch"}
		}
		prev = t.Hash
	}
	return report
}
