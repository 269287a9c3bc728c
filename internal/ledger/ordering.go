// Package ledger replays a portfolio's transaction log into daily states.
package ledger

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tropicaldog17/navledger/internal/models"
)

// Sort returns a copy of txs in replay order. The order is total and depends
// only on the transactions themselves, never on their position in the input,
// so sorting an already sorted log is a no-op.
func Sort(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return Compare(&out[i], &out[j]) < 0 })
	return out
}

// Compare orders two transactions by date, type priority, creation time,
// sequence, numeric id and numeric uid. The raw id and uid text (and, for
// duplicated ids, the remaining fields) keep the order total.
func Compare(a, b *models.Transaction) int {
	if c := strings.Compare(a.DateKey(), b.DateKey()); c != 0 {
		return c
	}
	if c := cmpInt(int64(a.Type.Priority()), int64(b.Type.Priority())); c != 0 {
		return c
	}
	if c := cmpInt(createdMillis(a), createdMillis(b)); c != 0 {
		return c
	}
	if c := cmpInt(seqOf(a), seqOf(b)); c != 0 {
		return c
	}
	if c := cmpInt(numericKey(a.ID), numericKey(b.ID)); c != 0 {
		return c
	}
	if c := cmpInt(numericKey(a.UID), numericKey(b.UID)); c != 0 {
		return c
	}
	if c := strings.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	if c := strings.Compare(a.UID, b.UID); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Ticker, b.Ticker); c != 0 {
		return c
	}
	return a.Amount.Cmp(b.Amount)
}

// IsSorted reports whether txs is already in replay order.
func IsSorted(txs []models.Transaction) bool {
	for i := 1; i < len(txs); i++ {
		if Compare(&txs[i-1], &txs[i]) > 0 {
			return false
		}
	}
	return true
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func createdMillis(t *models.Transaction) int64 {
	if t.CreatedAt == nil || t.CreatedAt.IsZero() {
		return 0
	}
	ms := t.CreatedAt.UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms
}

func seqOf(t *models.Transaction) int64 {
	if t.Seq == nil || *t.Seq < 0 {
		return 0
	}
	return *t.Seq
}

// numericKey parses an identifier as a non-negative integer. Anything that
// is not one, or does not fit, counts as 0 and only loses tie-break precision.
func numericKey(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
