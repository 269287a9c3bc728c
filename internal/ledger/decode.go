package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/models"
)

// DecodeLog converts raw log rows into typed transactions. A row without a
// readable date cannot be placed in the log and is dropped; any other
// malformed field only degrades that field. Every problem is reported as an
// anomaly. Rows without a uid get one derived from their content and position,
// so decoding the same input twice yields the same identifiers.
func DecodeLog(portfolioID string, raw []models.RawTransaction) ([]models.Transaction, []apperrors.Anomaly) {
	out := make([]models.Transaction, 0, len(raw))
	var anomalies []apperrors.Anomaly
	report := func(kind apperrors.AnomalyKind, id, field, date, format string, args ...any) {
		anomalies = append(anomalies, apperrors.Anomaly{
			Kind:          kind,
			TransactionID: id,
			Field:         field,
			Date:          date,
			Message:       fmt.Sprintf(format, args...),
		})
	}

	for i, r := range raw {
		tx := models.Transaction{
			ID:          strings.TrimSpace(string(r.ID)),
			UID:         strings.TrimSpace(string(r.UID)),
			PortfolioID: strings.TrimSpace(r.PortfolioID),
			Type:        models.ParseTransactionType(r.Type),
			Ticker:      strings.ToUpper(strings.TrimSpace(r.Ticker)),
		}
		if tx.PortfolioID == "" {
			tx.PortfolioID = portfolioID
		}
		if tx.UID == "" {
			tx.UID = derivedUID(tx.PortfolioID, i, r)
		}
		if tx.ID == "" {
			tx.ID = tx.UID
		}

		day, err := parseDay(r.Date)
		if err != nil {
			report(apperrors.AnomalyUnparsableDate, tx.ID, "date", "", "%q: row dropped", r.Date)
			continue
		}
		tx.Date = day
		date := models.DateKey(day)

		if !tx.Type.Known() {
			report(apperrors.AnomalyUnknownType, tx.ID, "type", date, "type %q is cash-neutral", r.Type)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(string(r.Amount)))
		if err != nil {
			report(apperrors.AnomalyUnparsableAmount, tx.ID, "amount", date, "%q: amount treated as zero", string(r.Amount))
			amount = decimal.Zero
		}
		tx.Amount = amount

		if q := strings.TrimSpace(string(r.Quantity)); q != "" {
			qty, err := decimal.NewFromString(q)
			if err != nil {
				report(apperrors.AnomalyUnparsableQuantity, tx.ID, "quantity", date, "%q: quantity ignored", q)
			} else {
				tx.Quantity = decimal.NewNullDecimal(qty)
			}
		}

		tx.CreatedAt = parseCreatedAt(string(r.CreatedAt))
		if n, err := strconv.ParseInt(strings.TrimSpace(string(r.Seq)), 10, 64); err == nil {
			tx.Seq = &n
		}
		if note := strings.TrimSpace(r.Note); note != "" {
			tx.Note = &note
		}
		out = append(out, tx)
	}
	return out, anomalies
}

// rowNamespace scopes identifiers derived for rows that arrive without one.
var rowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("navledger:transaction"))

func derivedUID(portfolioID string, index int, r models.RawTransaction) string {
	key := strings.Join([]string{
		portfolioID,
		strconv.Itoa(index),
		strings.TrimSpace(r.Date),
		strings.ToUpper(strings.TrimSpace(r.Type)),
		strings.ToUpper(strings.TrimSpace(r.Ticker)),
		strings.TrimSpace(string(r.Amount)),
		strings.TrimSpace(string(r.Quantity)),
		strings.TrimSpace(string(r.CreatedAt)),
		strings.TrimSpace(string(r.Seq)),
		strings.TrimSpace(r.Note),
	}, "|")
	return uuid.NewSHA1(rowNamespace, []byte(key)).String()
}

// parseDay accepts a bare day or a timestamp whose first ten characters are one.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	return models.ParseDate(s)
}

// parseCreatedAt accepts RFC 3339 text or epoch milliseconds. Anything else
// is dropped and only loses tie-break precision.
func parseCreatedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return nil
		}
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
