package models

import (
	"bytes"
	"encoding/json"
)

// LooseString accepts a JSON string, number, boolean or null and keeps its
// textual form. Numbers are never routed through float64.
type LooseString string

func (l *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LooseString(s)
		return nil
	}
	*l = LooseString(b)
	return nil
}

// RawTransaction is a log row as it arrives from an import file or another
// system. Fields that need parsing are kept as text so a malformed value only
// degrades that field.
type RawTransaction struct {
	ID          LooseString `json:"id"`
	UID         LooseString `json:"uid"`
	PortfolioID string      `json:"portfolioId"`
	Date        string      `json:"date"`
	Type        string      `json:"type"`
	Ticker      string      `json:"ticker"`
	Amount      LooseString `json:"amount"`
	Quantity    LooseString `json:"quantity"`
	CreatedAt   LooseString `json:"createdAt"`
	Seq         LooseString `json:"seq"`
	Note        string      `json:"note"`
}
