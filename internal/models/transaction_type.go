package models

import "strings"

// TransactionType is the kind of a ledger entry.
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeBuy        TransactionType = "BUY"
	TypeSell       TransactionType = "SELL"
	TypeDividend   TransactionType = "DIVIDEND"
	TypeInterest   TransactionType = "INTEREST"
	TypeFee        TransactionType = "FEE"
)

// UnknownPriority sorts unrecognised types after every known one.
const UnknownPriority = 99

// Same-day ordering: deposits fund buys, withdrawals and fees are debited last.
var typePriority = map[TransactionType]int{
	TypeDeposit:    1,
	TypeBuy:        2,
	TypeSell:       3,
	TypeDividend:   4,
	TypeInterest:   5,
	TypeWithdrawal: 6,
	TypeFee:        7,
}

// ParseTransactionType normalises case and whitespace. Unknown names are
// returned as-is so the replay engine can report them.
func ParseTransactionType(s string) TransactionType {
	return TransactionType(strings.ToUpper(strings.TrimSpace(s)))
}

// Priority is the secondary sort key for same-day transactions.
func (t TransactionType) Priority() int {
	if p, ok := typePriority[t]; ok {
		return p
	}
	return UnknownPriority
}

// Known reports whether t is one of the seven ledger types.
func (t TransactionType) Known() bool {
	_, ok := typePriority[t]
	return ok
}

// IsInflow reports whether the amount is credited to cash.
func (t TransactionType) IsInflow() bool {
	switch t {
	case TypeDeposit, TypeDividend, TypeInterest, TypeSell:
		return true
	}
	return false
}

// IsOutflow reports whether the amount is debited from cash.
func (t TransactionType) IsOutflow() bool {
	switch t {
	case TypeWithdrawal, TypeBuy, TypeFee:
		return true
	}
	return false
}

// IsExternal reports whether the type is a flow across the portfolio boundary.
// Trades, dividends and interest are performance, not flows.
func (t TransactionType) IsExternal() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// IsTrade reports whether the type exchanges cash for a security.
func (t TransactionType) IsTrade() bool {
	return t == TypeBuy || t == TypeSell
}

func (t TransactionType) String() string { return string(t) }
