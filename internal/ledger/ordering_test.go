package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tropicaldog17/navledger/internal/models"
)

func ids(txs []models.Transaction) []string {
	out := make([]string, len(txs))
	for i := range txs {
		out[i] = txs[i].ID
	}
	return out
}

func TestSort_TypePriorityWithinDay(t *testing.T) {
	day := "2024-01-02"
	log := []models.Transaction{
		cashTx("fee", day, models.TypeFee, "1"),
		cashTx("wd", day, models.TypeWithdrawal, "10"),
		cashTx("int", day, models.TypeInterest, "0.10"),
		cashTx("div", day, models.TypeDividend, "3"),
		tradeTx("sell", day, models.TypeSell, "SPY", "50", "-0.5"),
		tradeTx("buy", day, models.TypeBuy, "SPY", "100", "1"),
		cashTx("odd", day, "SPLIT", "0"),
		cashTx("dep", day, models.TypeDeposit, "1000"),
		cashTx("prev", "2024-01-01", models.TypeFee, "1"),
	}
	require.Equal(t,
		[]string{"prev", "dep", "buy", "sell", "div", "int", "wd", "fee", "odd"},
		ids(Sort(log)))
}

func TestSort_TieBreakers(t *testing.T) {
	at := func(ms int64) *time.Time { v := time.UnixMilli(ms).UTC(); return &v }
	seq := func(n int64) *int64 { return &n }

	a := cashTx("a", "2024-01-02", models.TypeDeposit, "1")
	a.CreatedAt = at(2000)
	b := cashTx("b", "2024-01-02", models.TypeDeposit, "1")
	b.CreatedAt = at(1000)
	require.Equal(t, []string{"b", "a"}, ids(Sort([]models.Transaction{a, b})))

	c := cashTx("c", "2024-01-02", models.TypeDeposit, "1")
	c.Seq = seq(7)
	d := cashTx("d", "2024-01-02", models.TypeDeposit, "1")
	d.Seq = seq(3)
	require.Equal(t, []string{"d", "c"}, ids(Sort([]models.Transaction{c, d})))

	// Numeric ids compare as numbers, not text.
	e := cashTx("10", "2024-01-02", models.TypeDeposit, "1")
	f := cashTx("9", "2024-01-02", models.TypeDeposit, "1")
	require.Equal(t, []string{"9", "10"}, ids(Sort([]models.Transaction{e, f})))

	// Same numeric key falls through to uid and then raw text.
	g := cashTx("x", "2024-01-02", models.TypeDeposit, "1")
	g.UID = "5"
	h := cashTx("y", "2024-01-02", models.TypeDeposit, "1")
	h.UID = "4"
	require.Equal(t, []string{"y", "x"}, ids(Sort([]models.Transaction{g, h})))
}

func TestSort_MalformedMetadataNormalisesToZero(t *testing.T) {
	neg := int64(-5)
	before := time.UnixMilli(-1000).UTC()

	a := cashTx("alpha", "2024-01-02", models.TypeDeposit, "1")
	a.Seq = &neg
	a.CreatedAt = &before
	b := cashTx("beta", "2024-01-02", models.TypeDeposit, "1")
	zero := int64(0)
	b.Seq = &zero

	require.Equal(t, 0, Compare(&a, &a))
	// Both tie on every numeric key, so text order decides.
	require.Equal(t, []string{"alpha", "beta"}, ids(Sort([]models.Transaction{b, a})))
	require.Equal(t, int64(0), numericKey("99999999999999999999999"))
	require.Equal(t, int64(0), numericKey("abc"))
	require.Equal(t, int64(42), numericKey(" 42 "))
}

func TestSort_PureAndIdempotent(t *testing.T) {
	log := sampleLog()
	original := ids(log)

	once := Sort(log)
	require.Equal(t, original, ids(log), "input must not be reordered")
	require.True(t, IsSorted(once))
	require.Equal(t, ids(once), ids(Sort(once)))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.Transaction(nil), log...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.Equal(t, ids(once), ids(Sort(shuffled)))
	}
}

func TestSort_DuplicateIDsStillTotal(t *testing.T) {
	a := cashTx("dup", "2024-01-02", models.TypeDeposit, "5")
	b := cashTx("dup", "2024-01-02", models.TypeDeposit, "3")
	first := Sort([]models.Transaction{a, b})
	second := Sort([]models.Transaction{b, a})
	require.True(t, first[0].Amount.Equal(decimal.NewFromInt(3)))
	require.True(t, second[0].Amount.Equal(decimal.NewFromInt(3)))
}
