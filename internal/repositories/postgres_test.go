package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/tropicaldog17/navledger/internal/accrual"
	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type testDB struct {
	container testcontainers.Container
	database  *db.DB
	raw       *sql.DB
}

func setupPostgres(t *testing.T) *testDB {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	database, err := db.Connect(&db.Config{Driver: db.DriverPostgres, DSN: connStr})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	// A second, plain database/sql handle reads rows back independently of gorm.
	raw, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open lib/pq connection: %v", err)
	}

	tdb := &testDB{container: pgContainer, database: database, raw: raw}
	t.Cleanup(func() { tdb.cleanup(t) })
	return tdb
}

func (tdb *testDB) cleanup(t *testing.T) {
	_ = tdb.raw.Close()
	_ = tdb.database.Close()
	if err := tdb.container.Terminate(context.Background()); err != nil {
		t.Errorf("Failed to terminate container: %v", err)
	}
}

func TestPostgres_AccrualAndUpsertByKey(t *testing.T) {
	tdb := setupPostgres(t)
	ctx := context.Background()

	txs := NewTransactionRepository(tdb.database)
	dep := tx("d1", "p_1", "2024-01-01", models.TypeDeposit, "1000")
	require.NoError(t, txs.Upsert(ctx, &dep))
	// Underscore in the portfolio id must not act as a LIKE wildcard.
	decoy := tx("interest-pX1-2024-01-02", "pX1", "2024-01-02", models.TypeInterest, "5")
	require.NoError(t, txs.Upsert(ctx, &decoy))

	policy, err := models.NewCashPolicy("p_1", models.CashPolicyDocument{
		Currency:    "USD",
		APYTimeline: []models.APYIntervalDocument{{From: "2024-01-01", APY: "0.0365"}},
	})
	require.NoError(t, err)

	a := accrual.NewAccruer(NewAccrualStore(tdb.database), zap.NewNop())
	req := accrual.Request{PortfolioID: "p_1", Policy: policy, PostingDay: models.LastDayPosting, Date: models.MustParseDate("2024-01-02")}
	for i := 0; i < 3; i++ {
		out, err := a.Accrue(ctx, req)
		require.NoError(t, err)
		if i > 0 {
			require.Equal(t, accrual.StatusAlreadyAccrued, out.Status)
		}
	}

	var count int
	var amount string
	require.NoError(t, tdb.raw.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(amount)::text FROM transactions WHERE id = $1`, "interest-p_1-2024-01-02").Scan(&count, &amount))
	require.Equal(t, 1, count)
	require.True(t, decimal.RequireFromString(amount).Equal(decimal.RequireFromString("0.10")), amount)

	interest, err := txs.List(ctx, &models.TransactionFilter{IDPrefix: models.InterestIDPrefix("p_1")})
	require.NoError(t, err)
	require.Len(t, interest, 1)

	snaps := NewSnapshotRepository(tdb.database)
	day := models.MustParseDate("2024-01-02")
	require.NoError(t, snaps.UpsertBatch(ctx, []models.NAVSnapshot{{PortfolioID: "p_1", Date: day, Currency: "USD",
		Cash: decimal.RequireFromString("1000"), NAV: decimal.RequireFromString("1000")}}))
	require.NoError(t, snaps.UpsertBatch(ctx, []models.NAVSnapshot{{PortfolioID: "p_1", Date: day, Currency: "USD",
		Cash: decimal.RequireFromString("1000.10"), NAV: decimal.RequireFromString("1000.10"), Stale: true, StaleTickers: "SPY"}}))

	var nav string
	var stale bool
	require.NoError(t, tdb.raw.QueryRowContext(ctx,
		`SELECT nav::text, stale FROM nav_snapshots WHERE portfolio_id = $1 AND date = $2`, "p_1", "2024-01-02").Scan(&nav, &stale))
	require.True(t, decimal.RequireFromString(nav).Equal(decimal.RequireFromString("1000.10")), nav)
	require.True(t, stale)
}
