package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tropicaldog17/navledger/internal/accrual"
	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/returns"
	"github.com/tropicaldog17/navledger/internal/services"
)

type mockHealth struct{ err error }

func (m mockHealth) Health() error { return m.err }

type mockCloseService struct {
	closed []string
	days   []time.Time
}

func (m *mockCloseService) CloseDate(_ context.Context, portfolioID string, day time.Time) (*services.CloseResult, error) {
	if portfolioID == "nopolicy" {
		return nil, &apperrors.PolicyError{PortfolioID: portfolioID, Field: "policy", Message: "no cash policy configured"}
	}
	m.closed = append(m.closed, portfolioID)
	m.days = append(m.days, day)
	return &services.CloseResult{
		RunID: "run-1", PortfolioID: portfolioID, From: day, To: day,
		Snapshots: []models.NAVSnapshot{{PortfolioID: portfolioID, Date: day, NAV: decimal.RequireFromString("1000.10")}},
		Returns:   []models.ReturnRow{{PortfolioID: portfolioID, Date: day, RPort: decimal.RequireFromString("0.0001")}},
	}, nil
}
func (m *mockCloseService) Backfill(_ context.Context, portfolioID string, from, to time.Time) (*services.CloseResult, error) {
	return nil, nil
}
func (m *mockCloseService) CloseAll(_ context.Context, day time.Time) ([]*services.CloseResult, error) {
	err := errors.New("portfolio b: boom")
	return []*services.CloseResult{
		{PortfolioID: "a", From: day, To: day},
		{PortfolioID: "b", From: day, To: day, Err: err},
	}, err
}
func (m *mockCloseService) Accrue(_ context.Context, portfolioID string, day time.Time) (*accrual.Outcome, error) {
	return nil, nil
}
func (m *mockCloseService) Summary(_ context.Context, portfolioID string, from, to time.Time) (*returns.Summary, error) {
	return nil, nil
}
func (m *mockCloseService) Import(_ context.Context, portfolioID string, raw []models.RawTransaction) (*services.ImportResult, error) {
	return nil, nil
}

var _ services.DailyCloseService = (*mockCloseService)(nil)

func serve(h *OpsHandler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h := NewOpsHandler(mockHealth{}, &mockCloseService{}, nil)
	rec := serve(h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"healthy"`)

	h = NewOpsHandler(mockHealth{err: errors.New("down")}, &mockCloseService{}, nil)
	rec = serve(h, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsMounted(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("navledger_closes_total 1\n"))
	})
	h := NewOpsHandler(mockHealth{}, &mockCloseService{}, metricsHandler)
	rec := serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "navledger_closes_total")
}

func TestHandleClose(t *testing.T) {
	svc := &mockCloseService{}
	h := NewOpsHandler(mockHealth{}, svc, nil)
	h.now = func() time.Time { return time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC) }

	rec := serve(h, http.MethodPost, "/ops/close/main?date=2024-01-02")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "main", body["portfolio_id"])
	require.Equal(t, "1000.1", body["nav"])
	require.Equal(t, "0.0001", body["r_port"])
	require.Equal(t, "run-1", body["run_id"])

	rec = serve(h, http.MethodPost, "/ops/close/main")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2024-03-05", models.DateKey(svc.days[1]))

	rec = serve(h, http.MethodPost, "/ops/close/main?date=01/02/2024")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPost, "/ops/close/nopolicy?date=2024-01-02")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(h, http.MethodGet, "/ops/close/main")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleCloseAll(t *testing.T) {
	h := NewOpsHandler(mockHealth{}, &mockCloseService{}, nil)
	rec := serve(h, http.MethodPost, "/ops/close?date=2024-01-02")
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	require.Equal(t, "boom", body[1]["error"].(string)[len("portfolio b: "):])
}
