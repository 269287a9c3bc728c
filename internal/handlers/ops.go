package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/services"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health() error
}

// OpsHandler serves the operational endpoints of the engine.
type OpsHandler struct {
	db      HealthChecker
	service services.DailyCloseService
	metrics http.Handler
	now     func() time.Time
}

func NewOpsHandler(db HealthChecker, service services.DailyCloseService, metrics http.Handler) *OpsHandler {
	return &OpsHandler{db: db, service: service, metrics: metrics, now: time.Now}
}

// Router mounts /health, /metrics and the manual close triggers.
func (h *OpsHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/ops/close", h.HandleCloseAll).Methods(http.MethodPost)
	r.HandleFunc("/ops/close/{portfolio}", h.HandleClose).Methods(http.MethodPost)
	return r
}

func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := h.db.Health(); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":  status,
		"service": "navledger",
	})
}

// HandleClose closes one portfolio for ?date= (today when omitted).
func (h *OpsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	portfolio := mux.Vars(r)["portfolio"]
	res, err := h.service.CloseDate(r.Context(), portfolio, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closeResponse(res))
}

// HandleCloseAll closes every configured portfolio for ?date=.
func (h *OpsHandler) HandleCloseAll(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	results, err := h.service.CloseAll(r.Context(), day)
	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, closeResponse(res))
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, out)
}

func (h *OpsHandler) dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return models.Day(h.now().UTC()), true
	}
	day, err := models.ParseDate(s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return time.Time{}, false
	}
	return day, true
}

func closeResponse(res *services.CloseResult) map[string]any {
	out := map[string]any{
		"portfolio_id": res.PortfolioID,
		"from":         models.DateKey(res.From),
		"to":           models.DateKey(res.To),
		"anomalies":    len(res.Anomalies),
	}
	if res.RunID != "" {
		out["run_id"] = res.RunID
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	if snap, row := res.Last(); snap != nil {
		out["nav"] = snap.NAV.String()
		out["stale"] = snap.Stale
		if row != nil {
			out["r_port"] = row.RPort.String()
		}
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrPolicy):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrInvariant):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
