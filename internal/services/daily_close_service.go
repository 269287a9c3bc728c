package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tropicaldog17/navledger/internal/accrual"
	"github.com/tropicaldog17/navledger/internal/calendar"
	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/ledger"
	"github.com/tropicaldog17/navledger/internal/logger"
	"github.com/tropicaldog17/navledger/internal/metrics"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/repositories"
	"github.com/tropicaldog17/navledger/internal/returns"
)

// CloseOptions configures the daily close pipeline.
type CloseOptions struct {
	Benchmark    string
	Flags        models.FeatureFlags
	PostingDay   models.PostingDay
	ReturnPlaces int32
	MaxParallel  int
	StrictCash   bool
	Calendar     *calendar.Calendar
	// Inception overrides the first replayed day per portfolio; otherwise
	// the first transaction date is used.
	Inception map[string]time.Time
}

// Repositories groups the storage the pipeline reads and writes.
type Repositories struct {
	Transactions repositories.TransactionRepository
	Prices       repositories.PriceRepository
	Snapshots    repositories.SnapshotRepository
	Returns      repositories.ReturnRepository
	Accruals     accrual.Store
}

type dailyCloseService struct {
	repos    Repositories
	policies map[string]*models.CashPolicy
	opts     CloseOptions
	accruer  *accrual.Accruer
	locks    *KeyedLocker
	logger   *zap.Logger
	metrics  *metrics.Registry
}

// NewDailyCloseService creates the close pipeline for the configured
// portfolios. A nil metrics registry disables metrics.
func NewDailyCloseService(repos Repositories, policies map[string]*models.CashPolicy, opts CloseOptions, log *zap.Logger, m *metrics.Registry) DailyCloseService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Benchmark == "" {
		opts.Benchmark = "SPY"
	}
	if opts.ReturnPlaces <= 0 {
		opts.ReturnPlaces = returns.OutputPlaces
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	return &dailyCloseService{
		repos:    repos,
		policies: policies,
		opts:     opts,
		accruer:  accrual.NewAccruer(repos.Accruals, log),
		locks:    NewKeyedLocker(),
		logger:   log,
		metrics:  m,
	}
}

func (s *dailyCloseService) policy(portfolioID string) (*models.CashPolicy, error) {
	p, ok := s.policies[portfolioID]
	if !ok || p == nil {
		return nil, &apperrors.PolicyError{PortfolioID: portfolioID, Field: "policy", Message: "no cash policy configured"}
	}
	return p, nil
}

// CloseDate accrues, replays and persists a single business date.
func (s *dailyCloseService) CloseDate(ctx context.Context, portfolioID string, day time.Time) (*CloseResult, error) {
	day = models.Day(day)
	return s.run(ctx, portfolioID, day, day)
}

// Backfill closes every date in [from, to]. Cancellation is honoured between
// days; everything already written stays valid, so a rerun resumes.
func (s *dailyCloseService) Backfill(ctx context.Context, portfolioID string, from, to time.Time) (*CloseResult, error) {
	from, to = models.Day(from), models.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("backfill range %s..%s is empty", models.DateKey(from), models.DateKey(to))
	}
	return s.run(ctx, portfolioID, from, to)
}

// CloseAll closes day for every configured portfolio, at most MaxParallel at
// a time. One portfolio failing does not stop the others; the failures are
// joined into the returned error.
func (s *dailyCloseService) CloseAll(ctx context.Context, day time.Time) ([]*CloseResult, error) {
	day = models.Day(day)
	ids := make([]string, 0, len(s.policies))
	for id := range s.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if logged, err := s.repos.Transactions.PortfolioIDs(ctx); err == nil {
		for _, id := range logged {
			if _, ok := s.policies[id]; !ok {
				s.logger.Warn("portfolio has transactions but no cash policy, skipped", zap.String("portfolio_id", id))
			}
		}
	}

	results := make([]*CloseResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.opts.MaxParallel)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res, err := s.CloseDate(ctx, id, day)
			if err != nil {
				res = &CloseResult{PortfolioID: id, From: day, To: day, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("portfolio %s: %w", res.PortfolioID, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

// Accrue runs only the interest step for one date.
func (s *dailyCloseService) Accrue(ctx context.Context, portfolioID string, day time.Time) (*accrual.Outcome, error) {
	policy, err := s.policy(portfolioID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, portfolioKey(portfolioID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.accrue(ctx, portfolioID, policy, models.Day(day))
}

// Summary compounds the stored return rows of [from, to].
func (s *dailyCloseService) Summary(ctx context.Context, portfolioID string, from, to time.Time) (*returns.Summary, error) {
	rows, err := s.repos.Returns.List(ctx, portfolioID, from, to)
	if err != nil {
		return nil, err
	}
	sum := returns.Summarize(rows)
	sum.PortfolioID = portfolioID
	return &sum, nil
}

// Import decodes raw rows and stores every valid transaction. Rows the log
// cannot accept are reported as anomalies instead of failing the batch.
func (s *dailyCloseService) Import(ctx context.Context, portfolioID string, raw []models.RawTransaction) (*ImportResult, error) {
	txs, anomalies := ledger.DecodeLog(portfolioID, raw)

	valid := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			an := apperrors.Anomaly{
				Kind:          apperrors.AnomalyRejected,
				TransactionID: tx.ID,
				Ticker:        tx.Ticker,
				Date:          tx.DateKey(),
				Message:       err.Error(),
			}
			var verr *apperrors.ErrValidation
			if errors.As(err, &verr) {
				an.Field = verr.Field
				an.Message = verr.Message
			}
			anomalies = append(anomalies, an)
			continue
		}
		valid = append(valid, tx)
	}
	s.reportAnomalies(s.logger, portfolioID, anomalies)

	unlock, err := s.locks.Lock(ctx, portfolioKey(portfolioID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := s.repos.Transactions.UpsertBatch(ctx, valid); err != nil {
		return nil, fmt.Errorf("failed to store imported transactions: %w", err)
	}
	s.logger.Info("transactions imported",
		zap.String("portfolio_id", portfolioID),
		zap.Int("stored", len(valid)),
		zap.Int("anomalies", len(anomalies)))
	return &ImportResult{Stored: len(valid), Anomalies: anomalies}, nil
}

func (s *dailyCloseService) run(ctx context.Context, portfolioID string, from, to time.Time) (*CloseResult, error) {
	started := time.Now()
	res := &CloseResult{RunID: uuid.NewString(), PortfolioID: portfolioID, From: from, To: to}
	log := s.logger.With(zap.String("run_id", res.RunID), zap.String("portfolio_id", portfolioID))

	err := s.closeRange(ctx, log, res)
	s.metrics.ObserveClose(portfolioID, to, time.Since(started), err)
	if err != nil {
		log.Error("daily close failed",
			zap.String("from", models.DateKey(from)),
			zap.String("to", models.DateKey(to)),
			zap.Error(err))
		return nil, err
	}
	log.Info("daily close finished",
		zap.String("from", models.DateKey(from)),
		zap.String("to", models.DateKey(to)),
		zap.Int("snapshots", len(res.Snapshots)),
		zap.Int("anomalies", len(res.Anomalies)),
		zap.Duration("took", time.Since(started)))
	return res, nil
}

func (s *dailyCloseService) closeRange(ctx context.Context, log *zap.Logger, res *CloseResult) error {
	policy, err := s.policy(res.PortfolioID)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, portfolioKey(res.PortfolioID))
	if err != nil {
		return err
	}
	defer unlock()

	for _, day := range models.DaysBetween(res.From, res.To) {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := s.accrue(ctx, res.PortfolioID, policy, day)
		if err != nil {
			return err
		}
		res.Accruals = append(res.Accruals, out)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	to := res.To
	txs, err := s.repos.Transactions.List(ctx, &models.TransactionFilter{PortfolioID: res.PortfolioID, EndDate: &to})
	if err != nil {
		return err
	}
	start := s.startDate(res.PortfolioID, txs)
	if start == nil || start.After(res.To) {
		log.Info("nothing to close before inception", zap.String("to", models.DateKey(res.To)))
		return nil
	}
	sorted := ledger.Sort(txs)

	book, err := s.loadPrices(ctx, sorted, res.To)
	if err != nil {
		return err
	}
	replayed, err := ledger.Replay(sorted, book, models.DaysBetween(*start, res.To), ledger.Options{
		Currency:   policy.Currency,
		StrictCash: s.opts.StrictCash,
		Calendar:   s.opts.Calendar,
	})
	if err != nil {
		return err
	}
	res.Anomalies = append(res.Anomalies, replayed.Anomalies...)
	s.reportAnomalies(log, res.PortfolioID, replayed.Anomalies)

	rows, err := returns.Compute(returns.Input{
		PortfolioID:  res.PortfolioID,
		States:       replayed.States,
		Transactions: sorted,
		Policy:       policy,
		Benchmark:    s.opts.Benchmark,
		Prices:       book,
	})
	if err != nil {
		return err
	}

	for i, st := range replayed.States {
		if st.Date.Before(res.From) {
			continue
		}
		if st.Stale() {
			log.Warn("positions valued at stale prices",
				zap.String("date", models.DateKey(st.Date)),
				zap.Strings("tickers", st.StaleTickers))
			s.metrics.ObserveStale(res.PortfolioID, st.StaleTickers)
		}
		res.Snapshots = append(res.Snapshots, snapshotOf(res.PortfolioID, st))
		row := rows[i].Rounded(s.opts.ReturnPlaces)
		row.PortfolioID = res.PortfolioID
		res.Returns = append(res.Returns, row)
	}

	if err := s.repos.Snapshots.UpsertBatch(ctx, res.Snapshots); err != nil {
		return err
	}
	return s.repos.Returns.UpsertBatch(ctx, res.Returns)
}

// accrue runs one accrual under the per-date lock. Callers hold the
// portfolio lock.
func (s *dailyCloseService) accrue(ctx context.Context, portfolioID string, policy *models.CashPolicy, day time.Time) (*accrual.Outcome, error) {
	unlock, err := s.locks.Lock(ctx, accrualKey(portfolioID, models.DateKey(day)))
	if err != nil {
		return nil, err
	}
	defer unlock()

	out, err := s.accruer.Accrue(ctx, accrual.Request{
		PortfolioID: portfolioID,
		Policy:      policy,
		Flags:       s.opts.Flags,
		PostingDay:  s.opts.PostingDay,
		Date:        day,
	})
	if err != nil {
		return nil, fmt.Errorf("accrual %s: %w", models.DateKey(day), err)
	}
	s.metrics.ObserveAccrual(portfolioID, string(out.Status))
	if out.Computation != nil {
		for _, a := range out.Computation.Anomalies {
			s.metrics.ObserveAnomaly(portfolioID, string(a.Kind))
		}
	}
	return out, nil
}

func (s *dailyCloseService) startDate(portfolioID string, txs []models.Transaction) *time.Time {
	if d, ok := s.opts.Inception[portfolioID]; ok {
		d = models.Day(d)
		return &d
	}
	var first *time.Time
	for i := range txs {
		if first == nil || txs[i].Date.Before(*first) {
			d := models.Day(txs[i].Date)
			first = &d
		}
	}
	return first
}

func (s *dailyCloseService) loadPrices(ctx context.Context, sorted []models.Transaction, to time.Time) (*ledger.PriceBook, error) {
	seen := map[string]bool{s.opts.Benchmark: true}
	tickers := []string{s.opts.Benchmark}
	for i := range sorted {
		if t, _, ok := sorted[i].SecurityDelta(); ok && !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}
	points, err := s.repos.Prices.ListUpTo(ctx, tickers, to)
	if err != nil {
		return nil, err
	}
	return ledger.NewPriceBook(points), nil
}

func (s *dailyCloseService) reportAnomalies(log *zap.Logger, portfolioID string, anomalies []apperrors.Anomaly) {
	for _, a := range anomalies {
		log.Warn("ledger anomaly", logger.Anomaly(portfolioID, a)...)
		s.metrics.ObserveAnomaly(portfolioID, string(a.Kind))
	}
}

func snapshotOf(portfolioID string, st models.LedgerState) models.NAVSnapshot {
	return models.NAVSnapshot{
		PortfolioID:  portfolioID,
		Date:         st.Date,
		Currency:     st.Currency,
		Cash:         st.Cash,
		RiskValue:    st.RiskValue,
		NAV:          st.NAV,
		Stale:        st.Stale(),
		StaleTickers: strings.Join(st.StaleTickers, ","),
	}
}
