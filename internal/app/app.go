// Package app wires configuration, storage and the close pipeline into the
// long-running server and the command line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tropicaldog17/navledger/internal/calendar"
	"github.com/tropicaldog17/navledger/internal/config"
	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/handlers"
	"github.com/tropicaldog17/navledger/internal/logger"
	"github.com/tropicaldog17/navledger/internal/metrics"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/repositories"
	"github.com/tropicaldog17/navledger/internal/services"
)

type App struct {
	Config  config.Config
	Logger  *zap.Logger
	DB      *db.DB
	Metrics *metrics.Registry
	Service services.DailyCloseService
	Prices  repositories.PriceRepository

	now func() time.Time
}

// New connects to the database, migrates the schema and builds the close
// pipeline for every configured portfolio.
func New(cfg config.Config) (*App, error) {
	log, err := logger.New(cfg.Log.Level, cfg.App.Env)
	if err != nil {
		return nil, err
	}

	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}
	postingDay, err := cfg.PostingDay()
	if err != nil {
		return nil, err
	}
	inception := make(map[string]time.Time)
	for id := range policies {
		d, err := cfg.Inception(id)
		if err != nil {
			return nil, err
		}
		if d != nil {
			inception[id] = *d
		}
	}

	database, err := db.Connect(cfg.Database())
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(); err != nil {
		database.Close()
		return nil, err
	}

	reg := metrics.New()
	repos := services.Repositories{
		Transactions: repositories.NewTransactionRepository(database),
		Prices:       repositories.NewPriceRepository(database),
		Snapshots:    repositories.NewSnapshotRepository(database),
		Returns:      repositories.NewReturnRepository(database),
		Accruals:     repositories.NewAccrualStore(database),
	}
	svc := services.NewDailyCloseService(repos, policies, services.CloseOptions{
		Benchmark:    cfg.Ledger.Benchmark,
		Flags:        cfg.Flags(),
		PostingDay:   postingDay,
		ReturnPlaces: int32(cfg.Ledger.ReturnPlaces),
		MaxParallel:  cfg.Ledger.MaxParallel,
		StrictCash:   cfg.Ledger.StrictCash,
		Calendar:     calendar.New(),
		Inception:    inception,
	}, log, reg)

	log.Info("navledger initialised",
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.DB.Driver),
		zap.Int("portfolios", len(policies)))

	return &App{
		Config:  cfg,
		Logger:  log,
		DB:      database,
		Metrics: reg,
		Service: svc,
		Prices:  repos.Prices,
		now:     time.Now,
	}, nil
}

// Close releases the database and flushes the logger.
func (a *App) Close() {
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

// Handler returns the ops router.
func (a *App) Handler() http.Handler {
	return handlers.NewOpsHandler(a.DB, a.Service, a.Metrics.Handler()).Router()
}

// Schedule registers the nightly close on a seconds-resolution cron evaluated
// in UTC, the zone business dates are keyed in. The caller starts and stops
// the returned scheduler.
func (a *App) Schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	if !a.Config.Cron.Enabled {
		return c, nil
	}
	_, err := c.AddFunc(a.Config.Cron.DailyClose, func() { a.runDailyClose(ctx) })
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", a.Config.Cron.DailyClose, err)
	}
	return c, nil
}

func (a *App) runDailyClose(ctx context.Context) {
	day := models.Day(a.now().UTC())
	results, err := a.Service.CloseAll(ctx, day)
	if err != nil {
		a.Logger.Error("scheduled close finished with errors",
			zap.String("date", models.DateKey(day)),
			zap.Int("portfolios", len(results)),
			zap.Error(err))
		return
	}
	a.Logger.Info("scheduled close finished",
		zap.String("date", models.DateKey(day)),
		zap.Int("portfolios", len(results)))
}

// Serve runs the scheduler and the ops HTTP server until ctx is cancelled,
// then shuts both down gracefully.
func (a *App) Serve(ctx context.Context) error {
	c, err := a.Schedule(ctx)
	if err != nil {
		return err
	}
	c.Start()
	a.Logger.Info("cron started", zap.Bool("enabled", a.Config.Cron.Enabled), zap.String("daily_close", a.Config.Cron.DailyClose))

	srv := &http.Server{
		Addr:              a.Config.Server.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("ops server shutdown", zap.Error(err))
	}
	<-c.Stop().Done()
	a.Logger.Info("cron stopped")
	return serveErr
}
