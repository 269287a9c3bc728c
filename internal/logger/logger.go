package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
)

// New creates a zap logger for env at the given level.
// A "production" env returns a JSON production logger; anything else a colored development logger.
// An empty level defaults to info in production and debug otherwise.
func New(level, env string) (*zap.Logger, error) {
	production := strings.EqualFold(env, "production")

	lvl := zapcore.DebugLevel
	if production {
		lvl = zapcore.InfoLevel
	}
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	if production {
		cfg := zap.NewProductionConfig()
		// Include caller and stacktrace on error in production
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build(zap.AddCaller())
}

// Anomaly returns the structured fields logged for a data anomaly.
func Anomaly(portfolioID string, a apperrors.Anomaly) []zap.Field {
	return []zap.Field{
		zap.String("portfolio_id", portfolioID),
		zap.String("kind", string(a.Kind)),
		zap.String("tx_id", a.TransactionID),
		zap.String("ticker", a.Ticker),
		zap.String("field", a.Field),
		zap.String("date", a.Date),
		zap.String("detail", a.Message),
	}
}
