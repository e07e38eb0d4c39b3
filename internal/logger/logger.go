// Package logger builds the process zap logger and the field sets shared by
// request and transition log lines.
package logger

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/straye-as/pipeline-gateway/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the gateway logger. Production and logging.format "json"
// write JSON lines; anything else writes colored console output.
func NewLogger(cfg *config.LoggingConfig, app *config.AppConfig) (*zap.Logger, error) {
	zapCfg := baseConfig(cfg.Format, app.Environment)
	zapCfg.Level = zap.NewAtomicLevelAt(levelOf(cfg.Level))
	zapCfg.InitialFields = map[string]interface{}{
		"app":         app.Name,
		"environment": app.Environment,
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s logger: %w", zapCfg.Encoding, err)
	}
	return log, nil
}

func baseConfig(format, environment string) zap.Config {
	if strings.EqualFold(format, "json") || environment == "production" {
		return zap.NewProductionConfig()
	}
	dev := zap.NewDevelopmentConfig()
	dev.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return dev
}

// levelOf falls back to info for empty or unknown names
func levelOf(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// RequestFields identify one HTTP request in the access log
func RequestFields(r *http.Request, requestID string) []zap.Field {
	return []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	}
}

// WithTransition tags log lines belonging to one lead transition
func WithTransition(log *zap.Logger, transitionID, leadID, action string) *zap.Logger {
	return log.With(
		zap.String("transition_id", transitionID),
		zap.String("lead_id", leadID),
		zap.String("action", action),
	)
}
