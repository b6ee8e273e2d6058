// Package logger wraps zap into the component- and chain-scoped logger every
// pipeline piece logs through.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// serviceName is stamped on every logger this package builds, so log lines
// from a hosting app that embeds chaindexor alongside its own logging are
// still attributable to the indexer.
const serviceName = "chaindexor"

// root logger
var log atomic.Pointer[Logger]

// Logger wraps zap.SugaredLogger so every component and chain the pipeline
// touches logs through the same structured/printf surface.
type Logger struct {
	*zap.SugaredLogger
}

// NewLogger builds a logger at the given level ("debug", "info", "warn",
// "error"); development mode switches to a console encoder with colorized
// levels and enables stack traces.
func NewLogger(level string, development bool) (*Logger, error) {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar().With("service", serviceName)}, nil
}

// NewNopLogger creates a no-op logger that discards all logs. Useful for
// testing and for components constructed before Setup has a real logger.
func NewNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithComponent creates a child logger tagged with the pipeline component
// emitting through it (one of the internal/common.Component* names).
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{SugaredLogger: l.With("component", component)}
}

// WithChainID creates a child logger additionally tagged with the chain a
// log line pertains to — every ingestion, reorg, and handler-dispatch loop
// runs per chain, so this is the common case beyond WithComponent alone.
func (l *Logger) WithChainID(chainID uint64) *Logger {
	return &Logger{SugaredLogger: l.With("chain_id", chainID)}
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}

// GetDefaultLogger returns the process-wide fallback logger, lazily building
// one at debug/development level the first time it's needed — components
// wired up before Setup runs (e.g. early config validation) log through this
// rather than a nil *Logger.
func GetDefaultLogger() *Logger {
	l := log.Load()
	if l != nil {
		return l
	}
	zapLogger, err := NewLogger("debug", true)
	if err != nil {
		panic(err)
	}
	log.Store(zapLogger)
	return log.Load()
}
