// Package logging provides the process-wide structured logger built on zap.
//
// All loggers share one atomic level, so SetLevel takes effect immediately for
// loggers that were already built. The initial level is warn, or the value of
// TODOSHM_LOG_LEVEL (debug, info, warn, error).
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv names the environment variable read at startup.
const LevelEnv = "TODOSHM_LOG_LEVEL"

var level = zap.NewAtomicLevelAt(zapcore.WarnLevel)

func init() {
	if v := os.Getenv(LevelEnv); v != "" {
		_ = SetLevelText(v)
	}
}

// Logger wraps zap.Logger.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	// Level overrides the shared level when set.
	Level string
	// Development switches to colored console output with caller and stack traces.
	Development bool
	OutputPaths []string
}

// DefaultConfig returns the production configuration: JSON to stderr.
func DefaultConfig() Config {
	return Config{OutputPaths: []string{"stderr"}}
}

// SetLevel changes the level of every logger built by this package.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// SetLevelText parses and applies a level name.
func SetLevelText(text string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(text)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", text, err)
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current shared level.
func Level() zapcore.Level {
	return level.Level()
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	if cfg.Level != "" {
		if err := SetLevelText(cfg.Level); err != nil {
			return nil, err
		}
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stderr"}
	}
	zapCfg := zap.Config{
		Level:             level,
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewDefault builds a logger with DefaultConfig, falling back to a no-op logger.
func NewDefault() *Logger {
	logger, err := New(DefaultConfig())
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}
