// Package logger builds the zap logger and its gorm and gin adapters
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string

	// Quiet disables stdout output, for when the terminal belongs to the console UI
	Quiet bool
}

// Sink is an io.Writer that can be attached after the logger is built.
// Writes are dropped until a destination is attached.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// Attach sets the destination; nil detaches
func (s *Sink) Attach(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

// Sync implements zapcore.WriteSyncer
func (s *Sink) Sync() error {
	return nil
}

// New builds a structured zap.Logger. When sink is non-nil every entry is also
// written to it in console format.
func New(cfg Config, sink *Sink) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	lvl := strings.TrimSpace(cfg.Level)
	if lvl == "" {
		lvl = "info"
	}
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lvl, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if !cfg.Quiet {
		var encoder zapcore.Encoder
		if normalizeFormat(cfg.Format) == "console" {
			encoder = zapcore.NewConsoleEncoder(encCfg)
		} else {
			encoder = zapcore.NewJSONEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}
	if sink != nil {
		sinkCfg := encCfg
		sinkCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		sinkCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(sinkCfg), sink, level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "printbridge"
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	).With(
		zap.String("service", serviceName),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(logger)

	return logger, nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" {
		return "console"
	}
	return "json"
}
