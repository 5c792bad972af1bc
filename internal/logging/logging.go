// Package logging builds the structured logger used by every ec2backup
// entry point. The logger is constructed once and passed down explicitly.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is the log encoding.
type Format string

const (
	// FormatJSON writes one JSON object per line (CloudWatch friendly).
	FormatJSON Format = "json"
	// FormatConsole writes human-readable lines.
	FormatConsole Format = "console"
)

// Config contains configuration for the logger.
type Config struct {
	// Debug lowers the minimum level from info to debug.
	Debug bool

	// Format is "json" or "console". Empty means json.
	Format string

	// Writer is the output (defaults to os.Stderr).
	Writer io.Writer
}

// New creates a logger. Fatal entries are encoded with the level name
// "critical"; they mark failures that end the run.
func New(cfg Config, opts ...zap.Option) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = levelEncoder

	var encoder zapcore.Encoder
	switch Format(cfg.Format) {
	case FormatJSON, "":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format: %s (valid formats: json, console)", cfg.Format)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	opts = append([]zap.Option{zap.ErrorOutput(zapcore.AddSync(os.Stderr))}, opts...)
	return zap.New(core, opts...), nil
}

// ReturnOnFatal makes Fatal write the entry and return instead of exiting.
// The Lambda handler uses it so the runtime, not os.Exit, reports the
// failed invocation.
var ReturnOnFatal zapcore.CheckWriteHook = returnHook{}

type returnHook struct{}

func (returnHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

// levelEncoder writes lowercase level names, with fatal renamed critical.
func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == zapcore.FatalLevel {
		enc.AppendString("critical")
		return
	}
	enc.AppendString(l.String())
}
