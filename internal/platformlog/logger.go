// Package platformlog provides a process-wide structured logger on top of
// zap, with an slog.Handler bridge so packages written against the
// standard library's log/slog still end up on the same JSON/console sink.
package platformlog

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	zl          *zap.Logger
	slogger     *slog.Logger
	levelAtomic zap.AtomicLevel
	inited      atomic.Bool
)

// Config selects the logger's verbosity and output encoding.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // text|json
}

// Init sets up the global logger. Subsequent calls are no-ops.
func Init(cfg Config) {
	if inited.Load() {
		return
	}

	level := zap.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zap.DebugLevel
	case "warn":
		level = zap.WarnLevel
	case "error":
		level = zap.ErrorLevel
	}
	levelAtomic = zap.NewAtomicLevelAt(level)

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format(time.RFC3339Nano))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), levelAtomic)
	zl = zap.New(core, zap.AddCaller())
	slogger = slog.New(zapSlogHandler{core: core})
	inited.Store(true)
}

// zapSlogHandler routes slog records through the same zapcore.Core so
// callers using slog and callers using zap share one sink and one level.
type zapSlogHandler struct {
	core  zapcore.Core
	attrs []slog.Attr
}

func (h zapSlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	switch {
	case level >= slog.LevelError:
		return levelAtomic.Enabled(zap.ErrorLevel)
	case level >= slog.LevelWarn:
		return levelAtomic.Enabled(zap.WarnLevel)
	case level >= slog.LevelInfo:
		return levelAtomic.Enabled(zap.InfoLevel)
	default:
		return levelAtomic.Enabled(zap.DebugLevel)
	}
}

func (h zapSlogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]zapcore.Field, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields = append(fields, attrToField(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, attrToField(a))
		return true
	})

	zapLevel := zap.DebugLevel
	switch {
	case r.Level >= slog.LevelError:
		zapLevel = zap.ErrorLevel
	case r.Level >= slog.LevelWarn:
		zapLevel = zap.WarnLevel
	case r.Level >= slog.LevelInfo:
		zapLevel = zap.InfoLevel
	}

	return h.core.Write(zapcore.Entry{Level: zapLevel, Time: r.Time, Message: r.Message}, fields)
}

func (h zapSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h zapSlogHandler) WithGroup(name string) slog.Handler {
	return h.WithAttrs([]slog.Attr{slog.Group(name)})
}

func attrToField(a slog.Attr) zapcore.Field {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return zap.String(a.Key, a.Value.String())
	case slog.KindInt64:
		return zap.Int64(a.Key, a.Value.Int64())
	case slog.KindUint64:
		return zap.Uint64(a.Key, a.Value.Uint64())
	case slog.KindFloat64:
		return zap.Float64(a.Key, a.Value.Float64())
	case slog.KindBool:
		return zap.Bool(a.Key, a.Value.Bool())
	case slog.KindTime:
		return zap.Time(a.Key, a.Value.Time())
	default:
		return zap.Any(a.Key, a.Value.Any())
	}
}

// Zap returns the process-wide zap logger. Init must be called first.
func Zap() *zap.Logger { return zl }

// Slog returns the process-wide slog logger backed by the same sink.
func Slog() *slog.Logger { return slogger }

// SetLevel adjusts the logger's verbosity at runtime.
func SetLevel(level string) {
	switch level {
	case "debug":
		levelAtomic.SetLevel(zap.DebugLevel)
	case "info":
		levelAtomic.SetLevel(zap.InfoLevel)
	case "warn":
		levelAtomic.SetLevel(zap.WarnLevel)
	case "error":
		levelAtomic.SetLevel(zap.ErrorLevel)
	}
}
