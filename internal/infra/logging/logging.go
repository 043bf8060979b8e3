package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/config"
)

// New builds the process logger. Levels trace..error are accepted, anything
// else falls back to info. Dev mode always writes human-readable console output
// and never samples.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newWithWriter(cfg, dev, os.Stdout)
}

func newWithWriter(cfg config.LogConfig, dev bool, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if dev || strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Str("service", "premium-activation").Logger()
	if cfg.Sampling && !dev {
		l = l.Sample(&zerolog.BasicSampler{N: 100})
	}
	return &l
}

type fieldKey int

const (
	traceKey fieldKey = iota
	userKey
	sessionKey
)

var fieldNames = [...]string{
	traceKey:   "trace_id",
	userKey:    "user_id",
	sessionKey: "session_id",
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// WithSessID carries a payment session id.
func WithSessID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// TraceID returns the request trace id stored in ctx, if any.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceKey).(string)
	return v
}

// With returns base enriched with the ids carried by ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	b := base.With()
	for k, name := range fieldNames {
		if v, ok := ctx.Value(fieldKey(k)).(string); ok && v != "" {
			b = b.Str(name, v)
		}
	}
	l := b.Logger()
	return &l
}

// TraceDuration logs entry and exit of name at trace level.
//
//	defer logging.TraceDuration(logger, "Activator.Activate")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("op", name).Msg("enter")
	return func() {
		logger.Trace().Str("op", name).Dur("elapsed", time.Since(start)).Msg("exit")
	}
}

// Redact masks a credential for logging, keeping a short prefix.
func Redact(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}
