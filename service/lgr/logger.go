package lgr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"

	"github.com/fatih/color"
	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
	"go.opentelemetry.io/otel/trace"

	"github.com/khaledhikmat/cctv-bridge/model"
)

// Logger is the process-wide logger. It writes human-readable text to stderr
// and JSON to a rotating log file.
var Logger = newLogger()

func newLogger() *slog.Logger {
	fileWriter := &lumberjack.Logger{
		Filename:   "cctv-bridge.log",
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     7,    // days
		Compress:   true, // compress old logs
	}

	consoleHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       logLevel(),
		ReplaceAttr: colorizeLevel,
	})

	fileHandler := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{
		Level:       logLevel(),
		ReplaceAttr: expandStackTraces,
	})

	return slog.New(fanoutHandler{consoleHandler, fileHandler})
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Err wraps an error with a stack trace so the file handler can expand it.
func Err(err error) slog.Attr {
	return slog.Any("error", xerrors.New(err))
}

// WithTrace returns a logger that carries the current trace/span IDs when the
// context holds a valid span, so log lines correlate with traces.
func WithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("traceID", sc.TraceID().String()),
		slog.String("spanID", sc.SpanID().String()),
	)
}

func colorizeLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case level >= slog.LevelError:
		a.Value = slog.StringValue(color.RedString(level.String()))
	case level >= slog.LevelWarn:
		a.Value = slog.StringValue(color.YellowString(level.String()))
	case level >= slog.LevelInfo:
		a.Value = slog.StringValue(color.GreenString(level.String()))
	default:
		a.Value = slog.StringValue(color.CyanString(level.String()))
	}
	return a
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

func expandStackTraces(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok {
		return a
	}

	// Component errors carry their processor and context along.
	var custom model.CustomError
	if errors.As(err, &custom) {
		attrs := []any{
			slog.String("msg", custom.Message),
			slog.String("processor", custom.Processor),
		}
		if custom.Inner != nil {
			attrs = append(attrs, slog.String("inner", custom.Inner.Error()))
		}
		if len(custom.Misc) > 0 {
			attrs = append(attrs, slog.Any("misc", custom.Misc))
		}
		return slog.Group(a.Key, attrs...)
	}

	st := xerrors.StackTrace(err)
	if len(st) == 0 {
		return a
	}

	frames := st.Frames()
	out := make([]stackFrame, 0, len(frames))
	for _, f := range frames {
		out = append(out, stackFrame{
			Func:   funcName(f),
			Source: path.Base(f.File),
			Line:   f.Line,
		})
	}

	return slog.Group(a.Key,
		slog.String("msg", err.Error()),
		slog.Any("trace", out),
	)
}

func funcName(f xerrors.Frame) string {
	return path.Base(f.Function)
}

// fanoutHandler duplicates records to every wrapped handler.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, 0, len(h))
	for _, hh := range h {
		out = append(out, hh.WithAttrs(attrs))
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, 0, len(h))
	for _, hh := range h {
		out = append(out, hh.WithGroup(name))
	}
	return out
}
