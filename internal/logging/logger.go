// Package logging builds one rotating log file per level plus a stdout
// stream, expressed with log/slog and gopkg.in/natefinch/lumberjack.v2.
// The rest of the system depends only on the Logger interface below, never
// on slog directly.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/skurt/geofence-monitor/internal/config"
)

// Logger is the capability the Scheduler, AlertBus and ControlSurface
// depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a Logger that always includes the given key/value pairs.
	With(args ...any) Logger
}

// Files exposes the on-disk paths of the three per-level rotating logs, so
// the ControlSurface's /logs endpoint can serve their current content.
type Files struct {
	Info    *lumberjack.Logger
	Warning *lumberjack.Logger
	Error   *lumberjack.Logger
}

// Content returns the current bytes written to the named level's log file.
// level must be one of "info", "warning", "error" (case-insensitive).
func (f *Files) Content(level string) ([]byte, error) {
	lj, err := f.resolve(level)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(lj.Filename)
	if os.IsNotExist(err) {
		return []byte{}, nil
	}
	return data, err
}

// Size reports the current length of the named level's log file, used by
// the ControlSurface's log-stream endpoint to seed its tail offset so a
// freshly connected viewer doesn't replay the whole file.
func (f *Files) Size(level string) (int64, error) {
	data, err := f.Content(level)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Tail returns whatever has been appended to the named level's log file
// since offset, plus the offset a subsequent call should pass. If the file
// has shrunk below offset (rotated out from under the reader), it reports
// the file's full current content from offset zero.
func (f *Files) Tail(level string, offset int64) ([]byte, int64, error) {
	lj, err := f.resolve(level)
	if err != nil {
		return nil, offset, err
	}

	fh, err := os.Open(lj.Filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, err
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return nil, offset, nil
	}
	if _, err := fh.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, offset, err
	}
	return data, offset + int64(len(data)), nil
}

func (f *Files) resolve(level string) (*lumberjack.Logger, error) {
	switch strings.ToLower(level) {
	case "info":
		return f.Info, nil
	case "warning":
		return f.Warning, nil
	case "error":
		return f.Error, nil
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
}

type slogLogger struct {
	inner *slog.Logger
}

// New builds a Logger backed by one lumberjack-rotated file per level plus
// a stdout stream at the configured threshold. lumberjack rotates a file
// when it reaches its default maximum size (100 MB); nothing rotates on a
// daily schedule. At most 7 backups are kept, and backups older than one
// day are removed.
func New(filePrefix string, level config.LogLevel) (Logger, *Files, error) {
	files := &Files{
		Info:    &lumberjack.Logger{Filename: filePrefix + ".INFO.log", MaxAge: 1, MaxBackups: 7},
		Warning: &lumberjack.Logger{Filename: filePrefix + ".WARNING.log", MaxAge: 1, MaxBackups: 7},
		Error:   &lumberjack.Logger{Filename: filePrefix + ".ERROR.log", MaxAge: 1, MaxBackups: 7},
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level.SlogLevel()}),
		bandHandler{
			inner: slog.NewTextHandler(files.Info, &slog.HandlerOptions{Level: slog.LevelInfo}),
			min:   slog.LevelInfo, max: slog.LevelWarn,
		},
		bandHandler{
			inner: slog.NewTextHandler(files.Warning, &slog.HandlerOptions{Level: slog.LevelWarn}),
			min:   slog.LevelWarn, max: slog.LevelError,
		},
		bandHandler{
			inner: slog.NewTextHandler(files.Error, &slog.HandlerOptions{Level: slog.LevelError}),
			min:   slog.LevelError, max: slog.Level(1 << 16),
		},
	}

	return &slogLogger{inner: slog.New(newMultiHandler(handlers...))}, files, nil
}

func (l *slogLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{inner: l.inner.With(args...)}
}

// bandHandler restricts a file handler to records in [min, max), so each
// per-level file holds exactly its own level rather than everything at or
// above it. /logs/<level> then reads back only that level's records.
type bandHandler struct {
	inner    slog.Handler
	min, max slog.Level
}

func (b bandHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= b.min && level < b.max
}

func (b bandHandler) Handle(ctx context.Context, record slog.Record) error {
	return b.inner.Handle(ctx, record)
}

func (b bandHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return bandHandler{inner: b.inner.WithAttrs(attrs), min: b.min, max: b.max}
}

func (b bandHandler) WithGroup(name string) slog.Handler {
	return bandHandler{inner: b.inner.WithGroup(name), min: b.min, max: b.max}
}

// multiHandler fans a record out to every child handler that enables its
// level.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
