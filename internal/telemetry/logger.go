package telemetry

import (
	"io"
	"os"
	"sort"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
)

// Logger writes one JSON object per event.
type Logger struct {
	mu  sync.Mutex
	w   io.WriteCloser
	log *clog.Logger
}

func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return newLogger(nopCloser{Writer: io.Discard}), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return newLogger(f), nil
}

// NewWriterLogger logs to w without taking ownership of it.
func NewWriterLogger(w io.Writer) *Logger {
	return newLogger(nopCloser{Writer: w})
}

func newLogger(w io.WriteCloser) *Logger {
	l := clog.NewWithOptions(w, clog.Options{
		Formatter:       clog.JSONFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Level:           clog.DebugLevel,
	})
	return &Logger{w: w, log: l}
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.emit(clog.DebugLevel, msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit(clog.InfoLevel, msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.emit(clog.ErrorLevel, msg, fields)
}

func (l *Logger) emit(level clog.Level, msg string, fields map[string]any) {
	if l == nil || l.log == nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Log(level, msg, kv...)
}

func (l *Logger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
