package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	pidField      = "pid"
	severityField = "severity"
)

// Logger is the process log sink. A nil *Logger discards everything.
type Logger struct {
	zl      zerolog.Logger
	enabled map[Severity]bool
	closer  io.Closer
}

// Open appends to the file at cfg.Path. An empty path yields a nil Logger.
func Open(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir create failed (%s): %w", cfg.Path, err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("log open failed (%s): %w", cfg.Path, err)
	}
	l := New(f, cfg)
	l.closer = f
	return l, nil
}

// New writes entries to w, one line each.
func New(w io.Writer, cfg Config) *Logger {
	out := zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       true,
		TimeFormat:    timeFormat,
		PartsOrder:    []string{zerolog.TimestampFieldName, pidField, severityField, zerolog.MessageFieldName},
		FieldsExclude: []string{pidField, severityField},
		FormatPrepare: func(evt map[string]interface{}) error {
			evt[pidField] = fmt.Sprintf("<%v>", evt[pidField])
			evt[severityField] = fmt.Sprintf("%9s:", evt[severityField])
			return nil
		},
	}
	return &Logger{
		zl:      zerolog.New(out).With().Timestamp().Int(pidField, os.Getpid()).Logger(),
		enabled: cfg.enabledSet(),
	}
}

// Enabled reports whether entries at s reach the sink.
func (l *Logger) Enabled(s Severity) bool {
	return l != nil && l.enabled[s]
}

// Log writes message at severity s.
func (l *Logger) Log(message string, s Severity) {
	if !l.Enabled(s) {
		return
	}
	l.zl.WithLevel(zerologLevel(s)).Str(severityField, s.String()).Msg(message)
}

// Logf formats and writes at severity s.
func (l *Logger) Logf(s Severity, format string, args ...any) {
	if !l.Enabled(s) {
		return
	}
	l.Log(fmt.Sprintf(format, args...), s)
}

// Close releases the file handle, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// zerologLevel only picks the label level for WithLevel, which never panics
// or exits. Do not route these through zerolog's Panic/Fatal helpers.
func zerologLevel(s Severity) zerolog.Level {
	switch s {
	case Emergency, Alert:
		return zerolog.PanicLevel
	case Critical:
		return zerolog.FatalLevel
	case Error:
		return zerolog.ErrorLevel
	case Warning:
		return zerolog.WarnLevel
	case Debug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
