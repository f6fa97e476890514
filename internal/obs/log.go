package obs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.RWMutex
	logger   = NewLogger(os.Stdout, zerolog.InfoLevel)
)

// NewLogger builds a JSON logger writing to w.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Logger returns the shared structured logger used across the service.
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the shared logger. It returns the previous one so tests can restore it.
func SetLogger(l zerolog.Logger) zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger
	logger = l
	return prev
}

// ConfigureLogger points the shared logger at w with the named level ("debug", "info", ...).
func ConfigureLogger(w io.Writer, level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return err
		}
		lvl = parsed
	}
	SetLogger(NewLogger(w, lvl))
	return nil
}

// RequestLog carries the fields logged once per HTTP request.
type RequestLog struct {
	Method    string
	Path      string
	Route     string
	Status    int
	Duration  time.Duration
	RequestID string
	RemoteIP  string
	UserID    string
}

// LogRequest emits a structured log line with common HTTP fields.
func LogRequest(e RequestLog) {
	l := Logger()
	ev := l.Info()
	if e.Status >= 500 {
		ev = l.Error()
	}
	ev = ev.Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Dur("duration", e.Duration).
		Str("remote_ip", e.RemoteIP)
	if e.Route != "" {
		ev = ev.Str("route", e.Route)
	}
	if e.RequestID != "" {
		ev = ev.Str("request_id", e.RequestID)
	}
	if e.UserID != "" {
		ev = ev.Str("user_id", e.UserID)
	}
	ev.Msg("http request")
}
