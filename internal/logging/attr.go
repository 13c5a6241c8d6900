package logging

import (
	"log/slog"
	"time"
)

// Helpers return an empty Attr for empty input, which slog handlers skip.
// That lets callers write log.Info("msg", logging.Err(err)) without a nil
// check.

// Err returns an "error" attribute, or an empty Attr when err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component returns a "component" attribute.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// SessionID returns a "session_id" attribute, or an empty Attr.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

// ConnID returns a "conn_id" attribute, or an empty Attr.
func ConnID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("conn_id", id)
}

// Duration returns a "duration" attribute.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
