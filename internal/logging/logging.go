// Package logging builds the application logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhle/teamboard/internal/model"
)

// Format selects the log line encoding.
type Format int

const (
	// Text writes logrus key=value lines. Used by the TUI and CLI.
	Text Format = iota
	// JSON writes one JSON object per line. Used by the dev server.
	JSON
)

// New returns a logger configured from cfg. An empty cfg.File sends output
// to fallback; a nil fallback discards it. The returned closer releases the
// log file and is never nil.
func New(cfg model.LogConfig, format Format, fallback io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nopCloser{}, err
	}
	log.SetLevel(level)

	switch format {
	case JSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	if cfg.File == "" {
		if fallback == nil {
			fallback = io.Discard
		}
		log.SetOutput(fallback)
		return log, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nopCloser{}, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}
	log.SetOutput(f)
	return log, f, nil
}

// ParseLevel accepts logrus level names; an empty string means info.
func ParseLevel(raw string) (logrus.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
