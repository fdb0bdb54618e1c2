// Package logging builds the process logger.
package logging

import (
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/JameZUK/fqdn-builder/internal/config"
)

// New returns a logger writing to stderr and, when cfg.File is set, to a
// rotating file. The stdlib log package is redirected into it.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
