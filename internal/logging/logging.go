// Package logging configures the global zerolog logger
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/config"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points log.Logger at stderr, and at a rotated file when one is
// configured. The returned closer releases the file.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LoggingConfig, stderr io.Writer) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = stderr
	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}

	if cfg.File == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return nopCloser{}, nil
	}

	rotation := cfg.Rotation
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}
	opts := []rotatelogs.Option{
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithRotationTime(rotation),
	}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
	}

	ext := filepath.Ext(cfg.File)
	pattern := strings.TrimSuffix(cfg.File, ext) + ".%Y%m%d%H%M" + ext
	file, err := rotatelogs.New(pattern, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	return file, nil
}
