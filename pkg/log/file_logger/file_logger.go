// Package file_logger provides the rotating JSON log that violation reports and
// forwarding warnings are written to in debug mode.
package file_logger

import (
	"io"
	"log/slog"
	"os"

	motmedelContextLogger "github.com/Motmedel/csp_go/pkg/log/context_logger"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSize    = 10
	DefaultMaxBackups = 5
	DefaultMaxAge     = 30
)

type Config struct {
	Path       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	Level      slog.Leveler
}

type Option func(*Config)

func New(options ...Option) *Config {
	config := &Config{
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAge,
		Level:      slog.LevelDebug,
	}

	for _, option := range options {
		if option != nil {
			option(config)
		}
	}

	return config
}

func WithPath(path string) Option {
	return func(config *Config) {
		config.Path = path
	}
}

func WithMaxSize(maxSize int) Option {
	return func(config *Config) {
		config.MaxSize = maxSize
	}
}

func WithMaxBackups(maxBackups int) Option {
	return func(config *Config) {
		config.MaxBackups = maxBackups
	}
}

func WithMaxAge(maxAge int) Option {
	return func(config *Config) {
		config.MaxAge = maxAge
	}
}

func WithCompress(compress bool) Option {
	return func(config *Config) {
		config.Compress = compress
	}
}

func WithLevel(level slog.Leveler) Option {
	return func(config *Config) {
		config.Level = level
	}
}

// Writer returns the destination of the log. Without a path, stderr is used.
func (config *Config) Writer() io.WriteCloser {
	if config.Path == "" {
		return nopCloser{Writer: os.Stderr}
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// Logger builds a JSON logger over the writer. The returned closer must be
// closed on shutdown to release the log file.
func (config *Config) Logger() (*slog.Logger, io.Closer) {
	writer := config.Writer()
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: config.Level})
	return motmedelContextLogger.NewWithErrorExtractor(handler), writer
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
