// Package logging configures the process-wide standard logger.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log destination. An empty File logs to stderr.
type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup points the standard logger at the configured destination and
// returns a closer for the underlying file, if any.
func Setup(cfg Config) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	w, closer := Writer(cfg)
	log.SetOutput(w)
	return closer
}

// Writer returns the writer for cfg. With a file configured, output goes to
// the size-rotated file and is mirrored to stderr.
func Writer(cfg Config) (io.Writer, io.Closer) {
	if cfg.File == "" {
		return os.Stderr, nopCloser{}
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, rotated), rotated
}

// New returns a logger with the given prefix writing to the same
// destination as the standard logger.
func New(prefix string) *log.Logger {
	return log.New(log.Writer(), prefix, log.Flags()|log.Lmsgprefix)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
