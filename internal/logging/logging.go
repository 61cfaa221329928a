// Package logging builds the prefixed loggers shared by all components.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log destination.
type Options struct {
	// File enables rotated file logging at the given path. Empty means
	// stderr only.
	File string

	// MaxSizeMB caps each log file before rotation. Zero means 10.
	MaxSizeMB int

	// MaxBackups caps retained rotated files. Zero means 3.
	MaxBackups int
}

// New creates a prefixed logger. With a file configured, output goes to
// both stderr and the rotated file.
func New(prefix string, opts Options) *log.Logger {
	var w io.Writer = os.Stderr
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 10
		}
		maxBackups := opts.MaxBackups
		if maxBackups == 0 {
			maxBackups = 3
		}
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}
	return log.New(w, "["+prefix+"] ", log.LstdFlags)
}
