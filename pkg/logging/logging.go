// Package logging builds the zerolog loggers used by zerocom components.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged.
type Options struct {
	// Debug lowers the level from Info to Debug.
	Debug bool
	// Console receives colored human-readable output. Defaults to os.Stdout; set NoConsole to disable.
	Console   io.Writer
	NoConsole bool
	// File, if set, receives JSON lines and is rotated once it reaches FileMaxSize bytes.
	File        string
	FileMaxSize int64
	// FileBackups is the number of rotated files to keep; 0 keeps them all.
	FileBackups int
	// Component is attached to every event when set.
	Component string
}

// Logger is a configured zerolog.Logger together with the sinks it owns.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New builds a Logger from opts.
func New(opts Options) *Logger {
	var writers []io.Writer
	if !opts.NoConsole {
		out := opts.Console
		if out == nil {
			out = os.Stdout
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		})
	}

	l := &Logger{}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    megabytes(opts.FileMaxSize),
			MaxBackups: opts.FileBackups,
		}
		writers = append(writers, l.file)
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if opts.Component != "" {
		ctx = ctx.Str("component", opts.Component)
	}
	if opts.Debug {
		ctx = ctx.Caller()
	}
	l.Logger = ctx.Logger().Level(level)
	return l
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// megabytes converts a byte limit into lumberjack's MaxSize unit, rounding up.
// Limits below 1 MiB therefore rotate at 1 MiB.
func megabytes(n int64) int {
	const mib = 1 << 20
	if n <= 0 {
		return 0
	}
	return int((n + mib - 1) / mib)
}
