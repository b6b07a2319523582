package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a process logger with JSON output on stdout. When logFile is
// set, records are also written to a size-rotated file.
func New(level slog.Level, logFile string) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
