package fedlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("")

var logFile *os.File

// NewZeroLogger creates a console logger writing to filepath, or to stdout
// when filepath is empty.
func NewZeroLogger(filepath string) *zerolog.Logger {
	_, writer, err := newWriter(filepath)
	if err != nil {
		writer = os.Stdout
	}
	return newLogger(writer)
}

func newLogger(w io.Writer) *zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: w != os.Stdout}
	logger := zerolog.New(output).With().Timestamp().Logger()

	return &logger
}

// UpdateZeroLogLevel changes the level of the global logger.
func UpdateZeroLogLevel(logLevel string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	zeroLogger := Zero.Level(level)
	Zero = &zeroLogger
	return nil
}

// ReloadLogger points the global logger to filepath. The previously opened
// log file, if any, is closed.
func ReloadLogger(filepath, logLevel string) error {
	if filepath == "" {
		return UpdateZeroLogLevel(logLevel)
	}
	f, writer, err := newWriter(filepath)
	if err != nil {
		return err
	}
	old := logFile
	logFile = f
	Zero = newLogger(writer)
	if old != nil {
		_ = old.Close()
	}
	return UpdateZeroLogLevel(logLevel)
}
