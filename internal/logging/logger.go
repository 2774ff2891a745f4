package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New creates a JSON logger writing to stdout at the given level.
// Unknown levels fall back to info.
func New(level string) *logrus.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
