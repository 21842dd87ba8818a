// Package logging configures the structured logger used across newswatch.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logger for the given level ("debug", "info", "warn",
// "error") and format ("text" or "json"). Unknown levels fall back to
// info.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if out != nil {
		log.SetOutput(out)
	}
	return log
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
