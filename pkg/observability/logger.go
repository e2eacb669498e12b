// Package observability provides logging and metrics for the
// access-control path.
package observability

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a structured JSON logger. Output defaults to stdout.
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
