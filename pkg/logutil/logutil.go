// Package logutil provides logging utilities.
package logutil

import (
	"io"
	"log"
	"os"
)

var out io.Writer = io.Discard

var loggers []*log.Logger

// GetLogger gets a logger with the given prefix. Loggers share a common
// output, which defaults to discarding all writes until redirected with
// SetOutput or SetOutputFile.
func GetLogger(prefix string) *log.Logger {
	logger := log.New(out, prefix, log.LstdFlags)
	loggers = append(loggers, logger)
	return logger
}

// SetOutput redirects the output of all loggers, including future ones
// returned by GetLogger, to the given writer.
func SetOutput(newout io.Writer) {
	out = newout
	for _, logger := range loggers {
		logger.SetOutput(out)
	}
}

// SetOutputFile redirects the output of all loggers to the named file.
func SetOutputFile(fname string) error {
	file, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	SetOutput(file)
	return nil
}
