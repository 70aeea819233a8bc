package logger

import (
	"log"
	"os"
)

// New returns a stdout logger with a component prefix. Workers and services
// receive it via construction so tests can inject a silent one.
func New(prefix string) *log.Logger {
	if prefix != "" {
		prefix = prefix + " "
	}
	return log.New(os.Stdout, prefix, log.LstdFlags)
}

// Discard returns a logger that drops everything; used in tests.
func Discard() *log.Logger {
	return log.New(discardWriter{}, "", 0)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
