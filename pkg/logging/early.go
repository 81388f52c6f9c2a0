package logging

import (
	"fmt"
	"os"
)

// EarlyLog prints to stdout/stderr before the configured logger exists
// yet — config load and validation failures happen before we know the
// logging level or format to build a real logger. component tags each
// line with the binary that emitted it (changeprop-worker today, but
// the type stays reusable if a second entrypoint is ever split out).
type EarlyLog struct {
	component string
}

func NewEarlyLog(component string) *EarlyLog {
	return &EarlyLog{component: component}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ERROR ["+l.component+"]: "+msg+"\n", args...)
	os.Exit(1)
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "FATAL ["+l.component+"]: "+msg+"\n", args...)
	os.Exit(1)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "WARN ["+l.component+"]: "+msg+"\n", args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "INFO ["+l.component+"]: "+msg+"\n", args...)
}
