package notify

import (
	"context"
	"fmt"

	"github.com/fatih/color"
)

// ConsoleSink writes the report to the terminal.
type ConsoleSink struct{}

// NewConsoleSink creates a new console sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes the report to stdout with a colored header.
func (s *ConsoleSink) Send(_ context.Context, message string) error {
	fmt.Printf("%s\n%s\n", color.CyanString("--- suite report ---"), message)
	return nil
}
