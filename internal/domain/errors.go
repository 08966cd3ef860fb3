package domain

import (
	"fmt"
	"strings"
)

// FillError reports that a single order could not be simulated, usually
// because the quote was unusable. It fails the order, never the cycle.
type FillError struct {
	Symbol string
	Reason string
}

func (e *FillError) Error() string {
	return fmt.Sprintf("fill %s: %s", e.Symbol, e.Reason)
}

// NewFillError builds a FillError with a formatted reason.
func NewFillError(symbol, format string, args ...any) *FillError {
	return &FillError{Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError means the plan violated risk or capital constraints and
// the cycle must not execute.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "plan validation failed: " + strings.Join(e.Reasons, "; ")
}

// CapacityError means the plan could not be made to fit available capital
// even after priority trimming.
type CapacityError struct {
	Required  float64
	Available float64
	Detail    string
}

func (e *CapacityError) Error() string {
	msg := fmt.Sprintf("insufficient capacity: required $%.2f, available $%.2f", e.Required, e.Available)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
