package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/isometry/vmname/internal/availability"
)

// ReasonInterrupted is reported when a run is cancelled by a signal.
const ReasonInterrupted = "Interrupted"

type failure struct {
	Available bool                       `json:"available"`
	Reason    string                     `json:"reason"`
	Errors    []availability.CheckResult `json:"errors,omitempty"`
}

type preflightResult struct {
	Success bool                       `json:"success"`
	Errors  []availability.CheckResult `json:"errors"`
}

type existsResult struct {
	Exists bool   `json:"exists"`
	VMName string `json:"vm_name,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EmitDecision writes d as a single JSON line.
func EmitDecision(w io.Writer, d availability.Decision) error {
	return emit(w, d)
}

// EmitPreflightFailure writes the decision of a run halted by failed checks.
func EmitPreflightFailure(w io.Writer, failures []availability.CheckResult) error {
	return emit(w, failure{
		Reason: availability.ReasonPreflightFailed,
		Errors: failures,
	})
}

// EmitFailure writes the decision of a run that could not reach an answer.
func EmitFailure(w io.Writer, reason string) error {
	return emit(w, failure{Reason: reason})
}

// EmitPreflightReport writes the outcome of a standalone preflight.
func EmitPreflightReport(w io.Writer, report availability.PreflightReport) error {
	failures := report.Failures()
	if failures == nil {
		failures = []availability.CheckResult{}
	}
	return emit(w, preflightResult{Success: report.Passed(), Errors: failures})
}

// EmitExists writes the outcome of a vCenter-only existence check.
func EmitExists(w io.Writer, name string, exists bool) error {
	return emit(w, existsResult{Exists: exists, VMName: name})
}

// Reason renders err for the reason field of a failure.
func Reason(err error) string {
	var cfgErr *availability.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Reason
	case errors.Is(err, context.Canceled):
		return ReasonInterrupted
	default:
		return err.Error()
	}
}

func emit(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
