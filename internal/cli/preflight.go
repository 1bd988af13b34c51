package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/config"
)

func newPreflightCommand(stdout io.Writer, newEngine EngineFactory, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight <vcenters> [<windows|linux> [<domain> [<trust-anchor>]]]",
		Short: "Check connectivity and credentials for every service without probing names",
		Args:  cobra.MaximumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreflight(cmd.Context(), stdout, newEngine, cfg, args)
		},
	}
}

func runPreflight(ctx context.Context, stdout io.Writer, newEngine EngineFactory, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.Endpoints = availability.SplitList(args[0])
	}
	if len(args) > 1 {
		cfg.OS = args[1]
	}
	if len(args) > 2 {
		positional(args[2:], &cfg.Domain, &cfg.TrustAnchor)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	report, err := newEngine(cfg.Settings()).RunPreflight(ctx, cfg.Request())
	if err != nil {
		logFailure(ctx, err)
		_ = emit(stdout, preflightResult{
			Errors: []availability.CheckResult{{Service: "parameters", Message: Reason(err)}},
		})
		return errReported
	}

	if err := EmitPreflightReport(stdout, report); err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	if !report.Passed() {
		return errReported
	}
	return nil
}
