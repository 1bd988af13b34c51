package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/config"
)

func newExistsCommand(stdout io.Writer, newEngine EngineFactory, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <vm-name> <vcenters> <partition-paths>",
		Short: "Report whether a VM name exists in any vCenter partition",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExists(cmd.Context(), stdout, newEngine, cfg, args)
		},
	}
}

func runExists(ctx context.Context, stdout io.Writer, newEngine EngineFactory, cfg *config.Config, args []string) error {
	positional(args, &cfg.Name)
	if len(args) > 1 {
		cfg.Endpoints = availability.SplitList(args[1])
	}
	if len(args) > 2 {
		cfg.Partitions = availability.SplitList(args[2])
	}

	exists, err := newEngine(cfg.Settings()).CheckFleet(ctx, cfg.Name, cfg.Endpoints, cfg.Partitions)
	if err != nil {
		logFailure(ctx, err)
		_ = emit(stdout, existsResult{Error: Reason(err)})
		return errReported
	}

	if err := EmitExists(stdout, cfg.Name, exists); err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	return nil
}
