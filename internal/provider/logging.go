package provider

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/logging"
)

const subsystemProvider = "provider"

// initializeLogging adds the provider subsystem and the engine subsystems to
// ctx. Call it at the start of Configure and of every data source Read.
//
// Levels follow the Terraform convention TF_LOG_PROVIDER_VMNAME_<SUBSYSTEM>
// for the provider subsystem and VMNAME_LOG_<SUBSYSTEM> for the engine.
func initializeLogging(ctx context.Context) context.Context {
	ctx = tflog.NewSubsystem(ctx, subsystemProvider,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_VMNAME_PROVIDER"))
	return logging.WithSubsystems(ctx, hclog.NoLevel)
}
