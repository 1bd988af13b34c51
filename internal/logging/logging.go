// Package logging configures structured logging for vmname runs.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
)

// Log subsystems.
const (
	SubsystemLDAP    = "ldap"
	SubsystemVSphere = "vsphere"
	SubsystemEngine  = "engine"
)

// EnvLogLevel selects the root log level; EnvLogLevel_<SUBSYSTEM> overrides a subsystem.
const EnvLogLevel = "VMNAME_LOG"

// Subsystems lists every subsystem created by NewRunContext.
var Subsystems = []string{SubsystemLDAP, SubsystemVSphere, SubsystemEngine}

// sensitiveKeys are masked wherever they appear as log field keys.
var sensitiveKeys = []string{"password", "passwd", "secret", "token", "credential", "credentials"}

// NewRunContext returns ctx carrying a JSON root logger on stderr and the
// vmname subsystems. An empty level defers to EnvLogLevel.
func NewRunContext(ctx context.Context, level string) (context.Context, error) {
	opts := tfsdklog.Options{
		tfsdklog.WithLogName("vmname"),
		tfsdklog.WithoutLocation(),
	}

	var subsystemLevel hclog.Level
	if level != "" {
		subsystemLevel = hclog.LevelFromString(level)
		if subsystemLevel == hclog.NoLevel {
			return ctx, fmt.Errorf("invalid log level %q", level)
		}
		opts = append(opts, tfsdklog.WithLevel(subsystemLevel))
	} else {
		opts = append(opts, tfsdklog.WithLevelFromEnv(EnvLogLevel))
	}

	ctx = tfsdklog.NewRootProviderLogger(ctx, opts...)
	return WithSubsystems(ctx, subsystemLevel), nil
}

// WithSubsystems attaches the vmname subsystems to a context that already
// carries a root logger, tagging every entry with a fresh run_id.
func WithSubsystems(ctx context.Context, level hclog.Level) context.Context {
	runID := uuid.NewString()

	ctx = tflog.SetField(ctx, "run_id", runID)
	ctx = tflog.MaskFieldValuesWithFieldKeys(ctx, sensitiveKeys...)

	for _, subsystem := range Subsystems {
		var opts tflog.Options
		if level != hclog.NoLevel {
			opts = append(opts, tflog.WithLevel(level))
		} else {
			opts = append(opts, tflog.WithLevelFromEnv(EnvLogLevel, strings.ToUpper(subsystem)))
		}

		ctx = tflog.NewSubsystem(ctx, subsystem, opts...)
		ctx = tflog.SubsystemSetField(ctx, subsystem, "run_id", runID)
		ctx = tflog.SubsystemMaskFieldValuesWithFieldKeys(ctx, subsystem, sensitiveKeys...)
	}

	return ctx
}
