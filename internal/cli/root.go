// Package cli implements the vmname command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/spf13/cobra"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/config"
	"github.com/isometry/vmname/internal/logging"
)

// Runner is the engine surface used by the commands.
type Runner interface {
	Run(ctx context.Context, req availability.Request) (availability.Decision, error)
	RunPreflight(ctx context.Context, req availability.Request) (availability.PreflightReport, error)
	CheckFleet(ctx context.Context, name string, endpoints, partitions []string) (bool, error)
}

// EngineFactory builds the Runner of a command invocation.
type EngineFactory func(settings availability.Settings) Runner

// DefaultEngine builds the real availability engine.
func DefaultEngine(settings availability.Settings) Runner {
	return availability.NewEngine(settings)
}

// errReported marks an error whose JSON result has already been written.
var errReported = errors.New("result reported")

// defaultLogLevel applies when neither --log-level nor the environment set one.
const defaultLogLevel = "info"

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, err := New(stdout, DefaultEngine)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		_ = EmitFailure(stdout, Reason(err))
		return 1
	}
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	return run(ctx, cmd, stdout)
}

func run(ctx context.Context, cmd *cobra.Command, stdout io.Writer) int {
	failed, err := cmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		cmd.PrintErrln("Error:", err)
		emitUsageFailure(stdout, failed, err)
	}
	return 1
}

// emitUsageFailure reports an error raised before a command could run, in
// the output format of that command.
func emitUsageFailure(w io.Writer, cmd *cobra.Command, err error) {
	reason := Reason(err)
	name := ""
	if cmd != nil {
		name = cmd.Name()
	}

	switch name {
	case "preflight":
		_ = emit(w, preflightResult{
			Errors: []availability.CheckResult{{Service: "parameters", Message: reason}},
		})
	case "exists":
		_ = emit(w, existsResult{Error: reason})
	default:
		_ = EmitFailure(w, reason)
	}
}

// New returns the root command. Results are written to stdout.
func New(stdout io.Writer, newEngine EngineFactory) (*cobra.Command, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:   "vmname <vm-name|personal> <prefix> <vcenters> <partition-paths> [<windows|linux> [<domain> [<trust-anchor>]]]",
		Short: "Decide whether a VM name is free across Active Directory and vCenter",
		Long: `vmname checks a VM name against Active Directory and a fleet of vCenter
servers and prints exactly one JSON result on stdout.

With a literal name, that name is checked. With "personal", the first free
name in <prefix>01..<prefix>99 is returned.

vCenters and partition paths are comma-separated. Credentials are read from
VC_USER, VC_PASS, AD_USER and AD_PASS.

A VM literally named "preflight" or "exists" is checked by ending the flags
first: vmname -- preflight <prefix> <vcenters> <partition-paths> ...`,
		Args:              cobra.MaximumNArgs(7),
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), stdout, newEngine, cfg, args)
		},
	}

	// Keep "completion" usable as a VM name
	cmd.CompletionOptions.DisableDefaultCmd = true

	registerFlags(cmd, cfg)
	cmd.AddCommand(newPreflightCommand(stdout, newEngine, cfg))
	cmd.AddCommand(newExistsCommand(stdout, newEngine, cfg))
	return cmd, nil
}

func registerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()
	flags.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Timeout for connecting to a controller or vCenter")
	flags.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Timeout for a single directory response")
	flags.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Timeout for one directory attempt or one inventory lookup")
	flags.IntVar(&cfg.RetryAttempts, "retry-attempts", cfg.RetryAttempts, "Directory attempts per controller")
	flags.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Wait between directory attempts")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "LDAPS port of the domain controllers")
	flags.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Maximum concurrent checks (0 for unbounded)")
	flags.StringVar(&cfg.Controller, "controller", "", "Use only this domain controller instead of DNS discovery (env AD_SERVER)")
	flags.BoolVar(&cfg.StrictDirectory, "strict-directory", false, "Fail when no domain controller can answer instead of treating the name as absent")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error (env "+logging.EnvLogLevel+")")
	flags.StringVar(&cfg.KerberosRealm, "krb5-realm", "", "Kerberos realm; enables GSSAPI bind (env "+config.EnvKerberosRealm+")")
	flags.StringVar(&cfg.KerberosKeytab, "krb5-keytab", "", "Kerberos keytab file (env "+config.EnvKerberosKeytab+")")
	flags.StringVar(&cfg.KerberosConfig, "krb5-config", "", "krb5.conf file (env "+config.EnvKerberosConfig+")")
	flags.StringVar(&cfg.KerberosCCache, "krb5-ccache", "", "Kerberos credential cache (env "+config.EnvKerberosCCache+")")
	flags.StringVar(&cfg.KerberosSPN, "krb5-spn", "", "LDAP service principal override (env "+config.EnvKerberosSPN+")")
}

// setup completes cfg from the environment and installs the run logger.
func setup(cmd *cobra.Command, cfg *config.Config) error {
	cfg.LoadEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.LogLevel
	if level == "" {
		if _, ok := os.LookupEnv(logging.EnvLogLevel); !ok {
			level = defaultLogLevel
		}
	}

	ctx, err := logging.NewRunContext(cmd.Context(), level)
	if err != nil {
		return availability.Configurationf("%s", err)
	}
	cmd.SetContext(ctx)
	return nil
}

func runResolve(ctx context.Context, stdout io.Writer, newEngine EngineFactory, cfg *config.Config, args []string) error {
	positional(args, &cfg.Name, &cfg.Prefix)
	if len(args) > 2 {
		cfg.Endpoints = availability.SplitList(args[2])
	}
	if len(args) > 3 {
		cfg.Partitions = availability.SplitList(args[3])
	}
	if len(args) > 4 {
		cfg.OS = args[4]
	}
	if len(args) > 5 {
		positional(args[5:], &cfg.Domain, &cfg.TrustAnchor)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	decision, err := newEngine(cfg.Settings()).Run(ctx, cfg.Request())
	if err != nil {
		logFailure(ctx, err)
		if failures, ok := availability.PreflightFailures(err); ok {
			_ = EmitPreflightFailure(stdout, failures)
		} else {
			_ = EmitFailure(stdout, Reason(err))
		}
		return errReported
	}

	if err := EmitDecision(stdout, decision); err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	return nil
}

// positional assigns args to dsts in order.
func positional(args []string, dsts ...*string) {
	for i, dst := range dsts {
		if i < len(args) {
			*dst = args[i]
		}
	}
}

func logFailure(ctx context.Context, err error) {
	fields := map[string]any{"error": err.Error()}
	if errors.Is(err, context.Canceled) {
		tflog.SubsystemWarn(ctx, logging.SubsystemEngine, "Interrupted", fields)
		return
	}
	tflog.SubsystemError(ctx, logging.SubsystemEngine, "Run failed", fields)
}
