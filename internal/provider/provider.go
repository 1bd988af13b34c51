package provider

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/config"
	"github.com/isometry/vmname/internal/provider/validators"
)

// Environment variables for settings that have no counterpart in the CLI
// environment.
const (
	EnvConnectTimeout  = "VMNAME_CONNECT_TIMEOUT"
	EnvReadTimeout     = "VMNAME_READ_TIMEOUT"
	EnvProbeTimeout    = "VMNAME_PROBE_TIMEOUT"
	EnvMaxRetries      = "VMNAME_MAX_RETRIES"
	EnvRetryDelay      = "VMNAME_RETRY_DELAY"
	EnvLDAPSPort       = "VMNAME_LDAPS_PORT"
	EnvConcurrency     = "VMNAME_CONCURRENCY"
	EnvStrictDirectory = "VMNAME_STRICT_DIRECTORY"
)

var spnPattern = regexp.MustCompile(`^ldap/[^/\s]+$`)

// Ensure VMNameProvider satisfies various provider interfaces.
var _ provider.Provider = &VMNameProvider{}
var _ provider.ProviderWithFunctions = &VMNameProvider{}
var _ provider.ProviderWithConfigValidators = &VMNameProvider{}

// Resolver is the part of the availability engine used by data sources.
type Resolver interface {
	Run(ctx context.Context, req availability.Request) (availability.Decision, error)
	RunPreflight(ctx context.Context, req availability.Request) (availability.PreflightReport, error)
}

// EngineFactory builds the resolver handed to data sources.
type EngineFactory func(settings availability.Settings) Resolver

// DefaultEngine builds an availability engine with production dependencies.
func DefaultEngine(settings availability.Settings) Resolver {
	return availability.NewEngine(settings)
}

// ProviderData is passed to every data source.
type ProviderData struct {
	Resolver        Resolver
	Controller      string
	StrictDirectory bool
}

// VMNameProvider defines the provider implementation.
type VMNameProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version   string
	newEngine EngineFactory
}

// VMNameProviderModel describes the provider data model.
type VMNameProviderModel struct {
	// vCenter credentials
	VCenterUsername types.String `tfsdk:"vcenter_username"`
	VCenterPassword types.String `tfsdk:"vcenter_password"`

	// Directory settings
	ADUsername types.String `tfsdk:"ad_username"`
	ADPassword types.String `tfsdk:"ad_password"`
	Controller types.String `tfsdk:"controller"`
	LDAPSPort  types.Int64  `tfsdk:"ldaps_port"`

	// Kerberos settings (optional)
	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	// Timeouts in seconds
	ConnectTimeout types.Int64 `tfsdk:"connect_timeout"`
	ReadTimeout    types.Int64 `tfsdk:"read_timeout"`
	ProbeTimeout   types.Int64 `tfsdk:"probe_timeout"`

	// Directory retry settings
	MaxRetries types.Int64 `tfsdk:"max_retries"`
	RetryDelay types.Int64 `tfsdk:"retry_delay"`

	Concurrency     types.Int64 `tfsdk:"concurrency"`
	StrictDirectory types.Bool  `tfsdk:"strict_directory"`
}

func (p *VMNameProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "vmname"
	resp.Version = p.version
}

func (p *VMNameProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The vmname provider resolves virtual machine names that are free in both vCenter and Active Directory. " +
			"It discovers domain controllers via DNS SRV records, checks every vCenter and datacenter partition, " +
			"and allocates the lowest free two-digit index for personal names.",
		Attributes: map[string]schema.Attribute{
			"vcenter_username": schema.StringAttribute{
				MarkdownDescription: "Username for vCenter authentication. " +
					"Can be set via the `VC_USER` environment variable.",
				Optional: true,
			},
			"vcenter_password": schema.StringAttribute{
				MarkdownDescription: "Password for vCenter authentication. " +
					"Can be set via the `VC_PASS` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"ad_username": schema.StringAttribute{
				MarkdownDescription: "Username for the Active Directory bind. Supports DN, UPN, or `DOMAIN\\user` formats. " +
					"Only needed for Windows names. Can be set via the `AD_USER` environment variable.",
				Optional: true,
			},
			"ad_password": schema.StringAttribute{
				MarkdownDescription: "Password for the Active Directory bind. " +
					"Can be set via the `AD_PASS` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"controller": schema.StringAttribute{
				MarkdownDescription: "Query this domain controller instead of discovering controllers via DNS SRV records. " +
					"Can be set via the `AD_SERVER` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.Hostname(),
				},
			},
			"ldaps_port": schema.Int64Attribute{
				MarkdownDescription: "LDAPS port of the domain controllers. Defaults to `636`. " +
					"Can be set via the `" + EnvLDAPSPort + "` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},

			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for GSSAPI authentication (e.g., `EXAMPLE.COM`). " +
					"Can be set via the `AD_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos keytab file for authentication. " +
					"Can be set via the `AD_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos configuration file. Defaults to system default. " +
					"Can be set via the `AD_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos credential cache file for authentication. " +
					"Can be set via the `AD_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override Service Principal Name (SPN) for Kerberos authentication. " +
					"Format: `ldap/<hostname>`. Can be set via the `AD_KERBEROS_SPN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.RegexMatches(spnPattern, "must have the form ldap/<hostname>"),
				},
			},

			"connect_timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection timeout in seconds for vCenter and domain controllers. Defaults to `10`. " +
					"Can be set via the `" + EnvConnectTimeout + "` environment variable.",
				Optional:   true,
				Validators: []validator.Int64{int64validator.AtLeast(1)},
			},
			"read_timeout": schema.Int64Attribute{
				MarkdownDescription: "LDAP read timeout in seconds. Defaults to `10`. " +
					"Can be set via the `" + EnvReadTimeout + "` environment variable.",
				Optional:   true,
				Validators: []validator.Int64{int64validator.AtLeast(1)},
			},
			"probe_timeout": schema.Int64Attribute{
				MarkdownDescription: "Timeout in seconds of a single existence lookup. Defaults to `5`. " +
					"Can be set via the `" + EnvProbeTimeout + "` environment variable.",
				Optional:   true,
				Validators: []validator.Int64{int64validator.AtLeast(1)},
			},
			"max_retries": schema.Int64Attribute{
				MarkdownDescription: "Attempts per domain controller before it is considered unreachable. Defaults to `3`. " +
					"Can be set via the `" + EnvMaxRetries + "` environment variable.",
				Optional:   true,
				Validators: []validator.Int64{int64validator.AtLeast(1)},
			},
			"retry_delay": schema.Int64Attribute{
				MarkdownDescription: "Delay in seconds between attempts against a domain controller. Defaults to `5`. " +
					"Can be set via the `" + EnvRetryDelay + "` environment variable.",
				Optional:   true,
				Validators: []validator.Int64{int64validator.AtLeast(0)},
			},
			"concurrency": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of concurrent vCenter lookups; `0` means unbounded. Defaults to `16`. " +
					"Can be set via the `" + EnvConcurrency + "` environment variable.",
				Optional:   true,
				Validators: []validator.Int64{int64validator.AtLeast(0)},
			},
			"strict_directory": schema.BoolAttribute{
				MarkdownDescription: "Fail instead of treating a name as absent when no domain controller could answer. Defaults to `false`. " +
					"Can be set via the `" + EnvStrictDirectory + "` environment variable.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *VMNameProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.RequiredTogether(
			path.MatchRoot("vcenter_username"),
			path.MatchRoot("vcenter_password"),
		),
		// A keytab and a credential cache are alternative Kerberos sources
		providervalidator.Conflicting(
			path.MatchRoot("kerberos_keytab"),
			path.MatchRoot("kerberos_ccache"),
		),
	}
}

func (p *VMNameProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data VMNameProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = initializeLogging(ctx)
	tflog.SubsystemInfo(ctx, subsystemProvider, "Configuring vmname provider", map[string]any{
		"version": p.version,
	})

	cfg := p.buildConfig(&data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := cfg.Validate(); err != nil {
		resp.Diagnostics.AddError(
			"Invalid Provider Configuration",
			"The provider configuration cannot be used to resolve names.\n\n"+
				"Configuration Error: "+err.Error(),
		)
		return
	}

	if cfg.VCenterUser == "" || cfg.VCenterPassword == "" {
		resp.Diagnostics.AddWarning(
			"Missing vCenter Credentials",
			"No vCenter credentials were configured. Set 'vcenter_username' and 'vcenter_password' "+
				"or the VC_USER and VC_PASS environment variables before reading vmname data sources.",
		)
	}

	newEngine := p.newEngine
	if newEngine == nil {
		newEngine = DefaultEngine
	}

	providerData := &ProviderData{
		Resolver:        newEngine(cfg.Settings()),
		Controller:      cfg.Controller,
		StrictDirectory: cfg.StrictDirectory,
	}

	tflog.SubsystemInfo(ctx, subsystemProvider, "vmname provider configured successfully", map[string]any{
		"controller":        cfg.Controller,
		"strict_directory":  cfg.StrictDirectory,
		"probe_timeout_ms":  cfg.ProbeTimeout.Milliseconds(),
		"directory_retries": cfg.RetryAttempts,
		"concurrency":       cfg.Concurrency,
	})

	resp.DataSourceData = providerData
}

// buildConfig constructs the run configuration from provider config and
// environment variables.
func (p *VMNameProvider) buildConfig(data *VMNameProviderModel, diags *diag.Diagnostics) *config.Config {
	cfg, err := config.New()
	if err != nil {
		diags.AddError("Unable to Initialize Configuration", err.Error())
		return nil
	}

	cfg.VCenterUser = p.getStringValue(data.VCenterUsername, config.EnvVCenterUser)
	cfg.VCenterPassword = p.getStringValue(data.VCenterPassword, config.EnvVCenterPassword)
	cfg.ADUser = p.getStringValue(data.ADUsername, config.EnvADUser)
	cfg.ADPassword = p.getStringValue(data.ADPassword, config.EnvADPassword)
	cfg.Controller = p.getStringValue(data.Controller, config.EnvADServer)

	cfg.KerberosRealm = p.getStringValue(data.KerberosRealm, config.EnvKerberosRealm)
	cfg.KerberosKeytab = p.getStringValue(data.KerberosKeytab, config.EnvKerberosKeytab)
	cfg.KerberosConfig = p.getStringValue(data.KerberosConfig, config.EnvKerberosConfig)
	cfg.KerberosCCache = p.getStringValue(data.KerberosCCache, config.EnvKerberosCCache)
	cfg.KerberosSPN = p.getStringValue(data.KerberosSPN, config.EnvKerberosSPN)

	cfg.Port = int(p.getInt64Value(data.LDAPSPort, EnvLDAPSPort, int64(cfg.Port)))
	cfg.ConnectTimeout = p.getSecondsValue(data.ConnectTimeout, EnvConnectTimeout, cfg.ConnectTimeout)
	cfg.ReadTimeout = p.getSecondsValue(data.ReadTimeout, EnvReadTimeout, cfg.ReadTimeout)
	cfg.ProbeTimeout = p.getSecondsValue(data.ProbeTimeout, EnvProbeTimeout, cfg.ProbeTimeout)
	cfg.RetryAttempts = int(p.getInt64Value(data.MaxRetries, EnvMaxRetries, int64(cfg.RetryAttempts)))
	cfg.RetryDelay = p.getSecondsValue(data.RetryDelay, EnvRetryDelay, cfg.RetryDelay)
	cfg.Concurrency = int(p.getInt64Value(data.Concurrency, EnvConcurrency, int64(cfg.Concurrency)))
	cfg.StrictDirectory = p.getBoolValue(data.StrictDirectory, EnvStrictDirectory, false)

	return cfg
}

// Helper functions for configuration value resolution

func (p *VMNameProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && !configValue.IsUnknown() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *VMNameProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *VMNameProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *VMNameProvider) getSecondsValue(configValue types.Int64, envVar string, defaultValue time.Duration) time.Duration {
	seconds := p.getInt64Value(configValue, envVar, int64(defaultValue/time.Second))
	return time.Duration(seconds) * time.Second
}

func (p *VMNameProvider) Resources(ctx context.Context) []func() resource.Resource {
	return nil
}

func (p *VMNameProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewAvailabilityDataSource,
		NewPreflightDataSource,
	}
}

func (p *VMNameProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewCandidateFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &VMNameProvider{
			version:   version,
			newEngine: DefaultEngine,
		}
	}
}

// newWithEngine returns a provider whose data sources resolve through the
// resolvers built by factory.
func newWithEngine(version string, factory EngineFactory) func() provider.Provider {
	return func() provider.Provider {
		return &VMNameProvider{
			version:   version,
			newEngine: factory,
		}
	}
}

// configuredData asserts the provider data handed to a data source.
func configuredData(providerData any, diags *diag.Diagnostics) *ProviderData {
	if providerData == nil {
		return nil
	}

	data, ok := providerData.(*ProviderData)
	if !ok {
		diags.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *provider.ProviderData, got: %T. Please report this issue to the provider developers.", providerData),
		)
		return nil
	}
	return data
}
