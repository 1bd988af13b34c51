package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/datasourcevalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/logging"
	"github.com/isometry/vmname/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &AvailabilityDataSource{}
var _ datasource.DataSourceWithConfigure = &AvailabilityDataSource{}
var _ datasource.DataSourceWithConfigValidators = &AvailabilityDataSource{}

func NewAvailabilityDataSource() datasource.DataSource {
	return &AvailabilityDataSource{}
}

// AvailabilityDataSource resolves a free VM name.
type AvailabilityDataSource struct {
	data *ProviderData
}

// AvailabilityDataSourceModel describes the data source data model.
type AvailabilityDataSourceModel struct {
	ID types.String `tfsdk:"id"`

	// Inputs
	Name            types.String `tfsdk:"name"`
	Prefix          types.String `tfsdk:"prefix"`
	OSFamily        types.String `tfsdk:"os_family"`
	VCenters        types.List   `tfsdk:"vcenters"`
	Partitions      types.List   `tfsdk:"partitions"`
	Domain          types.String `tfsdk:"domain"`
	TrustAnchor     types.String `tfsdk:"trust_anchor"`
	Controller      types.String `tfsdk:"controller"`
	StrictDirectory types.Bool   `tfsdk:"strict_directory"`

	// Decision
	Available types.Bool   `tfsdk:"available"`
	VMName    types.String `tfsdk:"vm_name"`
	Index     types.Int64  `tfsdk:"index"`
	Reason    types.String `tfsdk:"reason"`
}

func (d *AvailabilityDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_availability"
}

func (d *AvailabilityDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Determines whether a VM name is free in vCenter and, for Windows machines, in Active Directory. " +
			"With `name` the literal name is checked. With `prefix` the lowest free name `<prefix>01` to `<prefix>99` is allocated.\n\n" +
			"Every vCenter and the directory are checked for connectivity before any name is probed; " +
			"a failed check is reported as an error listing the unreachable services.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The checked name, or the prefix when allocating.",
				Computed:            true,
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The exact VM name to check. Exactly one of `name` or `prefix` must be specified.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"prefix": schema.StringAttribute{
				MarkdownDescription: "Allocate the first free name `<prefix>NN`, with `NN` from `01` to `99`. " +
					"Exactly one of `name` or `prefix` must be specified.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"os_family": schema.StringAttribute{
				MarkdownDescription: "Operating system family of the VM: `windows` or `linux` (case-insensitive). " +
					"Windows names are also checked in Active Directory. Defaults to `linux`.",
				Optional: true,
				Validators: []validator.String{
					validators.OSFamily(),
				},
			},
			"vcenters": schema.ListAttribute{
				MarkdownDescription: "vCenter hosts to check.",
				ElementType:         types.StringType,
				Required:            true,
				Validators: []validator.List{
					listvalidator.SizeAtLeast(1),
					listvalidator.ValueStringsAre(validators.Hostname()),
				},
			},
			"partitions": schema.ListAttribute{
				MarkdownDescription: "Inventory paths checked on every vCenter (e.g., `/DC1/vm`).",
				ElementType:         types.StringType,
				Required:            true,
				Validators: []validator.List{
					listvalidator.SizeAtLeast(1),
					listvalidator.ValueStringsAre(stringvalidator.LengthAtLeast(1)),
				},
			},
			"domain": schema.StringAttribute{
				MarkdownDescription: "Active Directory domain used for controller discovery. Required when `os_family` is `windows`.",
				Optional:            true,
			},
			"trust_anchor": schema.StringAttribute{
				MarkdownDescription: "Path to a PEM file with the CA certificates of the domain controllers. " +
					"When the file does not exist, controller certificates are not verified.",
				Optional: true,
			},
			"controller": schema.StringAttribute{
				MarkdownDescription: "Query this domain controller instead of the provider's `controller` or discovered controllers.",
				Optional:            true,
				Validators: []validator.String{
					validators.Hostname(),
				},
			},
			"strict_directory": schema.BoolAttribute{
				MarkdownDescription: "Overrides the provider's `strict_directory` for this lookup.",
				Optional:            true,
			},

			"available": schema.BoolAttribute{
				MarkdownDescription: "Whether a free name was found.",
				Computed:            true,
			},
			"vm_name": schema.StringAttribute{
				MarkdownDescription: "The checked or allocated name. Null when every index is in use.",
				Computed:            true,
			},
			"index": schema.Int64Attribute{
				MarkdownDescription: "The allocated index. Only set when allocating with `prefix`.",
				Computed:            true,
			},
			"reason": schema.StringAttribute{
				MarkdownDescription: "Why no name is available, e.g. `VM exists in AD`. Null when `available` is true.",
				Computed:            true,
			},
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *AvailabilityDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("name"),
			path.MatchRoot("prefix"),
		),
	}
}

func (d *AvailabilityDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = configuredData(req.ProviderData, &resp.Diagnostics)
}

func (d *AvailabilityDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data AvailabilityDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.data == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The vmname provider must be configured before vmname_availability can be read.",
		)
		return
	}

	request := d.buildRequest(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	var decision availability.Decision
	err := logging.LogOperation(ctx, subsystemProvider, "read vmname_availability", map[string]any{
		"name":       request.Name,
		"prefix":     request.Prefix,
		"os":         string(request.OS),
		"vcenters":   request.Endpoints,
		"partitions": request.Partitions,
	}, func() error {
		var err error
		decision, err = d.data.Resolver.Run(ctx, request)
		return err
	})
	if err != nil {
		addResolveError(&resp.Diagnostics, err)
		return
	}

	applyDecision(&data, request, decision)

	tflog.SubsystemInfo(ctx, subsystemProvider, "Resolved VM name", map[string]any{
		"id":        data.ID.ValueString(),
		"available": decision.Available,
		"vm_name":   data.VMName.ValueString(),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// buildRequest maps the data source model onto an engine request, applying
// provider level defaults.
func (d *AvailabilityDataSource) buildRequest(ctx context.Context, data *AvailabilityDataSourceModel, diags *diag.Diagnostics) availability.Request {
	family, err := availability.ParseOSFamily(data.OSFamily.ValueString())
	if err != nil {
		diags.AddAttributeError(path.Root("os_family"), "Invalid OS Family", err.Error())
	}

	request := availability.Request{
		Name:            data.Name.ValueString(),
		Literal:         true,
		OS:              family,
		Endpoints:       listStrings(ctx, data.VCenters, diags),
		Partitions:      listStrings(ctx, data.Partitions, diags),
		Domain:          data.Domain.ValueString(),
		TrustAnchor:     data.TrustAnchor.ValueString(),
		Controller:      d.data.Controller,
		StrictDirectory: d.data.StrictDirectory,
	}

	if prefix := data.Prefix.ValueString(); prefix != "" {
		request.Name = availability.PersonalMode
		request.Literal = false
		request.Prefix = prefix
	}
	if !data.Controller.IsNull() && data.Controller.ValueString() != "" {
		request.Controller = data.Controller.ValueString()
	}
	if !data.StrictDirectory.IsNull() && !data.StrictDirectory.IsUnknown() {
		request.StrictDirectory = data.StrictDirectory.ValueBool()
	}

	return request
}

// applyDecision stores the engine's decision in the model.
func applyDecision(data *AvailabilityDataSourceModel, request availability.Request, decision availability.Decision) {
	if request.Personal() {
		data.ID = types.StringValue(request.Prefix)
	} else {
		data.ID = types.StringValue(request.Name)
	}

	data.Available = types.BoolValue(decision.Available)
	data.VMName = types.StringPointerValue(decision.VMName)
	data.Reason = types.StringPointerValue(decision.Reason)

	if decision.Index != nil {
		data.Index = types.Int64Value(int64(*decision.Index))
	} else {
		data.Index = types.Int64Null()
	}
}

// addResolveError converts an engine error into diagnostics.
func addResolveError(diags *diag.Diagnostics, err error) {
	var configErr *availability.ConfigError

	if failures, ok := availability.PreflightFailures(err); ok {
		var detail strings.Builder
		detail.WriteString(availability.ReasonPreflightFailed + ":\n")
		for _, f := range failures {
			fmt.Fprintf(&detail, "\n  - %s: %s", f.Service, f.Message)
		}
		diags.AddError("Preflight Check Failed", detail.String())
		return
	}

	switch {
	case errors.As(err, &configErr):
		diags.AddError("Invalid Configuration", configErr.Reason)
	case errors.Is(err, availability.ErrConfiguration):
		diags.AddError("Invalid Configuration", err.Error())
	case errors.Is(err, availability.ErrNoControllers):
		diags.AddError(
			"No Domain Controllers Found",
			"No domain controller could be discovered for the domain. "+
				"Verify the domain name or set 'controller'.\n\n"+
				"Discovery Error: "+err.Error(),
		)
	case errors.Is(err, availability.ErrAuthentication):
		diags.AddError(
			"Authentication Failed",
			"A domain controller rejected the directory credentials.\n\n"+
				"Authentication Error: "+err.Error(),
		)
	case errors.Is(err, availability.ErrDirectoryUnverified):
		diags.AddError(
			"Directory Unverified",
			"No domain controller answered and strict_directory is enabled.\n\n"+
				"Error: "+err.Error(),
		)
	default:
		diags.AddError(
			"Error Resolving VM Name",
			fmt.Sprintf("Could not resolve the VM name: %s", err.Error()),
		)
	}
}

// listStrings returns the elements of a string list, or nil when the list is
// null or unknown.
func listStrings(ctx context.Context, list types.List, diags *diag.Diagnostics) []string {
	if list.IsNull() || list.IsUnknown() {
		return nil
	}

	var values []string
	diags.Append(list.ElementsAs(ctx, &values, false)...)
	return values
}
