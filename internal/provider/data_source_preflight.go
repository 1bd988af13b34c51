package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/logging"
	"github.com/isometry/vmname/internal/provider/validators"
)

var _ datasource.DataSource = &PreflightDataSource{}
var _ datasource.DataSourceWithConfigure = &PreflightDataSource{}

func NewPreflightDataSource() datasource.DataSource {
	return &PreflightDataSource{}
}

// PreflightDataSource reports the connectivity of every service a name
// resolution depends on.
type PreflightDataSource struct {
	data *ProviderData
}

// PreflightDataSourceModel describes the data source data model.
type PreflightDataSourceModel struct {
	ID          types.String          `tfsdk:"id"`
	VCenters    types.List            `tfsdk:"vcenters"`
	OSFamily    types.String          `tfsdk:"os_family"`
	Domain      types.String          `tfsdk:"domain"`
	TrustAnchor types.String          `tfsdk:"trust_anchor"`
	Controller  types.String          `tfsdk:"controller"`
	Passed      types.Bool            `tfsdk:"passed"`
	Checks      []PreflightCheckModel `tfsdk:"checks"`
}

// PreflightCheckModel is the outcome of one service check.
type PreflightCheckModel struct {
	Service types.String `tfsdk:"service"`
	Success types.Bool   `tfsdk:"success"`
	Message types.String `tfsdk:"message"`
}

func (d *PreflightDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_preflight"
}

func (d *PreflightDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Checks that every vCenter accepts the configured credentials and, for Windows, " +
			"that the first domain controller accepts a bind. Failed checks are reported in `checks`, not as errors.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Comma separated list of the checked vCenters.",
				Computed:            true,
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
			"os_family": schema.StringAttribute{
				MarkdownDescription: "`windows` adds a directory bind check. Defaults to `linux`.",
				Optional:            true,
				Validators: []validator.String{
					validators.OSFamily(),
				},
			},
			"domain": schema.StringAttribute{
				MarkdownDescription: "Active Directory domain used for controller discovery.",
				Optional:            true,
			},
			"trust_anchor": schema.StringAttribute{
				MarkdownDescription: "Path to a PEM file with the CA certificates of the domain controllers.",
				Optional:            true,
			},
			"controller": schema.StringAttribute{
				MarkdownDescription: "Bind to this domain controller instead of a discovered one.",
				Optional:            true,
				Validators: []validator.String{
					validators.Hostname(),
				},
			},
			"passed": schema.BoolAttribute{
				MarkdownDescription: "Whether every check succeeded.",
				Computed:            true,
			},
			"checks": schema.ListNestedAttribute{
				MarkdownDescription: "Outcome of each check, directory first.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"service": schema.StringAttribute{
							MarkdownDescription: "`AD` or `vCenter-<host>`.",
							Computed:            true,
						},
						"success": schema.BoolAttribute{
							Computed: true,
						},
						"message": schema.StringAttribute{
							MarkdownDescription: "Outcome description, e.g. `Invalid credentials`.",
							Computed:            true,
						},
					},
				},
			},
		},
	}
}

func (d *PreflightDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = configuredData(req.ProviderData, &resp.Diagnostics)
}

func (d *PreflightDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data PreflightDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.data == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The vmname provider must be configured before vmname_preflight can be read.",
		)
		return
	}

	family, err := availability.ParseOSFamily(data.OSFamily.ValueString())
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root("os_family"), "Invalid OS Family", err.Error())
		return
	}

	request := availability.Request{
		OS:          family,
		Endpoints:   listStrings(ctx, data.VCenters, &resp.Diagnostics),
		Domain:      data.Domain.ValueString(),
		TrustAnchor: data.TrustAnchor.ValueString(),
		Controller:  d.data.Controller,
	}
	if c := data.Controller.ValueString(); c != "" {
		request.Controller = c
	}
	if resp.Diagnostics.HasError() {
		return
	}

	var report availability.PreflightReport
	err = logging.LogOperation(ctx, subsystemProvider, "read vmname_preflight", map[string]any{
		"vcenters":   request.Endpoints,
		"os":         string(request.OS),
		"controller": request.Controller,
	}, func() error {
		var err error
		report, err = d.data.Resolver.RunPreflight(ctx, request)
		return err
	})
	if err != nil {
		addResolveError(&resp.Diagnostics, err)
		return
	}

	applyReport(&data, request, report)

	tflog.SubsystemInfo(ctx, subsystemProvider, "Preflight checks completed", map[string]any{
		"passed":   report.Passed(),
		"failures": len(report.Failures()),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// applyReport stores a preflight report in the model.
func applyReport(data *PreflightDataSourceModel, request availability.Request, report availability.PreflightReport) {
	data.ID = types.StringValue(strings.Join(request.Endpoints, ","))
	data.Passed = types.BoolValue(report.Passed())

	data.Checks = make([]PreflightCheckModel, 0, len(report.Results))
	for _, r := range report.Results {
		data.Checks = append(data.Checks, PreflightCheckModel{
			Service: types.StringValue(r.Service),
			Success: types.BoolValue(r.Success),
			Message: types.StringValue(r.Message),
		})
	}
}
