package provider

import (
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/vmname/internal/availability"
)

func readPreflight(t *testing.T, data *ProviderData, values map[string]tftypes.Value) (PreflightDataSourceModel, *datasource.ReadResponse) {
	t.Helper()

	ds := &PreflightDataSource{data: data}

	schemaResp := &datasource.SchemaResponse{}
	ds.Schema(t.Context(), datasource.SchemaRequest{}, schemaResp)

	req := datasource.ReadRequest{
		Config: tfsdk.Config{
			Schema: schemaResp.Schema,
			Raw:    objectValue(t, schemaResp.Schema.Type(), values),
		},
	}
	resp := &datasource.ReadResponse{
		State: tfsdk.State{
			Schema: schemaResp.Schema,
			Raw:    tftypes.NewValue(schemaResp.Schema.Type().TerraformType(t.Context()), nil),
		},
	}

	ds.Read(t.Context(), req, resp)

	var model PreflightDataSourceModel
	if !resp.Diagnostics.HasError() {
		resp.Diagnostics.Append(resp.State.Get(t.Context(), &model)...)
	}
	return model, resp
}

func TestPreflightDataSource_Read(t *testing.T) {
	tests := []struct {
		name       string
		results    []availability.CheckResult
		wantPassed bool
	}{
		{
			name: "all passed",
			results: []availability.CheckResult{
				{Service: availability.ServiceDirectory, Success: true, Message: "Bind successful"},
				{Service: "vCenter-vc01", Success: true, Message: "vCenter connection OK"},
			},
			wantPassed: true,
		},
		{
			name: "vcenter failed",
			results: []availability.CheckResult{
				{Service: availability.ServiceDirectory, Success: true, Message: "Bind successful"},
				{Service: "vCenter-vc01", Message: "Invalid credentials"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{report: availability.PreflightReport{Results: tt.results}}

			model, resp := readPreflight(t, &ProviderData{Resolver: resolver}, map[string]tftypes.Value{
				"vcenters":   tfStringList("vc01"),
				"os_family":  tfString("windows"),
				"domain":     tfString("corp.example.com"),
				"controller": tfString("dc02.corp.example.com"),
			})
			require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

			req := resolver.requests[0]
			assert.Equal(t, availability.OSWindows, req.OS)
			assert.Equal(t, "dc02.corp.example.com", req.Controller)

			assert.Equal(t, "vc01", model.ID.ValueString())
			assert.Equal(t, tt.wantPassed, model.Passed.ValueBool())
			require.Len(t, model.Checks, len(tt.results))
			for i, r := range tt.results {
				assert.Equal(t, r.Service, model.Checks[i].Service.ValueString())
				assert.Equal(t, r.Success, model.Checks[i].Success.ValueBool())
				assert.Equal(t, r.Message, model.Checks[i].Message.ValueString())
			}
		})
	}
}

func TestPreflightDataSource_ConfigurationError(t *testing.T) {
	resolver := &fakeResolver{err: availability.Configurationf("Missing vCenter credentials")}

	_, resp := readPreflight(t, &ProviderData{Resolver: resolver}, map[string]tftypes.Value{
		"vcenters": tfStringList("vc01", "vc02"),
	})

	require.True(t, resp.Diagnostics.HasError())
	assert.Equal(t, "Invalid Configuration", resp.Diagnostics.Errors()[0].Summary())
	assert.Equal(t, "Missing vCenter credentials", resp.Diagnostics.Errors()[0].Detail())
}
