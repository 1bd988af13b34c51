package provider

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateFunction_Metadata(t *testing.T) {
	var resp function.MetadataResponse
	CandidateFunction{}.Metadata(context.Background(), function.MetadataRequest{}, &resp)

	assert.Equal(t, "candidate", resp.Name)
}

func TestCandidateFunction_Definition(t *testing.T) {
	var resp function.DefinitionResponse
	CandidateFunction{}.Definition(context.Background(), function.DefinitionRequest{}, &resp)

	assert.NotEmpty(t, resp.Definition.Summary)
	require.Len(t, resp.Definition.Parameters, 2)
	assert.Equal(t, "prefix", resp.Definition.Parameters[0].GetName())
	assert.Equal(t, "index", resp.Definition.Parameters[1].GetName())
}

func TestCandidateFunction_Run(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		index     int64
		want      string
		wantError string
	}{
		{name: "single digit", prefix: "VDI-JS", index: 6, want: "VDI-JS06"},
		{name: "first", prefix: "web", index: 1, want: "web01"},
		{name: "last", prefix: "web", index: 99, want: "web99"},
		{name: "zero", prefix: "web", index: 0, wantError: "between 1 and 99"},
		{name: "too large", prefix: "web", index: 100, wantError: "between 1 and 99"},
		{name: "empty prefix", prefix: "", index: 1, wantError: "prefix cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := function.RunRequest{
				Arguments: function.NewArgumentsData([]attr.Value{
					types.StringValue(tt.prefix),
					types.Int64Value(tt.index),
				}),
			}
			resp := function.RunResponse{
				Result: function.NewResultData(types.StringUnknown()),
			}

			CandidateFunction{}.Run(context.Background(), req, &resp)

			if tt.wantError != "" {
				require.NotNil(t, resp.Error)
				assert.Contains(t, resp.Error.Error(), tt.wantError)
				return
			}

			require.Nil(t, resp.Error)
			got, ok := resp.Result.Value().(types.String)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.ValueString())
		})
	}
}
