package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/isometry/vmname/internal/availability"
)

var _ function.Function = &CandidateFunction{}

func NewCandidateFunction() function.Function {
	return &CandidateFunction{}
}

// CandidateFunction implements the candidate function.
type CandidateFunction struct{}

// Metadata returns the function name.
func (f CandidateFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "candidate"
}

// Definition returns the function schema including parameters and return types.
func (f CandidateFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Build the VM name at an index of a prefix",
		Description: "Returns the prefix followed by the index as two zero-padded digits, the form used when allocating names. The index must be between 1 and 99.",
		MarkdownDescription: "Returns `prefix` followed by `index` as two zero-padded digits, the form used when allocating names.\n\n" +
			"For example `candidate(\"VDI-JS\", 6)` returns `VDI-JS06`. The index must be between `1` and `99`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "prefix",
				MarkdownDescription: "Name prefix, e.g. `VDI-JS`.",
			},
			function.Int64Parameter{
				Name:                "index",
				MarkdownDescription: "Index between `1` and `99`.",
			},
		},
		Return: function.StringReturn{},
	}
}

// Run implements the function logic.
func (f CandidateFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var prefix types.String
	var index types.Int64

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &prefix, &index))
	if resp.Error != nil {
		return
	}

	if prefix.ValueString() == "" {
		resp.Error = function.NewArgumentFuncError(0, "prefix cannot be empty")
		return
	}

	i := index.ValueInt64()
	if i < availability.MinIndex || i > availability.MaxIndex {
		resp.Error = function.NewArgumentFuncError(1, fmt.Sprintf("index must be between %d and %d, got %d", availability.MinIndex, availability.MaxIndex, i))
		return
	}

	resp.Error = resp.Result.Set(ctx, types.StringValue(availability.Candidate(prefix.ValueString(), int(i))))
}
