package validators

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	"github.com/isometry/vmname/internal/availability"
)

var _ validator.String = osFamilyValidator{}

// osFamilyValidator accepts the operating system families a name can be
// resolved for, ignoring case and surrounding whitespace.
type osFamilyValidator struct{}

func (v osFamilyValidator) Description(_ context.Context) string {
	return "value must be one of: windows, linux (case-insensitive)"
}

func (v osFamilyValidator) MarkdownDescription(ctx context.Context) string {
	return "value must be one of: `windows`, `linux` (case-insensitive)"
}

func (v osFamilyValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	if _, err := availability.ParseOSFamily(request.ConfigValue.ValueString()); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid OS Family",
			err.Error(),
		)
	}
}

// OSFamily returns a validator for os_family attributes.
func OSFamily() validator.String {
	return osFamilyValidator{}
}
