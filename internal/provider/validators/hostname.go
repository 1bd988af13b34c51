package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = hostnameValidator{}

// hostnameValidator rejects values that cannot name a single host: blanks,
// embedded whitespace, URL schemes and comma separated lists.
type hostnameValidator struct{}

func (v hostnameValidator) Description(_ context.Context) string {
	return "value must be a single host name without scheme or separators"
}

func (v hostnameValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v hostnameValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()

	var problem string
	switch {
	case strings.TrimSpace(value) == "":
		problem = "host name cannot be empty"
	case strings.Contains(value, "://"):
		problem = "host name must not include a URL scheme"
	case strings.Contains(value, ","):
		problem = "list each host as a separate element instead of joining them with commas"
	case strings.ContainsAny(value, " \t\r\n"):
		problem = "host name must not contain whitespace"
	default:
		return
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Host Name",
		fmt.Sprintf("%s, got: %q", problem, value),
	)
}

// Hostname returns a validator for attributes naming a vCenter or domain
// controller host.
func Hostname() validator.String {
	return hostnameValidator{}
}
