package ldap

import (
	"context"
	"errors"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem is the log subsystem used by this package.
const Subsystem = "ldap"

// LogLDAPError logs directory-specific error information.
func LogLDAPError(ctx context.Context, operation string, err error, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["error"] = err.Error()
	fields["category"] = string(GetErrorCategory(err))
	fields["retryable"] = IsRetryableError(err)

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		fields["ldap_result_code"] = resultErr.ResultCode
		if resultErr.MatchedDN != "" {
			fields["ldap_matched_dn"] = resultErr.MatchedDN
		}
		if resultErr.Err != nil {
			fields["ldap_diagnostic_message"] = resultErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, Subsystem, "LDAP operation failed", fields)
}

// LogConnectionEvent logs connection-related events.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "connection_established", "authentication_success":
		tflog.SubsystemDebug(ctx, Subsystem, "Connection event", fields)
	case "connection_failed", "authentication_failed":
		tflog.SubsystemWarn(ctx, Subsystem, "Connection event", fields)
	default:
		tflog.SubsystemTrace(ctx, Subsystem, "Connection event", fields)
	}
}

// LogKerberosEvent logs Kerberos-specific events.
func LogKerberosEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "keytab_loaded", "credentials_cached", "config_generated":
		tflog.SubsystemDebug(ctx, Subsystem, "Kerberos event", fields)
	case "keytab_load_failed", "config_load_failed":
		tflog.SubsystemError(ctx, Subsystem, "Kerberos event", fields)
	default:
		tflog.SubsystemTrace(ctx, Subsystem, "Kerberos event", fields)
	}
}
