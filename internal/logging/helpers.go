package logging

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// LogOperation runs fn, logging its start, duration and outcome under subsystem.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	fields = SanitizeFields(fields)
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, subsystem, "Operation failed", fields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", fields)
	}

	return err
}

// LogPoolEvent logs connection pool events.
func LogPoolEvent(ctx context.Context, subsystem, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "session_created", "session_reused", "session_released":
		tflog.SubsystemDebug(ctx, subsystem, "Pool event", fields)
	case "session_failed", "release_failed":
		tflog.SubsystemWarn(ctx, subsystem, "Pool event", fields)
	default:
		tflog.SubsystemTrace(ctx, subsystem, "Pool event", fields)
	}
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	for k, v := range fields {
		if isSensitiveKey(k) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if key == s {
			return true
		}
	}
	return false
}

// containsSensitivePattern checks if a string looks like it embeds a secret.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}
