package availability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/isometry/vmname/internal/ldap"
)

var (
	// ErrConfiguration marks invalid input detected before any network activity.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNoControllers is returned when controller discovery fails outright.
	ErrNoControllers = ldap.ErrNoControllers

	// ErrAuthentication marks credentials rejected while probing.
	ErrAuthentication = errors.New("authentication failed")

	// ErrPreflightFailed marks a run halted by a failed connectivity check.
	ErrPreflightFailed = errors.New("preflight check failed")

	// ErrDirectoryUnverified is returned in strict mode when no controller
	// could answer for a name.
	ErrDirectoryUnverified = errors.New("directory could not be verified")
)

// PreflightError carries the failed checks of a halted run.
type PreflightError struct {
	Report PreflightReport
}

func (e *PreflightError) Error() string {
	failures := e.Report.Failures()
	services := make([]string, 0, len(failures))
	for _, f := range failures {
		services = append(services, f.Service)
	}
	return fmt.Sprintf("%s: %s", ErrPreflightFailed, strings.Join(services, ", "))
}

func (e *PreflightError) Unwrap() error {
	return ErrPreflightFailed
}

// ConfigError is an ErrConfiguration whose message is reported verbatim.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Configurationf returns a ConfigError with a formatted reason.
func Configurationf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
