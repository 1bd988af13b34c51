package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/ldap"
	"github.com/isometry/vmname/internal/logging"
	"github.com/isometry/vmname/internal/retry"
)

// Directory opens authenticated sessions against individual controllers.
// *ldap.Client satisfies it.
type Directory interface {
	Open(ctx context.Context, host string) (ldap.Session, error)
	Bind(ctx context.Context, host string) error
}

// DirectoryChecker looks a name up on each controller in turn.
type DirectoryChecker struct {
	directory   Directory
	controllers ControllerList
	policy      retry.Policy
	timeout     time.Duration
}

// NewDirectoryChecker creates a checker over controllers. Each controller is
// tried under policy; timeout bounds every attempt.
func NewDirectoryChecker(directory Directory, controllers ControllerList, policy retry.Policy, timeout time.Duration) *DirectoryChecker {
	if policy.Retryable == nil {
		policy.Retryable = isTransientDirectoryError
	}
	return &DirectoryChecker{
		directory:   directory,
		controllers: controllers,
		policy:      policy,
		timeout:     timeout,
	}
}

// isTransientDirectoryError reports whether a failed attempt is worth repeating.
// Only connectivity failures and expired attempt deadlines qualify.
func isTransientDirectoryError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ldap.IsRetryableError(err)
}

// Check reports whether name exists on any controller.
//
// Controllers are consulted in order and the first hit ends the check. A
// controller that answers without an entry passes the name to the next one;
// a controller that exhausts its attempts is skipped. Rejected credentials
// abort the check with ErrAuthentication.
func (d *DirectoryChecker) Check(ctx context.Context, name string) (DirectoryOutcome, []ProbeResult, error) {
	results := make([]ProbeResult, 0, len(d.controllers))
	answered := false

	for _, host := range d.controllers {
		result, err := d.checkController(ctx, host, name)
		if err != nil {
			return DirectoryUnverified, results, err
		}
		results = append(results, result)

		switch result.Status {
		case StatusSuccess:
			tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Name exists in directory", map[string]any{
				"name":       name,
				"controller": host,
			})
			return DirectoryFound, results, nil
		case StatusNotFound:
			answered = true
		}
	}

	fields := map[string]any{
		"name":        name,
		"controllers": len(d.controllers),
	}
	if !answered {
		tflog.SubsystemWarn(ctx, logging.SubsystemEngine, "No controller could answer; directory state unverified", fields)
		return DirectoryUnverified, results, nil
	}
	tflog.SubsystemDebug(ctx, logging.SubsystemEngine, "Name not found in directory", fields)
	return DirectoryAbsent, results, nil
}

func (d *DirectoryChecker) checkController(ctx context.Context, host, name string) (ProbeResult, error) {
	var entries []*ldap.ComputerEntry

	attempts, err := d.policy.DoNotify(ctx, func(ctx context.Context, _ int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		session, err := d.directory.Open(attemptCtx, host)
		if err != nil {
			return err
		}
		defer session.Close()

		entries, err = session.SearchComputer(attemptCtx, name)
		return err
	}, func(err error, attempt int, wait time.Duration) {
		tflog.SubsystemWarn(ctx, logging.SubsystemEngine, "Directory lookup failed, retrying", map[string]any{
			"controller": host,
			"name":       name,
			"attempt":    attempt,
			"wait_ms":    wait.Milliseconds(),
			"error":      err.Error(),
		})
	})

	result := ProbeResult{Source: host, Attempts: attempts}

	switch {
	case err == nil && len(entries) > 0:
		result.Found = true
		result.Status = StatusSuccess
		for _, entry := range entries {
			tflog.SubsystemDebug(ctx, ldap.Subsystem, "Computer object matched", map[string]any{
				"controller": host,
				"dn":         entry.DN,
				"sid":        entry.SID,
				"guid":       entry.GUID,
			})
		}
	case err == nil:
		result.Status = StatusNotFound
	case ctx.Err() != nil:
		return result, ctx.Err()
	case ldap.IsAuthenticationError(err):
		return result, fmt.Errorf("%w: controller %s rejected the directory credentials: %w", ErrAuthentication, host, err)
	default:
		result.Status = StatusConnectionFailed
		result.Err = err
		ldap.LogLDAPError(ctx, "computer_lookup", err, map[string]any{
			"controller": host,
			"name":       name,
			"attempts":   attempts,
		})
	}

	return result, nil
}
