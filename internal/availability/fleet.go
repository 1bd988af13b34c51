package availability

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/logging"
	"github.com/isometry/vmname/internal/retry"
	"github.com/isometry/vmname/internal/taskgroup"
	"github.com/isometry/vmname/internal/vsphere"
)

// SessionSource hands out live vCenter sessions. *vsphere.Pool satisfies it.
type SessionSource interface {
	Acquire(ctx context.Context, endpoint string) (vsphere.Session, error)
}

// FleetChecker looks a name up at every (endpoint, partition) target at once.
type FleetChecker struct {
	sessions SessionSource
	targets  []ProbeTarget
	timeout  time.Duration
	limit    int
}

// NewFleetChecker creates a checker over targets. timeout bounds each
// inventory lookup; limit caps concurrent lookups (0 is unbounded).
func NewFleetChecker(sessions SessionSource, targets []ProbeTarget, timeout time.Duration, limit int) *FleetChecker {
	return &FleetChecker{
		sessions: sessions,
		targets:  targets,
		timeout:  timeout,
		limit:    limit,
	}
}

// Targets returns the fixed target set.
func (f *FleetChecker) Targets() []ProbeTarget {
	return f.targets
}

// Check reports whether name exists at any target. Every target is probed
// once and all lookups complete before Check returns. A target that cannot be
// queried counts as not holding the name.
func (f *FleetChecker) Check(ctx context.Context, name string) (bool, []ProbeResult) {
	tasks := make([]taskgroup.Task[ProbeResult], len(f.targets))
	for i, target := range f.targets {
		tasks[i] = func(ctx context.Context) ProbeResult {
			return f.checkTarget(ctx, target, name)
		}
	}

	results := taskgroup.Run(ctx, tasks, f.limit)
	isFound := func(r ProbeResult) bool { return r.Found }

	if taskgroup.Any(results, isFound) {
		found := taskgroup.Collect(results, isFound)
		locations := make([]string, 0, len(found))
		for _, r := range found {
			locations = append(locations, r.Source)
		}
		tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Name exists in vCenter", map[string]any{
			"name":      name,
			"locations": locations,
		})
		return true, results
	}

	tflog.SubsystemDebug(ctx, logging.SubsystemEngine, "Name not found in vCenter", map[string]any{
		"name":    name,
		"checked": len(results),
	})
	return false, results
}

// checkTarget runs a single lookup; a failed target is not retried.
func (f *FleetChecker) checkTarget(ctx context.Context, target ProbeTarget, name string) ProbeResult {
	result := ProbeResult{Source: target.String()}

	var found bool
	attempts, err := retry.Single.Do(ctx, func(ctx context.Context, _ int) error {
		session, err := f.sessions.Acquire(ctx, target.Endpoint)
		if err != nil {
			return err
		}

		lookupCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		found, err = session.FindByInventoryPath(lookupCtx, target.Path(name))
		return err
	})
	result.Attempts = attempts
	if err != nil {
		return failedTarget(ctx, result, name, err)
	}

	result.Found = found
	if found {
		result.Status = StatusSuccess
	} else {
		result.Status = StatusNotFound
	}
	return result
}

func failedTarget(ctx context.Context, result ProbeResult, name string, err error) ProbeResult {
	result.Status = StatusConnectionFailed
	result.Err = err
	tflog.SubsystemWarn(ctx, vsphere.Subsystem, "Inventory lookup failed; treating target as not holding the name", map[string]any{
		"target": result.Source,
		"name":   name,
		"error":  err.Error(),
	})
	return result
}
