package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/ldap"
	"github.com/isometry/vmname/internal/logging"
	"github.com/isometry/vmname/internal/taskgroup"
	"github.com/isometry/vmname/internal/vsphere"
)

// ServiceDirectory names the directory check in a preflight report.
const ServiceDirectory = "AD"

// CheckResult is the outcome of one connectivity check.
type CheckResult struct {
	Service string `json:"service"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PreflightReport collects every connectivity check of a run.
type PreflightReport struct {
	Results []CheckResult
}

// Passed reports whether every check succeeded.
func (r PreflightReport) Passed() bool {
	return len(r.Failures()) == 0
}

// Failures returns the failed checks in check order.
func (r PreflightReport) Failures() []CheckResult {
	return taskgroup.Collect(r.Results, func(c CheckResult) bool { return !c.Success })
}

// Err aggregates the failures, or returns nil.
func (r PreflightReport) Err() error {
	var result *multierror.Error
	for _, f := range r.Failures() {
		result = multierror.Append(result, fmt.Errorf("%s: %s", f.Service, f.Message))
	}
	return result.ErrorOrNil()
}

// Preflight verifies that every service of a run is reachable and accepts
// the configured credentials.
type Preflight struct {
	directory  Directory // nil when no directory check is required
	controller string
	sessions   SessionSource
	endpoints  []string
	timeout    time.Duration
	limit      int
}

// NewPreflight creates the checks for endpoints and, when directory is not
// nil, a bind against controller.
func NewPreflight(directory Directory, controller string, sessions SessionSource, endpoints []string, timeout time.Duration, limit int) *Preflight {
	return &Preflight{
		directory:  directory,
		controller: controller,
		sessions:   sessions,
		endpoints:  endpoints,
		timeout:    timeout,
		limit:      limit,
	}
}

// Run executes all checks concurrently and waits for each of them.
func (p *Preflight) Run(ctx context.Context) PreflightReport {
	var tasks []taskgroup.Task[CheckResult]
	if p.directory != nil {
		tasks = append(tasks, p.checkDirectory)
	}
	for _, endpoint := range p.endpoints {
		tasks = append(tasks, func(ctx context.Context) CheckResult {
			return p.checkEndpoint(ctx, endpoint)
		})
	}

	report := PreflightReport{Results: taskgroup.Run(ctx, tasks, p.limit)}

	for _, r := range report.Results {
		fields := map[string]any{
			"service": r.Service,
			"message": r.Message,
		}
		if r.Success {
			tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Preflight check passed", fields)
		} else {
			tflog.SubsystemError(ctx, logging.SubsystemEngine, "Preflight check failed", fields)
		}
	}

	return report
}

func (p *Preflight) checkDirectory(ctx context.Context) CheckResult {
	result := CheckResult{Service: ServiceDirectory}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.directory.Bind(ctx, p.controller); err != nil {
		result.Message = ldap.DescribeBindError(err)
		return result
	}

	result.Success = true
	result.Message = "Bind successful"
	return result
}

func (p *Preflight) checkEndpoint(ctx context.Context, endpoint string) CheckResult {
	result := CheckResult{Service: "vCenter-" + endpoint}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	session, err := p.sessions.Acquire(ctx, endpoint)
	if err != nil {
		result.Message = vsphere.DescribeConnectError(err)
		return result
	}

	user, err := session.Introspect(ctx)
	if err != nil {
		result.Message = vsphere.DescribeConnectError(err)
		return result
	}

	tflog.SubsystemDebug(ctx, vsphere.Subsystem, "vCenter session verified", map[string]any{
		"endpoint": endpoint,
		"user":     user,
	})

	result.Success = true
	result.Message = "vCenter connection OK"
	return result
}

// PreflightFailures returns the failed checks carried by err, if any.
func PreflightFailures(err error) ([]CheckResult, bool) {
	var pfErr *PreflightError
	if errors.As(err, &pfErr) {
		return pfErr.Report.Failures(), true
	}
	return nil, false
}
