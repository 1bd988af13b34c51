package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/vmname/internal/availability"
)

type fakeRunner struct {
	settings availability.Settings
	request  availability.Request

	decision availability.Decision
	report   availability.PreflightReport
	exists   bool
	err      error

	fleetName       string
	fleetEndpoints  []string
	fleetPartitions []string
}

func (r *fakeRunner) Run(_ context.Context, req availability.Request) (availability.Decision, error) {
	r.request = req
	return r.decision, r.err
}

func (r *fakeRunner) RunPreflight(_ context.Context, req availability.Request) (availability.PreflightReport, error) {
	r.request = req
	return r.report, r.err
}

func (r *fakeRunner) CheckFleet(_ context.Context, name string, endpoints, partitions []string) (bool, error) {
	r.fleetName, r.fleetEndpoints, r.fleetPartitions = name, endpoints, partitions
	return r.exists, r.err
}

func execute(t *testing.T, runner *fakeRunner, args ...string) (string, int) {
	t.Helper()

	var stdout bytes.Buffer
	cmd, err := New(&stdout, func(s availability.Settings) Runner {
		runner.settings = s
		return runner
	})
	require.NoError(t, err)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	cmd.SetErr(io.Discard)

	code := run(context.Background(), cmd, &stdout)
	return stdout.String(), code
}

func setCredentials(t *testing.T) {
	t.Setenv("VC_USER", "svc-vmname@vsphere.local")
	t.Setenv("VC_PASS", "vc-secret")
	t.Setenv("AD_USER", "svc-vmname")
	t.Setenv("AD_PASS", "ad-secret")
	t.Setenv("AD_SERVER", "")
}

func TestResolve(t *testing.T) {
	setCredentials(t)

	runner := &fakeRunner{decision: availability.Allocated("VDI-JS06", 6)}
	out, code := execute(t, runner,
		"--retry-delay", "2s", "--strict-directory",
		"personal", "VDI-JS", "vc01,vc02", "/DC1/vm,/DC2/vm", "windows", "corp.example.com", "/etc/ssl/ad-ca.pem",
	)

	assert.Equal(t, 0, code)
	assert.JSONEq(t, `{"available":true,"vm_name":"VDI-JS06","index":6,"reason":null}`, out)
	assert.Equal(t, 1, strings.Count(out, "\n"), "exactly one line on stdout")

	assert.Equal(t, availability.Request{
		Name:            "personal",
		Prefix:          "VDI-JS",
		OS:              availability.OSWindows,
		Endpoints:       []string{"vc01", "vc02"},
		Partitions:      []string{"/DC1/vm", "/DC2/vm"},
		Domain:          "corp.example.com",
		TrustAnchor:     "/etc/ssl/ad-ca.pem",
		StrictDirectory: true,
	}, runner.request)
	assert.Equal(t, 2*time.Second, runner.settings.DirectoryRetry.Delay)
	assert.Equal(t, "vc-secret", runner.settings.VCenter.Password)
	assert.Equal(t, "ad-secret", runner.settings.Directory.Password)
}

func TestResolve_SubcommandNameAsVM(t *testing.T) {
	setCredentials(t)

	runner := &fakeRunner{decision: availability.Free("preflight")}
	out, code := execute(t, runner, "--", "preflight", "", "vc01", "/DC1/vm")

	assert.Equal(t, 0, code)
	assert.JSONEq(t, `{"available":true,"vm_name":"preflight","index":null,"reason":null}`, out)
	assert.Equal(t, "preflight", runner.request.Name)
	assert.Equal(t, []string{"vc01"}, runner.request.Endpoints)
}

func TestResolve_UnavailableIsNotAnError(t *testing.T) {
	setCredentials(t)

	out, code := execute(t, &fakeRunner{decision: availability.Exhausted()}, "personal", "APP", "vc01", "/DC1/vm")

	assert.Equal(t, 0, code)
	assert.JSONEq(t, `{"available":false,"vm_name":null,"index":null,"reason":"namespace exhausted: all indices (01-99) are in use"}`, out)
}

func TestResolve_Failures(t *testing.T) {
	setCredentials(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "configuration",
			err:  availability.Configurationf("Missing vCenter credentials"),
			want: `{"available":false,"reason":"Missing vCenter credentials"}`,
		},
		{
			name: "preflight",
			err: &availability.PreflightError{Report: availability.PreflightReport{Results: []availability.CheckResult{
				{Service: "AD", Success: true, Message: "Bind successful"},
				{Service: "vCenter-vc01", Message: "Invalid credentials"},
			}}},
			want: `{"available":false,"reason":"Preflight check failed - service connectivity issues","errors":[{"service":"vCenter-vc01","success":false,"message":"Invalid credentials"}]}`,
		},
		{
			name: "discovery",
			err:  fmt.Errorf("%w: SRV lookup failed", availability.ErrNoControllers),
			want: `{"available":false,"reason":"no domain controllers found: SRV lookup failed"}`,
		},
		{
			name: "interrupted",
			err:  fmt.Errorf("probing APP07: %w", context.Canceled),
			want: `{"available":false,"reason":"Interrupted"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := execute(t, &fakeRunner{err: tt.err}, "personal", "APP", "vc01", "/DC1/vm")

			assert.Equal(t, 1, code)
			assert.JSONEq(t, tt.want, out)
		})
	}
}

func TestResolve_InvalidFlags(t *testing.T) {
	setCredentials(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad duration", args: []string{"--connect-timeout", "soon", "WEB01", "vc01", "/DC1/vm"}},
		{name: "bad OS family", args: []string{"WEB01", "", "vc01", "/DC1/vm", "beos"}},
		{name: "too many arguments", args: []string{"a", "b", "c", "d", "e", "f", "g", "h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			out, code := execute(t, runner, tt.args...)

			assert.Equal(t, 1, code)
			assert.Contains(t, out, `"available":false`)
			assert.Empty(t, runner.request.Name, "engine must not run")
		})
	}
}

func TestPreflight(t *testing.T) {
	setCredentials(t)

	t.Run("passed", func(t *testing.T) {
		runner := &fakeRunner{report: availability.PreflightReport{Results: []availability.CheckResult{
			{Service: "vCenter-vc01", Success: true, Message: "vCenter connection OK"},
		}}}
		out, code := execute(t, runner, "preflight", "vc01")

		assert.Equal(t, 0, code)
		assert.JSONEq(t, `{"success":true,"errors":[]}`, out)
		assert.Equal(t, []string{"vc01"}, runner.request.Endpoints)
		assert.Equal(t, availability.OSLinux, runner.request.OS)
	})

	t.Run("failed", func(t *testing.T) {
		runner := &fakeRunner{report: availability.PreflightReport{Results: []availability.CheckResult{
			{Service: "AD", Message: "Connection refused"},
		}}}
		out, code := execute(t, runner, "preflight", "vc01", "windows", "corp.example.com")

		assert.Equal(t, 1, code)
		assert.JSONEq(t, `{"success":false,"errors":[{"service":"AD","success":false,"message":"Connection refused"}]}`, out)
		assert.Equal(t, "corp.example.com", runner.request.Domain)
	})

	t.Run("error", func(t *testing.T) {
		out, code := execute(t, &fakeRunner{err: availability.Configurationf("No vCenter hosts provided")}, "preflight")

		assert.Equal(t, 1, code)
		assert.JSONEq(t, `{"success":false,"errors":[{"service":"parameters","success":false,"message":"No vCenter hosts provided"}]}`, out)
	})
}

func TestExists(t *testing.T) {
	setCredentials(t)

	runner := &fakeRunner{exists: true}
	out, code := execute(t, runner, "exists", "DB01", "vc01,vc02", "/DC1/vm")

	assert.Equal(t, 0, code)
	assert.JSONEq(t, `{"exists":true,"vm_name":"DB01"}`, out)
	assert.Equal(t, "DB01", runner.fleetName)
	assert.Equal(t, []string{"vc01", "vc02"}, runner.fleetEndpoints)
	assert.Equal(t, []string{"/DC1/vm"}, runner.fleetPartitions)

	out, code = execute(t, &fakeRunner{err: errors.New("boom")}, "exists", "DB01", "vc01", "/DC1/vm")
	assert.Equal(t, 1, code)
	assert.JSONEq(t, `{"exists":false,"error":"boom"}`, out)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "No VM name provided", Reason(fmt.Errorf("wrapped: %w", availability.Configurationf("No VM name provided"))))
	assert.Equal(t, ReasonInterrupted, Reason(context.Canceled))
	assert.Equal(t, "boom", Reason(errors.New("boom")))
}
