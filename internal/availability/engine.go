package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/ldap"
	"github.com/isometry/vmname/internal/logging"
	"github.com/isometry/vmname/internal/retry"
	"github.com/isometry/vmname/internal/vsphere"
)

// PersonalMode is the name argument that requests an allocation search.
const PersonalMode = "personal"

// Settings are the run-independent parameters of an Engine.
type Settings struct {
	VCenter   vsphere.Credentials
	Directory ldap.ConnectionConfig // Credentials, port and timeouts; domain and TLS come from the Request

	ConnectTimeout time.Duration // Preflight checks and vCenter logins
	ProbeTimeout   time.Duration // One directory attempt or one inventory lookup
	DirectoryRetry retry.Policy  // Per-controller attempts; Retryable defaults to transient errors
	Concurrency    int           // Upper bound on concurrent checks; 0 is unbounded
}

// Request is one resolution.
type Request struct {
	Name       string // Literal name, or PersonalMode
	Prefix     string // Allocation prefix in personal mode
	Literal    bool   // Name is checked as given, even when it reads PersonalMode
	OS         OSFamily
	Endpoints  []string // vCenter hosts
	Partitions []string // Datacenter/folder inventory paths

	Domain          string
	TrustAnchor     string // PEM bundle for controller certificates
	Controller      string // Skip discovery and use only this controller
	StrictDirectory bool
}

// Personal reports whether r asks for an allocation search.
func (r Request) Personal() bool {
	return !r.Literal && strings.EqualFold(r.Name, PersonalMode)
}

// Validate checks r for problems detectable without network access.
func (r Request) Validate() error {
	if r.Name == "" {
		return Configurationf("No VM name provided")
	}
	if r.Personal() && r.Prefix == "" {
		return Configurationf("No prefix provided for personal mode")
	}
	if len(r.Endpoints) == 0 {
		return Configurationf("No vCenter hosts provided")
	}
	if len(r.Partitions) == 0 {
		return Configurationf("No datacenter paths provided")
	}
	return nil
}

// DirectoryFactory builds the directory client of a run.
type DirectoryFactory func(cfg *ldap.ConnectionConfig) (Directory, error)

// Option customises an Engine.
type Option func(*Engine)

// WithResolver replaces the DNS resolver used for controller discovery.
func WithResolver(resolver ldap.SRVResolver) Option {
	return func(e *Engine) { e.resolver = resolver }
}

// WithDirectoryFactory replaces the LDAP client constructor.
func WithDirectoryFactory(factory DirectoryFactory) Option {
	return func(e *Engine) { e.newDirectory = factory }
}

// WithDialer replaces the vCenter session dialer.
func WithDialer(dialer vsphere.Dialer) Option {
	return func(e *Engine) { e.dialer = dialer }
}

// Engine runs resolutions. Each run owns its own vCenter session pool.
type Engine struct {
	settings     Settings
	resolver     ldap.SRVResolver
	newDirectory DirectoryFactory
	dialer       vsphere.Dialer
}

// NewEngine creates an engine backed by the real DNS, LDAP and vCenter clients
// unless overridden by opts.
func NewEngine(settings Settings, opts ...Option) *Engine {
	if settings.ConnectTimeout <= 0 {
		settings.ConnectTimeout = vsphere.DefaultConnectTimeout
	}
	if settings.ProbeTimeout <= 0 {
		settings.ProbeTimeout = settings.ConnectTimeout
	}

	e := &Engine{
		settings:     settings,
		newDirectory: newLDAPDirectory,
		dialer:       vsphere.NewConnector(settings.VCenter, settings.ConnectTimeout),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newLDAPDirectory(cfg *ldap.ConnectionConfig) (Directory, error) {
	client, err := ldap.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// checkCredentials verifies that credentials for every required service are present.
func (e *Engine) checkCredentials(family OSFamily, domain string) error {
	if e.settings.VCenter.Username == "" || e.settings.VCenter.Password == "" {
		return Configurationf("Missing vCenter credentials")
	}
	if family.RequiresDirectory() && (domain == "" || !e.settings.Directory.HasAuthentication()) {
		return Configurationf("Missing AD credentials or domain name for Windows VM")
	}
	return nil
}

// Run resolves req: it discovers controllers, runs the preflight checks and
// then either searches for the first free name or checks the literal one.
//
// A failed preflight is returned as a *PreflightError. Every vCenter session
// opened by the run is logged out before Run returns.
func (e *Engine) Run(ctx context.Context, req Request) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}
	if err := e.checkCredentials(req.OS, req.Domain); err != nil {
		return Decision{}, err
	}

	pool := vsphere.NewPool(e.dialer)
	defer e.release(ctx, pool)

	directory, controllers, err := e.prepareDirectory(ctx, req)
	if err != nil {
		return Decision{}, err
	}

	if report := e.preflight(directory, controllers, pool, req.Endpoints).Run(ctx); !report.Passed() {
		return Decision{}, &PreflightError{Report: report}
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	var dirChecker *DirectoryChecker
	if directory != nil {
		dirChecker = NewDirectoryChecker(directory, controllers, e.settings.DirectoryRetry, e.settings.ProbeTimeout)
	}
	fleet := NewFleetChecker(pool, Targets(req.Endpoints, req.Partitions), e.settings.ProbeTimeout, e.settings.Concurrency)
	prober := NewProber(dirChecker, fleet, req.StrictDirectory)
	search := NewSearch(prober, prober.Systems())

	tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Resolving name", map[string]any{
		"mode":    modeName(req),
		"name":    req.Name,
		"prefix":  req.Prefix,
		"os":      string(req.OS),
		"systems": prober.Systems(),
	})

	if req.Personal() {
		return search.FindFirstAvailable(ctx, req.Prefix)
	}
	return search.CheckName(ctx, req.Name)
}

// RunPreflight runs only the connectivity checks of req. Partitions and
// names are not required.
func (e *Engine) RunPreflight(ctx context.Context, req Request) (PreflightReport, error) {
	if len(req.Endpoints) == 0 {
		return PreflightReport{}, Configurationf("No vCenter hosts provided")
	}
	if err := e.checkCredentials(req.OS, req.Domain); err != nil {
		return PreflightReport{}, err
	}

	pool := vsphere.NewPool(e.dialer)
	defer e.release(ctx, pool)

	directory, controllers, err := e.prepareDirectory(ctx, req)
	if err != nil {
		return PreflightReport{}, err
	}

	return e.preflight(directory, controllers, pool, req.Endpoints).Run(ctx), nil
}

// CheckFleet reports whether name exists at any (endpoint, partition) pair,
// without consulting the directory or running preflight checks.
func (e *Engine) CheckFleet(ctx context.Context, name string, endpoints, partitions []string) (bool, error) {
	switch {
	case name == "":
		return false, Configurationf("No VM name provided")
	case e.settings.VCenter.Username == "" || e.settings.VCenter.Password == "":
		return false, Configurationf("Missing credentials")
	case len(endpoints) == 0 || len(partitions) == 0:
		return false, Configurationf("Missing vCenter/datacenter parameters")
	}

	pool := vsphere.NewPool(e.dialer)
	defer e.release(ctx, pool)

	fleet := NewFleetChecker(pool, Targets(endpoints, partitions), e.settings.ProbeTimeout, e.settings.Concurrency)
	found, _ := fleet.Check(ctx, name)
	return found, ctx.Err()
}

func (e *Engine) preflight(directory Directory, controllers ControllerList, pool *vsphere.Pool, endpoints []string) *Preflight {
	var controller string
	if len(controllers) > 0 {
		controller = controllers[0]
	}
	return NewPreflight(directory, controller, pool, endpoints, e.settings.ConnectTimeout, e.settings.Concurrency)
}

// prepareDirectory resolves the controllers and builds the directory client
// for req. Both are nil when req's OS family needs no directory check.
func (e *Engine) prepareDirectory(ctx context.Context, req Request) (Directory, ControllerList, error) {
	if !req.OS.RequiresDirectory() {
		return nil, nil, nil
	}

	policy, err := ldap.NewDirectoryTLSPolicy(req.TrustAnchor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if !policy.Verified {
		tflog.SubsystemWarn(ctx, ldap.Subsystem, "No trust anchor available; controller certificates will not be verified", map[string]any{
			"trust_anchor": req.TrustAnchor,
		})
	}

	var servers []*ldap.ServerInfo
	if req.Controller != "" {
		servers = ldap.StaticController(req.Controller)
	} else {
		discovery := ldap.NewSRVDiscovery(ctx)
		if e.resolver != nil {
			discovery = ldap.NewSRVDiscoveryWithResolver(ctx, e.resolver)
		}
		servers, err = discovery.DiscoverControllers(ctx, req.Domain)
		if err != nil {
			return nil, nil, err
		}
	}

	controllers := ControllerList(ldap.ServerHosts(servers))
	if len(controllers) == 0 {
		return nil, nil, fmt.Errorf("%w for %s", ErrNoControllers, req.Domain)
	}

	cfg := e.settings.Directory
	cfg.Domain = req.Domain
	cfg.TLSConfig = policy.Config

	directory, err := e.newDirectory(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return directory, controllers, nil
}

func (e *Engine) release(ctx context.Context, pool *vsphere.Pool) {
	stats := pool.Stats()
	if err := pool.ReleaseAll(ctx); err != nil {
		tflog.SubsystemWarn(ctx, logging.SubsystemEngine, "Failed to release vCenter sessions", map[string]any{
			"error": err.Error(),
		})
	}
	tflog.SubsystemDebug(ctx, logging.SubsystemEngine, "vCenter sessions released", map[string]any{
		"sessions": stats.Sessions,
		"dials":    stats.Dials,
		"reuses":   stats.Reuses,
		"failures": stats.Failures,
	})
}

func modeName(req Request) string {
	if req.Personal() {
		return "personal"
	}
	return "standard"
}
