package availability

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/isometry/vmname/internal/ldap"
	"github.com/isometry/vmname/internal/vsphere"
)

var (
	errUnreachable = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("i/o timeout")}
	errBadBind     = goldap.NewError(goldap.LDAPResultInvalidCredentials, errors.New("80090308: LdapErr: DSID-0C090439"))
	errBadLogin    = errors.New("ServerFaultCode: Cannot complete login due to an incorrect user name or password.")
)

// fakeDirectory serves computer objects per controller.
type fakeDirectory struct {
	mu        sync.Mutex
	computers map[string]map[string]bool // host -> names
	openErr   map[string]error
	bindErr   error
	lookups   []string // host:name per search, in order
	opens     map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		computers: make(map[string]map[string]bool),
		openErr:   make(map[string]error),
		opens:     make(map[string]int),
	}
}

func (d *fakeDirectory) add(host string, names ...string) {
	if d.computers[host] == nil {
		d.computers[host] = make(map[string]bool)
	}
	for _, n := range names {
		d.computers[host][n] = true
	}
}

func (d *fakeDirectory) Open(ctx context.Context, host string) (ldap.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opens[host]++
	if err := d.openErr[host]; err != nil {
		return nil, ldap.NewLDAPError("connect", host, err)
	}
	return &fakeDirectorySession{dir: d, host: host}, nil
}

func (d *fakeDirectory) Bind(ctx context.Context, host string) error {
	if d.bindErr != nil {
		return ldap.NewLDAPError("bind", host, d.bindErr)
	}
	return nil
}

func (d *fakeDirectory) openCount(host string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens[host]
}

func (d *fakeDirectory) searches() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lookups...)
}

type fakeDirectorySession struct {
	dir  *fakeDirectory
	host string
}

func (s *fakeDirectorySession) SearchComputer(_ context.Context, name string) ([]*ldap.ComputerEntry, error) {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()

	s.dir.lookups = append(s.dir.lookups, s.host+":"+name)
	if s.dir.computers[s.host][name] {
		return []*ldap.ComputerEntry{{
			DN: "CN=" + name + ",OU=Servers,DC=corp,DC=example,DC=com",
			CN: name,
		}}, nil
	}
	return nil, nil
}

func (s *fakeDirectorySession) Close() error { return nil }

// fakeFleet is a set of vCenter endpoints holding inventory paths.
type fakeFleet struct {
	mu       sync.Mutex
	paths    map[string]map[string]bool // endpoint -> paths
	dialErr  map[string]error
	findErr  map[string]error
	lookups  atomic.Int32
	logouts  atomic.Int32
	dials    atomic.Int32
	requests []string
	onLookup func(path string) // called before each inventory lookup
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		paths:   make(map[string]map[string]bool),
		dialErr: make(map[string]error),
		findErr: make(map[string]error),
	}
}

func (f *fakeFleet) add(endpoint string, paths ...string) {
	if f.paths[endpoint] == nil {
		f.paths[endpoint] = make(map[string]bool)
	}
	for _, p := range paths {
		f.paths[endpoint][p] = true
	}
}

func (f *fakeFleet) Dial(_ context.Context, endpoint string) (vsphere.Session, error) {
	f.dials.Add(1)
	if err := f.dialErr[endpoint]; err != nil {
		return nil, err
	}
	return &fakeVCenterSession{fleet: f, endpoint: endpoint}, nil
}

func (f *fakeFleet) Acquire(ctx context.Context, endpoint string) (vsphere.Session, error) {
	return f.Dial(ctx, endpoint)
}

func (f *fakeFleet) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

type fakeVCenterSession struct {
	fleet    *fakeFleet
	endpoint string
}

func (s *fakeVCenterSession) Introspect(context.Context) (string, error) {
	return "svc-vmname@vsphere.local", nil
}

func (s *fakeVCenterSession) FindByInventoryPath(_ context.Context, path string) (bool, error) {
	s.fleet.lookups.Add(1)
	if s.fleet.onLookup != nil {
		s.fleet.onLookup(path)
	}

	s.fleet.mu.Lock()
	defer s.fleet.mu.Unlock()
	s.fleet.requests = append(s.fleet.requests, path[strings.LastIndex(path, "/")+1:])

	if err := s.fleet.findErr[s.endpoint]; err != nil {
		return false, err
	}
	return s.fleet.paths[s.endpoint][path], nil
}

func (s *fakeVCenterSession) Logout(context.Context) error {
	s.fleet.logouts.Add(1)
	return nil
}

// fakeResolver answers SRV lookups from a fixed record set.
type fakeResolver struct {
	records []*net.SRV
	err     error
}

func (r *fakeResolver) LookupSRV(context.Context, string, string, string) (string, []*net.SRV, error) {
	return "", r.records, r.err
}
