package vsphere

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
)

// Connector dials govmomi sessions with one set of credentials.
type Connector struct {
	Credentials Credentials
	Policy      TransportPolicy
	Timeout     time.Duration
}

// NewConnector returns a Connector using the vCenter transport policy.
func NewConnector(creds Credentials, timeout time.Duration) *Connector {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Connector{
		Credentials: creds,
		Policy:      NewTransportPolicy(),
		Timeout:     timeout,
	}
}

// Dial logs in to the SDK endpoint of host.
func (c *Connector) Dial(ctx context.Context, endpoint string) (Session, error) {
	u, err := soap.ParseURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid vCenter endpoint %q: %w", endpoint, err)
	}
	u.User = nil

	sc := soap.NewClient(u, c.Policy.Insecure)
	sc.Timeout = c.Timeout

	loginCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	vc, err := vim25.NewClient(loginCtx, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	mgr := session.NewManager(vc)
	if err := mgr.Login(loginCtx, url.UserPassword(c.Credentials.Username, c.Credentials.Password)); err != nil {
		return nil, fmt.Errorf("failed to log in to %s: %w", endpoint, err)
	}

	tflog.SubsystemDebug(ctx, Subsystem, "vCenter login succeeded", map[string]any{
		"endpoint": endpoint,
		"username": c.Credentials.Username,
	})

	return &govmomiSession{
		endpoint: endpoint,
		manager:  mgr,
		index:    object.NewSearchIndex(vc),
	}, nil
}

type govmomiSession struct {
	endpoint string
	manager  *session.Manager
	index    *object.SearchIndex
}

func (s *govmomiSession) Introspect(ctx context.Context) (string, error) {
	us, err := s.manager.UserSession(ctx)
	if err != nil {
		return "", fmt.Errorf("session introspection on %s failed: %w", s.endpoint, err)
	}
	if us == nil {
		return "", fmt.Errorf("session on %s is not authenticated", s.endpoint)
	}
	return us.UserName, nil
}

func (s *govmomiSession) FindByInventoryPath(ctx context.Context, path string) (bool, error) {
	ref, err := s.index.FindByInventoryPath(ctx, path)
	if err != nil {
		return false, fmt.Errorf("inventory lookup of %s on %s failed: %w", path, s.endpoint, err)
	}
	return ref != nil, nil
}

func (s *govmomiSession) Logout(ctx context.Context) error {
	return s.manager.Logout(ctx)
}
