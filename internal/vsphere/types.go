package vsphere

import (
	"context"
	"time"
)

// Credentials authenticate against every vCenter endpoint of a run.
type Credentials struct {
	Username string
	Password string
}

// Session is an authenticated vCenter session.
type Session interface {
	// Introspect returns the user name the session is logged in as.
	Introspect(ctx context.Context) (string, error)
	// FindByInventoryPath reports whether an inventory object exists at path.
	FindByInventoryPath(ctx context.Context, path string) (bool, error)
	// Logout ends the session.
	Logout(ctx context.Context) error
}

// Dialer opens a new session to endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (Session, error)

// Dial calls f(ctx, endpoint).
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Session, error) {
	return f(ctx, endpoint)
}

// DefaultConnectTimeout bounds login and every request on a session.
const DefaultConnectTimeout = 10 * time.Second

// Subsystem is the log subsystem used by this package.
const Subsystem = "vsphere"
