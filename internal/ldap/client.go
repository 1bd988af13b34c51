package ldap

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Session is an authenticated connection to one domain controller.
type Session interface {
	// SearchComputer returns the computer objects whose common name is name.
	SearchComputer(ctx context.Context, name string) ([]*ComputerEntry, error)
	Close() error
}

// Client opens authenticated sessions against individual domain controllers.
// A Client holds no connections itself; every Open dials afresh.
type Client struct {
	config *ConnectionConfig
	dial   func(addr string, opts ...ldap.DialOpt) (*ldap.Conn, error)
}

// NewClient creates a client from config, filling unset fields from DefaultConfig.
func NewClient(config *ConnectionConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	cfg := *config
	defaults := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.TLSConfig == nil {
		cfg.TLSConfig = defaults.TLSConfig
	}
	if cfg.BaseDN == "" {
		cfg.BaseDN = BaseDNFromDomain(cfg.Domain)
	}
	if cfg.BaseDN == "" {
		return nil, fmt.Errorf("either base DN or domain is required")
	}
	if !cfg.HasAuthentication() {
		return nil, fmt.Errorf("no authentication configuration available")
	}

	return &Client{
		config: &cfg,
		dial:   ldap.DialURL,
	}, nil
}

// BaseDN returns the search base used for computer lookups.
func (c *Client) BaseDN() string {
	return c.config.BaseDN
}

// Open dials host over LDAPS and binds with the configured credentials.
// The connection is torn down if ctx is cancelled before Close.
func (c *Client) Open(ctx context.Context, host string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	url := ServerURL(host, c.config.Port)
	fields := map[string]any{
		"server":      url,
		"auth_method": c.config.GetAuthMethod().String(),
	}
	LogConnectionEvent(ctx, "connection_attempt", fields)

	connectTimeout := c.config.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		connectTimeout = min(connectTimeout, time.Until(deadline))
	}

	start := time.Now()
	conn, err := c.dial(url,
		ldap.DialWithDialer(&net.Dialer{Timeout: connectTimeout}),
		ldap.DialWithTLSConfig(c.config.TLSConfig),
	)
	if err != nil {
		fields["duration_ms"] = time.Since(start).Milliseconds()
		fields["error"] = err.Error()
		LogConnectionEvent(ctx, "connection_failed", fields)
		return nil, NewLDAPError("connect", host, err)
	}
	conn.SetTimeout(c.config.ReadTimeout)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	if err := c.authenticate(ctx, conn, host); err != nil {
		stop()
		conn.Close()
		fields["error"] = err.Error()
		LogConnectionEvent(ctx, "authentication_failed", fields)
		return nil, attemptError(ctx, "bind", host, err)
	}

	fields["duration_ms"] = time.Since(start).Milliseconds()
	LogConnectionEvent(ctx, "connection_established", fields)

	return &session{
		conn:        conn,
		host:        host,
		baseDN:      c.config.BaseDN,
		readTimeout: c.config.ReadTimeout,
		stop:        stop,
	}, nil
}

// Bind verifies that host accepts the configured credentials.
func (c *Client) Bind(ctx context.Context, host string) error {
	s, err := c.Open(ctx, host)
	if err != nil {
		return err
	}
	return s.Close()
}

func (c *Client) authenticate(ctx context.Context, conn *ldap.Conn, host string) error {
	switch c.config.GetAuthMethod() {
	case AuthMethodKerberos:
		cfg := *c.config
		return performKerberosAuth(ctx, conn, &cfg, host)
	default:
		return conn.Bind(c.bindName(), c.config.Password)
	}
}

// bindName qualifies a bare account name with the domain as a UPN.
func (c *Client) bindName() string {
	user := c.config.Username
	if c.config.Domain == "" || strings.ContainsAny(user, `@\=`) {
		return user
	}
	return user + "@" + c.config.Domain
}

type session struct {
	conn        *ldap.Conn
	host        string
	baseDN      string
	readTimeout time.Duration
	stop        func() bool
}

func (s *session) SearchComputer(ctx context.Context, name string) ([]*ComputerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter := ComputerFilter(name)
	req := ldap.NewSearchRequest(
		s.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // SizeLimit
		int(s.readTimeout.Seconds()),
		false, // TypesOnly
		filter,
		computerAttributes,
		nil, // Controls
	)

	start := time.Now()
	result, err := s.conn.Search(req)
	if err != nil {
		// An absent search base means no such computer can exist below it
		if IsNotFoundError(err) {
			return nil, nil
		}
		LogLDAPError(ctx, "search", err, map[string]any{
			"server":  s.host,
			"base_dn": s.baseDN,
			"filter":  filter,
		})
		return nil, attemptError(ctx, "search", s.host, err)
	}

	entries := make([]*ComputerEntry, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, entryToComputer(entry))
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Computer search completed", map[string]any{
		"server":        s.host,
		"filter":        filter,
		"entries_found": len(entries),
		"duration_ms":   time.Since(start).Milliseconds(),
	})

	return entries, nil
}

func (s *session) Close() error {
	s.stop()
	s.conn.Close()
	return nil
}
