package ldap

import (
	"crypto/tls"
	"time"
)

// DefaultLDAPSPort is the port domain controllers accept LDAPS on.
const DefaultLDAPSPort = 636

// ConnectionConfig holds configuration for directory connections.
type ConnectionConfig struct {
	// Connection settings
	Domain         string        // Domain the controllers serve
	BaseDN         string        // Base DN for computer searches; derived from Domain when empty
	Port           int           // LDAPS port on every controller
	ConnectTimeout time.Duration // TCP + TLS handshake timeout per attempt
	ReadTimeout    time.Duration // Per-request timeout on an established connection

	// Authentication settings
	Username       string // Username for authentication (DN, UPN, or SAM format)
	Password       string // Password for simple bind authentication
	KerberosRealm  string // Kerberos realm for GSSAPI authentication
	KerberosKeytab string // Path to Kerberos keytab file
	KerberosConfig string // Path to Kerberos config file (krb5.conf)
	KerberosCCache string // Path to Kerberos credential cache
	KerberosSPN    string // Service principal override

	// TLS settings
	TLSConfig *tls.Config // Directory TLS policy, see NewDirectoryTLSPolicy
}

// DefaultConfig returns the configuration used when probing controllers.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Port:           DefaultLDAPSPort,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// ServerInfo contains information about a discovered domain controller.
type ServerInfo struct {
	Host     string
	Port     int
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// ComputerEntry is a computer object returned by a controller.
type ComputerEntry struct {
	DN   string
	CN   string
	SID  string
	GUID string
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the authentication method from the configuration.
func (c *ConnectionConfig) GetAuthMethod() AuthMethod {
	// Kerberos authentication takes precedence
	if c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.Username != "") {
		return AuthMethodKerberos
	}

	return AuthMethodSimpleBind
}

// HasAuthentication checks if any authentication method is configured.
func (c *ConnectionConfig) HasAuthentication() bool {
	hasPassword := c.Username != "" && c.Password != ""
	hasKerberos := c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.Username != "")

	return hasPassword || hasKerberos
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}
