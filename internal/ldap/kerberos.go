package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// performKerberosAuth performs a GSSAPI bind on conn against host.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, host string) error {
	if err := prepareKerberosConfig(cfg); err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	krb5confPath, cleanup, err := resolveKrb5Conf(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	gssapiClient, err := createGSSAPIClient(ctx, cfg, krb5confPath)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, host)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// createGSSAPIClient creates a GSSAPI client.
// Priority order: credential cache, keytab, password.
func createGSSAPIClient(ctx context.Context, cfg *ConnectionConfig, krb5confPath string) (ldap.GSSAPIClient, error) {
	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		LogKerberosEvent(ctx, "credentials_cached", map[string]any{"ccache": cfg.KerberosCCache})
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		LogKerberosEvent(ctx, "keytab_loaded", map[string]any{"keytab": cfg.KerberosKeytab})
		return gssapi.NewClientWithKeytab(cfg.Username, cfg.KerberosRealm, cfg.KerberosKeytab, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.Username != "" && cfg.Password != "" {
		return gssapi.NewClientWithPassword(cfg.Username, cfg.KerberosRealm, cfg.Password, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal constructs the LDAP service principal name for host.
// cfg.KerberosSPN overrides the automatic construction.
func buildServicePrincipal(cfg *ConnectionConfig, host string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is required for service principal")
	}

	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	// SPN never carries a port
	if colonPos := strings.Index(host, ":"); colonPos != -1 {
		host = host[:colonPos]
	}

	return fmt.Sprintf("ldap/%s", host), nil
}

// prepareKerberosConfig validates the Kerberos settings, splitting a realm out of a UPN-style username.
func prepareKerberosConfig(cfg *ConnectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if strings.Contains(cfg.Username, "@") {
		parts := strings.SplitN(cfg.Username, "@", 2)
		if cfg.KerberosRealm == "" {
			cfg.KerberosRealm = strings.ToUpper(parts[1])
		}
		cfg.Username = parts[0]
	}

	if cfg.KerberosRealm == "" {
		return fmt.Errorf("kerberos realm is required")
	}

	if cfg.Username == "" && cfg.KerberosCCache == "" {
		return fmt.Errorf("username (principal) is required for Kerberos authentication")
	}

	hasCCache := cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache)
	hasKeytab := cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab)
	if !hasCCache && !hasKeytab && cfg.Password == "" {
		return fmt.Errorf("no suitable Kerberos credentials found: provide a credential cache, a keytab, or a password")
	}

	return nil
}

// resolveKrb5Conf returns the krb5.conf path to use. Without an explicit path a
// runtime configuration relying on DNS KDC discovery is written to a temporary
// file, removed by the returned cleanup.
func resolveKrb5Conf(ctx context.Context, cfg *ConnectionConfig) (string, func(), error) {
	if cfg.KerberosConfig != "" {
		if !fileExists(cfg.KerberosConfig) {
			LogKerberosEvent(ctx, "config_load_failed", map[string]any{"path": cfg.KerberosConfig})
			return "", nil, fmt.Errorf("kerberos configuration file not found at %s", cfg.KerberosConfig)
		}
		return cfg.KerberosConfig, func() {}, nil
	}

	f, err := os.CreateTemp("", "vmname-krb5-*.conf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create runtime krb5.conf: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.WriteString(generateRuntimeKrb5Conf(cfg)); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}

	LogKerberosEvent(ctx, "config_generated", map[string]any{
		"realm": cfg.KerberosRealm,
		"path":  f.Name(),
	})
	return f.Name(), cleanup, nil
}

// generateRuntimeKrb5Conf renders a krb5.conf that discovers KDCs via DNS.
func generateRuntimeKrb5Conf(cfg *ConnectionConfig) string {
	realm := strings.ToUpper(cfg.KerberosRealm)
	domain := strings.ToLower(cfg.KerberosRealm)
	if cfg.Domain != "" {
		domain = strings.ToLower(cfg.Domain)
	}

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false

[realms]
    %s = {
    }

[domain_realm]
    .%s = %s
    %s = %s
`,
		realm,
		realm,
		domain, realm,
		domain, realm,
	)
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
