package ldap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareKerberosConfig(t *testing.T) {
	tempDir := t.TempDir()
	testKeytab := filepath.Join(tempDir, "test.keytab")
	f, err := os.Create(testKeytab)
	require.NoError(t, err)
	f.Close()

	tests := []struct {
		name         string
		config       *ConnectionConfig
		expectError  bool
		errorMsg     string
		wantUsername string
		wantRealm    string
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
			errorMsg:    "configuration cannot be nil",
		},
		{
			name: "valid keytab config",
			config: &ConnectionConfig{
				Username:       "svc-vmname",
				KerberosRealm:  "CORP.LOCAL",
				KerberosKeytab: testKeytab,
			},
			wantUsername: "svc-vmname",
			wantRealm:    "CORP.LOCAL",
		},
		{
			name: "valid password config",
			config: &ConnectionConfig{
				Username:      "svc-vmname",
				Password:      "secret",
				KerberosRealm: "CORP.LOCAL",
			},
			wantUsername: "svc-vmname",
			wantRealm:    "CORP.LOCAL",
		},
		{
			name: "realm taken from UPN",
			config: &ConnectionConfig{
				Username:       "svc-vmname@corp.local",
				KerberosKeytab: testKeytab,
			},
			wantUsername: "svc-vmname",
			wantRealm:    "CORP.LOCAL",
		},
		{
			name: "explicit realm wins over UPN suffix",
			config: &ConnectionConfig{
				Username:      "svc-vmname@corp.local",
				Password:      "secret",
				KerberosRealm: "OTHER.REALM",
			},
			wantUsername: "svc-vmname",
			wantRealm:    "OTHER.REALM",
		},
		{
			name: "missing realm",
			config: &ConnectionConfig{
				Username:       "svc-vmname",
				KerberosKeytab: testKeytab,
			},
			expectError: true,
			errorMsg:    "kerberos realm is required",
		},
		{
			name: "missing username",
			config: &ConnectionConfig{
				KerberosRealm:  "CORP.LOCAL",
				KerberosKeytab: testKeytab,
			},
			expectError: true,
			errorMsg:    "username (principal) is required",
		},
		{
			name: "missing credentials",
			config: &ConnectionConfig{
				Username:       "svc-vmname",
				KerberosRealm:  "CORP.LOCAL",
				KerberosKeytab: "/nonexistent/path/keytab",
				KerberosCCache: "/nonexistent/path/ccache",
			},
			expectError: true,
			errorMsg:    "no suitable Kerberos credentials found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := prepareKerberosConfig(tt.config)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUsername, tt.config.Username)
			assert.Equal(t, tt.wantRealm, tt.config.KerberosRealm)
		})
	}
}

func TestBuildServicePrincipal(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *ConnectionConfig
		host        string
		expected    string
		expectError bool
		errorMsg    string
	}{
		{
			name:        "nil config",
			cfg:         nil,
			host:        "dc1.corp.local",
			expectError: true,
			errorMsg:    "configuration is required",
		},
		{
			name:     "SPN override provided",
			cfg:      &ConnectionConfig{KerberosSPN: "ldap/custom.spn.com"},
			host:     "192.168.1.100",
			expected: "ldap/custom.spn.com",
		},
		{
			name:        "empty hostname",
			cfg:         &ConnectionConfig{},
			host:        "",
			expectError: true,
			errorMsg:    "hostname is required",
		},
		{
			name:     "simple hostname",
			cfg:      &ConnectionConfig{},
			host:     "dc1.corp.local",
			expected: "ldap/dc1.corp.local",
		},
		{
			name:     "hostname with port",
			cfg:      &ConnectionConfig{},
			host:     "dc1.corp.local:636",
			expected: "ldap/dc1.corp.local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := buildServicePrincipal(tt.cfg, tt.host)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResolveKrb5Conf(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "krb5.conf")
		require.NoError(t, os.WriteFile(path, []byte("[libdefaults]\n"), 0o600))

		got, cleanup, err := resolveKrb5Conf(t.Context(), &ConnectionConfig{KerberosConfig: path})
		require.NoError(t, err)
		cleanup()
		assert.Equal(t, path, got)
		assert.FileExists(t, path)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, _, err := resolveKrb5Conf(t.Context(), &ConnectionConfig{KerberosConfig: "/nonexistent/krb5.conf"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/nonexistent/krb5.conf")
	})

	t.Run("runtime configuration", func(t *testing.T) {
		cfg := &ConnectionConfig{KerberosRealm: "corp.local", Domain: "Corp.Local"}

		got, cleanup, err := resolveKrb5Conf(t.Context(), cfg)
		require.NoError(t, err)

		content, err := os.ReadFile(got)
		require.NoError(t, err)
		assert.Contains(t, string(content), "default_realm = CORP.LOCAL")
		assert.Contains(t, string(content), "dns_lookup_kdc = true")
		assert.Contains(t, string(content), ".corp.local = CORP.LOCAL")

		cleanup()
		assert.NoFileExists(t, got)
	})
}
