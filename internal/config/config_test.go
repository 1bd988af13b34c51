package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/vmname/internal/availability"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "linux", cfg.OS)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, 636, cfg.Port)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFrom(t *testing.T) {
	env := map[string]string{
		EnvVCenterUser:     "svc-vmname@vsphere.local",
		EnvVCenterPassword: "vc-secret",
		EnvADUser:          "svc-vmname",
		EnvADPassword:      "ad-secret",
		EnvADServer:        "dc01.corp.example.com",
		EnvKerberosRealm:   "CORP.EXAMPLE.COM",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg, err := New()
	require.NoError(t, err)
	cfg.Controller = "dc02.corp.example.com"
	cfg.LoadEnvFrom(lookup)

	assert.Equal(t, "svc-vmname@vsphere.local", cfg.VCenterUser)
	assert.Equal(t, "vc-secret", cfg.VCenterPassword)
	assert.Equal(t, "svc-vmname", cfg.ADUser)
	assert.Equal(t, "ad-secret", cfg.ADPassword)
	assert.Equal(t, "CORP.EXAMPLE.COM", cfg.KerberosRealm)
	assert.Equal(t, "dc02.corp.example.com", cfg.Controller, "flags take precedence over the environment")
	assert.Empty(t, cfg.KerberosKeytab)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown OS family",
			modify:  func(c *Config) { c.OS = "plan9" },
			wantErr: `unsupported OS family "plan9" (expected windows or linux)`,
		},
		{
			name:    "zero connect timeout",
			modify:  func(c *Config) { c.ConnectTimeout = 0 },
			wantErr: "connect timeout must be positive, got 0s",
		},
		{
			name:    "negative retry delay",
			modify:  func(c *Config) { c.RetryDelay = -time.Second },
			wantErr: "retry delay cannot be negative, got -1s",
		},
		{
			name:    "no attempts",
			modify:  func(c *Config) { c.RetryAttempts = 0 },
			wantErr: "retry attempts must be at least 1, got 0",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Port = 70000 },
			wantErr: "invalid LDAPS port 70000",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: `invalid log level "loud"`,
		},
		{
			name:   "valid log level",
			modify: func(c *Config) { c.LogLevel = "debug" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := New()
			require.NoError(t, err)
			tt.modify(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, availability.ErrConfiguration)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestSettingsAndRequest(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	cfg.Name = "personal"
	cfg.Prefix = "VDI-JS"
	cfg.OS = "Windows"
	cfg.Endpoints = []string{"vc01"}
	cfg.Partitions = []string{"/DC1/vm"}
	cfg.Domain = "corp.example.com"
	cfg.ADUser = "svc-vmname"
	cfg.ADPassword = "secret"
	cfg.RetryDelay = time.Second

	settings := cfg.Settings()
	assert.Equal(t, 3, settings.DirectoryRetry.MaxAttempts)
	assert.Equal(t, time.Second, settings.DirectoryRetry.Delay)
	assert.Equal(t, 5*time.Second, settings.ProbeTimeout)
	assert.Equal(t, 636, settings.Directory.Port)
	assert.True(t, settings.Directory.HasAuthentication())

	req := cfg.Request()
	assert.True(t, req.Personal())
	assert.Equal(t, availability.OSWindows, req.OS)
	assert.Equal(t, "corp.example.com", req.Domain)
}
