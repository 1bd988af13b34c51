// Package config holds the settings of a vmname run and maps them onto the
// availability engine.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/hashicorp/go-hclog"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/ldap"
	"github.com/isometry/vmname/internal/retry"
	"github.com/isometry/vmname/internal/vsphere"
)

// Environment variables read by LoadEnv.
const (
	EnvVCenterUser     = "VC_USER"
	EnvVCenterPassword = "VC_PASS"
	EnvADUser          = "AD_USER"
	EnvADPassword      = "AD_PASS"
	EnvADServer        = "AD_SERVER"
	EnvKerberosRealm   = "AD_KERBEROS_REALM"
	EnvKerberosKeytab  = "AD_KERBEROS_KEYTAB"
	EnvKerberosConfig  = "AD_KERBEROS_CONFIG"
	EnvKerberosCCache  = "AD_KERBEROS_CCACHE"
	EnvKerberosSPN     = "AD_KERBEROS_SPN"
)

// Config is the complete input of one run.
type Config struct {
	// Positional arguments
	Name        string
	Prefix      string
	Endpoints   []string
	Partitions  []string
	OS          string `default:"linux"`
	Domain      string
	TrustAnchor string

	// Flags
	Controller      string
	StrictDirectory bool
	LogLevel        string

	ConnectTimeout time.Duration `default:"10s"`
	ReadTimeout    time.Duration `default:"10s"`
	ProbeTimeout   time.Duration `default:"5s"`
	RetryAttempts  int           `default:"3"`
	RetryDelay     time.Duration `default:"5s"`
	Port           int           `default:"636"`
	Concurrency    int           `default:"16"`

	// Secrets, from the environment only
	VCenterUser     string
	VCenterPassword string
	ADUser          string
	ADPassword      string

	KerberosRealm  string
	KerberosKeytab string
	KerberosConfig string
	KerberosCCache string
	KerberosSPN    string
}

// New returns a Config with every default applied.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}
	return cfg, nil
}

// LoadEnv fills credentials and unset options from the process environment.
func (c *Config) LoadEnv() {
	c.LoadEnvFrom(os.LookupEnv)
}

// LoadEnvFrom is LoadEnv with a custom lookup function.
func (c *Config) LoadEnvFrom(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	set(&c.VCenterUser, EnvVCenterUser)
	set(&c.VCenterPassword, EnvVCenterPassword)
	set(&c.ADUser, EnvADUser)
	set(&c.ADPassword, EnvADPassword)
	set(&c.Controller, EnvADServer)
	set(&c.KerberosRealm, EnvKerberosRealm)
	set(&c.KerberosKeytab, EnvKerberosKeytab)
	set(&c.KerberosConfig, EnvKerberosConfig)
	set(&c.KerberosCCache, EnvKerberosCCache)
	set(&c.KerberosSPN, EnvKerberosSPN)
}

// Validate rejects settings no run could use. Missing names, hosts and
// credentials are reported by the engine, which knows which ones a given
// operation needs.
func (c *Config) Validate() error {
	if _, err := availability.ParseOSFamily(c.OS); err != nil {
		return err
	}

	for name, d := range map[string]time.Duration{
		"connect timeout": c.ConnectTimeout,
		"read timeout":    c.ReadTimeout,
		"probe timeout":   c.ProbeTimeout,
	} {
		if d <= 0 {
			return availability.Configurationf("%s must be positive, got %s", name, d)
		}
	}
	if c.RetryDelay < 0 {
		return availability.Configurationf("retry delay cannot be negative, got %s", c.RetryDelay)
	}
	if c.RetryAttempts < 1 {
		return availability.Configurationf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.Port < 1 || c.Port > 65535 {
		return availability.Configurationf("invalid LDAPS port %d", c.Port)
	}
	if c.Concurrency < 0 {
		return availability.Configurationf("concurrency cannot be negative, got %d", c.Concurrency)
	}
	if c.LogLevel != "" && hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return availability.Configurationf("invalid log level %q", c.LogLevel)
	}

	return nil
}

// Settings returns the engine settings described by c.
func (c *Config) Settings() availability.Settings {
	return availability.Settings{
		VCenter: vsphere.Credentials{
			Username: c.VCenterUser,
			Password: c.VCenterPassword,
		},
		Directory: ldap.ConnectionConfig{
			Port:           c.Port,
			ConnectTimeout: c.ConnectTimeout,
			ReadTimeout:    c.ReadTimeout,
			Username:       c.ADUser,
			Password:       c.ADPassword,
			KerberosRealm:  c.KerberosRealm,
			KerberosKeytab: c.KerberosKeytab,
			KerberosConfig: c.KerberosConfig,
			KerberosCCache: c.KerberosCCache,
			KerberosSPN:    c.KerberosSPN,
		},
		ConnectTimeout: c.ConnectTimeout,
		ProbeTimeout:   c.ProbeTimeout,
		DirectoryRetry: retry.Policy{
			MaxAttempts: c.RetryAttempts,
			Delay:       c.RetryDelay,
		},
		Concurrency: c.Concurrency,
	}
}

// Request returns the resolution described by c. Call Validate first.
func (c *Config) Request() availability.Request {
	family, _ := availability.ParseOSFamily(c.OS)
	return availability.Request{
		Name:            c.Name,
		Prefix:          c.Prefix,
		OS:              family,
		Endpoints:       c.Endpoints,
		Partitions:      c.Partitions,
		Domain:          c.Domain,
		TrustAnchor:     c.TrustAnchor,
		Controller:      c.Controller,
		StrictDirectory: c.StrictDirectory,
	}
}
