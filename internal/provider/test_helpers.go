package provider

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/isometry/vmname/internal/availability"
	"github.com/isometry/vmname/internal/config"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestVCenters    = "VMNAME_TEST_VCENTERS"
	EnvTestPartitions  = "VMNAME_TEST_PARTITIONS"
	EnvTestDomain      = "VMNAME_TEST_DOMAIN"
	EnvTestTrustAnchor = "VMNAME_TEST_TRUST_ANCHOR"
	EnvTestController  = "VMNAME_TEST_CONTROLLER"

	// Test name prefixes to avoid conflicts with real machines.
	TestNamePrefix = "tf-test-"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	VCenters    []string
	Partitions  []string
	Domain      string
	TrustAnchor string
	Controller  string

	HasVCenterCredentials bool
	HasADCredentials      bool
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	return &TestConfig{
		VCenters:              availability.SplitList(os.Getenv(EnvTestVCenters)),
		Partitions:            availability.SplitList(os.Getenv(EnvTestPartitions)),
		Domain:                os.Getenv(EnvTestDomain),
		TrustAnchor:           os.Getenv(EnvTestTrustAnchor),
		Controller:            os.Getenv(EnvTestController),
		HasVCenterCredentials: os.Getenv(config.EnvVCenterUser) != "" && os.Getenv(config.EnvVCenterPassword) != "",
		HasADCredentials:      os.Getenv(config.EnvADUser) != "" && os.Getenv(config.EnvADPassword) != "",
	}
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig validates the acceptance test environment.
// Windows tests additionally need a domain and directory credentials.
func testAccPreCheckWithConfig(t *testing.T, windows bool) *TestConfig {
	SkipIfNotAccTest(t)

	cfg := GetTestConfig()

	if !cfg.HasVCenterCredentials {
		t.Skipf("Skipping test: %s and %s must be set", config.EnvVCenterUser, config.EnvVCenterPassword)
	}
	if len(cfg.VCenters) == 0 || len(cfg.Partitions) == 0 {
		t.Skipf("Skipping test: %s and %s must be set", EnvTestVCenters, EnvTestPartitions)
	}
	if windows {
		if cfg.Domain == "" {
			t.Skipf("Skipping test: %s must be set", EnvTestDomain)
		}
		if !cfg.HasADCredentials {
			t.Skipf("Skipping test: %s and %s must be set", config.EnvADUser, config.EnvADPassword)
		}
	}

	return cfg
}

// TestProviderConfig generates provider configuration for tests. Credentials
// are taken from the environment.
func TestProviderConfig() string {
	cfg := GetTestConfig()

	var providerConfig strings.Builder
	providerConfig.WriteString("provider \"vmname\" {\n")
	if cfg.Controller != "" {
		fmt.Fprintf(&providerConfig, "  controller = %q\n", cfg.Controller)
	}
	providerConfig.WriteString("  probe_timeout = 10\n")
	providerConfig.WriteString("}\n")
	return providerConfig.String()
}

// GenerateTestPrefix generates a prefix that no existing machine uses.
func GenerateTestPrefix() string {
	return TestNamePrefix + uuid.New().String()[:8] + "-"
}

// hclList renders values as an HCL list of strings.
func hclList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// AvailabilityConfig generates a vmname_availability data source.
func (c *TestConfig) AvailabilityConfig(attribute, value, osFamily string) string {
	domain := ""
	if osFamily == "windows" {
		domain = fmt.Sprintf("\n  domain       = %q\n  trust_anchor = %q", c.Domain, c.TrustAnchor)
	}
	return fmt.Sprintf(`
data "vmname_availability" "test" {
  %[1]s = %[2]q
  os_family  = %[3]q
  vcenters   = %[4]s
  partitions = %[5]s%[6]s
}`, attribute, value, osFamily, hclList(c.VCenters), hclList(c.Partitions), domain)
}
