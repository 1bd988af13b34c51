package ldap

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// TLSPolicy is the transport security applied to directory connections.
type TLSPolicy struct {
	Config     *tls.Config
	Verified   bool   // Controller certificates are checked against AnchorPath
	AnchorPath string // Trust anchor the policy was built from, if any
}

// NewDirectoryTLSPolicy builds the directory TLS policy from a PEM trust anchor.
//
// An empty or nonexistent anchorPath yields an unverified policy; callers are
// expected to log that. An anchor that exists but cannot be read or holds no
// certificate is an error naming the path.
func NewDirectoryTLSPolicy(anchorPath string) (*TLSPolicy, error) {
	if anchorPath == "" {
		return insecurePolicy(""), nil
	}

	pemData, err := os.ReadFile(anchorPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return insecurePolicy(anchorPath), nil
		}
		return nil, fmt.Errorf("failed to read trust anchor %s: %w", anchorPath, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("failed to parse trust anchor %s: no PEM certificates found", anchorPath)
	}

	return &TLSPolicy{
		Config: &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		},
		Verified:   true,
		AnchorPath: anchorPath,
	}, nil
}

func insecurePolicy(anchorPath string) *TLSPolicy {
	return &TLSPolicy{
		Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // no trust anchor configured
			MinVersion:         tls.VersionTLS12,
		},
		AnchorPath: anchorPath,
	}
}
