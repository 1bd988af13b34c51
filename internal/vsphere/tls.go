package vsphere

// TransportPolicy is the transport security applied to vCenter sessions.
type TransportPolicy struct {
	Insecure bool // Skip certificate verification
}

// NewTransportPolicy returns the vCenter transport policy. Certificates are
// never verified, whatever trust is configured for the directory.
func NewTransportPolicy() TransportPolicy {
	return TransportPolicy{Insecure: true}
}
