package ldap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ErrNoControllers is returned when no domain controller can be resolved for a domain.
var ErrNoControllers = errors.New("no domain controllers found")

// controllerSRVPrefix locates the domain controllers of an Active Directory domain.
const controllerSRVPrefix = "_ldap._tcp.dc._msdcs."

// SRVResolver is the subset of *net.Resolver used for discovery.
type SRVResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// SRVDiscovery handles DNS SRV record discovery for domain controllers.
type SRVDiscovery struct {
	ctx      context.Context // Logging context with LDAP subsystem
	resolver SRVResolver
}

// NewSRVDiscovery creates a new SRV discovery instance.
func NewSRVDiscovery(ctx context.Context) *SRVDiscovery {
	return NewSRVDiscoveryWithResolver(ctx, net.DefaultResolver)
}

// NewSRVDiscoveryWithResolver creates an SRV discovery instance backed by resolver.
func NewSRVDiscoveryWithResolver(ctx context.Context, resolver SRVResolver) *SRVDiscovery {
	return &SRVDiscovery{
		ctx:      ctx,
		resolver: resolver,
	}
}

// DiscoverControllers resolves the domain controllers of domain.
//
// Controllers are returned ordered by ascending priority, then descending weight.
// When the SRV record does not exist, or exists with no targets, the bare domain
// is returned as the only controller. Any other resolver failure is wrapped in
// ErrNoControllers.
func (d *SRVDiscovery) DiscoverControllers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	start := time.Now()
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	service := controllerSRVPrefix + domain
	tflog.SubsystemDebug(d.ctx, "ldap", "Looking up SRV records for domain controllers", map[string]any{
		"service": service,
	})

	_, records, err := d.resolver.LookupSRV(ctx, "", "", service)
	duration := time.Since(start)

	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			tflog.SubsystemWarn(d.ctx, "ldap", "No SRV records for domain, using bare domain as controller", map[string]any{
				"service":  service,
				"duration": duration.String(),
			})
			return d.createFallbackServers(domain), nil
		}

		tflog.SubsystemError(d.ctx, "ldap", "SRV lookup failed", map[string]any{
			"service":  service,
			"duration": duration.String(),
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%w: SRV lookup failed for %s: %w", ErrNoControllers, service, err)
	}

	if len(records) == 0 {
		tflog.SubsystemWarn(d.ctx, "ldap", "SRV lookup returned no targets, using bare domain as controller", map[string]any{
			"service": service,
		})
		return d.createFallbackServers(domain), nil
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		server := &ServerInfo{
			// Remove trailing dot from hostname if present
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     DefaultLDAPSPort,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		}
		if err := validateServer(server); err != nil {
			tflog.SubsystemWarn(d.ctx, "ldap", "Ignoring unusable SRV target", map[string]any{
				"service": service,
				"target":  srv.Target,
				"error":   err.Error(),
			})
			continue
		}
		servers = append(servers, server)
	}

	if len(servers) == 0 {
		tflog.SubsystemWarn(d.ctx, "ldap", "SRV lookup returned no usable targets, using bare domain as controller", map[string]any{
			"service": service,
		})
		return d.createFallbackServers(domain), nil
	}

	d.sortServersByPriority(servers)

	tflog.SubsystemInfo(d.ctx, "ldap", "Domain controller discovery completed", map[string]any{
		"domain":       domain,
		"duration":     duration.String(),
		"server_count": len(servers),
		"controllers":  ServerHosts(servers),
	})
	return servers, nil
}

// createFallbackServers assumes the domain name itself resolves to a controller.
func (d *SRVDiscovery) createFallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{
			Host:     domain,
			Port:     DefaultLDAPSPort,
			Priority: 0,
			Weight:   100,
			Source:   "fallback",
		},
	}
}

// sortServersByPriority sorts servers by priority and weight according to RFC 2782.
func (d *SRVDiscovery) sortServersByPriority(servers []*ServerInfo) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}

// StaticController returns the single controller list used when discovery is bypassed.
func StaticController(host string) []*ServerInfo {
	return []*ServerInfo{
		{
			Host:     host,
			Port:     DefaultLDAPSPort,
			Priority: 0,
			Weight:   100,
			Source:   "config",
		},
	}
}

// ServerHosts returns the hostnames of servers in their stored order.
func ServerHosts(servers []*ServerInfo) []string {
	hosts := make([]string, 0, len(servers))
	for _, s := range servers {
		hosts = append(hosts, s.Host)
	}
	return hosts
}

// validateServer rejects controllers that cannot be dialed, such as the "."
// target RFC 2782 uses to say a service is not offered.
func validateServer(server *ServerInfo) error {
	switch {
	case server.Host == "" || server.Host == ".":
		return fmt.Errorf("controller host is empty")
	case strings.ContainsAny(server.Host, " \t/:"):
		return fmt.Errorf("controller host %q is not a host name", server.Host)
	case server.Port <= 0 || server.Port > 65535:
		return fmt.Errorf("invalid port number: %d", server.Port)
	}
	return nil
}

// ServerURL returns the LDAPS URL for host on port.
func ServerURL(host string, port int) string {
	if port <= 0 {
		port = DefaultLDAPSPort
	}
	return fmt.Sprintf("ldaps://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}
