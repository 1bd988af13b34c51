/*
Package ldap answers one question of Active Directory: does a computer object
with a given common name exist.

# Controller Discovery

SRVDiscovery resolves the controllers of a domain from the
_ldap._tcp.dc._msdcs.<domain> SRV record, ordered by ascending priority and
then descending weight. A missing or empty record falls back to the bare
domain name; any other resolver failure wraps ErrNoControllers.

# Transport Security

NewDirectoryTLSPolicy verifies controller certificates against a PEM trust
anchor when one is present on disk. Without one, connections are encrypted
but unverified and TLSPolicy.Verified is false.

# Sessions

Client.Open dials a single controller over LDAPS and binds with either simple
or GSSAPI/Kerberos credentials. Sessions are short-lived; retrying and
failover across controllers are left to the caller.

# Error Handling

Failures are returned as *LDAPError, categorised (connection, timeout,
authentication, and so on) and flagged retryable when they describe a
transient connectivity problem.

# Example Usage

	servers, err := ldap.NewSRVDiscovery(ctx).DiscoverControllers(ctx, "corp.example.com")
	if err != nil {
		return err
	}

	client, err := ldap.NewClient(&ldap.ConnectionConfig{
		Domain:   "corp.example.com",
		Username: "svc-vmname",
		Password: password,
	})
	if err != nil {
		return err
	}

	session, err := client.Open(ctx, servers[0].Host)
	if err != nil {
		return err
	}
	defer session.Close()

	entries, err := session.SearchComputer(ctx, "VDI-JS01")
*/
package ldap
