package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// BaseDNFromDomain derives the directory search base from a DNS domain.
//
//	"corp.example.com" → "DC=corp,DC=example,DC=com"
func BaseDNFromDomain(domain string) string {
	domain = strings.Trim(strings.TrimSpace(domain), ".")
	if domain == "" {
		return ""
	}

	labels := strings.Split(domain, ".")
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		parts = append(parts, "DC="+EscapeDNValue(label))
	}

	return strings.Join(parts, ",")
}

// EscapeDNValue escapes special characters in a DN attribute value according to RFC 4514.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 4)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';', '=':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ComputerFilter returns the search filter matching a computer object by common name.
func ComputerFilter(name string) string {
	return fmt.Sprintf("(&(objectClass=computer)(cn=%s))", ldap.EscapeFilter(name))
}
