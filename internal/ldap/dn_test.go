package ldap

import (
	"testing"
)

func TestBaseDNFromDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"corp.example.com", "DC=corp,DC=example,DC=com"},
		{"corp.local", "DC=corp,DC=local"},
		{"corp.local.", "DC=corp,DC=local"},
		{" example ", "DC=example"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := BaseDNFromDomain(tt.domain); got != tt.want {
				t.Errorf("BaseDNFromDomain(%q) = %q, want %q", tt.domain, got, tt.want)
			}
		})
	}
}

func TestEscapeDNValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"plain", "VDI-JS01", "VDI-JS01"},
		{"comma", "Doe, John", `Doe\, John`},
		{"leading hash", "#123", `\#123`},
		{"surrounding spaces", " x ", `\ x\ `},
		{"equals", "a=b", `a\=b`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeDNValue(tt.value); got != tt.want {
				t.Errorf("EscapeDNValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestComputerFilter(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"VDI-JS06", "(&(objectClass=computer)(cn=VDI-JS06))"},
		{"evil*)(cn=*", `(&(objectClass=computer)(cn=evil\2a\29\28cn=\2a))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputerFilter(tt.name); got != tt.want {
				t.Errorf("ComputerFilter(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
