package availability

import (
	"fmt"
	"strings"
)

// OSFamily selects which authorities a name is checked against.
type OSFamily string

const (
	OSWindows OSFamily = "windows"
	OSLinux   OSFamily = "linux"
)

// ParseOSFamily parses a case-insensitive OS family; empty means linux.
func ParseOSFamily(s string) (OSFamily, error) {
	switch OSFamily(strings.ToLower(strings.TrimSpace(s))) {
	case "", OSLinux:
		return OSLinux, nil
	case OSWindows:
		return OSWindows, nil
	}
	return "", Configurationf("unsupported OS family %q (expected windows or linux)", s)
}

// RequiresDirectory reports whether names for this family must be checked in AD.
func (f OSFamily) RequiresDirectory() bool {
	return f == OSWindows
}

// ControllerList is the ordered set of domain controllers probed for a name.
type ControllerList []string

// ProbeTarget is one (endpoint, partition) pair of the virtualization fleet.
type ProbeTarget struct {
	Endpoint  string
	Partition string
}

// Path returns the inventory path name would occupy under this target.
func (t ProbeTarget) Path(name string) string {
	return strings.TrimRight(t.Partition, "/") + "/" + name
}

func (t ProbeTarget) String() string {
	return t.Endpoint + ":" + t.Partition
}

// Targets returns the Cartesian product of endpoints and partitions, endpoint-major.
func Targets(endpoints, partitions []string) []ProbeTarget {
	targets := make([]ProbeTarget, 0, len(endpoints)*len(partitions))
	for _, e := range endpoints {
		for _, p := range partitions {
			targets = append(targets, ProbeTarget{Endpoint: e, Partition: p})
		}
	}
	return targets
}

// SplitList splits a comma-separated argument, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ProbeStatus is the outcome of one probe against one source.
type ProbeStatus string

const (
	StatusSuccess          ProbeStatus = "success"           // Name found
	StatusNotFound         ProbeStatus = "not_found"         // Source answered, name absent
	StatusConnectionFailed ProbeStatus = "connection_failed" // Source unreachable or errored
)

// ProbeResult records one source's answer for one name.
type ProbeResult struct {
	Source   string
	Found    bool
	Attempts int
	Status   ProbeStatus
	Err      error
}

func (r ProbeResult) String() string {
	return fmt.Sprintf("%s: %s (%d attempts)", r.Source, r.Status, r.Attempts)
}

// DirectoryOutcome summarises the directory check of one name.
type DirectoryOutcome string

const (
	DirectoryFound      DirectoryOutcome = "found"
	DirectoryAbsent     DirectoryOutcome = "absent"     // At least one controller answered with no entry
	DirectoryUnverified DirectoryOutcome = "unverified" // No controller answered
	DirectorySkipped    DirectoryOutcome = "skipped"    // Not required for the OS family
)

// Existence is the combined answer of both authorities for one name.
type Existence struct {
	Name      string
	Directory DirectoryOutcome
	Fleet     bool
	Results   []ProbeResult
}

// Exists reports whether any authority holds name.
func (e Existence) Exists() bool {
	return e.Directory == DirectoryFound || e.Fleet
}
