package availability

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/vmname/internal/logging"
)

// progressInterval is how many candidates pass between progress log entries.
const progressInterval = 10

// Search resolves names against an ExistenceProber.
type Search struct {
	prober  ExistenceProber
	systems int
}

// NewSearch creates a search. systems is the number of sources behind prober
// and is only reported in logs.
func NewSearch(prober ExistenceProber, systems int) *Search {
	return &Search{prober: prober, systems: systems}
}

// FindFirstAvailable returns the lowest-indexed free name prefix01..prefix99.
// Candidates are probed strictly in order and one at a time.
func (s *Search) FindFirstAvailable(ctx context.Context, prefix string) (Decision, error) {
	tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Searching for an available name", map[string]any{
		"prefix": prefix,
	})

	for i := MinIndex; i <= MaxIndex; i++ {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}

		name := Candidate(prefix, i)
		if i%progressInterval == 0 {
			tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Search progress", map[string]any{
				"checked": i,
			})
		}

		ex, err := s.prober.Probe(ctx, name)
		if err != nil {
			return Decision{}, fmt.Errorf("probing %s: %w", name, err)
		}
		if ex.Exists() {
			continue
		}

		tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Available name found", map[string]any{
			"vm_name": name,
			"index":   fmt.Sprintf("%02d", i),
			"checked": i - MinIndex + 1,
		})
		return Allocated(name, i), nil
	}

	tflog.SubsystemWarn(ctx, logging.SubsystemEngine, "No available index", map[string]any{
		"prefix":  prefix,
		"checked": MaxIndex - MinIndex + 1,
	})
	return Exhausted(), nil
}

// CheckName decides whether the literal name is free.
func (s *Search) CheckName(ctx context.Context, name string) (Decision, error) {
	ex, err := s.prober.Probe(ctx, name)
	if err != nil {
		return Decision{}, fmt.Errorf("probing %s: %w", name, err)
	}

	fields := map[string]any{"vm_name": name}
	switch {
	case ex.Directory == DirectoryFound:
		tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Name unavailable", fields)
		return Taken(name, ReasonExistsAD), nil
	case ex.Fleet:
		tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Name unavailable", fields)
		return Taken(name, ReasonExistsVCenter), nil
	}

	fields["systems"] = s.systems
	tflog.SubsystemInfo(ctx, logging.SubsystemEngine, "Name available", fields)
	return Free(name), nil
}
