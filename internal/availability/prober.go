package availability

import (
	"context"
	"fmt"
)

// ExistenceProber answers whether a name is in use anywhere.
type ExistenceProber interface {
	Probe(ctx context.Context, name string) (Existence, error)
}

// Prober checks the directory first and the vCenter fleet second.
type Prober struct {
	directory *DirectoryChecker // nil when the OS family needs no directory check
	fleet     *FleetChecker
	strict    bool
}

// NewProber combines the two checks. A nil directory skips the directory
// check. In strict mode a directory that no controller could answer for is
// an error instead of an absence.
func NewProber(directory *DirectoryChecker, fleet *FleetChecker, strict bool) *Prober {
	return &Prober{
		directory: directory,
		fleet:     fleet,
		strict:    strict,
	}
}

// Probe reports where name exists. A directory hit skips the fleet check.
func (p *Prober) Probe(ctx context.Context, name string) (Existence, error) {
	ex := Existence{Name: name, Directory: DirectorySkipped}

	if p.directory != nil {
		outcome, results, err := p.directory.Check(ctx, name)
		ex.Results = append(ex.Results, results...)
		if err != nil {
			return ex, err
		}
		ex.Directory = outcome

		if outcome == DirectoryFound {
			return ex, nil
		}
		if outcome == DirectoryUnverified && p.strict {
			return ex, fmt.Errorf("%w: no controller answered for %s", ErrDirectoryUnverified, name)
		}
	}

	if err := ctx.Err(); err != nil {
		return ex, err
	}

	found, results := p.fleet.Check(ctx, name)
	ex.Results = append(ex.Results, results...)
	ex.Fleet = found

	return ex, ctx.Err()
}

// Systems returns how many sources a full probe consults.
func (p *Prober) Systems() int {
	n := len(p.fleet.Targets())
	if p.directory != nil {
		n += len(p.directory.controllers)
	}
	return n
}
