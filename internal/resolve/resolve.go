// Package resolve implements the transitive dependency resolver: it drains a worklist of (package, requirement) pairs against an
// index.Reader, selecting one concrete version per requirement and
// expanding its declared dependencies until the worklist is empty or the
// iteration cap is hit.
package resolve

import (
	"sort"

	"github.com/0xa1bed0/cratesmirror/internal/diag"
	"github.com/0xa1bed0/cratesmirror/internal/exclude"
	"github.com/0xa1bed0/cratesmirror/internal/index"
	"github.com/0xa1bed0/cratesmirror/internal/selector"
	"github.com/0xa1bed0/cratesmirror/internal/semver"
)

// Latest is the worklist sentinel meaning "pick the final line of the
// package's index file".
const Latest = "latest"

// DefaultMaxIterations is the resolver's default iteration cap: exceeding it is a non-fatal diagnostic, not an error.
const DefaultMaxIterations = 20000

// Worklist maps a package name to the set of requirement strings (or the
// Latest sentinel) still to be resolved for it.
type Worklist map[string]map[string]struct{}

// NewWorklist returns an empty Worklist.
func NewWorklist() Worklist { return make(Worklist) }

// Add enqueues req for name, deduplicating by textual form.
func (w Worklist) Add(name, req string) {
	if w[name] == nil {
		w[name] = make(map[string]struct{})
	}
	w[name][req] = struct{}{}
}

// Seen is a monotonically growing set of resolved (name, version) pairs.
type Seen map[string]map[string]struct{}

// Has reports whether (name, vers) is already in the closure.
func (s Seen) Has(name, vers string) bool {
	versions, ok := s[name]
	if !ok {
		return false
	}
	_, ok = versions[vers]
	return ok
}

// HasAny reports whether name appears in the closure at any version.
func (s Seen) HasAny(name string) bool {
	versions, ok := s[name]
	return ok && len(versions) > 0
}

func (s Seen) add(name, vers string) {
	if s[name] == nil {
		s[name] = make(map[string]struct{})
	}
	s[name][vers] = struct{}{}
}

// Catalog projects Seen into package-name -> sorted version-string set,
// the input to materialization.
func (s Seen) Catalog() map[string][]string {
	out := make(map[string][]string, len(s))
	for name, versions := range s {
		vs := make([]string, 0, len(versions))
		for v := range versions {
			vs = append(vs, v)
		}
		sort.Strings(vs)
		out[name] = vs
	}
	return out
}

// Resolver drains a Worklist against an index.Reader, producing Seen.
type Resolver struct {
	Reader        index.Reader
	Exclusions    exclude.Set
	MaxIterations int
	Log           *diag.Logger
}

// New builds a Resolver with the default iteration cap and the
// process-wide diagnostics logger.
func New(reader index.Reader, exclusions exclude.Set) *Resolver {
	return &Resolver{
		Reader:        reader,
		Exclusions:    exclusions,
		MaxIterations: DefaultMaxIterations,
		Log:           diag.L(),
	}
}

// Overrun reports whether the last Run call hit the iteration cap.
type Overrun struct {
	Iterations int
}

// Run drains w against r, mutating it in place and returning the
// resulting closure. A non-nil *Overrun means the cap was hit and the
// returned Seen is a partial result.
func (r *Resolver) Run(w Worklist) (Seen, *Overrun) {
	seen := make(Seen)
	max := r.MaxIterations
	if max <= 0 {
		max = DefaultMaxIterations
	}

	iterations := 0
	for len(w) > 0 {
		if iterations >= max {
			r.log().Warn("resolver: hit iteration cap (%d); returning partial result", max)
			return seen, &Overrun{Iterations: iterations}
		}
		iterations++

		name := popOne(w)
		reqSet := w[name]
		delete(w, name)

		if r.Exclusions.Matches(name) {
			continue
		}
		if len(reqSet) == 0 {
			continue
		}

		records, err := r.Reader.Read(name)
		if err != nil {
			// NoSuchPackage (or any other read failure): treat the
			// package as a leaf rather than aborting the batch.
			continue
		}
		if len(records) == 0 {
			continue
		}

		reqs := materializeLatest(reqSet, records)

		for _, req := range reqs {
			requirement, err := semver.ParseRequirement(req)
			if err != nil {
				r.log().Warn("resolver: %s: invalid requirement %q: %v", name, req, err)
				continue
			}

			result, err := selector.Select(requirement, records)
			if err != nil {
				continue
			}
			switch result.Reason {
			case selector.ReasonYankedFallback:
				r.log().Warn("resolver: %s %s: no matching live version; using yanked", name, result.Record.Vers)
			case selector.ReasonLastRecordFallback:
				r.log().Warn("resolver: %s: no matching version for %q; using latest", name, req)
			}

			if seen.Has(name, result.Record.Vers) {
				continue
			}
			seen.add(name, result.Record.Vers)

			for _, dep := range result.Record.Deps {
				depName := dep.ResolvedName()
				if r.Exclusions.Matches(depName) {
					continue
				}
				if seen.HasAny(depName) {
					continue
				}
				w.Add(depName, dep.Req)
			}
		}
	}

	return seen, nil
}

// materializeLatest replaces the Latest sentinel, if present, with the
// last record's version string.
func materializeLatest(reqSet map[string]struct{}, records []index.VersionRecord) []string {
	_, hasLatest := reqSet[Latest]
	reqs := make([]string, 0, len(reqSet))
	for req := range reqSet {
		if req == Latest {
			continue
		}
		reqs = append(reqs, req)
	}
	if hasLatest {
		reqs = append(reqs, records[len(records)-1].Vers)
	}
	sort.Strings(reqs)
	return reqs
}

// popOne returns an arbitrary key from w; Go's map iteration already
// supplies the unspecified traversal order the resolver requires.
func popOne(w Worklist) string {
	for name := range w {
		return name
	}
	return ""
}

func (r *Resolver) log() *diag.Logger {
	if r.Log != nil {
		return r.Log
	}
	return diag.L()
}
