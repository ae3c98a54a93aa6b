// Package selector implements the version-selection policy:
// given a requirement and a package's version records, pick the one
// concrete version to resolve against, preferring a live version over a
// yanked one over an upstream-inconsistent fallback.
package selector

import (
	"fmt"

	"github.com/0xa1bed0/cratesmirror/internal/index"
	"github.com/0xa1bed0/cratesmirror/internal/semver"
)

// Reason tags why Select fell back to a degraded choice, for diagnostics.
type Reason int

const (
	// ReasonLiveMatch is the ordinary case: a live version matched.
	ReasonLiveMatch Reason = iota
	// ReasonYankedFallback means no live version matched; the best
	// matching yanked version was used instead.
	ReasonYankedFallback
	// ReasonLastRecordFallback means nothing matched at all; the last
	// record in the package's file was used as a best-effort choice.
	ReasonLastRecordFallback
)

func (r Reason) String() string {
	switch r {
	case ReasonLiveMatch:
		return "live match"
	case ReasonYankedFallback:
		return "no matching live version; using yanked"
	case ReasonLastRecordFallback:
		return "no matching version; using latest"
	default:
		return "unknown"
	}
}

// Result is the outcome of a Select call.
type Result struct {
	Record index.VersionRecord
	Reason Reason
}

// ErrNoRecords is returned when the package has no version records to
// select from at all (the records slice passed to Select is empty).
var ErrNoRecords = fmt.Errorf("no version records to select from")

// Select implements the selection algorithm over records, which must be in
// index-file (insertion) order; the last element is treated as "latest"
// for the final fallback tier.
func Select(req semver.Requirement, records []index.VersionRecord) (Result, error) {
	if len(records) == 0 {
		return Result{}, ErrNoRecords
	}

	var (
		bestLive    *index.VersionRecord
		bestLiveV   semver.Version
		bestYanked  *index.VersionRecord
		bestYankedV semver.Version
	)

	for i := range records {
		rec := records[i]
		v, err := semver.Parse(rec.Vers)
		if err != nil {
			// An unparsable version line cannot participate in
			// selection; skip it rather than aborting the whole
			// package.
			continue
		}
		if !req.Match(v) {
			continue
		}

		if rec.Yanked {
			if bestYanked == nil || v.GreaterThan(bestYankedV) {
				bestYanked = &records[i]
				bestYankedV = v
			}
			continue
		}

		if bestLive == nil || v.GreaterThan(bestLiveV) {
			bestLive = &records[i]
			bestLiveV = v
		}
	}

	switch {
	case bestLive != nil:
		return Result{Record: *bestLive, Reason: ReasonLiveMatch}, nil
	case bestYanked != nil:
		return Result{Record: *bestYanked, Reason: ReasonYankedFallback}, nil
	default:
		return Result{Record: records[len(records)-1], Reason: ReasonLastRecordFallback}, nil
	}
}
