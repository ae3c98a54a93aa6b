// Package semver implements the SemVer value and the Cargo-flavored
// requirement grammar used to resolve crate dependency trees: parsing,
// total ordering with prerelease/build semantics, and requirement
// matching (caret, tilde, comparator, wildcard, exact, conjunctive
// lists). This is the hand-rolled core the rest of the resolver is
// built on — it does not delegate to a third-party semver library.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is an immutable parsed SemVer value: major.minor.patch with an
// optional dot-separated prerelease and build. It keeps the original
// string so stringification round-trips exactly.
type Version struct {
	Major, Minor, Patch uint64
	Pre                 []Identifier
	Build               []string
	raw                 string
}

// Identifier is one dot-separated prerelease component. It may be
// numeric (no leading zeros) or alphanumeric.
type Identifier struct {
	text    string
	numeric bool
	num     uint64
}

func (id Identifier) String() string { return id.text }

// versionPattern is the canonical SemVer 2.0.0 grammar: numeric
// components reject leading zeros (except the literal "0"); numeric
// prerelease identifiers follow the same rule; build identifiers allow
// any run of [0-9A-Za-z-].
var versionPattern = regexp.MustCompile(
	`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
		`(?:-((?:0|[1-9]\d*|\d*[A-Za-z-][0-9A-Za-z-]*)(?:\.(?:0|[1-9]\d*|\d*[A-Za-z-][0-9A-Za-z-]*))*))?` +
		`(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`,
)

// ErrInvalidSemVer is the sentinel behind every Version parse failure
// (requirement parse failures use ErrInvalidRequirement); wrap it with
// more context via fmt.Errorf("...: %w", err).
var ErrInvalidSemVer = fmt.Errorf("invalid semver")

// Parse parses a full, three-component SemVer string such as would
// appear in a version record's "vers" field. Partial literals (as
// allowed inside requirement clauses) are handled separately by the
// requirement parser.
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("%q: %w", s, ErrInvalidSemVer)
	}

	major, _ := strconv.ParseUint(m[1], 10, 64)
	minor, _ := strconv.ParseUint(m[2], 10, 64)
	patch, _ := strconv.ParseUint(m[3], 10, 64)

	var pre []Identifier
	if m[4] != "" {
		for _, part := range strings.Split(m[4], ".") {
			pre = append(pre, newIdentifier(part))
		}
	}

	var build []string
	if m[5] != "" {
		build = strings.Split(m[5], ".")
	}

	return Version{
		Major: major,
		Minor: minor,
		Patch: patch,
		Pre:   pre,
		Build: build,
		raw:   s,
	}, nil
}

// MustParse is Parse but panics on error; useful for tests and literals
// known to be valid at compile time.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newIdentifier(s string) Identifier {
	if isAllDigits(s) {
		n, err := strconv.ParseUint(s, 10, 64)
		if err == nil {
			return Identifier{text: s, numeric: true, num: n}
		}
	}
	return Identifier{text: s}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String returns the exact string Parse was given, satisfying the
// round-trip invariant stringify(parse(s)) == s for every accepted s.
func (v Version) String() string { return v.raw }

// HasPrerelease reports whether v carries a prerelease component.
func (v Version) HasPrerelease() bool { return len(v.Pre) > 0 }

// core compares only (major, minor, patch) as an integer triple.
func (v Version) core(o Version) int {
	if v.Major != o.Major {
		return cmpUint(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return cmpUint(v.Minor, o.Minor)
	}
	if v.Patch != o.Patch {
		return cmpUint(v.Patch, o.Patch)
	}
	return 0
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareCore is the "strict" comparison mode: it compares only
// (major, minor, patch) and ignores prerelease and build entirely. It
// is used as a requirement-internal knob — not as a rival total order
// for general use — by the caret/tilde upper bound and the bare "<V"
// comparator, so that a prerelease of the next major/minor
// never slips in under an exclusive upper bound.
func (v Version) CompareCore(o Version) int {
	return v.core(o)
}

// Compare implements the full total order: core triple first,
// then prerelease presence (a prerelease is less than the same core
// without one), then identifier-by-identifier prerelease comparison.
// Build metadata never affects order.
func (v Version) Compare(o Version) int {
	if c := v.core(o); c != 0 {
		return c
	}

	vPre, oPre := v.HasPrerelease(), o.HasPrerelease()
	switch {
	case !vPre && !oPre:
		return 0
	case !vPre && oPre:
		return 1
	case vPre && !oPre:
		return -1
	}

	return comparePrereleaseIdentifiers(v.Pre, o.Pre)
}

// comparePrereleaseIdentifiers walks both identifier lists pairwise.
// Numeric identifiers compare numerically; a numeric identifier is
// always less than an alphanumeric one; when one list runs out first,
// the shorter one is less.
func comparePrereleaseIdentifiers(a, b []Identifier) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		x, y := a[i], b[i]
		if x.numeric && y.numeric {
			if c := cmpUint(x.num, y.num); c != 0 {
				return c
			}
			continue
		}
		if x.numeric != y.numeric {
			if x.numeric {
				return -1
			}
			return 1
		}
		if x.text != y.text {
			if x.text < y.text {
				return -1
			}
			return 1
		}
	}

	return cmpUint(uint64(len(a)), uint64(len(b)))
}

// LessThan, GreaterThan and Equal are convenience wrappers over Compare.
func (v Version) LessThan(o Version) bool    { return v.Compare(o) < 0 }
func (v Version) GreaterThan(o Version) bool { return v.Compare(o) > 0 }
func (v Version) Equal(o Version) bool       { return v.Compare(o) == 0 }
