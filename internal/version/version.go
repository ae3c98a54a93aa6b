// Package version holds this tool's own release version and the schema
// version of the index records it produces. It is deliberately separate
// from internal/semver: that package is the hand-rolled Cargo
// requirement-resolution engine under test; this package only needs to
// stamp and sanity-check a handful of fixed strings, so it leans on
// Masterminds/semver instead of duplicating the engine for a task the
// engine isn't built to do (parsing a release tag, not a Cargo
// requirement).
package version

import (
	"fmt"

	mastersemver "github.com/Masterminds/semver/v3"
)

// Release is the tool's own version, set via -ldflags at build time in
// release builds. "dev" is used for local builds.
var Release = "dev"

// IndexSchemaVersion increments when the shape of an emitted index line
// or the on-disk path layout changes in a way downstream consumers of
// the mirror need to know about.
//
// Bump for:
//   - Changes to which fields are retained/dropped per line
//   - Changes to the path-layout prefixing rules
//
// Don't bump for:
//   - Resolver policy changes that only affect *which* versions are
//     selected, not the shape of the record
const IndexSchemaVersion = 1

// CheckRelease validates that Release parses as semver, returning a
// descriptive error if a build was stamped with a malformed tag. "dev"
// is always accepted. Called once at CLI startup.
func CheckRelease() error {
	if Release == "dev" {
		return nil
	}
	if _, err := mastersemver.NewVersion(Release); err != nil {
		return fmt.Errorf("malformed release version %q: %w", Release, err)
	}
	return nil
}
