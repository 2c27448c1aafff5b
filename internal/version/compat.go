// Package version gates arenapool's on-disk/wire-visible ABI: the fixed
// layout of FileCleanupData's fields and the ordering guarantees RunCleanupFile
// and Destroy make. A long-lived server process may load plugins or restore
// checkpoints built against a different arenapool release; Satisfies lets it
// refuse to do so instead of corrupting pool state silently.
package version

import (
	"fmt"

	semver "github.com/Masterminds/semver/v3"
)

// ABI is the version a caller's compatibility constraint is checked against.
// It advances only when a change to the pool/cleanup/array/list contract
// could break a caller compiled against an earlier arenapool.
const ABI = "1.0.0"

// Satisfies reports whether ABI meets the given constraint string, in the
// same syntax accepted by github.com/Masterminds/semver/v3 (e.g. ">=1.0.0,
// <2.0.0" or "^1.1"). It returns an error only if the constraint itself
// fails to parse.
func Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("version: invalid constraint %q: %w", constraint, err)
	}

	v, err := semver.NewVersion(ABI)
	if err != nil {
		return false, fmt.Errorf("version: invalid ABI constant %q: %w", ABI, err)
	}

	return c.Check(v), nil
}
