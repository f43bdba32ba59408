// Package semver implements the four-field numeric version algebra of
// SPEC_FULL.md §4.7. No pack library models a numerically-ordered 4-tuple
// build component (Masterminds/semver/v3 and hashicorp/go-version both
// treat build/pre-release as opaque string segments), so this package is
// built on the standard library; see DESIGN.md for the full justification.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// Version is the 4-tuple (major, minor, patch, build) of unsigned
// integers defined by SPEC_FULL.md §3. Ordering is lexicographic.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
	Build uint64
}

// Parse accepts "M.m.p" or "M.m.p.b" and rejects anything else.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return Version{}, invalidVersion(s)
	}

	nums := make([]uint64, 4)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, invalidVersion(s)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: nums[3]}, nil
}

func invalidVersion(s string) error {
	return errors.Newf("invalid version string %q", s).
		Component("semver").
		Category(errors.CategoryInvalidArgument).
		Context("input", s).
		Build()
}

// String renders symmetric to Parse: "M.m.p" when Build == 0, otherwise
// "M.m.p.b".
func (v Version) String() string {
	if v.Build == 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// Compare returns -1, 0 or 1 using lexicographic order on the 4-tuple.
func Compare(a, b Version) int {
	switch {
	case a.Major != b.Major:
		return cmpUint(a.Major, b.Major)
	case a.Minor != b.Minor:
		return cmpUint(a.Minor, b.Minor)
	case a.Patch != b.Patch:
		return cmpUint(a.Patch, b.Patch)
	default:
		return cmpUint(a.Build, b.Build)
	}
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

// Less reports whether a sorts before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

// Equal reports whether a and b are identical.
func Equal(a, b Version) bool { return Compare(a, b) == 0 }

// Range is an inclusive version range [Min, Max]. HasMax false means
// unbounded above; Max is then ignored.
type Range struct {
	Min    Version
	Max    Version
	HasMax bool
}

// Satisfies reports min <= v && (no max || v <= max), per SPEC_FULL.md §4.7.
func (r Range) Satisfies(v Version) bool {
	if Compare(v, r.Min) < 0 {
		return false
	}
	if r.HasMax && Compare(v, r.Max) > 0 {
		return false
	}
	return true
}

// IsPrerelease reports whether v carries a nonzero build component, which
// this package treats as the prerelease/build marker consulted by the
// dependency resolver's version policy (SPEC_FULL.md §4.8).
func (v Version) IsPrerelease() bool {
	return v.Build != 0
}
