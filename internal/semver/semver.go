// Package semver parses major.minor.patch[-prerelease] versions and defines
// the compatibility relation used by every plugin loader.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
)

// Version is a parsed semantic version. Prerelease is kept as an opaque tag
// and never takes part in ordering.
type Version struct {
	Major      uint32
	Minor      uint32
	Patch      uint32
	Prerelease string
}

// Parse parses s as major.minor.patch with an optional -prerelease suffix.
func Parse(s string) (Version, error) {
	core, pre, hasPre := strings.Cut(s, "-")
	if hasPre && pre == "" {
		return Version{}, errorcodes.ErrParse.Withf("invalid version %q: empty prerelease", s)
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, errorcodes.ErrParse.Withf(
			"invalid version format %q, expected major.minor.patch", s)
	}

	var nums [3]uint32
	for i, p := range parts {
		n, err := parseComponent(p)
		if err != nil {
			return Version{}, errorcodes.ErrParse.Withf("invalid version %q", s).Wrap(err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Prerelease: pre}, nil
}

// MustParse is like Parse but panics on malformed input. Use it for constants only.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return v
}

func parseComponent(p string) (uint32, error) {
	if p == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, c := range p {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-numeric component %q", p)
		}
	}
	n, err := strconv.ParseUint(p, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("component %q out of range", p)
	}

	return uint32(n), nil
}

// String renders the version back to its textual form.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}

	return s
}

// IsCompatibleWith reports whether v and target share a major version.
func (v Version) IsCompatibleWith(target Version) bool {
	return v.Major == target.Major
}

// IsAtLeast reports whether v >= target over (major, minor, patch).
func (v Version) IsAtLeast(target Version) bool {
	return v.Compare(target) >= 0
}

// Compare returns -1, 0 or +1 ordering v against other, ignoring prerelease tags.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmp(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmp(v.Minor, other.Minor)
	default:
		return cmp(v.Patch, other.Patch)
	}
}

func cmp(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
