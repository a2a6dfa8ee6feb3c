package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a Haystack format version.
type Version struct {
	Major int
	Minor int
}

var (
	Ver2_0        = Version{Major: 2, Minor: 0}
	Ver3_0        = Version{Major: 3, Minor: 0}
	LatestVersion = Ver3_0
)

// ParseVersion parses "major.minor" (a bare "major" means minor 0).
func ParseVersion(s string) (Version, error) {
	major, minor, found := strings.Cut(strings.TrimSpace(s), ".")
	maj, err := strconv.Atoi(major)
	if err != nil || maj < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	v := Version{Major: maj}
	if found {
		mn, err := strconv.Atoi(minor)
		if err != nil || mn < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		v.Minor = mn
	}
	return v, nil
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor != o.Minor:
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether v precedes o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MinVersion returns the lowest format version able to carry v.
func MinVersion(v Value) Version {
	switch v.(type) {
	case NA, List, *Dict, *Grid:
		return Ver3_0
	default:
		return Ver2_0
	}
}
