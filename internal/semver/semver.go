// Package semver parses Kubernetes server versions and checks them against
// minimum-version constraints.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3.
package semver

import (
	"fmt"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a semantic version.
type Version struct {
	v *mm.Version
}

// Constraint is a semantic version constraint.
//
// Examples:
// - ">=1.26.0"
// - ">=1.28.0 <2.0.0"
type Constraint struct {
	raw string
	c   *mm.Constraints
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

// ParseKubeVersion parses a GitVersion reported by an API server, such as
// "v1.30.2", "v1.29.4+k3s1" or "v1.28.9-gke.1000000". Vendor pre-release
// suffixes are dropped: they mark distribution builds, not pre-releases, and
// would otherwise fail every constraint without a pre-release part.
func ParseKubeVersion(gitVersion string) (Version, error) {
	v, err := ParseVersion(gitVersion)
	if err != nil {
		return Version{}, err
	}
	if v.v.Prerelease() == "" {
		return v, nil
	}
	stripped, err := v.v.SetPrerelease("")
	if err != nil {
		return Version{}, fmt.Errorf("semver: strip pre-release of %q: %w", gitVersion, err)
	}
	return Version{v: &stripped}, nil
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

func ParseConstraint(raw string) (Constraint, error) {
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{raw: raw, c: c}, nil
}

// IsZero reports whether c was never parsed. A zero constraint admits nothing.
func (c Constraint) IsZero() bool {
	return c.c == nil
}

func (c Constraint) String() string {
	return c.raw
}

func Satisfies(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}
