package access

import (
	"fmt"
	"slices"
	"strings"
)

// Profile is the minimal view of a principal the engine needs.
type Profile struct {
	Role       Role
	Tier       Tier
	Department string
}

// Classification describes what a protected resource demands. RequiredRole and
// RequiredTier are hard overrides evaluated after the level floor; Departments
// is an allow-list (empty means unrestricted).
type Classification struct {
	Level        Level
	RequiredRole *Role
	RequiredTier *Tier
	Departments  []string
}

// Decision is the outcome of a check. When access is denied, Reason names the
// lowest role or tier that would satisfy the request so callers can surface
// actionable upgrade guidance instead of a bare refusal.
type Decision struct {
	Allowed      bool
	Reason       string
	RequiredRole *Role
	RequiredTier *Tier
}

func allow() Decision { return Decision{Allowed: true} }

// CheckLevel compares the principal's role and tier ordinals against the
// level's floor. Pure and monotonic: a higher role or tier never flips an
// allowed decision to denied.
func CheckLevel(p Profile, lvl Level) Decision {
	req := RequirementFor(lvl)

	if p.Role < req.MinRole {
		needed := lowestSatisfyingRole(req.MinRole)
		return Decision{
			Allowed:      false,
			Reason:       fmt.Sprintf("requires role %s or higher", needed),
			RequiredRole: &needed,
		}
	}
	if p.Tier < req.MinTier {
		needed := lowestSatisfyingTier(req.MinTier)
		return Decision{
			Allowed:      false,
			Reason:       fmt.Sprintf("requires subscription %s or higher", needed),
			RequiredTier: &needed,
		}
	}
	return allow()
}

// CheckClassification evaluates the level floor first, then the hard
// overrides. Role and tier overrides bind everyone, full-access roles
// included; only the department allow-list is bypassed for admin and ceo.
func CheckClassification(p Profile, c Classification) Decision {
	if d := CheckLevel(p, c.Level); !d.Allowed {
		return d
	}

	if c.RequiredRole != nil && p.Role < *c.RequiredRole {
		needed := *c.RequiredRole
		return Decision{
			Allowed:      false,
			Reason:       fmt.Sprintf("requires specific role %s or higher", needed),
			RequiredRole: &needed,
		}
	}

	if c.RequiredTier != nil && p.Tier < *c.RequiredTier {
		needed := *c.RequiredTier
		return Decision{
			Allowed:      false,
			Reason:       fmt.Sprintf("requires specific subscription %s or higher", needed),
			RequiredTier: &needed,
		}
	}

	if len(c.Departments) > 0 && !FullAccess(p) {
		if p.Department == "" || !slices.Contains(c.Departments, p.Department) {
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("restricted to departments: %s", strings.Join(c.Departments, ", ")),
			}
		}
	}

	return allow()
}

// MaxLevel returns the highest level the principal satisfies. Always at least
// LevelPublic since its floor is the zero requirement.
func MaxLevel(p Profile) Level {
	max := LevelPublic
	for _, lvl := range Levels() {
		req := RequirementFor(lvl)
		if p.Role >= req.MinRole && p.Tier >= req.MinTier {
			max = lvl
		}
	}
	return max
}

// FullAccess reports whether the principal holds one of the two full-access
// roles that bypass department restrictions.
func FullAccess(p Profile) bool {
	return p.Role >= RoleAdmin
}

// lowestSatisfyingRole scans the role ordering upward and returns the first
// role meeting the floor. With a dense ordering this is the floor itself, but
// scanning keeps the guidance correct if a gap is ever introduced.
func lowestSatisfyingRole(min Role) Role {
	for _, r := range Roles() {
		if r >= min {
			return r
		}
	}
	return RoleCEO
}

func lowestSatisfyingTier(min Tier) Tier {
	for _, t := range Tiers() {
		if t >= min {
			return t
		}
	}
	return TierEnterprise
}
