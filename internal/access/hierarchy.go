// Package access implements the pure access decision engine: role and tier
// orderings, resource classifications, and namespace derivation. It performs
// no I/O so every decision is reproducible from its inputs.
package access

import (
	dErrors "askgate/pkg/domain-errors"
)

// Role is a closed enumeration with an explicit total ordering. The integer
// rank makes monotonicity of access decisions a property of comparison, not
// of string tables.
type Role int

const (
	RoleUser Role = iota
	RoleJunior
	RoleSenior
	RoleManager
	RoleAdmin
	RoleCEO
)

var roleNames = [...]string{"user", "junior", "senior", "manager", "admin", "ceo"}

func (r Role) String() string {
	if r < RoleUser || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	return r >= RoleUser && int(r) < len(roleNames)
}

// ParseRole converts a stored label into a Role, rejecting unknown labels.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
}

// Roles returns all roles in ascending order of privilege.
func Roles() []Role {
	out := make([]Role, len(roleNames))
	for i := range roleNames {
		out[i] = Role(i)
	}
	return out
}

// Tier is the subscription tier ordering, lowest first.
type Tier int

const (
	TierFree Tier = iota
	TierBasic
	TierPro
	TierEnterprise
)

var tierNames = [...]string{"free", "basic", "pro", "enterprise"}

func (t Tier) String() string {
	if t < TierFree || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

// IsValid reports whether t is one of the defined tiers.
func (t Tier) IsValid() bool {
	return t >= TierFree && int(t) < len(tierNames)
}

// ParseTier converts a stored label into a Tier, rejecting unknown labels.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown tier %q", s)
}

// Tiers returns all tiers in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tierNames))
	for i := range tierNames {
		out[i] = Tier(i)
	}
	return out
}

// Level classifies protected content, lowest first.
type Level int

const (
	LevelPublic Level = iota
	LevelBasic
	LevelIntermediate
	LevelAdvanced
	LevelConfidential
	LevelExecutive
)

var levelNames = [...]string{"public", "basic", "intermediate", "advanced", "confidential", "executive"}

func (l Level) String() string {
	if l < LevelPublic || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel converts a stored label into a Level, rejecting unknown labels.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown access level %q", s)
}

// Levels returns all access levels in ascending order.
func Levels() []Level {
	out := make([]Level, len(levelNames))
	for i := range levelNames {
		out[i] = Level(i)
	}
	return out
}

// Requirement is the minimum role and tier a level demands. Both must be met.
type Requirement struct {
	MinRole Role
	MinTier Tier
}

// requirements maps each level to its floor. Raising a principal's role or
// tier can only turn failed comparisons into passing ones, which is the
// monotonicity invariant the rest of the system relies on.
var requirements = map[Level]Requirement{
	LevelPublic:       {MinRole: RoleUser, MinTier: TierFree},
	LevelBasic:        {MinRole: RoleUser, MinTier: TierBasic},
	LevelIntermediate: {MinRole: RoleJunior, MinTier: TierBasic},
	LevelAdvanced:     {MinRole: RoleSenior, MinTier: TierPro},
	LevelConfidential: {MinRole: RoleManager, MinTier: TierPro},
	LevelExecutive:    {MinRole: RoleAdmin, MinTier: TierEnterprise},
}

// RequirementFor returns the floor for a level.
func RequirementFor(l Level) Requirement {
	return requirements[l]
}
