package access

import "strings"

// Namespace labels for the shared knowledge store. The department namespace is
// derived per principal; everything else is a fixed partition.
const (
	NamespacePublic       = "public"
	NamespaceBasic        = "basic"
	NamespaceIntermediate = "intermediate"
	NamespaceAdvanced     = "advanced"
	NamespaceConfidential = "confidential"
	NamespaceExecutive    = "executive"
	deptNamespacePrefix   = "dept_"
)

// Namespaces returns the knowledge-store partitions the principal may read,
// in a fixed order. The function is referentially transparent: identical
// inputs always yield an identical, order-stable slice, because the result is
// used both to filter retrieved content and to build query-time restrictions,
// and those two sites must agree.
//
// Unlock rules (role AND tier floors must both hold where two are named):
//
//	public        everyone
//	basic         tier >= basic
//	intermediate  role >= junior  and tier >= basic
//	advanced      role >= senior  and tier >= pro
//	confidential  role >= manager and tier >= pro
//	executive     role >= admin   and tier >= enterprise
//	dept_<name>   principal has a department
func Namespaces(p Profile) []string {
	out := []string{NamespacePublic}

	if p.Tier >= TierBasic {
		out = append(out, NamespaceBasic)
	}
	if p.Role >= RoleJunior && p.Tier >= TierBasic {
		out = append(out, NamespaceIntermediate)
	}
	if p.Role >= RoleSenior && p.Tier >= TierPro {
		out = append(out, NamespaceAdvanced)
	}
	if p.Role >= RoleManager && p.Tier >= TierPro {
		out = append(out, NamespaceConfidential)
	}
	if p.Role >= RoleAdmin && p.Tier >= TierEnterprise {
		out = append(out, NamespaceExecutive)
	}
	if p.Department != "" {
		out = append(out, DepartmentNamespace(p.Department))
	}
	return out
}

// DepartmentNamespace derives the namespace label for a department.
func DepartmentNamespace(department string) string {
	return deptNamespacePrefix + strings.ToLower(department)
}

// Summary condenses a principal's reach for user-facing replies.
type Summary struct {
	MaxLevel     Level
	Namespaces   []string
	FullAccess   bool
	Restrictions []string
}

// Summarize reports what the principal can and cannot reach. Restrictions
// list the levels still out of reach, phrased for direct display.
func Summarize(p Profile) Summary {
	s := Summary{
		MaxLevel:   MaxLevel(p),
		Namespaces: Namespaces(p),
		FullAccess: FullAccess(p),
	}
	if s.FullAccess {
		return s
	}
	for _, lvl := range Levels() {
		req := RequirementFor(lvl)
		if p.Role < req.MinRole || p.Tier < req.MinTier {
			s.Restrictions = append(s.Restrictions, "cannot access "+lvl.String()+" content")
		}
	}
	return s
}
