package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespacesThresholds(t *testing.T) {
	cases := []struct {
		name string
		p    Profile
		want []string
	}{
		{
			name: "free user sees public only",
			p:    Profile{Role: RoleUser, Tier: TierFree},
			want: []string{"public"},
		},
		{
			name: "basic tier unlocks basic",
			p:    Profile{Role: RoleUser, Tier: TierBasic},
			want: []string{"public", "basic"},
		},
		{
			name: "junior on basic unlocks intermediate",
			p:    Profile{Role: RoleJunior, Tier: TierBasic},
			want: []string{"public", "basic", "intermediate"},
		},
		{
			name: "senior on pro unlocks advanced",
			p:    Profile{Role: RoleSenior, Tier: TierPro},
			want: []string{"public", "basic", "intermediate", "advanced"},
		},
		{
			name: "manager on pro unlocks confidential",
			p:    Profile{Role: RoleManager, Tier: TierPro},
			want: []string{"public", "basic", "intermediate", "advanced", "confidential"},
		},
		{
			name: "admin on enterprise unlocks executive",
			p:    Profile{Role: RoleAdmin, Tier: TierEnterprise},
			want: []string{"public", "basic", "intermediate", "advanced", "confidential", "executive"},
		},
		{
			name: "department appends a scoped namespace",
			p:    Profile{Role: RoleUser, Tier: TierFree, Department: "Sales"},
			want: []string{"public", "dept_sales"},
		},
		{
			name: "high role held down by low tier",
			p:    Profile{Role: RoleCEO, Tier: TierFree},
			want: []string{"public"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Namespaces(tc.p))
		})
	}
}

// Raising role or tier never removes a namespace from the previously computed
// set, and the output ordering is stable for identical inputs.
func TestNamespacesMonotonicAndStable(t *testing.T) {
	for _, role := range Roles() {
		for _, tier := range Tiers() {
			p := Profile{Role: role, Tier: tier, Department: "ops"}
			base := Namespaces(p)

			assert.Equal(t, base, Namespaces(p), "identical inputs must give identical output")

			for _, r2 := range Roles() {
				for _, t2 := range Tiers() {
					if r2 < role || t2 < tier {
						continue
					}
					wider := Namespaces(Profile{Role: r2, Tier: t2, Department: "ops"})
					for _, ns := range base {
						assert.Contains(t, wider, ns,
							"upgrade %s/%s -> %s/%s dropped namespace %s", role, tier, r2, t2, ns)
					}
				}
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Run("restricted principal lists what it cannot reach", func(t *testing.T) {
		s := Summarize(Profile{Role: RoleUser, Tier: TierFree})
		assert.Equal(t, LevelPublic, s.MaxLevel)
		assert.False(t, s.FullAccess)
		assert.Contains(t, s.Restrictions, "cannot access confidential content")
	})

	t.Run("full access has no restrictions", func(t *testing.T) {
		s := Summarize(Profile{Role: RoleCEO, Tier: TierEnterprise})
		assert.True(t, s.FullAccess)
		assert.Empty(t, s.Restrictions)
	})
}
