package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/sims/pkg/hierarchy"
	"github.com/platinummonkey/sims/pkg/query"
	"github.com/platinummonkey/sims/pkg/records"
)

func TestBuildHierarchyFilter_Shapes(t *testing.T) {
	field := records.FieldHierarchyString

	assert.True(t, BuildHierarchyFilter(user(hierarchy.LevelEnterprise, "ITW>")).IsEmpty())
	assert.True(t, BuildHierarchyFilter(nil).IsNone())
	assert.True(t, BuildHierarchyFilter(user(hierarchy.LevelSegment, "")).IsNone())
	assert.True(t, BuildHierarchyFilter(user(hierarchy.LevelPlant, ">")).IsNone())

	assert.Equal(t,
		query.Or(
			query.In(field, "ITW>Automotive OEM", "ITW>Automotive OEM>"),
			query.BeginsWith(field, "ITW>Automotive OEM>"),
		),
		BuildHierarchyFilter(user(hierarchy.LevelSegment, "ITW>Automotive OEM>")))

	assert.Equal(t,
		query.In(field, plantX, plantX+">"),
		BuildHierarchyFilter(user(hierarchy.LevelPlant, plantX)))

	unknown := user(hierarchy.LevelPlant, plantX)
	unknown.Scope = "REGION"
	assert.Equal(t, query.Eq(field, plantX), BuildHierarchyFilter(unknown))
}

// The filter handed to the store must select exactly the records the
// evaluator admits.
func TestBuildHierarchyFilter_MatchesEvaluator(t *testing.T) {
	dataset := make([]*records.Submission, 0, len(targets))
	for _, target := range targets {
		dataset = append(dataset, record(target, records.StatusOpen))
	}

	users := []*UserAccess{nil}
	for _, path := range targets {
		for level := hierarchy.LevelEnterprise; level <= hierarchy.LevelPlant; level++ {
			users = append(users, user(level, path))
		}
	}

	for _, u := range users {
		f := BuildHierarchyFilter(u)
		for _, r := range dataset {
			name := "nil user"
			if u != nil {
				name = string(u.Scope) + " " + u.HierarchyString
			}
			assert.Equal(t, CheckHierarchyAccess(r, u), f.Matches(r),
				"user %q record %q", name, r.HierarchyString)
		}
	}
}

func TestScopedFilter(t *testing.T) {
	u := user(hierarchy.LevelPlant, plantX)
	business := query.In(records.FieldStatus, records.StatusOpen, records.StatusDraft)
	f := ScopedFilter(u, business)

	assert.True(t, f.Matches(record(plantX, records.StatusOpen)))
	assert.False(t, f.Matches(record(plantX, records.StatusClose)))
	assert.False(t, f.Matches(record(plantY, records.StatusOpen)))

	assert.Equal(t, business, ScopedFilter(user(hierarchy.LevelEnterprise, ""), business))
	assert.True(t, ScopedFilter(nil, business).IsNone())
}
