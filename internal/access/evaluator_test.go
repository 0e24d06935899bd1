package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pohodnya/mtchat/internal/models"
)

func TestMatchesTenantMustBeExact(t *testing.T) {
	claim := models.ScopeClaim{TenantUID: "t1", ScopeLevel1: []string{"logistics"}, ScopeLevel2: []string{"manager"}}
	rule := models.AccessScope{TenantUID: "t2", ScopeLevel1: []string{"logistics"}, ScopeLevel2: []string{"manager"}}
	assert.False(t, Matches(claim, rule))
}

func TestMatchesEmptyRuleSideIsUniversal(t *testing.T) {
	claim := models.ScopeClaim{TenantUID: "t1", ScopeLevel1: []string{"sales"}, ScopeLevel2: []string{"member"}}
	rule := models.AccessScope{TenantUID: "t1", ScopeLevel1: nil, ScopeLevel2: nil}
	assert.True(t, Matches(claim, rule))
}

func TestMatchesEmptyRuleSideStillRequiresTenant(t *testing.T) {
	claim := models.ScopeClaim{TenantUID: "t2", ScopeLevel1: nil, ScopeLevel2: nil}
	rule := models.AccessScope{TenantUID: "t1", ScopeLevel1: nil, ScopeLevel2: nil}
	assert.False(t, Matches(claim, rule))
}

func TestMatchesEmptyClaimSideMatchesNothingAgainstNonEmptyRule(t *testing.T) {
	claim := models.ScopeClaim{TenantUID: "t1", ScopeLevel1: nil, ScopeLevel2: []string{"manager"}}
	rule := models.AccessScope{TenantUID: "t1", ScopeLevel1: []string{"logistics"}, ScopeLevel2: []string{"manager"}}
	assert.False(t, Matches(claim, rule), "empty claim-side set must not match a non-empty rule side")
}

func TestMatchesRequiresIntersectionOnBothAxes(t *testing.T) {
	claim := models.ScopeClaim{TenantUID: "t1", ScopeLevel1: []string{"logistics", "sales"}, ScopeLevel2: []string{"member"}}
	rule := models.AccessScope{TenantUID: "t1", ScopeLevel1: []string{"logistics"}, ScopeLevel2: []string{"manager", "admin"}}
	assert.False(t, Matches(claim, rule), "L2 does not intersect")

	rule2 := models.AccessScope{TenantUID: "t1", ScopeLevel1: []string{"logistics"}, ScopeLevel2: []string{"manager", "member"}}
	assert.True(t, Matches(claim, rule2))
}

func TestMatchesBothAxesEmptyOnRuleStillRequiresTenantMatch(t *testing.T) {
	claim := models.ScopeClaim{TenantUID: "t1"}
	ruleSameTenant := models.AccessScope{TenantUID: "t1"}
	ruleOtherTenant := models.AccessScope{TenantUID: "t2"}
	assert.True(t, Matches(claim, ruleSameTenant))
	assert.False(t, Matches(claim, ruleOtherTenant))
}
