package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_EmptyTenantSetImposesNoRestriction(t *testing.T) {
	access := Resolve([]string{"pos", "kitchen"}, nil)

	assert.Equal(t, []string{"pos", "kitchen"}, access.Dashboard)
	assert.Equal(t, []string{"pos", "kitchen"}, access.Allowed)
}

func TestResolve_EmptyTenantSetKeepsRoleListVerbatim(t *testing.T) {
	access := Resolve([]string{"pos", "pos", "kitchen"}, nil)

	// No tenant filter means the role list passes through as-is, duplicates
	// and all. Deduplication only happens on the intersection path.
	assert.Equal(t, []string{"pos", "pos", "kitchen"}, access.Dashboard)
	assert.Equal(t, []string{"pos", "pos", "kitchen"}, access.Allowed)
}

func TestResolve_RestrictiveTenant(t *testing.T) {
	access := Resolve(
		[]string{"pos", "kitchen", "reports"},
		[]string{"pos", "reports"})

	// Role order preserved, "kitchen" dropped.
	assert.Equal(t, []string{"pos", "reports"}, access.Dashboard)
	// The ceiling is the tenant's full active list regardless of role.
	assert.Equal(t, []string{"pos", "reports"}, access.Allowed)
}

func TestResolve_AllowedCeilingBroaderThanRole(t *testing.T) {
	access := Resolve(
		[]string{"pos"},
		[]string{"pos", "reports", "inventory"})

	assert.Equal(t, []string{"pos"}, access.Dashboard)
	assert.Equal(t, []string{"pos", "reports", "inventory"}, access.Allowed)
}

func TestResolve_DashboardDeduplicates(t *testing.T) {
	access := Resolve(
		[]string{"pos", "pos", "reports"},
		[]string{"reports", "pos"})

	assert.Equal(t, []string{"pos", "reports"}, access.Dashboard)
}

func TestResolve_RoleWithNoOverlap(t *testing.T) {
	access := Resolve(
		[]string{"kitchen"},
		[]string{"pos"})

	assert.Empty(t, access.Dashboard)
	assert.Equal(t, []string{"pos"}, access.Allowed)
}

func TestResolve_PureFunction(t *testing.T) {
	role := []string{"pos", "kitchen"}
	active := []string{"kitchen"}

	Resolve(role, active)

	// Inputs must not be mutated.
	assert.Equal(t, []string{"pos", "kitchen"}, role)
	assert.Equal(t, []string{"kitchen"}, active)
}
