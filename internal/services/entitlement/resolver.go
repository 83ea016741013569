// Package entitlement derives the module set a staff session may see and use
// from the staff member's role and the tenant's subscription.
package entitlement

// Access is the two-tier result of resolving a session's modules.
// Dashboard drives UI rendering; Allowed is the authorization ceiling and may
// be broader than what the role displays.
type Access struct {
	Dashboard []string `json:"dashboard_modules"`
	Allowed   []string `json:"allowed_modules"`
}

// Resolve combines a role's module list with the tenant's currently active
// modules. A tenant with no active modules recorded imposes no restriction:
// the role list is used unchanged for both tiers. Otherwise Dashboard is the
// intersection of role and tenant modules in role order with duplicates
// removed, and Allowed is the tenant's full active list.
func Resolve(roleModules, tenantActiveModules []string) Access {
	if len(tenantActiveModules) == 0 {
		role := make([]string, len(roleModules))
		copy(role, roleModules)
		return Access{Dashboard: role, Allowed: role}
	}

	active := make(map[string]struct{}, len(tenantActiveModules))
	for _, key := range tenantActiveModules {
		active[key] = struct{}{}
	}

	dashboard := make([]string, 0, len(roleModules))
	seen := make(map[string]struct{}, len(roleModules))
	for _, key := range roleModules {
		if _, ok := active[key]; !ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dashboard = append(dashboard, key)
	}

	allowed := make([]string, len(tenantActiveModules))
	copy(allowed, tenantActiveModules)

	return Access{Dashboard: dashboard, Allowed: allowed}
}
