package users

import "strings"

// RoleType is the role claim carried by a SADSA token
type RoleType string

const (
	RoleAdmin                  RoleType = "ADMIN"
	RoleAgentAntenne           RoleType = "AGENT_ANTENNE"
	RoleAgentGUC               RoleType = "AGENT_GUC"
	RoleAgentCommission        RoleType = "AGENT_COMMISSION"
	RoleAgentCommissionTerrain RoleType = "AGENT_COMMISSION_TERRAIN"
	RoleCommissionAHAAF        RoleType = "COMMISSION_AHA_AF"
	RoleServiceTechnique       RoleType = "SERVICE_TECHNIQUE"

	// RoleNone is what an absent or blank role claim parses to
	RoleNone RoleType = ""
)

// Landing paths for each role
const (
	HomeAgentAntenne    = "/agent_antenne/dossiers"
	HomeAgentGUC        = "/agent_guc/dossiers"
	HomeAgentCommission = "/agent_commission/dossiers"
	HomeAdmin           = "/admin/documents-requis"
	HomeDefault         = "/dashboard"
)

var knownRoles = map[RoleType]struct{}{
	RoleAdmin:                  {},
	RoleAgentAntenne:           {},
	RoleAgentGUC:               {},
	RoleAgentCommission:        {},
	RoleAgentCommissionTerrain: {},
	RoleCommissionAHAAF:        {},
	RoleServiceTechnique:       {},
}

// homePaths is the role -> landing table. Anything missing lands on HomeDefault.
var homePaths = map[RoleType]string{
	RoleAgentAntenne:           HomeAgentAntenne,
	RoleAgentGUC:               HomeAgentGUC,
	RoleAgentCommission:        HomeAgentCommission,
	RoleAgentCommissionTerrain: HomeAgentCommission,
	RoleAdmin:                  HomeAdmin,
}

// roleFamilies grants a role the routes of a broader role
var roleFamilies = map[RoleType]RoleType{
	RoleAgentCommissionTerrain: RoleAgentCommission,
}

// ParseRole normalises a raw role claim. Unrecognised values are kept as-is so that
// equality checks against a route's required role still behave; use Known to test them.
func ParseRole(raw string) RoleType {
	return RoleType(strings.ToUpper(strings.TrimSpace(raw)))
}

// Known reports whether the role is part of the SADSA role set
func (r RoleType) Known() bool {
	_, ok := knownRoles[r]
	return ok
}

// Satisfies reports whether a user holding r may open a route requiring required.
// RoleNone as required is satisfied by anyone.
func (r RoleType) Satisfies(required RoleType) bool {
	if required == RoleNone || r == required {
		return true
	}
	family, ok := roleFamilies[r]
	return ok && family == required
}

func (r RoleType) String() string {
	return string(r)
}

// HomePath returns the canonical landing page for a role, HomeDefault for unknown or empty roles
func HomePath(role RoleType) string {
	if path, ok := homePaths[role]; ok {
		return path
	}
	return HomeDefault
}

// Roles returns the known role set, in a stable order, for forms and pickers
func Roles() []RoleType {
	return []RoleType{
		RoleAgentAntenne,
		RoleAgentGUC,
		RoleAgentCommission,
		RoleAgentCommissionTerrain,
		RoleCommissionAHAAF,
		RoleServiceTechnique,
		RoleAdmin,
	}
}
