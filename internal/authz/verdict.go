package authz

// Action is an operation a principal may attempt against a domain.
type Action string

const (
	// ActionDashboardPreview is the interactive dashboard view of a domain's
	// breach data. Allowed even on unverified domains, with restrictions.
	ActionDashboardPreview Action = "DASHBOARD_PREVIEW"

	// ActionDataAccess is programmatic retrieval of breach records, only ever
	// granted on verified domains.
	ActionDataAccess Action = "DATA_ACCESS"

	// ActionAdminOverview is the platform-admin registry view.
	ActionAdminOverview Action = "ADMIN_OVERVIEW"
)

// DenyReason explains a denial. Callers map these to HTTP responses.
type DenyReason string

const (
	ReasonNotOwner               DenyReason = "NOT_OWNER"
	ReasonInsufficientVisibility DenyReason = "INSUFFICIENT_VISIBILITY"
	ReasonDomainNotVerified      DenyReason = "DOMAIN_NOT_VERIFIED"
)

// Restriction narrows an allowed dashboard preview on an unverified domain.
type Restriction struct {
	MaxRecords     int  `json:"max_records"`
	SearchDisabled bool `json:"search_disabled"`
}

// Verdict is the outcome of an authorization check. Restriction is non-nil
// only on allowed previews of unverified domains.
type Verdict struct {
	Allowed     bool         `json:"allowed"`
	Reason      DenyReason   `json:"reason,omitempty"`
	Restriction *Restriction `json:"restriction,omitempty"`
}

// Allow is an unrestricted grant.
func Allow() Verdict {
	return Verdict{Allowed: true}
}

// AllowRestricted grants a preview capped at maxRecords with search disabled.
func AllowRestricted(maxRecords int) Verdict {
	return Verdict{Allowed: true, Restriction: &Restriction{MaxRecords: maxRecords, SearchDisabled: true}}
}

// Deny refuses with a reason.
func Deny(reason DenyReason) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}
