// Package schema defines the collection names and record shapes shared across
// the waterboard service, its SDK and its operator CLI.
package schema

// Collection names. Each collection is persisted as one JSON array.
const (
	Notices             = "notices"
	Messages            = "messages"
	ContactMessages     = "contact-messages"
	MaintenanceRequests = "maintenance-requests"
	Complaints          = "complaints"
	Users               = "users"
	Schedule            = "schedule"
	Tanks               = "tanks"
	Plants              = "plants"
)

// AllCollections lists every collection the service knows about, in the order
// operator tooling walks them.
var AllCollections = []string{
	Notices,
	Messages,
	ContactMessages,
	MaintenanceRequests,
	Complaints,
	Users,
	Schedule,
	Tanks,
	Plants,
}

// Reference prefixes for token-keyed collections.
const (
	PrefixContactMessage     = "MSG"
	PrefixCitizenMaintenance = "CIT"
	PrefixIndustrialRequest  = "IND"
	PrefixComplaint          = "CMP"
)

// Maintenance request sectors.
const (
	SectorCitizen    = "citizen"
	SectorIndustrial = "industrial"
)

// Initial and triage statuses.
const (
	StatusReceived = "received"
	StatusNew      = "New"
	StatusViewed   = "Viewed"
	StatusResolved = "Resolved"
)
