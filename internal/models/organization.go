package models

type Organization struct {
	ID           int64  `json:"id"`
	Acronym      string `json:"acronym"`
	Name         string `json:"name"`
	Logo         string `json:"logo,omitempty"`
	Description  string `json:"description,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
}

// Actor is the verified identity supplied by the authentication collaborator.
// The core trusts it without re-verifying credentials.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"` // "submitter" or "reviewer"
}

const (
	RoleSubmitter = "submitter"
	RoleReviewer  = "reviewer"
)

// Admin is a stored principal; reviewers are the notification fan-out set.
type Admin struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organizationId"`
	Email          string `json:"email"`
	Role           string `json:"role"`
}
