package domain

import "time"

// CaseStatus enumerates lifecycle states for cases.
type CaseStatus string

const (
	CaseStatusOpen    CaseStatus = "open"
	CaseStatusPending CaseStatus = "pending"
	CaseStatusClosed  CaseStatus = "closed"
)

// Case is a client matter tracked by the firm, with its own guild channel.
type Case struct {
	ID                string
	GuildID           string
	CaseNumber        string
	Title             string
	ClientID          string
	ChannelID         string
	LeadAttorneyID    *string
	AssignedLawyerIDs []string
	Status            CaseStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasLawyer reports whether userID is among the assigned lawyers.
func (c *Case) HasLawyer(userID string) bool {
	for _, id := range c.AssignedLawyerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsLead reports whether userID is the lead attorney.
func (c *Case) IsLead(userID string) bool {
	return c.LeadAttorneyID != nil && *c.LeadAttorneyID == userID
}

// Label identifies the case in notices.
func (c *Case) Label() string {
	if c.CaseNumber != "" {
		return c.CaseNumber
	}
	return c.ID
}
