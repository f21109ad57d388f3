package dto

import (
	"time"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// AuditEntryResponse is the JSON shape of an audit entry.
type AuditEntryResponse struct {
	ID        string              `json:"id"`
	GuildID   string              `json:"guild_id"`
	Action    domain.AuditAction  `json:"action"`
	ActorID   string              `json:"actor_id"`
	TargetID  *string             `json:"target_id,omitempty"`
	Details   domain.AuditDetails `json:"details"`
	Timestamp time.Time           `json:"timestamp"`
}

// NewAuditEntryResponse maps a domain entry.
func NewAuditEntryResponse(e domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		GuildID:   e.GuildID,
		Action:    e.Action,
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Details:   e.Details,
		Timestamp: e.Timestamp,
	}
}
