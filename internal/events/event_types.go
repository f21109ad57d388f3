package events

import (
	"time"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventStaffHired           EventType = "staff_hired"
	EventStaffFired           EventType = "staff_fired"
	EventStaffPromoted        EventType = "staff_promoted"
	EventStaffDemoted         EventType = "staff_demoted"
	EventRoleConflictResolved EventType = "role_conflict_resolved"
	EventCaseLawyerUnassigned EventType = "case_lawyer_unassigned"
	EventCaseLeadCleared      EventType = "case_lead_cleared"
	EventGuildSynced          EventType = "guild_synced"
)

// AllEventTypes lists every event the engine publishes.
var AllEventTypes = []EventType{
	EventStaffHired,
	EventStaffFired,
	EventStaffPromoted,
	EventStaffDemoted,
	EventRoleConflictResolved,
	EventCaseLawyerUnassigned,
	EventCaseLeadCleared,
	EventGuildSynced,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	UserID    string      `json:"user_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RoleTransitionPayload accompanies hire/fire/promotion/demotion events.
type RoleTransitionPayload struct {
	OldRole string            `json:"old_role,omitempty"`
	NewRole string            `json:"new_role,omitempty"`
	Change  domain.ChangeType `json:"change"`
}

// ConflictResolvedPayload accompanies role_conflict_resolved.
type ConflictResolvedPayload struct {
	Severity domain.ConflictSeverity         `json:"severity"`
	Result   domain.ConflictResolutionResult `json:"result"`
	Manual   bool                            `json:"manual"`
}

// CaseRepairPayload accompanies case cascade events.
type CaseRepairPayload struct {
	CaseID           string `json:"case_id"`
	CaseNumber       string `json:"case_number"`
	RemainingLawyers int    `json:"remaining_lawyers"`
}

// GuildSyncedPayload accompanies guild_synced.
type GuildSyncedPayload struct {
	RecordsTouched int `json:"records_touched"`
	MembersScanned int `json:"members_scanned"`
}
