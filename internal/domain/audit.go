package domain

import "time"

// AuditAction names what an audit entry records.
type AuditAction string

const (
	AuditStaffHired                AuditAction = "staff_hired"
	AuditStaffFired                AuditAction = "staff_fired"
	AuditStaffPromoted             AuditAction = "staff_promoted"
	AuditStaffDemoted              AuditAction = "staff_demoted"
	AuditStaffSyncTerminated       AuditAction = "staff_sync_terminated"
	AuditRoleConflictResolved      AuditAction = "role_conflict_resolved"
	AuditRoleConflictResolveFailed AuditAction = "role_conflict_resolution_failed"
	AuditCaseCascade               AuditAction = "case_cascade"
	AuditCaseLeadCleared           AuditAction = "case_lead_cleared"
	AuditCaseLawyerUnassigned      AuditAction = "case_lawyer_unassigned"
)

// Synthetic actor identities used when no human triggered the change.
const (
	SystemActorID = "system"
	SyncActorID   = "System-Sync"
)

// AuditDetails carries the before/after snapshot of an audited change.
type AuditDetails struct {
	Before   map[string]any `json:"before,omitempty"`
	After    map[string]any `json:"after,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditEntry is an immutable audit log record.
type AuditEntry struct {
	ID        string
	GuildID   string
	Action    AuditAction
	ActorID   string
	TargetID  *string
	Details   AuditDetails
	Timestamp time.Time
}
