package dto

import (
	"time"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// ResolveConflictRequest payload for a manual resolution.
type ResolveConflictRequest struct {
	RoleName string `json:"role_name"`
	Reason   string `json:"reason"`
	Notify   *bool  `json:"notify,omitempty"`
}

// ValidateAssignmentRequest payload for the pre-flight role check.
type ValidateAssignmentRequest struct {
	RoleName string `json:"role_name"`
}

// ScanResponse is returned by POST /conflicts/scan.
type ScanResponse struct {
	MembersScanned int                               `json:"members_scanned"`
	Conflicts      []domain.RoleConflict             `json:"conflicts"`
	Results        []domain.ConflictResolutionResult `json:"results,omitempty"`
	Resolved       int                               `json:"resolved"`
	Errors         int                               `json:"errors"`
}

// SyncResponse is returned by the sync endpoints.
type SyncResponse struct {
	RecordsTouched *int       `json:"records_touched,omitempty"`
	LastSync       *time.Time `json:"last_sync"`
}

// AuthResponse carries a minted operator token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
