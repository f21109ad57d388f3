package domain

import "time"

// ConflictSeverity grades how far apart the conflicting roles are.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "LOW"
	SeverityMedium   ConflictSeverity = "MEDIUM"
	SeverityHigh     ConflictSeverity = "HIGH"
	SeverityCritical ConflictSeverity = "CRITICAL"
)

// ConflictingRole is one staff role involved in a conflict.
type ConflictingRole struct {
	RoleName string `json:"role_name"`
	RoleID   string `json:"role_id"`
	Level    int    `json:"level"`
}

// RoleConflict describes a member holding more than one staff role.
// ConflictingRoles is ordered by level, highest first.
type RoleConflict struct {
	UserID           string            `json:"user_id"`
	GuildID          string            `json:"guild_id"`
	ConflictingRoles []ConflictingRole `json:"conflicting_roles"`
	HighestRole      string            `json:"highest_role"`
	Severity         ConflictSeverity  `json:"severity"`
	DetectedAt       time.Time         `json:"detected_at"`
}

// RoleNames lists the names of the conflicting roles.
func (c *RoleConflict) RoleNames() []string {
	names := make([]string, 0, len(c.ConflictingRoles))
	for _, r := range c.ConflictingRoles {
		names = append(names, r.RoleName)
	}
	return names
}

// Has reports whether name is one of the conflicting roles.
func (c *RoleConflict) Has(name string) bool {
	for _, r := range c.ConflictingRoles {
		if r.RoleName == name {
			return true
		}
	}
	return false
}

// ConflictResolutionResult reports what a resolution attempt actually did.
// RemovedRoles holds only the removals that succeeded; FailedRoles the ones
// that did not. Nothing is rolled back on partial failure.
type ConflictResolutionResult struct {
	Resolved     bool     `json:"resolved"`
	RemovedRoles []string `json:"removed_roles"`
	FailedRoles  []string `json:"failed_roles,omitempty"`
	KeptRole     string   `json:"kept_role"`
	Error        string   `json:"error,omitempty"`
}

// ConflictHistoryEntry is a retained resolution outcome used for statistics.
type ConflictHistoryEntry struct {
	GuildID    string                   `json:"guild_id"`
	UserID     string                   `json:"user_id"`
	Severity   ConflictSeverity         `json:"severity"`
	Result     ConflictResolutionResult `json:"result"`
	Manual     bool                     `json:"manual"`
	ResolvedBy string                   `json:"resolved_by"`
	ResolvedAt time.Time                `json:"resolved_at"`
}

// ConflictStatistics aggregates the retained history of a guild.
type ConflictStatistics struct {
	TotalResolutions      int            `json:"total_resolutions"`
	SuccessfulResolutions int            `json:"successful_resolutions"`
	FailedResolutions     int            `json:"failed_resolutions"`
	MostCommonConflicts   map[string]int `json:"most_common_conflicts"`
}
