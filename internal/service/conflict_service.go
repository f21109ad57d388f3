package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/platform"
	"github.com/spec-kit/firm-roster/internal/repository"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

const autoResolveReason = "Automatic role conflict resolution"

// InvalidRoleSelection is the error of a manual resolution naming a role the
// member is not in conflict over.
const InvalidRoleSelection = "Invalid role selection"

// ScanProgress is reported after every member a scan inspects.
type ScanProgress struct {
	Total          int `json:"total"`
	Processed      int `json:"processed"`
	ConflictsFound int `json:"conflicts_found"`
}

// BulkProgress is reported after every conflict a bulk resolve handles.
type BulkProgress struct {
	ConflictsResolved int `json:"conflicts_resolved"`
	Errors            int `json:"errors"`
}

// AssignmentValidation is the answer to "may this member receive this role?".
type AssignmentValidation struct {
	IsValid          bool     `json:"is_valid"`
	Conflicts        []string `json:"conflicts,omitempty"`
	PreventionReason string   `json:"prevention_reason,omitempty"`
}

// ChangeCheck classifies a role change with respect to the one-staff-role rule.
type ChangeCheck struct {
	HasConflict      bool
	ShouldPrevent    bool
	PreventionReason string
	Conflict         *domain.RoleConflict
}

// ManualResolution is an operator's choice of which conflicting role to keep.
type ManualResolution struct {
	RoleName string
	Reason   string
	Notify   bool
	ActorID  string
}

type resolveOptions struct {
	notify bool
	manual bool
	actor  string
	reason string
}

// ConflictService detects members holding several staff roles and removes
// the extras.
type ConflictService struct {
	hierarchy  *domain.RoleHierarchy
	platform   platform.Platform
	audit      repository.AuditRepository
	history    ConflictHistoryStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	pacer      batchPacer
	now        func() time.Time
}

// ConflictDependencies bundles collaborators for the conflict service.
type ConflictDependencies struct {
	Hierarchy  *domain.RoleHierarchy
	Platform   platform.Platform
	AuditRepo  repository.AuditRepository
	History    ConflictHistoryStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	PauseEvery int
	Pause      time.Duration
	Sleep      Pauser
}

// NewConflictService creates the service.
func NewConflictService(deps ConflictDependencies) *ConflictService {
	hierarchy := deps.Hierarchy
	if hierarchy == nil {
		hierarchy = domain.DefaultRoleHierarchy()
	}
	history := deps.History
	if history == nil {
		history = NewMemoryConflictHistory(DefaultHistoryLimit)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		hierarchy:  hierarchy,
		platform:   deps.Platform,
		audit:      deps.AuditRepo,
		history:    history,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("conflicts"),
		pacer:      newBatchPacer(deps.PauseEvery, deps.Pause, deps.Sleep),
		now:        time.Now,
	}
}

// Hierarchy exposes the staff vocabulary in use.
func (s *ConflictService) Hierarchy() *domain.RoleHierarchy {
	return s.hierarchy
}

// Detect returns the member's conflict, or nil when they hold fewer than two
// staff roles. It records no metric; ScanGuild and CheckChangeForConflicts
// count what they observe.
func (s *ConflictService) Detect(member *domain.Member) *domain.RoleConflict {
	if member == nil {
		return nil
	}
	return s.buildConflict(member, s.hierarchy.StaffRoles(member.RoleNames()))
}

func (s *ConflictService) buildConflict(member *domain.Member, staff []string) *domain.RoleConflict {
	if len(staff) < 2 {
		return nil
	}
	roles := make([]domain.ConflictingRole, 0, len(staff))
	for _, name := range staff {
		id, _ := member.RoleID(name)
		roles = append(roles, domain.ConflictingRole{RoleName: name, RoleID: id, Level: s.hierarchy.LevelOf(name)})
	}
	return &domain.RoleConflict{
		UserID:           member.UserID,
		GuildID:          member.GuildID,
		ConflictingRoles: roles,
		HighestRole:      roles[0].RoleName,
		Severity:         severityFor(roles),
		DetectedAt:       s.now().UTC(),
	}
}

// severityFor grades a conflict. roles must be ordered highest level first.
// A two-role gap of exactly 3 is HIGH.
func severityFor(roles []domain.ConflictingRole) domain.ConflictSeverity {
	if len(roles) >= 3 {
		return domain.SeverityCritical
	}
	gap := roles[0].Level - roles[len(roles)-1].Level
	switch {
	case gap >= 3:
		return domain.SeverityHigh
	case gap == 2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// Resolve keeps the highest conflicting role and removes the rest.
func (s *ConflictService) Resolve(ctx context.Context, member *domain.Member, conflict *domain.RoleConflict, notify bool) domain.ConflictResolutionResult {
	return s.resolveKeeping(ctx, member, conflict, conflict.HighestRole, resolveOptions{
		notify: notify,
		actor:  domain.SystemActorID,
		reason: autoResolveReason,
	})
}

// ResolveManually keeps the operator-selected role. A selection outside the
// conflicting roles changes nothing.
func (s *ConflictService) ResolveManually(ctx context.Context, member *domain.Member, conflict *domain.RoleConflict, sel ManualResolution) domain.ConflictResolutionResult {
	if !conflict.Has(sel.RoleName) {
		s.logger.Warn("manual resolution with invalid role selection",
			zap.String("guild_id", conflict.GuildID),
			zap.String("user_id", conflict.UserID),
			zap.String("role", sel.RoleName),
			zap.String("actor_id", sel.ActorID))
		return domain.ConflictResolutionResult{Resolved: false, RemovedRoles: []string{}, Error: InvalidRoleSelection}
	}
	reason := "Manual role conflict resolution"
	if strings.TrimSpace(sel.Reason) != "" {
		reason += ": " + strings.TrimSpace(sel.Reason)
	}
	actor := sel.ActorID
	if actor == "" {
		actor = domain.SystemActorID
	}
	return s.resolveKeeping(ctx, member, conflict, sel.RoleName, resolveOptions{
		notify: sel.Notify,
		manual: true,
		actor:  actor,
		reason: reason,
	})
}

// ResolveMemberManually fetches the live member and applies an operator's
// selection to their current conflict.
func (s *ConflictService) ResolveMemberManually(ctx context.Context, guildID, userID string, sel ManualResolution) (domain.ConflictResolutionResult, error) {
	member, err := s.platform.GetMember(ctx, guildID, userID)
	if err != nil {
		return domain.ConflictResolutionResult{}, memberLookupError(err, guildID, userID)
	}
	conflict := s.Detect(member)
	if conflict == nil {
		return domain.ConflictResolutionResult{}, apperrors.NewConflict("member has no staff role conflict",
			map[string]any{"guild_id": guildID, "user_id": userID})
	}
	return s.ResolveManually(ctx, member, conflict, sel), nil
}

// DetectMember fetches the live member and detects their conflict.
func (s *ConflictService) DetectMember(ctx context.Context, guildID, userID string) (*domain.RoleConflict, error) {
	member, err := s.platform.GetMember(ctx, guildID, userID)
	if err != nil {
		return nil, memberLookupError(err, guildID, userID)
	}
	return s.Detect(member), nil
}

// ValidateMemberAssignment fetches the live member and validates candidate.
func (s *ConflictService) ValidateMemberAssignment(ctx context.Context, guildID, userID, candidate string) (AssignmentValidation, error) {
	member, err := s.platform.GetMember(ctx, guildID, userID)
	if err != nil {
		return AssignmentValidation{}, memberLookupError(err, guildID, userID)
	}
	return s.ValidateAssignment(member, candidate), nil
}

func (s *ConflictService) resolveKeeping(ctx context.Context, member *domain.Member, conflict *domain.RoleConflict, keep string, opts resolveOptions) domain.ConflictResolutionResult {
	result := domain.ConflictResolutionResult{KeptRole: keep, RemovedRoles: []string{}}
	logger := s.logger.With(zap.String("guild_id", conflict.GuildID), zap.String("user_id", conflict.UserID))

	for _, role := range conflict.ConflictingRoles {
		if role.RoleName == keep {
			continue
		}
		roleID := role.RoleID
		if roleID == "" {
			roleID, _ = member.RoleID(role.RoleName)
		}
		if err := s.platform.RemoveRole(ctx, conflict.GuildID, conflict.UserID, roleID, opts.reason); err != nil {
			logger.Error("failed to remove conflicting role", zap.String("role", role.RoleName), zap.Error(err))
			result.FailedRoles = append(result.FailedRoles, role.RoleName)
			continue
		}
		result.RemovedRoles = append(result.RemovedRoles, role.RoleName)
	}

	if n := len(result.FailedRoles); n > 0 {
		result.Error = fmt.Sprintf("Failed to remove some roles (%d of %d failed)", n, n+len(result.RemovedRoles))
	} else {
		result.Resolved = true
	}

	if result.Resolved && opts.notify {
		msg := conflictResolvedDM(conflict.GuildID, result, opts.manual, opts.reason)
		if err := s.platform.SendDirectMessage(ctx, conflict.UserID, msg); err != nil {
			logger.Warn("could not notify member about conflict resolution", zap.Error(err))
		}
	}

	s.recordResolution(ctx, conflict, result, opts)
	logger.Info("role conflict resolution finished",
		zap.Bool("resolved", result.Resolved),
		zap.String("kept_role", result.KeptRole),
		zap.Strings("removed_roles", result.RemovedRoles),
		zap.Strings("failed_roles", result.FailedRoles),
		zap.Bool("manual", opts.manual))
	return result
}

func (s *ConflictService) recordResolution(ctx context.Context, conflict *domain.RoleConflict, result domain.ConflictResolutionResult, opts resolveOptions) {
	now := s.now().UTC()
	s.metrics.ConflictResolution(result.Resolved, opts.manual)

	action := domain.AuditRoleConflictResolved
	if !result.Resolved {
		action = domain.AuditRoleConflictResolveFailed
	}
	metadata := map[string]any{
		"severity":         conflict.Severity,
		"removedRoles":     result.RemovedRoles,
		"failedRoles":      result.FailedRoles,
		"manualResolution": opts.manual,
	}
	if opts.manual {
		metadata["resolvedBy"] = opts.actor
	}
	if result.Error != "" {
		metadata["error"] = result.Error
	}
	target := conflict.UserID
	if s.audit != nil {
		entry := &domain.AuditEntry{
			GuildID:  conflict.GuildID,
			Action:   action,
			ActorID:  opts.actor,
			TargetID: &target,
			Details: domain.AuditDetails{
				Before:   map[string]any{"roles": conflict.RoleNames()},
				After:    map[string]any{"role": result.KeptRole},
				Reason:   opts.reason,
				Metadata: metadata,
			},
			Timestamp: now,
		}
		if err := s.audit.Add(ctx, entry); err != nil {
			s.logger.Error("failed to write conflict audit entry", zap.String("guild_id", conflict.GuildID), zap.Error(err))
		}
	}

	err := s.history.Append(ctx, conflict.GuildID, domain.ConflictHistoryEntry{
		GuildID:    conflict.GuildID,
		UserID:     conflict.UserID,
		Severity:   conflict.Severity,
		Result:     result,
		Manual:     opts.manual,
		ResolvedBy: opts.actor,
		ResolvedAt: now,
	})
	if err != nil {
		s.logger.Warn("failed to append conflict history", zap.String("guild_id", conflict.GuildID), zap.Error(err))
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventRoleConflictResolved,
		GuildID: conflict.GuildID,
		UserID:  conflict.UserID,
		ActorID: opts.actor,
		Payload: events.ConflictResolvedPayload{Severity: conflict.Severity, Result: result, Manual: opts.manual},
	})
}

// ScanGuild runs detection over every member of a guild.
func (s *ConflictService) ScanGuild(ctx context.Context, guildID string, onProgress func(ScanProgress)) ([]domain.RoleConflict, error) {
	members, err := s.platform.ListMembers(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list members of guild %s: %w", guildID, err)
	}

	progress := ScanProgress{Total: len(members)}
	var conflicts []domain.RoleConflict
	for i := range members {
		if conflict := s.Detect(&members[i]); conflict != nil {
			s.metrics.ConflictDetected(string(conflict.Severity))
			conflicts = append(conflicts, *conflict)
			progress.ConflictsFound++
		}
		progress.Processed++
		s.metrics.BatchUnit("scan")
		if onProgress != nil {
			onProgress(progress)
		}
		s.pacer.tick(ctx, progress.Processed)
	}

	s.logger.Info("guild conflict scan finished",
		zap.String("guild_id", guildID),
		zap.Int("members", progress.Total),
		zap.Int("conflicts", progress.ConflictsFound))
	return conflicts, nil
}

// BulkResolve resolves each conflict against the member's live roles. A
// member that cannot be fetched is counted as an error and skipped.
func (s *ConflictService) BulkResolve(ctx context.Context, guildID string, conflicts []domain.RoleConflict, onProgress func(BulkProgress)) []domain.ConflictResolutionResult {
	var (
		progress BulkProgress
		results  []domain.ConflictResolutionResult
	)
	for i := range conflicts {
		c := conflicts[i]
		if c.GuildID == "" {
			c.GuildID = guildID
		}
		if result, ok := s.resolveOne(ctx, &c); ok {
			results = append(results, result)
			if result.Resolved {
				progress.ConflictsResolved++
			} else {
				progress.Errors++
			}
		} else {
			progress.Errors++
		}
		s.metrics.BatchUnit("bulk_resolve")
		if onProgress != nil {
			onProgress(progress)
		}
		s.pacer.tick(ctx, i+1)
	}

	s.logger.Info("bulk conflict resolution finished",
		zap.String("guild_id", guildID),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("resolved", progress.ConflictsResolved),
		zap.Int("errors", progress.Errors))
	return results
}

func (s *ConflictService) resolveOne(ctx context.Context, c *domain.RoleConflict) (domain.ConflictResolutionResult, bool) {
	member, err := s.platform.GetMember(ctx, c.GuildID, c.UserID)
	if err != nil {
		s.metrics.UnitError("bulk_resolve")
		s.logger.Error("could not fetch member for conflict resolution",
			zap.String("guild_id", c.GuildID), zap.String("user_id", c.UserID), zap.Error(err))
		return domain.ConflictResolutionResult{}, false
	}
	live := s.Detect(member)
	if live == nil {
		// healed since the scan
		return domain.ConflictResolutionResult{
			Resolved:     true,
			RemovedRoles: []string{},
			KeptRole:     s.hierarchy.Highest(member.RoleNames()),
		}, true
	}
	return s.Resolve(ctx, member, live, true), true
}

// ValidateAssignment checks, before granting, that candidate would not give
// the member a second staff role.
func (s *ConflictService) ValidateAssignment(member *domain.Member, candidate string) AssignmentValidation {
	if !s.hierarchy.IsStaffRole(candidate) {
		return AssignmentValidation{IsValid: true}
	}
	var others []string
	for _, held := range s.hierarchy.StaffRoles(member.RoleNames()) {
		if held != candidate {
			others = append(others, held)
		}
	}
	if len(others) == 0 {
		return AssignmentValidation{IsValid: true}
	}
	return AssignmentValidation{
		IsValid:   false,
		Conflicts: others,
		PreventionReason: fmt.Sprintf("%s already holds the staff role %s; remove it before assigning %s",
			member.Label(), strings.Join(others, ", "), candidate),
	}
}

// CheckChangeForConflicts decides whether a role change introduced a
// conflict (prevent) or carries an existing one (resolve).
func (s *ConflictService) CheckChangeForConflicts(member *domain.Member, oldRoleNames, newRoleNames []string) ChangeCheck {
	oldStaff := s.hierarchy.StaffRoles(oldRoleNames)
	newStaff := s.hierarchy.StaffRoles(newRoleNames)
	if len(newStaff) < 2 {
		return ChangeCheck{}
	}
	conflict := s.buildConflict(member, newStaff)
	if conflict != nil {
		s.metrics.ConflictDetected(string(conflict.Severity))
	}
	if len(oldStaff) <= 1 {
		return ChangeCheck{
			HasConflict:      true,
			ShouldPrevent:    true,
			PreventionReason: fmt.Sprintf("member would hold multiple staff roles: %s", strings.Join(newStaff, ", ")),
			Conflict:         conflict,
		}
	}
	return ChangeCheck{HasConflict: true, Conflict: conflict}
}

// GetConflictStatistics aggregates the guild's retained resolution history.
func (s *ConflictService) GetConflictStatistics(ctx context.Context, guildID string) (domain.ConflictStatistics, error) {
	entries, err := s.history.List(ctx, guildID)
	if err != nil {
		return domain.ConflictStatistics{}, fmt.Errorf("load conflict history: %w", err)
	}
	stats := domain.ConflictStatistics{MostCommonConflicts: map[string]int{}}
	for _, e := range entries {
		stats.TotalResolutions++
		if e.Result.Resolved {
			stats.SuccessfulResolutions++
		} else {
			stats.FailedResolutions++
		}
		for _, role := range e.Result.RemovedRoles {
			stats.MostCommonConflicts[role]++
		}
	}
	return stats, nil
}

// ClearConflictHistory drops the guild's retained history.
func (s *ConflictService) ClearConflictHistory(ctx context.Context, guildID string) error {
	return s.history.Clear(ctx, guildID)
}
