package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/platform"
)

// OutcomeStatus says how far an observed change was processed.
type OutcomeStatus string

const (
	OutcomeIgnored   OutcomeStatus = "ignored"
	OutcomePrevented OutcomeStatus = "prevented"
	OutcomeUnchanged OutcomeStatus = "unchanged"
	OutcomeLateral   OutcomeStatus = "lateral"
	OutcomeApplied   OutcomeStatus = "applied"
	OutcomeFailed    OutcomeStatus = "failed"
)

// ChangeOutcome is the result of handling one observed member update.
type ChangeOutcome struct {
	Status     OutcomeStatus                    `json:"status"`
	Change     domain.ChangeType                `json:"change,omitempty"`
	OldRole    string                           `json:"old_role,omitempty"`
	NewRole    string                           `json:"new_role,omitempty"`
	Resolution *domain.ConflictResolutionResult `json:"resolution,omitempty"`
	Cascade    *CascadeReport                   `json:"cascade,omitempty"`
	Reason     string                           `json:"reason,omitempty"`
	Error      string                           `json:"error,omitempty"`
}

// LifecycleService turns observed role changes into staff record updates
// and case repairs, healing conflicts first.
type LifecycleService struct {
	hierarchy  *domain.RoleHierarchy
	platform   platform.Platform
	conflicts  *ConflictService
	staff      *StaffService
	cascade    *CascadeService
	syncState  SyncStateStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	pacer      batchPacer
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the orchestrator.
type LifecycleDependencies struct {
	Hierarchy  *domain.RoleHierarchy
	Platform   platform.Platform
	Conflicts  *ConflictService
	Staff      *StaffService
	Cascade    *CascadeService
	SyncState  SyncStateStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	PauseEvery int
	Pause      time.Duration
	Sleep      Pauser
}

// NewLifecycleService creates the orchestrator.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	hierarchy := deps.Hierarchy
	if hierarchy == nil {
		hierarchy = domain.DefaultRoleHierarchy()
	}
	syncState := deps.SyncState
	if syncState == nil {
		syncState = NewMemorySyncState()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		hierarchy:  hierarchy,
		platform:   deps.Platform,
		conflicts:  deps.Conflicts,
		staff:      deps.Staff,
		cascade:    deps.Cascade,
		syncState:  syncState,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("lifecycle"),
		pacer:      newBatchPacer(deps.PauseEvery, deps.Pause, deps.Sleep),
		now:        time.Now,
	}
}

// OnMemberUpdate adapts HandleObservedChange to the gateway callback.
func (s *LifecycleService) OnMemberUpdate(ctx context.Context, before, after *domain.Member) {
	s.HandleObservedChange(ctx, before, after)
}

// HandleObservedChange processes one member update end to end. It never
// panics; every failure is reported in the outcome.
func (s *LifecycleService) HandleObservedChange(ctx context.Context, oldMember, newMember *domain.Member) (out ChangeOutcome) {
	if newMember == nil {
		return ChangeOutcome{Status: OutcomeIgnored, Reason: "no member snapshot"}
	}
	logger := s.logger.With(zap.String("guild_id", newMember.GuildID), zap.String("user_id", newMember.UserID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("role change handling aborted by panic", zap.Any("panic", r), zap.Stack("stack"))
			out.Status = OutcomeFailed
			out.Error = fmt.Sprint(r)
		}
	}()

	oldNames := oldMember.RoleNames()
	newNames := newMember.RoleNames()
	oldStaff := s.hierarchy.StaffRoles(oldNames)
	newStaff := s.hierarchy.StaffRoles(newNames)
	if len(oldStaff) == 0 && len(newStaff) == 0 {
		return ChangeOutcome{Status: OutcomeIgnored}
	}

	check := s.conflicts.CheckChangeForConflicts(newMember, oldNames, newNames)
	if check.ShouldPrevent {
		// the role is already applied on the platform; nothing to undo here
		logger.Warn("role change introduced a staff role conflict", zap.String("reason", check.PreventionReason))
		return ChangeOutcome{Status: OutcomePrevented, Reason: check.PreventionReason}
	}

	member := newMember
	if check.HasConflict && check.Conflict != nil {
		result := s.conflicts.Resolve(ctx, newMember, check.Conflict, true)
		out.Resolution = &result
		healed, err := s.platform.GetMember(ctx, newMember.GuildID, newMember.UserID)
		if err != nil {
			logger.Warn("could not re-fetch member after conflict resolution", zap.Error(err))
			newStaff = subtract(newStaff, result.RemovedRoles)
		} else {
			member = healed
			newStaff = s.hierarchy.StaffRoles(healed.RoleNames())
		}
	}

	oldHighest := s.hierarchy.Highest(oldStaff)
	newHighest := s.hierarchy.Highest(newStaff)
	out.OldRole, out.NewRole = oldHighest, newHighest
	out.Change = domain.ClassifyChange(s.hierarchy, oldHighest, newHighest)

	switch out.Change {
	case domain.ChangeNone:
		out.Status = OutcomeUnchanged
		return out
	case domain.ChangeLateral:
		logger.Info("lateral staff role change ignored", zap.String("old_role", oldHighest), zap.String("new_role", newHighest))
		out.Status = OutcomeLateral
		return out
	}

	event := domain.RoleChangeEvent{
		Type:      out.Change,
		UserID:    member.UserID,
		GuildID:   member.GuildID,
		OldRole:   oldHighest,
		NewRole:   newHighest,
		ChangedBy: domain.SystemActorID,
		Timestamp: s.now().UTC(),
	}
	report, err := s.applyChange(ctx, event, member, "Staff role change observed")
	out.Cascade = report
	if err != nil {
		logger.Error("failed to apply staff role change", zap.String("change", string(event.Type)), zap.Error(err))
		out.Status = OutcomeFailed
		out.Error = err.Error()
		return out
	}
	logger.Info("staff role change applied",
		zap.String("change", string(event.Type)),
		zap.String("old_role", oldHighest),
		zap.String("new_role", newHighest))
	out.Status = OutcomeApplied
	return out
}

// applyChange persists the transition and then cascades it. The cascade is
// skipped when the staff record could not be written.
func (s *LifecycleService) applyChange(ctx context.Context, event domain.RoleChangeEvent, member *domain.Member, reason string) (*CascadeReport, error) {
	var err error
	switch event.Type {
	case domain.ChangeHire:
		_, err = s.staff.Hire(ctx, member, event.NewRole, event.ChangedBy, reason)
	case domain.ChangeFire:
		err = s.staff.Fire(ctx, event.GuildID, event.UserID, event.OldRole, event.ChangedBy, reason)
	case domain.ChangePromotion, domain.ChangeDemotion:
		_, err = s.staff.ChangeRole(ctx, member, event.OldRole, event.NewRole, event.Type, event.ChangedBy, reason)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	report := s.cascade.Propagate(ctx, event, member)
	return &report, nil
}

// SyncGuild reconciles staff records with the roles members actually hold
// and returns how many records it touched.
func (s *LifecycleService) SyncGuild(ctx context.Context, guildID string) (touched int, err error) {
	logger := s.logger.With(zap.String("guild_id", guildID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("guild sync aborted by panic", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("guild sync panicked: %v", r)
		}
	}()

	members, err := s.platform.ListMembers(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("list members of guild %s: %w", guildID, err)
	}
	records, err := s.staff.ListActive(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("list active staff of guild %s: %w", guildID, err)
	}
	active := make(map[string]*domain.StaffRecord, len(records))
	for i := range records {
		active[records[i].UserID] = &records[i]
	}

	holding := make(map[string]bool, len(members))
	for i := range members {
		m := &members[i]
		if m.GuildID == "" {
			m.GuildID = guildID
		}
		if highest := s.hierarchy.Highest(m.RoleNames()); highest != "" {
			holding[m.UserID] = true
			if _, ok := active[m.UserID]; !ok {
				event := domain.RoleChangeEvent{
					Type:      domain.ChangeHire,
					UserID:    m.UserID,
					GuildID:   guildID,
					NewRole:   highest,
					ChangedBy: domain.SyncActorID,
					Timestamp: s.now().UTC(),
				}
				if _, err := s.applyChange(ctx, event, m, "Staff record missing during guild sync"); err != nil {
					s.metrics.UnitError("sync")
					logger.Error("could not create staff record during sync", zap.String("user_id", m.UserID), zap.Error(err))
				} else {
					touched++
				}
			}
		}
		s.metrics.BatchUnit("sync")
		s.pacer.tick(ctx, i+1)
	}

	for userID, record := range active {
		if holding[userID] {
			continue
		}
		if err := s.staff.TerminateForSync(ctx, record); err != nil {
			s.metrics.UnitError("sync")
			logger.Error("could not terminate stale staff record", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		touched++
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("guild sync interrupted", zap.Int("records_touched", touched), zap.Error(ctxErr))
		return touched, fmt.Errorf("guild sync of %s interrupted: %w", guildID, ctxErr)
	}

	if err := s.UpdateLastSyncTimestamp(ctx, guildID, s.now().UTC()); err != nil {
		logger.Warn("could not store last sync timestamp", zap.Error(err))
	}
	publish(ctx, s.dispatcher, logger, events.Event{
		Type:    events.EventGuildSynced,
		GuildID: guildID,
		ActorID: domain.SyncActorID,
		Payload: events.GuildSyncedPayload{RecordsTouched: touched, MembersScanned: len(members)},
	})
	logger.Info("guild sync finished", zap.Int("members", len(members)), zap.Int("records_touched", touched))
	return touched, nil
}

// GetLastSyncTimestamp reports when the guild was last synced; ok is false
// when it never was.
func (s *LifecycleService) GetLastSyncTimestamp(ctx context.Context, guildID string) (time.Time, bool, error) {
	return s.syncState.LastSync(ctx, guildID)
}

// UpdateLastSyncTimestamp records a sync time for the guild.
func (s *LifecycleService) UpdateLastSyncTimestamp(ctx context.Context, guildID string, at time.Time) error {
	return s.syncState.SetLastSync(ctx, guildID, at)
}

func subtract(names, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !skip[n] {
			out = append(out, n)
		}
	}
	return out
}
