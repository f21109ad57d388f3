package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/repository"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// StaffService owns staff records and their promotion history.
type StaffService struct {
	staff      repository.StaffRepository
	audit      repository.AuditRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// StaffDependencies bundles repositories.
type StaffDependencies struct {
	StaffRepo  repository.StaffRepository
	AuditRepo  repository.AuditRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		staff:      deps.StaffRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("staff"),
		now:        time.Now,
	}
}

// GetRecord fetches a staff record.
func (s *StaffService) GetRecord(ctx context.Context, guildID, userID string) (*domain.StaffRecord, error) {
	record, err := s.staff.Get(ctx, guildID, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("staff record", map[string]any{"guild_id": guildID, "user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return record, nil
}

// ListActive returns every active record of the guild.
func (s *StaffService) ListActive(ctx context.Context, guildID string) ([]domain.StaffRecord, error) {
	active := domain.StaffStatusActive
	records, err := s.staff.List(ctx, repository.StaffFilter{GuildID: guildID, Status: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// Hire reactivates an existing record or creates a new one, appending a hire
// entry to the promotion history.
func (s *StaffService) Hire(ctx context.Context, member *domain.Member, role, actorID, reason string) (*domain.StaffRecord, error) {
	now := s.now().UTC()
	entry := domain.PromotionEntry{ToRole: role, ActorID: actorID, Reason: reason, ActionType: domain.ActionHire, At: now}

	record, err := s.staff.Get(ctx, member.GuildID, member.UserID)
	switch {
	case err == nil:
		previous := record.Role
		record.Username = member.Label()
		record.Role = role
		record.Status = domain.StaffStatusActive
		record.HiredAt = now
		record.TerminatedAt = nil
		entry.FromRole = previous
		record.PromotionHistory = append(record.PromotionHistory, entry)
		if err := s.staff.Update(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
	case apperrors.IsNotFound(err):
		record = &domain.StaffRecord{
			GuildID:          member.GuildID,
			UserID:           member.UserID,
			Username:         member.Label(),
			Role:             role,
			Status:           domain.StaffStatusActive,
			HiredAt:          now,
			PromotionHistory: []domain.PromotionEntry{entry},
		}
		if err := s.staff.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
	default:
		return nil, apperrors.MapError(err)
	}

	s.recordTransition(ctx, member.GuildID, member.UserID, domain.ChangeHire, "", role, actorID, reason)
	return record, nil
}

// Fire deletes the staff record. A missing record is not an error.
func (s *StaffService) Fire(ctx context.Context, guildID, userID, oldRole, actorID, reason string) error {
	if err := s.staff.Delete(ctx, guildID, userID); err != nil {
		if !apperrors.IsNotFound(err) {
			return apperrors.MapError(err)
		}
		s.logger.Info("fired member had no staff record", zap.String("guild_id", guildID), zap.String("user_id", userID))
	}
	s.recordTransition(ctx, guildID, userID, domain.ChangeFire, oldRole, "", actorID, reason)
	return nil
}

// ChangeRole applies a promotion or demotion. A member without a record
// gets one created so the history stays complete.
func (s *StaffService) ChangeRole(ctx context.Context, member *domain.Member, from, to string, change domain.ChangeType, actorID, reason string) (*domain.StaffRecord, error) {
	if change != domain.ChangePromotion && change != domain.ChangeDemotion {
		return nil, apperrors.NewValidationError("role change must be a promotion or demotion", map[string]any{"change": change})
	}
	action := domain.ActionPromotion
	if change == domain.ChangeDemotion {
		action = domain.ActionDemotion
	}
	now := s.now().UTC()
	entry := domain.PromotionEntry{FromRole: from, ToRole: to, ActorID: actorID, Reason: reason, ActionType: action, At: now}

	record, err := s.staff.Get(ctx, member.GuildID, member.UserID)
	switch {
	case err == nil:
		record.PromotionHistory = append(record.PromotionHistory, entry)
		record.Role = to
		record.Status = domain.StaffStatusActive
		record.TerminatedAt = nil
		if err := s.staff.Update(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
	case apperrors.IsNotFound(err):
		s.logger.Warn("role change for member without staff record",
			zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID))
		record = &domain.StaffRecord{
			GuildID:          member.GuildID,
			UserID:           member.UserID,
			Username:         member.Label(),
			Role:             to,
			Status:           domain.StaffStatusActive,
			HiredAt:          now,
			PromotionHistory: []domain.PromotionEntry{entry},
		}
		if err := s.staff.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
	default:
		return nil, apperrors.MapError(err)
	}

	s.recordTransition(ctx, member.GuildID, member.UserID, change, from, to, actorID, reason)
	return record, nil
}

// TerminateForSync marks an active record terminated because its holder no
// longer carries a staff role.
func (s *StaffService) TerminateForSync(ctx context.Context, record *domain.StaffRecord) error {
	now := s.now().UTC()
	from := record.Role
	record.Status = domain.StaffStatusTerminated
	record.TerminatedAt = &now
	record.PromotionHistory = append(record.PromotionHistory, domain.PromotionEntry{
		FromRole:   from,
		ActorID:    domain.SyncActorID,
		Reason:     "Staff role missing during guild sync",
		ActionType: domain.ActionFire,
		At:         now,
	})
	if err := s.staff.Update(ctx, record); err != nil {
		return apperrors.MapError(err)
	}
	s.writeAudit(ctx, record.GuildID, record.UserID, domain.AuditStaffSyncTerminated, domain.SyncActorID, domain.AuditDetails{
		Before:   map[string]any{"role": from, "status": domain.StaffStatusActive},
		After:    map[string]any{"status": domain.StaffStatusTerminated},
		Reason:   "Staff role missing during guild sync",
		Metadata: map[string]any{"sync": true},
	})
	s.metrics.RoleTransition(string(domain.ChangeFire))
	return nil
}

var transitionAudit = map[domain.ChangeType]struct {
	action domain.AuditAction
	event  events.EventType
}{
	domain.ChangeHire:      {domain.AuditStaffHired, events.EventStaffHired},
	domain.ChangeFire:      {domain.AuditStaffFired, events.EventStaffFired},
	domain.ChangePromotion: {domain.AuditStaffPromoted, events.EventStaffPromoted},
	domain.ChangeDemotion:  {domain.AuditStaffDemoted, events.EventStaffDemoted},
}

func (s *StaffService) recordTransition(ctx context.Context, guildID, userID string, change domain.ChangeType, from, to, actorID, reason string) {
	kinds, ok := transitionAudit[change]
	if !ok {
		return
	}
	s.metrics.RoleTransition(string(change))
	s.writeAudit(ctx, guildID, userID, kinds.action, actorID, domain.AuditDetails{
		Before:   map[string]any{"role": from},
		After:    map[string]any{"role": to},
		Reason:   reason,
		Metadata: map[string]any{"changeType": change},
	})
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    kinds.event,
		GuildID: guildID,
		UserID:  userID,
		ActorID: actorID,
		Payload: events.RoleTransitionPayload{OldRole: from, NewRole: to, Change: change},
	})
}

func (s *StaffService) writeAudit(ctx context.Context, guildID, userID string, action domain.AuditAction, actorID string, details domain.AuditDetails) {
	if s.audit == nil {
		return
	}
	target := userID
	entry := &domain.AuditEntry{
		GuildID:   guildID,
		Action:    action,
		ActorID:   actorID,
		TargetID:  &target,
		Details:   details,
		Timestamp: s.now().UTC(),
	}
	if err := s.audit.Add(ctx, entry); err != nil {
		s.logger.Error("failed to write staff audit entry",
			zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("action", string(action)), zap.Error(err))
	}
}
