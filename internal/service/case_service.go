package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/repository"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// CaseService handles case assignment repairs.
type CaseService struct {
	cases      repository.CaseRepository
	audit      repository.AuditRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// CaseDependencies bundles repositories.
type CaseDependencies struct {
	CaseRepo   repository.CaseRepository
	AuditRepo  repository.AuditRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewCaseService creates the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		cases:      deps.CaseRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("cases"),
		now:        time.Now,
	}
}

// UnassignLawyer removes lawyerID from the case. When the lawyer was also
// the lead attorney the lead is cleared too.
func (s *CaseService) UnassignLawyer(ctx context.Context, caseID, lawyerID, actorID string) (*domain.Case, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.HasLawyer(lawyerID) && !c.IsLead(lawyerID) {
		return c, nil
	}

	before := append([]string(nil), c.AssignedLawyerIDs...)
	remaining := make([]string, 0, len(c.AssignedLawyerIDs))
	for _, id := range c.AssignedLawyerIDs {
		if id != lawyerID {
			remaining = append(remaining, id)
		}
	}
	c.AssignedLawyerIDs = remaining
	wasLead := c.IsLead(lawyerID)
	if wasLead {
		c.LeadAttorneyID = nil
	}
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.record(ctx, c, domain.AuditCaseLawyerUnassigned, actorID, lawyerID, domain.AuditDetails{
		Before:   map[string]any{"assignedLawyerIds": before},
		After:    map[string]any{"assignedLawyerIds": remaining},
		Reason:   "Lawyer unassigned from case",
		Metadata: map[string]any{"caseNumber": c.CaseNumber, "wasLeadAttorney": wasLead},
	})
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventCaseLawyerUnassigned,
		GuildID: c.GuildID,
		UserID:  lawyerID,
		ActorID: actorID,
		Payload: events.CaseRepairPayload{CaseID: c.ID, CaseNumber: c.CaseNumber, RemainingLawyers: len(remaining)},
	})
	return c, nil
}

// ClearLeadAttorney drops the lead designation and leaves the assigned
// lawyers untouched.
func (s *CaseService) ClearLeadAttorney(ctx context.Context, caseID, actorID, reason string) (*domain.Case, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.LeadAttorneyID == nil {
		return c, nil
	}
	former := *c.LeadAttorneyID
	c.LeadAttorneyID = nil
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.record(ctx, c, domain.AuditCaseLeadCleared, actorID, former, domain.AuditDetails{
		Before:   map[string]any{"leadAttorneyId": former},
		After:    map[string]any{"leadAttorneyId": nil},
		Reason:   reason,
		Metadata: map[string]any{"caseNumber": c.CaseNumber},
	})
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventCaseLeadCleared,
		GuildID: c.GuildID,
		UserID:  former,
		ActorID: actorID,
		Payload: events.CaseRepairPayload{CaseID: c.ID, CaseNumber: c.CaseNumber, RemainingLawyers: len(c.AssignedLawyerIDs)},
	})
	return c, nil
}

// GetCase fetches a case by id.
func (s *CaseService) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	return s.getCase(ctx, caseID)
}

func (s *CaseService) getCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	return c, nil
}

func (s *CaseService) record(ctx context.Context, c *domain.Case, action domain.AuditAction, actorID, targetID string, details domain.AuditDetails) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		GuildID:   c.GuildID,
		Action:    action,
		ActorID:   actorID,
		TargetID:  &targetID,
		Details:   details,
		Timestamp: s.now().UTC(),
	}
	if err := s.audit.Add(ctx, entry); err != nil {
		s.logger.Error("failed to write case audit entry",
			zap.String("case_id", c.ID), zap.String("action", string(action)), zap.Error(err))
	}
}
