package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/platform"
	"github.com/spec-kit/firm-roster/internal/repository"
)

// CascadeReport summarizes the case repairs a role change triggered.
type CascadeReport struct {
	Change            domain.ChangeType `json:"change"`
	CasesAffected     int               `json:"cases_affected"`
	LeadCasesAffected int               `json:"lead_cases_affected"`
	CaseErrors        int               `json:"case_errors"`
	NotifyErrors      int               `json:"notify_errors"`
	ChannelAccessErr  string            `json:"channel_access_error,omitempty"`
	Panicked          bool              `json:"panicked,omitempty"`
}

// CascadeService repairs case assignments when a member loses eligibility.
type CascadeService struct {
	hierarchy  *domain.RoleHierarchy
	cases      repository.CaseRepository
	staff      repository.StaffRepository
	audit      repository.AuditRepository
	caseOps    *CaseService
	platform   platform.Platform
	channels   ChannelAccess
	metrics    *observability.Metrics
	logger     *zap.Logger
	minLawyer  int
	minLead    int
	seniorRank int
	now        func() time.Time
}

// CascadeDependencies bundles collaborators for the cascade.
type CascadeDependencies struct {
	Hierarchy            *domain.RoleHierarchy
	CaseRepo             repository.CaseRepository
	StaffRepo            repository.StaffRepository
	AuditRepo            repository.AuditRepository
	Cases                *CaseService
	Platform             platform.Platform
	ChannelAccess        ChannelAccess
	Metrics              *observability.Metrics
	Logger               *zap.Logger
	MinLawyerLevel       int
	MinLeadAttorneyLevel int
	SeniorStaffLevel     int
}

// NewCascadeService creates the service.
func NewCascadeService(deps CascadeDependencies) *CascadeService {
	hierarchy := deps.Hierarchy
	if hierarchy == nil {
		hierarchy = domain.DefaultRoleHierarchy()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CascadeService{
		hierarchy:  hierarchy,
		cases:      deps.CaseRepo,
		staff:      deps.StaffRepo,
		audit:      deps.AuditRepo,
		caseOps:    deps.Cases,
		platform:   deps.Platform,
		channels:   deps.ChannelAccess,
		metrics:    deps.Metrics,
		logger:     logger.Named("cascade"),
		minLawyer:  deps.MinLawyerLevel,
		minLead:    deps.MinLeadAttorneyLevel,
		seniorRank: deps.SeniorStaffLevel,
		now:        time.Now,
	}
}

// Propagate applies the case repairs for one role change. It never panics
// and never returns an error; failures are logged and counted in the report.
func (s *CascadeService) Propagate(ctx context.Context, event domain.RoleChangeEvent, member *domain.Member) (report CascadeReport) {
	report.Change = event.Type
	logger := s.logger.With(
		zap.String("guild_id", event.GuildID),
		zap.String("user_id", event.UserID),
		zap.String("change", string(event.Type)))
	defer func() {
		if r := recover(); r != nil {
			report.Panicked = true
			logger.Error("cascade aborted by panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if member == nil {
		member = &domain.Member{GuildID: event.GuildID, UserID: event.UserID}
	}

	if s.channels != nil {
		if err := s.channels.HandleRoleChange(ctx, event.GuildID, member, event.OldRole, event.NewRole, event.Type); err != nil {
			report.ChannelAccessErr = err.Error()
			logger.Error("channel access reconciliation failed", zap.Error(err))
		}
	}

	newLevel := s.hierarchy.LevelOf(event.NewRole)
	switch {
	case event.Type == domain.ChangeFire:
		s.unassignFromCases(ctx, event, member, "termination", &report, logger)
	case event.Type == domain.ChangeDemotion && newLevel < s.minLawyer:
		s.unassignFromCases(ctx, event, member, "demotion", &report, logger)
	case event.Type == domain.ChangeDemotion && newLevel < s.minLead:
		s.clearLeadDesignations(ctx, event, member, &report, logger)
	}
	return report
}

func (s *CascadeService) unassignFromCases(ctx context.Context, event domain.RoleChangeEvent, member *domain.Member, kind string, report *CascadeReport, logger *zap.Logger) {
	cases, err := s.cases.FindByLawyer(ctx, event.GuildID, event.UserID)
	if err != nil {
		logger.Error("could not load cases for departing lawyer", zap.Error(err))
		report.CaseErrors++
		return
	}
	if len(cases) == 0 {
		return
	}

	var (
		seniors     []string
		seniorsRead bool
		repaired    []string
	)
	for i := range cases {
		c := &cases[i]
		if _, err := s.caseOps.UnassignLawyer(ctx, c.ID, event.UserID, domain.SystemActorID); err != nil {
			report.CaseErrors++
			s.metrics.UnitError("cascade")
			logger.Error("failed to unassign lawyer from case", zap.String("case_id", c.ID), zap.Error(err))
			continue
		}
		report.CasesAffected++
		repaired = append(repaired, c.Label())

		updated, err := s.cases.GetByID(ctx, c.ID)
		if err != nil {
			logger.Warn("could not re-fetch case after unassignment", zap.String("case_id", c.ID), zap.Error(err))
			updated = c
			updated.AssignedLawyerIDs = without(c.AssignedLawyerIDs, event.UserID)
		}
		if len(updated.AssignedLawyerIDs) == 0 {
			if !seniorsRead {
				seniors = s.seniorStaff(ctx, event.GuildID, event.UserID, logger)
				seniorsRead = true
			}
			if len(seniors) > 0 {
				report.NotifyErrors += s.escalateUnstaffed(ctx, updated, member, seniors, logger)
			}
		}
		if !s.postToCaseChannel(ctx, updated, staffingChangeNotice(updated, member, kind, len(updated.AssignedLawyerIDs)), logger) {
			report.NotifyErrors++
		}
	}

	if len(repaired) > 0 {
		if err := s.platform.SendDirectMessage(ctx, event.UserID, casesUnassignedDM(event.GuildID, repaired, kind)); err != nil {
			report.NotifyErrors++
			logger.Warn("could not notify member about case unassignment", zap.Error(err))
		}
	}
	s.metrics.CascadeCases("unassigned", report.CasesAffected)
	s.record(ctx, event, logger, map[string]any{
		"casesAffected": report.CasesAffected,
		"caseErrors":    report.CaseErrors,
		"changeType":    kind,
		"cases":         repaired,
	})
}

func (s *CascadeService) clearLeadDesignations(ctx context.Context, event domain.RoleChangeEvent, member *domain.Member, report *CascadeReport, logger *zap.Logger) {
	cases, err := s.cases.FindByLeadAttorney(ctx, event.GuildID, event.UserID)
	if err != nil {
		logger.Error("could not load lead attorney cases", zap.Error(err))
		report.CaseErrors++
		return
	}
	if len(cases) == 0 {
		return
	}

	var cleared []string
	for i := range cases {
		c, err := s.caseOps.ClearLeadAttorney(ctx, cases[i].ID, domain.SystemActorID, "Lead attorney no longer eligible after demotion to "+event.NewRole)
		if err != nil {
			report.CaseErrors++
			s.metrics.UnitError("cascade")
			logger.Error("failed to clear lead attorney", zap.String("case_id", cases[i].ID), zap.Error(err))
			continue
		}
		report.LeadCasesAffected++
		cleared = append(cleared, c.Label())
		if !s.postToCaseChannel(ctx, c, leadClearedNotice(c, member, event.NewRole), logger) {
			report.NotifyErrors++
		}
	}

	if len(cleared) > 0 {
		if err := s.platform.SendDirectMessage(ctx, event.UserID, leadClearedDM(event.GuildID, cleared, event.NewRole)); err != nil {
			report.NotifyErrors++
			logger.Warn("could not notify member about lead attorney removal", zap.Error(err))
		}
	}
	s.metrics.CascadeCases("lead_cleared", report.LeadCasesAffected)
	s.record(ctx, event, logger, map[string]any{
		"leadCasesAffected": report.LeadCasesAffected,
		"caseErrors":        report.CaseErrors,
		"changeType":        "demotion",
		"cases":             cleared,
	})
}

// seniorStaff lists active staff at or above the senior level, excluding the
// departing member.
func (s *CascadeService) seniorStaff(ctx context.Context, guildID, exclude string, logger *zap.Logger) []string {
	active := domain.StaffStatusActive
	records, err := s.staff.List(ctx, repository.StaffFilter{
		GuildID: guildID,
		Status:  &active,
		Roles:   s.hierarchy.AtOrAbove(s.seniorRank),
	})
	if err != nil {
		logger.Error("could not load senior staff", zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.UserID != exclude {
			ids = append(ids, r.UserID)
		}
	}
	return ids
}

func (s *CascadeService) escalateUnstaffed(ctx context.Context, c *domain.Case, departed *domain.Member, seniors []string, logger *zap.Logger) int {
	failures := 0
	if !s.postToCaseChannel(ctx, c, urgentNoLawyersMessage(c, departed, seniors), logger) {
		failures++
	}
	for _, id := range seniors {
		if err := s.platform.SendDirectMessage(ctx, id, seniorUrgentDM(c, c.GuildID)); err != nil {
			failures++
			logger.Warn("could not alert senior staff member", zap.String("case_id", c.ID), zap.String("senior_id", id), zap.Error(err))
		}
	}
	return failures
}

// postToCaseChannel reports whether the message was delivered.
func (s *CascadeService) postToCaseChannel(ctx context.Context, c *domain.Case, msg platform.Message, logger *zap.Logger) bool {
	if c.ChannelID == "" {
		logger.Warn("case has no channel", zap.String("case_id", c.ID))
		return false
	}
	if _, err := s.platform.GetChannel(ctx, c.ChannelID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			logger.Warn("case channel no longer exists", zap.String("case_id", c.ID), zap.String("channel_id", c.ChannelID))
		} else {
			logger.Error("could not fetch case channel", zap.String("case_id", c.ID), zap.Error(err))
		}
		return false
	}
	if err := s.platform.SendChannelMessage(ctx, c.ChannelID, msg); err != nil {
		logger.Error("could not post to case channel", zap.String("case_id", c.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *CascadeService) record(ctx context.Context, event domain.RoleChangeEvent, logger *zap.Logger, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	target := event.UserID
	entry := &domain.AuditEntry{
		GuildID:  event.GuildID,
		Action:   domain.AuditCaseCascade,
		ActorID:  domain.SystemActorID,
		TargetID: &target,
		Details: domain.AuditDetails{
			Before:   map[string]any{"role": event.OldRole},
			After:    map[string]any{"role": event.NewRole},
			Reason:   "Case cascade after " + string(event.Type),
			Metadata: metadata,
		},
		Timestamp: s.now().UTC(),
	}
	if err := s.audit.Add(ctx, entry); err != nil {
		logger.Error("failed to write cascade audit entry", zap.Error(err))
	}
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
