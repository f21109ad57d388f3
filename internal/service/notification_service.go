package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/platform"
)

// NotificationService logs domain events and mirrors the notable ones to a
// staff log channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	platform   platform.Platform
	logger     *zap.Logger
	logChannel string
}

// NewNotificationService creates the service. An empty logChannel disables
// channel mirroring.
func NewNotificationService(dispatcher events.Dispatcher, p platform.Platform, logChannel string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		platform:   p,
		logger:     logger,
		logChannel: strings.TrimSpace(logChannel),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventStaffHired, n.handleTransition)
	n.dispatcher.Subscribe(events.EventStaffFired, n.handleTransition)
	n.dispatcher.Subscribe(events.EventStaffPromoted, n.handleTransition)
	n.dispatcher.Subscribe(events.EventStaffDemoted, n.handleTransition)
	n.dispatcher.Subscribe(events.EventRoleConflictResolved, n.handleConflictResolved)
	n.dispatcher.Subscribe(events.EventCaseLawyerUnassigned, n.handleCaseRepair)
	n.dispatcher.Subscribe(events.EventCaseLeadCleared, n.handleCaseRepair)
	n.dispatcher.Subscribe(events.EventGuildSynced, n.handleGuildSynced)
}

var transitionTitles = map[domain.ChangeType]string{
	domain.ChangeHire:      "Staff Hired",
	domain.ChangeFire:      "Staff Fired",
	domain.ChangePromotion: "Staff Promoted",
	domain.ChangeDemotion:  "Staff Demoted",
}

func (n *NotificationService) handleTransition(ctx context.Context, event events.Event) error {
	n.logger.Info("StaffRoleTransition",
		zap.String("event_type", string(event.Type)),
		zap.String("guild_id", event.GuildID),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	p, ok := event.Payload.(events.RoleTransitionPayload)
	if !ok {
		return nil
	}
	n.mirror(ctx, event, &platform.Embed{
		Title:       transitionTitles[p.Change],
		Description: fmt.Sprintf("<@%s>: %s → %s", event.UserID, valueOrDash(p.OldRole), valueOrDash(p.NewRole)),
		Color:       platform.ColorInfo,
		Footer:      "actor " + event.ActorID,
		Timestamp:   event.Timestamp,
	})
	return nil
}

func (n *NotificationService) handleConflictResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("RoleConflictResolved",
		zap.String("guild_id", event.GuildID),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	p, ok := event.Payload.(events.ConflictResolvedPayload)
	if !ok {
		return nil
	}
	color := platform.ColorSuccess
	if !p.Result.Resolved {
		color = platform.ColorDanger
	}
	n.mirror(ctx, event, &platform.Embed{
		Title:       "Role Conflict " + string(p.Severity),
		Description: fmt.Sprintf("<@%s> kept %s", event.UserID, valueOrDash(p.Result.KeptRole)),
		Color:       color,
		Fields: []platform.EmbedField{
			{Name: "Removed", Value: joinOrNone(p.Result.RemovedRoles), Inline: true},
			{Name: "Failed", Value: joinOrNone(p.Result.FailedRoles), Inline: true},
		},
		Footer:    "actor " + event.ActorID,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (n *NotificationService) handleCaseRepair(_ context.Context, event events.Event) error {
	n.logger.Info("CaseRepaired",
		zap.String("event_type", string(event.Type)),
		zap.String("guild_id", event.GuildID),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleGuildSynced(ctx context.Context, event events.Event) error {
	n.logger.Info("GuildSynced", zap.String("guild_id", event.GuildID), zap.Any("payload", event.Payload))
	p, ok := event.Payload.(events.GuildSyncedPayload)
	if !ok || p.RecordsTouched == 0 {
		return nil
	}
	n.mirror(ctx, event, &platform.Embed{
		Title:       "Guild Sync",
		Description: fmt.Sprintf("%d staff records updated after scanning %d members.", p.RecordsTouched, p.MembersScanned),
		Color:       platform.ColorInfo,
		Timestamp:   event.Timestamp,
	})
	return nil
}

// mirror posts embed to the log channel. Failures are only logged.
func (n *NotificationService) mirror(ctx context.Context, event events.Event, embed *platform.Embed) {
	if n.logChannel == "" || n.platform == nil {
		return
	}
	if err := n.platform.SendChannelMessage(ctx, n.logChannel, platform.Message{Embed: embed}); err != nil {
		n.logger.Warn("could not mirror event to log channel",
			zap.String("event_type", string(event.Type)),
			zap.String("channel_id", n.logChannel),
			zap.Error(err))
	}
}
