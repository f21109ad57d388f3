package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/platform"
)

// ChannelAccess reconciles role-gated channel permissions after a staff
// role change.
type ChannelAccess interface {
	HandleRoleChange(ctx context.Context, guildID string, member *domain.Member, oldRole, newRole string, change domain.ChangeType) error
}

// ChannelAccessService grants and revokes per-member channel overwrites from
// a role to channels map.
type ChannelAccessService struct {
	platform     platform.Platform
	roleChannels map[string][]string
	logger       *zap.Logger
}

// NewChannelAccessService creates the service.
func NewChannelAccessService(p platform.Platform, roleChannels map[string][]string, logger *zap.Logger) *ChannelAccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelAccessService{platform: p, roleChannels: roleChannels, logger: logger.Named("channel_access")}
}

// HandleRoleChange revokes the channels of oldRole that newRole does not
// also grant, then grants every channel of newRole. Each channel is
// attempted; failures are joined.
func (s *ChannelAccessService) HandleRoleChange(ctx context.Context, guildID string, member *domain.Member, oldRole, newRole string, change domain.ChangeType) error {
	if member == nil {
		return errors.New("channel access: nil member")
	}
	keep := map[string]bool{}
	for _, ch := range s.roleChannels[newRole] {
		keep[ch] = true
	}

	var errs []error
	for _, ch := range s.roleChannels[oldRole] {
		if keep[ch] {
			continue
		}
		if err := s.platform.RevokeChannelAccess(ctx, ch, member.UserID); err != nil {
			errs = append(errs, fmt.Errorf("revoke %s: %w", ch, err))
		}
	}
	for _, ch := range s.roleChannels[newRole] {
		if err := s.platform.SetChannelAccess(ctx, ch, member.UserID); err != nil {
			errs = append(errs, fmt.Errorf("grant %s: %w", ch, err))
		}
	}

	s.logger.Debug("channel access reconciled",
		zap.String("guild_id", guildID),
		zap.String("user_id", member.UserID),
		zap.String("old_role", oldRole),
		zap.String("new_role", newRole),
		zap.String("change", string(change)),
		zap.Int("failures", len(errs)))
	return errors.Join(errs...)
}
