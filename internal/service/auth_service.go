package service

import (
	"context"
	"time"

	"github.com/spec-kit/firm-roster/internal/auth"
	"github.com/spec-kit/firm-roster/internal/config"
	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/repository"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// AuthService mints operator tokens for senior staff.
type AuthService struct {
	staff     repository.StaffRepository
	tokenMgr  *auth.TokenManager
	hierarchy *domain.RoleHierarchy
	minLevel  int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	StaffRepo repository.StaffRepository
	Hierarchy *domain.RoleHierarchy
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	hierarchy := deps.Hierarchy
	if hierarchy == nil {
		hierarchy = domain.DefaultRoleHierarchy()
	}
	return &AuthService{
		staff:     deps.StaffRepo,
		tokenMgr:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes),
		hierarchy: hierarchy,
		minLevel:  cfg.Engine.SeniorStaffLevel,
	}
}

// IssueOperatorToken signs a token for an active senior staff member.
func (s *AuthService) IssueOperatorToken(ctx context.Context, guildID, operatorID string) (string, time.Time, error) {
	if guildID == "" || operatorID == "" {
		return "", time.Time{}, apperrors.NewValidationError("guild and operator are required", nil)
	}
	record, err := s.staff.Get(ctx, guildID, operatorID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", time.Time{}, apperrors.NewNotFound("staff record", map[string]any{"guild_id": guildID, "user_id": operatorID})
		}
		return "", time.Time{}, apperrors.MapError(err)
	}
	if !record.Active() || s.hierarchy.LevelOf(record.Role) < s.minLevel {
		return "", time.Time{}, apperrors.NewForbidden("operator must be active senior staff")
	}
	return s.tokenMgr.GenerateToken(operatorID, guildID)
}

// TokenManager exposes the token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
