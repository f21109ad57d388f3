package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-roster/internal/domain"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// RequireSeniorStaff ensures the operator is active staff at or above minLevel.
func RequireSeniorStaff(hierarchy *domain.RoleHierarchy, minLevel int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Staff == nil {
			return apperrors.NewUnauthorized("operator required")
		}
		if !principal.Staff.Active() {
			return apperrors.NewForbidden("operator is not active staff")
		}
		if hierarchy.LevelOf(principal.Staff.Role) < minLevel {
			return apperrors.NewForbidden("senior staff role required")
		}
		return c.Next()
	}
}

// RequireGuildScope rejects requests for a guild other than the token's.
func RequireGuildScope(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("operator required")
		}
		if c.Params(param) != principal.GuildID {
			return apperrors.NewForbidden("token not valid for this guild")
		}
		return c.Next()
	}
}
