package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-roster/internal/api/dto"
	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/repository"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// AuditHandler lists audit entries.
type AuditHandler struct {
	audit repository.AuditRepository
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audit repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /guilds/:guildID/audit.
func (h *AuditHandler) List(c *fiber.Ctx) error {
	filter := repository.AuditFilter{
		GuildID: c.Params("guildID"),
		Limit:   c.QueryInt("limit", 50),
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		return apperrors.NewValidationError("limit must be between 1 and 500", map[string]any{"limit": filter.Limit})
	}
	if action := c.Query("action"); action != "" {
		a := domain.AuditAction(action)
		filter.Action = &a
	}
	if target := c.Query("target"); target != "" {
		filter.TargetID = &target
	}

	entries, err := h.audit.List(c.UserContext(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.NewAuditEntryResponse(e))
	}
	return c.JSON(fiber.Map{"data": out})
}
