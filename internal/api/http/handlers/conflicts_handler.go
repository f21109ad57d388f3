package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-roster/internal/api/dto"
	"github.com/spec-kit/firm-roster/internal/auth"
	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/service"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// ConflictOperations is the part of the conflict service the API exposes.
type ConflictOperations interface {
	ScanGuild(ctx context.Context, guildID string, onProgress func(service.ScanProgress)) ([]domain.RoleConflict, error)
	BulkResolve(ctx context.Context, guildID string, conflicts []domain.RoleConflict, onProgress func(service.BulkProgress)) []domain.ConflictResolutionResult
	GetConflictStatistics(ctx context.Context, guildID string) (domain.ConflictStatistics, error)
	ClearConflictHistory(ctx context.Context, guildID string) error
	DetectMember(ctx context.Context, guildID, userID string) (*domain.RoleConflict, error)
	ResolveMemberManually(ctx context.Context, guildID, userID string, sel service.ManualResolution) (domain.ConflictResolutionResult, error)
	ValidateMemberAssignment(ctx context.Context, guildID, userID, candidate string) (service.AssignmentValidation, error)
}

// ConflictsHandler exposes conflict scan and resolution endpoints.
type ConflictsHandler struct {
	conflicts    ConflictOperations
	batchTimeout time.Duration
}

// NewConflictsHandler constructs handler. Scans and bulk resolution ignore
// the request deadline and are bounded by batchTimeout instead.
func NewConflictsHandler(conflicts ConflictOperations, batchTimeout time.Duration) *ConflictsHandler {
	return &ConflictsHandler{conflicts: conflicts, batchTimeout: batchTimeout}
}

// Scan handles POST /guilds/:guildID/conflicts/scan.
func (h *ConflictsHandler) Scan(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	ctx, cancel := batchContext(c, h.batchTimeout)
	defer cancel()
	var scanned int
	conflicts, err := h.conflicts.ScanGuild(ctx, guildID, func(p service.ScanProgress) {
		scanned = p.Processed
	})
	if err != nil {
		return apperrors.NewUpstreamError("guild scan failed", err)
	}
	resp := dto.ScanResponse{MembersScanned: scanned, Conflicts: conflicts}
	if resp.Conflicts == nil {
		resp.Conflicts = []domain.RoleConflict{}
	}
	if c.QueryBool("resolve") && len(conflicts) > 0 {
		resp.Results = h.conflicts.BulkResolve(ctx, guildID, conflicts, func(p service.BulkProgress) {
			resp.Resolved, resp.Errors = p.ConflictsResolved, p.Errors
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Stats handles GET /guilds/:guildID/conflicts/stats.
func (h *ConflictsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.conflicts.GetConflictStatistics(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": stats})
}

// ClearHistory handles DELETE /guilds/:guildID/conflicts/history.
func (h *ConflictsHandler) ClearHistory(c *fiber.Ctx) error {
	if err := h.conflicts.ClearConflictHistory(c.UserContext(), c.Params("guildID")); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MemberConflict handles GET /guilds/:guildID/members/:userID/conflict.
func (h *ConflictsHandler) MemberConflict(c *fiber.Ctx) error {
	conflict, err := h.conflicts.DetectMember(c.UserContext(), c.Params("guildID"), c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": conflict})
}

// Resolve handles POST /guilds/:guildID/members/:userID/conflict/resolve.
func (h *ConflictsHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolveConflictRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.RoleName = strings.TrimSpace(req.RoleName)
	if req.RoleName == "" {
		return apperrors.NewValidationError("role_name required", nil)
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	notify := true
	if req.Notify != nil {
		notify = *req.Notify
	}

	result, err := h.conflicts.ResolveMemberManually(c.UserContext(), c.Params("guildID"), c.Params("userID"), service.ManualResolution{
		RoleName: req.RoleName,
		Reason:   req.Reason,
		Notify:   notify,
		ActorID:  principal.OperatorID,
	})
	if err != nil {
		return err
	}
	if result.Error == service.InvalidRoleSelection {
		return apperrors.NewValidationError(service.InvalidRoleSelection, map[string]any{"role_name": req.RoleName})
	}
	status := fiber.StatusOK
	if !result.Resolved {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}

// Validate handles POST /guilds/:guildID/members/:userID/validate.
func (h *ConflictsHandler) Validate(c *fiber.Ctx) error {
	var req dto.ValidateAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.RoleName) == "" {
		return apperrors.NewValidationError("role_name required", nil)
	}
	validation, err := h.conflicts.ValidateMemberAssignment(c.UserContext(), c.Params("guildID"), c.Params("userID"), strings.TrimSpace(req.RoleName))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": validation})
}
