package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-roster/internal/api/dto"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

// SyncOperations is the part of the lifecycle service the API exposes.
type SyncOperations interface {
	SyncGuild(ctx context.Context, guildID string) (int, error)
	GetLastSyncTimestamp(ctx context.Context, guildID string) (time.Time, bool, error)
}

// SyncHandler exposes guild reconciliation.
type SyncHandler struct {
	lifecycle    SyncOperations
	batchTimeout time.Duration
}

// NewSyncHandler constructs handler. Syncs ignore the request deadline and
// are bounded by batchTimeout instead.
func NewSyncHandler(lifecycle SyncOperations, batchTimeout time.Duration) *SyncHandler {
	return &SyncHandler{lifecycle: lifecycle, batchTimeout: batchTimeout}
}

// Sync handles POST /guilds/:guildID/sync.
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	ctx, cancel := batchContext(c, h.batchTimeout)
	defer cancel()
	touched, err := h.lifecycle.SyncGuild(ctx, guildID)
	if err != nil {
		return apperrors.NewUpstreamError("guild sync failed", err)
	}
	resp := dto.SyncResponse{RecordsTouched: &touched}
	if at, ok, err := h.lifecycle.GetLastSyncTimestamp(ctx, guildID); err == nil && ok {
		resp.LastSync = &at
	}
	return c.JSON(fiber.Map{"data": resp})
}

// LastSync handles GET /guilds/:guildID/sync.
func (h *SyncHandler) LastSync(c *fiber.Ctx) error {
	at, ok, err := h.lifecycle.GetLastSyncTimestamp(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return apperrors.MapError(err)
	}
	resp := dto.SyncResponse{}
	if ok {
		resp.LastSync = &at
	}
	return c.JSON(fiber.Map{"data": resp})
}
