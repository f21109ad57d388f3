package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/platform"
	apperrors "github.com/spec-kit/firm-roster/pkg/util/errorutil"
)

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func memberLookupError(err error, guildID, userID string) error {
	if errors.Is(err, platform.ErrNotFound) {
		return apperrors.NewNotFound("member", map[string]any{"guild_id": guildID, "user_id": userID})
	}
	return apperrors.NewUpstreamError("failed to fetch member from platform", fmt.Errorf("fetch member %s: %w", userID, err))
}
