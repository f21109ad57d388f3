package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// batchContext detaches a guild-wide batch from the request deadline so it
// runs to completion, bounded only by timeout when positive.
func batchContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.UserContext())
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
