// Package platform abstracts the chat platform the firm runs on.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// ErrNotFound is returned when a member or channel does not exist.
var ErrNotFound = errors.New("platform: not found")

// Channel is the subset of channel data the engine needs.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// EmbedField is a name/value row inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// Message is an outgoing message; Mentions lists users allowed to be pinged.
type Message struct {
	Content  string
	Embed    *Embed
	Mentions []string
}

// Platform is everything the engine asks of the chat platform. Every call is
// fallible; implementations surface permission, not-found and rate-limit
// failures as errors.
type Platform interface {
	GetMember(ctx context.Context, guildID, userID string) (*domain.Member, error)
	ListMembers(ctx context.Context, guildID string) ([]domain.Member, error)
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
	SendDirectMessage(ctx context.Context, userID string, msg Message) error
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	SendChannelMessage(ctx context.Context, channelID string, msg Message) error
	SetChannelAccess(ctx context.Context, channelID, userID string) error
	RevokeChannelAccess(ctx context.Context, channelID, userID string) error
}

// Embed colours used for notices.
const (
	ColorInfo    = 0x3498DB
	ColorSuccess = 0x2ECC71
	ColorWarning = 0xF1C40F
	ColorDanger  = 0xE74C3C
)
