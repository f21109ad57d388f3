package platform

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// MemberUpdateFunc receives the before/after snapshots of a member update.
type MemberUpdateFunc func(ctx context.Context, before, after *domain.Member)

// Gateway feeds guild member updates from the discordgo session to a handler.
type Gateway struct {
	session *discordgo.Session
	logger  *zap.Logger
	guilds  map[string]struct{}
	timeout time.Duration
	handle  MemberUpdateFunc
}

// NewGateway builds a gateway. An empty guildIDs list accepts every guild.
func NewGateway(session *discordgo.Session, guildIDs []string, timeout time.Duration, handle MemberUpdateFunc, logger *zap.Logger) *Gateway {
	guilds := make(map[string]struct{}, len(guildIDs))
	for _, id := range guildIDs {
		guilds[id] = struct{}{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{session: session, logger: logger, guilds: guilds, timeout: timeout, handle: handle}
}

// Start registers the handler and opens the websocket.
func (g *Gateway) Start() error {
	g.session.AddHandler(g.onMemberUpdate)
	g.session.AddHandler(g.onReady)
	return g.session.Open()
}

// onReady asks the gateway for every member of the watched guilds so that
// later updates carry their previous state.
func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	guildIDs := g.readyGuilds(r)
	g.logger.Info("discord gateway ready", zap.String("user", r.User.Username), zap.Int("guilds", len(guildIDs)))
	for _, id := range guildIDs {
		if err := s.RequestGuildMembers(id, "", 0, "", false); err != nil {
			g.logger.Warn("could not request guild members", zap.String("guild_id", id), zap.Error(err))
		}
	}
}

func (g *Gateway) readyGuilds(r *discordgo.Ready) []string {
	var ids []string
	for _, guild := range r.Guilds {
		if guild != nil && g.accepts(guild.ID) {
			ids = append(ids, guild.ID)
		}
	}
	return ids
}

func (g *Gateway) accepts(guildID string) bool {
	if len(g.guilds) == 0 {
		return true
	}
	_, ok := g.guilds[guildID]
	return ok
}

// Close shuts the websocket.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// discordgo runs each handler on its own goroutine, so updates for different
// members are processed concurrently.
func (g *Gateway) onMemberUpdate(s *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if e.Member == nil || e.User == nil {
		return
	}
	if !g.accepts(e.GuildID) {
		return
	}
	if e.BeforeUpdate == nil {
		// not in the state cache yet; the next guild sync picks the change up
		g.logger.Warn("member update without cached previous state",
			zap.String("guild_id", e.GuildID), zap.String("user_id", e.User.ID))
		return
	}

	names := map[string]string{}
	if guild, err := s.State.Guild(e.GuildID); err == nil {
		names = roleNameIndex(guild.Roles)
	}
	before := ToMember(e.GuildID, e.BeforeUpdate, names)
	after := ToMember(e.GuildID, e.Member, names)

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	g.handle(ctx, &before, &after)
}
