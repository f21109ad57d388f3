package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-roster/internal/config"
	"github.com/spec-kit/firm-roster/internal/domain"
)

const (
	maxMemberPage   = 1000
	memberChannelRW = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
)

// DiscordPlatform implements Platform on top of a discordgo session.
type DiscordPlatform struct {
	session  *discordgo.Session
	logger   *zap.Logger
	pageSize int
}

// NewDiscordSession opens a bot session with the intents the engine relies on.
func NewDiscordSession(cfg config.DiscordConfig) (*discordgo.Session, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("DISCORD_BOT_TOKEN not provided")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	session.StateEnabled = true
	session.State.TrackMembers = true
	session.State.TrackRoles = true
	return session, nil
}

// NewDiscordPlatform wraps session.
func NewDiscordPlatform(session *discordgo.Session, cfg config.DiscordConfig, logger *zap.Logger) *DiscordPlatform {
	pageSize := cfg.MemberPageSize
	if pageSize <= 0 || pageSize > maxMemberPage {
		pageSize = maxMemberPage
	}
	return &DiscordPlatform{session: session, logger: logger, pageSize: pageSize}
}

// GetMember fetches a live member with role names resolved.
func (d *DiscordPlatform) GetMember(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError(err, "get member")
	}
	names, err := d.roleNames(ctx, guildID)
	if err != nil {
		return nil, err
	}
	member := ToMember(guildID, m, names)
	return &member, nil
}

// ListMembers pages through the full member list of a guild.
func (d *DiscordPlatform) ListMembers(ctx context.Context, guildID string) ([]domain.Member, error) {
	names, err := d.roleNames(ctx, guildID)
	if err != nil {
		return nil, err
	}
	var (
		out   []domain.Member
		after string
	)
	for {
		page, err := d.session.GuildMembers(guildID, after, d.pageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapRESTError(err, "list members")
		}
		for _, m := range page {
			out = append(out, ToMember(guildID, m, names))
		}
		if len(page) < d.pageSize || page[len(page)-1].User == nil {
			break
		}
		after = page[len(page)-1].User.ID
	}
	d.logger.Debug("listed guild members", zap.String("guild_id", guildID), zap.Int("count", len(out)))
	return out, nil
}

// RemoveRole removes a role and records reason in the guild audit log.
func (d *DiscordPlatform) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	err := d.session.GuildMemberRoleRemove(guildID, userID, roleID,
		discordgo.WithContext(ctx),
		discordgo.WithAuditLogReason(reason),
	)
	return wrapRESTError(err, "remove role")
}

// SendDirectMessage opens (or reuses) a DM channel and posts msg.
func (d *DiscordPlatform) SendDirectMessage(ctx context.Context, userID string, msg Message) error {
	ch, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return wrapRESTError(err, "open dm channel")
	}
	_, err = d.session.ChannelMessageSendComplex(ch.ID, toMessageSend(msg), discordgo.WithContext(ctx))
	return wrapRESTError(err, "send dm")
}

// GetChannel fetches a channel, preferring the state cache.
func (d *DiscordPlatform) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return &Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name}, nil
	}
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError(err, "get channel")
	}
	return &Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name}, nil
}

// SendChannelMessage posts msg to a guild channel.
func (d *DiscordPlatform) SendChannelMessage(ctx context.Context, channelID string, msg Message) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	return wrapRESTError(err, "send channel message")
}

// SetChannelAccess grants a member read/write access to a channel.
func (d *DiscordPlatform) SetChannelAccess(ctx context.Context, channelID, userID string) error {
	err := d.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		memberChannelRW, 0, discordgo.WithContext(ctx))
	return wrapRESTError(err, "set channel access")
}

// RevokeChannelAccess removes a member-specific overwrite from a channel.
func (d *DiscordPlatform) RevokeChannelAccess(ctx context.Context, channelID, userID string) error {
	err := d.session.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx))
	return wrapRESTError(err, "revoke channel access")
}

func (d *DiscordPlatform) roleNames(ctx context.Context, guildID string) (map[string]string, error) {
	if g, err := d.session.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return roleNameIndex(g.Roles), nil
	}
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError(err, "list guild roles")
	}
	return roleNameIndex(roles), nil
}

func roleNameIndex(roles []*discordgo.Role) map[string]string {
	out := make(map[string]string, len(roles))
	for _, r := range roles {
		out[r.ID] = r.Name
	}
	return out
}

// ToMember converts a discordgo member, resolving role ids through names.
// Roles missing from names are kept with an empty name so they never match
// the staff vocabulary.
func ToMember(guildID string, m *discordgo.Member, names map[string]string) domain.Member {
	member := domain.Member{GuildID: guildID, DisplayName: m.Nick}
	if m.GuildID != "" {
		member.GuildID = m.GuildID
	}
	if m.User != nil {
		member.UserID = m.User.ID
		member.Username = m.User.Username
		if member.DisplayName == "" {
			member.DisplayName = m.User.GlobalName
		}
	}
	for _, id := range m.Roles {
		member.Roles = append(member.Roles, domain.MemberRole{ID: id, Name: names[id]})
	}
	return member
}

func toMessageSend(msg Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: msg.Mentions,
		},
	}
	if msg.Embed != nil {
		embed := &discordgo.MessageEmbed{
			Title:       msg.Embed.Title,
			Description: msg.Embed.Description,
			Color:       msg.Embed.Color,
		}
		for _, f := range msg.Embed.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if msg.Embed.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Embed.Footer}
		}
		if !msg.Embed.Timestamp.IsZero() {
			embed.Timestamp = msg.Embed.Timestamp.Format(time.RFC3339)
		}
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return send
}

func wrapRESTError(err error, op string) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
