package platform

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/firm-roster/internal/domain"
)

func TestGatewayWarnsOnUncachedMemberUpdate(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var calls int
	g := NewGateway(nil, []string{"g1"}, 0, func(context.Context, *domain.Member, *domain.Member) { calls++ }, zap.New(core))

	g.onMemberUpdate(nil, &discordgo.GuildMemberUpdate{
		Member: &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "u1"}, Roles: []string{"r1"}},
	})
	assert.Zero(t, calls)

	warned := logs.FilterMessage("member update without cached previous state").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, "u1", warned[0].ContextMap()["user_id"])
}

func TestGatewayIgnoresUnwatchedGuilds(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := NewGateway(nil, []string{"g1"}, 0, func(context.Context, *domain.Member, *domain.Member) {
		t.Fatal("handler must not run for unwatched guilds")
	}, zap.New(core))

	g.onMemberUpdate(nil, &discordgo.GuildMemberUpdate{
		Member: &discordgo.Member{GuildID: "g2", User: &discordgo.User{ID: "u1"}},
	})
	assert.Zero(t, logs.Len())
}

func TestGatewayReadyGuilds(t *testing.T) {
	ready := &discordgo.Ready{Guilds: []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}, nil}}

	watched := NewGateway(nil, []string{"g2"}, 0, nil, nil)
	assert.Equal(t, []string{"g2"}, watched.readyGuilds(ready))

	all := NewGateway(nil, nil, 0, nil, nil)
	assert.Equal(t, []string{"g1", "g2"}, all.readyGuilds(ready))
}
