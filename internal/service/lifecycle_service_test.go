package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/firm-roster/internal/domain"
)

func TestHandleObservedChangeIgnoresNonStaffUpdates(t *testing.T) {
	f := newEngineFixture(t, nil, nil, nil)
	out := f.lifecycle.HandleObservedChange(context.Background(),
		newMember(guild, "u1", "Verified"), newMember(guild, "u1", "Verified", "Muted"))
	assert.Equal(t, OutcomeIgnored, out.Status)
	assert.Empty(t, f.audit.entries)
}

func TestHandleObservedChangeHire(t *testing.T) {
	after := newMember(guild, "u1", "Verified", "Associate")
	f := newEngineFixture(t, []*domain.Member{after}, nil, nil)

	out := f.lifecycle.HandleObservedChange(context.Background(), newMember(guild, "u1", "Verified"), after)
	assert.Equal(t, OutcomeApplied, out.Status)
	assert.Equal(t, domain.ChangeHire, out.Change)
	assert.Equal(t, "Associate", out.NewRole)

	rec := f.staffRepo.record(guild, "u1")
	require.NotNil(t, rec)
	assert.Equal(t, "Associate", rec.Role)
	assert.Equal(t, domain.StaffStatusActive, rec.Status)
	require.Len(t, rec.PromotionHistory, 1)
	assert.Equal(t, domain.ActionHire, rec.PromotionHistory[0].ActionType)

	assert.Len(t, f.audit.byAction(domain.AuditStaffHired), 1)
	assert.Equal(t, []domain.ChangeType{domain.ChangeHire}, f.channels.calls)
}

func TestHandleObservedChangeHireReactivatesTerminatedRecord(t *testing.T) {
	terminated := activeRecord("u1", "Paralegal")
	terminated.Status = domain.StaffStatusTerminated
	terminated.PromotionHistory = []domain.PromotionEntry{{ToRole: "Paralegal", ActionType: domain.ActionHire}}
	after := newMember(guild, "u1", "Associate")
	f := newEngineFixture(t, []*domain.Member{after}, []domain.StaffRecord{terminated}, nil)

	out := f.lifecycle.HandleObservedChange(context.Background(), newMember(guild, "u1"), after)
	require.Equal(t, OutcomeApplied, out.Status)

	rec := f.staffRepo.record(guild, "u1")
	assert.True(t, rec.Active())
	assert.Nil(t, rec.TerminatedAt)
	assert.Equal(t, "Associate", rec.Role)
	assert.Len(t, rec.PromotionHistory, 2)
}

func TestHandleObservedChangeFireCascades(t *testing.T) {
	f := newEngineFixture(t,
		[]*domain.Member{newMember(guild, "u1")},
		[]domain.StaffRecord{activeRecord("u1", "Associate"), activeRecord("s1", "Senior Partner")},
		[]domain.Case{{ID: "c1", GuildID: guild, ChannelID: "ch1", AssignedLawyerIDs: []string{"u1"}}},
	)
	f.platform.channels["ch1"] = true

	out := f.lifecycle.HandleObservedChange(context.Background(),
		newMember(guild, "u1", "Associate"), newMember(guild, "u1"))
	assert.Equal(t, OutcomeApplied, out.Status)
	assert.Equal(t, domain.ChangeFire, out.Change)
	require.NotNil(t, out.Cascade)
	assert.Equal(t, 1, out.Cascade.CasesAffected)

	assert.Nil(t, f.staffRepo.record(guild, "u1"))
	assert.Len(t, f.audit.byAction(domain.AuditStaffFired), 1)
	c, _ := f.caseRepo.GetByID(context.Background(), "c1")
	assert.Empty(t, c.AssignedLawyerIDs)
	assert.Contains(t, f.platform.postsTo("ch1")[0].Content, UrgentNoLawyersNotice)
}

func TestHandleObservedChangePromotionAndDemotion(t *testing.T) {
	f := newEngineFixture(t, nil, []domain.StaffRecord{activeRecord("u1", "Associate")}, nil)

	out := f.lifecycle.HandleObservedChange(context.Background(),
		newMember(guild, "u1", "Associate"), newMember(guild, "u1", "Senior Associate"))
	assert.Equal(t, domain.ChangePromotion, out.Change)
	assert.Equal(t, "Senior Associate", f.staffRepo.record(guild, "u1").Role)

	out = f.lifecycle.HandleObservedChange(context.Background(),
		newMember(guild, "u1", "Senior Associate"), newMember(guild, "u1", "Paralegal"))
	assert.Equal(t, domain.ChangeDemotion, out.Change)

	rec := f.staffRepo.record(guild, "u1")
	assert.Equal(t, "Paralegal", rec.Role)
	require.Len(t, rec.PromotionHistory, 2)
	assert.Equal(t, domain.PromotionEntry{
		FromRole:   "Senior Associate",
		ToRole:     "Paralegal",
		ActorID:    domain.SystemActorID,
		Reason:     rec.PromotionHistory[1].Reason,
		ActionType: domain.ActionDemotion,
		At:         rec.PromotionHistory[1].At,
	}, rec.PromotionHistory[1])
	assert.Len(t, f.audit.byAction(domain.AuditStaffPromoted), 1)
	assert.Len(t, f.audit.byAction(domain.AuditStaffDemoted), 1)
}

func TestHandleObservedChangeLateralIsLoggedOnly(t *testing.T) {
	f := newEngineFixture(t, nil, []domain.StaffRecord{activeRecord("u1", "Senior Partner")}, nil)

	out := f.lifecycle.HandleObservedChange(context.Background(),
		newMember(guild, "u1", "Senior Partner"), newMember(guild, "u1", "Partner"))
	assert.Equal(t, OutcomeLateral, out.Status)
	assert.Equal(t, domain.ChangeLateral, out.Change)
	assert.Equal(t, "Senior Partner", f.staffRepo.record(guild, "u1").Role)
	assert.Empty(t, f.audit.entries)
	assert.Empty(t, f.channels.calls)
}

func TestHandleObservedChangePreventsNewConflict(t *testing.T) {
	after := newMember(guild, "u1", "Associate", "Partner")
	f := newEngineFixture(t, []*domain.Member{after}, []domain.StaffRecord{activeRecord("u1", "Associate")}, nil)

	out := f.lifecycle.HandleObservedChange(context.Background(), newMember(guild, "u1", "Associate"), after)
	assert.Equal(t, OutcomePrevented, out.Status)
	assert.NotEmpty(t, out.Reason)
	assert.Empty(t, f.platform.removed)
	assert.Equal(t, "Associate", f.staffRepo.record(guild, "u1").Role)
}

func TestHandleObservedChangeHealsExistingConflictFirst(t *testing.T) {
	after := newMember(guild, "u1", "Partner", "Associate", "Paralegal")
	f := newEngineFixture(t, []*domain.Member{after}, []domain.StaffRecord{activeRecord("u1", "Associate")}, nil)

	out := f.lifecycle.HandleObservedChange(context.Background(),
		newMember(guild, "u1", "Associate", "Paralegal"), after)

	require.NotNil(t, out.Resolution)
	assert.True(t, out.Resolution.Resolved)
	assert.ElementsMatch(t, []string{"Associate", "Paralegal"}, out.Resolution.RemovedRoles)
	assert.Equal(t, domain.ChangePromotion, out.Change)
	assert.Equal(t, "Partner", f.staffRepo.record(guild, "u1").Role)

	live, err := f.platform.GetMember(context.Background(), guild, "u1")
	require.NoError(t, err)
	assert.Nil(t, f.conflicts.Detect(live))
}

func TestHandleObservedChangeRecoversFromPanics(t *testing.T) {
	f := newEngineFixture(t, nil, nil, nil)
	broken := NewLifecycleService(LifecycleDependencies{Platform: f.platform, Conflicts: f.conflicts})

	assert.NotPanics(t, func() {
		out := broken.HandleObservedChange(context.Background(), newMember(guild, "u1"), newMember(guild, "u1", "Associate"))
		assert.Equal(t, OutcomeFailed, out.Status)
		assert.NotEmpty(t, out.Error)
	})
}

func TestSyncGuild(t *testing.T) {
	members := []*domain.Member{
		newMember(guild, "u1", "Associate"),
		newMember(guild, "u2", "Partner"),
		newMember(guild, "u3", "Verified"),
	}
	for i := 0; i < 57; i++ {
		members = append(members, newMember(guild, fmt.Sprintf("guest%d", i)))
	}
	f := newEngineFixture(t, members, []domain.StaffRecord{
		activeRecord("u2", "Partner"),
		activeRecord("u3", "Associate"),
		activeRecord("u4", "Paralegal"),
	}, nil)

	_, ok, err := f.lifecycle.GetLastSyncTimestamp(context.Background(), guild)
	require.NoError(t, err)
	assert.False(t, ok)

	touched, err := f.lifecycle.SyncGuild(context.Background(), guild)
	require.NoError(t, err)
	assert.Equal(t, 3, touched)
	assert.Equal(t, 1, f.pauses)

	assert.True(t, f.staffRepo.record(guild, "u1").Active())
	assert.True(t, f.staffRepo.record(guild, "u2").Active())
	assert.Equal(t, domain.StaffStatusTerminated, f.staffRepo.record(guild, "u3").Status)
	assert.NotNil(t, f.staffRepo.record(guild, "u4").TerminatedAt)

	hired := f.audit.byAction(domain.AuditStaffHired)
	require.Len(t, hired, 1)
	assert.Equal(t, domain.SyncActorID, hired[0].ActorID)
	terminated := f.audit.byAction(domain.AuditStaffSyncTerminated)
	require.Len(t, terminated, 2)
	for _, e := range terminated {
		assert.Equal(t, domain.SyncActorID, e.ActorID)
	}

	_, ok, err = f.lifecycle.GetLastSyncTimestamp(context.Background(), guild)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncGuildInterruptedKeepsLastTimestamp(t *testing.T) {
	f := newEngineFixture(t, []*domain.Member{newMember(guild, "u1", "Associate")}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.lifecycle.SyncGuild(ctx, guild)
	require.ErrorIs(t, err, context.Canceled)

	_, ok, err := f.lifecycle.GetLastSyncTimestamp(context.Background(), guild)
	require.NoError(t, err)
	assert.False(t, ok)
}
