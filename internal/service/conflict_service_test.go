package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
)

const guild = "g1"

type conflictFixture struct {
	svc      *ConflictService
	platform *fakePlatform
	audit    *fakeAuditRepo
	history  *MemoryConflictHistory
	pauses   []time.Duration
	events   []events.Event
}

func newConflictFixture(t *testing.T, members ...*domain.Member) *conflictFixture {
	t.Helper()
	f := &conflictFixture{
		platform: newFakePlatform(members...),
		audit:    &fakeAuditRepo{},
		history:  NewMemoryConflictHistory(DefaultHistoryLimit),
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventRoleConflictResolved, func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	})
	f.svc = NewConflictService(ConflictDependencies{
		Platform:   f.platform,
		AuditRepo:  f.audit,
		History:    f.history,
		Dispatcher: dispatcher,
		PauseEvery: 50,
		Pause:      time.Second,
		Sleep:      func(_ context.Context, d time.Duration) { f.pauses = append(f.pauses, d) },
	})
	return f
}

func TestDetectIgnoresZeroOrOneStaffRole(t *testing.T) {
	f := newConflictFixture(t)
	assert.Nil(t, f.svc.Detect(newMember(guild, "u1")))
	assert.Nil(t, f.svc.Detect(newMember(guild, "u1", "Member", "Verified")))
	assert.Nil(t, f.svc.Detect(newMember(guild, "u1", "Associate", "Verified")))
	assert.Nil(t, f.svc.Detect(nil))
}

func TestDetectSeverity(t *testing.T) {
	f := newConflictFixture(t)
	cases := []struct {
		roles    []string
		severity domain.ConflictSeverity
	}{
		{[]string{"Managing Partner", "Senior Associate", "Paralegal"}, domain.SeverityCritical},
		{[]string{"Senior Partner", "Paralegal"}, domain.SeverityHigh},
		{[]string{"Managing Partner", "Senior Associate"}, domain.SeverityHigh},
		{[]string{"Senior Associate", "Paralegal"}, domain.SeverityMedium},
		{[]string{"Associate", "Paralegal"}, domain.SeverityLow},
		{[]string{"Senior Partner", "Partner"}, domain.SeverityLow},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.roles), func(t *testing.T) {
			conflict := f.svc.Detect(newMember(guild, "u1", append([]string{"Verified"}, tc.roles...)...))
			require.NotNil(t, conflict)
			assert.Equal(t, tc.severity, conflict.Severity)
			assert.Len(t, conflict.ConflictingRoles, len(tc.roles))
		})
	}
}

func TestDetectOrdersRolesHighestFirst(t *testing.T) {
	f := newConflictFixture(t)
	conflict := f.svc.Detect(newMember(guild, "u1", "Paralegal", "Managing Partner", "Associate"))
	require.NotNil(t, conflict)
	assert.Equal(t, "Managing Partner", conflict.HighestRole)
	assert.Equal(t, []string{"Managing Partner", "Associate", "Paralegal"}, conflict.RoleNames())
	assert.Equal(t, roleID("Associate"), conflict.ConflictingRoles[1].RoleID)
}

func TestResolveKeepsHighestAndIsIdempotent(t *testing.T) {
	m := newMember(guild, "u1", "Verified", "Senior Associate", "Paralegal", "Managing Partner")
	f := newConflictFixture(t, m)
	conflict := f.svc.Detect(m)
	require.NotNil(t, conflict)

	result := f.svc.Resolve(context.Background(), m, conflict, true)
	assert.True(t, result.Resolved)
	assert.Equal(t, "Managing Partner", result.KeptRole)
	assert.ElementsMatch(t, []string{"Senior Associate", "Paralegal"}, result.RemovedRoles)
	assert.Empty(t, result.Error)

	healed, err := f.platform.GetMember(context.Background(), guild, "u1")
	require.NoError(t, err)
	assert.Nil(t, f.svc.Detect(healed))
	assert.Contains(t, healed.RoleNames(), "Verified")

	assert.Len(t, f.platform.dmsTo("u1"), 1)
	require.Len(t, f.audit.byAction(domain.AuditRoleConflictResolved), 1)
	require.Len(t, f.events, 1)
	entries, err := f.history.List(context.Background(), guild)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResolvePartialFailure(t *testing.T) {
	m := newMember(guild, "u1", "Managing Partner", "Senior Associate", "Paralegal")
	f := newConflictFixture(t, m)
	f.platform.removeErrs[roleID("Paralegal")] = errBoom

	result := f.svc.Resolve(context.Background(), m, f.svc.Detect(m), true)
	assert.False(t, result.Resolved)
	assert.Contains(t, result.Error, "Failed to remove some roles")
	assert.Contains(t, result.Error, "1 of 2 failed")
	assert.Equal(t, []string{"Senior Associate"}, result.RemovedRoles)
	assert.Equal(t, []string{"Paralegal"}, result.FailedRoles)

	assert.Empty(t, f.platform.dmsTo("u1"))
	failed := f.audit.byAction(domain.AuditRoleConflictResolveFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, result.Error, failed[0].Details.Metadata["error"])
}

func TestResolveDMFailureDoesNotFlipOutcome(t *testing.T) {
	m := newMember(guild, "u1", "Associate", "Paralegal")
	f := newConflictFixture(t, m)
	f.platform.dmErr = errBoom

	result := f.svc.Resolve(context.Background(), m, f.svc.Detect(m), true)
	assert.True(t, result.Resolved)
	assert.Equal(t, []string{"Paralegal"}, result.RemovedRoles)
}

func TestResolveManually(t *testing.T) {
	m := newMember(guild, "u1", "Senior Partner", "Associate")
	f := newConflictFixture(t, m)
	conflict := f.svc.Detect(m)

	invalid := f.svc.ResolveManually(context.Background(), m, conflict, ManualResolution{RoleName: "Paralegal", ActorID: "op1"})
	assert.False(t, invalid.Resolved)
	assert.Equal(t, "Invalid role selection", invalid.Error)
	assert.Empty(t, f.platform.removed)

	result := f.svc.ResolveManually(context.Background(), m, conflict, ManualResolution{
		RoleName: "Associate",
		Reason:   "title was granted by mistake",
		ActorID:  "op1",
		Notify:   false,
	})
	assert.True(t, result.Resolved)
	assert.Equal(t, "Associate", result.KeptRole)
	assert.Equal(t, []string{"Senior Partner"}, result.RemovedRoles)
	assert.Empty(t, f.platform.dmsTo("u1"))

	audited := f.audit.byAction(domain.AuditRoleConflictResolved)
	require.Len(t, audited, 1)
	assert.Equal(t, "op1", audited[0].ActorID)
	assert.Equal(t, true, audited[0].Details.Metadata["manualResolution"])
	assert.Equal(t, "op1", audited[0].Details.Metadata["resolvedBy"])
	assert.Contains(t, audited[0].Details.Reason, "title was granted by mistake")

	entries, err := f.history.List(context.Background(), guild)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Manual)
}

func TestResolveMemberManuallyWithoutConflict(t *testing.T) {
	f := newConflictFixture(t, newMember(guild, "u1", "Associate"))
	_, err := f.svc.ResolveMemberManually(context.Background(), guild, "u1", ManualResolution{RoleName: "Associate"})
	assert.ErrorContains(t, err, "no staff role conflict")

	_, err = f.svc.ResolveMemberManually(context.Background(), guild, "missing", ManualResolution{RoleName: "Associate"})
	assert.ErrorContains(t, err, "member not found")
}

func TestScanGuildPacesAndReportsProgress(t *testing.T) {
	var members []*domain.Member
	for i := 0; i < 60; i++ {
		roles := []string{"Associate"}
		if i%20 == 0 {
			roles = append(roles, "Paralegal")
		}
		members = append(members, newMember(guild, fmt.Sprintf("u%02d", i), roles...))
	}
	f := newConflictFixture(t, members...)

	var last ScanProgress
	var calls int
	conflicts, err := f.svc.ScanGuild(context.Background(), guild, func(p ScanProgress) {
		calls++
		last = p
	})
	require.NoError(t, err)
	assert.Len(t, conflicts, 3)
	assert.Equal(t, 60, calls)
	assert.Equal(t, ScanProgress{Total: 60, Processed: 60, ConflictsFound: 3}, last)
	assert.Equal(t, []time.Duration{time.Second}, f.pauses)
}

func TestBulkResolveSkipsUnfetchableMembers(t *testing.T) {
	conflicted := newMember(guild, "u1", "Partner", "Paralegal")
	healed := newMember(guild, "u3", "Associate")
	f := newConflictFixture(t, conflicted, healed)

	input := []domain.RoleConflict{
		*f.svc.Detect(conflicted),
		{UserID: "u2", GuildID: guild},
		{UserID: "u3", GuildID: guild, HighestRole: "Associate"},
	}
	var progress []BulkProgress
	results := f.svc.BulkResolve(context.Background(), guild, input, func(p BulkProgress) {
		progress = append(progress, p)
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].Resolved)
	assert.Equal(t, []string{"Paralegal"}, results[0].RemovedRoles)
	assert.True(t, results[1].Resolved)
	assert.Empty(t, results[1].RemovedRoles)
	require.Len(t, progress, 3)
	assert.Equal(t, BulkProgress{ConflictsResolved: 2, Errors: 1}, progress[2])

	entries, err := f.history.List(context.Background(), guild)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestValidateAssignment(t *testing.T) {
	f := newConflictFixture(t)
	m := newMember(guild, "u1", "Associate", "Verified")

	v := f.svc.ValidateAssignment(m, "Partner")
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{"Associate"}, v.Conflicts)
	assert.NotEmpty(t, v.PreventionReason)

	assert.True(t, f.svc.ValidateAssignment(m, "Associate").IsValid)
	assert.True(t, f.svc.ValidateAssignment(m, "Moderator").IsValid)
	assert.True(t, f.svc.ValidateAssignment(newMember(guild, "u2"), "Partner").IsValid)
}

func TestCheckChangeForConflicts(t *testing.T) {
	f := newConflictFixture(t)
	m := newMember(guild, "u1", "Associate", "Partner")

	introduced := f.svc.CheckChangeForConflicts(m, []string{"Associate"}, []string{"Associate", "Partner"})
	assert.True(t, introduced.HasConflict)
	assert.True(t, introduced.ShouldPrevent)
	assert.NotEmpty(t, introduced.PreventionReason)

	existing := f.svc.CheckChangeForConflicts(m, []string{"Associate", "Partner"}, []string{"Associate", "Partner", "Verified"})
	assert.True(t, existing.HasConflict)
	assert.False(t, existing.ShouldPrevent)
	require.NotNil(t, existing.Conflict)
	assert.Equal(t, "Partner", existing.Conflict.HighestRole)

	clean := f.svc.CheckChangeForConflicts(m, []string{"Associate"}, []string{"Partner"})
	assert.False(t, clean.HasConflict)
	assert.False(t, clean.ShouldPrevent)
}

func TestConflictStatisticsAndClear(t *testing.T) {
	a := newMember(guild, "u1", "Associate", "Paralegal")
	b := newMember(guild, "u2", "Partner", "Paralegal")
	c := newMember(guild, "u3", "Partner", "Associate")
	f := newConflictFixture(t, a, b, c)
	f.platform.removeErrs[roleID("Associate")] = errBoom

	for _, m := range []*domain.Member{a, b, c} {
		f.svc.Resolve(context.Background(), m, f.svc.Detect(m), false)
	}

	stats, err := f.svc.GetConflictStatistics(context.Background(), guild)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalResolutions)
	assert.Equal(t, 2, stats.SuccessfulResolutions)
	assert.Equal(t, 1, stats.FailedResolutions)
	assert.Equal(t, map[string]int{"Paralegal": 2}, stats.MostCommonConflicts)

	require.NoError(t, f.svc.ClearConflictHistory(context.Background(), guild))
	stats, err = f.svc.GetConflictStatistics(context.Background(), guild)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalResolutions)
}

func detectedTotal(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "roster_conflicts_detected_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestConflictDetectionCountedOncePerObservation(t *testing.T) {
	f := newConflictFixture(t,
		newMember(guild, "u1", "Associate", "Partner"),
		newMember(guild, "u2", "Partner"),
	)
	reg := prometheus.NewRegistry()
	f.svc.metrics = observability.NewMetrics(reg)
	ctx := context.Background()

	conflicts, err := f.svc.ScanGuild(ctx, guild, nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 1.0, detectedTotal(t, reg))

	again, err := f.svc.DetectMember(ctx, guild, "u1")
	require.NoError(t, err)
	require.NotNil(t, again)
	results := f.svc.BulkResolve(ctx, guild, conflicts, nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Resolved)
	assert.Equal(t, 1.0, detectedTotal(t, reg))

	check := f.svc.CheckChangeForConflicts(newMember(guild, "u3", "Associate", "Partner"), []string{"Associate"}, []string{"Associate", "Partner"})
	require.True(t, check.HasConflict)
	assert.Equal(t, 2.0, detectedTotal(t, reg))
}
