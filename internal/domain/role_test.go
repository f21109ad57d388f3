package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoleHierarchyOrder(t *testing.T) {
	h := DefaultRoleHierarchy()
	roles := h.Roles()
	require.Len(t, roles, 7)
	assert.Equal(t, RoleManagingPartner, roles[0].Name)
	assert.Equal(t, RoleParalegal, roles[len(roles)-1].Name)
	for i := 1; i < len(roles); i++ {
		assert.GreaterOrEqual(t, roles[i-1].Level, roles[i].Level)
	}

	lvl, ok := h.Level(RolePartner)
	assert.True(t, ok)
	assert.Equal(t, 5, lvl)
	assert.Equal(t, 0, h.LevelOf("Client"))
	assert.False(t, h.IsStaffRole("Client"))
}

func TestStaffRolesFiltersAndOrders(t *testing.T) {
	h := DefaultRoleHierarchy()
	got := h.StaffRoles([]string{"Client", RoleParalegal, "@everyone", RoleManagingPartner})
	assert.Equal(t, []string{RoleManagingPartner, RoleParalegal}, got)
	assert.Empty(t, h.StaffRoles([]string{"Client"}))
	assert.Equal(t, RoleManagingPartner, h.Highest([]string{RoleParalegal, RoleManagingPartner}))
	assert.Equal(t, "", h.Highest(nil))
}

func TestAtOrAbove(t *testing.T) {
	h := DefaultRoleHierarchy()
	assert.Equal(t, []string{RoleManagingPartner, RoleSeniorPartner, RolePartner}, h.AtOrAbove(5))
}

func TestParseRoleHierarchy(t *testing.T) {
	h, err := ParseRoleHierarchy("Clerk:1, Chief:9 ,Deputy:4")
	require.NoError(t, err)
	assert.Equal(t, []RoleLevel{{"Chief", 9}, {"Deputy", 4}, {"Clerk", 1}}, h.Roles())

	_, err = ParseRoleHierarchy("Chief")
	assert.Error(t, err)
	_, err = ParseRoleHierarchy("Chief:x")
	assert.Error(t, err)
	_, err = ParseRoleHierarchy("Chief:2,Chief:3")
	assert.Error(t, err)
	_, err = ParseRoleHierarchy("")
	assert.Error(t, err)
}

func TestClassifyChange(t *testing.T) {
	h := DefaultRoleHierarchy()
	cases := []struct {
		name     string
		old, new string
		want     ChangeType
	}{
		{"hire", "", RoleParalegal, ChangeHire},
		{"fire", RoleAssociate, "", ChangeFire},
		{"promotion", RoleAssociate, RoleSeniorAssociate, ChangePromotion},
		{"demotion", RoleSeniorPartner, RoleAssociate, ChangeDemotion},
		{"lateral", RoleAssociate, RoleJuniorAssociate, ChangeLateral},
		{"partner alias is lateral", RolePartner, RoleSeniorPartner, ChangeLateral},
		{"unchanged", RoleAssociate, RoleAssociate, ChangeNone},
		{"nothing", "", "", ChangeNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyChange(h, tc.old, tc.new))
		})
	}
}

func TestMemberHelpers(t *testing.T) {
	m := &Member{UserID: "42", Username: "jdoe", Roles: []MemberRole{{ID: "r1", Name: RoleParalegal}}}
	assert.Equal(t, []string{RoleParalegal}, m.RoleNames())
	id, ok := m.RoleID(RoleParalegal)
	assert.True(t, ok)
	assert.Equal(t, "r1", id)
	assert.Equal(t, "<@42>", m.Mention())
	assert.Equal(t, "jdoe", m.Label())
}
