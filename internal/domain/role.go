package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RoleLevel pairs a platform role name with its position in the firm hierarchy.
type RoleLevel struct {
	Name  string
	Level int
}

// Staff role names used by the default hierarchy.
const (
	RoleManagingPartner = "Managing Partner"
	RoleSeniorPartner   = "Senior Partner"
	RolePartner         = "Partner"
	RoleSeniorAssociate = "Senior Associate"
	RoleAssociate       = "Associate"
	RoleJuniorAssociate = "Junior Associate"
	RoleParalegal       = "Paralegal"
)

// RoleHierarchy is the ordered staff-role vocabulary, highest level first.
// Names absent from the hierarchy are not staff roles.
type RoleHierarchy struct {
	roles  []RoleLevel
	levels map[string]int
}

// DefaultRoleHierarchy returns the firm's standard staff ladder.
func DefaultRoleHierarchy() *RoleHierarchy {
	h, _ := NewRoleHierarchy([]RoleLevel{
		{Name: RoleManagingPartner, Level: 6},
		{Name: RoleSeniorPartner, Level: 5},
		{Name: RolePartner, Level: 5},
		{Name: RoleSeniorAssociate, Level: 3},
		{Name: RoleAssociate, Level: 2},
		{Name: RoleJuniorAssociate, Level: 2},
		{Name: RoleParalegal, Level: 1},
	})
	return h
}

// NewRoleHierarchy validates and orders the given roles by descending level.
// Roles sharing a level keep their relative input order.
func NewRoleHierarchy(roles []RoleLevel) (*RoleHierarchy, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("role hierarchy is empty")
	}
	ordered := make([]RoleLevel, 0, len(roles))
	levels := make(map[string]int, len(roles))
	for _, r := range roles {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("role hierarchy contains an empty name")
		}
		if r.Level <= 0 {
			return nil, fmt.Errorf("role %q has non-positive level %d", name, r.Level)
		}
		if _, dup := levels[name]; dup {
			return nil, fmt.Errorf("role %q declared twice", name)
		}
		levels[name] = r.Level
		ordered = append(ordered, RoleLevel{Name: name, Level: r.Level})
	}
	// insertion sort keeps equal levels stable
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Level > ordered[j-1].Level; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return &RoleHierarchy{roles: ordered, levels: levels}, nil
}

// ParseRoleHierarchy reads "Name:Level,Name:Level" definitions.
func ParseRoleHierarchy(spec string) (*RoleHierarchy, error) {
	var roles []RoleLevel
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("invalid role definition %q", part)
		}
		level, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid level in %q: %w", part, err)
		}
		roles = append(roles, RoleLevel{Name: strings.TrimSpace(part[:idx]), Level: level})
	}
	return NewRoleHierarchy(roles)
}

// Roles returns a copy of the ordered vocabulary.
func (h *RoleHierarchy) Roles() []RoleLevel {
	out := make([]RoleLevel, len(h.roles))
	copy(out, h.roles)
	return out
}

// Level reports the level of a staff role.
func (h *RoleHierarchy) Level(name string) (int, bool) {
	lvl, ok := h.levels[name]
	return lvl, ok
}

// LevelOf returns the level of name, or 0 for non-staff roles and "".
func (h *RoleHierarchy) LevelOf(name string) int {
	return h.levels[name]
}

// IsStaffRole reports whether name belongs to the vocabulary.
func (h *RoleHierarchy) IsStaffRole(name string) bool {
	_, ok := h.levels[name]
	return ok
}

// StaffRoles filters names down to staff roles, in hierarchy order.
func (h *RoleHierarchy) StaffRoles(names []string) []string {
	held := make(map[string]struct{}, len(names))
	for _, n := range names {
		held[n] = struct{}{}
	}
	var out []string
	for _, r := range h.roles {
		if _, ok := held[r.Name]; ok {
			out = append(out, r.Name)
		}
	}
	return out
}

// Highest returns the first vocabulary entry present in names, or "".
func (h *RoleHierarchy) Highest(names []string) string {
	staff := h.StaffRoles(names)
	if len(staff) == 0 {
		return ""
	}
	return staff[0]
}

// AtOrAbove lists every staff role name whose level is >= min.
func (h *RoleHierarchy) AtOrAbove(min int) []string {
	var out []string
	for _, r := range h.roles {
		if r.Level >= min {
			out = append(out, r.Name)
		}
	}
	return out
}
