package domain

import "time"

// ChangeType classifies a transition between staff roles.
type ChangeType string

const (
	ChangeHire      ChangeType = "hire"
	ChangeFire      ChangeType = "fire"
	ChangePromotion ChangeType = "promotion"
	ChangeDemotion  ChangeType = "demotion"
	ChangeLateral   ChangeType = "lateral"
	ChangeNone      ChangeType = "none"
)

// RoleChangeEvent is a classified staff-role transition for one member.
type RoleChangeEvent struct {
	Type      ChangeType
	UserID    string
	GuildID   string
	OldRole   string
	NewRole   string
	ChangedBy string
	Timestamp time.Time
}

// ClassifyChange derives the change type from the highest staff role held
// before and after. Empty strings mean no staff role.
func ClassifyChange(h *RoleHierarchy, oldHighest, newHighest string) ChangeType {
	switch {
	case oldHighest == "" && newHighest == "":
		return ChangeNone
	case oldHighest == "":
		return ChangeHire
	case newHighest == "":
		return ChangeFire
	case oldHighest == newHighest:
		return ChangeNone
	}
	oldLevel, newLevel := h.LevelOf(oldHighest), h.LevelOf(newHighest)
	switch {
	case newLevel > oldLevel:
		return ChangePromotion
	case newLevel < oldLevel:
		return ChangeDemotion
	default:
		return ChangeLateral
	}
}
