package domain

import "time"

// StaffStatus enumerates the employment state of a staff record.
type StaffStatus string

const (
	StaffStatusActive     StaffStatus = "active"
	StaffStatusTerminated StaffStatus = "terminated"
)

// PromotionAction labels an entry in a staff member's promotion history.
type PromotionAction string

const (
	ActionHire      PromotionAction = "hire"
	ActionFire      PromotionAction = "fire"
	ActionPromotion PromotionAction = "promotion"
	ActionDemotion  PromotionAction = "demotion"
)

// PromotionEntry is an append-only record of a role transition.
type PromotionEntry struct {
	FromRole   string          `json:"from_role"`
	ToRole     string          `json:"to_role"`
	ActorID    string          `json:"actor_id"`
	Reason     string          `json:"reason"`
	ActionType PromotionAction `json:"action_type"`
	At         time.Time       `json:"at"`
}

// StaffRecord is the firm's employment record for a guild member.
type StaffRecord struct {
	GuildID          string
	UserID           string
	Username         string
	Role             string
	Status           StaffStatus
	HiredAt          time.Time
	TerminatedAt     *time.Time
	PromotionHistory []PromotionEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the record is in active status.
func (s *StaffRecord) Active() bool {
	return s != nil && s.Status == StaffStatusActive
}
