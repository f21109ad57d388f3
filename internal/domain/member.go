package domain

// MemberRole is a role as it exists on the chat platform.
type MemberRole struct {
	ID   string
	Name string
}

// Member is a snapshot of a guild member and the roles they hold.
type Member struct {
	GuildID     string
	UserID      string
	Username    string
	DisplayName string
	Roles       []MemberRole
}

// RoleNames returns the names of every role the member holds.
func (m *Member) RoleNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		names = append(names, r.Name)
	}
	return names
}

// RoleID looks up the platform id of a held role by name.
func (m *Member) RoleID(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, r := range m.Roles {
		if r.Name == name {
			return r.ID, true
		}
	}
	return "", false
}

// Mention renders the platform mention syntax for the member.
func (m *Member) Mention() string {
	return MentionUser(m.UserID)
}

// Label is a human readable name for logs and notices.
func (m *Member) Label() string {
	if m == nil {
		return ""
	}
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if m.Username != "" {
		return m.Username
	}
	return m.UserID
}

// MentionUser renders the platform mention syntax for a user id.
func MentionUser(userID string) string {
	return "<@" + userID + ">"
}
