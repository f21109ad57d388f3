package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/platform"
)

// UrgentNoLawyersNotice is the headline posted when a case loses its last lawyer.
const UrgentNoLawyersNotice = "URGENT: This case has no lawyers assigned!"

const noticeFooter = "Firm Roster"

func conflictResolvedDM(guildID string, result domain.ConflictResolutionResult, manual bool, reason string) platform.Message {
	desc := "You held more than one staff role, which is not allowed. Your extra roles were removed."
	if manual {
		desc = "A senior staff member resolved your staff role conflict."
	}
	fields := []platform.EmbedField{
		{Name: "Kept Role", Value: result.KeptRole, Inline: true},
		{Name: "Removed Roles", Value: joinOrNone(result.RemovedRoles), Inline: true},
	}
	if reason != "" {
		fields = append(fields, platform.EmbedField{Name: "Reason", Value: reason})
	}
	return platform.Message{Embed: &platform.Embed{
		Title:       "Staff Role Conflict Resolved",
		Description: desc,
		Color:       platform.ColorInfo,
		Fields:      fields,
		Footer:      noticeFooter + " • " + guildID,
		Timestamp:   time.Now().UTC(),
	}}
}

func urgentNoLawyersMessage(c *domain.Case, departed *domain.Member, seniorIDs []string) platform.Message {
	mentions := make([]string, 0, len(seniorIDs))
	for _, id := range seniorIDs {
		mentions = append(mentions, domain.MentionUser(id))
	}
	return platform.Message{
		Content:  strings.Join(mentions, " ") + " " + UrgentNoLawyersNotice,
		Mentions: seniorIDs,
		Embed: &platform.Embed{
			Title:       UrgentNoLawyersNotice,
			Description: fmt.Sprintf("%s is no longer available and case %s has no remaining lawyers. Please assign a lawyer immediately.", departed.Label(), c.Label()),
			Color:       platform.ColorDanger,
			Fields: []platform.EmbedField{
				{Name: "Case", Value: c.Label(), Inline: true},
				{Name: "Title", Value: valueOrDash(c.Title), Inline: true},
			},
			Footer:    noticeFooter,
			Timestamp: time.Now().UTC(),
		},
	}
}

func seniorUrgentDM(c *domain.Case, guildID string) platform.Message {
	return platform.Message{Embed: &platform.Embed{
		Title:       UrgentNoLawyersNotice,
		Description: fmt.Sprintf("Case %s (%s) needs a lawyer assigned as soon as possible.", c.Label(), valueOrDash(c.Title)),
		Color:       platform.ColorDanger,
		Footer:      noticeFooter + " • " + guildID,
		Timestamp:   time.Now().UTC(),
	}}
}

func staffingChangeNotice(c *domain.Case, departed *domain.Member, change string, remaining int) platform.Message {
	return platform.Message{Embed: &platform.Embed{
		Title:       "Case Staffing Change",
		Description: fmt.Sprintf("%s has been removed from this case following a %s.", departed.Label(), change),
		Color:       platform.ColorWarning,
		Fields: []platform.EmbedField{
			{Name: "Case", Value: c.Label(), Inline: true},
			{Name: "Remaining Lawyers", Value: fmt.Sprintf("%d", remaining), Inline: true},
		},
		Footer:    noticeFooter,
		Timestamp: time.Now().UTC(),
	}}
}

func casesUnassignedDM(guildID string, cases []string, change string) platform.Message {
	return platform.Message{Embed: &platform.Embed{
		Title:       "Case Assignments Updated",
		Description: fmt.Sprintf("Following your %s you have been removed from the cases below.", change),
		Color:       platform.ColorWarning,
		Fields:      []platform.EmbedField{{Name: "Cases", Value: joinOrNone(cases)}},
		Footer:      noticeFooter + " • " + guildID,
		Timestamp:   time.Now().UTC(),
	}}
}

func leadClearedNotice(c *domain.Case, former *domain.Member, newRole string) platform.Message {
	return platform.Message{Embed: &platform.Embed{
		Title:       "Lead Attorney Required",
		Description: fmt.Sprintf("%s is now %s and can no longer serve as lead attorney. A new lead attorney must be assigned.", former.Label(), newRole),
		Color:       platform.ColorWarning,
		Fields:      []platform.EmbedField{{Name: "Case", Value: c.Label(), Inline: true}},
		Footer:      noticeFooter,
		Timestamp:   time.Now().UTC(),
	}}
}

func leadClearedDM(guildID string, cases []string, newRole string) platform.Message {
	return platform.Message{Embed: &platform.Embed{
		Title:       "Lead Attorney Designation Removed",
		Description: fmt.Sprintf("As %s you are no longer eligible to lead cases. You remain assigned, but a new lead attorney will be chosen.", newRole),
		Color:       platform.ColorWarning,
		Fields:      []platform.EmbedField{{Name: "Cases", Value: joinOrNone(cases)}},
		Footer:      noticeFooter + " • " + guildID,
		Timestamp:   time.Now().UTC(),
	}}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func valueOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
