package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/firm-roster/internal/domain"
	"github.com/spec-kit/firm-roster/internal/platform"
	"github.com/spec-kit/firm-roster/internal/repository"
)

func roleID(name string) string { return "id:" + name }

func newMember(guildID, userID string, roles ...string) *domain.Member {
	m := &domain.Member{GuildID: guildID, UserID: userID, Username: userID}
	for _, r := range roles {
		m.Roles = append(m.Roles, domain.MemberRole{ID: roleID(r), Name: r})
	}
	return m
}

type sentMessage struct {
	target string
	msg    platform.Message
}

type fakePlatform struct {
	mu         sync.Mutex
	order      []string
	members    map[string]*domain.Member
	channels   map[string]bool
	removeErrs map[string]error
	dmErr      error
	getErr     error
	removed    []string
	dms        []sentMessage
	posts      []sentMessage
	granted    []string
	revoked    []string
}

func newFakePlatform(members ...*domain.Member) *fakePlatform {
	p := &fakePlatform{
		members:    map[string]*domain.Member{},
		channels:   map[string]bool{},
		removeErrs: map[string]error{},
	}
	for _, m := range members {
		p.add(m)
	}
	return p
}

func (p *fakePlatform) add(m *domain.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.members[m.UserID]; !ok {
		p.order = append(p.order, m.UserID)
	}
	cp := *m
	cp.Roles = append([]domain.MemberRole(nil), m.Roles...)
	p.members[m.UserID] = &cp
}

func (p *fakePlatform) GetMember(_ context.Context, _, userID string) (*domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	m, ok := p.members[userID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	cp := *m
	cp.Roles = append([]domain.MemberRole(nil), m.Roles...)
	return &cp, nil
}

func (p *fakePlatform) ListMembers(_ context.Context, _ string) ([]domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Member, 0, len(p.order))
	for _, id := range p.order {
		m := *p.members[id]
		m.Roles = append([]domain.MemberRole(nil), m.Roles...)
		out = append(out, m)
	}
	return out, nil
}

func (p *fakePlatform) RemoveRole(_ context.Context, _, userID, roleID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.removeErrs[roleID]; err != nil {
		return err
	}
	m, ok := p.members[userID]
	if !ok {
		return platform.ErrNotFound
	}
	kept := m.Roles[:0]
	for _, r := range m.Roles {
		if r.ID != roleID {
			kept = append(kept, r)
		}
	}
	m.Roles = kept
	p.removed = append(p.removed, roleID)
	return nil
}

func (p *fakePlatform) SendDirectMessage(_ context.Context, userID string, msg platform.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dmErr != nil {
		return p.dmErr
	}
	p.dms = append(p.dms, sentMessage{target: userID, msg: msg})
	return nil
}

func (p *fakePlatform) GetChannel(_ context.Context, channelID string) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.channels[channelID] {
		return nil, platform.ErrNotFound
	}
	return &platform.Channel{ID: channelID}, nil
}

func (p *fakePlatform) SendChannelMessage(_ context.Context, channelID string, msg platform.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, sentMessage{target: channelID, msg: msg})
	return nil
}

func (p *fakePlatform) SetChannelAccess(_ context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = append(p.granted, channelID+"/"+userID)
	return nil
}

func (p *fakePlatform) RevokeChannelAccess(_ context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, channelID+"/"+userID)
	return nil
}

func (p *fakePlatform) dmsTo(userID string) []platform.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platform.Message
	for _, d := range p.dms {
		if d.target == userID {
			out = append(out, d.msg)
		}
	}
	return out
}

func (p *fakePlatform) postsTo(channelID string) []platform.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platform.Message
	for _, d := range p.posts {
		if d.target == channelID {
			out = append(out, d.msg)
		}
	}
	return out
}

type fakeStaffRepo struct {
	mu      sync.Mutex
	records map[string]*domain.StaffRecord
}

func newFakeStaffRepo(records ...domain.StaffRecord) *fakeStaffRepo {
	r := &fakeStaffRepo{records: map[string]*domain.StaffRecord{}}
	for i := range records {
		rec := records[i]
		r.records[rec.GuildID+"/"+rec.UserID] = &rec
	}
	return r
}

func (r *fakeStaffRepo) Get(_ context.Context, guildID, userID string) (*domain.StaffRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[guildID+"/"+userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *rec
	cp.PromotionHistory = append([]domain.PromotionEntry(nil), rec.PromotionHistory...)
	return &cp, nil
}

func (r *fakeStaffRepo) Create(_ context.Context, staff *domain.StaffRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staff.CreatedAt = time.Now()
	staff.UpdatedAt = staff.CreatedAt
	cp := *staff
	r.records[staff.GuildID+"/"+staff.UserID] = &cp
	return nil
}

func (r *fakeStaffRepo) Update(_ context.Context, staff *domain.StaffRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := staff.GuildID + "/" + staff.UserID
	if _, ok := r.records[key]; !ok {
		return pgx.ErrNoRows
	}
	staff.UpdatedAt = time.Now()
	cp := *staff
	r.records[key] = &cp
	return nil
}

func (r *fakeStaffRepo) Delete(_ context.Context, guildID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := guildID + "/" + userID
	if _, ok := r.records[key]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.records, key)
	return nil
}

func (r *fakeStaffRepo) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roles := map[string]bool{}
	for _, name := range filter.Roles {
		roles[name] = true
	}
	var out []domain.StaffRecord
	for _, rec := range r.records {
		if filter.GuildID != "" && rec.GuildID != filter.GuildID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if len(roles) > 0 && !roles[rec.Role] {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *fakeStaffRepo) record(guildID, userID string) *domain.StaffRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[guildID+"/"+userID]
}

type fakeCaseRepo struct {
	mu        sync.Mutex
	cases     map[string]*domain.Case
	updateErr map[string]error
}

func newFakeCaseRepo(cases ...domain.Case) *fakeCaseRepo {
	r := &fakeCaseRepo{cases: map[string]*domain.Case{}, updateErr: map[string]error{}}
	for i := range cases {
		c := cases[i]
		r.cases[c.ID] = &c
	}
	return r
}

func copyCase(c *domain.Case) domain.Case {
	cp := *c
	cp.AssignedLawyerIDs = append([]string(nil), c.AssignedLawyerIDs...)
	if c.LeadAttorneyID != nil {
		lead := *c.LeadAttorneyID
		cp.LeadAttorneyID = &lead
	}
	return cp
}

func (r *fakeCaseRepo) Create(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyCase(c)
	r.cases[c.ID] = &cp
	return nil
}

func (r *fakeCaseRepo) Update(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr[c.ID]; err != nil {
		return err
	}
	if _, ok := r.cases[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := copyCase(c)
	r.cases[c.ID] = &cp
	return nil
}

func (r *fakeCaseRepo) GetByID(_ context.Context, id string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := copyCase(c)
	return &cp, nil
}

func (r *fakeCaseRepo) FindByLawyer(_ context.Context, guildID, userID string) ([]domain.Case, error) {
	return r.find(guildID, func(c *domain.Case) bool { return c.HasLawyer(userID) })
}

func (r *fakeCaseRepo) FindByLeadAttorney(_ context.Context, guildID, userID string) ([]domain.Case, error) {
	return r.find(guildID, func(c *domain.Case) bool { return c.IsLead(userID) })
}

func (r *fakeCaseRepo) find(guildID string, match func(*domain.Case) bool) ([]domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Case
	for _, c := range r.cases {
		if c.GuildID == guildID && match(c) {
			out = append(out, copyCase(c))
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *fakeAuditRepo) Add(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if filter.GuildID != "" && e.GuildID != filter.GuildID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeAuditRepo) byAction(action domain.AuditAction) []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fakeChannelAccess struct {
	mu    sync.Mutex
	calls []domain.ChangeType
	err   error
}

func (f *fakeChannelAccess) HandleRoleChange(_ context.Context, _ string, _ *domain.Member, _, _ string, change domain.ChangeType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, change)
	return f.err
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }
