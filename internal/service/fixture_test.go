package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

var baseTime = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

const (
	deptIT   = "IT"
	deptIPS  = "IPS"
	groupIPS = "grp-ips"
)

var (
	adminActor     = domain.Actor{UserID: "u-admin", Role: domain.RoleAdmin, DepartmentID: deptIT}
	staffITActor   = domain.Actor{UserID: "u-budi", Role: domain.RoleStaff, DepartmentID: deptIT}
	staffIPSActor  = domain.Actor{UserID: "u-sari", Role: domain.RoleStaff, DepartmentID: deptIPS}
	groupActor     = domain.Actor{UserID: "u-gilang", Role: domain.RoleStaff, DepartmentID: deptIT}
	requesterActor = domain.Actor{UserID: "u-rina", Role: domain.RoleRequester, DepartmentID: deptIPS}
	otherRequester = domain.Actor{UserID: "u-tono", Role: domain.RoleRequester, DepartmentID: deptIPS}
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

type fixture struct {
	store      *memStore
	clock      *clock.Fixed
	dispatcher *recordingDispatcher
	svc        *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	store.seed(seedCatalog)
	clk := clock.NewFixed(baseTime)
	dispatcher := &recordingDispatcher{}
	return &fixture{
		store:      store,
		clock:      clk,
		dispatcher: dispatcher,
		svc: NewTicketService(TicketDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Clock:      clk,
		}),
	}
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func tp(t time.Time) *time.Time { return &t }

func seedCatalog(s *memState) {
	s.statuses = []domain.TicketStatus{
		{ID: "st-new", Name: "New", Slug: domain.StatusSlugNew, SortOrder: 1, IsActive: true},
		{ID: "st-assigned", Name: "Assigned", Slug: domain.StatusSlugAssigned, SortOrder: 2, IsActive: true},
		{ID: "st-in-progress", Name: "In Progress", Slug: domain.StatusSlugInProgress, SortOrder: 3, IsActive: true},
		{ID: "st-pending", Name: "Pending", Slug: domain.StatusSlugPending, SortOrder: 4, IsActive: true},
		{ID: "st-resolved", Name: "Resolved", Slug: domain.StatusSlugResolved, SortOrder: 5, IsClosed: true, IsActive: true},
		{ID: "st-waiting", Name: "Waiting Confirmation", Slug: domain.StatusSlugWaitingConfirmation, SortOrder: 6, IsClosed: true, IsActive: true},
		{ID: "st-closed", Name: "Closed", Slug: domain.StatusSlugClosed, SortOrder: 7, IsClosed: true, IsActive: true},
		{ID: "st-archived", Name: "Archived", Slug: "archived", SortOrder: 8, IsClosed: true, IsActive: false},
	}
	s.types["incident"] = domain.TicketType{ID: "incident", Name: "Incident", IsActive: true}
	s.types["legacy"] = domain.TicketType{ID: "legacy", Name: "Legacy", IsActive: false}
	s.categories["cat-network"] = domain.TicketCategory{ID: "cat-network", Name: "Network", IsActive: true}
	s.categories["cat-printer"] = domain.TicketCategory{ID: "cat-printer", Name: "Printer", IsActive: true}
	s.categories["cat-dev"] = domain.TicketCategory{ID: "cat-dev", Name: "Development", IsDevelopment: true, IsActive: true}
	s.priorities["p1"] = domain.TicketPriority{ID: "p1", Name: "Critical", Level: 1, ResponseHours: intPtr(1), ResolutionHours: intPtr(4), IsActive: true}
	s.priorities["p2"] = domain.TicketPriority{ID: "p2", Name: "High", Level: 2, ResponseHours: intPtr(4), ResolutionHours: intPtr(24), IsActive: true}
	s.rules = []domain.SlaRule{
		{ID: "rule-printer", TypeID: strPtr("incident"), PriorityID: "p2", CategoryID: strPtr("cat-printer"),
			ResponseMinutes: intPtr(30), ResolutionMinutes: intPtr(120), IsActive: true},
	}
	s.departments[deptIT] = domain.Department{ID: deptIT, Code: deptIT, Name: "Information Technology", IsActive: true}
	s.departments[deptIPS] = domain.Department{ID: deptIPS, Code: deptIPS, Name: "Instalasi Pemeliharaan Sarana", IsActive: true}
	s.groups[groupIPS] = domain.TicketGroup{ID: groupIPS, DepartmentID: deptIPS, Name: "IPS Pool", MemberIDs: []string{groupActor.UserID}, IsActive: true}

	addUser := func(a domain.Actor, name string, active bool) {
		dept := a.DepartmentID
		s.users[a.UserID] = domain.User{
			ID: a.UserID, Name: name, Email: a.UserID + "@rs.example", Role: a.Role,
			DepartmentID: &dept, Active: active,
		}
	}
	addUser(adminActor, "Andi Admin", true)
	addUser(staffITActor, "Budi", true)
	addUser(staffIPSActor, "Sari", true)
	addUser(groupActor, "Gilang", true)
	addUser(requesterActor, "Rina", true)
	addUser(otherRequester, "Tono", true)
	addUser(domain.Actor{UserID: "u-former", Role: domain.RoleStaff, DepartmentID: deptIPS}, "Former", false)
}

// seedTicket inserts a ticket directly, bypassing creation rules.
func (f *fixture) seedTicket(t *testing.T, mutate func(tk *domain.Ticket)) *domain.Ticket {
	t.Helper()
	ticket := domain.Ticket{
		Number:       "TCK-SEED",
		Title:        "Seeded ticket",
		TypeID:       "incident",
		CategoryID:   "cat-network",
		PriorityID:   "p2",
		DepartmentID: deptIPS,
		RequesterID:  requesterActor.UserID,
		StatusID:     "st-new",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if mutate != nil {
		mutate(&ticket)
	}
	f.store.seed(func(s *memState) {
		ticket.ID = s.nextID("tkt")
		s.tickets[ticket.ID] = copyTicket(ticket)
	})
	return &ticket
}

func (f *fixture) ticket(t *testing.T, id string) domain.Ticket {
	t.Helper()
	tk, ok := f.store.snapshot().tickets[id]
	require.True(t, ok, "ticket %s missing", id)
	return tk
}

func (f *fixture) activities(ticketID string) []domain.TicketActivity {
	var result []domain.TicketActivity
	for _, a := range f.store.snapshot().activities {
		if a.TicketID == ticketID {
			result = append(result, a)
		}
	}
	return result
}

func (f *fixture) activitiesOf(ticketID string, action domain.ActivityAction) []domain.TicketActivity {
	var result []domain.TicketActivity
	for _, a := range f.activities(ticketID) {
		if a.Action == action {
			result = append(result, a)
		}
	}
	return result
}
