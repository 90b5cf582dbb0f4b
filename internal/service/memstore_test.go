package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// memState is a snapshot of every table. Transactions work on a deep copy that replaces
// the committed state only when the callback succeeds.
type memState struct {
	seq         int
	tickets     map[string]domain.Ticket
	activities  []domain.TicketActivity
	statuses    []domain.TicketStatus
	types       map[string]domain.TicketType
	categories  map[string]domain.TicketCategory
	priorities  map[string]domain.TicketPriority
	rules       []domain.SlaRule
	groups      map[string]domain.TicketGroup
	users       map[string]domain.User
	departments map[string]domain.Department
	comments    []domain.TicketComment
	attachments []domain.TicketAttachment
}

func newMemState() *memState {
	return &memState{
		tickets:     map[string]domain.Ticket{},
		types:       map[string]domain.TicketType{},
		categories:  map[string]domain.TicketCategory{},
		priorities:  map[string]domain.TicketPriority{},
		groups:      map[string]domain.TicketGroup{},
		users:       map[string]domain.User{},
		departments: map[string]domain.Department{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:         s.seq,
		tickets:     make(map[string]domain.Ticket, len(s.tickets)),
		activities:  append([]domain.TicketActivity(nil), s.activities...),
		statuses:    append([]domain.TicketStatus(nil), s.statuses...),
		types:       make(map[string]domain.TicketType, len(s.types)),
		categories:  make(map[string]domain.TicketCategory, len(s.categories)),
		priorities:  make(map[string]domain.TicketPriority, len(s.priorities)),
		rules:       append([]domain.SlaRule(nil), s.rules...),
		groups:      make(map[string]domain.TicketGroup, len(s.groups)),
		users:       make(map[string]domain.User, len(s.users)),
		departments: make(map[string]domain.Department, len(s.departments)),
		comments:    append([]domain.TicketComment(nil), s.comments...),
		attachments: append([]domain.TicketAttachment(nil), s.attachments...),
	}
	for k, v := range s.tickets {
		c.tickets[k] = copyTicket(v)
	}
	for k, v := range s.types {
		c.types[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.priorities {
		c.priorities[k] = v
	}
	for k, v := range s.groups {
		v.MemberIDs = append([]string(nil), v.MemberIDs...)
		c.groups[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.departments {
		c.departments[k] = v
	}
	return c
}

func (s *memState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func copyTicket(t domain.Ticket) domain.Ticket {
	t.Collaborators = append([]string(nil), t.Collaborators...)
	return t
}

// memStore implements repository.Store. Transactions are serialized, which stands in for
// the row locks taken by the Postgres implementation.
type memStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex
	state  *memState

	// failActivity makes every activity insert fail.
	failActivity error
	// afterListStale runs once, after the next stale-ticket listing returns.
	afterListStale func()
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (m *memStore) repos() memRepos { return memRepos{store: m} }

func (m *memStore) Tickets() repository.TicketRepository { return m.repos() }
func (m *memStore) Activities() repository.TicketActivityRepository { return memActivities{m.repos()} }
func (m *memStore) Catalog() repository.CatalogRepository { return memCatalog{m.repos()} }
func (m *memStore) Groups() repository.GroupRepository { return memGroups{m.repos()} }
func (m *memStore) Users() repository.UserRepository { return memUsers{m.repos()} }
func (m *memStore) Departments() repository.DepartmentRepository { return memDepartments{m.repos()} }
func (m *memStore) Comments() repository.TicketCommentRepository { return memComments{m.repos()} }
func (m *memStore) Attachments() repository.AttachmentRepository { return memAttachments{m.repos()} }

func (m *memStore) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.dataMu.Lock()
	working := m.state.clone()
	m.dataMu.Unlock()

	if err := fn(memTx{memRepos{store: m, tx: working}}); err != nil {
		return err
	}

	m.dataMu.Lock()
	m.state = working
	m.dataMu.Unlock()
	return nil
}

// snapshot returns a copy of the committed state for assertions.
func (m *memStore) snapshot() *memState {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	return m.state.clone()
}

func (m *memStore) seed(fn func(s *memState)) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	fn(m.state)
}

type memTx struct{ r memRepos }

func (t memTx) Tickets() repository.TicketRepository { return t.r }
func (t memTx) Activities() repository.TicketActivityRepository { return memActivities{t.r} }
func (t memTx) Catalog() repository.CatalogRepository { return memCatalog{t.r} }
func (t memTx) Groups() repository.GroupRepository { return memGroups{t.r} }
func (t memTx) Users() repository.UserRepository { return memUsers{t.r} }
func (t memTx) Departments() repository.DepartmentRepository { return memDepartments{t.r} }
func (t memTx) Comments() repository.TicketCommentRepository { return memComments{t.r} }
func (t memTx) Attachments() repository.AttachmentRepository { return memAttachments{t.r} }

// memRepos reads and writes either the transaction's working copy or, outside a
// transaction, the committed state under the data lock.
type memRepos struct {
	store *memStore
	tx    *memState
}

func (r memRepos) with(fn func(s *memState) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	return fn(r.store.state)
}

func (r memRepos) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.with(func(s *memState) error {
		ticket.ID = s.nextID("tkt")
		s.tickets[ticket.ID] = copyTicket(*ticket)
		return nil
	})
}

func (r memRepos) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.with(func(s *memState) error {
		if _, ok := s.tickets[ticket.ID]; !ok {
			return pgx.ErrNoRows
		}
		s.tickets[ticket.ID] = copyTicket(*ticket)
		return nil
	})
}

func (r memRepos) Delete(_ context.Context, id string) error {
	return r.with(func(s *memState) error {
		if _, ok := s.tickets[id]; !ok {
			return pgx.ErrNoRows
		}
		delete(s.tickets, id)
		return nil
	})
}

func (r memRepos) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var result *domain.Ticket
	err := r.with(func(s *memState) error {
		t, ok := s.tickets[id]
		if !ok {
			return pgx.ErrNoRows
		}
		c := copyTicket(t)
		result = &c
		return nil
	})
	return result, err
}

func (r memRepos) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memRepos) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.with(func(s *memState) error {
		for _, t := range s.tickets {
			if !matchesFilter(s, t, f) {
				continue
			}
			result = append(result, copyTicket(t))
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, err
}

func matchesFilter(s *memState, t domain.Ticket, f repository.TicketFilter) bool {
	if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
		return false
	}
	if f.DepartmentID != nil && t.DepartmentID != *f.DepartmentID {
		return false
	}
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.GroupID != nil && (t.GroupID == nil || *t.GroupID != *f.GroupID) {
		return false
	}
	if len(f.StatusIDs) > 0 && !containsString(f.StatusIDs, t.StatusID) {
		return false
	}
	if len(f.PriorityIDs) > 0 && !containsString(f.PriorityIDs, t.PriorityID) {
		return false
	}
	if scope := f.VisibleTo; scope != nil {
		visible := t.DepartmentID == scope.DepartmentID ||
			t.IsAssignedTo(scope.UserID) ||
			t.RequesterID == scope.UserID ||
			t.HasCollaborator(scope.UserID)
		if !visible && t.GroupID != nil {
			group := s.groups[*t.GroupID]
			visible = group.HasMember(scope.UserID)
		}
		if !visible {
			return false
		}
	}
	return true
}

func (r memRepos) ListStaleIDs(_ context.Context, statusID string, resolvedBefore time.Time, limit int) ([]string, error) {
	var stale []domain.Ticket
	err := r.with(func(s *memState) error {
		for _, t := range s.tickets {
			if t.StatusID == statusID && t.ResolvedAt != nil && t.ResolvedAt.Before(resolvedBefore) {
				stale = append(stale, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].ResolvedAt.Equal(*stale[j].ResolvedAt) {
			return stale[i].ResolvedAt.Before(*stale[j].ResolvedAt)
		}
		return stale[i].ID < stale[j].ID
	})
	var ids []string
	for i, t := range stale {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, t.ID)
	}
	if hook := r.store.afterListStale; hook != nil && r.tx == nil {
		r.store.afterListStale = nil
		hook()
	}
	return ids, nil
}

func (r memRepos) AddCollaborator(_ context.Context, ticketID, userID string) error {
	return r.with(func(s *memState) error {
		t, ok := s.tickets[ticketID]
		if !ok {
			return pgx.ErrNoRows
		}
		if !t.HasCollaborator(userID) {
			t.Collaborators = append(t.Collaborators, userID)
			s.tickets[ticketID] = t
		}
		return nil
	})
}

func (r memRepos) RemoveCollaborator(_ context.Context, ticketID, userID string) error {
	return r.with(func(s *memState) error {
		t, ok := s.tickets[ticketID]
		if !ok || !t.HasCollaborator(userID) {
			return pgx.ErrNoRows
		}
		var kept []string
		for _, id := range t.Collaborators {
			if id != userID {
				kept = append(kept, id)
			}
		}
		t.Collaborators = kept
		s.tickets[ticketID] = t
		return nil
	})
}

type memActivities struct{ memRepos }

func (r memActivities) Create(_ context.Context, activity *domain.TicketActivity) error {
	if r.store.failActivity != nil {
		return r.store.failActivity
	}
	return r.with(func(s *memState) error {
		activity.ID = s.nextID("act")
		s.activities = append(s.activities, *activity)
		return nil
	})
}

func (r memActivities) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	var result []domain.TicketActivity
	err := r.with(func(s *memState) error {
		for _, a := range s.activities {
			if a.TicketID == ticketID {
				result = append(result, a)
			}
		}
		return nil
	})
	if offset > len(result) {
		return nil, err
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, err
}

type memCatalog struct{ memRepos }

func (r memCatalog) ListStatuses(_ context.Context) ([]domain.TicketStatus, error) {
	var result []domain.TicketStatus
	err := r.with(func(s *memState) error {
		for _, st := range s.statuses {
			if st.IsActive {
				result = append(result, st)
			}
		}
		return nil
	})
	return result, err
}

func (r memCatalog) GetType(_ context.Context, id string) (*domain.TicketType, error) {
	var result *domain.TicketType
	err := r.with(func(s *memState) error {
		v, ok := s.types[id]
		if !ok {
			return pgx.ErrNoRows
		}
		result = &v
		return nil
	})
	return result, err
}

func (r memCatalog) GetCategory(_ context.Context, id string) (*domain.TicketCategory, error) {
	var result *domain.TicketCategory
	err := r.with(func(s *memState) error {
		v, ok := s.categories[id]
		if !ok {
			return pgx.ErrNoRows
		}
		result = &v
		return nil
	})
	return result, err
}

func (r memCatalog) GetPriority(_ context.Context, id string) (*domain.TicketPriority, error) {
	var result *domain.TicketPriority
	err := r.with(func(s *memState) error {
		v, ok := s.priorities[id]
		if !ok {
			return pgx.ErrNoRows
		}
		result = &v
		return nil
	})
	return result, err
}

func (r memCatalog) ListSlaRules(_ context.Context, priorityID string) ([]domain.SlaRule, error) {
	var result []domain.SlaRule
	err := r.with(func(s *memState) error {
		for _, rule := range s.rules {
			if rule.PriorityID == priorityID && rule.IsActive {
				result = append(result, rule)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

type memGroups struct{ memRepos }

func (r memGroups) GetByID(_ context.Context, id string) (*domain.TicketGroup, error) {
	var result *domain.TicketGroup
	err := r.with(func(s *memState) error {
		v, ok := s.groups[id]
		if !ok {
			return pgx.ErrNoRows
		}
		v.MemberIDs = append([]string(nil), v.MemberIDs...)
		result = &v
		return nil
	})
	return result, err
}

func (r memGroups) ListByMember(_ context.Context, userID string) ([]domain.TicketGroup, error) {
	var result []domain.TicketGroup
	err := r.with(func(s *memState) error {
		for _, g := range s.groups {
			if g.HasMember(userID) {
				result = append(result, g)
			}
		}
		return nil
	})
	return result, err
}

type memUsers struct{ memRepos }

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	var result *domain.User
	err := r.with(func(s *memState) error {
		v, ok := s.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		result = &v
		return nil
	})
	return result, err
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var result *domain.User
	err := r.with(func(s *memState) error {
		for _, u := range s.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				result = &u
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return result, err
}

func (r memUsers) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	var result []domain.User
	err := r.with(func(s *memState) error {
		for _, id := range ids {
			if u, ok := s.users[id]; ok {
				result = append(result, u)
			}
		}
		return nil
	})
	return result, err
}

func (r memUsers) ListStaffByDepartment(_ context.Context, departmentID string) ([]domain.User, error) {
	var result []domain.User
	err := r.with(func(s *memState) error {
		for _, u := range s.users {
			if u.DepartmentID != nil && *u.DepartmentID == departmentID && u.Active &&
				(u.Role == domain.RoleStaff || u.Role == domain.RoleAdmin) {
				result = append(result, u)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, err
}

type memDepartments struct{ memRepos }

func (r memDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	var result *domain.Department
	err := r.with(func(s *memState) error {
		v, ok := s.departments[id]
		if !ok {
			return pgx.ErrNoRows
		}
		result = &v
		return nil
	})
	return result, err
}

func (r memDepartments) ListActive(_ context.Context) ([]domain.Department, error) {
	var result []domain.Department
	err := r.with(func(s *memState) error {
		for _, d := range s.departments {
			if d.IsActive {
				result = append(result, d)
			}
		}
		return nil
	})
	return result, err
}

type memComments struct{ memRepos }

func (r memComments) Create(_ context.Context, comment *domain.TicketComment) error {
	return r.with(func(s *memState) error {
		comment.ID = s.nextID("cmt")
		s.comments = append(s.comments, *comment)
		return nil
	})
}

func (r memComments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	var result []domain.TicketComment
	err := r.with(func(s *memState) error {
		for _, c := range s.comments {
			if c.TicketID == ticketID {
				result = append(result, c)
			}
		}
		return nil
	})
	return result, err
}

type memAttachments struct{ memRepos }

func (r memAttachments) Create(_ context.Context, attachment *domain.TicketAttachment) error {
	return r.with(func(s *memState) error {
		attachment.ID = s.nextID("att")
		s.attachments = append(s.attachments, *attachment)
		return nil
	})
}

func (r memAttachments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	var result []domain.TicketAttachment
	err := r.with(func(s *memState) error {
		for _, a := range s.attachments {
			if a.TicketID == ticketID {
				result = append(result, a)
			}
		}
		return nil
	})
	return result, err
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
