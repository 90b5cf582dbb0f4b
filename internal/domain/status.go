package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known status slugs the lifecycle engine relies on.
const (
	StatusSlugNew                 = "new"
	StatusSlugAssigned            = "assigned"
	StatusSlugInProgress          = "in_progress"
	StatusSlugPending             = "pending"
	StatusSlugResolved            = "resolved"
	StatusSlugWaitingConfirmation = "waiting_confirmation"
	StatusSlugClosed              = "closed"
)

// RequiredStatusSlugs must be present in the catalog for the engine to run.
var RequiredStatusSlugs = []string{StatusSlugNew, StatusSlugWaitingConfirmation, StatusSlugClosed}

// TicketStatus is an ordered catalog entry.
type TicketStatus struct {
	ID        string
	Name      string
	Slug      string
	SortOrder int
	IsClosed  bool
	IsActive  bool
}

// MissingStatusError lists required slugs absent from the catalog.
type MissingStatusError struct {
	Slugs []string
}

func (e *MissingStatusError) Error() string {
	return fmt.Sprintf("status catalog missing required slugs: %s", strings.Join(e.Slugs, ", "))
}

// StatusCatalog indexes the active statuses by id and slug.
type StatusCatalog struct {
	ordered []TicketStatus
	byID    map[string]TicketStatus
	bySlug  map[string]TicketStatus
}

// NewStatusCatalog builds a catalog from active statuses, ordered by SortOrder.
func NewStatusCatalog(statuses []TicketStatus) *StatusCatalog {
	c := &StatusCatalog{
		byID:   make(map[string]TicketStatus, len(statuses)),
		bySlug: make(map[string]TicketStatus, len(statuses)),
	}
	for _, st := range statuses {
		if !st.IsActive {
			continue
		}
		c.ordered = append(c.ordered, st)
		c.byID[st.ID] = st
		c.bySlug[st.Slug] = st
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].SortOrder < c.ordered[j].SortOrder
	})
	return c
}

// Validate checks the given slugs (or RequiredStatusSlugs when none are given).
func (c *StatusCatalog) Validate(slugs ...string) error {
	if len(slugs) == 0 {
		slugs = RequiredStatusSlugs
	}
	var missing []string
	for _, slug := range slugs {
		if _, ok := c.bySlug[slug]; !ok {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		return &MissingStatusError{Slugs: missing}
	}
	return nil
}

// ByID returns the active status with the given id.
func (c *StatusCatalog) ByID(id string) (TicketStatus, bool) {
	st, ok := c.byID[id]
	return st, ok
}

// BySlug returns the active status with the given slug.
func (c *StatusCatalog) BySlug(slug string) (TicketStatus, bool) {
	st, ok := c.bySlug[slug]
	return st, ok
}

// All returns active statuses in display order.
func (c *StatusCatalog) All() []TicketStatus {
	return append([]TicketStatus(nil), c.ordered...)
}
