package domain

import "time"

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID              string
	Number          string
	Title           string
	Description     string
	TypeID          string
	CategoryID      string
	SubcategoryID   *string
	PriorityID      string
	DepartmentID    string
	AssigneeID      *string
	GroupID         *string
	RequesterID     string
	Collaborators   []string
	StatusID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	DueDate         *time.Time
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// HasCollaborator reports whether userID is listed as a collaborator.
func (t *Ticket) HasCollaborator(userID string) bool {
	for _, id := range t.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}
