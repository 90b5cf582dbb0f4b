package domain

import "time"

// ActivityAction enumerates audit entry kinds.
type ActivityAction string

const (
	ActivityCreated             ActivityAction = "created"
	ActivityStatusChanged       ActivityAction = "status_changed"
	ActivityAssigned            ActivityAction = "assigned"
	ActivityUnassigned          ActivityAction = "unassigned"
	ActivityCommented           ActivityAction = "commented"
	ActivityAttachmentAdded     ActivityAction = "attachment_added"
	ActivityPriorityChanged     ActivityAction = "priority_changed"
	ActivityCategoryChanged     ActivityAction = "category_changed"
	ActivityDueDateSet          ActivityAction = "due_date_set"
	ActivityCollaboratorAdded   ActivityAction = "collaborator_added"
	ActivityCollaboratorRemoved ActivityAction = "collaborator_removed"
	ActivityClosed              ActivityAction = "closed"
	ActivityReopened            ActivityAction = "reopened"
	ActivityAutoClosed          ActivityAction = "auto_closed"
)

// TicketActivity is an immutable audit trail entry. A nil UserID marks a system action.
type TicketActivity struct {
	ID          string
	TicketID    string
	UserID      *string
	Action      ActivityAction
	OldValue    string
	NewValue    string
	Description string
	CreatedAt   time.Time
}
