package dto

import "time"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	TypeID        string  `json:"type_id"`
	CategoryID    string  `json:"category_id"`
	SubcategoryID *string `json:"subcategory_id"`
	PriorityID    string  `json:"priority_id"`
	DepartmentID  string  `json:"department_id"`
	GroupID       *string `json:"group_id"`
	// RequesterID lets administrators file on behalf of someone else.
	RequesterID string `json:"requester_id,omitempty"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	TypeID          string     `json:"type_id"`
	CategoryID      string     `json:"category_id"`
	SubcategoryID   *string    `json:"subcategory_id"`
	PriorityID      string     `json:"priority_id"`
	DepartmentID    string     `json:"department_id"`
	GroupID         *string    `json:"group_id"`
	AssigneeID      *string    `json:"assignee_id"`
	RequesterID     string     `json:"requester_id"`
	Collaborators   []string   `json:"collaborators"`
	StatusID        string     `json:"status_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FirstResponseAt *time.Time `json:"first_response_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ClosedAt        *time.Time `json:"closed_at"`
	ResponseDueAt   *time.Time `json:"response_due_at"`
	ResolutionDueAt *time.Time `json:"resolution_due_at"`
	DueDate         *time.Time `json:"due_date"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	StatusID string `json:"status_id"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// RejectResolutionRequest payload.
type RejectResolutionRequest struct {
	Reason string `json:"reason"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	PriorityID string `json:"priority_id"`
}

// ChangeCategoryRequest payload.
type ChangeCategoryRequest struct {
	CategoryID string `json:"category_id"`
}

// SetDueDateRequest payload. DueDate is RFC3339.
type SetDueDateRequest struct {
	DueDate string `json:"due_date"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentRequest describes attachment metadata for a file already in storage.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	UploadedBy string    `json:"uploaded_by"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// CollaboratorRequest payload.
type CollaboratorRequest struct {
	UserID string `json:"user_id"`
}

// ActivityResponse is one audit trail entry. UserID is null for system actions.
type ActivityResponse struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	Action      string    `json:"action"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
