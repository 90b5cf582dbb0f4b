package domain

import "time"

// TicketType classifies a ticket (incident, request, ...).
type TicketType struct {
	ID       string
	Name     string
	IsActive bool
}

// TicketCategory groups tickets by subject. Development categories are
// exempt from automatic SLA and carry a manual due date instead.
type TicketCategory struct {
	ID            string
	ParentID      *string
	Name          string
	IsDevelopment bool
	IsActive      bool
}

// TicketPriority carries the fallback SLA targets in hours.
type TicketPriority struct {
	ID              string
	Name            string
	Level           int
	ResponseHours   *int
	ResolutionHours *int
	IsActive        bool
}

// SlaRule maps an optional (type, priority, category) combination to targets in minutes.
type SlaRule struct {
	ID                string
	TypeID            *string
	PriorityID        string
	CategoryID        *string
	ResponseMinutes   *int
	ResolutionMinutes *int
	BusinessHoursOnly bool
	IsActive          bool
	CreatedAt         time.Time
}
