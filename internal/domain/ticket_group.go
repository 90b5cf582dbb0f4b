package domain

import "time"

// TicketGroup is a department pool whose members may pick up its tickets.
type TicketGroup struct {
	ID           string
	DepartmentID string
	Name         string
	MemberIDs    []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMember reports whether userID belongs to the group.
func (g *TicketGroup) HasMember(userID string) bool {
	if g == nil {
		return false
	}
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
