// Package policy holds the pure authorization predicates for ticket actions.
package policy

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Capability names an action an actor may take on a ticket.
type Capability string

const (
	CapView                Capability = "view"
	CapCreate              Capability = "create"
	CapUpdate              Capability = "update"
	CapAttach              Capability = "attach"
	CapManageCollaborators Capability = "manage_collaborators"
	CapManageVendorCosts   Capability = "manage_vendor_costs"
	CapDelete              Capability = "delete"
	CapAssign              Capability = "assign"
	CapChangeStatus        Capability = "change_status"
	CapSetDueDate          Capability = "set_due_date"
	CapConfirmClosure      Capability = "confirm_closure"
	CapComment             Capability = "comment"
)

// AllCapabilities in presentation order.
var AllCapabilities = []Capability{
	CapView, CapCreate, CapUpdate, CapAttach, CapManageCollaborators, CapManageVendorCosts,
	CapDelete, CapAssign, CapChangeStatus, CapSetDueDate, CapConfirmClosure, CapComment,
}

// TicketFacts is the subset of ticket state the predicates read.
type TicketFacts struct {
	DepartmentID  string
	RequesterID   string
	AssigneeID    string
	Collaborators []string
	GroupID       string
	GroupMembers  []string
	Development   bool
}

// FactsFor builds facts from a ticket, its group (optional) and its category (optional).
func FactsFor(ticket *domain.Ticket, group *domain.TicketGroup, category *domain.TicketCategory) TicketFacts {
	facts := TicketFacts{
		DepartmentID:  ticket.DepartmentID,
		RequesterID:   ticket.RequesterID,
		Collaborators: ticket.Collaborators,
	}
	if ticket.AssigneeID != nil {
		facts.AssigneeID = *ticket.AssigneeID
	}
	if ticket.GroupID != nil {
		facts.GroupID = *ticket.GroupID
		if group != nil && group.ID == *ticket.GroupID {
			facts.GroupMembers = group.MemberIDs
		}
	}
	if category != nil {
		facts.Development = category.IsDevelopment
	}
	return facts
}

func (f TicketFacts) isRequester(userID string) bool {
	return f.RequesterID != "" && f.RequesterID == userID
}

func (f TicketFacts) isAssignee(userID string) bool {
	return f.AssigneeID != "" && f.AssigneeID == userID
}

func (f TicketFacts) isCollaborator(userID string) bool {
	return contains(f.Collaborators, userID)
}

func (f TicketFacts) isGroupMember(userID string) bool {
	return f.GroupID != "" && contains(f.GroupMembers, userID)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func authenticated(actor domain.Actor) bool {
	return actor.UserID != "" && actor.Role.Valid()
}

// CanView: admins always; staff by department, assignment, requester, collaborator or
// group membership; requesters only their own tickets.
func CanView(actor domain.Actor, f TicketFacts) bool {
	if !authenticated(actor) {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStaff:
		return actor.InDepartment(f.DepartmentID) ||
			f.isAssignee(actor.UserID) ||
			f.isRequester(actor.UserID) ||
			f.isCollaborator(actor.UserID) ||
			f.isGroupMember(actor.UserID)
	case domain.RoleRequester:
		return f.isRequester(actor.UserID)
	}
	return false
}

// CanCreate allows any authenticated role.
func CanCreate(actor domain.Actor) bool {
	return authenticated(actor)
}

// CanEdit backs update, attach, manage_collaborators and manage_vendor_costs.
func CanEdit(actor domain.Actor, f TicketFacts) bool {
	if !authenticated(actor) {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStaff:
		return actor.InDepartment(f.DepartmentID) || f.isAssignee(actor.UserID)
	}
	return false
}

// CanDelete is admin only.
func CanDelete(actor domain.Actor, _ TicketFacts) bool {
	return authenticated(actor) && actor.IsAdmin()
}

// CanAssign: admins always; staff by department or membership of the ticket's group.
func CanAssign(actor domain.Actor, f TicketFacts) bool {
	if !authenticated(actor) {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStaff:
		return actor.InDepartment(f.DepartmentID) || f.isGroupMember(actor.UserID)
	}
	return false
}

// CanChangeStatus: admins always; staff when assignee or in the ticket's department.
func CanChangeStatus(actor domain.Actor, f TicketFacts) bool {
	if !authenticated(actor) {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStaff:
		return f.isAssignee(actor.UserID) || actor.InDepartment(f.DepartmentID)
	}
	return false
}

// CanSetDueDate: development categories only, admins only.
func CanSetDueDate(actor domain.Actor, f TicketFacts) bool {
	return f.Development && authenticated(actor) && actor.IsAdmin()
}

// CanConfirmClosure: only the original requester.
func CanConfirmClosure(actor domain.Actor, f TicketFacts) bool {
	return authenticated(actor) && f.isRequester(actor.UserID)
}

// CanComment mirrors CanView.
func CanComment(actor domain.Actor, f TicketFacts) bool {
	return CanView(actor, f)
}

// Can dispatches a capability to its predicate. Unknown capabilities are denied.
func Can(actor domain.Actor, f TicketFacts, capability Capability) bool {
	switch capability {
	case CapView:
		return CanView(actor, f)
	case CapCreate:
		return CanCreate(actor)
	case CapUpdate, CapAttach, CapManageCollaborators, CapManageVendorCosts:
		return CanEdit(actor, f)
	case CapDelete:
		return CanDelete(actor, f)
	case CapAssign:
		return CanAssign(actor, f)
	case CapChangeStatus:
		return CanChangeStatus(actor, f)
	case CapSetDueDate:
		return CanSetDueDate(actor, f)
	case CapConfirmClosure:
		return CanConfirmClosure(actor, f)
	case CapComment:
		return CanComment(actor, f)
	}
	return false
}

// Capabilities evaluates every capability for presentation layers.
func Capabilities(actor domain.Actor, f TicketFacts) map[Capability]bool {
	result := make(map[Capability]bool, len(AllCapabilities))
	for _, capability := range AllCapabilities {
		result[capability] = Can(actor, f, capability)
	}
	return result
}
