package domain

import "time"

// Role is the closed set of helpdesk roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleRequester Role = "pemohon"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleRequester:
		return true
	}
	return false
}

// User is any authenticated person: requester, staff or administrator.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	DepartmentID *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the caller of an engine operation.
type Actor struct {
	UserID       string
	Role         Role
	DepartmentID string
}

// ActorFromUser derives the acting identity from a persisted user.
func ActorFromUser(u *User) Actor {
	actor := Actor{UserID: u.ID, Role: u.Role}
	if u.DepartmentID != nil {
		actor.DepartmentID = *u.DepartmentID
	}
	return actor
}

// IsAdmin reports whether the actor has full access.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStaff reports whether the actor is department/group scoped staff.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

// InDepartment reports whether the actor's home department is departmentID.
func (a Actor) InDepartment(departmentID string) bool {
	return a.DepartmentID != "" && a.DepartmentID == departmentID
}
