// Package access decides which tickets and assets an actor may see or act on.
// Every decision takes an explicit Actor; nothing here reads request or
// session state.
package access

import "assetdesk-backend/internal/model"

// Actor identifies who is performing a request.
type Actor struct {
	ID         uint       `json:"id"`
	Role       model.Role `json:"role"`
	Department string     `json:"department"`
}

// IsEmployee, IsManager and IsAdmin test the actor's role.
func (a Actor) IsEmployee() bool { return a.Role == model.RoleEmployee }
func (a Actor) IsManager() bool  { return a.Role == model.RoleManager }
func (a Actor) IsAdmin() bool    { return a.Role == model.RoleAdmin }

// Unrestricted reports whether the role has no visibility predicate at all.
func (a Actor) Unrestricted() bool {
	switch a.Role {
	case model.RoleEmployee, model.RoleManager, model.RoleAdmin:
		return false
	}
	return true
}

// CanAdministerUsers reports whether the actor may manage user accounts.
func (a Actor) CanAdministerUsers() bool {
	return a.IsAdmin() || a.Unrestricted()
}

// CanManageAssets reports whether the actor may create and edit assets.
func (a Actor) CanManageAssets() bool {
	return !a.IsEmployee()
}
