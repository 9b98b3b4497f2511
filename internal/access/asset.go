package access

import (
	"gorm.io/gorm"

	"assetdesk-backend/internal/model"
)

// AssetAllows reports whether actor may see asset. Employees see the assets
// assigned to them, managers their department's assets and their own, admins
// everything.
func AssetAllows(actor Actor, a model.Asset) bool {
	assignedToActor := a.AssignedTo != nil && *a.AssignedTo == actor.ID
	switch actor.Role {
	case model.RoleEmployee:
		return assignedToActor
	case model.RoleManager:
		return a.Department == actor.Department || assignedToActor
	}
	return true
}

// ApplyAssetScope narrows a query rooted at model.Asset to what actor may see.
func ApplyAssetScope(actor Actor, q *gorm.DB) *gorm.DB {
	switch actor.Role {
	case model.RoleEmployee:
		return q.Where("assets.assigned_to = ?", actor.ID)
	case model.RoleManager:
		return q.Where("(assets.department = ? OR assets.assigned_to = ?)", actor.Department, actor.ID)
	}
	return q
}
