// Package assignment computes the effect of assigning an asset to a user or
// releasing it.
package assignment

import (
	"strconv"
	"time"

	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

// NoticeKind says which message a user should receive.
type NoticeKind string

const (
	NoticeAssigned   NoticeKind = "assignment"
	NoticeUnassigned NoticeKind = "unassignment"
)

// Notice is a best-effort message for one user. It is delivered after the
// assignment is committed and its failure never undoes the assignment.
type Notice struct {
	Kind    NoticeKind
	UserID  uint
	AssetID uint
}

// StatusUpdate is the change to write to the asset row.
type StatusUpdate struct {
	Status     model.AssetStatus
	AssignedTo *uint
	UpdatedAt  time.Time
}

// Columns renders the update as a gorm column map.
func (u StatusUpdate) Columns() map[string]any {
	return map[string]any{
		"status":      u.Status,
		"assigned_to": u.AssignedTo,
		"updated_at":  u.UpdatedAt,
	}
}

// Result is everything a reassignment produces.
type Result struct {
	Update  StatusUpdate
	History model.AssetHistory
	Notices []Notice
}

// Reassign computes the new status, the audit row and the notices for moving
// asset to newAssignee (nil releases it). Calling it again with the same
// target yields the same state and another audit row; audit rows are never
// suppressed.
func Reassign(asset model.Asset, newAssignee *uint, actorID uint, now time.Time) (Result, error) {
	if newAssignee != nil && asset.Status == model.AssetRetired {
		return Result{}, errs.Validation("asset %s is retired and cannot be assigned", asset.Code)
	}

	oldAssignee := copyID(asset.AssignedTo)
	newID := copyID(newAssignee)

	res := Result{
		Update: StatusUpdate{AssignedTo: newID, UpdatedAt: now},
		History: model.AssetHistory{
			AssetID:      asset.ID,
			AssignedFrom: oldAssignee,
			AssignedTo:   newID,
			FromValue:    string(asset.Status),
			PerformedBy:  actorID,
			CreatedAt:    now,
		},
	}

	if newID != nil {
		res.Update.Status = model.AssetInUse
		res.History.ActionType = model.AssetActionAssigned
	} else {
		res.Update.Status = model.AssetAvailable
		res.History.ActionType = model.AssetActionUnassigned
	}
	res.History.ToValue = string(res.Update.Status)

	if oldAssignee != nil && (newID == nil || *oldAssignee != *newID) {
		res.Notices = append(res.Notices, Notice{Kind: NoticeUnassigned, UserID: *oldAssignee, AssetID: asset.ID})
	}
	if newID != nil {
		res.Notices = append(res.Notices, Notice{Kind: NoticeAssigned, UserID: *newID, AssetID: asset.ID})
	}
	return res, nil
}

// Describe renders a history row as a short sentence for the activity feed.
func Describe(h model.AssetHistory) string {
	switch h.ActionType {
	case model.AssetActionAssigned:
		if h.AssignedFrom != nil {
			return "reassigned from user " + id(h.AssignedFrom) + " to user " + id(h.AssignedTo)
		}
		return "assigned to user " + id(h.AssignedTo)
	case model.AssetActionUnassigned:
		if h.AssignedFrom == nil {
			return "released"
		}
		return "released by user " + id(h.AssignedFrom)
	}
	return string(h.ActionType)
}

func copyID(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func id(v *uint) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}
