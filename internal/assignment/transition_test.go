package assignment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

func uptr(v uint) *uint { return &v }

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestReassign_AssignFreeAsset(t *testing.T) {
	asset := model.Asset{ID: 1, Code: "LAP-1", Status: model.AssetAvailable}

	res, err := Reassign(asset, uptr(11), 99, now)
	require.NoError(t, err)

	assert.Equal(t, model.AssetInUse, res.Update.Status)
	assert.Equal(t, uptr(11), res.Update.AssignedTo)
	assert.Equal(t, now, res.Update.UpdatedAt)

	assert.Equal(t, model.AssetActionAssigned, res.History.ActionType)
	assert.Nil(t, res.History.AssignedFrom)
	assert.Equal(t, uptr(11), res.History.AssignedTo)
	assert.Equal(t, uint(99), res.History.PerformedBy)
	assert.Equal(t, "available", res.History.FromValue)
	assert.Equal(t, "in_use", res.History.ToValue)

	assert.Equal(t, []Notice{{Kind: NoticeAssigned, UserID: 11, AssetID: 1}}, res.Notices)
}

func TestReassign_SameTargetTwice(t *testing.T) {
	asset := model.Asset{ID: 1, Code: "LAP-1", Status: model.AssetAvailable}

	first, err := Reassign(asset, uptr(11), 99, now)
	require.NoError(t, err)

	asset.Status = first.Update.Status
	asset.AssignedTo = first.Update.AssignedTo

	second, err := Reassign(asset, uptr(11), 99, now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, model.AssetInUse, second.Update.Status)
	assert.Equal(t, first.Update.AssignedTo, second.Update.AssignedTo)
	// Audit trail is not idempotent: a second row is still produced.
	assert.Equal(t, model.AssetActionAssigned, second.History.ActionType)
	assert.Equal(t, uptr(11), second.History.AssignedFrom)
	// No unassignment notice when the assignee does not change.
	assert.Equal(t, []Notice{{Kind: NoticeAssigned, UserID: 11, AssetID: 1}}, second.Notices)
}

func TestReassign_MoveBetweenUsers(t *testing.T) {
	asset := model.Asset{ID: 2, Code: "MON-2", Status: model.AssetInUse, AssignedTo: uptr(5)}

	res, err := Reassign(asset, uptr(6), 1, now)
	require.NoError(t, err)

	assert.Equal(t, model.AssetInUse, res.Update.Status)
	assert.Equal(t, uptr(5), res.History.AssignedFrom)
	assert.Equal(t, uptr(6), res.History.AssignedTo)
	assert.Equal(t, []Notice{
		{Kind: NoticeUnassigned, UserID: 5, AssetID: 2},
		{Kind: NoticeAssigned, UserID: 6, AssetID: 2},
	}, res.Notices)
}

func TestReassign_Release(t *testing.T) {
	asset := model.Asset{ID: 3, Code: "PHN-3", Status: model.AssetInUse, AssignedTo: uptr(5)}

	res, err := Reassign(asset, nil, 1, now)
	require.NoError(t, err)

	assert.Equal(t, model.AssetAvailable, res.Update.Status)
	assert.Nil(t, res.Update.AssignedTo)
	assert.Equal(t, model.AssetActionUnassigned, res.History.ActionType)
	assert.Equal(t, uptr(5), res.History.AssignedFrom)
	assert.Nil(t, res.History.AssignedTo)
	assert.Equal(t, []Notice{{Kind: NoticeUnassigned, UserID: 5, AssetID: 3}}, res.Notices)
}

func TestReassign_ReleaseFreeAsset(t *testing.T) {
	res, err := Reassign(model.Asset{ID: 4, Status: model.AssetAvailable}, nil, 1, now)
	require.NoError(t, err)
	assert.Equal(t, model.AssetAvailable, res.Update.Status)
	assert.Empty(t, res.Notices)
	assert.Equal(t, model.AssetActionUnassigned, res.History.ActionType)
}

func TestReassign_DoesNotAliasInput(t *testing.T) {
	target := uint(11)
	res, err := Reassign(model.Asset{ID: 1, Status: model.AssetAvailable}, &target, 1, now)
	require.NoError(t, err)
	target = 12
	assert.Equal(t, uint(11), *res.Update.AssignedTo)
	assert.Equal(t, uint(11), *res.History.AssignedTo)
}

func TestReassign_RetiredAsset(t *testing.T) {
	_, err := Reassign(model.Asset{ID: 5, Code: "OLD-5", Status: model.AssetRetired}, uptr(1), 1, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	// Releasing a retired asset is allowed.
	_, err = Reassign(model.Asset{ID: 5, Code: "OLD-5", Status: model.AssetRetired, AssignedTo: uptr(1)}, nil, 1, now)
	assert.NoError(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "assigned to user 3", Describe(model.AssetHistory{ActionType: model.AssetActionAssigned, AssignedTo: uptr(3)}))
	assert.Equal(t, "reassigned from user 2 to user 3", Describe(model.AssetHistory{ActionType: model.AssetActionAssigned, AssignedFrom: uptr(2), AssignedTo: uptr(3)}))
	assert.Equal(t, "released by user 2", Describe(model.AssetHistory{ActionType: model.AssetActionUnassigned, AssignedFrom: uptr(2)}))
	assert.Equal(t, "created", Describe(model.AssetHistory{ActionType: model.AssetActionCreated}))
}
