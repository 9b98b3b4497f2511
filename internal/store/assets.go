package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/assignment"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/parse"
)

// AssetFilter narrows an asset listing. Warranty, when set, keeps only
// assets whose warranty classifies to that kind on Reference.
type AssetFilter struct {
	Status         model.AssetStatus
	Category       string
	Department     string
	Search         string
	Warranty       due.ExpiryKind
	Reference      time.Time
	WarrantyWindow int
}

// AssetPatch carries the editable asset fields. Nil fields are left alone.
// Status and assignment change only through ReassignAsset, except that an
// asset may be moved into or out of maintenance/retired here.
type AssetPatch struct {
	Name           *string
	Category       *string
	Brand          *string
	Model          *string
	SerialNumber   *string
	PurchaseDate   **datatypes.Date
	PurchaseCost   **float64
	Supplier       *string
	WarrantyExpiry **datatypes.Date
	Location       *string
	Department     *string
	Description    *string
	Status         *model.AssetStatus
}

func (p AssetPatch) columns() map[string]any {
	cols := map[string]any{}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	set("name", p.Name)
	set("category", p.Category)
	set("brand", p.Brand)
	set("model", p.Model)
	set("serial_number", p.SerialNumber)
	set("supplier", p.Supplier)
	set("location", p.Location)
	set("department", p.Department)
	set("description", p.Description)
	if p.PurchaseDate != nil {
		cols["purchase_date"] = *p.PurchaseDate
	}
	if p.PurchaseCost != nil {
		cols["purchase_cost"] = *p.PurchaseCost
	}
	if p.WarrantyExpiry != nil {
		cols["warranty_expiry"] = *p.WarrantyExpiry
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	return cols
}

// CreateAsset inserts a with its creation history row. The code must be
// unused; the unique index on assets.code catches a concurrent insert that
// slips past the lookup.
func (s *gormStore) CreateAsset(ctx context.Context, a *model.Asset, now time.Time) error {
	code, err := parse.AssetCode(a.Code)
	if err != nil {
		return err
	}
	a.Code = code
	if strings.TrimSpace(a.Name) == "" {
		return errs.Validation("asset name is required")
	}
	if a.Status == "" {
		a.Status = model.AssetAvailable
	}
	if !a.Status.Valid() {
		return errs.Validation("unknown asset status %q", a.Status)
	}
	if a.AssignedTo != nil {
		a.Status = model.AssetInUse
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Asset{}).Where("code = ?", a.Code).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("asset code %s: %w", a.Code, errs.ErrDuplicate)
		}
		if a.AssignedTo != nil {
			if err := requireActiveUser(tx, *a.AssignedTo); err != nil {
				return err
			}
		}
		if err := tx.Create(a).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("asset code %s: %w", a.Code, errs.ErrDuplicate)
			}
			return fmt.Errorf("failed to create asset: %w", err)
		}
		h := model.AssetHistory{
			AssetID:     a.ID,
			ActionType:  model.AssetActionCreated,
			AssignedTo:  a.AssignedTo,
			ToValue:     string(a.Status),
			PerformedBy: a.CreatedBy,
			CreatedAt:   a.CreatedAt,
		}
		return tx.Create(&h).Error
	})
}

func (s *gormStore) GetAsset(ctx context.Context, id uint) (*model.Asset, error) {
	var a model.Asset
	if err := s.db.WithContext(ctx).Preload("Assignee").First(&a, id).Error; err != nil {
		return nil, notFound(err, "asset", id)
	}
	return &a, nil
}

// UpdateAsset applies patch and records which fields changed.
func (s *gormStore) UpdateAsset(ctx context.Context, id uint, patch AssetPatch, actorID uint, now time.Time) (*model.Asset, error) {
	cols := patch.columns()
	if st, ok := cols["status"].(model.AssetStatus); ok {
		switch st {
		case model.AssetMaintenance, model.AssetRetired, model.AssetAvailable, model.AssetInUse:
		default:
			return nil, errs.Validation("unknown asset status %q", st)
		}
	}
	if name, ok := cols["name"].(string); ok && strings.TrimSpace(name) == "" {
		return nil, errs.Validation("asset name is required")
	}
	if len(cols) == 0 {
		return s.GetAsset(ctx, id)
	}
	cols["updated_at"] = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Asset
		if err := tx.First(&cur, id).Error; err != nil {
			return notFound(err, "asset", id)
		}
		if st, ok := cols["status"].(model.AssetStatus); ok && st != cur.Status {
			// in_use and available follow the assignee; the assign endpoint sets them.
			if (st == model.AssetInUse && cur.AssignedTo == nil) || (st == model.AssetAvailable && cur.AssignedTo != nil) {
				return errs.Validation("status %s does not match the asset's assignment", st)
			}
		}
		if err := updateIfUnchanged(tx, &model.Asset{}, id, cur.UpdatedAt, cols); err != nil {
			return err
		}
		h := model.AssetHistory{
			AssetID:     id,
			ActionType:  model.AssetActionUpdated,
			FromValue:   string(cur.Status),
			ToValue:     changedFields(cols),
			PerformedBy: actorID,
			CreatedAt:   now,
		}
		return tx.Create(&h).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetAsset(ctx, id)
}

func changedFields(cols map[string]any) string {
	var names []string
	for k := range cols {
		if k != "updated_at" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ListAssets returns the assets actor may see, narrowed by f, ordered by code.
func (s *gormStore) ListAssets(ctx context.Context, actor access.Actor, f AssetFilter) ([]model.Asset, error) {
	q := access.ApplyAssetScope(actor, s.db.WithContext(ctx).Model(&model.Asset{}))
	if f.Status != "" {
		q = q.Where("assets.status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("assets.category = ?", f.Category)
	}
	if f.Department != "" {
		q = q.Where("assets.department = ?", f.Department)
	}
	if term := parse.Search(f.Search); !term.Empty() {
		like := term.LikePattern()
		q = q.Where("("+parse.LikeAny("assets.code", "assets.name", "assets.serial_number", "assets.brand", "assets.model")+")",
			like, like, like, like, like)
	}

	var assets []model.Asset
	if err := q.Preload("Assignee").Order("assets.code").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	if f.Warranty == "" {
		return assets, nil
	}

	window := f.WarrantyWindow
	if window <= 0 {
		window = due.DefaultWarnWindowDays
	}
	out := assets[:0]
	for _, a := range assets {
		if due.ClassifyExpiry(f.Reference, parse.DateTime(a.WarrantyExpiry), window).Kind == f.Warranty {
			out = append(out, a)
		}
	}
	return out, nil
}

// ReassignAsset moves the asset to assignee (nil releases it). The read,
// the status update and the history row share one transaction, and the
// update only lands if nobody changed the asset since it was read.
func (s *gormStore) ReassignAsset(ctx context.Context, id uint, assignee *uint, actorID uint, now time.Time) (*model.Asset, []assignment.Notice, error) {
	var notices []assignment.Notice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Asset
		if err := tx.First(&cur, id).Error; err != nil {
			return notFound(err, "asset", id)
		}
		if assignee != nil {
			if err := requireActiveUser(tx, *assignee); err != nil {
				return err
			}
		}
		res, err := assignment.Reassign(cur, assignee, actorID, now)
		if err != nil {
			return err
		}
		if err := updateIfUnchanged(tx, &model.Asset{}, id, cur.UpdatedAt, res.Update.Columns()); err != nil {
			return err
		}
		if err := tx.Create(&res.History).Error; err != nil {
			return fmt.Errorf("failed to record asset history: %w", err)
		}
		notices = res.Notices
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return a, notices, nil
}

func (s *gormStore) AssetHistory(ctx context.Context, assetID uint) ([]model.AssetHistory, error) {
	if err := s.db.WithContext(ctx).Select("id").First(&model.Asset{}, assetID).Error; err != nil {
		return nil, notFound(err, "asset", assetID)
	}
	var rows []model.AssetHistory
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetID).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AssetsWithWarranty returns non-retired assets that have a warranty date.
func (s *gormStore) AssetsWithWarranty(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	err := s.db.WithContext(ctx).
		Where("warranty_expiry IS NOT NULL AND status <> ?", model.AssetRetired).
		Order("id").
		Find(&assets).Error
	return assets, err
}

func requireActiveUser(tx *gorm.DB, id uint) error {
	var u model.User
	if err := tx.Select("id", "is_active", "is_deleted").First(&u, id).Error; err != nil {
		return notFound(err, "user", id)
	}
	if u.IsDeleted || !u.IsActive {
		return errs.Validation("user %d is not active", id)
	}
	return nil
}
