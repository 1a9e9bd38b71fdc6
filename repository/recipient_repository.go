package repository

import (
	"context"
	"time"

	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// RecipientRepositoryImpl implements RecipientRepository
type RecipientRepositoryImpl struct {
	*BaseRepository[models.Recipient, models.RecipientFilter]
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &RecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Recipient, models.RecipientFilter](db),
	}
}

func (r *RecipientRepositoryImpl) applyFilter(db *gorm.DB, f models.RecipientFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.SourceType != nil {
		db = db.Where("source_type = ?", *f.SourceType)
	}
	if f.SourceID != nil {
		db = db.Where("source_id = ?", *f.SourceID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves recipients based on filter criteria
func (r *RecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.RecipientFilter, orderBy string, limit, offset int) ([]*models.Recipient, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Recipient{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Recipient
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of recipients matching the filter
func (r *RecipientRepositoryImpl) Count(ctx context.Context, filter models.RecipientFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Recipient{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any recipient matching the filter exists
func (r *RecipientRepositoryImpl) Exists(ctx context.Context, filter models.RecipientFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// ListPending returns pending recipients of a campaign in creation order
func (r *RecipientRepositoryImpl) ListPending(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Recipient, error) {
	status := models.RecipientStatusPending
	filter := models.RecipientFilter{CampaignID: &campaignID, Status: &status}
	return r.ByFilter(ctx, filter, "id ASC", limit, offset)
}

// CountByCampaign counts all recipients of a campaign
func (r *RecipientRepositoryImpl) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	return r.Count(ctx, models.RecipientFilter{CampaignID: &campaignID})
}

// CountByCampaignAndStatus counts recipients of a campaign in the given status
func (r *RecipientRepositoryImpl) CountByCampaignAndStatus(ctx context.Context, campaignID uint, status models.RecipientStatus) (int64, error) {
	return r.Count(ctx, models.RecipientFilter{CampaignID: &campaignID, Status: &status})
}

// MarkSent records a successful delivery outcome. The status guard keeps the
// transition one-way: only pending rows are ever updated.
func (r *RecipientRepositoryImpl) MarkSent(ctx context.Context, id uint, messageID string, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Recipient{}).
		Where("id = ? AND status = ?", id, models.RecipientStatusPending).
		Updates(map[string]any{
			"status":     models.RecipientStatusSent,
			"message_id": messageID,
			"sent_at":    at,
			"updated_at": utils.UTCNow(),
		}).Error
}

// MarkFailed records a failed delivery outcome
func (r *RecipientRepositoryImpl) MarkFailed(ctx context.Context, id uint, errText string, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Recipient{}).
		Where("id = ? AND status = ?", id, models.RecipientStatusPending).
		Updates(map[string]any{
			"status":     models.RecipientStatusFailed,
			"error_text": errText,
			"sent_at":    at,
			"updated_at": utils.UTCNow(),
		}).Error
}

// RecordClick atomically updates the recipient click counters
func (r *RecipientRepositoryImpl) RecordClick(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"clicked_count":    gorm.Expr("clicked_count + 1"),
			"first_clicked_at": gorm.Expr("COALESCE(first_clicked_at, ?)", at),
			"last_clicked_at":  at,
			"updated_at":       utils.UTCNow(),
		}).Error
}

// DeleteByCampaignAndID removes a single recipient from a draft campaign
func (r *RecipientRepositoryImpl) DeleteByCampaignAndID(ctx context.Context, campaignID, id uint) error {
	db := r.getDB(ctx)
	return db.Where("campaign_id = ?", campaignID).Delete(&models.Recipient{}, id).Error
}
