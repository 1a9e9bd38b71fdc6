package repository

import (
	"context"

	"github.com/orbitcrm/outreach-engine/models"
	"gorm.io/gorm"
)

// CampaignLogRepositoryImpl implements CampaignLogRepository
type CampaignLogRepositoryImpl struct {
	*BaseRepository[models.CampaignLog, models.CampaignLogFilter]
}

// NewCampaignLogRepository creates a new campaign log repository
func NewCampaignLogRepository(db *gorm.DB) CampaignLogRepository {
	return &CampaignLogRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignLog, models.CampaignLogFilter](db)}
}

func (r *CampaignLogRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignLogFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Action != nil {
		db = db.Where("action = ?", *f.Action)
	}
	if f.Success != nil {
		db = db.Where("success = ?", *f.Success)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves log entries based on filter criteria
func (r *CampaignLogRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignLogFilter, orderBy string, limit, offset int) ([]*models.CampaignLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of log entries matching the filter
func (r *CampaignLogRepositoryImpl) Count(ctx context.Context, filter models.CampaignLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignLog{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any log entry matching the filter exists
func (r *CampaignLogRepositoryImpl) Exists(ctx context.Context, filter models.CampaignLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
