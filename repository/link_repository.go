package repository

import (
	"context"

	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// LinkRepositoryImpl implements LinkRepository
type LinkRepositoryImpl struct {
	*BaseRepository[models.Link, models.LinkFilter]
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &LinkRepositoryImpl{BaseRepository: NewBaseRepository[models.Link, models.LinkFilter](db)}
}

func (r *LinkRepositoryImpl) applyFilter(db *gorm.DB, f models.LinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.OriginalURL != nil {
		db = db.Where("original_url = ?", *f.OriginalURL)
	}
	if f.ShortCode != nil {
		db = db.Where("short_code = ?", *f.ShortCode)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves links based on filter criteria
func (r *LinkRepositoryImpl) ByFilter(ctx context.Context, filter models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Link{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Link
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of links matching the filter
func (r *LinkRepositoryImpl) Count(ctx context.Context, filter models.LinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Link{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any link matching the filter exists
func (r *LinkRepositoryImpl) Exists(ctx context.Context, filter models.LinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// ByShortCode retrieves a link by its short code
func (r *LinkRepositoryImpl) ByShortCode(ctx context.Context, code string) (*models.Link, error) {
	filter := models.LinkFilter{ShortCode: &code}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByCampaignAndURL retrieves the link row for a campaign and original URL
func (r *LinkRepositoryImpl) ByCampaignAndURL(ctx context.Context, campaignID uint, originalURL string) (*models.Link, error) {
	filter := models.LinkFilter{CampaignID: &campaignID, OriginalURL: &originalURL}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ExistsShortCode checks whether a short code is already allocated
func (r *LinkRepositoryImpl) ExistsShortCode(ctx context.Context, code string) (bool, error) {
	return r.Exists(ctx, models.LinkFilter{ShortCode: &code})
}

// IncrementClicks atomically bumps the click counters of a link
func (r *LinkRepositoryImpl) IncrementClicks(ctx context.Context, id uint, unique bool) error {
	db := r.getDB(ctx)
	updates := map[string]any{
		"total_clicks": gorm.Expr("total_clicks + 1"),
		"updated_at":   utils.UTCNow(),
	}
	if unique {
		updates["unique_clicks"] = gorm.Expr("unique_clicks + 1")
	}
	return db.Model(&models.Link{}).Where("id = ?", id).Updates(updates).Error
}
