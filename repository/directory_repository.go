package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/orbitcrm/outreach-engine/models"
)

// directoryRow is the projection read from the CRM lead and contact tables.
// Those tables are owned by the directory service; this module only selects.
type directoryRow struct {
	ID    uint
	Name  string
	Email *string
	Phone *string
}

// DirectoryRepositoryImpl lists leads and contacts from the shared CRM schema
type DirectoryRepositoryImpl struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *gorm.DB) *DirectoryRepositoryImpl {
	return &DirectoryRepositoryImpl{db: db}
}

// ListLeads returns lead candidates for the tenant matching the filter
func (r *DirectoryRepositoryImpl) ListLeads(ctx context.Context, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error) {
	return r.list(ctx, "leads", models.RecipientSourceLead, tenantID, filter, limit)
}

// ListContacts returns contact candidates for the tenant matching the filter
func (r *DirectoryRepositoryImpl) ListContacts(ctx context.Context, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error) {
	return r.list(ctx, "contacts", models.RecipientSourceContact, tenantID, filter, limit)
}

func (r *DirectoryRepositoryImpl) list(ctx context.Context, table string, sourceType models.RecipientSourceType, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error) {
	query := r.db.WithContext(ctx).Table(table).
		Select("id, name, email, phone").
		Where("tenant_id = ?", tenantID).
		Where("deleted_at IS NULL")

	if filter.Owner != nil && *filter.Owner != "" {
		query = query.Where("owner = ?", *filter.Owner)
	}
	if filter.Status != nil && *filter.Status != "" {
		query = query.Where("status = ?", *filter.Status)
	}
	if len(filter.Tags) > 0 {
		query = query.Where("tags && ?", pq.StringArray(filter.Tags))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []directoryRow
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}

	out := make([]models.AudienceCandidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AudienceCandidate{
			Type:  sourceType,
			ID:    fmt.Sprintf("%s-%d", sourceType, row.ID),
			Name:  row.Name,
			Email: row.Email,
			Phone: row.Phone,
		})
	}
	return out, nil
}
