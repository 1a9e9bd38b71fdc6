// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/orbitcrm/outreach-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error
	// ClaimStatus performs a conditional status transition in a single UPDATE and
	// reports whether this caller won the claim. It is the only path into `running`.
	ClaimStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error)
	UpdateCounters(ctx context.Context, id uint, sent, failed, total int) error
	UpdateCustomEntries(ctx context.Context, id uint, entries pq.StringArray) error
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	Delete(ctx context.Context, id uint) error
}

// RecipientRepository defines operations for campaign recipients
type RecipientRepository interface {
	Repository[models.Recipient, models.RecipientFilter]
	ListPending(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Recipient, error)
	CountByCampaign(ctx context.Context, campaignID uint) (int64, error)
	CountByCampaignAndStatus(ctx context.Context, campaignID uint, status models.RecipientStatus) (int64, error)
	MarkSent(ctx context.Context, id uint, messageID string, at time.Time) error
	MarkFailed(ctx context.Context, id uint, errText string, at time.Time) error
	// RecordClick atomically bumps clicked_count, sets first_clicked_at only when
	// unset, and always refreshes last_clicked_at.
	RecordClick(ctx context.Context, id uint, at time.Time) error
	DeleteByCampaignAndID(ctx context.Context, campaignID, id uint) error
}

// LinkRepository defines operations for tracked links
type LinkRepository interface {
	Repository[models.Link, models.LinkFilter]
	ByShortCode(ctx context.Context, code string) (*models.Link, error)
	ByCampaignAndURL(ctx context.Context, campaignID uint, originalURL string) (*models.Link, error)
	ExistsShortCode(ctx context.Context, code string) (bool, error)
	// IncrementClicks atomically bumps total_clicks and, when unique, unique_clicks.
	IncrementClicks(ctx context.Context, id uint, unique bool) error
}

// ClickRepository defines operations for click events
type ClickRepository interface {
	Repository[models.Click, models.ClickFilter]
	ExistsByLinkAndIP(ctx context.Context, tenantID, linkID uint, ip string) (bool, error)
	CountByLink(ctx context.Context, linkID uint) (int64, error)
}

// CampaignLogRepository defines operations for the campaign audit trail
type CampaignLogRepository interface {
	Repository[models.CampaignLog, models.CampaignLogFilter]
}
