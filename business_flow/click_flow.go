package businessflow

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/orbitcrm/outreach-engine/app/metrics"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
	"github.com/orbitcrm/outreach-engine/utils"
)

// ClickInput is the request context captured at the redirect endpoint
type ClickInput struct {
	ShortCode    string
	RecipientRef string
	IPAddress    string
	UserAgent    string
	Referrer     string
}

// ClickAttributor resolves short codes to their destination and records click
// events. Resolution and recording are separate so the redirect can be served
// even when accounting fails.
type ClickAttributor interface {
	ResolveLink(ctx context.Context, shortCode string) (*models.Link, error)
	RecordClick(ctx context.Context, link *models.Link, in ClickInput) (*models.Click, error)
}

// ClickFlowImpl implements ClickAttributor
type ClickFlowImpl struct {
	linkRepo      repository.LinkRepository
	clickRepo     repository.ClickRepository
	recipientRepo repository.RecipientRepository
	db            *gorm.DB
}

// NewClickFlow creates a new click attribution flow
func NewClickFlow(
	linkRepo repository.LinkRepository,
	clickRepo repository.ClickRepository,
	recipientRepo repository.RecipientRepository,
	db *gorm.DB,
) ClickAttributor {
	return &ClickFlowImpl{
		linkRepo:      linkRepo,
		clickRepo:     clickRepo,
		recipientRepo: recipientRepo,
		db:            db,
	}
}

// ResolveLink maps a short code to its link row
func (f *ClickFlowImpl) ResolveLink(ctx context.Context, shortCode string) (*models.Link, error) {
	if shortCode == "" {
		return nil, ErrLinkNotFound
	}
	link, err := f.linkRepo.ByShortCode(ctx, shortCode)
	if err != nil {
		return nil, NewBusinessError("LINK_LOOKUP_FAILED", "Failed to lookup link", err)
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

// RecordClick appends a click event and updates the link and recipient counters
// in one transaction. A click is unique when no prior click on the link from the
// same origin address exists within the tenant. Every click, unique or not,
// bumps the recipient's clicked count when the recipient is known.
func (f *ClickFlowImpl) RecordClick(ctx context.Context, link *models.Link, in ClickInput) (*models.Click, error) {
	agent := utils.ClassifyUserAgent(in.UserAgent)
	now := utils.UTCNow()

	click := &models.Click{
		LinkID:      link.ID,
		CampaignID:  link.CampaignID,
		TenantID:    link.TenantID,
		IPAddress:   in.IPAddress,
		Device:      agent.Device,
		Browser:     agent.Browser,
		OS:          agent.OS,
		UTMSource:   link.UTMSource,
		UTMMedium:   link.UTMMedium,
		UTMCampaign: link.UTMCampaign,
		UTMTerm:     link.UTMTerm,
		UTMContent:  link.UTMContent,
		CreatedAt:   now,
	}
	if ua := strings.TrimSpace(in.UserAgent); ua != "" {
		click.UserAgent = &ua
	}
	if ref := strings.TrimSpace(in.Referrer); ref != "" {
		click.Referrer = &ref
	}
	if in.RecipientRef != "" {
		// A garbled ref loses recipient attribution but never the click itself.
		if id, err := DecodeRecipientRef(in.RecipientRef); err == nil {
			click.RecipientID = &id
		}
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		seen, err := f.clickRepo.ExistsByLinkAndIP(txCtx, link.TenantID, link.ID, in.IPAddress)
		if err != nil {
			return fmt.Errorf("check click uniqueness: %w", err)
		}
		click.IsUnique = !seen

		if err := f.clickRepo.Save(txCtx, click); err != nil {
			return fmt.Errorf("save click: %w", err)
		}
		if err := f.linkRepo.IncrementClicks(txCtx, link.ID, click.IsUnique); err != nil {
			return fmt.Errorf("increment link clicks: %w", err)
		}
		if click.RecipientID != nil {
			if err := f.recipientRepo.RecordClick(txCtx, *click.RecipientID, now); err != nil {
				return fmt.Errorf("record recipient click: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CLICK_RECORDING_FAILED", "Failed to record click", err)
	}

	kind := "repeat"
	if click.IsUnique {
		kind = "unique"
	}
	metrics.ClicksRecorded.WithLabelValues(kind).Inc()

	return click, nil
}
