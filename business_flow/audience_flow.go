package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
	"gorm.io/gorm"
)

// DirectoryStore is the narrow collaborator over the CRM directory. Lead and
// contact CRUD lives outside this module; the resolver only ever lists.
type DirectoryStore interface {
	ListLeads(ctx context.Context, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error)
	ListContacts(ctx context.Context, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error)
}

// AudienceResolver turns a campaign's targeting specification into persisted
// recipient rows. Materialization happens exactly once per campaign.
type AudienceResolver interface {
	Resolve(ctx context.Context, campaign *models.Campaign) ([]models.AudienceCandidate, error)
	Materialize(ctx context.Context, campaign *models.Campaign) (int, error)
}

// AudienceResolverImpl implements AudienceResolver
type AudienceResolverImpl struct {
	directory     DirectoryStore
	recipientRepo repository.RecipientRepository
	campaignRepo  repository.CampaignRepository
	db            *gorm.DB
	maxRecipients int
}

// NewAudienceResolver creates a new audience resolver
func NewAudienceResolver(
	directory DirectoryStore,
	recipientRepo repository.RecipientRepository,
	campaignRepo repository.CampaignRepository,
	db *gorm.DB,
	maxRecipients int,
) AudienceResolver {
	if maxRecipients <= 0 {
		maxRecipients = 10000
	}
	return &AudienceResolverImpl{
		directory:     directory,
		recipientRepo: recipientRepo,
		campaignRepo:  campaignRepo,
		db:            db,
		maxRecipients: maxRecipients,
	}
}

// Resolve returns the deduplicated, channel-valid candidate list for the
// campaign's targeting spec, capped at the configured maximum. A spec that
// yields zero valid candidates fails with ErrNoRecipients.
func (r *AudienceResolverImpl) Resolve(ctx context.Context, campaign *models.Campaign) ([]models.AudienceCandidate, error) {
	target := campaign.Target
	filter := models.DirectoryFilter{Owner: target.Owner, Status: target.Status}

	var raw []models.AudienceCandidate
	switch target.Type {
	case models.TargetTypeLeads:
		leads, err := r.directory.ListLeads(ctx, campaign.TenantID, filter, r.maxRecipients)
		if err != nil {
			return nil, fmt.Errorf("list leads: %w", err)
		}
		raw = leads
	case models.TargetTypeContacts:
		contacts, err := r.directory.ListContacts(ctx, campaign.TenantID, filter, r.maxRecipients)
		if err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		raw = contacts
	case models.TargetTypeAll:
		leads, err := r.directory.ListLeads(ctx, campaign.TenantID, filter, r.maxRecipients)
		if err != nil {
			return nil, fmt.Errorf("list leads: %w", err)
		}
		contacts, err := r.directory.ListContacts(ctx, campaign.TenantID, filter, r.maxRecipients)
		if err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		raw = append(leads, contacts...)
	case models.TargetTypeTags:
		if len(target.Tags) == 0 {
			return nil, ErrNoRecipients
		}
		filter.Tags = target.Tags
		leads, err := r.directory.ListLeads(ctx, campaign.TenantID, filter, r.maxRecipients)
		if err != nil {
			return nil, fmt.Errorf("list leads by tags: %w", err)
		}
		contacts, err := r.directory.ListContacts(ctx, campaign.TenantID, filter, r.maxRecipients)
		if err != nil {
			return nil, fmt.Errorf("list contacts by tags: %w", err)
		}
		raw = append(leads, contacts...)
	case models.TargetTypeCustom:
		// Literal entries supplied by the caller; synthetic rows, no lookup.
		raw = customCandidates(target.Entries)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTargetingType, target.Type)
	}

	candidates := filterForChannel(raw, campaign.Channel)
	if len(candidates) == 0 {
		return nil, ErrNoRecipients
	}
	if len(candidates) > r.maxRecipients {
		candidates = candidates[:r.maxRecipients]
	}
	return candidates, nil
}

// Materialize persists the resolved candidates as recipient rows and sets the
// campaign total. If rows already exist for the campaign the previous
// materialization is reused untouched. The recipient table carries a unique
// index on (campaign_id, source_type, source_id), so when two callers race past
// the existence check the slower insert collides and reuses the winner's rows.
func (r *AudienceResolverImpl) Materialize(ctx context.Context, campaign *models.Campaign) (int, error) {
	existing, err := r.recipientRepo.CountByCampaign(ctx, campaign.ID)
	if err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	if existing > 0 {
		campaign.TotalRecipients = int(existing)
		return int(existing), nil
	}

	candidates, err := r.Resolve(ctx, campaign)
	if err != nil {
		return 0, err
	}

	rows := make([]*models.Recipient, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, &models.Recipient{
			CampaignID: campaign.ID,
			TenantID:   campaign.TenantID,
			SourceType: c.Type,
			SourceID:   c.ID,
			Name:       c.Name,
			Email:      c.Email,
			Phone:      c.Phone,
			Status:     models.RecipientStatusPending,
		})
	}

	total := 0
	err = repository.WithTransaction(ctx, r.db, func(txCtx context.Context) error {
		existing, err := r.recipientRepo.CountByCampaign(txCtx, campaign.ID)
		if err != nil {
			return fmt.Errorf("count recipients: %w", err)
		}
		if existing > 0 {
			total = int(existing)
			return nil
		}

		if err := r.recipientRepo.SaveBatch(txCtx, rows); err != nil {
			return err
		}
		total = len(rows)

		if campaign.Target.Type == models.TargetTypeCustom {
			campaign.CustomEntries = pq.StringArray(campaign.Target.Entries)
			if err := r.campaignRepo.UpdateCustomEntries(txCtx, campaign.ID, campaign.CustomEntries); err != nil {
				return fmt.Errorf("snapshot custom entries: %w", err)
			}
		}
		return r.campaignRepo.UpdateCounters(txCtx, campaign.ID, campaign.SentCount, campaign.FailedCount, total)
	})
	if repository.IsDuplicateKey(err) {
		// Lost the race to a concurrent materialization; its rows stand.
		existing, cerr := r.recipientRepo.CountByCampaign(ctx, campaign.ID)
		if cerr != nil {
			return 0, fmt.Errorf("count recipients after lost insert: %w", cerr)
		}
		campaign.TotalRecipients = int(existing)
		return int(existing), nil
	}
	if err != nil {
		return 0, fmt.Errorf("materialize recipients: %w", err)
	}

	campaign.TotalRecipients = total
	return total, nil
}

func customCandidates(entries []string) []models.AudienceCandidate {
	out := make([]models.AudienceCandidate, 0, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		c := models.AudienceCandidate{
			Type: models.RecipientSourceCustom,
			ID:   fmt.Sprintf("custom-%d", i+1),
			Name: entry,
		}
		e := entry
		if strings.Contains(entry, "@") {
			c.Email = &e
		} else {
			c.Phone = &e
		}
		out = append(out, c)
	}
	return out
}

// filterForChannel drops candidates lacking a usable address for the channel and
// deduplicates by that address.
func filterForChannel(in []models.AudienceCandidate, channel models.CampaignChannel) []models.AudienceCandidate {
	out := make([]models.AudienceCandidate, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		addr := ""
		switch channel {
		case models.CampaignChannelEmail:
			if c.Email == nil {
				continue
			}
			addr = strings.ToLower(strings.TrimSpace(*c.Email))
			if !strings.Contains(addr, "@") {
				continue
			}
		case models.CampaignChannelWhatsApp:
			if c.Phone == nil {
				continue
			}
			addr = strings.TrimSpace(*c.Phone)
			if len(addr) <= 5 {
				continue
			}
		default:
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, c)
	}
	return out
}
