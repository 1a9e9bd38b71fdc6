package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orbitcrm/outreach-engine/app/dto"
	"github.com/orbitcrm/outreach-engine/app/metrics"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
	"github.com/orbitcrm/outreach-engine/utils"
)

// CampaignFlow drives the campaign lifecycle: creation, editing, scheduling,
// starting, pausing, resuming and deletion, plus per-recipient adjustments on
// drafts. All operations are tenant scoped.
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, tenantID, userID uint) (*dto.CampaignResponse, error)
	GetCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error)
	ListCampaigns(ctx context.Context, tenantID uint, status *models.CampaignStatus, limit, offset int) ([]*dto.CampaignResponse, error)
	UpdateCampaign(ctx context.Context, campaignUUID string, req *dto.UpdateCampaignRequest, tenantID uint) (*dto.CampaignResponse, error)
	ScheduleCampaign(ctx context.Context, campaignUUID string, req *dto.ScheduleCampaignRequest, tenantID uint) (*dto.CampaignResponse, error)
	StartCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error)
	PauseCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error)
	ResumeCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error)
	DeleteCampaign(ctx context.Context, campaignUUID string, tenantID uint) error
	AddRecipient(ctx context.Context, campaignUUID string, req *dto.AddRecipientRequest, tenantID uint) (*dto.CampaignResponse, error)
	RemoveRecipient(ctx context.Context, campaignUUID string, recipientID, tenantID uint) error
	CampaignStats(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignStatsResponse, error)

	// Launch hands a freshly claimed running campaign to the delivery
	// orchestrator on its own goroutine. Used internally and by the scheduler.
	Launch(campaign *models.Campaign)
}

// CampaignFlowImpl implements CampaignFlow
type CampaignFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	linkRepo      repository.LinkRepository
	logRepo       repository.CampaignLogRepository
	resolver      AudienceResolver
	orchestrator  DeliveryOrchestrator
	registry      *runRegistry
	validate      *validator.Validate
	logger        *log.Logger
}

// NewCampaignFlow creates a new campaign lifecycle flow
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	linkRepo repository.LinkRepository,
	logRepo repository.CampaignLogRepository,
	resolver AudienceResolver,
	orchestrator DeliveryOrchestrator,
	logger *log.Logger,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		linkRepo:      linkRepo,
		logRepo:       logRepo,
		resolver:      resolver,
		orchestrator:  orchestrator,
		registry:      newRunRegistry(),
		validate:      validator.New(),
		logger:        logger,
	}
}

// CreateCampaign persists a new draft
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, tenantID, userID uint) (*dto.CampaignResponse, error) {
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("VALIDATION_FAILED", "Invalid campaign payload", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrCampaignNameRequired
	}
	channel := models.CampaignChannel(req.Channel)
	if !channel.Valid() {
		return nil, ErrInvalidChannel
	}
	if !req.Target.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTargetingType, req.Target.Type)
	}
	if req.ScheduleAt != nil && !req.ScheduleAt.After(utils.UTCNow()) {
		return nil, ErrScheduleTimeNotFuture
	}

	campaign := &models.Campaign{
		TenantID:   tenantID,
		UserID:     userID,
		Channel:    channel,
		Status:     models.CampaignStatusDraft,
		Name:       strings.TrimSpace(req.Name),
		Content:    req.Content,
		Target:     req.Target,
		UTM:        req.UTM,
		ScheduleAt: req.ScheduleAt,
	}
	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATE_FAILED", "Failed to create campaign", err)
	}

	f.appendLog(ctx, campaign, models.CampaignActionCreated, "campaign created", nil)
	return dto.NewCampaignResponse(campaign), nil
}

// GetCampaign returns a campaign visible to the tenant
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.NewCampaignResponse(campaign), nil
}

// ListCampaigns returns the tenant's campaigns, newest first
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, tenantID uint, status *models.CampaignStatus, limit, offset int) ([]*dto.CampaignResponse, error) {
	filter := models.CampaignFilter{TenantID: &tenantID, Status: status}
	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}
	out := make([]*dto.CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, dto.NewCampaignResponse(c))
	}
	return out, nil
}

// UpdateCampaign applies structural edits. Drafts only.
func (f *CampaignFlowImpl) UpdateCampaign(ctx context.Context, campaignUUID string, req *dto.UpdateCampaignRequest, tenantID uint) (*dto.CampaignResponse, error) {
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("VALIDATION_FAILED", "Invalid campaign payload", err)
	}

	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, ErrCampaignNotEditable
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrCampaignNameRequired
		}
		campaign.Name = strings.TrimSpace(*req.Name)
	}
	if req.Content != nil {
		campaign.Content = *req.Content
	}
	if req.Target != nil {
		if !req.Target.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedTargetingType, req.Target.Type)
		}
		campaign.Target = *req.Target
	}
	if req.UTM != nil {
		campaign.UTM = *req.UTM
	}
	if req.ScheduleAt != nil {
		if !req.ScheduleAt.After(utils.UTCNow()) {
			return nil, ErrScheduleTimeNotFuture
		}
		campaign.ScheduleAt = req.ScheduleAt
	}

	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to update campaign", err)
	}
	return dto.NewCampaignResponse(campaign), nil
}

// ScheduleCampaign materializes the audience and moves a draft to scheduled
// for a future time
func (f *CampaignFlowImpl) ScheduleCampaign(ctx context.Context, campaignUUID string, req *dto.ScheduleCampaignRequest, tenantID uint) (*dto.CampaignResponse, error) {
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("VALIDATION_FAILED", "Invalid schedule payload", err)
	}
	if req.ScheduleAt.IsZero() {
		return nil, ErrScheduleTimeNotPresent
	}
	if !req.ScheduleAt.After(utils.UTCNow()) {
		return nil, ErrScheduleTimeNotFuture
	}

	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanTransitionTo(models.CampaignStatusScheduled) {
		return nil, ErrInvalidTransition
	}

	// The audience is fixed at schedule time. A targeting that yields nobody
	// rejects the schedule and the campaign stays draft.
	total, err := f.resolver.Materialize(ctx, campaign)
	if err != nil {
		return nil, err
	}

	scheduleAt := req.ScheduleAt.UTC()
	campaign.ScheduleAt = &scheduleAt
	campaign.Status = models.CampaignStatusScheduled
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Failed to schedule campaign", err)
	}

	f.appendLog(ctx, campaign, models.CampaignActionScheduled,
		fmt.Sprintf("scheduled for %s with %d recipients", scheduleAt.Format(time.RFC3339), total), nil)
	return dto.NewCampaignResponse(campaign), nil
}

// StartCampaign materializes the audience and begins delivery immediately.
// A targeting that yields nobody leaves the campaign untouched.
func (f *CampaignFlowImpl) StartCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanTransitionTo(models.CampaignStatusRunning) {
		return nil, ErrInvalidTransition
	}

	total, err := f.resolver.Materialize(ctx, campaign)
	if err != nil {
		return nil, err
	}

	// Conditional update is the only door into running; a concurrent starter
	// or the scheduler may have won the claim already.
	won, err := f.campaignRepo.ClaimStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusScheduled},
		models.CampaignStatusRunning)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Failed to start campaign", err)
	}
	if !won {
		return nil, ErrInvalidTransition
	}
	campaign.Status = models.CampaignStatusRunning
	metrics.CampaignsStarted.WithLabelValues("api").Inc()

	f.appendLog(ctx, campaign, models.CampaignActionStarted,
		fmt.Sprintf("delivery started for %d recipients", total), nil)
	f.Launch(campaign)

	return dto.NewCampaignResponse(campaign), nil
}

// PauseCampaign stops an in-flight run. Recipients mid-batch finish in flight;
// nothing new is dispatched afterwards.
func (f *CampaignFlowImpl) PauseCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	won, err := f.campaignRepo.ClaimStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusRunning}, models.CampaignStatusPaused)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_PAUSE_FAILED", "Failed to pause campaign", err)
	}
	if !won {
		return nil, ErrInvalidTransition
	}
	campaign.Status = models.CampaignStatusPaused
	f.registry.cancel(campaign.ID)

	f.appendLog(ctx, campaign, models.CampaignActionPaused, "delivery paused", nil)
	return dto.NewCampaignResponse(campaign), nil
}

// ResumeCampaign restarts delivery of a paused campaign from its pending recipients
func (f *CampaignFlowImpl) ResumeCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	won, err := f.campaignRepo.ClaimStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusPaused}, models.CampaignStatusRunning)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RESUME_FAILED", "Failed to resume campaign", err)
	}
	if !won {
		return nil, ErrInvalidTransition
	}
	campaign.Status = models.CampaignStatusRunning
	metrics.CampaignsStarted.WithLabelValues("resume").Inc()

	f.appendLog(ctx, campaign, models.CampaignActionResumed, "delivery resumed", nil)
	f.Launch(campaign)

	return dto.NewCampaignResponse(campaign), nil
}

// DeleteCampaign removes a draft
func (f *CampaignFlowImpl) DeleteCampaign(ctx context.Context, campaignUUID string, tenantID uint) error {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return err
	}
	if !campaign.IsDeletable() {
		return ErrCampaignNotDeletable
	}
	if err := f.campaignRepo.Delete(ctx, campaign.ID); err != nil {
		return NewBusinessError("CAMPAIGN_DELETE_FAILED", "Failed to delete campaign", err)
	}
	f.appendLog(ctx, campaign, models.CampaignActionDeleted, "campaign deleted", nil)
	return nil
}

// AddRecipient appends one literal entry to a draft with custom targeting
func (f *CampaignFlowImpl) AddRecipient(ctx context.Context, campaignUUID string, req *dto.AddRecipientRequest, tenantID uint) (*dto.CampaignResponse, error) {
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("VALIDATION_FAILED", "Invalid recipient payload", err)
	}

	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, ErrCampaignNotEditable
	}
	if campaign.Target.Type != models.TargetTypeCustom {
		return nil, fmt.Errorf("%w: recipients can only be added to custom targeting", ErrUnsupportedTargetingType)
	}

	entry := strings.TrimSpace(req.Entry)
	for _, existing := range campaign.Target.Entries {
		if strings.EqualFold(existing, entry) {
			return dto.NewCampaignResponse(campaign), nil
		}
	}
	campaign.Target.Entries = append(campaign.Target.Entries, entry)

	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to add recipient", err)
	}
	f.appendLog(ctx, campaign, models.CampaignActionRecipientAdded, entry, nil)
	return dto.NewCampaignResponse(campaign), nil
}

// RemoveRecipient deletes a materialized recipient row before delivery has
// reached it. Running and finished campaigns reject the removal.
func (f *CampaignFlowImpl) RemoveRecipient(ctx context.Context, campaignUUID string, recipientID, tenantID uint) error {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return err
	}
	if campaign.Status == models.CampaignStatusRunning || campaign.IsTerminal() {
		return ErrCampaignNotEditable
	}

	recipient, err := f.recipientRepo.ByID(ctx, recipientID)
	if err != nil {
		return NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if recipient == nil || recipient.CampaignID != campaign.ID {
		return ErrRecipientNotFound
	}
	if recipient.Status != models.RecipientStatusPending {
		return ErrCampaignNotEditable
	}

	if err := f.recipientRepo.DeleteByCampaignAndID(ctx, campaign.ID, recipientID); err != nil {
		return NewBusinessError("RECIPIENT_DELETE_FAILED", "Failed to remove recipient", err)
	}
	if campaign.TotalRecipients > 0 {
		campaign.TotalRecipients--
		if err := f.campaignRepo.UpdateCounters(ctx, campaign.ID, campaign.SentCount, campaign.FailedCount, campaign.TotalRecipients); err != nil {
			return NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to update recipient total", err)
		}
	}
	f.appendLog(ctx, campaign, models.CampaignActionRecipientRemoved, recipient.Name, nil)
	return nil
}

// CampaignStats aggregates delivery counters and per-link click figures
func (f *CampaignFlowImpl) CampaignStats(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignStatsResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	pending, err := f.recipientRepo.CountByCampaignAndStatus(ctx, campaign.ID, models.RecipientStatusPending)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STATS_FAILED", "Failed to count pending recipients", err)
	}

	links, err := f.linkRepo.ByFilter(ctx, models.LinkFilter{CampaignID: &campaign.ID}, "created_at ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STATS_FAILED", "Failed to list links", err)
	}

	stats := &dto.CampaignStatsResponse{
		UUID:            campaign.UUID.String(),
		Status:          campaign.Status.String(),
		TotalRecipients: campaign.TotalRecipients,
		SentCount:       campaign.SentCount,
		FailedCount:     campaign.FailedCount,
		PendingCount:    int(pending),
		Links:           make([]dto.LinkStats, 0, len(links)),
	}
	for _, l := range links {
		stats.Links = append(stats.Links, dto.LinkStats{
			OriginalURL:  l.OriginalURL,
			ShortURL:     l.ShortURL,
			TotalClicks:  l.TotalClicks,
			UniqueClicks: l.UniqueClicks,
		})
	}
	return stats, nil
}

// Launch runs delivery for an already claimed running campaign. The run context
// derives from Background so request cancellation never kills a send in flight.
func (f *CampaignFlowImpl) Launch(campaign *models.Campaign) {
	runCtx, cancel := f.registry.register(campaign.ID, context.Background())
	go func() {
		defer cancel()
		defer f.registry.unregister(campaign.ID)
		if err := f.orchestrator.Execute(runCtx, campaign); err != nil && runCtx.Err() == nil {
			f.logger.Printf("campaign %s delivery failed: %v", campaign.UUID, err)
		}
	}()
}

func (f *CampaignFlowImpl) ownedCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*models.Campaign, error) {
	if _, err := utils.ParseUUID(campaignUUID); err != nil {
		return nil, ErrCampaignNotFound
	}
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if campaign.TenantID != tenantID {
		return nil, ErrCampaignAccessDenied
	}
	return campaign, nil
}

// appendLog writes an audit row; the trail is best effort and never fails the caller
func (f *CampaignFlowImpl) appendLog(ctx context.Context, campaign *models.Campaign, action, message string, metadata map[string]any) {
	entry := &models.CampaignLog{
		CampaignID: campaign.ID,
		TenantID:   campaign.TenantID,
		Action:     action,
		Message:    &message,
		Success:    utils.ToPtr(true),
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}
	if err := f.logRepo.Save(ctx, entry); err != nil {
		f.logger.Printf("campaign %s audit log write failed: %v", campaign.UUID, err)
	}
}
