package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/orbitcrm/outreach-engine/app/dto"
	"github.com/orbitcrm/outreach-engine/app/metrics"
	"github.com/orbitcrm/outreach-engine/app/services"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
	"github.com/orbitcrm/outreach-engine/utils"
)

// Delivery pacing and batching defaults
const (
	DefaultBatchSize        = 100
	DefaultMessagePacing    = 2 * time.Second
	DefaultEmailBatchPacing = 1 * time.Second
)

// DeliveryConfig tunes batching and pacing of a delivery run
type DeliveryConfig struct {
	BatchSize int
	// Delay between individual WhatsApp messages
	MessagePacing time.Duration
	// Delay between email batches
	EmailBatchPacing time.Duration
}

func (c DeliveryConfig) withDefaults() DeliveryConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MessagePacing <= 0 {
		c.MessagePacing = DefaultMessagePacing
	}
	if c.EmailBatchPacing <= 0 {
		c.EmailBatchPacing = DefaultEmailBatchPacing
	}
	return c
}

// DeliveryOrchestrator executes the dispatch loop of one running campaign:
// pending recipients in creation order, batched, rate limited, each attempt
// accounted on the recipient row and the campaign counters. Cancellation of
// the context stops dispatch between messages; a paused campaign resumes
// later from whatever is still pending.
type DeliveryOrchestrator interface {
	Execute(ctx context.Context, campaign *models.Campaign) error
}

// DeliveryOrchestratorImpl implements DeliveryOrchestrator
type DeliveryOrchestratorImpl struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	logRepo       repository.CampaignLogRepository
	tagger        LinkTagger
	email         services.EmailTransport
	messaging     services.MessagingTransport
	progress      services.ProgressPublisher
	cfg           DeliveryConfig
	logger        *log.Logger
}

// NewDeliveryOrchestrator creates a new delivery orchestrator
func NewDeliveryOrchestrator(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	logRepo repository.CampaignLogRepository,
	tagger LinkTagger,
	email services.EmailTransport,
	messaging services.MessagingTransport,
	progress services.ProgressPublisher,
	cfg DeliveryConfig,
	logger *log.Logger,
) DeliveryOrchestrator {
	return &DeliveryOrchestratorImpl{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		logRepo:       logRepo,
		tagger:        tagger,
		email:         email,
		messaging:     messaging,
		progress:      progress,
		cfg:           cfg.withDefaults(),
		logger:        logger,
	}
}

// Execute drains the campaign's pending recipients. Per-recipient transport
// failures are recorded and never stop the loop; only infrastructure failures
// flip the campaign to failed.
func (o *DeliveryOrchestratorImpl) Execute(ctx context.Context, campaign *models.Campaign) error {
	started := time.Now()
	defer func() { metrics.DeliveryDuration.Observe(time.Since(started).Seconds()) }()

	// Refetch so a resumed run continues from the persisted counters.
	fresh, err := o.campaignRepo.ByID(ctx, campaign.ID)
	if err != nil {
		return o.fail(ctx, campaign, fmt.Errorf("reload campaign: %w", err))
	}
	if fresh == nil || fresh.Status != models.CampaignStatusRunning {
		return nil
	}
	campaign = fresh
	sent, failed := campaign.SentCount, campaign.FailedCount

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := o.recipientRepo.ListPending(ctx, campaign.ID, o.cfg.BatchSize, 0)
		if err != nil {
			return o.fail(ctx, campaign, fmt.Errorf("list pending recipients: %w", err))
		}
		if len(batch) == 0 {
			break
		}

		for _, recipient := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			messageID, sendErr := o.deliver(ctx, campaign, recipient)
			now := utils.UTCNow()
			if sendErr != nil {
				if err := o.recipientRepo.MarkFailed(ctx, recipient.ID, sendErr.Error(), now); err != nil {
					return o.fail(ctx, campaign, fmt.Errorf("mark recipient failed: %w", err))
				}
				failed++
				metrics.MessagesFailed.WithLabelValues(campaign.Channel.String()).Inc()
				o.logger.Printf("campaign %s recipient %d failed: %v", campaign.UUID, recipient.ID, sendErr)
			} else {
				if err := o.recipientRepo.MarkSent(ctx, recipient.ID, messageID, now); err != nil {
					return o.fail(ctx, campaign, fmt.Errorf("mark recipient sent: %w", err))
				}
				sent++
				metrics.MessagesSent.WithLabelValues(campaign.Channel.String()).Inc()
			}

			if err := o.campaignRepo.UpdateCounters(ctx, campaign.ID, sent, failed, campaign.TotalRecipients); err != nil {
				return o.fail(ctx, campaign, fmt.Errorf("update campaign counters: %w", err))
			}
			o.publishProgress(ctx, campaign, models.CampaignStatusRunning, sent, failed)

			if campaign.Channel == models.CampaignChannelWhatsApp {
				if err := pace(ctx, o.cfg.MessagePacing); err != nil {
					return err
				}
			}
		}

		if campaign.Channel == models.CampaignChannelEmail {
			if err := pace(ctx, o.cfg.EmailBatchPacing); err != nil {
				return err
			}
		}
	}

	won, err := o.campaignRepo.ClaimStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusRunning}, models.CampaignStatusCompleted)
	if err != nil {
		return o.fail(ctx, campaign, fmt.Errorf("complete campaign: %w", err))
	}
	if won {
		metrics.CampaignsFinished.WithLabelValues("completed").Inc()
		o.appendLog(ctx, campaign, models.CampaignActionCompleted,
			fmt.Sprintf("delivery finished: %d sent, %d failed", sent, failed))
		o.publishProgress(ctx, campaign, models.CampaignStatusCompleted, sent, failed)
	}
	return nil
}

// deliver renders and tags the content for one recipient, then hands it to the
// channel transport. The returned error is per-recipient.
func (o *DeliveryOrchestratorImpl) deliver(ctx context.Context, campaign *models.Campaign, recipient *models.Recipient) (string, error) {
	address := recipient.Address(campaign.Channel)
	if address == "" {
		return "", fmt.Errorf("recipient %d has no %s address", recipient.ID, campaign.Channel)
	}
	attrs := RecipientAttributes(recipient.Name, recipient.Email, recipient.Phone)

	switch campaign.Channel {
	case models.CampaignChannelEmail:
		subject := ""
		if campaign.Content.Subject != nil {
			subject = RenderTemplate(*campaign.Content.Subject, attrs)
		}
		body, contentType := "", ContentTypeText
		if campaign.Content.HTML != nil && *campaign.Content.HTML != "" {
			body, contentType = *campaign.Content.HTML, ContentTypeHTML
		} else if campaign.Content.Body != nil {
			body = *campaign.Content.Body
		}
		body = RenderTemplate(body, attrs)

		tagged, err := o.tagger.Tag(ctx, campaign, TagInput{
			Content:     body,
			ContentType: contentType,
			Recipient:   recipient,
		})
		if err != nil {
			return "", err
		}

		messageID, err := o.email.SendEmail(ctx, services.EmailMessage{
			To:      address,
			Subject: subject,
			Body:    tagged.Content,
			HTML:    contentType == ContentTypeHTML,
		})
		if err != nil {
			return "", NewTransportError("email", err)
		}
		return messageID, nil

	case models.CampaignChannelWhatsApp:
		if campaign.Content.TemplateName != nil && *campaign.Content.TemplateName != "" {
			return o.deliverTemplate(ctx, campaign, recipient, address, attrs)
		}

		body := ""
		if campaign.Content.Body != nil {
			body = RenderTemplate(*campaign.Content.Body, attrs)
		}

		tagged, err := o.tagger.Tag(ctx, campaign, TagInput{
			Content:     body,
			ContentType: ContentTypeText,
			Recipient:   recipient,
		})
		if err != nil {
			return "", err
		}

		messageID, err := o.messaging.SendWhatsApp(ctx, services.WhatsAppMessage{
			To:        address,
			Body:      tagged.Content,
			MediaURL:  campaign.Content.MediaURL,
			MediaType: campaign.Content.MediaType,
		})
		if err != nil {
			return "", NewTransportError("whatsapp", err)
		}
		return messageID, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, campaign.Channel)
	}
}

// deliverTemplate sends a provider-approved template message. Parameter values
// go through the same rendering and link tagging as a free-form body.
func (o *DeliveryOrchestratorImpl) deliverTemplate(ctx context.Context, campaign *models.Campaign, recipient *models.Recipient, address string, attrs map[string]string) (string, error) {
	params := make(map[string]string, len(campaign.Content.TemplateParams))
	for key, value := range campaign.Content.TemplateParams {
		rendered := RenderTemplate(value, attrs)
		tagged, err := o.tagger.Tag(ctx, campaign, TagInput{
			Content:     rendered,
			ContentType: ContentTypeText,
			Recipient:   recipient,
		})
		if err != nil {
			return "", err
		}
		params[key] = tagged.Content
	}

	messageID, err := o.messaging.SendTemplate(ctx, services.WhatsAppTemplate{
		To:           address,
		TemplateName: *campaign.Content.TemplateName,
		Params:       params,
	})
	if err != nil {
		return "", NewTransportError("whatsapp", err)
	}
	return messageID, nil
}

// fail flips the campaign to failed after an infrastructure error
func (o *DeliveryOrchestratorImpl) fail(ctx context.Context, campaign *models.Campaign, cause error) error {
	won, err := o.campaignRepo.ClaimStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusRunning}, models.CampaignStatusFailed)
	if err != nil {
		o.logger.Printf("campaign %s could not be marked failed: %v", campaign.UUID, err)
	}
	if won {
		metrics.CampaignsFinished.WithLabelValues("failed").Inc()
		o.appendLog(ctx, campaign, models.CampaignActionFailed, cause.Error())
		o.publishProgress(ctx, campaign, models.CampaignStatusFailed, campaign.SentCount, campaign.FailedCount)
	}
	return cause
}

func (o *DeliveryOrchestratorImpl) publishProgress(ctx context.Context, campaign *models.Campaign, status models.CampaignStatus, sent, failed int) {
	o.progress.Publish(ctx, campaign.TenantID, campaign.UserID, dto.ProgressEvent{
		CampaignUUID: campaign.UUID.String(),
		Status:       status.String(),
		Total:        campaign.TotalRecipients,
		Sent:         sent,
		Failed:       failed,
		Timestamp:    utils.UTCNow(),
	})
}

func (o *DeliveryOrchestratorImpl) appendLog(ctx context.Context, campaign *models.Campaign, action, message string) {
	entry := &models.CampaignLog{
		CampaignID: campaign.ID,
		TenantID:   campaign.TenantID,
		Action:     action,
		Message:    &message,
		Success:    utils.ToPtr(action != models.CampaignActionFailed),
	}
	if err := o.logRepo.Save(ctx, entry); err != nil {
		o.logger.Printf("campaign %s audit log write failed: %v", campaign.UUID, err)
	}
}

// pace sleeps for the pacing interval unless the run is cancelled first
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
