// Package dto contains request and response structures for campaign operations
package dto

import (
	"time"

	"github.com/orbitcrm/outreach-engine/models"
)

// CreateCampaignRequest creates a draft campaign
type CreateCampaignRequest struct {
	Name       string                 `json:"name" validate:"required,min=1,max=255"`
	Channel    string                 `json:"channel" validate:"required,oneof=email whatsapp"`
	Content    models.CampaignContent `json:"content"`
	Target     models.TargetSpec      `json:"target" validate:"required"`
	UTM        models.UTMSpec         `json:"utm"`
	ScheduleAt *time.Time             `json:"schedule_at,omitempty"`
}

// UpdateCampaignRequest edits a draft campaign. Nil fields are left untouched.
type UpdateCampaignRequest struct {
	Name       *string                 `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Content    *models.CampaignContent `json:"content,omitempty"`
	Target     *models.TargetSpec      `json:"target,omitempty"`
	UTM        *models.UTMSpec         `json:"utm,omitempty"`
	ScheduleAt *time.Time              `json:"schedule_at,omitempty"`
}

// ScheduleCampaignRequest schedules a draft for a future start
type ScheduleCampaignRequest struct {
	ScheduleAt time.Time `json:"schedule_at" validate:"required"`
}

// AddRecipientRequest appends one literal entry to a draft campaign's audience
type AddRecipientRequest struct {
	Entry string `json:"entry" validate:"required,min=3,max=255"`
}

// CampaignResponse is the external representation of a campaign
type CampaignResponse struct {
	UUID            string                 `json:"uuid"`
	Name            string                 `json:"name"`
	Channel         string                 `json:"channel"`
	Status          string                 `json:"status"`
	Content         models.CampaignContent `json:"content"`
	Target          models.TargetSpec      `json:"target"`
	UTM             models.UTMSpec         `json:"utm"`
	ScheduleAt      *time.Time             `json:"schedule_at,omitempty"`
	TotalRecipients int                    `json:"total_recipients"`
	SentCount       int                    `json:"sent_count"`
	FailedCount     int                    `json:"failed_count"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       *time.Time             `json:"updated_at,omitempty"`
}

// NewCampaignResponse maps a campaign model to its response shape
func NewCampaignResponse(c *models.Campaign) *CampaignResponse {
	return &CampaignResponse{
		UUID:            c.UUID.String(),
		Name:            c.Name,
		Channel:         c.Channel.String(),
		Status:          c.Status.String(),
		Content:         c.Content,
		Target:          c.Target,
		UTM:             c.UTM,
		ScheduleAt:      c.ScheduleAt,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// LinkStats is the per-link click summary inside CampaignStatsResponse
type LinkStats struct {
	OriginalURL  string  `json:"original_url"`
	ShortURL     *string `json:"short_url,omitempty"`
	TotalClicks  int     `json:"total_clicks"`
	UniqueClicks int     `json:"unique_clicks"`
}

// CampaignStatsResponse aggregates delivery and click figures for a campaign
type CampaignStatsResponse struct {
	UUID            string      `json:"uuid"`
	Status          string      `json:"status"`
	TotalRecipients int         `json:"total_recipients"`
	SentCount       int         `json:"sent_count"`
	FailedCount     int         `json:"failed_count"`
	PendingCount    int         `json:"pending_count"`
	Links           []LinkStats `json:"links"`
}

// ProgressEvent is published after every delivery attempt so clients can track
// a running campaign without polling
type ProgressEvent struct {
	CampaignUUID string    `json:"campaign_uuid"`
	Status       string    `json:"status"`
	Total        int       `json:"total"`
	Sent         int       `json:"sent"`
	Failed       int       `json:"failed"`
	Timestamp    time.Time `json:"timestamp"`
}
