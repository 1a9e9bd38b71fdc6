package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/orbitcrm/outreach-engine/app/dto"
)

// ProgressPublisher pushes delivery progress events to interested clients.
// Publishing is best effort; delivery never stalls on a slow subscriber.
type ProgressPublisher interface {
	Publish(ctx context.Context, tenantID, userID uint, event dto.ProgressEvent)
}

// RedisProgressPublisher publishes progress events over Redis pub/sub on the
// channel campaign:progress:<tenantID>:<userID>
type RedisProgressPublisher struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisProgressPublisher creates a Redis backed progress publisher
func NewRedisProgressPublisher(client *redis.Client, logger *log.Logger) *RedisProgressPublisher {
	return &RedisProgressPublisher{client: client, logger: logger}
}

// Publish serializes the event and pushes it; failures are logged and swallowed
func (p *RedisProgressPublisher) Publish(ctx context.Context, tenantID, userID uint, event dto.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Printf("progress event marshal failed for campaign %s: %v", event.CampaignUUID, err)
		return
	}
	channel := fmt.Sprintf("campaign:progress:%d:%d", tenantID, userID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Printf("progress publish failed on %s: %v", channel, err)
	}
}

// MockProgressPublisher records events for testing
type MockProgressPublisher struct {
	mu     sync.Mutex
	Events []dto.ProgressEvent
}

// NewMockProgressPublisher creates a recording progress publisher
func NewMockProgressPublisher() *MockProgressPublisher {
	return &MockProgressPublisher{}
}

// Publish records the event
func (p *MockProgressPublisher) Publish(ctx context.Context, tenantID, userID uint, event dto.ProgressEvent) {
	p.mu.Lock()
	p.Events = append(p.Events, event)
	p.mu.Unlock()
}

// Last returns the most recent event, if any
func (p *MockProgressPublisher) Last() (dto.ProgressEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Events) == 0 {
		return dto.ProgressEvent{}, false
	}
	return p.Events[len(p.Events)-1], true
}
