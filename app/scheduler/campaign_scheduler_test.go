package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	businessflow "github.com/orbitcrm/outreach-engine/business_flow"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
)

// stubCampaignRepo covers only the scheduler's slice of the repository surface.
// Embedding the interface leaves the rest panicking if anything strays.
type stubCampaignRepo struct {
	repository.CampaignRepository

	mu       sync.Mutex
	statuses map[uint]models.CampaignStatus
	due      []*models.Campaign
}

func newStubCampaignRepo(due ...*models.Campaign) *stubCampaignRepo {
	r := &stubCampaignRepo{statuses: make(map[uint]models.CampaignStatus), due: due}
	for _, c := range due {
		r.statuses[c.ID] = c.Status
	}
	return r
}

func (r *stubCampaignRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Campaign, 0, len(r.due))
	for _, c := range r.due {
		if r.statuses[c.ID] == models.CampaignStatusScheduled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCampaignRepo) ClaimStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.statuses[id]
	for _, s := range from {
		if current == s {
			r.statuses[id] = to
			return true, nil
		}
	}
	return false, nil
}

func (r *stubCampaignRepo) status(id uint) models.CampaignStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

type stubResolver struct {
	count int
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, campaign *models.Campaign) ([]models.AudienceCandidate, error) {
	return nil, s.err
}

func (s *stubResolver) Materialize(ctx context.Context, campaign *models.Campaign) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	campaign.TotalRecipients = s.count
	return s.count, nil
}

// launchRecorder records Launch calls instead of running delivery
type launchRecorder struct {
	businessflow.CampaignFlow

	mu       sync.Mutex
	launched []*models.Campaign
}

func (l *launchRecorder) Launch(campaign *models.Campaign) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, campaign)
}

func (l *launchRecorder) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func scheduledCampaign(id uint) *models.Campaign {
	return &models.Campaign{
		ID:       id,
		UUID:     uuid.New(),
		TenantID: 1,
		UserID:   1,
		Channel:  models.CampaignChannelEmail,
		Status:   models.CampaignStatusScheduled,
		Name:     "due",
	}
}

func TestRunOnceClaimsAndLaunchesDueCampaign(t *testing.T) {
	repo := newStubCampaignRepo(scheduledCampaign(1))
	flow := &launchRecorder{}
	s := NewCampaignScheduler(repo, &stubResolver{count: 3}, flow, time.Minute, "")

	s.runOnce(context.Background())

	assert.Equal(t, models.CampaignStatusRunning, repo.status(1))
	require.Equal(t, 1, flow.count())
	assert.Equal(t, models.CampaignStatusRunning, flow.launched[0].Status)
	assert.Equal(t, 3, flow.launched[0].TotalRecipients)
}

func TestRunOnceMarksEmptyAudienceFailed(t *testing.T) {
	repo := newStubCampaignRepo(scheduledCampaign(1))
	flow := &launchRecorder{}
	s := NewCampaignScheduler(repo, &stubResolver{err: businessflow.ErrNoRecipients}, flow, time.Minute, "")

	s.runOnce(context.Background())

	assert.Equal(t, models.CampaignStatusFailed, repo.status(1))
	assert.Zero(t, flow.count())

	// The failed campaign is no longer due, so the next tick ignores it.
	s.runOnce(context.Background())
	assert.Zero(t, flow.count())
}

func TestRunOnceSkipsLostClaim(t *testing.T) {
	c := scheduledCampaign(1)
	repo := newStubCampaignRepo(c)
	// A manual start already moved the campaign out of scheduled.
	repo.statuses[c.ID] = models.CampaignStatusRunning
	flow := &launchRecorder{}
	s := NewCampaignScheduler(repo, &stubResolver{count: 1}, flow, time.Minute, "")

	s.runOnce(context.Background())

	assert.Zero(t, flow.count())
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	repo := newStubCampaignRepo(scheduledCampaign(1), scheduledCampaign(2))
	flow := &launchRecorder{}
	s := NewCampaignScheduler(repo, &stubResolver{count: 1}, flow, time.Hour, "")

	stop := s.Start(context.Background())

	assert.Eventually(t, func() bool { return flow.count() == 2 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, models.CampaignStatusRunning, repo.status(1))
	assert.Equal(t, models.CampaignStatusRunning, repo.status(2))
}
