// Package scheduler starts due campaigns in the background
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/orbitcrm/outreach-engine/app/metrics"
	businessflow "github.com/orbitcrm/outreach-engine/business_flow"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
	"github.com/orbitcrm/outreach-engine/utils"
)

const defaultScanInterval = time.Minute

// Per-tick cap on campaigns claimed, so one pathological tick cannot spawn
// unbounded delivery goroutines.
const maxDuePerTick = 50

// CampaignScheduler periodically scans for scheduled campaigns whose time has
// arrived, claims them and hands them to the delivery pipeline. The claim is a
// conditional status update, so multiple scheduler instances never double-start
// a campaign.
type CampaignScheduler struct {
	campaignRepo repository.CampaignRepository
	resolver     businessflow.AudienceResolver
	flow         businessflow.CampaignFlow
	interval     time.Duration
	logger       *log.Logger
}

// NewCampaignScheduler creates a new campaign scheduler. Scheduler activity is
// logged both to stdout and to a rotating file so start decisions survive
// process restarts.
func NewCampaignScheduler(
	campaignRepo repository.CampaignRepository,
	resolver businessflow.AudienceResolver,
	flow businessflow.CampaignFlow,
	interval time.Duration,
	logPath string,
) *CampaignScheduler {
	if interval <= 0 {
		interval = defaultScanInterval
	}

	var sink io.Writer = os.Stdout
	if logPath != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	return &CampaignScheduler{
		campaignRepo: campaignRepo,
		resolver:     resolver,
		flow:         flow,
		interval:     interval,
		logger:       log.New(sink, "[campaign-scheduler] ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
	}
}

// Start launches the scan loop and returns a function that stops it and waits
// for the in-flight tick to finish
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		s.logger.Printf("started, scanning every %s", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				s.logger.Printf("stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// runOnce processes one scan tick
func (s *CampaignScheduler) runOnce(ctx context.Context) {
	now := utils.UTCNow()
	due, err := s.campaignRepo.ListDueScheduled(ctx, now, maxDuePerTick)
	if err != nil {
		s.logger.Printf("scan failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("%d campaign(s) due", len(due))

	for _, campaign := range due {
		if ctx.Err() != nil {
			return
		}
		s.startCampaign(ctx, campaign)
	}
}

func (s *CampaignScheduler) startCampaign(ctx context.Context, campaign *models.Campaign) {
	if _, err := s.resolver.Materialize(ctx, campaign); err != nil {
		s.logger.Printf("campaign %s audience materialization failed: %v", campaign.UUID, err)
		if businessflow.IsNoRecipients(err) {
			// Nothing to send. Mark failed so the scheduler stops retrying it.
			if _, cerr := s.campaignRepo.ClaimStatus(ctx, campaign.ID,
				[]models.CampaignStatus{models.CampaignStatusScheduled}, models.CampaignStatusFailed); cerr != nil {
				s.logger.Printf("campaign %s could not be marked failed: %v", campaign.UUID, cerr)
			}
		}
		return
	}

	won, err := s.campaignRepo.ClaimStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusScheduled}, models.CampaignStatusRunning)
	if err != nil {
		s.logger.Printf("campaign %s claim failed: %v", campaign.UUID, err)
		return
	}
	if !won {
		// Another instance or a manual start got there first.
		return
	}
	campaign.Status = models.CampaignStatusRunning

	metrics.CampaignsStarted.WithLabelValues("scheduler").Inc()
	s.logger.Printf("campaign %s claimed, launching delivery for %d recipients", campaign.UUID, campaign.TotalRecipients)
	s.flow.Launch(campaign)
}
