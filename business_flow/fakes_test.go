package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/orbitcrm/outreach-engine/models"
)

// In-memory repositories backing the flow tests. They honor the same
// contracts as the gorm implementations: one-way recipient transitions,
// conditional status claims, per (campaign, URL) link uniqueness.

type memCampaignRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{rows: make(map[uint]*models.Campaign)}
}

func (r *memCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.rows {
		if filter.TenantID != nil && c.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memCampaignRepo) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memCampaignRepo) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.UUID.String() == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; !ok {
		return fmt.Errorf("campaign %d not found", c.ID)
	}
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *memCampaignRepo) ClaimStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *memCampaignRepo) UpdateCounters(ctx context.Context, id uint, sent, failed, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		c.SentCount, c.FailedCount, c.TotalRecipients = sent, failed, total
	}
	return nil
}

func (r *memCampaignRepo) UpdateCustomEntries(ctx context.Context, id uint, entries pq.StringArray) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		c.CustomEntries = entries
	}
	return nil
}

func (r *memCampaignRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.rows {
		if c.Status == models.CampaignStatusScheduled && c.ScheduleAt != nil && !c.ScheduleAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleAt.Before(*out[j].ScheduleAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memCampaignRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memCampaignRepo) status(id uint) models.CampaignStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		return c.Status
	}
	return ""
}

type memRecipientRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   []*models.Recipient

	listPendingErr error
	// Runs before each SaveBatch insert, outside the lock. Lets a test wedge a
	// competing materialization between the existence check and the insert.
	beforeSaveBatch func()
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{}
}

func (r *memRecipientRepo) ByID(ctx context.Context, id uint) (*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.rows {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRecipientRepo) ByFilter(ctx context.Context, filter models.RecipientFilter, orderBy string, limit, offset int) ([]*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Recipient
	for _, rec := range r.rows {
		if filter.CampaignID != nil && rec.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRecipientRepo) Save(ctx context.Context, rec *models.Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Status == "" {
		rec.Status = models.RecipientStatusPending
	}
	if rec.ID == 0 {
		r.nextID++
		rec.ID = r.nextID
	}
	cp := *rec
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memRecipientRepo) SaveBatch(ctx context.Context, recs []*models.Recipient) error {
	if r.beforeSaveBatch != nil {
		r.beforeSaveBatch()
	}
	r.mu.Lock()
	for _, rec := range recs {
		for _, row := range r.rows {
			if row.CampaignID == rec.CampaignID && row.SourceType == rec.SourceType && row.SourceID == rec.SourceID {
				r.mu.Unlock()
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.mu.Unlock()
	for _, rec := range recs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRecipientRepo) Count(ctx context.Context, filter models.RecipientFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memRecipientRepo) Exists(ctx context.Context, filter models.RecipientFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memRecipientRepo) ListPending(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listPendingErr != nil {
		return nil, r.listPendingErr
	}
	var out []*models.Recipient
	for _, rec := range r.rows {
		if rec.CampaignID == campaignID && rec.Status == models.RecipientStatusPending {
			cp := *rec
			out = append(out, &cp)
		}
	}
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) && offset > 0 {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRecipientRepo) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	return r.Count(ctx, models.RecipientFilter{CampaignID: &campaignID})
}

func (r *memRecipientRepo) CountByCampaignAndStatus(ctx context.Context, campaignID uint, status models.RecipientStatus) (int64, error) {
	return r.Count(ctx, models.RecipientFilter{CampaignID: &campaignID, Status: &status})
}

func (r *memRecipientRepo) MarkSent(ctx context.Context, id uint, messageID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.rows {
		if rec.ID == id && rec.Status == models.RecipientStatusPending {
			rec.Status = models.RecipientStatusSent
			rec.MessageID = &messageID
			rec.SentAt = &at
		}
	}
	return nil
}

func (r *memRecipientRepo) MarkFailed(ctx context.Context, id uint, errText string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.rows {
		if rec.ID == id && rec.Status == models.RecipientStatusPending {
			rec.Status = models.RecipientStatusFailed
			rec.ErrorText = &errText
		}
	}
	return nil
}

func (r *memRecipientRepo) RecordClick(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.rows {
		if rec.ID == id {
			rec.ClickedCount++
			if rec.FirstClickedAt == nil {
				first := at
				rec.FirstClickedAt = &first
			}
			last := at
			rec.LastClickedAt = &last
		}
	}
	return nil
}

func (r *memRecipientRepo) DeleteByCampaignAndID(ctx context.Context, campaignID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.rows {
		if rec.CampaignID == campaignID && rec.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memRecipientRepo) byStatus(campaignID uint, status models.RecipientStatus) []*models.Recipient {
	out, _ := r.ByFilter(context.Background(), models.RecipientFilter{CampaignID: &campaignID, Status: &status}, "", 0, 0)
	return out
}

type memLinkRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   []*models.Link

	// When > 0, ExistsShortCode reports a collision this many times first.
	collisions int
	saveErr    error
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{}
}

func (r *memLinkRepo) ByID(ctx context.Context, id uint) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memLinkRepo) ByFilter(ctx context.Context, filter models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Link
	for _, l := range r.rows {
		if filter.CampaignID != nil && l.CampaignID != *filter.CampaignID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLinkRepo) Save(ctx context.Context, l *models.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, existing := range r.rows {
		if existing.CampaignID == l.CampaignID && existing.OriginalURL == l.OriginalURL {
			return fmt.Errorf("duplicate link for campaign %d: %s", l.CampaignID, l.OriginalURL)
		}
	}
	if l.ID == 0 {
		r.nextID++
		l.ID = r.nextID
	}
	cp := *l
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memLinkRepo) SaveBatch(ctx context.Context, ls []*models.Link) error {
	for _, l := range ls {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *memLinkRepo) Count(ctx context.Context, filter models.LinkFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memLinkRepo) Exists(ctx context.Context, filter models.LinkFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memLinkRepo) ByShortCode(ctx context.Context, code string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.ShortCode != nil && *l.ShortCode == code {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memLinkRepo) ByCampaignAndURL(ctx context.Context, campaignID uint, originalURL string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.CampaignID == campaignID && l.OriginalURL == originalURL {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memLinkRepo) ExistsShortCode(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collisions > 0 {
		r.collisions--
		return true, nil
	}
	for _, l := range r.rows {
		if l.ShortCode != nil && *l.ShortCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLinkRepo) IncrementClicks(ctx context.Context, id uint, unique bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.ID == id {
			l.TotalClicks++
			if unique {
				l.UniqueClicks++
			}
		}
	}
	return nil
}

type memClickRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   []*models.Click
}

func newMemClickRepo() *memClickRepo {
	return &memClickRepo{}
}

func (r *memClickRepo) ByID(ctx context.Context, id uint) (*models.Click, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memClickRepo) ByFilter(ctx context.Context, filter models.ClickFilter, orderBy string, limit, offset int) ([]*models.Click, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Click
	for _, c := range r.rows {
		if filter.LinkID != nil && c.LinkID != *filter.LinkID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memClickRepo) Save(ctx context.Context, c *models.Click) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	cp := *c
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memClickRepo) SaveBatch(ctx context.Context, cs []*models.Click) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *memClickRepo) Count(ctx context.Context, filter models.ClickFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memClickRepo) Exists(ctx context.Context, filter models.ClickFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memClickRepo) ExistsByLinkAndIP(ctx context.Context, tenantID, linkID uint, ip string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.TenantID == tenantID && c.LinkID == linkID && c.IPAddress == ip {
			return true, nil
		}
	}
	return false, nil
}

func (r *memClickRepo) CountByLink(ctx context.Context, linkID uint) (int64, error) {
	return r.Count(ctx, models.ClickFilter{LinkID: &linkID})
}

type memLogRepo struct {
	mu   sync.Mutex
	rows []*models.CampaignLog
}

func newMemLogRepo() *memLogRepo {
	return &memLogRepo{}
}

func (r *memLogRepo) ByID(ctx context.Context, id uint) (*models.CampaignLog, error) {
	return nil, nil
}

func (r *memLogRepo) ByFilter(ctx context.Context, filter models.CampaignLogFilter, orderBy string, limit, offset int) ([]*models.CampaignLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignLog
	for _, l := range r.rows {
		if filter.CampaignID != nil && l.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Action != nil && l.Action != *filter.Action {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memLogRepo) Save(ctx context.Context, l *models.CampaignLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memLogRepo) SaveBatch(ctx context.Context, ls []*models.CampaignLog) error {
	for _, l := range ls {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *memLogRepo) Count(ctx context.Context, filter models.CampaignLogFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memLogRepo) Exists(ctx context.Context, filter models.CampaignLogFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memLogRepo) actions(campaignID uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.rows {
		if l.CampaignID == campaignID {
			out = append(out, l.Action)
		}
	}
	return out
}

// fakeDirectory serves canned leads and contacts
type fakeDirectory struct {
	leads    []models.AudienceCandidate
	contacts []models.AudienceCandidate
}

func (d *fakeDirectory) ListLeads(ctx context.Context, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error) {
	return d.filtered(d.leads, filter), nil
}

func (d *fakeDirectory) ListContacts(ctx context.Context, tenantID uint, filter models.DirectoryFilter, limit int) ([]models.AudienceCandidate, error) {
	return d.filtered(d.contacts, filter), nil
}

func (d *fakeDirectory) filtered(in []models.AudienceCandidate, filter models.DirectoryFilter) []models.AudienceCandidate {
	if len(filter.Tags) == 0 {
		return in
	}
	// Candidate IDs carry their tags in tests via the name suffix "#tag".
	var out []models.AudienceCandidate
	for _, c := range in {
		for _, tag := range filter.Tags {
			if strings.Contains(c.Name, "#"+tag) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
