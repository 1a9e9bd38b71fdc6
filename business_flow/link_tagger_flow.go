package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/orbitcrm/outreach-engine/app/metrics"
	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/repository"
	"github.com/orbitcrm/outreach-engine/utils"
)

// Content types accepted by the link tagger
const (
	ContentTypeHTML = "html"
	ContentTypeText = "text"
)

const shortCodeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const shortCodeMaxRetries = 5

var (
	htmlAnchorPattern = regexp.MustCompile(`(?is)<a\s[^>]*href=["']([^"']+)["'][^>]*>(.*?)</a>`)
	htmlHrefPattern   = regexp.MustCompile(`(?i)href=["']([^"']+)["']`)
	textURLPattern    = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// TagInput carries one piece of content through the tagger
type TagInput struct {
	Content     string
	ContentType string
	// Explicit caller overrides; highest precedence in the UTM merge
	Overrides map[string]string
	// When known, recipient-derived UTM fields and the tracking parameter are attached
	Recipient *models.Recipient
}

// TagResult is the rewritten content plus the link rows touched by this call
type TagResult struct {
	Content string
	Links   []*models.Link
}

// LinkTagger extracts URLs from outgoing content, tags them with UTM parameters,
// persists one link row per (campaign, original URL) and rewrites the content.
// Re-processing the same content is a no-op: already-tagged URLs are skipped and
// existing link rows are reused.
type LinkTagger interface {
	Tag(ctx context.Context, campaign *models.Campaign, in TagInput) (*TagResult, error)
}

// LinkTaggerConfig holds short link issuance settings
type LinkTaggerConfig struct {
	ShortLinkDomain string
	ShortCodeLength int
}

// LinkTaggerFlowImpl implements LinkTagger
type LinkTaggerFlowImpl struct {
	linkRepo repository.LinkRepository
	cfg      LinkTaggerConfig
}

// NewLinkTagger creates a new link tagger flow
func NewLinkTagger(linkRepo repository.LinkRepository, cfg LinkTaggerConfig) LinkTagger {
	if cfg.ShortCodeLength <= 0 {
		cfg.ShortCodeLength = 8
	}
	cfg.ShortLinkDomain = strings.TrimRight(cfg.ShortLinkDomain, "/")
	return &LinkTaggerFlowImpl{linkRepo: linkRepo, cfg: cfg}
}

// Tag processes the content. A short-code exhaustion is fatal only for that URL;
// tagging continues for the remaining ones.
func (f *LinkTaggerFlowImpl) Tag(ctx context.Context, campaign *models.Campaign, in TagInput) (*TagResult, error) {
	if !campaign.UTM.Enabled {
		return &TagResult{Content: in.Content}, nil
	}

	urls := extractURLs(in.Content, in.ContentType)
	result := &TagResult{Content: in.Content}

	type rewrite struct {
		original, replacement string
	}
	var rewrites []rewrite

	for _, original := range urls {
		if !isTaggable(original) {
			continue
		}

		link, err := f.linkRepo.ByCampaignAndURL(ctx, campaign.ID, original)
		if err != nil {
			return nil, NewBusinessError("LINK_LOOKUP_FAILED", "Failed to lookup link", err)
		}
		if link == nil {
			link, err = f.createLink(ctx, campaign, original)
			if err != nil {
				if IsShortCodeExhausted(err) {
					continue
				}
				return nil, err
			}
		}
		result.Links = append(result.Links, link)
		rewrites = append(rewrites, rewrite{original, f.replacementURL(campaign, link, in)})
	}

	// Longer URLs first, so a URL that is a prefix of another never clobbers
	// the longer one's occurrence in plain text.
	sort.SliceStable(rewrites, func(i, j int) bool {
		return len(rewrites[i].original) > len(rewrites[j].original)
	})
	for _, rw := range rewrites {
		result.Content = rewriteContent(result.Content, in.ContentType, rw.original, rw.replacement)
	}

	return result, nil
}

func (f *LinkTaggerFlowImpl) createLink(ctx context.Context, campaign *models.Campaign, original string) (*models.Link, error) {
	params := mergeUTMParams(campaign, nil, nil)
	tagged, err := appendQueryParams(original, params)
	if err != nil {
		return nil, NewBusinessError("LINK_TAGGING_FAILED", "Failed to tag link", err)
	}

	link := &models.Link{
		CampaignID:  campaign.ID,
		TenantID:    campaign.TenantID,
		OriginalURL: original,
		TaggedURL:   tagged,
		UTMSource:   optParam(params, "utm_source"),
		UTMMedium:   optParam(params, "utm_medium"),
		UTMCampaign: optParam(params, "utm_campaign"),
		UTMTerm:     optParam(params, "utm_term"),
		UTMContent:  optParam(params, "utm_content"),
	}

	if campaign.UTM.ShortLinks {
		code, err := f.mintShortCode(ctx)
		if err != nil {
			return nil, err
		}
		link.ShortCode = &code
		link.ShortURL = utils.ToPtr(f.cfg.ShortLinkDomain + "/r/" + code)
	}

	if err := f.linkRepo.Save(ctx, link); err != nil {
		return nil, NewBusinessError("LINK_SAVE_FAILED", "Failed to save link", err)
	}
	return link, nil
}

// mintShortCode allocates a globally unique short code, retrying on collision.
// Generation is serialized so two concurrent taggers cannot race the same code
// past the existence check.
func (f *LinkTaggerFlowImpl) mintShortCode(ctx context.Context) (string, error) {
	lockShortCodeGen()
	defer unlockShortCodeGen()

	for attempt := 0; attempt < shortCodeMaxRetries; attempt++ {
		code, err := randomShortCode(f.cfg.ShortCodeLength)
		if err != nil {
			return "", NewBusinessError("SHORT_CODE_GENERATION_FAILED", "Failed to generate short code", err)
		}
		exists, err := f.linkRepo.ExistsShortCode(ctx, code)
		if err != nil {
			return "", NewBusinessError("SHORT_CODE_LOOKUP_FAILED", "Failed to check short code uniqueness", err)
		}
		if !exists {
			metrics.ShortCodesMinted.Inc()
			return code, nil
		}
	}
	return "", ErrShortCodeExhausted
}

func randomShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(shortCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		b[i] = shortCodeCharset[num.Int64()]
	}
	return string(b), nil
}

// replacementURL yields the URL that goes into the rewritten content. Short links
// carry the recipient reference as a query parameter; plain tagged links carry
// the full merged UTM set including recipient-derived fields.
func (f *LinkTaggerFlowImpl) replacementURL(campaign *models.Campaign, link *models.Link, in TagInput) string {
	if link.ShortURL != nil {
		short := *link.ShortURL
		if in.Recipient != nil {
			short += "?r=" + EncodeRecipientRef(in.Recipient.ID)
		}
		return short
	}

	params := mergeUTMParams(campaign, in.Recipient, in.Overrides)
	tagged, err := appendQueryParams(link.OriginalURL, params)
	if err != nil {
		return link.TaggedURL
	}
	return tagged
}

// mergeUTMParams assembles UTM parameters in increasing precedence:
// channel defaults, campaign-level overrides, recipient-derived fields,
// explicit caller overrides.
func mergeUTMParams(campaign *models.Campaign, recipient *models.Recipient, overrides map[string]string) map[string]string {
	params := map[string]string{
		"utm_source":   "crm",
		"utm_medium":   campaign.Channel.String(),
		"utm_campaign": campaign.Name,
	}

	utm := campaign.UTM
	if utm.Source != nil && *utm.Source != "" {
		params["utm_source"] = *utm.Source
	}
	if utm.Medium != nil && *utm.Medium != "" {
		params["utm_medium"] = *utm.Medium
	}
	if utm.Campaign != nil && *utm.Campaign != "" {
		params["utm_campaign"] = *utm.Campaign
	}
	if utm.Term != nil && *utm.Term != "" {
		params["utm_term"] = *utm.Term
	}
	if utm.Content != nil && *utm.Content != "" {
		params["utm_content"] = *utm.Content
	}

	if recipient != nil {
		if addr := recipient.Address(campaign.Channel); addr != "" {
			params["utm_term"] = addr
		}
		params["utm_id"] = EncodeRecipientRef(recipient.ID)
		params["utm_content"] = fmt.Sprintf("%s_%s_%d", campaign.Channel, recipient.SourceType, recipient.ID)
	}

	for k, v := range overrides {
		if v != "" {
			params[k] = v
		}
	}
	return params
}

// EncodeRecipientRef derives a short, reversible, URL-safe token from a
// recipient ID. Truncation to 16 characters never bites for uint IDs.
func EncodeRecipientRef(id uint) string {
	enc := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
	if len(enc) > 16 {
		enc = enc[:16]
	}
	return enc
}

// DecodeRecipientRef reverses EncodeRecipientRef
func DecodeRecipientRef(ref string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid recipient ref: %w", err)
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid recipient ref: %w", err)
	}
	return uint(id), nil
}

// extractURLs returns the unique, ordered URLs found in the content
func extractURLs(content, contentType string) []string {
	var found []string
	if contentType == ContentTypeHTML {
		// Anchors with visible link text first, bare href occurrences as fallback.
		for _, m := range htmlAnchorPattern.FindAllStringSubmatch(content, -1) {
			if strings.TrimSpace(m[2]) != "" {
				found = append(found, m[1])
			}
		}
		for _, m := range htmlHrefPattern.FindAllStringSubmatch(content, -1) {
			found = append(found, m[1])
		}
	} else {
		for _, m := range textURLPattern.FindAllString(content, -1) {
			found = append(found, strings.TrimRight(m, ".,;:!?)"))
		}
	}

	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, u := range found {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// isTaggable rejects non-HTTP schemes and URLs already carrying UTM parameters
func isTaggable(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	q := parsed.Query()
	if q.Get("utm_source") != "" || q.Get("utm_medium") != "" {
		return false
	}
	return true
}

func appendQueryParams(raw string, params map[string]string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// rewriteContent swaps the original URL for its replacement. For HTML only the
// href attribute occurrence is touched so substring matches elsewhere in the
// document survive untouched.
func rewriteContent(content, contentType, original, replacement string) string {
	if contentType == ContentTypeHTML {
		content = strings.ReplaceAll(content, `href="`+original+`"`, `href="`+replacement+`"`)
		content = strings.ReplaceAll(content, `href='`+original+`'`, `href='`+replacement+`'`)
		return content
	}
	return strings.ReplaceAll(content, original, replacement)
}

func optParam(params map[string]string, key string) *string {
	if v, ok := params[key]; ok && v != "" {
		return &v
	}
	return nil
}
