package businessflow

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcrm/outreach-engine/models"
	"github.com/orbitcrm/outreach-engine/utils"
)

func testCampaign(channel models.CampaignChannel, utm models.UTMSpec) *models.Campaign {
	return &models.Campaign{
		ID:       1,
		TenantID: 7,
		Name:     "spring-promo",
		Channel:  channel,
		UTM:      utm,
	}
}

func newTestTagger(links *memLinkRepo) LinkTagger {
	return NewLinkTagger(links, LinkTaggerConfig{
		ShortLinkDomain: "https://go.example.com",
		ShortCodeLength: 8,
	})
}

func TestTagAppendsUTMParameters(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true})

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "Check out https://example.com/pricing today",
		ContentType: ContentTypeText,
	})
	require.NoError(t, err)
	require.Len(t, res.Links, 1)

	parsed, err := url.Parse(res.Links[0].TaggedURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "crm", q.Get("utm_source"))
	assert.Equal(t, "email", q.Get("utm_medium"))
	assert.Equal(t, "spring-promo", q.Get("utm_campaign"))
	assert.Contains(t, res.Content, "utm_source=crm")
	assert.NotContains(t, res.Content, "https://example.com/pricing today")
}

func TestTagCampaignOverridesBeatChannelDefaults(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{
		Enabled: true,
		Source:  utils.ToPtr("newsletter"),
		Medium:  utils.ToPtr("broadcast"),
	})

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "https://example.com/a",
		ContentType: ContentTypeText,
	})
	require.NoError(t, err)
	require.Len(t, res.Links, 1)

	parsed, _ := url.Parse(res.Links[0].TaggedURL)
	assert.Equal(t, "newsletter", parsed.Query().Get("utm_source"))
	assert.Equal(t, "broadcast", parsed.Query().Get("utm_medium"))
}

func TestTagRecipientDerivedParameters(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true})
	recipient := &models.Recipient{
		ID:         42,
		SourceType: models.RecipientSourceLead,
		Email:      utils.ToPtr("dana@example.com"),
	}

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "https://example.com/a",
		ContentType: ContentTypeText,
		Recipient:   recipient,
	})
	require.NoError(t, err)

	// Content carries recipient-level parameters, the stored row stays campaign-level.
	assert.Contains(t, res.Content, "utm_term=dana%40example.com")
	assert.Contains(t, res.Content, "utm_id="+EncodeRecipientRef(42))
	assert.Contains(t, res.Content, "utm_content=email_lead_42")
	require.Len(t, res.Links, 1)
	assert.Nil(t, res.Links[0].UTMTerm)
}

func TestTagIdempotence(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true})
	content := "visit https://example.com/promo now"

	first, err := tagger.Tag(context.Background(), campaign, TagInput{Content: content, ContentType: ContentTypeText})
	require.NoError(t, err)

	// Tagging the already-rewritten content is a no-op.
	second, err := tagger.Tag(context.Background(), campaign, TagInput{Content: first.Content, ContentType: ContentTypeText})
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.Empty(t, second.Links)

	// The raw content again reuses the stored row instead of creating a sibling.
	third, err := tagger.Tag(context.Background(), campaign, TagInput{Content: content, ContentType: ContentTypeText})
	require.NoError(t, err)
	require.Len(t, third.Links, 1)
	assert.Equal(t, first.Links[0].ID, third.Links[0].ID)

	n, _ := links.Count(context.Background(), models.LinkFilter{CampaignID: &campaign.ID})
	assert.EqualValues(t, 1, n)
}

func TestTagSkipsNonHTTPAndPreTagged(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true})

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "see https://other.com/x?utm_source=ext and https://example.com/y",
		ContentType: ContentTypeText,
	})
	require.NoError(t, err)
	require.Len(t, res.Links, 1)
	assert.Equal(t, "https://example.com/y", res.Links[0].OriginalURL)
	assert.Contains(t, res.Content, "https://other.com/x?utm_source=ext")
}

func TestTagHTMLRewritesHrefOnly(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true})

	html := `<p>Go to <a href="https://example.com/buy">https://example.com/buy</a></p>`
	res, err := tagger.Tag(context.Background(), campaign, TagInput{Content: html, ContentType: ContentTypeHTML})
	require.NoError(t, err)
	require.Len(t, res.Links, 1)

	// The href is rewritten, the visible anchor text is left alone.
	assert.Contains(t, res.Content, `href="`+res.Links[0].TaggedURL+`"`)
	assert.Contains(t, res.Content, `>https://example.com/buy</a>`)
}

func TestTagTextPrefixURLsRewriteIndependently(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true})

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "Start at https://example.com/a then read https://example.com/a/deep",
		ContentType: ContentTypeText,
	})
	require.NoError(t, err)
	require.Len(t, res.Links, 2)

	// The shorter URL's rewrite must not clobber the longer one it prefixes.
	byOriginal := make(map[string]string, 2)
	for _, l := range res.Links {
		byOriginal[l.OriginalURL] = l.TaggedURL
	}
	assert.Contains(t, res.Content, byOriginal["https://example.com/a"])
	assert.Contains(t, res.Content, byOriginal["https://example.com/a/deep"])
	assert.NotContains(t, res.Content, byOriginal["https://example.com/a"]+"/deep")
}

func TestTagDisabledUTMLeavesContentAlone(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: false})

	content := "https://example.com/a"
	res, err := tagger.Tag(context.Background(), campaign, TagInput{Content: content, ContentType: ContentTypeText})
	require.NoError(t, err)
	assert.Equal(t, content, res.Content)
	assert.Empty(t, res.Links)
}

func TestShortLinkMintingAndRecipientRef(t *testing.T) {
	links := newMemLinkRepo()
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelWhatsApp, models.UTMSpec{Enabled: true, ShortLinks: true})
	recipient := &models.Recipient{ID: 9, SourceType: models.RecipientSourceCustom, Phone: utils.ToPtr("+15550001111")}

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "order at https://example.com/shop",
		ContentType: ContentTypeText,
		Recipient:   recipient,
	})
	require.NoError(t, err)
	require.Len(t, res.Links, 1)

	link := res.Links[0]
	require.NotNil(t, link.ShortCode)
	assert.Len(t, *link.ShortCode, 8)
	require.NotNil(t, link.ShortURL)
	assert.True(t, strings.HasPrefix(*link.ShortURL, "https://go.example.com/r/"))
	assert.Contains(t, res.Content, *link.ShortURL+"?r="+EncodeRecipientRef(9))
}

func TestShortCodeCollisionRetry(t *testing.T) {
	links := newMemLinkRepo()
	links.collisions = 3
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true, ShortLinks: true})

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "https://example.com/a",
		ContentType: ContentTypeText,
	})
	require.NoError(t, err)
	require.Len(t, res.Links, 1)
	assert.NotNil(t, res.Links[0].ShortCode)
}

func TestShortCodeExhaustionSkipsURLOnly(t *testing.T) {
	links := newMemLinkRepo()
	links.collisions = shortCodeMaxRetries
	tagger := newTestTagger(links)
	campaign := testCampaign(models.CampaignChannelEmail, models.UTMSpec{Enabled: true, ShortLinks: true})

	res, err := tagger.Tag(context.Background(), campaign, TagInput{
		Content:     "first https://example.com/a then https://example.com/b",
		ContentType: ContentTypeText,
	})
	require.NoError(t, err)

	// The first URL exhausted its retries and is skipped; the second still tags.
	require.Len(t, res.Links, 1)
	assert.Equal(t, "https://example.com/b", res.Links[0].OriginalURL)
	assert.Contains(t, res.Content, "https://example.com/a")
}

func TestRecipientRefRoundTrip(t *testing.T) {
	for _, id := range []uint{1, 42, 99999, 4294967295} {
		ref := EncodeRecipientRef(id)
		assert.LessOrEqual(t, len(ref), 16)
		decoded, err := DecodeRecipientRef(ref)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}

	_, err := DecodeRecipientRef("!!!not-base64!!!")
	assert.Error(t, err)
}
