// internal/providers/youtube/client.go
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	commonhttp "creator-match/internal/common/http"
	"creator-match/internal/common/logger"
	"creator-match/internal/common/metrics"
	"creator-match/internal/engine/quota"
	"creator-match/internal/models"
)

// Quota units per operation as charged by the Data API: search.list is 100
// plus one channels.list; activity is channels + playlistItems + videos.
const (
	SearchCost   = 101
	ActivityCost = 3
)

const (
	providerName   = "youtube"
	maxPageResults = 50
	channelURL     = "https://www.youtube.com/channel/"
)

var (
	ErrQuotaExhausted = fmt.Errorf("youtube: %w", quota.ErrProviderExhausted)
	ErrUnavailable    = errors.New("youtube api unavailable")
	ErrNotFound       = errors.New("youtube channel not found")
)

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute float64
	Burst             int
	RegionCode        string
	Language          string
}

// Client implements candidate search and recent-activity retrieval against
// the YouTube Data API v3.
type Client struct {
	config Config
	http   *commonhttp.Client
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(config Config, log logger.Logger, opts ...Option) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Client{
		config: config,
		http:   commonhttp.NewClient(config.Timeout, commonhttp.WithRateLimit(config.RequestsPerMinute, config.Burst)),
		logger: log.WithFields(map[string]interface{}{"component": "youtube"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- wire types ---

type searchResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []channelItem `json:"items"`
}

type channelItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CustomURL   string `json:"customUrl"`
		Country     string `json:"country"`
	} `json:"snippet"`
	Statistics struct {
		SubscriberCount       string `json:"subscriberCount"`
		HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
	} `json:"statistics"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
}

type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID          string `json:"videoId"`
			VideoPublishedAt string `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Tags        []string `json:"tags"`
			PublishedAt string   `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Search returns channels matching query, at most maxResults.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]models.Candidate, error) {
	if maxResults < 1 || maxResults > maxPageResults {
		maxResults = maxPageResults
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "channel")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if c.config.RegionCode != "" {
		params.Set("regionCode", c.config.RegionCode)
	}
	if c.config.Language != "" {
		params.Set("relevanceLanguage", c.config.Language)
	}

	var sr searchResponse
	if err := c.get(ctx, "search", "search", params, &sr); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sr.Items))
	seen := map[string]bool{}
	for _, it := range sr.Items {
		id := it.ID.ChannelID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []models.Candidate{}, nil
	}

	channels, err := c.channels(ctx, ids, "snippet,statistics")
	if err != nil {
		return nil, err
	}
	byID := make(map[string]channelItem, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	out := make([]models.Candidate, 0, len(ids))
	for _, id := range ids {
		ch, ok := byID[id]
		if !ok {
			continue
		}
		cand, err := toCandidate(ch)
		if err != nil {
			c.logger.Warn("dropping malformed channel record", map[string]interface{}{
				"channelId": id,
				"error":     err.Error(),
			})
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// FetchRecentActivity returns the channel's uploads published within the
// trailing windowDays, newest first.
func (c *Client) FetchRecentActivity(ctx context.Context, candidateID string, windowDays int) ([]models.ActivityItem, error) {
	channels, err := c.channels(ctx, []string{candidateID}, "contentDetails")
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 || channels[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, candidateID)
	}
	uploads := channels[0].ContentDetails.RelatedPlaylists.Uploads

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", uploads)
	params.Set("maxResults", strconv.Itoa(maxPageResults))
	var pr playlistItemsResponse
	if err := c.get(ctx, "playlistItems", "activity", params, &pr); err != nil {
		return nil, err
	}

	cutoff := c.now().AddDate(0, 0, -windowDays)
	var ids []string
	for _, it := range pr.Items {
		cd := it.ContentDetails
		if cd.VideoID == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, cd.VideoPublishedAt); err == nil && ts.Before(cutoff) {
			continue
		}
		ids = append(ids, cd.VideoID)
	}
	if len(ids) == 0 {
		return []models.ActivityItem{}, nil
	}

	params = url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", strings.Join(ids, ","))
	var vr videosResponse
	if err := c.get(ctx, "videos", "activity", params, &vr); err != nil {
		return nil, err
	}

	items := make([]models.ActivityItem, 0, len(vr.Items))
	for _, v := range vr.Items {
		published, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		if v.ID == "" || err != nil {
			continue
		}
		views, err1 := parseCount(v.Statistics.ViewCount)
		likes, err2 := parseCount(v.Statistics.LikeCount)
		comments, err3 := parseCount(v.Statistics.CommentCount)
		if err := errors.Join(err1, err2, err3); err != nil {
			c.logger.Warn("dropping malformed video record", map[string]interface{}{
				"videoId": v.ID,
				"error":   err.Error(),
			})
			continue
		}
		items = append(items, models.ActivityItem{
			ID:          v.ID,
			Title:       v.Snippet.Title,
			Description: v.Snippet.Description,
			Tags:        v.Snippet.Tags,
			PublishedAt: published.UTC(),
			Views:       views,
			Reactions:   likes,
			Comments:    comments,
		})
	}
	return items, nil
}

func (c *Client) channels(ctx context.Context, ids []string, parts string) ([]channelItem, error) {
	params := url.Values{}
	params.Set("part", parts)
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(maxPageResults))
	var cr channelsResponse
	if err := c.get(ctx, "channels", "channels", params, &cr); err != nil {
		return nil, err
	}
	return cr.Items, nil
}

func (c *Client) get(ctx context.Context, resource, operation string, params url.Values, out interface{}) error {
	if c.config.APIKey != "" {
		params.Set("key", c.config.APIKey)
	}
	start := time.Now()
	err := c.http.GetJSON(ctx, c.config.BaseURL+"/"+resource+"?"+params.Encode(), out)
	metrics.ProviderCallDuration.WithLabelValues(providerName, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		err = classify(ctx, err)
		outcome := "error"
		if errors.Is(err, ErrQuotaExhausted) {
			outcome = "quota"
		}
		metrics.ProviderCalls.WithLabelValues(providerName, operation, outcome).Inc()
		return fmt.Errorf("%s: %w", resource, err)
	}
	metrics.ProviderCalls.WithLabelValues(providerName, operation, "ok").Inc()
	return nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var se *commonhttp.StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 403 && (strings.Contains(se.Body, "quotaExceeded") || strings.Contains(se.Body, "dailyLimitExceeded")) {
			return ErrQuotaExhausted
		}
		if se.StatusCode == 404 {
			return ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func toCandidate(ch channelItem) (models.Candidate, error) {
	if ch.ID == "" {
		return models.Candidate{}, fmt.Errorf("missing channel id")
	}
	var followers int64
	if !ch.Statistics.HiddenSubscriberCount {
		n, err := parseCount(ch.Statistics.SubscriberCount)
		if err != nil {
			return models.Candidate{}, err
		}
		followers = n
	}
	u := channelURL + ch.ID
	if ch.Snippet.CustomURL != "" {
		u = "https://www.youtube.com/" + ch.Snippet.CustomURL
	}
	return models.Candidate{
		ID:          ch.ID,
		DisplayName: ch.Snippet.Title,
		Followers:   followers,
		Description: ch.Snippet.Description,
		Country:     ch.Snippet.Country,
		URL:         u,
	}, nil
}

// parseCount reads the API's string-encoded counters. Absent counters are
// zero; negative or non-numeric ones are malformed.
func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
