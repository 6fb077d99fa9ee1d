package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/germanilia/presentation-maker/internal/infra/httpclient"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

// YouTube is the video-search Provider backed by the YouTube Data API v3.
// Videos are ranked by a weighted blend of recency, views, channel
// subscribers, and likes.
type YouTube struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
	logger     *logger.Logger
	now        func() time.Time
}

func NewYouTube(apiKey string, client *httpclient.Client, log *logger.Logger) *YouTube {
	return &YouTube{
		apiKey:     apiKey,
		baseURL:    youtubeAPIBase,
		httpClient: client,
		logger:     log,
		now:        time.Now,
	}
}

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Fetch(ctx context.Context, subTopic string, maxResults int) (Result, error) {
	result := Result{SubTopic: subTopic}

	if y.apiKey == "" {
		return result, errors.New(errors.ErrCodeProviderAuth, "youtube API key is not configured")
	}

	items, err := y.search(ctx, subTopic, maxResults)
	if err != nil {
		return result, err
	}
	if len(items) == 0 {
		return result, nil
	}

	videoIDs := make([]string, 0, len(items))
	channelIDs := make([]string, 0, len(items))
	for _, it := range items {
		videoIDs = append(videoIDs, it.ID.VideoID)
		channelIDs = append(channelIDs, it.Snippet.ChannelID)
	}

	stats, err := y.videoStats(ctx, videoIDs)
	if err != nil {
		return result, err
	}
	subs, err := y.channelSubscribers(ctx, channelIDs)
	if err != nil {
		return result, err
	}

	for _, it := range items {
		st := stats[it.ID.VideoID]
		score := scoreVideo(y.daysSince(st.publishedAt), st.views, subs[it.Snippet.ChannelID], st.likes)
		result.Hits = append(result.Hits, Hit{
			Title:   it.Snippet.Title,
			URL:     "https://www.youtube.com/watch?v=" + it.ID.VideoID,
			Snippet: it.Snippet.Description,
			Score:   score,
		})
	}

	y.logger.Debug("youtube search completed", "sub_topic", subTopic, "hits", len(result.Hits))
	return result, nil
}

type youtubeSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ChannelID   string `json:"channelId"`
	} `json:"snippet"`
}

func (y *YouTube) search(ctx context.Context, query string, maxResults int) ([]youtubeSearchItem, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("key", y.apiKey)

	var parsed struct {
		Items []youtubeSearchItem `json:"items"`
	}
	if err := y.getJSON(ctx, "/search", params, &parsed); err != nil {
		return nil, err
	}
	return parsed.Items, nil
}

type videoStat struct {
	views       int64
	likes       int64
	publishedAt time.Time
}

func (y *YouTube) videoStats(ctx context.Context, ids []string) (map[string]videoStat, error) {
	params := url.Values{}
	params.Set("part", "statistics,snippet")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", y.apiKey)

	var parsed struct {
		Items []struct {
			ID         string `json:"id"`
			Statistics struct {
				ViewCount string `json:"viewCount"`
				LikeCount string `json:"likeCount"`
			} `json:"statistics"`
			Snippet struct {
				PublishedAt time.Time `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := y.getJSON(ctx, "/videos", params, &parsed); err != nil {
		return nil, err
	}

	stats := make(map[string]videoStat, len(parsed.Items))
	for _, it := range parsed.Items {
		stats[it.ID] = videoStat{
			views:       parseCount(it.Statistics.ViewCount),
			likes:       parseCount(it.Statistics.LikeCount),
			publishedAt: it.Snippet.PublishedAt,
		}
	}
	return stats, nil
}

func (y *YouTube) channelSubscribers(ctx context.Context, ids []string) (map[string]int64, error) {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", y.apiKey)

	var parsed struct {
		Items []struct {
			ID         string `json:"id"`
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := y.getJSON(ctx, "/channels", params, &parsed); err != nil {
		return nil, err
	}

	subs := make(map[string]int64, len(parsed.Items))
	for _, it := range parsed.Items {
		subs[it.ID] = parseCount(it.Statistics.SubscriberCount)
	}
	return subs, nil
}

func (y *YouTube) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	resp, err := y.httpClient.Get(ctx, y.baseURL+path+"?"+params.Encode())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeProviderTransient, "youtube request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeProviderTransient, "failed to read youtube response")
	}

	if resp.StatusCode != http.StatusOK {
		y.logger.Warn("youtube API error", "status", resp.StatusCode, "path", path)
		return classifyStatus(resp.StatusCode, "youtube")
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeProviderTransient, fmt.Sprintf("failed to parse youtube %s response", path))
	}
	return nil
}

func (y *YouTube) daysSince(t time.Time) int {
	if t.IsZero() {
		return 365
	}
	days := int(y.now().Sub(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// scoreVideo blends recency, views, subscribers and likes into [0, 1]:
// 0.4 recency + 0.4 views + 0.1 subscribers + 0.1 likes, with views,
// subscribers and likes on log scales.
func scoreVideo(daysSincePublished int, views, subscribers, likes int64) float64 {
	dateScore := math.Max(0, float64(365-min(daysSincePublished, 365))/365)
	viewScore := math.Min(1, math.Log(float64(views)+1)/math.Log(10_000_000))
	subScore := math.Min(1, math.Log(float64(subscribers)+1)/math.Log(10_000_000))
	likeScore := math.Min(1, math.Log(float64(likes)+1)/math.Log(100_000))

	score := 0.4*dateScore + 0.4*viewScore + 0.1*subScore + 0.1*likeScore
	return math.Round(score*1000) / 1000
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
