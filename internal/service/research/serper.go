package research

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/germanilia/presentation-maker/internal/infra/httpclient"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper is the web-search Provider backed by the Serper API.
type Serper struct {
	apiKey     string
	endpoint   string
	httpClient *httpclient.Client
	logger     *logger.Logger
}

func NewSerper(apiKey string, client *httpclient.Client, log *logger.Logger) *Serper {
	return &Serper{
		apiKey:     apiKey,
		endpoint:   serperEndpoint,
		httpClient: client,
		logger:     log,
	}
}

func (s *Serper) Name() string { return "serper" }

type serperOrganic struct {
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Snippet     string          `json:"snippet"`
	Date        string          `json:"date"`
	RichSnippet json.RawMessage `json:"richSnippet"`
}

func (s *Serper) Fetch(ctx context.Context, subTopic string, maxResults int) (Result, error) {
	result := Result{SubTopic: subTopic}

	if s.apiKey == "" {
		return result, errors.New(errors.ErrCodeProviderAuth, "serper API key is not configured")
	}

	payload, err := json.Marshal(map[string]string{"q": subTopic})
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal serper query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeInternal, "failed to build serper request")
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeProviderTransient, "serper request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeProviderTransient, "failed to read serper response")
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("serper API error", "status", resp.StatusCode, "sub_topic", subTopic)
		return result, classifyStatus(resp.StatusCode, "serper")
	}

	var parsed struct {
		Organic []serperOrganic `json:"organic"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return result, errors.Wrap(err, errors.ErrCodeProviderTransient, "failed to parse serper response")
	}

	for _, item := range parsed.Organic {
		if len(result.Hits) >= maxResults {
			break
		}
		result.Hits = append(result.Hits, Hit{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Score:   scoreWebResult(item),
		})
	}

	s.logger.Debug("serper search completed", "sub_topic", subTopic, "hits", len(result.Hits))
	return result, nil
}

// scoreWebResult ranks an organic result: 0.5 base, +0.2 for a publish
// date, +0.3 for a rich snippet.
func scoreWebResult(item serperOrganic) float64 {
	score := 0.5
	if item.Date != "" {
		score += 0.2
	}
	if len(item.RichSnippet) > 0 && string(item.RichSnippet) != "null" {
		score += 0.3
	}
	return score
}
