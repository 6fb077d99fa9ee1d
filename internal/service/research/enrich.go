package research

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/germanilia/presentation-maker/internal/infra/httpclient"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
)

// Summarizer condenses raw source material into a short research summary.
type Summarizer interface {
	Summarize(ctx context.Context, subTopic, material string) (string, error)
}

const (
	// enrichHitCap bounds how many hits per fetch get the expensive
	// scrape-and-summarize treatment.
	enrichHitCap = 3
	// pageBodyCap bounds how much of a result page is read.
	pageBodyCap = 512 * 1024

	transcriptEndpoint = "https://video.google.com/timedtext"
)

// Enriched decorates a Provider: after the inner fetch it pulls the full
// source behind each top hit (the result page for web hits, the caption
// track for video hits) and replaces the hit's snippet with a model-written
// summary of it. Enrichment is best effort; any per-hit failure keeps the
// original snippet.
type Enriched struct {
	inner          Provider
	summarizer     Summarizer
	httpClient     *httpclient.Client
	logger         *logger.Logger
	transcriptBase string
}

func NewEnriched(inner Provider, summarizer Summarizer, client *httpclient.Client, log *logger.Logger) *Enriched {
	return &Enriched{
		inner:          inner,
		summarizer:     summarizer,
		httpClient:     client,
		logger:         log,
		transcriptBase: transcriptEndpoint,
	}
}

func (e *Enriched) Name() string { return e.inner.Name() }

func (e *Enriched) Fetch(ctx context.Context, subTopic string, maxResults int) (Result, error) {
	result, err := e.inner.Fetch(ctx, subTopic, maxResults)
	if err != nil {
		return result, err
	}

	for i := range result.Hits {
		if i >= enrichHitCap {
			break
		}
		if ctx.Err() != nil {
			break
		}

		hit := &result.Hits[i]
		material, merr := e.material(ctx, *hit)
		if merr != nil || strings.TrimSpace(material) == "" {
			e.logger.Debug("source material unavailable, keeping raw snippet", "url", hit.URL, "error", merr)
			continue
		}

		summary, serr := e.summarizer.Summarize(ctx, subTopic, material)
		if serr != nil {
			e.logger.Warn("source summarization failed, keeping raw snippet", "url", hit.URL, "error", serr)
			continue
		}
		hit.Snippet = summary
	}

	return result, nil
}

func (e *Enriched) material(ctx context.Context, hit Hit) (string, error) {
	if videoID := youtubeVideoID(hit.URL); videoID != "" {
		return e.transcript(ctx, videoID)
	}
	return e.pageText(ctx, hit.URL)
}

// pageText scrapes the visible text out of a result page.
func (e *Enriched) pageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := e.httpClient.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	return extractText(io.LimitReader(resp.Body, pageBodyCap)), nil
}

// extractText tokenizes HTML and keeps the text nodes, skipping the
// subtrees that never carry content.
func extractText(r io.Reader) string {
	skip := map[string]bool{
		"script": true, "style": true, "nav": true,
		"header": true, "footer": true, "noscript": true,
	}

	var b strings.Builder
	z := html.NewTokenizer(r)
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skip[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skip[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(text)
		}
	}
}

// transcript pulls the English caption track for a video. Not every video
// publishes one; a missing track surfaces as empty material and the hit
// keeps its snippet.
func (e *Enriched) transcript(ctx context.Context, videoID string) (string, error) {
	u := fmt.Sprintf("%s?lang=en&v=%s", e.transcriptBase, url.QueryEscape(videoID))
	resp, err := e.httpClient.Get(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption track returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageBodyCap))
	if err != nil {
		return "", err
	}

	var track struct {
		Lines []string `xml:"text"`
	}
	if err := xml.Unmarshal(body, &track); err != nil {
		return "", fmt.Errorf("failed to parse caption track: %w", err)
	}

	var b strings.Builder
	for _, line := range track.Lines {
		line = strings.TrimSpace(html.UnescapeString(line))
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

// youtubeVideoID extracts the video ID from watch and short-link URLs; a
// non-video URL yields "".
func youtubeVideoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		return u.Query().Get("v")
	case "youtu.be":
		return strings.TrimPrefix(u.Path, "/")
	default:
		return ""
	}
}
