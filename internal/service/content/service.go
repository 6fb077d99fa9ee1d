// Package content turns a sub-topic plus research material into structured
// slide content via a text-generation model. Model output is parsed into an
// explicit shape and validated; an invalid shape gets one corrective
// re-prompt before it becomes a synthesis error.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/germanilia/presentation-maker/internal/infra/httpclient"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/internal/service/research"
	"github.com/germanilia/presentation-maker/pkg/errors"
	"github.com/germanilia/presentation-maker/pkg/util"
)

// Table is an optional comparison table on a slide.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// SlideContent is the validated outline for one sub-topic's slide. At least
// one of Bullets or Table is set for a fully synthesized slide; a degraded
// slide carries only the title.
type SlideContent struct {
	SubTopic string   `json:"sub_topic"`
	Title    string   `json:"title"`
	Bullets  []string `json:"bullets,omitempty"`
	Table    *Table   `json:"table,omitempty"`
	// Notes carries the research summary into the slide's speaker notes.
	Notes string `json:"notes,omitempty"`
}

// TitleOnly builds the degraded slide used when synthesis is exhausted.
func TitleOnly(subTopic string) SlideContent {
	return SlideContent{SubTopic: subTopic, Title: subTopic}
}

type Options struct {
	MaxBullets    int
	MaxBulletLen  int
	MaxSnippetLen int
}

type Service struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *httpclient.Client
	logger     *logger.Logger
	opts       Options
}

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

func New(apiKey, model string, opts Options, client *httpclient.Client, log *logger.Logger) *Service {
	if opts.MaxBullets <= 0 {
		opts.MaxBullets = 5
	}
	if opts.MaxBulletLen <= 0 {
		opts.MaxBulletLen = 220
	}
	if opts.MaxSnippetLen <= 0 {
		opts.MaxSnippetLen = 2000
	}
	return &Service{
		apiKey:     apiKey,
		model:      model,
		endpoint:   geminiEndpoint,
		httpClient: client,
		logger:     log,
		opts:       opts,
	}
}

// Synthesize generates slide content for one sub-topic. A shape violation
// triggers a single corrective re-prompt carrying the validation error; a
// second violation returns a SYNTHESIS_SHAPE error. Upstream faults return
// SYNTHESIS_UPSTREAM so the caller can apply its retry policy.
func (s *Service) Synthesize(ctx context.Context, subTopic, instructions string, res research.Result) (SlideContent, error) {
	prompt := s.buildPrompt(subTopic, instructions, res)

	var shapeErr error
	for attempt := 0; attempt < 2; attempt++ {
		p := prompt
		if shapeErr != nil {
			p = fmt.Sprintf("%s\n\nThe previous attempt failed validation: %v\nFix the error and return valid JSON matching the schema exactly.", prompt, shapeErr)
		}

		raw, err := s.generate(ctx, p, "application/json")
		if err != nil {
			return SlideContent{}, err
		}

		slide, err := s.parseAndValidate(subTopic, raw)
		if err == nil {
			slide.Notes = summarizeNotes(res)
			return slide, nil
		}
		shapeErr = err
		s.logger.Warn("slide content failed shape validation",
			"sub_topic", subTopic,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return SlideContent{}, errors.Wrap(shapeErr, errors.ErrCodeSynthesisShape, "model output failed shape validation twice")
}

func (s *Service) buildPrompt(subTopic, instructions string, res research.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a single presentation slide about %q.\n", subTopic)
	if instructions != "" {
		fmt.Fprintf(&b, "General instructions: %s\n", instructions)
	}

	if len(res.Hits) > 0 {
		b.WriteString("\nSource material:\n")
		for _, hit := range res.Hits {
			fmt.Fprintf(&b, "- %s (%s): %s\n", hit.Title, hit.URL, util.Truncate(hit.Snippet, s.opts.MaxSnippetLen))
		}
	} else {
		b.WriteString("\nNo source material is available; rely on general knowledge of the topic.\n")
	}

	fmt.Fprintf(&b, `
The slide content must be directly related to %q and grounded in the source material.
Use bullets for several points, a table only to compare things. Each bullet
should read "Header - content" and there must be at most %d bullets.

Return only a JSON object with this shape:
{
  "title": "short slide title",
  "bullets": ["Header - content", ...],
  "table": {"headers": ["..."], "rows": [["..."]]}
}
"bullets" and "table" are each optional but at least one must be present.
The first character of the output must be an opening curly bracket.
`, subTopic, s.opts.MaxBullets)

	return b.String()
}

// summarizeMaterialCap bounds how much raw source material one
// summarization prompt carries.
const summarizeMaterialCap = 8000

// Summarize condenses raw source material about a sub-topic into a short
// research summary, used to turn scraped pages and video transcripts into
// snippets the slide prompt can carry. Faults are SYNTHESIS_UPSTREAM.
func (s *Service) Summarize(ctx context.Context, subTopic, material string) (string, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return "", errors.New(errors.ErrCodeSynthesisUpstream, "no material to summarize")
	}

	prompt := fmt.Sprintf(`You are a helpful assistant that summarizes source material. The audience is
people preparing a presentation about %q.

Create a comprehensive summary of the content below. Mind the details as
they are important. The summary should be easy to understand and follow.
Return plain prose only, at most four sentences, with no preamble.

%s`, subTopic, util.Truncate(material, summarizeMaterialCap))

	raw, err := s.generate(ctx, prompt, "text/plain")
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(string(raw))
	if summary == "" {
		return "", errors.New(errors.ErrCodeSynthesisUpstream, "model returned an empty summary")
	}
	return summary, nil
}

func (s *Service) generate(ctx context.Context, prompt, mimeType string) ([]byte, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0.7,
			"maxOutputTokens":  2048,
			"responseMimeType": mimeType,
		},
	}

	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", s.endpoint, s.model, s.apiKey)

	resp, err := s.httpClient.PostJSON(ctx, url, bodyBytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSynthesisUpstream, "text generation request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSynthesisUpstream, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("text generation API error", "status", resp.StatusCode, "body", string(respBody))
		return nil, errors.Newf(errors.ErrCodeSynthesisUpstream, "text generation API returned %d", resp.StatusCode)
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSynthesisUpstream, "failed to parse model response envelope")
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New(errors.ErrCodeSynthesisUpstream, "empty response from text generation model")
	}

	text := response.Candidates[0].Content.Parts[0].Text
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return []byte(strings.TrimSpace(text)), nil
}

// parseAndValidate decodes raw model output into SlideContent and enforces
// the shape contract: non-empty title, bounded bullets, well-formed table,
// and at least one of bullets/table present.
func (s *Service) parseAndValidate(subTopic string, raw []byte) (SlideContent, error) {
	var parsed struct {
		Title   string   `json:"title"`
		Bullets []string `json:"bullets"`
		Table   *Table   `json:"table"`
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return SlideContent{}, fmt.Errorf("output is not valid JSON: %w", err)
	}

	if strings.TrimSpace(parsed.Title) == "" {
		return SlideContent{}, fmt.Errorf("title is empty")
	}

	bullets := make([]string, 0, len(parsed.Bullets))
	for _, b := range parsed.Bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		bullets = append(bullets, util.Truncate(b, s.opts.MaxBulletLen))
		if len(bullets) == s.opts.MaxBullets {
			break
		}
	}

	table := parsed.Table
	if table != nil {
		if len(table.Headers) == 0 {
			return SlideContent{}, fmt.Errorf("table has no headers")
		}
		if len(table.Rows) == 0 {
			return SlideContent{}, fmt.Errorf("table has no rows")
		}
	}

	if len(bullets) == 0 && table == nil {
		return SlideContent{}, fmt.Errorf("slide has neither bullets nor a table")
	}

	return SlideContent{
		SubTopic: subTopic,
		Title:    strings.TrimSpace(parsed.Title),
		Bullets:  bullets,
		Table:    table,
	}, nil
}

func summarizeNotes(res research.Result) string {
	if len(res.Hits) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, hit := range res.Hits {
		fmt.Fprintf(&b, "- %s: %s\n", hit.Title, hit.URL)
	}
	return b.String()
}
