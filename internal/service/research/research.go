// Package research fetches reference material for a sub-topic from an
// external search service. Web and video search are two implementations of
// the same Provider interface; the orchestrator picks one per run from the
// brief's search source.
package research

import (
	"context"
	"net/http"

	"github.com/germanilia/presentation-maker/pkg/errors"
)

// Source selects which provider implementation serves a run.
type Source string

const (
	SourceWeb   Source = "web"
	SourceVideo Source = "video"
)

// ParseSource maps brief values onto a Source. The original configs used
// "serper" and "youtube"; both spellings are accepted.
func ParseSource(s string) Source {
	switch s {
	case "youtube", "video":
		return SourceVideo
	default:
		return SourceWeb
	}
}

// Hit is one ranked reference snippet.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Result holds the ranked hits for one sub-topic. An empty Hits slice is a
// valid outcome, not an error.
type Result struct {
	SubTopic string `json:"sub_topic"`
	Hits     []Hit  `json:"hits"`
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, subTopic string, maxResults int) (Result, error)
}

// classifyStatus turns an HTTP status into the provider error kind the
// orchestrator keys its retry policy on.
func classifyStatus(status int, provider string) *errors.AppError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.ErrCodeProviderAuth, "%s rejected credentials (status %d)", provider, status)
	case status == http.StatusTooManyRequests:
		return errors.Newf(errors.ErrCodeProviderRateLimited, "%s rate limited (status %d)", provider, status)
	default:
		return errors.Newf(errors.ErrCodeProviderTransient, "%s returned status %d", provider, status)
	}
}
