// Package imagegen generates an illustrative image for a slide. Image
// generation is an optional stage: callers treat its failure as a degraded
// slide, never a failed run.
package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/germanilia/presentation-maker/internal/infra/httpclient"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

// Asset is a generated raster image for one sub-topic's slide.
type Asset struct {
	SubTopic string
	Bytes    []byte
	MimeType string
}

type Service struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *httpclient.Client
	logger     *logger.Logger
}

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

func New(apiKey, model string, client *httpclient.Client, log *logger.Logger) *Service {
	return &Service{
		apiKey:     apiKey,
		model:      model,
		endpoint:   geminiEndpoint,
		httpClient: client,
		logger:     log,
	}
}

// Synthesize generates an image for the slide identified by subTopic and
// title. The prompt forbids embedded text and people's names so the result
// works as a slide illustration. Transport faults and upstream statuses
// come back as provider errors so the caller's retry policy applies; a
// response that carries no usable image is an IMAGE_GEN_ERROR and is not
// worth retrying.
func (s *Service) Synthesize(ctx context.Context, subTopic, title string) (*Asset, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": s.buildPrompt(subTopic, title)},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}

	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", s.endpoint, s.model, s.apiKey)

	resp, err := s.httpClient.PostJSON(ctx, url, bodyBytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeProviderTransient, "image generation request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeProviderTransient, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("image generation API error", "status", resp.StatusCode, "sub_topic", subTopic)
		return nil, classifyStatus(resp.StatusCode)
	}

	asset, err := s.parseResponse(subTopic, respBody)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("slide image generated", "sub_topic", subTopic, "bytes", len(asset.Bytes), "mime", asset.MimeType)
	return asset, nil
}

func (s *Service) buildPrompt(subTopic, title string) string {
	return fmt.Sprintf(`Generate a high-quality illustration for a presentation slide.

Slide topic: %s
Slide title: %s

Requirements:
- Aspect ratio: 16:9
- Professional, clean, abstract interpretation of the topic
- NO text, letters, words, or numbers in the image
- NEVER depict named people
- High contrast, visually striking, suitable for a business presentation`, subTopic, title)
}

func (s *Service) parseResponse(subTopic string, body []byte) (*Asset, error) {
	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text,omitempty"`
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData,omitempty"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImageGen, "failed to parse image generation response")
	}

	if len(response.Candidates) == 0 {
		return nil, errors.New(errors.ErrCodeImageGen, "empty response from image generation")
	}

	for _, part := range response.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			imageBytes, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeImageGen, "failed to decode image data")
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = DetectMimeType(imageBytes)
			}
			return &Asset{SubTopic: subTopic, Bytes: imageBytes, MimeType: mime}, nil
		}
	}

	return nil, errors.New(errors.ErrCodeImageGen, "no image in response")
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.ErrCodeProviderAuth, "image generation API rejected credentials (status %d)", status)
	case status == http.StatusTooManyRequests:
		return errors.Newf(errors.ErrCodeProviderRateLimited, "image generation API rate limited (status %d)", status)
	default:
		return errors.Newf(errors.ErrCodeProviderTransient, "image generation API returned %d", status)
	}
}

// DetectMimeType sniffs the image format from magic bytes. Bytes that match
// no known raster signature report application/octet-stream so callers can
// tell corrupt data from a renderable image.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	if data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 {
		return "image/webp"
	}

	return "application/octet-stream"
}
