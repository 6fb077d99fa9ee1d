package api

import (
	"github.com/germanilia/presentation-maker/internal/service/theme"
)

// BriefRequest is the declarative brief the UI submits. The same shape is
// persisted by save-config and returned by load-config.
type BriefRequest struct {
	Topic               string      `json:"topic" binding:"required"`
	SubTopics           []string    `json:"sub_topics"`
	GeneralInstructions string      `json:"general_instructions"`
	SearchSource        string      `json:"search_source"`
	Theme               theme.Theme `json:"theme"`
	LogoBase64          string      `json:"logo_base64"`
	OutputPath          string      `json:"output_path"`
	ClientRequestID     string      `json:"client_request_id"`
}

type GenerateResponse struct {
	RequestID    string         `json:"request_id"`
	Status       string         `json:"status"`
	ArtifactPath string         `json:"artifact_path,omitempty"`
	DownloadURL  string         `json:"download_url,omitempty"`
	Diagnostics  []string       `json:"diagnostics,omitempty"`
	Error        *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SaveConfigResponse struct {
	Status string `json:"status"`
}

type CheckFileResponse struct {
	Exists bool `json:"exists"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)
