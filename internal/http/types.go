package http

import (
	"encoding/json"

	"github.com/fyrsmithlabs/mindmapd/internal/auth"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/topics"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is the body of simple acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SuggestedTopicsResponse is the response body for GET /api/upsc-suggested-topics.
type SuggestedTopicsResponse struct {
	SuggestedTopics []topics.Category `json:"suggested_topics"`
}

// SaveGenerationRequest is the request body for POST /api/save-generation.
type SaveGenerationRequest struct {
	UserID           string          `json:"user_id"`
	Topic            string          `json:"topic"`
	PreparationStage string          `json:"preparation_stage"`
	FocusAreas       []string        `json:"focus_areas"`
	MindMapData      json.RawMessage `json:"mindmap_data"`
	GenerationTime   float64         `json:"generation_time"`
}

// SaveGenerationResponse is the response body for POST /api/save-generation.
type SaveGenerationResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// GenerationsResponse is the response body for GET /api/saved-generations.
type GenerationsResponse struct {
	Generations []store.Generation `json:"generations"`
}

// ArticlesResponse is the response body for the news and saved-article lists.
type ArticlesResponse struct {
	Articles []store.Article `json:"articles"`
}

// ClientIDResponse is the response body for GET /auth/client-id.
type ClientIDResponse struct {
	ClientID string `json:"client_id"`
}

// GoogleAuthRequest is the request body for POST /auth/google.
type GoogleAuthRequest struct {
	Token string `json:"token"`
}

// GoogleAuthResponse is the response body for POST /auth/google.
type GoogleAuthResponse struct {
	User auth.User `json:"user"`
}

// TipsResponse is the response body for GET /api/upsc-tips/:topic.
type TipsResponse struct {
	Topic string          `json:"topic"`
	Tips  []studyaids.Tip `json:"tips"`
}

// MCQRequest is the request body for POST /api/generate-mcq.
type MCQRequest struct {
	Topic string `json:"topic"`
}

// MCQResponse is the response body for POST /api/generate-mcq.
type MCQResponse struct {
	Topic string          `json:"topic"`
	MCQs  []studyaids.MCQ `json:"mcqs"`
}
