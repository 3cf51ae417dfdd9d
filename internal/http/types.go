package http

import "github.com/fyrsmithlabs/askd/internal/memory"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// ModesRequest is the request body for PUT /api/v1/modes. Omitted fields
// are left unchanged.
type ModesRequest struct {
	AnswerMode        *string `json:"answer_mode,omitempty"`
	MemoryMode        *string `json:"memory_mode,omitempty"`
	ModelProvider     *string `json:"model_provider,omitempty"`
	EmbeddingProvider *string `json:"embedding_provider,omitempty"`
	PrivacyFilter     *bool   `json:"privacy_filter,omitempty"`
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string         `json:"content"`
	FindingsCount int            `json:"findings_count"`
	Categories    map[string]int `json:"categories,omitempty"`
}

// SessionResponse is returned when a session is created or loaded.
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []memory.Message `json:"messages,omitempty"`
}
