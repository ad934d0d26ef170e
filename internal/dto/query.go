package dto

type AskRequest struct {
	Question string `json:"question"`
}

type SourceResponse struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentTitle  string  `json:"document_title"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AskResponse struct {
	RequestID     string           `json:"request_id"`
	Question      string           `json:"question"`
	Answer        string           `json:"answer"`
	Sources       []SourceResponse `json:"sources"`
	Status        string           `json:"status"`
	Confidence    *string          `json:"confidence,omitempty"`
	RefusedReason *string          `json:"refused_reason,omitempty"`
	Cached        bool             `json:"cached"`
	ModelUsed     string           `json:"model_used,omitempty"`
	LatencyMs     int              `json:"latency_ms"`
	TokenUsage    TokenUsage       `json:"token_usage"`
}

type RequestSummary struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Status      string `json:"status"`
	Cached      bool   `json:"cached"`
	ModelUsed   string `json:"model_used,omitempty"`
	TotalTokens int    `json:"total_tokens"`
	LatencyMs   int    `json:"latency_ms"`
	CreatedAt   string `json:"created_at"`
}
