package dto

type FeedbackRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

type FeedbackResponse struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Rating    int    `json:"rating"`
	CreatedAt string `json:"created_at"`
}

type TenantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}
