package dto

type IngestDocumentRequest struct {
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	DocType  string                 `json:"doc_type"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type IngestDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	DocType    string `json:"doc_type"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type ReembedResponse struct {
	ReembeddedChunks int    `json:"reembedded_chunks"`
	EmbeddingModel   string `json:"embedding_model"`
}
