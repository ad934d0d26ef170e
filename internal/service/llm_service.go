package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

// GenerationResult is the structured outcome of one generation call.
type GenerationResult struct {
	Answer           string
	Confidence       string
	SourcesUsed      []string
	Refused          bool
	RefusedReason    *string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// Generator produces a grounded answer from a question and retrieved
// context. Selected once at process configuration time and injected.
type Generator interface {
	Generate(ctx context.Context, question string, contextChunks []models.SearchHit) (*GenerationResult, error)
	Model() string
}

// NewGenerator builds the configured provider.
func NewGenerator(cfg *config.LLMConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIGenerator(cfg, logger)
	case "gigachat":
		return newGigaChatGenerator(cfg, logger)
	case "stub", "":
		return NewStubGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// structuredAnswer mirrors the JSON contract in the system prompt.
type structuredAnswer struct {
	Answer        string   `json:"answer"`
	Confidence    string   `json:"confidence"`
	SourcesUsed   []string `json:"sources_used"`
	Refused       bool     `json:"refused"`
	RefusedReason *string  `json:"refused_reason"`
}

// parseStructuredAnswer extracts the JSON object from a model reply
// that may be wrapped in markdown fences or commentary.
func parseStructuredAnswer(raw string) structuredAnswer {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var parsed structuredAnswer
		if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err == nil {
			return parsed
		}
	}
	// Unparseable output: treat the whole reply as a low-confidence
	// answer rather than failing the request.
	return structuredAnswer{Answer: strings.TrimSpace(raw), Confidence: "low"}
}

// ── Stub provider ───────────────────────────────────────────────────

// StubGenerator mimics the generation contract without network calls:
// it refuses on empty context and otherwise assembles a deterministic
// answer from the supplied excerpts.
type StubGenerator struct{}

const stubModelName = "stub-model-v1"

func NewStubGenerator() *StubGenerator { return &StubGenerator{} }

func (g *StubGenerator) Model() string { return stubModelName }

func (g *StubGenerator) Generate(_ context.Context, question string, contextChunks []models.SearchHit) (*GenerationResult, error) {
	if len(contextChunks) == 0 {
		reason := "No relevant context found in the knowledge base to answer this question."
		return &GenerationResult{
			Refused:       true,
			RefusedReason: &reason,
			Confidence:    "none",
			Model:         stubModelName,
		}, nil
	}

	var titles []string
	seen := make(map[string]bool)
	for _, c := range contextChunks {
		if !seen[c.DocumentTitle] {
			seen[c.DocumentTitle] = true
			titles = append(titles, c.DocumentTitle)
		}
	}

	var excerpts []string
	for i, c := range contextChunks {
		if i == 3 {
			break
		}
		excerpt := c.Content
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		excerpts = append(excerpts, "- "+excerpt)
	}

	answer := fmt.Sprintf(
		"Based on the available documentation (%s), here is what I found regarding your question:\n\n%s",
		strings.Join(titles, ", "), strings.Join(excerpts, "\n\n"),
	)

	estimated := len(strings.Fields(answer)) + len(strings.Fields(question))
	return &GenerationResult{
		Answer:           answer,
		Confidence:       "medium",
		SourcesUsed:      titles,
		PromptTokens:     estimated / 2,
		CompletionTokens: estimated - estimated/2,
		TotalTokens:      estimated,
		Model:            stubModelName,
	}, nil
}

// ── OpenAI-compatible provider ──────────────────────────────────────

type openAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	maxRetries  int
	logger      *zap.Logger
}

func newOpenAIGenerator(cfg *config.LLMConfig, logger *zap.Logger) (*openAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm provider %q requires an API key", cfg.Provider)
	}

	return &openAIGenerator{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxRetries:  2,
		logger:      logger,
	}, nil
}

func (g *openAIGenerator) Model() string { return g.model }

func (g *openAIGenerator) Generate(ctx context.Context, question string, contextChunks []models.SearchHit) (*GenerationResult, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(question, contextChunks)},
		},
		"temperature":     g.temperature,
		"max_tokens":      g.maxTokens,
		"response_format": map[string]string{"type": "json_object"},
	})

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, ctx.Err())
			case <-time.After(retryDelay(attempt)):
			}
		}

		result, retryable, err := g.generateOnce(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		g.logger.Warn("Generation request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, lastErr)
}

func (g *openAIGenerator) generateOnce(ctx context.Context, body []byte) (*GenerationResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("chat completion failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("chat completion failed: %s", resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, false, err
	}
	if len(out.Choices) == 0 {
		return nil, false, errors.New("empty response from model")
	}

	parsed := parseStructuredAnswer(out.Choices[0].Message.Content)
	return &GenerationResult{
		Answer:           parsed.Answer,
		Confidence:       parsed.Confidence,
		SourcesUsed:      parsed.SourcesUsed,
		Refused:          parsed.Refused,
		RefusedReason:    parsed.RefusedReason,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		TotalTokens:      out.Usage.TotalTokens,
		Model:            g.model,
	}, false, nil
}

// ── GigaChat provider ───────────────────────────────────────────────

type gigaChatGenerator struct {
	client  *gigago.Client
	model   *gigago.GenerativeModel
	modelID string
	logger  *zap.Logger
}

func newGigaChatGenerator(cfg *config.LLMConfig, logger *zap.Logger) (*gigaChatGenerator, error) {
	ctx := context.Background()

	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.GigaChatScope),
	}
	if cfg.GigaChatInsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	modelID := cfg.Model
	if modelID == "" || strings.HasPrefix(modelID, "gpt") {
		modelID = "GigaChat"
	}

	model := client.GenerativeModel(modelID)
	model.SystemInstruction = buildSystemPrompt()
	model.Temperature = cfg.Temperature

	return &gigaChatGenerator{
		client:  client,
		model:   model,
		modelID: modelID,
		logger:  logger,
	}, nil
}

func (g *gigaChatGenerator) Model() string { return g.modelID }

func (g *gigaChatGenerator) Close() { g.client.Close() }

func (g *gigaChatGenerator) Generate(ctx context.Context, question string, contextChunks []models.SearchHit) (*GenerationResult, error) {
	prompt := buildUserPrompt(question, contextChunks)

	resp, err := g.model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from model", ErrGenerationUnavailable)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	parsed := parseStructuredAnswer(content)

	// The SDK does not expose token usage, so account with the same
	// heuristic the chunker uses.
	promptTokens := estimateTokens(prompt)
	completionTokens := estimateTokens(content)

	return &GenerationResult{
		Answer:           parsed.Answer,
		Confidence:       parsed.Confidence,
		SourcesUsed:      parsed.SourcesUsed,
		Refused:          parsed.Refused,
		RefusedReason:    parsed.RefusedReason,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Model:            g.modelID,
	}, nil
}
