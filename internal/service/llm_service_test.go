package service

import (
	"context"
	"testing"

	"knowledge-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructuredAnswerCleanJSON(t *testing.T) {
	raw := `{"answer":"25 days","confidence":"high","sources_used":["Leave Policy"],"refused":false,"refused_reason":null}`

	parsed := parseStructuredAnswer(raw)

	assert.Equal(t, "25 days", parsed.Answer)
	assert.Equal(t, "high", parsed.Confidence)
	assert.Equal(t, []string{"Leave Policy"}, parsed.SourcesUsed)
	assert.False(t, parsed.Refused)
}

func TestParseStructuredAnswerFencedJSON(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"answer\":\"Submit via HR portal\",\"confidence\":\"medium\",\"sources_used\":[],\"refused\":false}\n```\nHope that helps."

	parsed := parseStructuredAnswer(raw)

	assert.Equal(t, "Submit via HR portal", parsed.Answer)
	assert.Equal(t, "medium", parsed.Confidence)
}

func TestParseStructuredAnswerRefusal(t *testing.T) {
	raw := `{"answer":"","confidence":"none","sources_used":[],"refused":true,"refused_reason":"Not covered by the documentation."}`

	parsed := parseStructuredAnswer(raw)

	assert.True(t, parsed.Refused)
	require.NotNil(t, parsed.RefusedReason)
	assert.Equal(t, "Not covered by the documentation.", *parsed.RefusedReason)
}

func TestParseStructuredAnswerGarbageFallsBack(t *testing.T) {
	parsed := parseStructuredAnswer("  The policy says 25 days.  ")

	assert.Equal(t, "The policy says 25 days.", parsed.Answer)
	assert.Equal(t, "low", parsed.Confidence)
	assert.False(t, parsed.Refused)
}

func TestStubGeneratorRefusesOnEmptyContext(t *testing.T) {
	g := NewStubGenerator()

	result, err := g.Generate(context.Background(), "what is the moon made of?", nil)
	require.NoError(t, err)

	assert.True(t, result.Refused)
	require.NotNil(t, result.RefusedReason)
	assert.Empty(t, result.Answer)
	assert.Equal(t, stubModelName, result.Model)
}

func TestStubGeneratorAnswersFromContext(t *testing.T) {
	g := NewStubGenerator()
	hits := []models.SearchHit{
		{ChunkID: uuid.New(), DocumentTitle: "Leave Policy", Content: "Employees accrue 25 days of annual leave.", Similarity: 0.9},
		{ChunkID: uuid.New(), DocumentTitle: "Leave Policy", Content: "Unused days carry over up to 5 days.", Similarity: 0.8},
		{ChunkID: uuid.New(), DocumentTitle: "Remote Work Policy", Content: "Remote work up to three days per week.", Similarity: 0.5},
	}

	result, err := g.Generate(context.Background(), "how much leave do I get?", hits)
	require.NoError(t, err)

	assert.False(t, result.Refused)
	assert.Contains(t, result.Answer, "Leave Policy")
	assert.Contains(t, result.Answer, "Remote Work Policy")
	assert.Equal(t, []string{"Leave Policy", "Remote Work Policy"}, result.SourcesUsed)
	assert.Equal(t, result.TotalTokens, result.PromptTokens+result.CompletionTokens)
	assert.Positive(t, result.TotalTokens)
}

func TestStubGeneratorDeterministic(t *testing.T) {
	g := NewStubGenerator()
	hits := []models.SearchHit{
		{ChunkID: uuid.New(), DocumentTitle: "IT Security Guidelines", Content: "Passwords must be at least 14 characters.", Similarity: 0.7},
	}

	first, err := g.Generate(context.Background(), "password rules?", hits)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), "password rules?", hits)
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.TotalTokens, second.TotalTokens)
}
