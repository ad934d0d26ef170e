package service

import (
	"fmt"
	"strings"

	"knowledge-assistant/internal/models"
)

// buildSystemPrompt sets the guardrails: answer only from context,
// refuse when context is insufficient, cite sources, never fabricate.
func buildSystemPrompt() string {
	return `You are an Internal Knowledge Assistant for a company.
Your role is to answer employee questions using ONLY the provided context documents.

## STRICT RULES
1. Answer ONLY based on the provided context. Do NOT use external knowledge.
2. If the context does not contain enough information to answer the question,
   you MUST refuse to answer and explain why.
3. Always cite which document(s) your answer is based on.
4. Keep answers concise, professional, and actionable.
5. Never fabricate information, policies, dates, or numbers.
6. If the question is ambiguous, state your interpretation before answering.

## OUTPUT FORMAT
Respond with valid JSON matching this schema:
{
  "answer": "Your answer text here",
  "confidence": "high | medium | low",
  "sources_used": ["Document Title 1", "Document Title 2"],
  "refused": false,
  "refused_reason": null
}

If you cannot answer from context:
{
  "answer": "",
  "confidence": "none",
  "sources_used": [],
  "refused": true,
  "refused_reason": "Explanation of why the context is insufficient"
}`
}

// buildUserPrompt assembles the retrieved context and the question.
func buildUserPrompt(question string, contextChunks []models.SearchHit) string {
	var parts []string
	for i, chunk := range contextChunks {
		parts = append(parts, fmt.Sprintf("--- Document %d: %s ---\n%s\n", i+1, chunk.DocumentTitle, chunk.Content))
	}

	contextBlock := "(No context documents available)"
	if len(parts) > 0 {
		contextBlock = strings.Join(parts, "\n")
	}

	return fmt.Sprintf(`## CONTEXT DOCUMENTS
%s

## EMPLOYEE QUESTION
%s

Answer the question based ONLY on the context documents above.
If the context is insufficient, refuse and explain why.`, contextBlock, question)
}
