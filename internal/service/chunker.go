package service

import (
	"regexp"
	"strings"
)

// Chunking defaults. The token estimate is a word-count heuristic, not
// a tokenizer; it only has to be consistent between ingestion and the
// orchestrator's cost accounting.
const (
	DefaultMaxChunkTokens = 500
	DefaultTokenRatio     = 0.75
	DefaultHardMaxChars   = 8000
)

var (
	paragraphSplitter = regexp.MustCompile(`\n{2,}`)
	sentenceBoundary  = regexp.MustCompile(`[.!?]\s+`)
)

// ChunkPiece is one retrieval-sized slice produced by the chunker.
type ChunkPiece struct {
	Content    string
	TokenCount int
	Index      int
}

// Chunker splits document text into token-bounded pieces along
// paragraph boundaries, carrying the final sentence of each closed
// piece into the next one for continuity. Pure over text and config.
type Chunker struct {
	maxTokens    int
	tokenRatio   float64
	hardMaxChars int
}

func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	return &Chunker{
		maxTokens:    maxTokens,
		tokenRatio:   DefaultTokenRatio,
		hardMaxChars: DefaultHardMaxChars,
	}
}

// EstimateTokens approximates the token count of text as word count
// divided by an empirical words-per-token ratio.
func (c *Chunker) EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	estimate := int(float64(words) / c.tokenRatio)
	if estimate < 1 {
		return 1
	}
	return estimate
}

// estimateTokens is the same heuristic with the default ratio, shared
// by cost accounting so ingestion and audit counters stay consistent.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	estimate := int(float64(words) / DefaultTokenRatio)
	if estimate < 1 {
		return 1
	}
	return estimate
}

// Chunk splits text into an ordered sequence of pieces.
func (c *Chunker) Chunk(text string) []ChunkPiece {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var paragraphs []string
	for _, p := range paragraphSplitter.Split(trimmed, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	if len(paragraphs) == 0 {
		// No paragraph structure at all: fall back to a single chunk,
		// capped so a pathological document cannot produce an
		// unbounded one.
		content := trimmed
		if len(content) > c.hardMaxChars {
			content = content[:c.hardMaxChars]
		}
		return []ChunkPiece{{Content: content, TokenCount: c.EstimateTokens(content), Index: 0}}
	}

	var (
		pieces        []ChunkPiece
		current       []string
		currentTokens int
	)

	closeChunk := func() {
		content := strings.Join(current, "\n\n")
		pieces = append(pieces, ChunkPiece{
			Content:    content,
			TokenCount: c.EstimateTokens(content),
			Index:      len(pieces),
		})

		// Carry the final sentence forward; a chunk with no sentence
		// boundary is not overlapped.
		if overlap := lastSentence(content); overlap != "" {
			current = []string{overlap}
			currentTokens = c.EstimateTokens(overlap)
		} else {
			current = nil
			currentTokens = 0
		}
	}

	for _, para := range paragraphs {
		paraTokens := c.EstimateTokens(para)
		if len(current) > 0 && currentTokens+paraTokens > c.maxTokens {
			closeChunk()
		}
		current = append(current, para)
		currentTokens += paraTokens
	}

	if len(current) > 0 {
		content := strings.Join(current, "\n\n")
		pieces = append(pieces, ChunkPiece{
			Content:    content,
			TokenCount: c.EstimateTokens(content),
			Index:      len(pieces),
		})
	}

	return pieces
}

// lastSentence returns the text after the last terminal-punctuation
// boundary, or "" when no boundary exists.
func lastSentence(text string) string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return ""
	}
	tail := strings.TrimSpace(text[locs[len(locs)-1][1]:])
	return tail
}
