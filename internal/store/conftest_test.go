package store

import (
	"context"
	"errors"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// mockEmbedder returns canned vectors keyed by exact text; unknown texts
// fail with errUnknownText.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

var errUnknownText = errors.New("no canned vector for text")

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	vec, ok := m.vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, errUnknownText
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: 1}, nil
}

func testDoc(id, text string, meta domain.Metadata) domain.SearchDocument {
	return domain.SearchDocument{ID: id, Text: text, Meta: meta}
}
