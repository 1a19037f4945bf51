package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	lastText string
	result   EmbeddingResult
	err      error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.lastText = text
	return s.result, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1, 2}, TotalTokens: 3}}
	e := NewInstructionEmbedder(inner, "Represent the listing for retrieval: ")

	got, err := e.Embed(context.Background(), "apartment in Warsaw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Represent the listing for retrieval: apartment in Warsaw"
	if inner.lastText != want {
		t.Errorf("inner text = %q, want %q", inner.lastText, want)
	}
	if got.TotalTokens != 3 || len(got.Embedding) != 2 {
		t.Errorf("result not passed through: %+v", got)
	}
}

func TestInstructionEmbedder_WrapsInnerError(t *testing.T) {
	innerErr := errors.New("provider down")
	e := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "prefix: ")

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected inner error preserved, got %v", err)
	}
}
