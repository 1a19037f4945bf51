package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/propdex/internal/db"
	"github.com/kailas-cloud/propdex/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

type mockKV struct {
	data       map[string][]byte
	getErr     error
	setCalls   int
	ttlCalls   int
	lastTTL    time.Duration
	lastSetKey string
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	m.setCalls++
	m.lastSetKey = key
	m.data[key] = value
	return nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.ttlCalls++
	m.lastTTL = ttl
	m.data[key] = value
	return nil
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, -0.2, 0.3},
		PromptTokens: 7,
		TotalTokens:  7,
	}}
	kv := newMockKV()
	c := New(inner, kv, 0, nil, nil)
	ctx := context.Background()

	got, err := c.Embed(ctx, "three bedroom flat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || kv.setCalls != 1 {
		t.Fatalf("expected one provider call and one cache write, got %d/%d", inner.calls, kv.setCalls)
	}
	if got.TotalTokens != 7 {
		t.Fatalf("expected provider tokens on miss, got %d", got.TotalTokens)
	}

	got, err = c.Embed(ctx, "three bedroom flat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatal("expected the second call served from cache")
	}
	if got.TotalTokens != 0 {
		t.Fatalf("expected zero tokens on hit, got %d", got.TotalTokens)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.1 || got.Embedding[2] != 0.3 {
		t.Fatalf("cached vector corrupted: %v", got.Embedding)
	}
}

func TestEmbed_TTLUsesSetWithTTL(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	kv := newMockKV()
	c := New(inner, kv, 12*time.Hour, nil, nil)

	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kv.ttlCalls != 1 || kv.setCalls != 0 {
		t.Fatalf("expected the TTL write path, got ttl=%d set=%d", kv.ttlCalls, kv.setCalls)
	}
	if kv.lastTTL != 12*time.Hour {
		t.Fatalf("expected 12h TTL, got %v", kv.lastTTL)
	}
}

func TestEmbed_InnerErrorPropagates(t *testing.T) {
	innerErr := errors.New("provider down")
	c := New(&mockEmbedder{err: innerErr}, newMockKV(), 0, nil, nil)

	_, err := c.Embed(context.Background(), "text")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected inner error, got %v", err)
	}
}

// A cache read failure other than not-found degrades to a miss.
func TestEmbed_CacheReadErrorFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	kv := newMockKV()
	kv.getErr = errors.New("connection reset")
	c := New(inner, kv, 0, nil, nil)

	got, err := c.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || len(got.Embedding) != 1 {
		t.Fatal("expected fall-through to the provider")
	}
}

func TestEmbed_CorruptCacheEntryFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	kv := newMockKV()
	c := New(inner, kv, 0, nil, nil)

	// Seed garbage at the exact key the embedder computes.
	kv.data[c.cacheKey("text")] = []byte{1, 2, 3} // not a multiple of 4

	got, err := c.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatal("expected corrupt entry treated as miss")
	}
	if len(got.Embedding) != 2 {
		t.Fatalf("expected provider vector, got %v", got.Embedding)
	}
}

func TestEmbed_DistinctTextsDistinctKeys(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	kv := newMockKV()
	c := New(inner, kv, 0, nil, nil)
	ctx := context.Background()

	_, _ = c.Embed(ctx, "first")
	_, _ = c.Embed(ctx, "second")

	if inner.calls != 2 {
		t.Fatalf("expected both texts to miss, got %d provider calls", inner.calls)
	}
	if len(kv.data) != 2 {
		t.Fatalf("expected two cache entries, got %d", len(kv.data))
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -3.25, 1e-7}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %f != %f", i, in[i], out[i])
		}
	}
}
