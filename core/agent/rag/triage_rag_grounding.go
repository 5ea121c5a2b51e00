package rag

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

// MaxSources is the number of accepted sources returned per query.
const MaxSources = 5

// ChunkStore persists indexed content chunks per account.
type ChunkStore interface {
	StoreChunks(ctx context.Context, accountID uuid.UUID, chunks []*ContentChunk) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*ContentChunk, error)
	DeleteSource(ctx context.Context, accountID uuid.UUID, sourceID string) error
}

// GroundedSource is the best-scoring chunk of one accepted source document.
type GroundedSource struct {
	SourceID   string  `json:"source_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// GroundingResult bounds what the classifier and reply generators may assert
// as fact.
type GroundingResult struct {
	Sources              []*GroundedSource `json:"sources"`
	HasGroundedKnowledge bool              `json:"has_grounded_knowledge"`
}

// Excerpts returns the accepted source contents for prompt injection.
func (r *GroundingResult) Excerpts() []string {
	excerpts := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		excerpts = append(excerpts, s.Content)
	}
	return excerpts
}

// Engine retrieves knowledge relevant to a query, accepting only sources
// whose best chunk clears the account's similarity threshold.
type Engine struct {
	embedder out.EmbeddingOracle
	store    ChunkStore
}

// NewEngine creates a grounding engine. The embedder is typically a
// CachedEmbedder.
func NewEngine(embedder out.EmbeddingOracle, store ChunkStore) *Engine {
	return &Engine{embedder: embedder, store: store}
}

// Retrieve embeds the query, scores every indexed chunk, keeps the best chunk
// per source, and returns the top sources at or above the tier threshold.
func (e *Engine) Retrieve(ctx context.Context, accountID uuid.UUID, query string, tier domain.GroundingTier) (*GroundingResult, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperr.GroundingUnavailable(err)
	}

	chunks, err := e.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.GroundingUnavailable(err)
	}

	threshold := tier.Threshold()

	// Best chunk per source document.
	best := make(map[string]*GroundedSource)
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(embedding, chunk.Embedding)
		if cur, ok := best[chunk.SourceID]; !ok || sim > cur.Similarity {
			best[chunk.SourceID] = &GroundedSource{
				SourceID:   chunk.SourceID,
				Title:      chunk.SourceTitle,
				Content:    chunk.Content,
				Similarity: sim,
			}
		}
	}

	var accepted []*GroundedSource
	for _, src := range best {
		if src.Similarity >= threshold {
			accepted = append(accepted, src)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Similarity > accepted[j].Similarity
	})

	if len(accepted) > MaxSources {
		accepted = accepted[:MaxSources]
	}

	return &GroundingResult{
		Sources:              accepted,
		HasGroundedKnowledge: len(accepted) > 0,
	}, nil
}

// Index chunks, embeds and stores one source document for an account.
func (e *Engine) Index(ctx context.Context, accountID uuid.UUID, sourceID, title, text string) (int, error) {
	chunks := ChunkDocument(sourceID, title, text)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := e.store.StoreChunks(ctx, accountID, chunks); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
