package rag

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// Postgres Chunk Store
// =============================================================================

// PGChunkStore persists content chunks and their embeddings in Postgres.
type PGChunkStore struct {
	db *pgxpool.Pool
}

func NewPGChunkStore(db *pgxpool.Pool) *PGChunkStore {
	return &PGChunkStore{db: db}
}

// StoreChunks replaces a source's chunks with the given set.
func (s *PGChunkStore) StoreChunks(ctx context.Context, accountID uuid.UUID, chunks []*ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Reindexing a source drops its previous chunks first.
	if err := s.DeleteSource(ctx, accountID, chunks[0].SourceID); err != nil {
		return err
	}

	const query = `
		INSERT INTO knowledge_chunks (account_id, source_id, source_title, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, chunk := range chunks {
		_, err := s.db.Exec(ctx, query,
			accountID,
			chunk.SourceID,
			chunk.SourceTitle,
			chunk.Index,
			chunk.Content,
			pgVector(chunk.Embedding),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByAccount loads every indexed chunk for an account.
func (s *PGChunkStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*ContentChunk, error) {
	const query = `
		SELECT source_id, source_title, chunk_index, content, embedding::text
		FROM knowledge_chunks
		WHERE account_id = $1
		ORDER BY source_id, chunk_index
	`

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*ContentChunk
	for rows.Next() {
		var c ContentChunk
		var vec string
		if err := rows.Scan(&c.SourceID, &c.SourceTitle, &c.Index, &c.Content, &vec); err != nil {
			return nil, err
		}
		c.Embedding = parsePGVector(vec)
		chunks = append(chunks, &c)
	}

	return chunks, rows.Err()
}

// DeleteSource removes every chunk of one source document.
func (s *PGChunkStore) DeleteSource(ctx context.Context, accountID uuid.UUID, sourceID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE account_id = $1 AND source_id = $2`,
		accountID, sourceID,
	)
	return err
}

// pgVector converts a float32 slice to pgvector literal format.
func pgVector(v []float32) string {
	if len(v) == 0 {
		return "[0]"
	}

	buf := make([]byte, 0, len(v)*13+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', 6, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}

// parsePGVector parses a pgvector literal back into floats.
func parsePGVector(s string) []float32 {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}

// =============================================================================
// In-Memory Chunk Store
// =============================================================================

// MemoryChunkStore keeps chunks in process. Used in tests and as a degraded
// fallback when no database is configured.
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID][]*ContentChunk
}

func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{chunks: make(map[uuid.UUID][]*ContentChunk)}
}

func (s *MemoryChunkStore) StoreChunks(_ context.Context, accountID uuid.UUID, chunks []*ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[accountID][:0]
	for _, c := range s.chunks[accountID] {
		if c.SourceID != chunks[0].SourceID {
			kept = append(kept, c)
		}
	}
	s.chunks[accountID] = append(kept, chunks...)
	return nil
}

func (s *MemoryChunkStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*ContentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ContentChunk, len(s.chunks[accountID]))
	copy(out, s.chunks[accountID])
	return out, nil
}

func (s *MemoryChunkStore) DeleteSource(_ context.Context, accountID uuid.UUID, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[accountID][:0]
	for _, c := range s.chunks[accountID] {
		if c.SourceID != sourceID {
			kept = append(kept, c)
		}
	}
	s.chunks[accountID] = kept
	return nil
}
