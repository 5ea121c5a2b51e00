// Package rag implements the knowledge grounding engine: chunking, embedding,
// caching and similarity retrieval over per-account content.
package rag

import (
	"context"

	"triage_server/core/agent/llm"
)

type Embedder struct {
	client *llm.Client
}

func NewEmbedder(client *llm.Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embedding(ctx, text)
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.EmbeddingBatch(ctx, texts)
}
