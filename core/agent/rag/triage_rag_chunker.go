package rag

import "strings"

// Chunking parameters. Windows of roughly 512 tokens with a 50-token overlap
// keep local semantic coherence across chunk boundaries. Token counts are
// estimated at ~0.75 words per token, the usual English ratio.
const (
	ChunkTokens   = 512
	OverlapTokens = 50

	chunkWords   = ChunkTokens * 3 / 4
	overlapWords = OverlapTokens * 3 / 4
)

// ContentChunk is one embeddable window of a source document.
type ContentChunk struct {
	SourceID    string    `json:"source_id"`
	SourceTitle string    `json:"source_title"`
	Index       int       `json:"index"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"-"`
}

// ChunkDocument splits a document into overlapping word windows. Documents
// shorter than one window come back as a single chunk.
func ChunkDocument(sourceID, title, text string) []*ContentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	if len(words) <= chunkWords {
		return []*ContentChunk{{
			SourceID:    sourceID,
			SourceTitle: title,
			Index:       0,
			Content:     strings.Join(words, " "),
		}}
	}

	stride := chunkWords - overlapWords
	var chunks []*ContentChunk
	for start := 0; start < len(words); start += stride {
		end := start + chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, &ContentChunk{
			SourceID:    sourceID,
			SourceTitle: title,
			Index:       len(chunks),
			Content:     strings.Join(words[start:end], " "),
		})
		if end == len(words) {
			break
		}
	}

	return chunks
}
