// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionMessageBodies = "message_bodies"

	// Only compress bodies larger than this.
	compressionThreshold = 1024
)

// BodyArchiveAdapter stores raw inbound message bodies out of the relational
// hot path. Implements out.BodyArchive.
type BodyArchiveAdapter struct {
	collection *mongo.Collection
}

func NewBodyArchiveAdapter(db *mongo.Database) *BodyArchiveAdapter {
	return &BodyArchiveAdapter{collection: db.Collection(collectionMessageBodies)}
}

// EnsureIndexes creates the lookup and TTL indexes for the collection.
func (a *BodyArchiveAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "external_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type bodyDocument struct {
	AccountID    string    `bson:"account_id"`
	ExternalID   string    `bson:"external_id"`
	Body         []byte    `bson:"body"`
	IsCompressed bool      `bson:"is_compressed"`
	OriginalSize int64     `bson:"original_size"`
	ArchivedAt   time.Time `bson:"archived_at"`
	ExpiresAt    time.Time `bson:"expires_at"`
}

// Archive upserts the raw body keyed by (account_id, external_id), so replays
// of the same message overwrite rather than duplicate.
func (a *BodyArchiveAdapter) Archive(ctx context.Context, accountID uuid.UUID, externalID, body string) error {
	raw := []byte(body)
	compressed := false
	if len(raw) > compressionThreshold {
		encoded, err := gzipCompress(raw)
		if err == nil && len(encoded) < len(raw) {
			raw = encoded
			compressed = true
		}
	}

	doc := bodyDocument{
		AccountID:    accountID.String(),
		ExternalID:   externalID,
		Body:         raw,
		IsCompressed: compressed,
		OriginalSize: int64(len(body)),
		ArchivedAt:   time.Now(),
		ExpiresAt:    time.Now().AddDate(0, 0, 90),
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"account_id": accountID.String(), "external_id": externalID}

	if _, err := a.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to archive message body: %w", err)
	}
	return nil
}

// Fetch retrieves an archived body.
func (a *BodyArchiveAdapter) Fetch(ctx context.Context, accountID uuid.UUID, externalID string) (string, error) {
	var doc bodyDocument
	filter := bson.M{"account_id": accountID.String(), "external_id": externalID}

	if err := a.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch message body: %w", err)
	}

	if !doc.IsCompressed {
		return string(doc.Body), nil
	}

	raw, err := gzipDecompress(doc.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decompress message body: %w", err)
	}
	return string(raw), nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
