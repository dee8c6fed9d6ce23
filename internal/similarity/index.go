// Package similarity stores embedding vectors in SQLite and answers
// nearest-neighbor queries over sliding windows of recent items.
package similarity

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Space identifies which embedding population a vector belongs to.
type Space string

const (
	SpaceTopic  Space = "topic"
	SpaceScript Space = "script"
)

var (
	// ErrDimensionMismatch indicates a vector whose width differs from the
	// configured embedding dimension. Callers treat this as data corruption.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrZeroVector indicates a vector with no magnitude.
	ErrZeroVector = errors.New("zero-magnitude embedding")
)

// Index persists embeddings alongside the queue database. Vectors are
// normalized to unit length on insert so similarity reduces to a dot
// product at query time.
type Index struct {
	db        *sql.DB
	dimension int
}

// NewIndex wraps an existing database handle. The embeddings table is part
// of the queue schema, so the handle must come from an opened queue store.
func NewIndex(db *sql.DB, dimension int) *Index {
	return &Index{db: db, dimension: dimension}
}

// Append stores a vector for the item in the given space.
func (idx *Index) Append(ctx context.Context, itemID, channelID string, space Space, vector []float32) error {
	normalized, err := idx.normalize(vector)
	if err != nil {
		return err
	}
	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO embeddings (item_id, channel_id, space, vector, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		itemID, channelID, string(space), encodeVector(normalized),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append embedding: %w", err)
	}
	return nil
}

// MaxSimilarity returns the highest cosine similarity between the query
// vector and the channel's most recent window vectors in the given space.
// An empty window yields 0, which callers interpret as "no prior content".
func (idx *Index) MaxSimilarity(ctx context.Context, channelID string, space Space, vector []float32, window int) (float64, error) {
	query, err := idx.normalize(vector)
	if err != nil {
		return 0, err
	}
	if window <= 0 {
		return 0, nil
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT vector FROM embeddings
		WHERE channel_id = ? AND space = ?
		ORDER BY id DESC
		LIMIT ?`,
		channelID, string(space), window,
	)
	if err != nil {
		return 0, fmt.Errorf("query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	best := 0.0
	for rows.Next() {
		var blob []byte
		if scanErr := rows.Scan(&blob); scanErr != nil {
			return 0, fmt.Errorf("scan embedding: %w", scanErr)
		}
		stored, decodeErr := decodeVector(blob)
		if decodeErr != nil {
			return 0, decodeErr
		}
		if len(stored) != len(query) {
			return 0, fmt.Errorf("%w: stored %d, query %d", ErrDimensionMismatch, len(stored), len(query))
		}
		if sim := dot(query, stored); sim > best {
			best = sim
		}
	}
	return best, rows.Err()
}

// Count reports how many vectors the channel has in the given space.
func (idx *Index) Count(ctx context.Context, channelID string, space Space) (int, error) {
	var count int
	err := idx.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM embeddings WHERE channel_id = ? AND space = ?",
		channelID, string(space)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Prune deletes vectors beyond the keep-most-recent horizon so the table
// does not grow without bound.
func (idx *Index) Prune(ctx context.Context, channelID string, space Space, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := idx.db.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE channel_id = ? AND space = ? AND id NOT IN (
			SELECT id FROM embeddings
			WHERE channel_id = ? AND space = ?
			ORDER BY id DESC
			LIMIT ?
		)`,
		channelID, string(space), channelID, string(space), keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune embeddings: %w", err)
	}
	return res.RowsAffected()
}

func (idx *Index) normalize(vector []float32) ([]float32, error) {
	if idx.dimension > 0 && len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), idx.dimension)
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob of %d bytes", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
