package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const embeddingsSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	fragment_id   TEXT PRIMARY KEY,
	vector        BLOB NOT NULL,
	dimension     INTEGER NOT NULL,
	model_id      TEXT NOT NULL,
	model_version TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_model_id ON embeddings(model_id);
`

// packVector encodes a float32 vector as little-endian bytes, D*4 bytes
// long, matching the spec's byte-length invariant.
func packVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func upsertEmbeddingTx(ctx context.Context, tx *sql.Tx, e *Embedding) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := tx.ExecContext(ctx, `
		INSERT INTO embeddings (fragment_id, vector, dimension, model_id, model_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fragment_id) DO UPDATE SET
			vector = excluded.vector, dimension = excluded.dimension,
			model_id = excluded.model_id, model_version = excluded.model_version,
			updated_at = excluded.updated_at`,
		e.FragmentID, packVector(e.Vector), len(e.Vector), e.ModelID, e.ModelVersion, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", e.FragmentID, err)
	}
	return nil
}

func deleteEmbeddingTx(ctx context.Context, tx *sql.Tx, fragmentID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE fragment_id = ?`, fragmentID)
	return err
}

func allEmbeddingIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT fragment_id FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func allEmbeddingVectors(ctx context.Context, db *sql.DB) (map[string][]float32, error) {
	rows, err := db.QueryContext(ctx, `SELECT fragment_id, vector FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		out[id] = unpackVector(blob)
	}
	return out, rows.Err()
}
