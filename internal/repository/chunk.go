package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyforge/studypack/internal/model"
)

// ReplaceChunks swaps the pack's chunk set in a single transaction: delete
// everything, then batch-insert the new set. Readers never observe a partial
// mix of old and new chunks.
func (s *Store) ReplaceChunks(ctx context.Context, packID string, chunks []model.StudyPackChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM study_pack_chunks WHERE pack_id=$1`, packID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range chunks {
		chunks[i].PackID = packID
		chunks[i].CreatedAt = now
		batch.Queue(`
			INSERT INTO study_pack_chunks (id, pack_id, idx, content, hash, token_estimate, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, chunks[i].ID, packID, chunks[i].Idx, chunks[i].Content, chunks[i].Hash, chunks[i].TokenEstimate, now)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace chunks: %w", err)
	}
	return nil
}

// ListChunks returns the pack's chunks in original document order.
func (s *Store) ListChunks(ctx context.Context, packID string) ([]model.StudyPackChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pack_id, idx, content, hash, token_estimate, created_at
		FROM study_pack_chunks WHERE pack_id=$1 ORDER BY idx
	`, packID)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	var chunks []model.StudyPackChunk
	for rows.Next() {
		var c model.StudyPackChunk
		if err := rows.Scan(&c.ID, &c.PackID, &c.Idx, &c.Content, &c.Hash, &c.TokenEstimate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
