package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyforge/studypack/internal/model"
)

// ReplaceOutputs swaps the pack's output set (all modes at once) in a single
// transaction, mirroring ReplaceChunks.
func (s *Store) ReplaceOutputs(ctx context.Context, packID string, outputs []model.StudyPackOutput) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace outputs: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM study_pack_outputs WHERE pack_id=$1`, packID); err != nil {
		return fmt.Errorf("delete outputs: %w", err)
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range outputs {
		outputs[i].PackID = packID
		outputs[i].CreatedAt = now
		citations, err := json.Marshal(outputs[i].Citations)
		if err != nil {
			return fmt.Errorf("marshal citations: %w", err)
		}
		batch.Queue(`
			INSERT INTO study_pack_outputs (id, pack_id, mode, content_html, citations, model_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, outputs[i].ID, packID, outputs[i].Mode, outputs[i].ContentHTML, citations, outputs[i].ModelID, now)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert outputs: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace outputs: %w", err)
	}
	return nil
}

// ListOutputs returns all outputs for a pack, fulltext first.
func (s *Store) ListOutputs(ctx context.Context, packID string) ([]model.StudyPackOutput, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pack_id, mode, content_html, citations, model_id, created_at
		FROM study_pack_outputs WHERE pack_id=$1 ORDER BY mode
	`, packID)
	if err != nil {
		return nil, fmt.Errorf("select outputs: %w", err)
	}
	defer rows.Close()

	var outputs []model.StudyPackOutput
	for rows.Next() {
		var (
			out       model.StudyPackOutput
			citations []byte
		)
		if err := rows.Scan(&out.ID, &out.PackID, &out.Mode, &out.ContentHTML, &citations, &out.ModelID, &out.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &out.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}
