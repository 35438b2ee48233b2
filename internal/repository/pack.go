// Package repository wraps all SQL used by the API and the pipeline.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyforge/studypack/internal/model"
)

// Store provides Postgres persistence for packs, files, chunks, and outputs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreatePack inserts a freshly uploaded pack in the received state.
func (s *Store) CreatePack(ctx context.Context, pack *model.StudyPack) error {
	now := time.Now().UTC()
	pack.Status = model.StatusReceived
	pack.CreatedAt = now
	pack.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO study_packs (id, title, focus, status, error_message, model_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,'','',$5,$6)
	`, pack.ID, pack.Title, pack.Focus, pack.Status, pack.CreatedAt, pack.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pack: %w", err)
	}
	return nil
}

// CreateFile inserts the pack's single source file row.
func (s *Store) CreateFile(ctx context.Context, file *model.StudyPackFile) error {
	file.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO study_pack_files (id, pack_id, object_key, media_type, inline_text, size_bytes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, file.ID, file.PackID, file.ObjectKey, file.MediaType, file.InlineText, file.SizeBytes, file.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pack file: %w", err)
	}
	return nil
}

// GetPack returns a pack by id.
func (s *Store) GetPack(ctx context.Context, id string) (*model.StudyPack, error) {
	var pack model.StudyPack
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, focus, status, error_message, model_id, created_at, updated_at
		FROM study_packs WHERE id=$1
	`, id)
	err := row.Scan(&pack.ID, &pack.Title, &pack.Focus, &pack.Status,
		&pack.ErrorMessage, &pack.ModelID, &pack.CreatedAt, &pack.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("select pack: %w", err)
	}
	return &pack, nil
}

// GetFile returns the source file for a pack.
func (s *Store) GetFile(ctx context.Context, packID string) (*model.StudyPackFile, error) {
	var file model.StudyPackFile
	row := s.pool.QueryRow(ctx, `
		SELECT id, pack_id, object_key, media_type, inline_text, size_bytes, created_at
		FROM study_pack_files WHERE pack_id=$1
	`, packID)
	err := row.Scan(&file.ID, &file.PackID, &file.ObjectKey, &file.MediaType,
		&file.InlineText, &file.SizeBytes, &file.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("select pack file: %w", err)
	}
	return &file, nil
}

// SetStatus transitions the pack and records the failure message, or clears
// it when the new status is not error.
func (s *Store) SetStatus(ctx context.Context, id string, status model.PackStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE study_packs SET status=$1, error_message=$2, updated_at=$3 WHERE id=$4
	`, status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update pack status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// MarkReady transitions the pack to ready and records the model that
// produced its outputs.
func (s *Store) MarkReady(ctx context.Context, id, modelID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE study_packs SET status=$1, error_message='', model_id=$2, updated_at=$3 WHERE id=$4
	`, model.StatusReady, modelID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark pack ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
