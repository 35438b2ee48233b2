// Package pipeline sequences the generation stages for one study pack:
// extract, chunk, fingerprint, select, generate, render, persist. It owns the
// pack's lifecycle status, enforces at most one active run per pack in this
// process, and compensates failures with a single error transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyforge/studypack/internal/chunker"
	"github.com/studyforge/studypack/internal/extract"
	"github.com/studyforge/studypack/internal/generate"
	"github.com/studyforge/studypack/internal/model"
	"github.com/studyforge/studypack/internal/relevance"
	"github.com/studyforge/studypack/internal/render"
)

var (
	// ErrAlreadyRunning is returned by TryStart when a run for the pack is
	// already active in this process.
	ErrAlreadyRunning = errors.New("generation already running")
	// ErrNoChunks is returned when the extracted text yields zero chunks;
	// generation cannot proceed without grounding material.
	ErrNoChunks = errors.New("document produced no chunks")
)

// Store is the persistence surface the pipeline needs. Implemented by the
// Postgres repository and the in-memory store.
type Store interface {
	GetPack(ctx context.Context, id string) (*model.StudyPack, error)
	GetFile(ctx context.Context, packID string) (*model.StudyPackFile, error)
	SetStatus(ctx context.Context, id string, status model.PackStatus, errMsg string) error
	MarkReady(ctx context.Context, id, modelID string) error
	ReplaceChunks(ctx context.Context, packID string, chunks []model.StudyPackChunk) error
	ReplaceOutputs(ctx context.Context, packID string, outputs []model.StudyPackOutput) error
}

// Scheduler hands an accepted run off for asynchronous execution.
type Scheduler interface {
	Schedule(ctx context.Context, packID string, mode model.RunMode) error
}

// Config carries the pipeline's tunables.
type Config struct {
	MaxTextChars     int
	ChunkTargetChars int
	MaxChunks        int
	MaxFocusChunks   int
	RunTimeout       time.Duration
}

// Runner orchestrates generation runs.
type Runner struct {
	cfg       Config
	store     Store
	extractor *extract.Extractor
	gen       *generate.Generator
	sched     Scheduler
	log       *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunner constructs a Runner. The scheduler executes accepted runs
// asynchronously; Run must be called with the guard already held by a
// successful TryStart.
func NewRunner(cfg Config, store Store, extractor *extract.Extractor, gen *generate.Generator, sched Scheduler, log *zap.Logger) *Runner {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	return &Runner{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		gen:       gen,
		sched:     sched,
		log:       log,
		active:    make(map[string]struct{}),
	}
}

// TryStart validates the pack, acquires the per-pack guard, and schedules
// the run. Returns model.ErrNotFound for unknown packs and ErrAlreadyRunning
// when a run is active; neither mutates any state.
func (r *Runner) TryStart(ctx context.Context, packID string, mode model.RunMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown run mode %q", mode)
	}
	if _, err := r.store.GetPack(ctx, packID); err != nil {
		return err
	}

	r.mu.Lock()
	if _, running := r.active[packID]; running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.active[packID] = struct{}{}
	r.mu.Unlock()

	if err := r.sched.Schedule(ctx, packID, mode); err != nil {
		r.release(packID)
		return fmt.Errorf("schedule run: %w", err)
	}
	return nil
}

func (r *Runner) release(packID string) {
	r.mu.Lock()
	delete(r.active, packID)
	r.mu.Unlock()
}

// Run executes the full pipeline for one pack. The guard entry is re-acquired
// here as well: a task replayed from the queue after a restart arrives without
// a prior TryStart, and concurrent triggers must still be rejected for its
// duration. Released on return regardless of outcome. Any failure after the
// pack and file load force-transitions the pack to error, best-effort.
func (r *Runner) Run(ctx context.Context, packID string, mode model.RunMode) error {
	r.mu.Lock()
	r.active[packID] = struct{}{}
	r.mu.Unlock()
	defer r.release(packID)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	// Input errors: surfaced without touching the pack's status.
	pack, err := r.store.GetPack(ctx, packID)
	if err != nil {
		return fmt.Errorf("load pack: %w", err)
	}
	file, err := r.store.GetFile(ctx, packID)
	if err != nil {
		return fmt.Errorf("load pack file: %w", err)
	}

	if err := r.run(ctx, pack, file, mode); err != nil {
		r.log.Error("generation run failed",
			zap.String("pack_id", packID),
			zap.String("mode", string(mode)),
			zap.Error(err))
		// The run context may already be expired, so the error transition
		// gets its own deadline. Its failure is logged, not escalated.
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if serr := r.store.SetStatus(sctx, packID, model.StatusError, err.Error()); serr != nil {
			r.log.Error("error transition failed", zap.String("pack_id", packID), zap.Error(serr))
		}
		return err
	}

	r.log.Info("generation run completed",
		zap.String("pack_id", packID),
		zap.String("mode", string(mode)))
	return nil
}

func (r *Runner) run(ctx context.Context, pack *model.StudyPack, file *model.StudyPackFile, mode model.RunMode) error {
	text := file.InlineText
	if text == "" {
		extracted, err := r.extractor.Extract(ctx, file.ObjectKey, file.MediaType)
		if err != nil {
			return err
		}
		text = extracted
	}
	// Second enforcement point for the character ceiling; PDF extraction
	// already applies it per-page.
	text = extract.Truncate(text, r.cfg.MaxTextChars)

	pieces := chunker.Split(text, chunker.Options{
		TargetChars: r.cfg.ChunkTargetChars,
		MaxChunks:   r.cfg.MaxChunks,
	})
	if len(pieces) == 0 {
		return ErrNoChunks
	}
	chunks := make([]model.StudyPackChunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = model.StudyPackChunk{
			ID:            uuid.NewString(),
			PackID:        pack.ID,
			Idx:           i,
			Content:       content,
			Hash:          chunker.Fingerprint(content),
			TokenEstimate: chunker.TokenEstimate(content),
		}
	}
	if err := r.store.ReplaceChunks(ctx, pack.ID, chunks); err != nil {
		return err
	}
	if err := r.store.SetStatus(ctx, pack.ID, model.StatusChunked, ""); err != nil {
		return err
	}
	r.log.Debug("chunk set persisted", zap.String("pack_id", pack.ID), zap.Int("chunks", len(chunks)))

	relevant := relevance.Select(chunks, pack.Focus, r.cfg.MaxFocusChunks)

	ft, err := r.gen.Fulltext(ctx, pack.Title, pack.Focus, relevant)
	if err != nil {
		return err
	}
	ftRendered, err := render.Fulltext(ft)
	if err != nil {
		return err
	}
	outputs := []model.StudyPackOutput{{
		ID:          uuid.NewString(),
		PackID:      pack.ID,
		Mode:        model.ModeFulltext,
		ContentHTML: ftRendered.HTML,
		Citations:   ftRendered.Citations,
		ModelID:     r.gen.FulltextModel(),
	}}

	if mode == model.RunHighYield {
		hy, err := r.gen.HighYield(ctx, pack.Title, ftRendered.Markdown, relevant)
		if err != nil {
			return err
		}
		hyRendered, err := render.HighYield(hy)
		if err != nil {
			return err
		}
		outputs = append(outputs, model.StudyPackOutput{
			ID:          uuid.NewString(),
			PackID:      pack.ID,
			Mode:        model.ModeHighYield,
			ContentHTML: hyRendered.HTML,
			Citations:   hyRendered.Citations,
			ModelID:     r.gen.HighYieldModel(),
		})
	}

	if err := r.store.ReplaceOutputs(ctx, pack.ID, outputs); err != nil {
		return err
	}
	return r.store.MarkReady(ctx, pack.ID, r.gen.FulltextModel())
}
