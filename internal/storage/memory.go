// Package storage contains an in-memory store with the same method set as
// the Postgres repository. It backs the pipeline and API tests and the
// single-binary dev mode, where losing state on restart is acceptable.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/studyforge/studypack/internal/model"
)

// MemoryStore keeps packs, files, chunks, and outputs in mutex-guarded maps.
type MemoryStore struct {
	mu      sync.RWMutex
	packs   map[string]*model.StudyPack
	files   map[string]*model.StudyPackFile // keyed by pack id
	chunks  map[string][]model.StudyPackChunk
	outputs map[string][]model.StudyPackOutput
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		packs:   make(map[string]*model.StudyPack),
		files:   make(map[string]*model.StudyPackFile),
		chunks:  make(map[string][]model.StudyPackChunk),
		outputs: make(map[string][]model.StudyPackOutput),
	}
}

// CreatePack inserts a pack in the received state.
func (m *MemoryStore) CreatePack(_ context.Context, pack *model.StudyPack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	pack.Status = model.StatusReceived
	pack.CreatedAt = now
	pack.UpdatedAt = now
	cp := *pack
	m.packs[pack.ID] = &cp
	return nil
}

// CreateFile inserts the pack's source file row.
func (m *MemoryStore) CreateFile(_ context.Context, file *model.StudyPackFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file.CreatedAt = time.Now().UTC()
	cp := *file
	m.files[file.PackID] = &cp
	return nil
}

// GetPack returns a copy of the pack.
func (m *MemoryStore) GetPack(_ context.Context, id string) (*model.StudyPack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pack, ok := m.packs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *pack
	return &cp, nil
}

// GetFile returns a copy of the pack's source file.
func (m *MemoryStore) GetFile(_ context.Context, packID string) (*model.StudyPackFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[packID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *file
	return &cp, nil
}

// SetStatus transitions the pack and records the failure message.
func (m *MemoryStore) SetStatus(_ context.Context, id string, status model.PackStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pack, ok := m.packs[id]
	if !ok {
		return model.ErrNotFound
	}
	pack.Status = status
	pack.ErrorMessage = errMsg
	pack.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkReady transitions the pack to ready and records the model id.
func (m *MemoryStore) MarkReady(_ context.Context, id, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pack, ok := m.packs[id]
	if !ok {
		return model.ErrNotFound
	}
	pack.Status = model.StatusReady
	pack.ErrorMessage = ""
	pack.ModelID = modelID
	pack.UpdatedAt = time.Now().UTC()
	return nil
}

// ReplaceChunks swaps the pack's chunk set as one unit.
func (m *MemoryStore) ReplaceChunks(_ context.Context, packID string, chunks []model.StudyPackChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	replacement := make([]model.StudyPackChunk, len(chunks))
	for i, c := range chunks {
		c.PackID = packID
		c.CreatedAt = now
		replacement[i] = c
	}
	m.chunks[packID] = replacement
	return nil
}

// ListChunks returns the pack's chunks in original document order.
func (m *MemoryStore) ListChunks(_ context.Context, packID string) ([]model.StudyPackChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.chunks[packID]
	out := make([]model.StudyPackChunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// ReplaceOutputs swaps the pack's output set as one unit.
func (m *MemoryStore) ReplaceOutputs(_ context.Context, packID string, outputs []model.StudyPackOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	replacement := make([]model.StudyPackOutput, len(outputs))
	for i, o := range outputs {
		o.PackID = packID
		o.CreatedAt = now
		replacement[i] = o
	}
	m.outputs[packID] = replacement
	return nil
}

// ListOutputs returns all outputs for a pack.
func (m *MemoryStore) ListOutputs(_ context.Context, packID string) ([]model.StudyPackOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	outputs := m.outputs[packID]
	out := make([]model.StudyPackOutput, len(outputs))
	copy(out, outputs)
	return out, nil
}
