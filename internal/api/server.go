// Package api exposes the HTTP surface: pack upload, generation triggers,
// status reads, and signed share links for rendered outputs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyforge/studypack/internal/config"
	"github.com/studyforge/studypack/internal/model"
	"github.com/studyforge/studypack/internal/pipeline"
	"github.com/studyforge/studypack/internal/signing"
)

// Store is the persistence surface the API needs.
type Store interface {
	CreatePack(ctx context.Context, pack *model.StudyPack) error
	CreateFile(ctx context.Context, file *model.StudyPackFile) error
	GetPack(ctx context.Context, id string) (*model.StudyPack, error)
	ListChunks(ctx context.Context, packID string) ([]model.StudyPackChunk, error)
	ListOutputs(ctx context.Context, packID string) ([]model.StudyPackOutput, error)
}

// Uploader stores raw upload bytes.
type Uploader interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
}

// Trigger accepts or rejects generation runs.
type Trigger interface {
	TryStart(ctx context.Context, packID string, mode model.RunMode) error
}

// Server exposes the HTTP endpoints.
type Server struct {
	cfg     *config.Config
	store   Store
	uploads Uploader
	trigger Trigger
	signer  *signing.Signer
	log     *zap.Logger
	server  *http.Server
	once    sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, store Store, uploads Uploader, trigger Trigger, signer *signing.Signer, log *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		uploads: uploads,
		trigger: trigger,
		signer:  signer,
		log:     log,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("api listening", zap.String("address", s.cfg.Address))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the routing tree; exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/packs", s.handlePacks)
	mux.HandleFunc("/packs/", s.handlePackRoute)
	return s.loggingMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePacks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePackRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/packs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handleGetPack(w, r, id)
	case len(parts) == 2 && parts[1] == "generate":
		s.handleGenerate(w, r, id)
	case len(parts) == 2 && parts[1] == "chunks":
		s.handleListChunks(w, r, id)
	case len(parts) == 2 && parts[1] == "outputs":
		s.handleListOutputs(w, r, id)
	case len(parts) == 4 && parts[1] == "outputs" && parts[3] == "share":
		s.handleShareLink(w, r, id, parts[2])
	case len(parts) == 4 && parts[1] == "outputs" && parts[3] == "html":
		s.handleSharedHTML(w, r, id, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty file", http.StatusBadRequest)
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}

	packID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", packID, filepath.Base(header.Filename))
	if err := s.uploads.Upload(ctx, objectKey, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
		s.log.Error("store upload failed", zap.String("pack_id", packID), zap.Error(err))
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	pack := &model.StudyPack{
		ID:    packID,
		Title: title,
		Focus: strings.TrimSpace(r.FormValue("focus")),
	}
	if err := s.store.CreatePack(ctx, pack); err != nil {
		http.Error(w, "failed to store metadata", http.StatusInternalServerError)
		return
	}
	file := &model.StudyPackFile{
		ID:        uuid.NewString(),
		PackID:    packID,
		ObjectKey: objectKey,
		MediaType: mediaType,
		SizeBytes: int64(len(data)),
	}
	if err := s.store.CreateFile(ctx, file); err != nil {
		http.Error(w, "failed to store metadata", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":     packID,
		"status": string(pack.Status),
	})
}

type generateRequest struct {
	Mode model.RunMode `json:"mode"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := generateRequest{Mode: model.RunFulltext}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if !req.Mode.Valid() {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}

	err := s.trigger.TryStart(r.Context(), id, req.Mode)
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "pack not found", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		// Still 202: the caller polls pack status either way.
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "already_running"})
	case err != nil:
		s.log.Error("trigger failed", zap.String("pack_id", id), zap.Error(err))
		http.Error(w, "failed to queue run", http.StatusInternalServerError)
	default:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func (s *Server) handleGetPack(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pack, err := s.store.GetPack(r.Context(), id)
	if err != nil {
		http.Error(w, "pack not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, pack)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.store.GetPack(r.Context(), id); err != nil {
		http.Error(w, "pack not found", http.StatusNotFound)
		return
	}
	chunks, err := s.store.ListChunks(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load chunks", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.store.GetPack(r.Context(), id); err != nil {
		http.Error(w, "pack not found", http.StatusNotFound)
		return
	}
	outputs, err := s.store.ListOutputs(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load outputs", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"outputs": outputs})
}

func (s *Server) handleShareLink(w http.ResponseWriter, r *http.Request, id, mode string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.findOutput(r.Context(), id, mode); err != nil {
		http.Error(w, "output not found", http.StatusNotFound)
		return
	}
	expires := time.Now().Add(s.cfg.ShareTTL).Unix()
	sig := s.signer.Sign(id, mode, expires)
	respondJSON(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("/packs/%s/outputs/%s/html?expires=%d&sig=%s", id, mode, expires, sig),
	})
}

func (s *Server) handleSharedHTML(w http.ResponseWriter, r *http.Request, id, mode string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	expires := r.URL.Query().Get("expires")
	sig := r.URL.Query().Get("sig")
	if !s.signer.Validate(id, mode, expires, sig) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > exp {
		http.Error(w, "link expired", http.StatusForbidden)
		return
	}
	output, err := s.findOutput(r.Context(), id, mode)
	if err != nil {
		http.Error(w, "output not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, output.ContentHTML)
}

func (s *Server) findOutput(ctx context.Context, packID, mode string) (*model.StudyPackOutput, error) {
	outputs, err := s.store.ListOutputs(ctx, packID)
	if err != nil {
		return nil, err
	}
	for i := range outputs {
		if string(outputs[i].Mode) == mode {
			return &outputs[i], nil
		}
	}
	return nil, model.ErrNotFound
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
