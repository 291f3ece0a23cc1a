// Package api exposes the HTTP command surface consumed by the extension UI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pressdesk/pressdesk/content"
	"github.com/pressdesk/pressdesk/execution"
	"github.com/pressdesk/pressdesk/task"
)

// maxUploadSize limits attachment uploads.
const maxUploadSize = 32 * 1024 * 1024 // 32MB

// Uploader uploads attachment bytes to the provider.
type Uploader interface {
	UploadFile(ctx context.Context, data []byte, fileName, mimeType string) (string, error)
}

// CredentialManager manages the stored provider credential.
type CredentialManager interface {
	Set(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
	Configured(ctx context.Context) (bool, error)
}

// ContentFetcher fetches and extracts web documents.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*content.Document, error)
}

// Server dispatches the inbound command surface to the engine, registry,
// uploader, and fetcher.
type Server struct {
	engine      *execution.Engine
	registry    *task.Registry
	uploader    Uploader
	credentials CredentialManager
	fetcher     ContentFetcher
	logger      *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the command server.
func NewServer(engine *execution.Engine, registry *task.Registry, uploader Uploader,
	credentials CredentialManager, fetcher ContentFetcher, opts ...ServerOption) *Server {
	s := &Server{
		engine:      engine,
		registry:    registry,
		uploader:    uploader,
		credentials: credentials,
		fetcher:     fetcher,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/executions", s.handleCreateExecution)
	mux.HandleFunc("POST /v1/executions/{id}/execute", s.handleExecute)
	mux.HandleFunc("GET /v1/executions/{id}", s.handleGetExecution)
	mux.HandleFunc("POST /v1/executions/{id}/refine", s.handleRefine)

	mux.HandleFunc("POST /v1/attachments", s.handleUploadAttachment)

	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("PUT /v1/tasks", s.handleSetTasks)
	mux.HandleFunc("PATCH /v1/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("PUT /v1/credential", s.handleSetCredential)
	mux.HandleFunc("GET /v1/credential", s.handleGetCredential)
	mux.HandleFunc("DELETE /v1/credential", s.handleClearCredential)

	mux.HandleFunc("POST /v1/content/fetch", s.handleFetchContent)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req CreateExecutionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if req.TaskID == "" {
		s.writeBadRequest(w, fmt.Errorf("task_id is required"))
		return
	}

	exec := s.engine.Create(req.TaskID, req.Title, req.InputText, req.AttachmentIDs)
	s.writeJSON(w, http.StatusCreated, exec)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	exec, err := s.engine.Execute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.engine.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.RefinementRequest) == "" {
		s.writeBadRequest(w, fmt.Errorf("refinement_request is required"))
		return
	}

	exec, err := s.engine.Refine(r.Context(), r.PathValue("id"), req.RefinementRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeBadRequest(w, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeBadRequest(w, fmt.Errorf("file field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		s.writeBadRequest(w, fmt.Errorf("read file: %w", err))
		return
	}

	fileID, err := s.uploader.UploadFile(r.Context(), data, header.Filename,
		header.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, UploadResponse{FileID: fileID})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	defs, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	def := task.Definition{
		ID:              req.ID,
		Name:            req.Name,
		Description:     req.Description,
		PromptTemplate:  ensurePlaceholder(req.PromptTemplate),
		UsesAttachments: req.UsesAttachments,
		IsActive:        true,
		Order:           req.Order,
	}
	if err := def.Validate(); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	created, err := s.registry.Create(r.Context(), def)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	def, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.Name != nil {
		def.Name = *req.Name
	}
	if req.Description != nil {
		def.Description = *req.Description
	}
	if req.PromptTemplate != nil {
		def.PromptTemplate = ensurePlaceholder(*req.PromptTemplate)
	}
	if req.UsesAttachments != nil {
		def.UsesAttachments = *req.UsesAttachments
	}
	if req.IsActive != nil {
		def.IsActive = *req.IsActive
	}
	if req.Order != nil {
		def.Order = *req.Order
	}
	if err := def.Validate(); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	updated, err := s.registry.Upsert(r.Context(), def)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSetTasks(w http.ResponseWriter, r *http.Request) {
	var defs []task.Definition
	if err := decodeJSON(r, &defs); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	if err := s.registry.ReplaceAll(r.Context(), defs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		s.writeBadRequest(w, fmt.Errorf("api_key is required"))
		return
	}

	if err := s.credentials.Set(r.Context(), req.APIKey); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CredentialStatus{Configured: true})
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	configured, err := s.credentials.Configured(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CredentialStatus{Configured: configured})
}

func (s *Server) handleClearCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.credentials.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetchContent(w http.ResponseWriter, r *http.Request) {
	var req FetchContentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if req.URL == "" {
		s.writeBadRequest(w, fmt.Errorf("url is required"))
		return
	}

	doc, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// ensurePlaceholder appends the input placeholder to templates that lack
// it. This is the authoring surface's job; the compiler never synthesizes
// the token.
func ensurePlaceholder(template string) string {
	if template == "" || strings.Contains(template, task.PlaceholderToken) {
		return template
	}
	return template + "\n\n" + task.PlaceholderToken
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	s.writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: err.Error()}})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
		Kind:    KindBadRequest,
		Message: err.Error(),
	}})
}
