package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"fetching: no transcript found"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// HealthResponse is the liveness response with the active capabilities
// @Description Liveness response
type HealthResponse struct {
	Status       string               `json:"status" example:"ok"`
	Capabilities *domain.Capabilities `json:"capabilities,omitempty"`
}

// ReadyResponse reports each dependency check
// @Description Readiness response
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ProcessRequest names the video to ingest
// @Description Ingestion request
type ProcessRequest struct {
	VideoID string `json:"video_id" example:"dQw4w9WgXcQ"`
}

// ProcessResponse is a completed ingestion
// @Description Ingestion result
type ProcessResponse struct {
	Status  string `json:"status" example:"done"`
	VideoID string `json:"video_id" example:"dQw4w9WgXcQ"`
	Chunks  int    `json:"chunks" example:"12"`
}

// AskResponse carries the generated answer
// @Description Answer to a question
type AskResponse struct {
	Answer string `json:"answer" example:"The video explains hybrid search."`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API and the active capabilities
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.runtimeConfig != nil {
		caps := s.runtimeConfig.Snapshot()
		resp.Capabilities = &caps
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the vector index, queue and stores the server depends on
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.dependencies))}
	status := http.StatusOK
	for name, p := range s.dependencies {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Pipeline endpoints

// handleProcess godoc
// @Summary      Process a video
// @Description  Fetches the transcript, chunks it and indexes the passages. Blocks until done.
// @Tags         Pipeline
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ProcessRequest  true  "Video to ingest"
// @Success      200      {object}  ProcessResponse
// @Failure      400      {object}  ErrorResponse  "Invalid video id"
// @Failure      409      {object}  ErrorResponse  "Ingestion already running for the video"
// @Failure      422      {object}  ErrorResponse  "Transcript has no usable text"
// @Failure      502      {object}  ErrorResponse  "Transcript source or embedding failed"
// @Failure      503      {object}  ErrorResponse  "Vector index unavailable"
// @Router       /process [post]
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.process(w, r, req.VideoID)
}

// handleProcessVideo godoc
// @Summary      Process a video by id
// @Description  Same as /process. With async=true the ingestion is queued and the task returned.
// @Tags         Videos
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Video ID"
// @Param        async  query     bool    false  "Queue instead of waiting"
// @Success      200    {object}  ProcessResponse
// @Success      202    {object}  domain.Task
// @Failure      400    {object}  ErrorResponse  "Invalid video id"
// @Failure      409    {object}  ErrorResponse  "Ingestion already running for the video"
// @Failure      503    {object}  ErrorResponse  "No task queue configured"
// @Router       /videos/{id}/process [post]
func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if !async {
		s.process(w, r, videoID)
		return
	}

	task, err := s.ingestion.ProcessAsync(r.Context(), videoID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request, videoID string) {
	result, err := s.ingestion.Process(r.Context(), videoID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !result.Succeeded() {
		msg := "ingestion did not complete"
		if result != nil && result.Error != "" {
			msg = result.Error
		}
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	writeJSON(w, http.StatusOK, ProcessResponse{
		Status:  result.Status,
		VideoID: result.VideoID,
		Chunks:  result.Chunks,
	})
}

// handleAsk godoc
// @Summary      Ask about a video
// @Description  Answers a question from the video's indexed passages. An unprocessed video yields a fixed answer.
// @Tags         Pipeline
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.AskRequest  true  "Question"
// @Success      200      {object}  AskResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      502      {object}  ErrorResponse  "Embedding, reranker or generator failed"
// @Failure      503      {object}  ErrorResponse  "Vector index unavailable"
// @Router       /ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req domain.AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.answers.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Answer: result.Answer})
}

// Video endpoints

// handleGetVideo godoc
// @Summary      Get video status
// @Description  Returns the last ingestion record and the number of indexed passages
// @Tags         Videos
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Video ID"
// @Success      200  {object}  domain.VideoStatus
// @Failure      400  {object}  ErrorResponse  "Invalid video id"
// @Failure      404  {object}  ErrorResponse  "Video never processed"
// @Router       /videos/{id} [get]
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	status, err := s.ingestion.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleDeleteVideo godoc
// @Summary      Delete a video
// @Description  Removes the video's passages, sparse snapshot and ingestion record
// @Tags         Videos
// @Security     BearerAuth
// @Param        id   path  string  true  "Video ID"
// @Success      204
// @Failure      400  {object}  ErrorResponse  "Invalid video id"
// @Failure      409  {object}  ErrorResponse  "Ingestion running for the video"
// @Router       /videos/{id} [delete]
func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestion.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Task endpoints

// handleGetTask godoc
// @Summary      Get task
// @Description  Returns a queued ingestion task
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Failure      503  {object}  ErrorResponse  "No task queue configured"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	task, err := s.taskQueue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.writeServiceError(w, r, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleTaskStats godoc
// @Summary      Queue statistics
// @Description  Returns pending, processing, completed and failed task counts
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driven.QueueStats
// @Failure      503  {object}  ErrorResponse  "No task queue configured"
// @Router       /tasks/stats [get]
func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Helpers

// statusForError maps domain errors and pipeline error kinds to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIngestionInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	}

	switch domain.KindOf(err) {
	case domain.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case domain.ErrorKindConflict:
		return http.StatusConflict
	case domain.ErrorKindEmptyContent:
		return http.StatusUnprocessableEntity
	case domain.ErrorKindUpstreamFetch, domain.ErrorKindEncoding, domain.ErrorKindRerank, domain.ErrorKindGenerator:
		return http.StatusBadGateway
	case domain.ErrorKindIndex:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
