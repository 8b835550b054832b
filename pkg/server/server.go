// Package server exposes the task API over HTTP: task execution,
// cancellation, health, and the provider catalogue. Handlers are thin;
// lifecycle semantics live in the supervisor and orchestrator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/entrhq/surf/pkg/config"
	"github.com/entrhq/surf/pkg/llm"
	"github.com/entrhq/surf/pkg/logging"
	"github.com/entrhq/surf/pkg/orchestrator"
	"github.com/entrhq/surf/pkg/task"
	"github.com/entrhq/surf/pkg/types"
)

// Server wires the HTTP mux to the supervisor and orchestrator. The
// registry lives inside the supervisor and is passed in explicitly; the
// server holds no ambient state.
type Server struct {
	cfg        *config.Config
	supervisor *task.Supervisor
	orch       *orchestrator.Orchestrator
	logger     *logging.Logger
	mux        *http.ServeMux
}

// New creates a server and registers its routes.
func New(cfg *config.Config, supervisor *task.Supervisor, orch *orchestrator.Orchestrator, logger *logging.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		supervisor: supervisor,
		orch:       orch,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/execute", s.handleExecute)
	s.mux.HandleFunc("/cancel/", s.handleCancel)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/providers", s.handleProviders)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	var req types.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = "browser_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	}

	s.logger.Infof("starting task %s: %s (provider=%s, model=%s, max_steps=%d)",
		taskID, truncate(req.Task, 100), req.LLMProvider, req.LLMModel, req.MaxSteps)

	handle := s.supervisor.Register(taskID)

	// Detached from the request context: a dropped client connection must
	// not abort the task, only the supervisor's deadline or an explicit
	// cancel can.
	outcome := s.supervisor.RunUnderDeadline(context.Background(), handle, req.TimeoutDuration(),
		func(ctx context.Context) (*types.ExecutionReport, error) {
			return s.orch.Execute(ctx, &req, handle)
		})

	writeJSON(w, http.StatusOK, s.outcomeReport(taskID, &req, outcome))
}

// outcomeReport maps a supervisor outcome to the response contract.
// Timeout, cancellation, and failure are distinct non-exceptional shapes,
// all carrying elapsed time.
func (s *Server) outcomeReport(taskID string, req *types.TaskRequest, outcome task.Outcome) *types.ExecutionReport {
	elapsed := outcome.Elapsed.Seconds()

	switch outcome.Status {
	case task.StatusCompleted:
		rep := outcome.Report
		s.logger.Infof("task %s completed in %.2fs (steps=%d, success=%v)",
			taskID, elapsed, rep.StepsTaken, rep.Success)
		return rep

	case task.StatusTimedOut:
		return &types.ExecutionReport{
			TaskID:          taskID,
			Success:         false,
			Error:           fmt.Sprintf("Task timed out after %d seconds", req.Timeout),
			ExecutionTime:   elapsed,
			URLsVisited:     []string{},
			DownloadedFiles: []string{},
		}

	case task.StatusCancelled:
		partial, _ := s.supervisor.PartialResult(taskID)
		return &types.ExecutionReport{
			TaskID:          taskID,
			Success:         false,
			Error:           "Task cancelled",
			PartialResult:   partial,
			ExecutionTime:   elapsed,
			URLsVisited:     []string{},
			DownloadedFiles: []string{},
		}

	default:
		errText := "task failed"
		if outcome.Err != nil {
			errText = outcome.Err.Error()
		}
		return &types.ExecutionReport{
			TaskID:          taskID,
			Success:         false,
			Error:           errText,
			ExecutionTime:   elapsed,
			URLsVisited:     []string{},
			DownloadedFiles: []string{},
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/cancel/")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "task id required"})
		return
	}

	s.logger.Infof("cancel request received for task %s", taskID)
	result := s.supervisor.Cancel(taskID)
	if !result.Found {
		writeJSON(w, http.StatusOK, types.CancelResponse{
			Success: false,
			TaskID:  taskID,
			Error:   "Task not found or already completed",
		})
		return
	}

	writeJSON(w, http.StatusOK, types.CancelResponse{
		Success:       true,
		TaskID:        taskID,
		Message:       "Task cancelled",
		PartialResult: result.Partial,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"driver": "playwright",
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers":   llm.Providers(),
		"recommended": "gemini",
		"fastest":     "browseruse",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
