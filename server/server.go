// Package server exposes the agent over HTTP.
//
// Information Hiding:
// - Request decoding and validation hidden
// - Error-to-status mapping centralized in classify
// - Run journaling and metrics hidden behind the /run handler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/richinex/sandboxagent/agent"
	"github.com/richinex/sandboxagent/storage"
	"github.com/richinex/sandboxagent/tools"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Runner executes one agent invocation. *agent.Agent satisfies it.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (agent.Result, error)
}

// Options configures a Server.
type Options struct {
	Agent    Runner
	Registry *tools.Registry
	Journal  storage.RunJournal
	Metrics  *Metrics
	Logger   *slog.Logger

	// MaxIterationsLimit bounds the maxIterations a request may ask for.
	MaxIterationsLimit int
}

// Server holds the API handlers.
type Server struct {
	agent              Runner
	registry           *tools.Registry
	journal            storage.RunJournal
	metrics            *Metrics
	logger             *slog.Logger
	maxIterationsLimit int
}

// New validates options and creates the API server.
func New(opts Options) (*Server, error) {
	if opts.Agent == nil {
		return nil, errors.New("new server: agent is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("new server: tool registry is required")
	}
	if opts.Journal == nil {
		opts.Journal = storage.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxIterationsLimit <= 0 {
		opts.MaxIterationsLimit = agent.DefaultMaxIterationsLimit
	}

	return &Server{
		agent:              opts.Agent,
		registry:           opts.Registry,
		journal:            opts.Journal,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		maxIterationsLimit: opts.MaxIterationsLimit,
	}, nil
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/run", s.handleRun)
	r.Get("/tools", s.handleTools)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
}

type runRequest struct {
	Input         *string `json:"input"`
	IncludeSteps  bool    `json:"includeSteps"`
	MaxIterations *int    `json:"maxIterations"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeInvalidInput(w, err.Error())
		return
	}
	if body.Input == nil {
		writeInvalidInput(w, "input is required")
		return
	}

	req := agent.Request{Input: *body.Input, IncludeSteps: body.IncludeSteps}
	if body.MaxIterations != nil {
		n := *body.MaxIterations
		if n < 1 || n > s.maxIterationsLimit {
			writeInvalidInput(w, fmt.Sprintf("maxIterations must be between 1 and %d", s.maxIterationsLimit))
			return
		}
		req.MaxIterations = n
	}

	runID := uuid.NewString()
	w.Header().Set(runIDHeader, runID)

	started := time.Now()
	result, err := s.agent.Run(r.Context(), req)
	finished := time.Now()

	outcome := string(storage.RunSucceeded)
	status, code := http.StatusOK, ""
	if err != nil {
		status, code = classify(err)
		outcome = code
	}
	s.metrics.ObserveRun(outcome, result.Metadata, finished.Sub(started))
	s.record(r.Context(), runID, req, result, err, code, started, finished)

	if err != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError && code != errorCodeMaxIterations {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "run failed",
			"run_id", runID,
			"code", code,
			"iterations", result.Metadata.Iterations,
			"llm_calls", result.Metadata.LLMCalls,
			"error", err,
		)
		writeError(w, status, code, err.Error())
		return
	}

	s.logger.Info("run completed",
		"run_id", runID,
		"iterations", result.Metadata.Iterations,
		"llm_calls", result.Metadata.LLMCalls,
		"total_tokens", result.Metadata.TokenUsage.TotalTokens,
	)
	writeJSON(w, http.StatusOK, result.Response())
}

// record writes the audit entry. Journal failures are logged, never surfaced.
func (s *Server) record(ctx context.Context, runID string, req agent.Request, result agent.Result, runErr error, code string, started, finished time.Time) {
	entry := storage.RunRecord{
		ID:         runID,
		Input:      req.Input,
		Status:     storage.RunSucceeded,
		Output:     result.Output,
		Steps:      result.Steps,
		ToolCalls:  result.Metadata.ToolCalls,
		Iterations: result.Metadata.Iterations,
		LLMCalls:   result.Metadata.LLMCalls,
		Usage:      result.Metadata.TokenUsage,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
	}
	if runErr != nil {
		entry.Status = storage.RunFailed
		entry.ErrorCode = code
		entry.ErrorMessage = runErr.Error()
	}

	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("journal record failed", "run_id", runID, "error", err)
	}
}

type toolsResponse struct {
	Tools []tools.ToolDefinition `json:"tools"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toolsResponse{Tools: s.registry.Definitions()})
}

type runsResponse struct {
	Runs []storage.RunRecord `json:"runs"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeInvalidInput(w, fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	runs, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("journal list failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorCodeInternal, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.journal.Get(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, errorCodeNotFound, fmt.Sprintf("run %q not found", id))
		return
	}
	if err != nil {
		s.logger.Error("journal get failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errorCodeInternal, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
