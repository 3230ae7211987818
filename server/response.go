package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/richinex/sandboxagent/agent"
	"github.com/richinex/sandboxagent/config"
	"github.com/richinex/sandboxagent/sandbox"
	"github.com/richinex/sandboxagent/tools"
)

const maxRequestBodyBytes = 1 << 20

const (
	errorCodeInvalidInput     = "invalid_input"
	errorCodeConfiguration    = "configuration_error"
	errorCodeMalformedOutput  = "malformed_output"
	errorCodeUnknownTool      = "unknown_tool"
	errorCodeInvalidArguments = "invalid_arguments"
	errorCodePathEscape       = "path_escape"
	errorCodeMaxIterations    = "max_iterations_exceeded"
	errorCodeToolFailure      = "tool_failure"
	errorCodeModel            = "model_error"
	errorCodeCancelled        = "cancelled"
	errorCodeNotFound         = "not_found"
	errorCodeMethodNotAllowed = "method_not_allowed"
	errorCodeInternal         = "internal_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

func writeInvalidInput(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, errorCodeInvalidInput, message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

// classify maps a run error to its HTTP status and error code.
// Order matters: a configuration failure surfaces through the model call,
// and tool failures may carry a path escape in their chain.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		return http.StatusBadRequest, errorCodeInvalidInput
	case errors.Is(err, config.ErrConfiguration):
		return http.StatusInternalServerError, errorCodeConfiguration
	case errors.Is(err, agent.ErrMalformedOutput):
		return http.StatusBadGateway, errorCodeMalformedOutput
	case errors.Is(err, tools.ErrUnknownTool):
		return http.StatusBadGateway, errorCodeUnknownTool
	case errors.Is(err, tools.ErrInvalidArguments):
		return http.StatusBadGateway, errorCodeInvalidArguments
	case errors.Is(err, sandbox.ErrPathEscape):
		return http.StatusBadGateway, errorCodePathEscape
	case errors.Is(err, agent.ErrMaxIterations):
		return http.StatusInternalServerError, errorCodeMaxIterations
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorCodeCancelled
	case errors.Is(err, agent.ErrModelCall):
		return http.StatusBadGateway, errorCodeModel
	case errors.Is(err, tools.ErrToolFailed):
		return http.StatusInternalServerError, errorCodeToolFailure
	default:
		return http.StatusInternalServerError, errorCodeInternal
	}
}
