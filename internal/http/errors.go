package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// StatusCode maps a recovery status class to an HTTP status.
func StatusCode(class recovery.StatusClass) int {
	switch class {
	case recovery.StatusConflict:
		return http.StatusConflict
	case recovery.StatusTooManyRequests:
		return http.StatusTooManyRequests
	case recovery.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// FlowErrorResponse is the body for a flow that failed before producing a
// result.
type FlowErrorResponse struct {
	Flow     string              `json:"flow"`
	Stage    orchestrator.Stage  `json:"stage"`
	Error    string              `json:"error"`
	Recovery *recovery.AgentView `json:"recovery,omitempty"`
}

// writeRecovery renders a recoverable error with its agent view.
func writeRecovery(c echo.Context, rec *recovery.Error) error {
	if ra := rec.RetryAfter(); ra > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(ra))
	}
	return c.JSON(StatusCode(rec.StatusClass()), rec.AgentView())
}

// writeError renders err. Recoverable errors keep their status class; a
// FlowError wrapping one adds the flow and stage; anything else is a 500.
func writeError(c echo.Context, err error) error {
	var flowErr *orchestrator.FlowError
	if errors.As(err, &flowErr) {
		body := FlowErrorResponse{Flow: flowErr.Flow, Stage: flowErr.Stage, Error: flowErr.Err.Error()}
		status := http.StatusUnprocessableEntity
		if rec, ok := recovery.As(flowErr.Err); ok {
			view := rec.AgentView()
			body.Recovery = &view
			status = StatusCode(rec.StatusClass())
			if ra := rec.RetryAfter(); ra > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(ra))
			}
		}
		return c.JSON(status, body)
	}
	if rec, ok := recovery.As(err); ok {
		return writeRecovery(c, rec)
	}
	return err
}

func badBody(err error) *recovery.Error {
	return recovery.New(recovery.CodeBadPayload, "request body is not valid JSON",
		recovery.WithSteps("Send a JSON object matching the endpoint's request shape", "Retry the request"),
		recovery.WithCause(err),
	)
}
