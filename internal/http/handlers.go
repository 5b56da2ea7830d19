package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/logging"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// InvokeRequest is the body for POST /v1/eyes/:namespace/:action.
type InvokeRequest struct {
	Context     eyes.RequestContext `json:"context"`
	Payload     map[string]any      `json:"payload"`
	ReasoningMD string              `json:"reasoning_md"`
}

// ClarificationRequest is the body for POST /v1/flows/clarification.
type ClarificationRequest struct {
	Context eyes.RequestContext `json:"context"`
	Goal    string              `json:"goal"`
	Lang    string              `json:"lang"`
}

// CodeReviewRequest is the body for POST /v1/flows/code-review.
type CodeReviewRequest struct {
	Context     eyes.RequestContext `json:"context"`
	PlanMD      string              `json:"plan_md"`
	ReasoningMD string              `json:"reasoning_md"`
}

// TextValidationRequest is the body for POST /v1/flows/text-validation.
type TextValidationRequest struct {
	Context     eyes.RequestContext `json:"context"`
	DraftMD     string              `json:"draft_md"`
	Topic       string              `json:"topic"`
	ReasoningMD string              `json:"reasoning_md"`
}

// ResetBreakerRequest is the body for POST /v1/breakers/reset.
type ResetBreakerRequest struct {
	Name string `json:"name"`
}

// HealthResponse is the body for GET /health. Status is "degraded" while any
// breaker is open.
type HealthResponse struct {
	Status       string   `json:"status"`
	Eyes         int      `json:"eyes"`
	Sessions     int      `json:"sessions"`
	OpenBreakers []string `json:"open_breakers"`
}

// BreakersResponse is the body for GET /v1/breakers.
type BreakersResponse struct {
	Breakers []breaker.Status `json:"breakers"`
}

func (s *Server) handleHealth(c echo.Context) error {
	open := []string{}
	for _, st := range s.breakers.Statuses() {
		if st.State == breaker.StateOpen {
			open = append(open, st.Name)
		}
	}
	status := "ok"
	if len(open) > 0 {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       status,
		Eyes:         len(s.eyes.Names()),
		Sessions:     s.eyes.SessionCount(),
		OpenBreakers: open,
	})
}

// handleListEyes lists every eye, or with ?phase= only the eyes whose
// primary phase it is.
func (s *Server) handleListEyes(c echo.Context) error {
	raw := c.QueryParam("phase")
	if raw == "" {
		return c.JSON(http.StatusOK, s.eyes.Infos())
	}
	phase, err := eyes.ParsePhase(raw)
	if err != nil {
		return writeRecovery(c, recovery.SchemaValidation("GET /v1/eyes", map[string]string{"phase": err.Error()}))
	}
	caps := s.eyes.ByPhase(phase)
	infos := make([]eyes.Info, 0, len(caps))
	for _, eye := range caps {
		infos = append(infos, eye.Info())
	}
	return c.JSON(http.StatusOK, infos)
}

// handleBreakers lists every created breaker, or with ?name= just that one.
// Looking a breaker up never creates it.
func (s *Server) handleBreakers(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusOK, BreakersResponse{Breakers: s.breakers.Statuses()})
	}
	b, ok := s.breakers.Lookup(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no breaker named "+name)
	}
	return c.JSON(http.StatusOK, BreakersResponse{Breakers: []breaker.Status{b.Status()}})
}

// handleResetBreaker forces a breaker closed, for operators who know the
// backend has recovered before the reset timeout runs out.
func (s *Server) handleResetBreaker(c echo.Context) error {
	var body ResetBreakerRequest
	if err := c.Bind(&body); err != nil {
		return writeRecovery(c, badBody(err))
	}
	if body.Name == "" {
		return writeRecovery(c, recovery.SchemaValidation("POST /v1/breakers/reset", map[string]string{"name": "required"}))
	}
	b, ok := s.breakers.Lookup(body.Name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no breaker named "+body.Name)
	}
	b.Reset()
	s.logger.Info("breaker reset by request", zap.String("breaker", body.Name))
	return c.JSON(http.StatusOK, b.Status())
}

// prepare applies context defaults, validates rc, fills in the request id
// and tags the request context for logging.
func (s *Server) prepare(c echo.Context, rc eyes.RequestContext, eye string) (eyes.RequestContext, error) {
	rc = rc.Normalized()
	if err := rc.Validate(); err != nil {
		return rc, err
	}
	if rc.RequestID == "" {
		rc.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	}
	ctx := logging.WithSessionID(c.Request().Context(), rc.SessionID)
	if eye != "" {
		ctx = logging.WithEye(ctx, eye)
	}
	c.SetRequest(c.Request().WithContext(ctx))
	return rc, nil
}

func (s *Server) handleInvoke(c echo.Context) error {
	name := c.Param("namespace") + "/" + c.Param("action")

	var body InvokeRequest
	if err := c.Bind(&body); err != nil {
		return writeRecovery(c, badBody(err))
	}
	rc, err := s.prepare(c, body.Context, name)
	if err != nil {
		return writeError(c, err)
	}
	if body.Payload == nil {
		body.Payload = map[string]any{}
	}

	resp, err := s.eyes.Invoke(c.Request().Context(), name, rc, body.Payload, body.ReasoningMD)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSessionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.flows.PipelineStatus(c.Param("id")))
}

func (s *Server) handleResetSession(c echo.Context) error {
	s.eyes.ResetSession(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClarification(c echo.Context) error {
	var body ClarificationRequest
	if err := c.Bind(&body); err != nil {
		return writeRecovery(c, badBody(err))
	}
	if body.Goal == "" {
		return writeRecovery(c, recovery.SchemaValidation("flows/clarification", map[string]string{"goal": "required"}))
	}
	rc, err := s.prepare(c, body.Context, "")
	if err != nil {
		return writeError(c, err)
	}
	lang := body.Lang
	if lang == "" {
		lang = rc.Lang
	}
	return s.flowResult(c)(s.flows.Clarification(c.Request().Context(), rc, body.Goal, lang))
}

func (s *Server) handleCodeReview(c echo.Context) error {
	var body CodeReviewRequest
	if err := c.Bind(&body); err != nil {
		return writeRecovery(c, badBody(err))
	}
	if body.PlanMD == "" {
		return writeRecovery(c, recovery.SchemaValidation("flows/code-review", map[string]string{"plan_md": "required"}))
	}
	rc, err := s.prepare(c, body.Context, "")
	if err != nil {
		return writeError(c, err)
	}
	return s.flowResult(c)(s.flows.CodeReview(c.Request().Context(), rc, body.PlanMD, body.ReasoningMD))
}

func (s *Server) handleTextValidation(c echo.Context) error {
	var body TextValidationRequest
	if err := c.Bind(&body); err != nil {
		return writeRecovery(c, badBody(err))
	}
	if body.DraftMD == "" {
		return writeRecovery(c, recovery.SchemaValidation("flows/text-validation", map[string]string{"draft_md": "required"}))
	}
	rc, err := s.prepare(c, body.Context, "")
	if err != nil {
		return writeError(c, err)
	}
	return s.flowResult(c)(s.flows.TextValidation(c.Request().Context(), rc, body.DraftMD, body.Topic, body.ReasoningMD))
}

// flowResult renders a flow outcome. A stage that returned ok=false is still
// a 200: the result says which stage failed.
func (s *Server) flowResult(c echo.Context) func(*orchestrator.Result, error) error {
	return func(res *orchestrator.Result, err error) error {
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}
