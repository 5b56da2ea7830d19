package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/logging"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/review"
)

// Tool names outside the per-eye set.
const (
	ToolPipelineStatus = "pipeline_status"
	ToolResetSession   = "reset_session"
	ToolClarification  = "clarification_flow"
	ToolCodeReview     = "code_review_flow"
	ToolTextValidation = "text_validation_flow"
)

// ToolName maps an eye name to its tool name.
func ToolName(eye string) string {
	return strings.ReplaceAll(eye, "/", "_")
}

// contextInput mirrors eyes.RequestContext. Every field is optional in the
// schema so a missing session comes back as E_INVALID_CONTEXT instead of a
// schema rejection.
type contextInput struct {
	SessionID    string `json:"session_id,omitempty" jsonschema:"Pipeline session identifier"`
	UserID       string `json:"user_id,omitempty" jsonschema:"Calling user"`
	Tenant       string `json:"tenant,omitempty" jsonschema:"Tenant of the caller"`
	Lang         string `json:"lang,omitempty" jsonschema:"Response language: auto, en or ar"`
	BudgetTokens int    `json:"budget_tokens,omitempty" jsonschema:"Token budget for this request; 0 means unlimited"`
}

func (c contextInput) requestContext() eyes.RequestContext {
	rc := eyes.RequestContext{
		SessionID:    c.SessionID,
		UserID:       c.UserID,
		Tenant:       c.Tenant,
		Lang:         c.Lang,
		BudgetTokens: c.BudgetTokens,
	}
	if rc.Lang == "" {
		rc.Lang = eyes.LangAuto
	}
	return rc
}

type eyeInput struct {
	Context     contextInput   `json:"context,omitempty" jsonschema:"Request context"`
	Payload     map[string]any `json:"payload,omitempty" jsonschema:"Eye-specific payload"`
	ReasoningMD string         `json:"reasoning_md,omitempty" jsonschema:"Markdown explaining the approach; required by reasoning eyes"`
}

type sessionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Pipeline session identifier"`
}

type clarificationInput struct {
	Context contextInput `json:"context,omitempty" jsonschema:"Request context"`
	Goal    string       `json:"goal,omitempty" jsonschema:"What the user wants to build or write"`
	Lang    string       `json:"lang,omitempty" jsonschema:"Language for clarifying questions"`
}

type codeReviewInput struct {
	Context     contextInput `json:"context,omitempty" jsonschema:"Request context"`
	PlanMD      string       `json:"plan_md,omitempty" jsonschema:"Implementation plan in markdown"`
	ReasoningMD string       `json:"reasoning_md,omitempty" jsonschema:"Reasoning behind the plan"`
}

type textValidationInput struct {
	Context     contextInput `json:"context,omitempty" jsonschema:"Request context"`
	DraftMD     string       `json:"draft_md,omitempty" jsonschema:"Draft text in markdown"`
	Topic       string       `json:"topic,omitempty" jsonschema:"Topic the draft must stay consistent with"`
	ReasoningMD string       `json:"reasoning_md,omitempty" jsonschema:"Reasoning behind the draft"`
}

func (s *Server) registerEyeTools() {
	for _, info := range s.registry.Infos() {
		eye := info.Name
		tool := ToolName(eye)
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        tool,
			Description: eyeDescription(info),
		}, func(ctx context.Context, req *mcp.CallToolRequest, in eyeInput) (*mcp.CallToolResult, any, error) {
			rc := in.Context.requestContext()
			if err := rc.Validate(); err != nil {
				return s.fail(ctx, tool, err)
			}
			ctx = logging.WithEye(logging.WithSessionID(ctx, rc.SessionID), eye)
			payload := in.Payload
			if payload == nil {
				payload = map[string]any{}
			}

			done := s.metrics.track(ctx, tool)
			resp, err := s.registry.Invoke(ctx, eye, rc, payload, in.ReasoningMD)
			done(err)
			if err != nil {
				return s.fail(ctx, tool, err)
			}
			return jsonResult(resp, false)
		})
	}
}

func (s *Server) registerPipelineTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolPipelineStatus,
		Description: "Report completed phases and the eyes a session may invoke next",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in sessionInput) (*mcp.CallToolResult, any, error) {
		done := s.metrics.track(ctx, ToolPipelineStatus)
		done(nil)
		return jsonResult(s.flows.PipelineStatus(in.SessionID), false)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolResetSession,
		Description: "Forget all phase progress for a session",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in sessionInput) (*mcp.CallToolResult, any, error) {
		done := s.metrics.track(ctx, ToolResetSession)
		s.registry.ResetSession(in.SessionID)
		done(nil)
		return jsonResult(map[string]any{"ok": true, "session_id": in.SessionID}, false)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolClarification,
		Description: "Run clarify, then confirm_intent when no questions remain",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in clarificationInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.Goal) == "" {
			return s.fail(ctx, ToolClarification, recovery.SchemaValidation(ToolClarification, map[string]string{"goal": "required"}))
		}
		rc := in.Context.requestContext()
		lang := in.Lang
		if lang == "" {
			lang = rc.Lang
		}
		return s.runFlow(ctx, ToolClarification, rc, func(ctx context.Context) (*orchestrator.Result, error) {
			return s.flows.Clarification(ctx, rc, in.Goal, lang)
		})
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolCodeReview,
		Description: "Run plan_review on an implementation plan",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in codeReviewInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.PlanMD) == "" {
			return s.fail(ctx, ToolCodeReview, recovery.SchemaValidation(ToolCodeReview, map[string]string{"plan_md": "required"}))
		}
		rc := in.Context.requestContext()
		return s.runFlow(ctx, ToolCodeReview, rc, func(ctx context.Context) (*orchestrator.Result, error) {
			return s.flows.CodeReview(ctx, rc, in.PlanMD, in.ReasoningMD)
		})
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolTextValidation,
		Description: "Run validate_claims, then consistency_check on a draft",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in textValidationInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.DraftMD) == "" {
			return s.fail(ctx, ToolTextValidation, recovery.SchemaValidation(ToolTextValidation, map[string]string{"draft_md": "required"}))
		}
		rc := in.Context.requestContext()
		return s.runFlow(ctx, ToolTextValidation, rc, func(ctx context.Context) (*orchestrator.Result, error) {
			return s.flows.TextValidation(ctx, rc, in.DraftMD, in.Topic, in.ReasoningMD)
		})
	})
}

func (s *Server) runFlow(ctx context.Context, tool string, rc eyes.RequestContext, run func(context.Context) (*orchestrator.Result, error)) (*mcp.CallToolResult, any, error) {
	if err := rc.Validate(); err != nil {
		return s.fail(ctx, tool, err)
	}
	ctx = logging.WithSessionID(ctx, rc.SessionID)

	done := s.metrics.track(ctx, tool)
	res, err := run(ctx)
	done(err)
	if err != nil {
		return s.fail(ctx, tool, err)
	}
	return jsonResult(res, !res.OK)
}

// fail turns recoverable errors, bare or inside a FlowError, into an error
// result carrying the agent view. Anything else is returned as a Go error and
// reported by the SDK.
func (s *Server) fail(ctx context.Context, tool string, err error) (*mcp.CallToolResult, any, error) {
	s.logger.Warn("tool call failed",
		zap.String("tool", tool),
		zap.String("session_id", logging.SessionIDFromContext(ctx)),
		zap.Error(err),
	)
	rec, ok := recovery.As(err)
	if !ok {
		return nil, nil, err
	}
	view := rec.AgentView()

	var flowErr *orchestrator.FlowError
	if errors.As(err, &flowErr) {
		return jsonResult(map[string]any{
			"flow":     flowErr.Flow,
			"stage":    flowErr.Stage,
			"error":    flowErr.Err.Error(),
			"recovery": view,
		}, true)
	}
	return jsonResult(view, true)
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, any, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		IsError: isError,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil, nil
}

// eyeDescription lists the eye's phase prerequisites and payload fields.
func eyeDescription(info eyes.Info) string {
	var b strings.Builder
	b.WriteString(info.Description)
	if len(info.RequiresPhases) > 0 {
		phases := make([]string, len(info.RequiresPhases))
		for i, p := range info.RequiresPhases {
			phases[i] = string(p)
		}
		fmt.Fprintf(&b, "\nRequires phases: %s.", strings.Join(phases, ", "))
	}
	if info.RequiresReasoning {
		b.WriteString("\nRequires reasoning_md.")
	}
	if fields := review.Contract(info.Name); len(fields) > 0 {
		b.WriteString("\nPayload:")
		for _, f := range fields {
			req := "optional"
			if f.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "\n- %s (%s, %s)", f.Name, f.Kind, req)
		}
	}
	return b.String()
}
