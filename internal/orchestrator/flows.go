package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

const (
	flowClarification  = "clarification"
	flowCodeReview     = "code_review"
	flowTextValidation = "text_validation"

	// MinEstimatedTokens is the floor of EstimateTokens.
	MinEstimatedTokens = 1000
	tokensPerWord      = 150
)

// Option configures Flows.
type Option func(*Flows)

// WithLogger sets the flow logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flows) {
		if l != nil {
			f.logger = l
		}
	}
}

// Flows runs the canonical multi-eye sequences against a registry.
type Flows struct {
	registry Invoker
	logger   *zap.Logger
	progress ProgressCallback
}

// New creates Flows over registry.
func New(registry Invoker, opts ...Option) *Flows {
	f := &Flows{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnProgress sets the progress callback. Not safe to call concurrently with a running flow.
func (f *Flows) OnProgress(callback ProgressCallback) {
	f.progress = callback
}

// Clarification runs clarify and, when no questions come back, synthesizes a
// brief from goal and sends it to confirm_intent.
//
// A failing clarify step yields a *FlowError. When clarify asks questions the
// flow stops with StatusAwaitingInput. The synthesized brief stands in for the
// refinement step, so the refinement phase is marked complete before
// confirm_intent runs.
func (f *Flows) Clarification(ctx context.Context, rc eyes.RequestContext, goal, lang string) (*Result, error) {
	res := newResult(rc)
	log := f.logger.With(zap.String("flow", flowClarification), zap.String("session_id", rc.SessionID))
	log.Info("starting clarification flow")

	clarify, err := f.run(ctx, flowClarification, StageClarify, eyes.EyeClarify, rc, map[string]any{
		"prompt": goal,
		"lang":   lang,
	}, "")
	if err != nil {
		log.Error("clarify step failed", zap.Error(err))
		return nil, &FlowError{Flow: flowClarification, Stage: StageClarify, Err: err}
	}
	res.Results[StageClarify] = clarify
	if !clarify.OK {
		log.Error("clarify step returned not ok", zap.String("code", clarify.Code))
		return nil, &FlowError{
			Flow:  flowClarification,
			Stage: StageClarify,
			Err:   fmt.Errorf("clarify returned %s: %s", clarify.Code, clarify.MD),
		}
	}

	questions := questionsFrom(clarify.Data)
	log.Info("clarify step completed", zap.Int("questions", len(questions)))

	if len(questions) > 0 {
		res.OK = true
		res.Status = StatusAwaitingInput
		res.Message = "Clarification questions generated. Provide answers to proceed."
		res.Questions = questions
		res.NextStep = fmt.Sprintf("Invoke %s with clarification_answers_md", eyes.EyeRewritePrompt)
		return res, nil
	}

	brief := BuildBrief(goal)
	estimated := EstimateTokens(goal)
	f.registry.MarkPhaseComplete(rc.SessionID, eyes.PhaseRefinement)

	confirm, err := f.run(ctx, flowClarification, StageConfirmIntent, eyes.EyeConfirmIntent, rc, map[string]any{
		eyes.KeyRefinedPromptMD: brief,
		eyes.KeyEstimatedTokens: estimated,
	}, "")
	if err != nil {
		log.Error("confirm_intent step failed", zap.Error(err))
		return nil, &FlowError{Flow: flowClarification, Stage: StageConfirmIntent, Err: err}
	}
	res.Results[StageConfirmIntent] = confirm
	if !confirm.OK {
		res.PhaseFailed = StageConfirmIntent
		res.Message = "Intent confirmation failed. Refine the prompt before proceeding."
		return res, nil
	}

	res.OK = true
	res.Status = StatusIntentConfirmed
	res.Message = "Intent confirmed. Proceed to planning."
	res.NextPhase = eyes.PhasePlanning
	log.Info("clarification flow completed")
	return res, nil
}

// CodeReview runs plan_review. Scaffold and later reviews are left to the caller.
func (f *Flows) CodeReview(ctx context.Context, rc eyes.RequestContext, planMD, reasoningMD string) (*Result, error) {
	res := newResult(rc)
	log := f.logger.With(zap.String("flow", flowCodeReview), zap.String("session_id", rc.SessionID))
	log.Info("starting code review flow")

	ok := f.step(ctx, res, flowCodeReview, StagePlanReview, eyes.EyePlanReview, rc, map[string]any{
		eyes.KeyPlanMD: planMD,
	}, reasoningMD, "Plan review failed. Address feedback before proceeding.")
	if !ok {
		return res, nil
	}

	res.OK = true
	res.Status = StatusPlanApproved
	res.Message = fmt.Sprintf("Plan approved. Submit scaffold via %s to continue.", eyes.EyeReviewScaffold)
	res.NextPhase = eyes.PhaseScaffolding
	log.Info("plan approved, awaiting scaffold")
	return res, nil
}

// TextValidation runs validate_claims then consistency_check, stopping at the
// first failure.
func (f *Flows) TextValidation(ctx context.Context, rc eyes.RequestContext, draftMD, topic, reasoningMD string) (*Result, error) {
	res := newResult(rc)
	log := f.logger.With(zap.String("flow", flowTextValidation), zap.String("session_id", rc.SessionID))
	log.Info("starting text validation flow")

	if !f.step(ctx, res, flowTextValidation, StageValidateClaims, eyes.EyeValidateClaims, rc, map[string]any{
		eyes.KeyDraftMD: draftMD,
	}, reasoningMD, "Claim validation failed. Address issues before proceeding.") {
		return res, nil
	}

	if !f.step(ctx, res, flowTextValidation, StageConsistencyCheck, eyes.EyeConsistencyCheck, rc, map[string]any{
		eyes.KeyTopic:   topic,
		eyes.KeyDraftMD: draftMD,
	}, reasoningMD, "Consistency check failed. Resolve inconsistencies.") {
		return res, nil
	}

	res.OK = true
	res.Status = StatusTextValidated
	res.Message = fmt.Sprintf("Text pipeline complete. Proceed to %s.", eyes.EyeFinalApproval)
	log.Info("text validation flow completed")
	return res, nil
}

// PipelineStatus reports a session's progress.
func (f *Flows) PipelineStatus(sessionID string) PipelineStatus {
	completed := f.registry.CompletedPhases(sessionID)
	done := eyes.NewPhaseSet(completed...)
	if completed == nil {
		completed = []eyes.Phase{}
	}
	return PipelineStatus{
		SessionID:        sessionID,
		CompletedPhases:  completed,
		AvailableEyes:    f.registry.ListAvailable(sessionID),
		InCodePath:       done.Has(eyes.PhaseScaffolding) || done.Has(eyes.PhaseImplementation),
		InTextPath:       done.Has(eyes.PhaseValidation),
		ReadyForApproval: done.Has(eyes.PhaseDocumentation) || done.Has(eyes.PhaseConsistency),
	}
}

// step runs one short-circuiting stage, filling res on failure. It reports
// whether the flow may continue.
func (f *Flows) step(ctx context.Context, res *Result, flow string, stage Stage, eye string, rc eyes.RequestContext, payload map[string]any, reasoningMD, failMsg string) bool {
	resp, err := f.run(ctx, flow, stage, eye, rc, payload, reasoningMD)
	if err != nil {
		res.PhaseFailed = stage
		res.Error = err.Error()
		if rec, ok := recovery.As(err); ok {
			view := rec.AgentView()
			res.Recovery = &view
		}
		f.logger.Warn("flow stage failed",
			zap.String("flow", flow),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return false
	}
	res.Results[stage] = resp
	if !resp.OK {
		res.PhaseFailed = stage
		res.Message = failMsg
		return false
	}
	return true
}

// run invokes one eye, reporting progress around it.
func (f *Flows) run(ctx context.Context, flow string, stage Stage, eye string, rc eyes.RequestContext, payload map[string]any, reasoningMD string) (eyes.Response, error) {
	f.report(StageProgress{Flow: flow, Stage: stage, Status: StageStarted, Message: "invoking " + eye})
	resp, err := f.registry.Invoke(ctx, eye, rc, payload, reasoningMD)
	switch {
	case err != nil:
		f.report(StageProgress{Flow: flow, Stage: stage, Status: StageFailed, Message: err.Error()})
	case !resp.OK:
		f.report(StageProgress{Flow: flow, Stage: stage, Status: StageFailed, Message: resp.Code})
	default:
		f.report(StageProgress{Flow: flow, Stage: stage, Status: StageCompleted, Message: resp.Code})
	}
	return resp, err
}

func (f *Flows) report(p StageProgress) {
	if f.progress != nil {
		f.progress(p)
	}
}

func newResult(rc eyes.RequestContext) *Result {
	return &Result{
		SessionID: rc.SessionID,
		Results:   make(map[Stage]eyes.Response),
	}
}

// questionsFrom reads data["questions"], accepting strings or objects with a
// "question" or "text" field.
func questionsFrom(data map[string]any) []string {
	raw, ok := data[eyes.KeyQuestions]
	if !ok || raw == nil {
		return nil
	}
	switch qs := raw.(type) {
	case []string:
		return nonBlank(qs)
	case []any:
		out := make([]string, 0, len(qs))
		for _, q := range qs {
			switch v := q.(type) {
			case string:
				out = append(out, v)
			case map[string]any:
				if s, ok := v["question"].(string); ok {
					out = append(out, s)
				} else if s, ok := v["text"].(string); ok {
					out = append(out, s)
				}
			}
		}
		return nonBlank(out)
	default:
		return nil
	}
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
