package orchestrator

import (
	"context"
	"fmt"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// Stage names a step inside a flow. Stage names double as Result.Results keys
// and Result.PhaseFailed values.
type Stage string

const (
	StageClarify          Stage = "clarify"
	StageConfirmIntent    Stage = "confirm_intent"
	StagePlanReview       Stage = "plan_review"
	StageValidateClaims   Stage = "validate_claims"
	StageConsistencyCheck Stage = "consistency_check"
)

// Status is the orchestration status of a completed flow.
type Status string

const (
	StatusAwaitingInput   Status = "awaiting_user_input"
	StatusIntentConfirmed Status = "intent_confirmed"
	StatusPlanApproved    Status = "plan_approved"
	StatusTextValidated   Status = "text_validated"
)

// StageStatus is the progress of a single stage.
type StageStatus string

const (
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageProgress reports progress during a flow.
type StageProgress struct {
	Flow    string      `json:"flow"`
	Stage   Stage       `json:"stage"`
	Status  StageStatus `json:"status"`
	Message string      `json:"message"`
}

// ProgressCallback receives progress updates during a flow.
type ProgressCallback func(progress StageProgress)

// Invoker is the registry surface flows depend on. *eyes.Registry implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, rc eyes.RequestContext, payload map[string]any, reasoningMD string) (eyes.Response, error)
	MarkPhaseComplete(sessionID string, phases ...eyes.Phase)
	CompletedPhases(sessionID string) []eyes.Phase
	ListAvailable(sessionID string) []string
}

// Result is the outcome of a flow.
type Result struct {
	OK          bool                    `json:"ok"`
	Status      Status                  `json:"orchestration_status,omitempty"`
	PhaseFailed Stage                   `json:"phase_failed,omitempty"`
	Message     string                  `json:"message,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Recovery    *recovery.AgentView     `json:"recovery,omitempty"`
	Questions   []string                `json:"questions,omitempty"`
	NextStep    string                  `json:"next_step,omitempty"`
	NextPhase   eyes.Phase              `json:"next_phase,omitempty"`
	SessionID   string                  `json:"session_id,omitempty"`
	Results     map[Stage]eyes.Response `json:"results"`
}

// FlowError reports a flow that could not produce a Result.
type FlowError struct {
	Flow  string
	Stage Stage
	Err   error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s flow failed at %s: %v", e.Flow, e.Stage, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// PipelineStatus summarizes a session's progress through the pipeline.
type PipelineStatus struct {
	SessionID        string       `json:"session_id"`
	CompletedPhases  []eyes.Phase `json:"completed_phases"`
	AvailableEyes    []string     `json:"available_eyes"`
	InCodePath       bool         `json:"in_code_path"`
	InTextPath       bool         `json:"in_text_path"`
	ReadyForApproval bool         `json:"ready_for_approval"`
}
