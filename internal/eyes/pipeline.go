package eyes

import "fmt"

// Eye names of the canonical pipeline.
const (
	EyeNavigator        = "overseer/navigator"
	EyeClarify          = "sharingan/clarify"
	EyeRewritePrompt    = "helper/rewrite_prompt"
	EyeConfirmIntent    = "jogan/confirm_intent"
	EyePlanRequirements = "rinnegan/plan_requirements"
	EyePlanReview       = "rinnegan/plan_review"
	EyeReviewScaffold   = "mangekyo/review_scaffold"
	EyeReviewImpl       = "mangekyo/review_impl"
	EyeReviewTests      = "mangekyo/review_tests"
	EyeReviewDocs       = "mangekyo/review_docs"
	EyeValidateClaims   = "tenseigan/validate_claims"
	EyeConsistencyCheck = "byakugan/consistency_check"
	EyeFinalApproval    = "rinnegan/final_approval"
)

// Data keys exchanged between eyes. Advisory only; the registry does not
// enforce them.
const (
	KeySummaryMD       = "summary_md"
	KeyInstructionsMD  = "instructions_md"
	KeySchemaMD        = "schema_md"
	KeyContractJSON    = "contract_json"
	KeyScore           = "score"
	KeyQuestionsMD     = "questions_md"
	KeyQuestions       = "questions"
	KeyPromptMD        = "prompt_md"
	KeyRefinedPromptMD = "refined_prompt_md"
	KeyEstimatedTokens = "estimated_tokens"
	KeyPlanMD          = "submitted_plan_md"
	KeyDraftMD         = "draft_md"
	KeyTopic           = "topic"
	KeyIssuesMD        = "issues_md"
	KeyVerdict         = "verdict"
)

// PipelineCapabilities returns the canonical eye graph without handlers.
func PipelineCapabilities() []Capability {
	return []Capability{
		{
			Name:             EyeNavigator,
			Description:      "Entry point: explains the pipeline and the contract every eye enforces",
			Phase:            PhaseEntry,
			ProvidesPhases:   []Phase{PhaseEntry},
			ProvidesDataKeys: []string{KeySummaryMD, KeyInstructionsMD, KeySchemaMD, KeyContractJSON},
			IsEntryPoint:     true,
		},
		{
			Name:             EyeClarify,
			Description:      "Scores prompt ambiguity and asks clarifying questions",
			Phase:            PhaseClarification,
			RequiresPhases:   []Phase{PhaseEntry},
			ProvidesPhases:   []Phase{PhaseClarification},
			ProvidesDataKeys: []string{KeyScore, KeyQuestionsMD},
		},
		{
			Name:             EyeRewritePrompt,
			Description:      "Rewrites the prompt into a structured brief using clarification answers",
			Phase:            PhaseRefinement,
			RequiresPhases:   []Phase{PhaseClarification},
			ProvidesPhases:   []Phase{PhaseRefinement},
			RequiresDataKeys: []string{KeyQuestionsMD},
			ProvidesDataKeys: []string{KeyPromptMD},
		},
		{
			Name:             EyeConfirmIntent,
			Description:      "Confirms the refined prompt captures the user's intent",
			Phase:            PhaseConfirmation,
			RequiresPhases:   []Phase{PhaseRefinement},
			ProvidesPhases:   []Phase{PhaseConfirmation},
			RequiresDataKeys: []string{KeyPromptMD},
		},
		{
			Name:           EyePlanRequirements,
			Description:    "Lists what a plan must contain before review",
			Phase:          PhasePlanning,
			RequiresPhases: []Phase{PhaseConfirmation},
			ProvidesPhases: []Phase{PhasePlanning},
		},
		{
			Name:              EyePlanReview,
			Description:       "Reviews a submitted implementation plan",
			Phase:             PhasePlanning,
			RequiresPhases:    []Phase{PhaseConfirmation},
			ProvidesPhases:    []Phase{PhasePlanning},
			RequiresDataKeys:  []string{KeyPlanMD},
			RequiresReasoning: true,
		},
		{
			Name:              EyeReviewScaffold,
			Description:       "Reviews the file scaffold against the approved plan",
			Phase:             PhaseScaffolding,
			RequiresPhases:    []Phase{PhasePlanning},
			ProvidesPhases:    []Phase{PhaseScaffolding},
			RequiresReasoning: true,
		},
		{
			Name:              EyeReviewImpl,
			Description:       "Reviews implementation diffs",
			Phase:             PhaseImplementation,
			RequiresPhases:    []Phase{PhaseScaffolding},
			ProvidesPhases:    []Phase{PhaseImplementation},
			RequiresReasoning: true,
		},
		{
			Name:              EyeReviewTests,
			Description:       "Reviews tests and coverage",
			Phase:             PhaseTesting,
			RequiresPhases:    []Phase{PhaseImplementation},
			ProvidesPhases:    []Phase{PhaseTesting},
			RequiresReasoning: true,
			CanRunParallel:    true,
		},
		{
			Name:              EyeReviewDocs,
			Description:       "Reviews documentation changes",
			Phase:             PhaseDocumentation,
			RequiresPhases:    []Phase{PhaseImplementation},
			ProvidesPhases:    []Phase{PhaseDocumentation},
			RequiresReasoning: true,
			CanRunParallel:    true,
		},
		{
			Name:              EyeValidateClaims,
			Description:       "Checks factual claims in a text draft for supporting evidence",
			Phase:             PhaseValidation,
			RequiresPhases:    []Phase{PhaseConfirmation},
			ProvidesPhases:    []Phase{PhaseValidation},
			RequiresDataKeys:  []string{KeyDraftMD},
			RequiresReasoning: true,
		},
		{
			Name:              EyeConsistencyCheck,
			Description:       "Checks a text draft for internal contradictions",
			Phase:             PhaseConsistency,
			RequiresPhases:    []Phase{PhaseValidation},
			ProvidesPhases:    []Phase{PhaseConsistency},
			RequiresDataKeys:  []string{KeyTopic, KeyDraftMD},
			RequiresReasoning: true,
		},
		{
			Name:           EyeFinalApproval,
			Description:    "Final sign-off once the review path is complete",
			Phase:          PhaseApproval,
			RequiresPhases: []Phase{PhasePlanning},
			ProvidesPhases: []Phase{PhaseApproval},
		},
	}
}

// HandlerFactory builds the handler for one capability.
type HandlerFactory func(c Capability) (Handler, error)

// RegisterPipeline installs the canonical graph on r, asking factory for each
// handler.
func RegisterPipeline(r *Registry, factory HandlerFactory) error {
	for _, c := range PipelineCapabilities() {
		h, err := factory(c)
		if err != nil {
			return fmt.Errorf("build handler for %s: %w", c.Name, err)
		}
		c.Handler = h
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
