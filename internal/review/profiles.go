package review

import (
	"strings"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
)

// profile is the per-eye behavior of a reasoning-backed handler.
type profile struct {
	persona    string
	okCode     string
	failCode   string
	okNext     string
	failNext   string
	tagSuffix  bool
	tagDisplay string
}

// verdictFormat is appended to every persona.
const verdictFormat = `

Respond ONLY with a JSON object of the form:
{"ok": <bool>, "code": "<status code>", "md": "<markdown feedback>", "data": {<eye specific fields>}, "next_action": "<what the host should do next>"}
Use "ok": true only when the submission passes your review. Keep "md" concise and actionable.`

var profiles = map[string]profile{
	eyes.EyeClarify: {
		persona: `You are Sharingan, an ambiguity detector. Score how ambiguous the user's prompt is from 0 to 1.
When the score is at or above 0.35, list the clarifying questions the host must ask in data.questions (array of strings) and data.questions_md.
Otherwise return an empty data.questions array. Always set data.score.`,
		okCode:     "OK_NO_CLARIFICATION_NEEDED",
		failCode:   "E_NEEDS_CLARIFICATION",
		okNext:     "Proceed to helper/rewrite_prompt, then follow the code or text branch.",
		failNext:   "Ask these questions to the user and resubmit answers to helper/rewrite_prompt.",
		tagDisplay: "SHARINGAN",
	},
	eyes.EyeRewritePrompt: {
		persona: `You are the Prompt Helper. Rewrite the user's prompt and their clarification answers into a structured brief
with sections ROLE, TASK, CONTEXT, REQUIREMENTS and OUTPUT. Return it in data.prompt_md.`,
		okCode:     "OK_PROMPT_READY",
		failCode:   "E_NEEDS_CLARIFICATION",
		okNext:     "Send to jogan/confirm_intent for confirmation.",
		failNext:   "Collect the missing answers and resubmit.",
		tagDisplay: "PROMPT_HELPER",
	},
	eyes.EyeConfirmIntent: {
		persona: `You are Jogan, the intent confirmer. Check that the refined prompt states a role, a task, its context,
concrete requirements and an expected output, and that the token estimate is plausible. Reject briefs that are missing any of these.`,
		okCode:     "OK_INTENT_CONFIRMED",
		failCode:   "E_INTENT_UNCONFIRMED",
		okNext:     "Call rinnegan/plan_requirements and produce a plan per the schema.",
		failNext:   "Collect user confirmation or edits, then re-run jogan/confirm_intent.",
		tagDisplay: "JOGAN",
	},
	eyes.EyePlanReview: {
		persona: `You are Rinnegan, the plan reviewer. The plan must contain a high-level overview, a file impact table,
step-by-step implementation, error handling and edge cases, a test strategy, a rollback plan and documentation updates.
List every missing or weak section in data.issues_md.`,
		okCode:    "OK_PLAN_APPROVED",
		failCode:  "E_PLAN_INCOMPLETE",
		okNext:    "Proceed to mangekyo/review_scaffold.",
		failNext:  "Revise the plan and resubmit to rinnegan/plan_review.",
		tagSuffix: true,
	},
	eyes.EyeReviewScaffold: {
		persona: `You are Mangekyo, reviewing a file scaffold. Each entry names a path, an intent and a reason.
Reject scaffolds that touch files not justified by the approved plan or that omit files the plan requires.`,
		okCode:    "OK_SCAFFOLD_APPROVED",
		failCode:  "E_SCAFFOLD_ISSUES",
		okNext:    "Continue with mangekyo/review_impl.",
		failNext:  "Address issues and resubmit to mangekyo/review_scaffold.",
		tagSuffix: true,
	},
	eyes.EyeReviewImpl: {
		persona: `You are Mangekyo, reviewing implementation diffs for correctness, error handling, security and maintainability.
List blocking issues in data.issues_md.`,
		okCode:    "OK_IMPL_APPROVED",
		failCode:  "E_IMPL_ISSUES",
		okNext:    "Proceed to mangekyo/review_tests.",
		failNext:  "Resolve issues and resubmit to mangekyo/review_impl.",
		tagSuffix: true,
	},
	eyes.EyeReviewTests: {
		persona: `You are Mangekyo, reviewing tests. Check that the diffs cover the changed behavior and its edge cases
and that the coverage summary supports the claim.`,
		okCode:    "OK_TESTS_APPROVED",
		failCode:  "E_TESTS_INSUFFICIENT",
		okNext:    "Proceed to mangekyo/review_docs.",
		failNext:  "Improve tests and resubmit to mangekyo/review_tests.",
		tagSuffix: true,
	},
	eyes.EyeReviewDocs: {
		persona: `You are Mangekyo, reviewing documentation changes. User-visible behavior changes must be documented
and examples must match the implementation.`,
		okCode:    "OK_DOCS_APPROVED",
		failCode:  "E_DOCS_MISSING",
		okNext:    "Proceed to rinnegan/final_approval when other gates are complete.",
		failNext:  "Update docs and resubmit to mangekyo/review_docs.",
		tagSuffix: true,
	},
	eyes.EyeValidateClaims: {
		persona: `You are Tenseigan, the evidence validator. Identify every factual claim in the draft and check that each one
cites a source. List unsupported claims in data.issues_md.`,
		okCode:     "OK_TEXT_VALIDATED",
		failCode:   "E_CITATIONS_MISSING",
		okNext:     "Proceed to byakugan/consistency_check.",
		failNext:   "Attach sources for each claim and resubmit to tenseigan/validate_claims.",
		tagDisplay: "TENSEIGAN",
	},
	eyes.EyeConsistencyCheck: {
		persona: `You are Byakugan, the consistency checker. Find statements in the draft that contradict each other
or the stated topic. List contradictions in data.issues_md.`,
		okCode:     "OK_CONSISTENT",
		failCode:   "E_CONTRADICTION_DETECTED",
		okNext:     "Proceed to rinnegan/final_approval when other gates are complete.",
		failNext:   "Resolve contradictions and resubmit.",
		tagDisplay: "BYAKUGAN",
	},
}

// genericPersona serves eyes registered outside the canonical graph.
const genericPersona = `You are a reviewer in a multi-stage quality pipeline. Review the submission strictly and explain any problems.`

func profileFor(eye string) profile {
	if p, ok := profiles[eye]; ok {
		return p
	}
	return profile{
		persona:   genericPersona,
		okCode:    "OK_REVIEWED",
		failCode:  "E_REVIEW_REJECTED",
		tagSuffix: true,
	}
}

// Tag returns the response tag for eye, e.g. [EYE/SHARINGAN] or
// [EYE/MANGEKYO/REVIEW_IMPL].
func Tag(eye string) string {
	switch eye {
	case eyes.EyeNavigator:
		return "[EYE/OVERSEER]"
	case eyes.EyeFinalApproval:
		return "[EYE/RINNEGAN/FINAL]"
	}
	p := profileFor(eye)
	if p.tagDisplay != "" {
		return "[EYE/" + p.tagDisplay + "]"
	}
	ns, action, _ := strings.Cut(eye, "/")
	if !p.tagSuffix || action == "" {
		return "[EYE/" + strings.ToUpper(ns) + "]"
	}
	return "[EYE/" + strings.ToUpper(ns) + "/" + strings.ToUpper(action) + "]"
}
