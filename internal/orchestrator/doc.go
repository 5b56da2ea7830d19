// Package orchestrator composes eye invocations into fixed multi-step flows.
//
// # Flows
//
// Three flows are provided, each a pure consumer of the eye registry:
//
//	Clarification:   sharingan/clarify → (no questions) → jogan/confirm_intent
//	Code review:     rinnegan/plan_review
//	Text validation: tenseigan/validate_claims → byakugan/consistency_check
//
// Flows short-circuit on the first failing stage and report it in
// Result.PhaseFailed together with the raw responses gathered so far. The
// later code-review stages (scaffold, implementation, tests, docs) depend on
// artifacts produced outside this service and are invoked individually by the
// caller.
//
// Flows hold no continuation state. When clarification produces questions the
// flow returns StatusAwaitingInput and the caller re-enters through
// helper/rewrite_prompt with the answers.
//
// # Progress
//
// OnProgress registers a callback that receives a StageProgress before and
// after each stage, which transports use for streaming status.
//
// # Usage
//
//	flows := orchestrator.New(registry, orchestrator.WithLogger(logger))
//	res, err := flows.Clarification(ctx, rc, "Build an API", "en")
//	if err != nil {
//	    var fe *orchestrator.FlowError
//	    if errors.As(err, &fe) { ... fe.Stage ... }
//	}
package orchestrator
