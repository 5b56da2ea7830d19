// Package recovery defines the recoverable error taxonomy returned to agents.
//
// Every failure the pipeline surfaces to a caller carries a stable code, an
// ordered list of recovery steps, the inputs the caller must supply on retry,
// and retry hints. Transports map codes to status classes with StatusClassOf.
package recovery

// Code identifies a recoverable failure kind.
type Code string

const (
	CodeReasoningMissing Code = "E_REASONING_MISSING"
	CodeBudgetExceeded   Code = "E_BUDGET_EXCEEDED"
	CodePipelineOrder    Code = "E_PIPELINE_OUT_OF_ORDER"
	CodeBadPayload       Code = "E_BAD_PAYLOAD_SCHEMA"
	CodeInvalidContext   Code = "E_INVALID_CONTEXT"
	CodeRateLimit        Code = "E_RATE_LIMIT"
	CodeBackendTimeout   Code = "E_LLM_TIMEOUT"
	CodeCircuitOpen      Code = "E_LLM_CIRCUIT_OPEN"
	CodeUnknownEye       Code = "E_UNKNOWN_EYE"
)

// AllCodes returns every known code in catalog order.
func AllCodes() []Code {
	return []Code{
		CodeReasoningMissing,
		CodeBudgetExceeded,
		CodePipelineOrder,
		CodeBadPayload,
		CodeInvalidContext,
		CodeRateLimit,
		CodeBackendTimeout,
		CodeCircuitOpen,
		CodeUnknownEye,
	}
}

// StatusClass is the transport-neutral category a code maps to.
type StatusClass string

const (
	StatusBadRequest         StatusClass = "bad_request"
	StatusConflict           StatusClass = "conflict"
	StatusTooManyRequests    StatusClass = "too_many_requests"
	StatusServiceUnavailable StatusClass = "service_unavailable"
)

// StatusClassOf maps a code to its status class. Unmapped codes are bad_request.
func StatusClassOf(code Code) StatusClass {
	switch code {
	case CodeRateLimit:
		return StatusTooManyRequests
	case CodeBackendTimeout, CodeCircuitOpen:
		return StatusServiceUnavailable
	case CodeBudgetExceeded, CodePipelineOrder:
		return StatusConflict
	default:
		return StatusBadRequest
	}
}

// entry is the catalog record for a code.
type entry struct {
	steps         []string
	autoRetryable bool
	retryAfter    int
}

var catalog = map[Code]entry{
	CodeReasoningMissing: {
		steps: []string{
			"Add a reasoning_md field to the request",
			"Explain your approach and the key decisions behind it",
			"Retry the same eye with the reasoning attached",
		},
	},
	CodeBudgetExceeded: {
		steps: []string{
			"Reduce the size of the submitted content",
			"Split the work into smaller requests",
			"Or raise context.budget_tokens if the session allows it",
		},
	},
	CodePipelineOrder: {
		steps: []string{
			"Invoke the expected eye first",
			"Wait for it to return ok=true",
			"Then retry this eye",
		},
	},
	CodeBadPayload: {
		steps: []string{
			"Check the payload against the eye's schema",
			"Add missing fields and fix invalid values",
			"Retry with the corrected payload",
		},
	},
	CodeInvalidContext: {
		steps: []string{
			"Supply every required context field",
			"Retry with the completed context",
		},
	},
	CodeRateLimit: {
		steps:         []string{"Wait for the retry window to pass, then retry"},
		autoRetryable: true,
		retryAfter:    60,
	},
	CodeBackendTimeout: {
		steps: []string{
			"Retry the request; the backend may be slow",
			"Reduce the size of the input if timeouts persist",
		},
		autoRetryable: true,
		retryAfter:    5,
	},
	CodeCircuitOpen: {
		steps: []string{
			"The reasoning backend is failing; wait for the circuit to close",
			"Retry after the indicated delay",
		},
		autoRetryable: true,
		retryAfter:    60,
	},
	CodeUnknownEye: {
		steps: []string{
			"List the available eyes for this session",
			"Retry with a registered eye name",
		},
	},
}

func lookup(code Code) entry {
	if e, ok := catalog[code]; ok {
		return e
	}
	return entry{steps: []string{"Inspect the error message and correct the request before retrying"}}
}

// DefaultSteps returns the catalog recovery steps for code. Never empty.
func DefaultSteps(code Code) []string {
	return append([]string(nil), lookup(code).steps...)
}

// AutoRetryable reports whether callers may retry code without changing input.
func AutoRetryable(code Code) bool {
	return lookup(code).autoRetryable
}
