package recovery

import (
	"fmt"
	"strings"
)

// DefaultEntryEye is suggested when a pipeline-order failure has no better hint.
const DefaultEntryEye = "overseer/navigator"

// MissingReasoning reports that eye requires reasoning_md and none was given.
func MissingReasoning(eye string) *Error {
	return New(CodeReasoningMissing,
		fmt.Sprintf("%s requires reasoning_md explaining your approach", eye),
		WithRequiredInput("reasoning_md", "Markdown explaining the approach and key decisions"),
		WithContext("eye", eye),
	)
}

// BudgetExceeded reports a token request larger than the session allows.
func BudgetExceeded(requested, available int, sessionID string) *Error {
	return New(CodeBudgetExceeded,
		fmt.Sprintf("requested %d tokens but only %d available", requested, available),
		WithContext("requested", requested),
		WithContext("available", available),
		WithContext("session_id", sessionID),
	)
}

// PipelineOrder reports an eye invoked before its prerequisites completed.
// expected names the eyes that would unblock it; empty means the entry eye.
func PipelineOrder(attempted string, expected []string, sessionID string, opts ...Option) *Error {
	if len(expected) == 0 {
		expected = []string{DefaultEntryEye}
	}
	next := strings.Join(expected, " or ")
	base := []Option{
		WithSteps(
			fmt.Sprintf("Invoke %s first", next),
			"Wait for it to return ok=true",
			fmt.Sprintf("Then retry %s", attempted),
		),
		WithContext("attempted", attempted),
		WithContext("expected_next", append([]string(nil), expected...)),
		WithContext("session_id", sessionID),
	}
	return New(CodePipelineOrder,
		fmt.Sprintf("cannot invoke %s yet; expected %s first", attempted, next),
		append(base, opts...)...,
	)
}

// SchemaValidation reports payload fields that failed validation.
// fieldErrors maps field name to problem.
func SchemaValidation(eye string, fieldErrors map[string]string) *Error {
	opts := []Option{WithContext("eye", eye)}
	if len(fieldErrors) > 0 {
		opts = append(opts, WithContext("field_errors", fieldErrors))
		for field, problem := range fieldErrors {
			opts = append(opts, WithRequiredInput("payload."+field, problem))
		}
	}
	return New(CodeBadPayload, fmt.Sprintf("payload for %s failed validation", eye), opts...)
}

// MissingContext reports required request-context fields that were absent.
func MissingContext(fields ...string) *Error {
	opts := make([]Option, 0, len(fields)+1)
	for _, f := range fields {
		opts = append(opts, WithRequiredInput("context."+f, contextFieldHint(f)))
	}
	opts = append(opts, WithContext("missing_fields", append([]string(nil), fields...)))
	return New(CodeInvalidContext,
		fmt.Sprintf("request context is missing or invalid: %s", strings.Join(fields, ", ")),
		opts...,
	)
}

func contextFieldHint(field string) string {
	switch field {
	case "session_id":
		return "Stable identifier for the review session (letters, digits, _ . : -)"
	case "lang":
		return "Response language: auto, en, or ar"
	case "budget_tokens":
		return "Non-negative token budget for the request"
	case "tenant":
		return "Lowercase alphanumeric tenant id with underscores"
	default:
		return "Required context value"
	}
}

// RateLimit reports a client-side or upstream rate limit.
func RateLimit(retryAfter int) *Error {
	if retryAfter <= 0 {
		retryAfter = lookup(CodeRateLimit).retryAfter
	}
	return New(CodeRateLimit,
		fmt.Sprintf("rate limit exceeded; retry after %d seconds", retryAfter),
		WithSteps(fmt.Sprintf("Wait %d seconds, then retry", retryAfter)),
		WithRetryAfter(retryAfter),
	)
}

// BackendTimeout reports a protected call that exceeded timeoutSeconds.
func BackendTimeout(timeoutSeconds int) *Error {
	return New(CodeBackendTimeout,
		fmt.Sprintf("reasoning backend did not respond within %d seconds", timeoutSeconds),
		WithContext("timeout_seconds", timeoutSeconds),
	)
}

// CircuitOpen reports a call rejected because service's breaker is open.
func CircuitOpen(service string, retryAfter int) *Error {
	return New(CodeCircuitOpen,
		fmt.Sprintf("circuit for %s is open; retry after %d seconds", service, retryAfter),
		WithRetryAfter(retryAfter),
		WithContext("service", service),
	)
}

// UnknownCapability reports an eye name that is not registered.
func UnknownCapability(name string) *Error {
	return New(CodeUnknownEye,
		fmt.Sprintf("unknown eye %q", name),
		WithContext("eye", name),
	)
}
