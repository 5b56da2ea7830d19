// Package eyes is the capability registry for the review pipeline.
//
// Each eye declares the phases it requires and provides. The registry tracks
// completed phases per session and refuses to invoke an eye until its
// prerequisites are met.
package eyes

import (
	"context"
	"errors"
	"strings"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/sanitize"
)

var (
	ErrInvalidName  = errors.New("eye name must be <namespace>/<action>")
	ErrNilHandler   = errors.New("eye handler is required")
	ErrUnknownPhase = errors.New("unknown phase")
)

// Supported response languages.
const (
	LangAuto = "auto"
	LangEN   = "en"
	LangAR   = "ar"
)

// RequestContext identifies the caller and session of a request.
type RequestContext struct {
	SessionID    string            `json:"session_id"`
	UserID       string            `json:"user_id,omitempty"`
	Tenant       string            `json:"tenant,omitempty"`
	Lang         string            `json:"lang"`
	BudgetTokens int               `json:"budget_tokens"`
	RequestID    string            `json:"request_id,omitempty"`
	Settings     map[string]string `json:"settings,omitempty"`
}

// Normalized returns a copy with Lang defaulted to auto.
func (c RequestContext) Normalized() RequestContext {
	c.SessionID = strings.TrimSpace(c.SessionID)
	if c.Lang == "" {
		c.Lang = LangAuto
	}
	return c
}

// Validate checks the fields transports must supply. Malformed session and
// tenant identifiers are reported alongside missing ones. Invoke itself does not
// call it.
func (c RequestContext) Validate() error {
	var missing []string
	if sanitize.SessionID(strings.TrimSpace(c.SessionID)) != nil {
		missing = append(missing, "session_id")
	}
	switch c.Lang {
	case LangAuto, LangEN, LangAR:
	default:
		missing = append(missing, "lang")
	}
	if c.BudgetTokens < 0 {
		missing = append(missing, "budget_tokens")
	}
	if sanitize.TenantID(c.Tenant) != nil {
		missing = append(missing, "tenant")
	}
	if len(missing) > 0 {
		return recovery.MissingContext(missing...)
	}
	return nil
}

// Request is the envelope handed to a handler.
type Request struct {
	Context     RequestContext `json:"context"`
	Payload     map[string]any `json:"payload"`
	ReasoningMD string         `json:"reasoning_md,omitempty"`
}

// Response is the envelope a handler returns.
type Response struct {
	Tag        string         `json:"tag,omitempty"`
	OK         bool           `json:"ok"`
	Code       string         `json:"code"`
	MD         string         `json:"md"`
	Data       map[string]any `json:"data,omitempty"`
	NextAction string         `json:"next_action,omitempty"`
}

// Handler performs an eye's work.
type Handler func(ctx context.Context, req Request) (Response, error)

// Capability describes one eye.
type Capability struct {
	Name              string
	Description       string
	Handler           Handler
	Phase             Phase
	RequiresPhases    []Phase
	ProvidesPhases    []Phase
	RequiresDataKeys  []string
	ProvidesDataKeys  []string
	RequiresReasoning bool
	IsEntryPoint      bool
	CanRunParallel    bool
}

// Info is the handler-free view of a capability.
type Info struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Phase             Phase    `json:"phase"`
	RequiresPhases    []Phase  `json:"requires_phases"`
	ProvidesPhases    []Phase  `json:"provides_phases"`
	RequiresDataKeys  []string `json:"requires_data_keys,omitempty"`
	ProvidesDataKeys  []string `json:"provides_data_keys,omitempty"`
	RequiresReasoning bool     `json:"requires_reasoning"`
	IsEntryPoint      bool     `json:"is_entry_point"`
	CanRunParallel    bool     `json:"can_run_parallel"`
}

// Info returns the handler-free view of c.
func (c Capability) Info() Info {
	return Info{
		Name:              c.Name,
		Description:       c.Description,
		Phase:             c.Phase,
		RequiresPhases:    append([]Phase{}, c.RequiresPhases...),
		ProvidesPhases:    append([]Phase{}, c.ProvidesPhases...),
		RequiresDataKeys:  append([]string(nil), c.RequiresDataKeys...),
		ProvidesDataKeys:  append([]string(nil), c.ProvidesDataKeys...),
		RequiresReasoning: c.RequiresReasoning,
		IsEntryPoint:      c.IsEntryPoint,
		CanRunParallel:    c.CanRunParallel,
	}
}

func (c Capability) clone() Capability {
	c.RequiresPhases = append([]Phase(nil), c.RequiresPhases...)
	c.ProvidesPhases = append([]Phase(nil), c.ProvidesPhases...)
	c.RequiresDataKeys = append([]string(nil), c.RequiresDataKeys...)
	c.ProvidesDataKeys = append([]string(nil), c.ProvidesDataKeys...)
	return c
}

// Namespace returns the part of name before the slash.
func Namespace(name string) string {
	ns, _, _ := strings.Cut(name, "/")
	return ns
}
