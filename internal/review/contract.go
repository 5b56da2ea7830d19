package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// FieldKind is the JSON type a payload field must have.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindArray  FieldKind = "array"
)

// Field is one payload field of an eye's contract.
type Field struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
}

// Payload field names.
const (
	FieldGoal                   = "goal"
	FieldPrompt                 = "prompt"
	FieldLang                   = "lang"
	FieldUserPrompt             = "user_prompt"
	FieldClarificationAnswersMD = "clarification_answers_md"
	FieldFiles                  = "files"
	FieldDiffsMD                = "diffs_md"
	FieldCoverageSummaryMD      = "coverage_summary_md"
	FieldPlanApproved           = "plan_approved"
	FieldScaffoldApproved       = "scaffold_approved"
	FieldImplApproved           = "impl_approved"
	FieldTestsApproved          = "tests_approved"
	FieldDocsApproved           = "docs_approved"
	FieldTextValidated          = "text_validated"
	FieldConsistent             = "consistent"
)

var contracts = map[string][]Field{
	eyes.EyeNavigator: {
		{Name: FieldGoal, Kind: KindString},
	},
	eyes.EyeClarify: {
		{Name: FieldPrompt, Kind: KindString, Required: true},
		{Name: FieldLang, Kind: KindString},
	},
	eyes.EyeRewritePrompt: {
		{Name: FieldUserPrompt, Kind: KindString, Required: true},
		{Name: FieldClarificationAnswersMD, Kind: KindString, Required: true},
	},
	eyes.EyeConfirmIntent: {
		{Name: eyes.KeyRefinedPromptMD, Kind: KindString, Required: true},
		{Name: eyes.KeyEstimatedTokens, Kind: KindNumber, Required: true},
	},
	eyes.EyePlanRequirements: {},
	eyes.EyePlanReview: {
		{Name: eyes.KeyPlanMD, Kind: KindString, Required: true},
	},
	eyes.EyeReviewScaffold: {
		{Name: FieldFiles, Kind: KindArray, Required: true},
	},
	eyes.EyeReviewImpl: {
		{Name: FieldDiffsMD, Kind: KindString, Required: true},
	},
	eyes.EyeReviewTests: {
		{Name: FieldDiffsMD, Kind: KindString, Required: true},
		{Name: FieldCoverageSummaryMD, Kind: KindString, Required: true},
	},
	eyes.EyeReviewDocs: {
		{Name: FieldDiffsMD, Kind: KindString, Required: true},
	},
	eyes.EyeValidateClaims: {
		{Name: eyes.KeyDraftMD, Kind: KindString, Required: true},
	},
	eyes.EyeConsistencyCheck: {
		{Name: eyes.KeyTopic, Kind: KindString, Required: true},
		{Name: eyes.KeyDraftMD, Kind: KindString, Required: true},
	},
	eyes.EyeFinalApproval: {
		{Name: FieldPlanApproved, Kind: KindBool, Required: true},
		{Name: FieldScaffoldApproved, Kind: KindBool},
		{Name: FieldImplApproved, Kind: KindBool},
		{Name: FieldTestsApproved, Kind: KindBool},
		{Name: FieldDocsApproved, Kind: KindBool},
		{Name: FieldTextValidated, Kind: KindBool},
		{Name: FieldConsistent, Kind: KindBool},
	},
}

// Contract returns the payload fields eye accepts. Unknown eyes have no
// contract and accept any payload.
func Contract(eye string) []Field {
	return append([]Field(nil), contracts[eye]...)
}

// Contracts returns every known contract keyed by eye name.
func Contracts() map[string][]Field {
	out := make(map[string][]Field, len(contracts))
	for name := range contracts {
		out[name] = Contract(name)
	}
	return out
}

// ValidatePayload checks payload against eye's contract and returns a
// schema-validation error listing every bad field.
func ValidatePayload(eye string, payload map[string]any) error {
	fieldErrors := map[string]string{}
	for _, f := range contracts[eye] {
		v, ok := payload[f.Name]
		if !ok || v == nil {
			if f.Required {
				fieldErrors[f.Name] = "field required"
			}
			continue
		}
		if msg := checkKind(f, v); msg != "" {
			fieldErrors[f.Name] = msg
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return recovery.SchemaValidation(eye, fieldErrors)
}

func checkKind(f Field, v any) string {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %T", v)
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return "must not be empty"
		}
	case KindNumber:
		switch n := v.(type) {
		case int, int32, int64, float32, float64:
		default:
			return fmt.Sprintf("expected number, got %T", n)
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("expected bool, got %T", v)
		}
	case KindArray:
		switch a := v.(type) {
		case []any:
			if f.Required && len(a) == 0 {
				return "must not be empty"
			}
		case []string:
			if f.Required && len(a) == 0 {
				return "must not be empty"
			}
		case []map[string]any:
			if f.Required && len(a) == 0 {
				return "must not be empty"
			}
		default:
			return fmt.Sprintf("expected array, got %T", v)
		}
	}
	return ""
}

// contractMD renders the contracts as a markdown list, sorted by eye.
func contractMD() string {
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("### Payload contract\n")
	for _, name := range names {
		fields := contracts[name]
		if len(fields) == 0 {
			fmt.Fprintf(&b, "- `%s`: no payload\n", name)
			continue
		}
		parts := make([]string, len(fields))
		for i, f := range fields {
			opt := ""
			if !f.Required {
				opt = "?"
			}
			parts[i] = fmt.Sprintf("`%s%s: %s`", f.Name, opt, f.Kind)
		}
		fmt.Fprintf(&b, "- `%s`: %s\n", name, strings.Join(parts, ", "))
	}
	return b.String()
}
