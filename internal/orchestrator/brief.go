package orchestrator

import (
	"strings"
)

const briefTemplate = `### ROLE
Task executor with full domain knowledge

### TASK
{{goal}}

### CONTEXT
- Direct user request requiring implementation
- No clarification needed; the prompt is sufficiently clear
- Standard quality and documentation requirements apply

### REQUIREMENTS
- Follow best practices for the domain
- Include appropriate error handling
- Provide clear documentation
- Test thoroughly before delivery

### OUTPUT
Deliver the requested solution with:
- Clean, maintainable code
- Comprehensive documentation
- Test coverage where applicable
- Clear usage instructions`

// BuildBrief wraps goal in the structured ROLE/TASK/CONTEXT/REQUIREMENTS/OUTPUT brief.
func BuildBrief(goal string) string {
	return strings.Replace(briefTemplate, "{{goal}}", strings.TrimSpace(goal), 1)
}

// EstimateTokens is max(1000, words*150).
func EstimateTokens(goal string) int {
	n := len(strings.Fields(goal)) * tokensPerWord
	if n < MinEstimatedTokens {
		return MinEstimatedTokens
	}
	return n
}
