package review

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
)

// CodeUnparseableVerdict marks a backend reply that is not a JSON verdict.
const CodeUnparseableVerdict = "E_UNPARSEABLE_VERDICT"

// maxRawExcerpt bounds the raw reply echoed back on a parse failure.
const maxRawExcerpt = 500

var errNoVerdict = errors.New("no JSON object in reply")

type verdict struct {
	OK         *bool          `json:"ok"`
	Code       string         `json:"code"`
	MD         string         `json:"md"`
	Data       map[string]any `json:"data"`
	NextAction string         `json:"next_action"`
}

// parseVerdict extracts the JSON verdict from a model reply, tolerating code
// fences and prose around the object.
func parseVerdict(reply string) (verdict, error) {
	content := strings.TrimSpace(reply)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return verdict{}, errNoVerdict
	}

	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return verdict{}, err
	}
	if v.OK == nil {
		return verdict{}, errors.New(`verdict has no "ok" field`)
	}
	return v, nil
}

// toResponse turns a verdict into the eye's response, filling codes and next
// actions the model left out.
func toResponse(eye string, p profile, v verdict) eyes.Response {
	resp := eyes.Response{
		Tag:        Tag(eye),
		OK:         *v.OK,
		Code:       v.Code,
		MD:         v.MD,
		Data:       v.Data,
		NextAction: v.NextAction,
	}
	if resp.Data == nil {
		resp.Data = map[string]any{}
	}
	if resp.OK {
		if resp.Code == "" || !strings.HasPrefix(resp.Code, "OK") {
			resp.Code = p.okCode
		}
		if resp.NextAction == "" {
			resp.NextAction = p.okNext
		}
	} else {
		if resp.Code == "" || !strings.HasPrefix(resp.Code, "E_") {
			resp.Code = p.failCode
		}
		if resp.NextAction == "" {
			resp.NextAction = p.failNext
		}
	}
	return resp
}

func unparseable(eye, reply string) eyes.Response {
	excerpt := reply
	if len(excerpt) > maxRawExcerpt {
		excerpt = excerpt[:maxRawExcerpt]
	}
	return eyes.Response{
		Tag:        Tag(eye),
		OK:         false,
		Code:       CodeUnparseableVerdict,
		MD:         "### Review unavailable\nThe reasoning backend did not return a JSON verdict.",
		Data:       map[string]any{"raw_excerpt": excerpt},
		NextAction: "Resubmit the same request. If this repeats, check the reasoning backend.",
	}
}
