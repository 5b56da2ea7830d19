package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is one detected secret. The secret value itself is kept private.
type Finding struct {
	RuleID   string `json:"rule_id"`
	RuleDesc string `json:"rule_desc"`
	Line     int    `json:"line"`
	secret   string
}

// NewFinding reports secret under ruleID. Custom DetectFuncs use it.
func NewFinding(ruleID, secret string) Finding {
	return Finding{RuleID: ruleID, secret: secret}
}

// Result is the outcome of redacting one string.
type Result struct {
	Content  string    `json:"-"`
	Findings []Finding `json:"findings"`
}

// Count returns the number of redacted secrets.
func (r Result) Count() int { return len(r.Findings) }

// Rules returns the distinct rule ids that matched, sorted.
func (r Result) Rules() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if _, ok := seen[f.RuleID]; ok {
			continue
		}
		seen[f.RuleID] = struct{}{}
		out = append(out, f.RuleID)
	}
	sort.Strings(out)
	return out
}

// DetectFunc finds secrets in content.
type DetectFunc func(content string) ([]Finding, error)

// Options configures a Redactor.
type Options struct {
	// Disabled turns the redactor into a pass-through.
	Disabled bool
	// AllowlistPath points at a Gitleaks-style TOML allowlist.
	AllowlistPath string
	// Detect overrides secret detection. Defaults to the Gitleaks rule set.
	Detect DetectFunc
}

// Redactor replaces secrets with [REDACTED:<rule>] markers.
type Redactor struct {
	disabled bool
	detect   DetectFunc
}

// New builds a Redactor, loading the allowlist once.
func New(opts Options) (*Redactor, error) {
	r := &Redactor{disabled: opts.Disabled, detect: opts.Detect}
	if r.detect != nil || r.disabled {
		return r, nil
	}
	allowlist, err := LoadAllowlist(opts.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}
	r.detect = gitleaksDetector(allowlist)
	return r, nil
}

// Enabled reports whether the redactor rewrites content.
func (r *Redactor) Enabled() bool { return r != nil && !r.disabled }

// Redact replaces every detected secret in content.
func (r *Redactor) Redact(content string) (Result, error) {
	if !r.Enabled() || strings.TrimSpace(content) == "" {
		return Result{Content: content, Findings: []Finding{}}, nil
	}
	findings, err := r.detect(content)
	if err != nil {
		return Result{}, fmt.Errorf("detecting secrets: %w", err)
	}
	if findings == nil {
		findings = []Finding{}
	}
	return Result{Content: replaceFindings(content, findings), Findings: findings}, nil
}

// RedactPayload returns a copy of payload with every string value redacted,
// descending into nested maps and slices, plus the total number of findings.
func (r *Redactor) RedactPayload(payload map[string]any) (map[string]any, int, error) {
	if payload == nil {
		return nil, 0, nil
	}
	total := 0
	out, err := r.walk(payload, &total)
	if err != nil {
		return nil, 0, err
	}
	return out.(map[string]any), total, nil
}

func (r *Redactor) walk(v any, total *int) (any, error) {
	switch t := v.(type) {
	case string:
		res, err := r.Redact(t)
		if err != nil {
			return nil, err
		}
		*total += res.Count()
		return res.Content, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			red, err := r.walk(item, total)
			if err != nil {
				return nil, err
			}
			out[k] = red
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			red, err := r.walk(item, total)
			if err != nil {
				return nil, err
			}
			out[i] = red
		}
		return out, nil
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			res, err := r.Redact(item)
			if err != nil {
				return nil, err
			}
			*total += res.Count()
			out[i] = res.Content
		}
		return out, nil
	default:
		return v, nil
	}
}

// replaceFindings swaps each secret for its marker. Longer secrets go first so
// a secret that contains another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].secret) > len(sorted[j].secret)
	})
	for _, f := range sorted {
		if f.secret == "" {
			continue
		}
		content = strings.ReplaceAll(content, f.secret, fmt.Sprintf("[REDACTED:%s]", f.RuleID))
	}
	return content
}

// gitleaksDetector builds a DetectFunc over the Gitleaks default config. A
// fresh detector is created per call since detectors accumulate findings.
func gitleaksDetector(allowlist *Allowlist) DetectFunc {
	patterns := allowlist.compiled()
	var stopWords []string
	if allowlist != nil {
		stopWords = append(stopWords, allowlist.StopWords...)
	}

	return func(content string) ([]Finding, error) {
		detector, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, err
		}
		if len(patterns) > 0 || len(stopWords) > 0 {
			applyAllowlist(&detector.Config, patterns, stopWords)
		}

		leaks := detector.DetectString(content)
		out := make([]Finding, 0, len(leaks))
		for _, f := range leaks {
			secret := f.Secret
			if secret == "" {
				secret = f.Match
			}
			out = append(out, Finding{
				RuleID:   f.RuleID,
				RuleDesc: f.Description,
				Line:     f.StartLine,
				secret:   secret,
			})
		}
		return out, nil
	}
}

func applyAllowlist(cfg *gitleaksConfig.Config, patterns []*regexp.Regexp, stopWords []string) {
	al := &gitleaksConfig.Allowlist{
		Description: "third-eye allowlist",
		StopWords:   stopWords,
	}
	for _, re := range patterns {
		al.Regexes = append(al.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, al)
}
