package redact

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Allowlist holds content patterns that are never redacted.
type Allowlist struct {
	Regexes   []string
	StopWords []string
}

// LoadAllowlist reads the [allowlist] table of a Gitleaks-style TOML file.
// A missing file yields an empty allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	empty := &Allowlist{Regexes: []string{}, StopWords: []string{}}
	if path == "" {
		return empty, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return nil, err
	}

	var file struct {
		Allowlist struct {
			Regexes   []string
			StopWords []string `toml:"stopwords"`
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	al := &Allowlist{
		Regexes:   append([]string{}, file.Allowlist.Regexes...),
		StopWords: append([]string{}, file.Allowlist.StopWords...),
	}
	if err := al.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return al, nil
}

func (a *Allowlist) validate() error {
	for _, pattern := range a.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: '%s': %v", ErrInvalidRegex, pattern, err)
		}
	}
	return nil
}

func (a *Allowlist) compiled() []*regexp.Regexp {
	if a == nil {
		return nil
	}
	out := make([]*regexp.Regexp, 0, len(a.Regexes))
	for _, pattern := range a.Regexes {
		// validated on load
		out = append(out, regexp.MustCompile(pattern))
	}
	return out
}
