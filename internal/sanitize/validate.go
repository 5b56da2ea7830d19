// Package sanitize validates caller-supplied identifiers before they reach
// log fields, event subjects and metric labels.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxSessionIDLength bounds session identifiers.
const MaxSessionIDLength = 128

var (
	// ErrInvalidSessionID indicates the session ID format is invalid.
	ErrInvalidSessionID = errors.New("invalid session ID format")

	// ErrInvalidTenantID indicates the tenant ID format is invalid.
	ErrInvalidTenantID = errors.New("invalid tenant ID format")
)

// sessionIDPattern admits the characters agents commonly use in session
// identifiers: UUIDs, ulids, "conv:123", "run_7.2".
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

// identifierPattern matches lowercase alphanumeric with underscores, max 64 chars.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,62}[a-z0-9]?$`)

// SessionID checks that id is a usable session identifier.
func SessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidSessionID, MaxSessionIDLength)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: contains '..'", ErrInvalidSessionID)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be alphanumeric with _ . : - separators", ErrInvalidSessionID)
	}
	return nil
}

// TenantID checks a tenant identifier. Tenants are optional, so empty is valid.
func TenantID(id string) error {
	if id == "" {
		return nil
	}
	if strings.ContainsAny(id, "/\\.") {
		return fmt.Errorf("%w: contains path characters", ErrInvalidTenantID)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with underscores (1-64 chars)", ErrInvalidTenantID)
	}
	return nil
}
