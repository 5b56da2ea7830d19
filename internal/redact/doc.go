// Package redact removes secrets from submissions before they leave the
// process for a reasoning backend. Detection uses the Gitleaks default rule
// set; allowlists are read from Gitleaks-style TOML files.
package redact
