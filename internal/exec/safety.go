// Package exec validates the executable values the engine is about to
// spawn: tool argv heads, hook and generator command heads, and the
// external LLM adapter command. Parameter VALUES are deliberately not
// validated here; they are passed as argv entries and never interpreted
// by a shell, so any byte sequence is safe by construction.
package exec

import (
	"regexp"
	"strings"
)

// Pattern definitions for executable safety validation.
var (
	// ShellMetachars matches metacharacters that would change meaning if
	// a config-authored command head ever reached a shell.
	ShellMetachars = regexp.MustCompile(`[;&|` + "`" + `$<>]`)

	// ControlChars matches control characters like newlines and carriage returns.
	ControlChars = regexp.MustCompile(`[\r\n]`)

	// QuoteChars matches quote characters that could enable argument injection.
	QuoteChars = regexp.MustCompile(`["']`)

	// BareNamePattern matches safe bare executable names without paths.
	BareNamePattern = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)
)

// IsLikelyPath reports whether the value looks like a file path rather
// than a bare executable name resolved via PATH.
func IsLikelyPath(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, ".") || strings.HasPrefix(value, "~") {
		return true
	}
	return strings.Contains(value, "/") || strings.Contains(value, "\\")
}

// IsSafeExecutableValue validates an executable name or path before it is
// handed to the process spawner. It rejects:
//
//   - empty values
//   - null bytes and control characters
//   - shell metacharacters ;&|`$<>
//   - quote characters
//   - bare names starting with - (option injection)
//   - bare names outside [A-Za-z0-9._+-]+
//
// Paths (./hook.sh, /usr/bin/python3, tools\win.exe) are allowed once
// they pass the byte-level checks.
func IsSafeExecutableValue(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "\x00") {
		return false
	}
	if ControlChars.MatchString(trimmed) || ShellMetachars.MatchString(trimmed) || QuoteChars.MatchString(trimmed) {
		return false
	}
	if IsLikelyPath(trimmed) {
		return true
	}
	if strings.HasPrefix(trimmed, "-") {
		return false
	}
	return BareNamePattern.MatchString(trimmed)
}
