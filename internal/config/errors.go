package config

import "errors"

// Sentinel errors identifying the config-loading failure modes. Wrap with
// fmt.Errorf("...: %w", ...) to attach the offending path or name.
var (
	ErrImportEscapesRoot    = errors.New("import-escapes-root")
	ErrImportCycle          = errors.New("import-cycle")
	ErrContextFileMissing   = errors.New("context-file-missing")
	ErrInvalidMaxIterations = errors.New("invalid-max-iterations")
	ErrMissingSystemPrompt  = errors.New("system-prompt-missing")
	ErrMissingAgentConfig   = errors.New("agent-config-missing")
)
