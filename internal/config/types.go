// Package config loads and merges an agent project's agent.yaml,
// context.yaml, and hooks.yaml, resolving tool imports with cycle
// detection and confining them to the agent root.
package config

// LLMConfig describes the model endpoint the engine's LLM adapter should
// target. The adapter itself is a pluggable external collaborator; this
// struct only carries the declarative fields the agent author supplies.
type LLMConfig struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// ParameterSpec describes one parameter of a declarative tool definition,
// either inferred from a template placeholder or supplied (and merged)
// from an explicit parameters: block.
type ParameterSpec struct {
	Name        string `yaml:"name" json:"name"`
	InjectAs    string `yaml:"inject_as,omitempty" json:"inject_as,omitempty"` // argument | stdin | option
	OptionName  string `yaml:"option_name,omitempty" json:"option_name,omitempty"`
	Position    int    `yaml:"-" json:"position"`
	Raw         bool   `yaml:"raw,omitempty" json:"raw,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ToolDef is the declarative, author-facing tool definition as it appears
// in agent.yaml or an imported tools/*.yaml file. Exactly one of Exec,
// Shell, or Command is populated; Command is the deprecated alias for
// Shell retained for backward compatibility.
type ToolDef struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Exec        string          `yaml:"exec,omitempty" json:"exec,omitempty"`
	Shell       string          `yaml:"shell,omitempty" json:"shell,omitempty"`
	Command     string          `yaml:"command,omitempty" json:"command,omitempty"`
	Stdin       string          `yaml:"stdin,omitempty" json:"stdin,omitempty"`
	Parameters  []ParameterSpec `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// AgentConfig is the parsed, pre-import form of agent.yaml.
type AgentConfig struct {
	Name           string             `yaml:"name" json:"name"`
	Version        string             `yaml:"version,omitempty" json:"version,omitempty"`
	Description    string             `yaml:"description,omitempty" json:"description,omitempty"`
	LLM            LLMConfig          `yaml:"llm" json:"llm"`
	SystemPrompt   string             `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	Imports        []string           `yaml:"imports,omitempty" json:"imports,omitempty"`
	Tools          []ToolDef          `yaml:"tools,omitempty" json:"tools,omitempty"`
	LifecycleHooks map[string]HookDef `yaml:"lifecycle_hooks,omitempty" json:"lifecycle_hooks,omitempty"`
}

// HookDef is one entry of hooks.yaml (or the legacy lifecycle_hooks map).
type HookDef struct {
	Command     []string `yaml:"command" json:"command"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	TimeoutMs   int      `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// HooksConfig is the parsed form of hooks.yaml: a mapping from hook name to
// its definition.
type HooksConfig map[string]HookDef

// FileSource is a context.yaml source of kind "file".
type FileSource struct {
	ID        string `yaml:"id,omitempty" json:"id,omitempty"`
	Path      string `yaml:"path" json:"path"`
	OnMissing string `yaml:"on_missing,omitempty" json:"on_missing,omitempty"` // skip | error
}

// GeneratorSpec configures the command that produces a computed_file source.
type GeneratorSpec struct {
	Command   []string `yaml:"command" json:"command"`
	TimeoutMs int      `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// ComputedFileSource is a context.yaml source of kind "computed_file".
type ComputedFileSource struct {
	ID         string        `yaml:"id,omitempty" json:"id,omitempty"`
	Generator  GeneratorSpec `yaml:"generator" json:"generator"`
	OutputPath string        `yaml:"output_path" json:"output_path"`
	OnMissing  string        `yaml:"on_missing,omitempty" json:"on_missing,omitempty"`
}

// JournalSource is a context.yaml source of kind "journal".
type JournalSource struct {
	ID            string `yaml:"id,omitempty" json:"id,omitempty"`
	MaxIterations int    `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// ContextSource is one declared entry of context.yaml, discriminated by Kind.
type ContextSource struct {
	Kind         string              `yaml:"type" json:"type"`
	File         *FileSource         `yaml:"-" json:"-"`
	ComputedFile *ComputedFileSource `yaml:"-" json:"-"`
	Journal      *JournalSource      `yaml:"-" json:"-"`
}

// Kind discriminator values for ContextSource.
const (
	SourceKindFile         = "file"
	SourceKindComputedFile = "computed_file"
	SourceKindJournal      = "journal"
)

// ContextManifest is the parsed form of context.yaml.
type ContextManifest struct {
	Sources []ContextSource `yaml:"sources" json:"sources"`
}

// On-missing policy values.
const (
	OnMissingSkip  = "skip"
	OnMissingError = "error"
)

// Inject-as values for ParameterSpec.
const (
	InjectArgument = "argument"
	InjectStdin    = "stdin"
	InjectOption   = "option"
)
