package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/deltaengine/delta/internal/tools/files"
)

const (
	agentConfigFile       = "agent.yaml"
	legacyAgentConfigFile = "config.yaml"
	hooksConfigFile       = "hooks.yaml"
	contextManifestFile   = "context.yaml"
	defaultSystemPrompt   = "system_prompt.md"
)

// Config is the fully loaded, import-resolved agent project: the merged
// agent.yaml, the loaded system prompt text, the hooks mapping (preferring
// hooks.yaml over the legacy inline field), and the required context
// manifest.
type Config struct {
	AgentRoot       string
	Agent           AgentConfig
	SystemPrompt    string
	Hooks           HooksConfig
	ContextManifest ContextManifest
	Warnings        []string
}

// Load reads and fully resolves the agent project rooted at agentRoot:
// the main config (preferring agent.yaml over the legacy config.yaml),
// its resolved tool imports, the hooks mapping, the system prompt file,
// and the context manifest.
func Load(agentRoot string) (*Config, error) {
	resolver := files.Resolver{Root: agentRoot}

	mainPath, warnings, err := locateAgentConfig(agentRoot)
	if err != nil {
		return nil, err
	}

	mainRaw, err := parseFile(mainPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", mainPath, err)
	}

	var agentCfg AgentConfig
	if err := decodeInto(mainRaw, &agentCfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", mainPath, err)
	}

	importedTools, importWarnings, err := resolveImports(agentCfg.Imports, agentRoot, resolver)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, importWarnings...)

	mergedTools, mergeWarnings := mergeTools(importedTools, agentCfg.Tools)
	agentCfg.Tools = mergedTools
	warnings = append(warnings, mergeWarnings...)

	hooks, hookWarnings, err := loadHooks(agentRoot, agentCfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, hookWarnings...)

	systemPrompt, err := loadSystemPrompt(agentCfg, resolver)
	if err != nil {
		return nil, err
	}

	manifest, err := loadContextManifest(agentRoot)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AgentRoot:       agentRoot,
		Agent:           agentCfg,
		SystemPrompt:    systemPrompt,
		Hooks:           hooks,
		ContextManifest: *manifest,
		Warnings:        warnings,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Fingerprint returns a stable sha256 over the merged, import-resolved
// config, recorded into run metadata so `continue` can detect (and warn
// about, never block on) config drift since the run started.
func (c *Config) Fingerprint() string {
	payload, err := yaml.Marshal(struct {
		Agent        AgentConfig     `yaml:"agent"`
		SystemPrompt string          `yaml:"system_prompt"`
		Hooks        HooksConfig     `yaml:"hooks"`
		Manifest     ContextManifest `yaml:"manifest"`
	}{c.Agent, c.SystemPrompt, c.Hooks, c.ContextManifest})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// locateAgentConfig finds the main config file, preferring agent.yaml over
// the legacy config.yaml. Warns if both are present or only the legacy
// name exists.
func locateAgentConfig(agentRoot string) (string, []string, error) {
	primary := filepath.Join(agentRoot, agentConfigFile)
	legacy := filepath.Join(agentRoot, legacyAgentConfigFile)

	_, primaryErr := os.Stat(primary)
	_, legacyErr := os.Stat(legacy)

	switch {
	case primaryErr == nil && legacyErr == nil:
		return primary, []string{
			fmt.Sprintf("both %s and legacy %s present; using %s", agentConfigFile, legacyAgentConfigFile, agentConfigFile),
		}, nil
	case primaryErr == nil:
		return primary, nil, nil
	case legacyErr == nil:
		return legacy, []string{
			fmt.Sprintf("%s not found; falling back to legacy %s", agentConfigFile, legacyAgentConfigFile),
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: no %s or %s in %s", ErrMissingAgentConfig, agentConfigFile, legacyAgentConfigFile, agentRoot)
	}
}

// resolveImports performs depth-first resolution of an imports[] list.
// Every resolved path must lie inside agentRoot; revisiting a path already
// on the current resolution stack fails with ErrImportCycle. Each imported
// document contributes tool definitions only.
func resolveImports(imports []string, agentRoot string, resolver files.Resolver) ([]ToolDef, []string, error) {
	visiting := map[string]bool{}
	var tools []ToolDef
	var warnings []string

	var visit func(rel string) error
	visit = func(rel string) error {
		abs, err := resolver.Resolve(rel)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrImportEscapesRoot, rel, err)
		}
		if visiting[abs] {
			return fmt.Errorf("%w: %s", ErrImportCycle, abs)
		}
		visiting[abs] = true
		defer delete(visiting, abs)

		raw, err := parseFile(abs)
		if err != nil {
			return fmt.Errorf("load import %s: %w", abs, err)
		}

		var doc struct {
			Imports []string  `yaml:"imports,omitempty"`
			Tools   []ToolDef `yaml:"tools,omitempty"`
		}
		if err := decodeInto(raw, &doc); err != nil {
			return fmt.Errorf("parse import %s: %w", abs, err)
		}

		for _, nested := range doc.Imports {
			nestedPath := nested
			if !filepath.IsAbs(nestedPath) {
				nestedPath = filepath.Join(filepath.Dir(abs), nested)
			}
			nestedRel, err := filepath.Rel(agentRoot, nestedPath)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrImportEscapesRoot, nested)
			}
			if err := visit(nestedRel); err != nil {
				return err
			}
		}

		tools = append(tools, doc.Tools...)
		return nil
	}

	for _, imp := range imports {
		if strings.TrimSpace(imp) == "" {
			continue
		}
		if err := visit(imp); err != nil {
			return nil, nil, err
		}
	}
	return tools, warnings, nil
}

// mergeTools concatenates imported tools in order, then appends local
// tools. When two tools share a name, the later one wins; the final list
// is de-duplicated by name with last-write-wins semantics.
func mergeTools(imported, local []ToolDef) ([]ToolDef, []string) {
	var warnings []string
	order := make([]string, 0, len(imported)+len(local))
	byName := map[string]ToolDef{}

	add := func(t ToolDef) {
		if _, exists := byName[t.Name]; exists {
			warnings = append(warnings, fmt.Sprintf("tool %q redefined; later definition wins", t.Name))
		} else {
			order = append(order, t.Name)
		}
		byName[t.Name] = t
	}

	for _, t := range imported {
		add(t)
	}
	for _, t := range local {
		add(t)
	}

	merged := make([]ToolDef, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged, warnings
}

// loadHooks prefers hooks.yaml; if absent but legacy lifecycle_hooks is
// present in the main config, that is used with a deprecation warning.
// When both are present, hooks.yaml wins and a warning is returned.
func loadHooks(agentRoot string, agentCfg AgentConfig) (HooksConfig, []string, error) {
	hooksPath := filepath.Join(agentRoot, hooksConfigFile)
	if _, err := os.Stat(hooksPath); err == nil {
		raw, err := parseFile(hooksPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", hooksPath, err)
		}
		var hooks HooksConfig
		if err := decodeInto(raw, &hooks); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", hooksPath, err)
		}
		var warnings []string
		if len(agentCfg.LifecycleHooks) > 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring deprecated lifecycle_hooks field in %s; %s takes precedence", agentConfigFile, hooksConfigFile))
		}
		return hooks, warnings, nil
	}

	if len(agentCfg.LifecycleHooks) > 0 {
		return HooksConfig(agentCfg.LifecycleHooks), []string{
			fmt.Sprintf("using deprecated lifecycle_hooks field in %s; prefer %s", agentConfigFile, hooksConfigFile),
		}, nil
	}

	return HooksConfig{}, nil, nil
}

// loadSystemPrompt reads the required system prompt file. AgentConfig's
// SystemPrompt field names the path (relative to agentRoot), defaulting to
// system_prompt.md when empty.
func loadSystemPrompt(agentCfg AgentConfig, resolver files.Resolver) (string, error) {
	rel := agentCfg.SystemPrompt
	if strings.TrimSpace(rel) == "" {
		rel = defaultSystemPrompt
	}
	path, err := resolver.Resolve(rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingSystemPrompt, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingSystemPrompt, err)
	}
	return string(data), nil
}

// loadContextManifest requires context.yaml; its absence is fatal and the
// error includes a suggested default manifest.
func loadContextManifest(agentRoot string) (*ContextManifest, error) {
	path := filepath.Join(agentRoot, contextManifestFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s not found\nsuggested default:\n%s", ErrContextFileMissing, path, suggestedContextManifest)
	}

	raw, err := parseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	var manifest ContextManifest
	if err := decodeInto(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &manifest, nil
}

const suggestedContextManifest = `sources:
  - type: journal
    max_iterations: 20
`

// parseFile reads a file into a raw map, decoding as JSON5 for .json/.json5
// extensions and YAML otherwise.
func parseFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRawBytes(data, path)
}

func parseRawBytes(data []byte, pathHint string) (map[string]any, error) {
	format := strings.ToLower(filepath.Ext(pathHint))
	if format == ".json" || format == ".json5" {
		var raw map[string]any
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]any{}
		}
		return raw, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("expected single document")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// decodeInto re-serializes a raw map to YAML and strictly decodes it into
// target, rejecting unknown fields.
func decodeInto(raw map[string]any, target any) error {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("expected single document")
	}
	return nil
}
