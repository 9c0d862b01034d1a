package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAgentProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

const minimalAgentYAML = `
name: demo-agent
llm:
  model: fixture-model
`

const minimalContextYAML = `
sources:
  - type: journal
    max_iterations: 10
`

func TestLoad_Minimal(t *testing.T) {
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       minimalAgentYAML,
		"system_prompt.md": "you are a test agent",
		"context.yaml":     minimalContextYAML,
	})

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Name != "demo-agent" {
		t.Errorf("expected demo-agent, got %q", cfg.Agent.Name)
	}
	if cfg.SystemPrompt != "you are a test agent" {
		t.Errorf("unexpected system prompt: %q", cfg.SystemPrompt)
	}
	if len(cfg.ContextManifest.Sources) != 1 || cfg.ContextManifest.Sources[0].Kind != SourceKindJournal {
		t.Errorf("unexpected context manifest: %+v", cfg.ContextManifest)
	}
}

func TestLoad_MissingContextManifestIsFatal(t *testing.T) {
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       minimalAgentYAML,
		"system_prompt.md": "prompt",
	})

	_, err := Load(root)
	if !errors.Is(err, ErrContextFileMissing) {
		t.Fatalf("expected ErrContextFileMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "suggested default") {
		t.Errorf("expected suggested default manifest in error, got %v", err)
	}
}

func TestLoad_LegacyConfigYAMLFallback(t *testing.T) {
	root := writeAgentProject(t, map[string]string{
		"config.yaml":      minimalAgentYAML,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
	})

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Name != "demo-agent" {
		t.Errorf("expected fallback load to succeed, got %+v", cfg.Agent)
	}
	found := false
	for _, w := range cfg.Warnings {
		if strings.Contains(w, "legacy") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected legacy fallback warning, got %v", cfg.Warnings)
	}
}

func TestLoad_HooksYAMLPreferredOverLegacyField(t *testing.T) {
	agentYAML := minimalAgentYAML + `
lifecycle_hooks:
  on_error:
    command: ["echo", "legacy"]
`
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       agentYAML,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
		"hooks.yaml": `
on_error:
  command: ["echo", "preferred"]
`,
	})

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hook, ok := cfg.Hooks["on_error"]
	if !ok {
		t.Fatalf("expected on_error hook")
	}
	if strings.Join(hook.Command, " ") != "echo preferred" {
		t.Errorf("expected hooks.yaml to win, got %v", hook.Command)
	}
}

func TestLoad_LegacyLifecycleHooksFallback(t *testing.T) {
	agentYAML := minimalAgentYAML + `
lifecycle_hooks:
  on_error:
    command: ["echo", "legacy"]
`
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       agentYAML,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
	})

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hook, ok := cfg.Hooks["on_error"]
	if !ok || strings.Join(hook.Command, " ") != "echo legacy" {
		t.Fatalf("expected legacy lifecycle_hooks fallback, got %+v", cfg.Hooks)
	}
}

func TestLoad_ImportsMergeToolsLastWriteWins(t *testing.T) {
	agentYAML := `
name: demo-agent
llm:
  model: fixture-model
imports:
  - tools/base.yaml
tools:
  - name: greet
    exec: "echo local-override"
`
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       agentYAML,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
		"tools/base.yaml": `
tools:
  - name: greet
    exec: "echo imported"
  - name: list_files
    exec: "ls"
`,
	})

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Agent.Tools) != 2 {
		t.Fatalf("expected 2 merged tools, got %d: %+v", len(cfg.Agent.Tools), cfg.Agent.Tools)
	}
	byName := map[string]ToolDef{}
	for _, tool := range cfg.Agent.Tools {
		byName[tool.Name] = tool
	}
	if byName["greet"].Exec != "echo local-override" {
		t.Errorf("expected local tool to win, got %q", byName["greet"].Exec)
	}
	found := false
	for _, w := range cfg.Warnings {
		if strings.Contains(w, `"greet" redefined`) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected redefinition warning, got %v", cfg.Warnings)
	}
}

func TestLoad_ImportEscapingRootFails(t *testing.T) {
	agentYAML := `
name: demo-agent
llm:
  model: fixture-model
imports:
  - ../outside.yaml
`
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       agentYAML,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
	})

	_, err := Load(root)
	if !errors.Is(err, ErrImportEscapesRoot) {
		t.Fatalf("expected ErrImportEscapesRoot, got %v", err)
	}
}

func TestLoad_ImportCycleFails(t *testing.T) {
	agentYAML := `
name: demo-agent
llm:
  model: fixture-model
imports:
  - tools/a.yaml
`
	root := writeAgentProject(t, map[string]string{
		"agent.yaml":       agentYAML,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
		"tools/a.yaml": `
imports:
  - b.yaml
`,
		"tools/b.yaml": `
imports:
  - a.yaml
`,
	})

	_, err := Load(root)
	if !errors.Is(err, ErrImportCycle) {
		t.Fatalf("expected ErrImportCycle, got %v", err)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	root := writeAgentProject(t, map[string]string{
		"agent.yaml": `
name: demo-agent
llm:
  model: fixture-model
bogus_field: true
`,
		"system_prompt.md": "prompt",
		"context.yaml":     minimalContextYAML,
	})

	if _, err := Load(root); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoad_MissingAgentConfig(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root)
	if !errors.Is(err, ErrMissingAgentConfig) {
		t.Fatalf("expected ErrMissingAgentConfig, got %v", err)
	}
}

func TestValidate_ToolRequiresExactlyOneSyntax(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{
			Tools: []ToolDef{
				{Name: "bad", Exec: "echo hi", Shell: "echo hi"},
			},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for dual syntax")
	}
}

func TestValidate_OptionParameterRequiresOptionName(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{
			Tools: []ToolDef{
				{
					Name: "bad",
					Exec: "echo hi",
					Parameters: []ParameterSpec{
						{Name: "flag", InjectAs: InjectOption},
					},
				},
			},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing option_name")
	}
}
