package config

import (
	"fmt"

	safeexec "github.com/deltaengine/delta/internal/exec"
)

// Validate runs the structural checks the JSON Schema alone cannot express:
// tool syntax exclusivity, hook command presence, and context source shape.
// It is run once at load time, before the engine starts.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for _, t := range c.Agent.Tools {
		if seen[t.Name] {
			return fmt.Errorf("duplicate tool name after merge: %q", t.Name)
		}
		seen[t.Name] = true
		if err := validateToolDef(t); err != nil {
			return fmt.Errorf("tool %q: %w", t.Name, err)
		}
	}

	for name, h := range c.Hooks {
		if len(h.Command) == 0 {
			return fmt.Errorf("hook %q: command is required", name)
		}
		if !safeexec.IsSafeExecutableValue(h.Command[0]) {
			return fmt.Errorf("hook %q: unsafe executable %q", name, h.Command[0])
		}
	}

	for i, src := range c.ContextManifest.Sources {
		if err := validateContextSource(src); err != nil {
			return fmt.Errorf("context source %d: %w", i, err)
		}
	}
	return nil
}

func validateToolDef(t ToolDef) error {
	count := 0
	if t.Exec != "" {
		count++
	}
	if t.Shell != "" {
		count++
	}
	if t.Command != "" {
		count++
	}
	if count != 1 {
		return fmt.Errorf("exactly one of exec, shell, command is required, got %d", count)
	}

	stdinParams := 0
	for _, p := range t.Parameters {
		if p.InjectAs == InjectStdin {
			stdinParams++
		}
		if p.Raw && t.Exec != "" {
			return fmt.Errorf(":raw is forbidden in exec: mode (parameter %q)", p.Name)
		}
		if p.InjectAs == InjectOption && p.OptionName == "" {
			return fmt.Errorf("parameter %q: option mode requires option_name", p.Name)
		}
	}
	if stdinParams > 1 {
		return fmt.Errorf("at most one parameter may have inject_as=stdin, found %d", stdinParams)
	}
	return nil
}

func validateContextSource(s ContextSource) error {
	switch s.Kind {
	case SourceKindFile:
		if s.File == nil || s.File.Path == "" {
			return fmt.Errorf("file source requires path")
		}
	case SourceKindComputedFile:
		if s.ComputedFile == nil || len(s.ComputedFile.Generator.Command) == 0 || s.ComputedFile.OutputPath == "" {
			return fmt.Errorf("computed_file source requires generator.command and output_path")
		}
		if head := s.ComputedFile.Generator.Command[0]; !safeexec.IsSafeExecutableValue(head) {
			return fmt.Errorf("computed_file source: unsafe generator executable %q", head)
		}
	case SourceKindJournal:
		if s.Journal == nil {
			return fmt.Errorf("journal source missing")
		}
	default:
		return fmt.Errorf("unknown source type %q", s.Kind)
	}
	return nil
}
