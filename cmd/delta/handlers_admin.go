// handlers_admin.go contains the handlers for the workspace-facing
// collaborator commands: list-runs, janitor, init, and tool expand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/deltaengine/delta/internal/config"
	"github.com/deltaengine/delta/internal/janitor"
	"github.com/deltaengine/delta/internal/rundir"
	"github.com/deltaengine/delta/internal/toolspec"
	"github.com/deltaengine/delta/internal/workspace"
)

type listRunsOptions struct {
	workDir   string
	resumable bool
	status    string
	first     bool
	format    string
}

type janitorOptions struct {
	workDir  string
	schedule string
}

type initOptions struct {
	name      string
	template  string
	assumeYes bool
}

// =============================================================================
// list-runs
// =============================================================================

func runListRuns(opts listRunsOptions) error {
	ws := opts.workDir
	if ws == "" {
		var err error
		ws, err = workspace.Resolve(".", "", true)
		if err != nil {
			return exitConfig(err)
		}
	}
	ws, err := filepath.Abs(ws)
	if err != nil {
		return exitConfig(err)
	}

	runs, err := janitor.List(ws, janitor.Filter{
		Resumable: opts.resumable,
		Status:    opts.status,
		First:     opts.first,
	})
	if err != nil {
		return exitDiagnostic(err)
	}

	switch opts.format {
	case "json":
		type entry struct {
			RunID          string `json:"run_id"`
			Status         string `json:"status"`
			AgentName      string `json:"agent_name"`
			Iterations     int    `json:"iterations"`
			UpdatedAt      string `json:"updated_at"`
			InitialMessage string `json:"initial_message"`
		}
		out := make([]entry, 0, len(runs))
		for _, r := range runs {
			out = append(out, entry{
				RunID:          r.RunID,
				Status:         string(r.Metadata.Status),
				AgentName:      r.Metadata.AgentName,
				Iterations:     r.Metadata.Iterations,
				UpdatedAt:      r.Metadata.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
				InitialMessage: r.Metadata.InitialMessage,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return exitDiagnostic(err)
		}

	case "text", "":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTATUS\tITER\tUPDATED\tMESSAGE")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				r.RunID, r.Metadata.Status, r.Metadata.Iterations,
				r.Metadata.UpdatedAt.Format("2006-01-02 15:04:05"),
				truncateMessage(r.Metadata.InitialMessage, 40))
		}
		w.Flush()

	default:
		return exitConfig(fmt.Errorf("unknown format %q", opts.format))
	}
	return nil
}

func truncateMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// =============================================================================
// janitor
// =============================================================================

func runJanitor(ctx context.Context, opts janitorOptions) error {
	ws, err := filepath.Abs(opts.workDir)
	if err != nil {
		return exitConfig(err)
	}

	if opts.schedule == "" {
		return sweepOnce(ws)
	}

	c := cron.New()
	if _, err := c.AddFunc(opts.schedule, func() {
		if err := sweepOnce(ws); err != nil {
			fmt.Fprintln(os.Stderr, "sweep failed:", err)
		}
	}); err != nil {
		return exitConfig(fmt.Errorf("invalid --schedule %q: %w", opts.schedule, err))
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func sweepOnce(ws string) error {
	running, err := janitor.List(ws, janitor.Filter{Status: "RUNNING"})
	if err != nil {
		return err
	}
	for _, r := range running {
		meta, err := janitor.Reclaim(rundir.RunDir(ws, r.RunID), false)
		switch {
		case errors.Is(err, rundir.ErrRunStillActive):
			fmt.Fprintf(os.Stderr, "run %s: still active, left alone\n", r.RunID)
		case errors.Is(err, rundir.ErrCrossHostRunning):
			fmt.Fprintf(os.Stderr, "run %s: recorded on another host, left alone\n", r.RunID)
		case err != nil:
			fmt.Fprintf(os.Stderr, "run %s: %v\n", r.RunID, err)
		default:
			fmt.Fprintf(os.Stderr, "run %s: reclaimed to %s\n", r.RunID, meta.Status)
		}
	}
	return nil
}

// =============================================================================
// init
// =============================================================================

const initAgentYAML = `name: %s
version: "1.0"
description: A minimal Delta Engine agent.

llm:
  model: claude-sonnet-4
  temperature: 0.7

tools:
  - name: echo
    exec: "echo ${message}"

  - name: count_lines
    shell: "cat ${file} | wc -l"
`

const initSystemPrompt = `You are %s, a helpful agent.

Use the provided tools to complete the user's task, then reply with a
final summary when you are done.
`

// The engine always sends the agent's system prompt first; the manifest
// only declares the additional sources, so the scaffold points one file
// source at an optional workspace notes file.
const initContextYAML = `sources:
  - type: file
    path: "${CWD}/NOTES.md"
    on_missing: skip

  - type: journal
    max_iterations: 20
`

func runInit(opts initOptions) error {
	root, err := filepath.Abs(opts.name)
	if err != nil {
		return exitConfig(err)
	}
	name := filepath.Base(root)

	files := map[string]string{
		"agent.yaml":       fmt.Sprintf(initAgentYAML, name),
		"system_prompt.md": fmt.Sprintf(initSystemPrompt, name),
		"context.yaml":     initContextYAML,
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return exitConfig(err)
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if _, err := os.Stat(path); err == nil && !opts.assumeYes {
			return exitConfig(fmt.Errorf("%s already exists; pass -y to overwrite", path))
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return exitConfig(err)
		}
	}

	fmt.Fprintf(os.Stderr, "agent scaffolded at %s\n", root)
	fmt.Fprintf(os.Stderr, "try: delta run --agent %s -m \"hello\"\n", opts.name)
	return nil
}

// =============================================================================
// schema
// =============================================================================

func runSchema(kind string) error {
	var data []byte
	var err error
	switch kind {
	case "agent":
		data, err = config.AgentConfigSchema()
	case "hooks":
		data, err = config.HooksConfigSchema()
	case "context":
		data, err = config.ContextManifestSchema()
	default:
		return exitConfig(fmt.Errorf("unknown schema %q (want agent, hooks, or context)", kind))
	}
	if err != nil {
		return exitDiagnostic(err)
	}
	os.Stdout.Write(data)
	fmt.Println()
	return nil
}

// =============================================================================
// tool expand
// =============================================================================

// expandedView is the printable normalized tool form.
type expandedView struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Syntax      string          `yaml:"syntax"`
	Argv        []string        `yaml:"argv"`
	Parameters  []parameterView `yaml:"parameters,omitempty"`
	Stdin       string          `yaml:"stdin,omitempty"`
}

type parameterView struct {
	Name        string `yaml:"name"`
	InjectAs    string `yaml:"inject_as"`
	OptionName  string `yaml:"option_name,omitempty"`
	Position    int    `yaml:"position"`
	Raw         bool   `yaml:"raw,omitempty"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

func runToolExpand(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return exitConfig(err)
	}

	var doc struct {
		Tools []config.ToolDef `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return exitConfig(fmt.Errorf("parse %s: %w", path, err))
	}
	if len(doc.Tools) == 0 {
		return exitConfig(fmt.Errorf("%s declares no tools", path))
	}

	var views []expandedView
	for _, def := range doc.Tools {
		spec, err := toolspec.Expand(def)
		if err != nil {
			return exitConfig(err)
		}
		views = append(views, viewOf(spec))
	}

	out, err := yaml.Marshal(views)
	if err != nil {
		return exitDiagnostic(err)
	}
	os.Stdout.Write(out)
	return nil
}

func viewOf(spec *toolspec.ToolSpec) expandedView {
	v := expandedView{
		Name:        spec.Name,
		Description: spec.Description,
		Syntax:      string(spec.Syntax),
		Stdin:       spec.StdinParam,
	}
	for _, el := range spec.ArgvTemplate {
		if el.Placeholder {
			v.Argv = append(v.Argv, "${"+el.ParamName+"}")
		} else {
			v.Argv = append(v.Argv, el.Literal)
		}
	}
	for _, p := range spec.Parameters {
		v.Parameters = append(v.Parameters, parameterView{
			Name:        p.Name,
			InjectAs:    string(p.InjectAs),
			OptionName:  p.OptionName,
			Position:    p.Position,
			Raw:         p.Raw,
			Required:    p.Required,
			Default:     p.Default,
			Description: p.Description,
		})
	}
	return v
}
