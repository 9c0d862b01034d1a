// handlers.go contains the RunE handler functions for the run and
// continue commands, plus the helpers they share. Exit codes follow the
// result formatter's contract: 0 COMPLETED, 1 FAILED, 101
// WAITING_FOR_INPUT, 126 configuration error, 130 INTERRUPTED.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/deltaengine/delta/internal/config"
	"github.com/deltaengine/delta/internal/engine"
	"github.com/deltaengine/delta/internal/env"
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/llmadapter"
	"github.com/deltaengine/delta/internal/observability"
	"github.com/deltaengine/delta/internal/result"
	"github.com/deltaengine/delta/internal/rundir"
	"github.com/deltaengine/delta/internal/toolspec"
	"github.com/deltaengine/delta/internal/workspace"
)

type runOptions struct {
	agent         string
	message       string
	workDir       string
	maxIterations int
	verbose       bool
	interactive   bool
	assumeYes     bool
	runID         string
	format        string
}

type continueOptions struct {
	runID         string
	workDir       string
	message       string
	maxIterations int
	verbose       bool
	interactive   bool
	force         bool
	wait          bool
	format        string
}

// exitConfig reports a configuration/permission error and exits 126
// without starting the engine.
func exitConfig(err error) error {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(result.ExitCodeConfigError)
	return nil
}

func exitDiagnostic(err error) error {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(result.ExitCodeFailed)
	return nil
}

func runRun(ctx context.Context, opts runOptions) error {
	agentRoot, err := filepath.Abs(opts.agent)
	if err != nil {
		return exitConfig(err)
	}

	cfg, err := config.Load(agentRoot)
	if err != nil {
		return exitConfig(err)
	}
	printWarnings(cfg.Warnings)

	// Tool expansion failures are configuration errors and must surface
	// before the run directory is created.
	for _, def := range cfg.Agent.Tools {
		if _, err := toolspec.Expand(def); err != nil {
			return exitConfig(err)
		}
	}

	ws, err := workspace.Resolve(agentRoot, opts.workDir, false)
	if err != nil {
		return exitConfig(err)
	}
	if err := env.Load(ws, agentRoot); err != nil {
		return exitConfig(err)
	}

	adapter, err := llmadapter.FromEnv()
	if err != nil {
		return exitConfig(err)
	}

	runID := opts.runID
	if runID == "" {
		runID, err = rundir.NewRunID(time.Now())
		if err != nil {
			return exitConfig(err)
		}
	}
	runDir, err := rundir.Acquire(ws, runID)
	if err != nil {
		return exitDiagnostic(err)
	}

	maxIter := opts.maxIterations
	if maxIter == 0 {
		maxIter = engine.DefaultMaxIterations
	}

	ident, err := rundir.CurrentIdentity(time.Now().Unix())
	if err != nil {
		return exitDiagnostic(err)
	}
	if err := journal.CreateInitial(runDir, journal.Metadata{
		RunID:             runID,
		WorkspaceID:       filepath.Base(ws),
		AgentName:         cfg.Agent.Name,
		InitialMessage:    opts.message,
		MaxIterations:     maxIter,
		AgentHome:         agentRoot,
		WorkDir:           ws,
		Pid:               ident.Pid,
		Hostname:          ident.Hostname,
		StartTimeUnix:     ident.StartUnix,
		ProcessName:       ident.ProcessName,
		WorkspacePath:     ws,
		ConfigFingerprint: cfg.Fingerprint(),
	}); err != nil {
		return exitDiagnostic(err)
	}

	return execute(ctx, executeParams{
		cfg:         cfg,
		adapter:     adapter,
		workspace:   ws,
		runDir:      runDir,
		runID:       runID,
		maxIter:     maxIter,
		interactive: opts.interactive,
		assumeYes:   opts.assumeYes,
		verbose:     opts.verbose,
		format:      result.Format(opts.format),
	})
}

func runContinue(ctx context.Context, opts continueOptions) error {
	ws, err := filepath.Abs(opts.workDir)
	if err != nil {
		return exitConfig(err)
	}
	runDir, err := rundir.Open(ws, opts.runID)
	if err != nil {
		return exitDiagnostic(err)
	}
	meta, err := journal.ReadMetadata(runDir)
	if err != nil {
		return exitDiagnostic(err)
	}

	cfg, err := config.Load(meta.AgentHome)
	if err != nil {
		return exitConfig(err)
	}
	printWarnings(cfg.Warnings)
	if meta.ConfigFingerprint != "" && meta.ConfigFingerprint != cfg.Fingerprint() {
		fmt.Fprintf(os.Stderr, "warning: agent config has changed since run %s started\n", opts.runID)
	}

	if err := env.Load(ws, meta.AgentHome); err != nil {
		return exitConfig(err)
	}
	adapter, err := llmadapter.FromEnv()
	if err != nil {
		return exitConfig(err)
	}

	if opts.wait && meta.Status == journal.StatusWaitingForInput && opts.message == "" {
		if err := waitForResponse(ctx, runDir); err != nil {
			return exitDiagnostic(err)
		}
	}

	maxIter := opts.maxIterations
	if maxIter == 0 {
		maxIter = meta.MaxIterations
	}

	ident, err := rundir.CurrentIdentity(time.Now().Unix())
	if err != nil {
		return exitDiagnostic(err)
	}

	return execute(ctx, executeParams{
		cfg:         cfg,
		adapter:     adapter,
		workspace:   ws,
		runDir:      runDir,
		runID:       opts.runID,
		maxIter:     maxIter,
		interactive: opts.interactive,
		verbose:     opts.verbose,
		format:      result.Format(opts.format),
		prepare: func(eng *engine.Engine) error {
			return eng.PrepareResume(opts.message, opts.force, ident)
		},
	})
}

type executeParams struct {
	cfg         *config.Config
	adapter     llmadapter.Adapter
	workspace   string
	runDir      string
	runID       string
	maxIter     int
	interactive bool
	assumeYes   bool
	verbose     bool
	format      result.Format

	// prepare runs between engine construction and the loop; continue
	// uses it for the status-dependent resume rules.
	prepare func(*engine.Engine) error
}

// execute builds the engine with its engine.log-backed logger, drives the
// loop, formats the RunResult, and exits with the status-mapped code.
func execute(ctx context.Context, p executeParams) error {
	logFile, err := os.OpenFile(rundir.EngineLogPath(p.runDir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return exitDiagnostic(err)
	}
	defer logFile.Close()

	var logOut io.Writer = logFile
	level := "info"
	if p.verbose {
		logOut = io.MultiWriter(logFile, os.Stderr)
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: "json",
		Output: logOut,
	})

	eng, err := engine.New(engine.Params{
		Config:        p.cfg,
		Adapter:       p.adapter,
		Workspace:     p.workspace,
		RunDir:        p.runDir,
		RunID:         p.runID,
		MaxIterations: p.maxIter,
		Interactive:   p.interactive,
		AssumeYes:     p.assumeYes,
		Log:           logger,
	})
	if err != nil {
		return exitDiagnostic(err)
	}

	if p.prepare != nil {
		if err := p.prepare(eng); err != nil {
			eng.Close()
			return exitDiagnostic(err)
		}
	}

	out := eng.Run(ctx)
	eng.Close()

	rr := buildRunResult(p.runID, p.cfg.Agent.Name, p.workspace, out)
	if err := result.Write(os.Stdout, os.Stderr, rr, p.format); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(rr.ExitCode())
	return nil
}

func buildRunResult(runID, agentName, ws string, out *engine.Outcome) result.RunResult {
	rr := result.RunResult{
		SchemaVersion: result.SchemaVersion,
		RunID:         runID,
		Status:        out.Status,
		Metrics: result.Metrics{
			Iterations: out.Iterations,
			DurationMs: out.EndTime.Sub(out.StartTime).Milliseconds(),
			StartTime:  out.StartTime,
			EndTime:    out.EndTime,
			Usage:      out.Usage,
		},
		Metadata: result.RunMetadata{
			AgentName:     agentName,
			WorkspacePath: ws,
		},
	}
	switch out.Status {
	case journal.StatusCompleted:
		rr.Result = out.Result
	case journal.StatusFailed:
		rr.Err = &result.RunError{Kind: out.ErrKind, Message: out.ErrMessage}
	case journal.StatusWaitingForInput:
		rr.Interaction = out.Interaction
	}
	return rr
}

// waitForResponse blocks until interaction/response.txt exists, using an
// fsnotify watch on the interaction directory instead of polling.
func waitForResponse(ctx context.Context, runDir string) error {
	respPath := rundir.InteractionResponsePath(runDir)
	if _, err := os.Stat(respPath); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := rundir.InteractionDir(runDir)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	// The file may have appeared between the stat and the watch.
	if _, err := os.Stat(respPath); err == nil {
		return nil
	}

	fmt.Fprintf(os.Stderr, "waiting for %s ...\n", respPath)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if evt.Name == respPath && evt.Op.Has(fsnotify.Create|fsnotify.Write) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return err
		}
	}
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}
