// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder creates a command and wires it to
// its handler in handlers.go.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deltaengine/delta/internal/config"
)

// checkMaxIterations rejects an explicit --max-iterations <= 0 at parse
// time: zero iterations is never silently looped or silently no-op'd.
func checkMaxIterations(cmd *cobra.Command, value int) error {
	if cmd.Flags().Changed("max-iterations") && value <= 0 {
		return exitConfig(fmt.Errorf("%w: --max-iterations must be at least 1", config.ErrInvalidMaxIterations))
	}
	return nil
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "delta",
		Short:         "Delta Engine: file-native execution framework for AI agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		buildRunCmd(),
		buildContinueCmd(),
		buildListRunsCmd(),
		buildJanitorCmd(),
		buildInitCmd(),
		buildToolCmd(),
		buildSchemaCmd(),
	)
	return root
}

// =============================================================================
// Run Command
// =============================================================================

func buildRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new agent run",
		Long: `Start a new run of an agent project inside a workspace.

A run is one bounded execution of the Think-Act-Observe loop. Each run
gets its own directory under the workspace's .delta/ control plane with
an append-only journal as the single source of truth. run never resumes
an existing run; use "delta continue" for that.`,
		Example: `  # Run with an explicit message
  delta run --agent ./my-agent -m "count the lines in data.csv"

  # Run inside a specific workspace, asking questions interactively
  delta run --agent ./my-agent -m "deploy" -w ./my-agent/workspaces/W002 -i`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMaxIterations(cmd, opts.maxIterations); err != nil {
				return err
			}
			return runRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.agent, "agent", ".", "Path to the agent project")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Initial user message (required)")
	cmd.Flags().StringVarP(&opts.workDir, "work-dir", "w", "", "Workspace directory (default: new Wnnn)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Iteration cap (default 30)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging on stderr")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Answer ask_human on the terminal instead of suspending")
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "Auto-answer interactive confirmation prompts with yes")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Client-specified run ID (must be unique in the workspace)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text|json|raw")
	cmd.MarkFlagRequired("message")

	return cmd
}

// =============================================================================
// Continue Command
// =============================================================================

func buildContinueCmd() *cobra.Command {
	var opts continueOptions

	cmd := &cobra.Command{
		Use:   "continue",
		Short: "Resume a specific run",
		Long: `Resume a run by ID.

Whether -m is required depends on the run's status: WAITING_FOR_INPUT
accepts -m as the pending answer (or reads an already-written
response.txt), INTERRUPTED treats -m as optional, and COMPLETED/FAILED
require -m as a new user turn. A run still marked RUNNING is probed via
its recorded PID and reclaimed if the process is gone.`,
		Example: `  # Answer a pending ask_human
  delta continue --run-id 20260802_101500_9f2c1a -w ./agent/workspaces/W001 -m "Alice"

  # Block until response.txt appears, then resume
  delta continue --run-id 20260802_101500_9f2c1a -w ./agent/workspaces/W001 --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMaxIterations(cmd, opts.maxIterations); err != nil {
				return err
			}
			return runContinue(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Run ID to resume (required)")
	cmd.Flags().StringVarP(&opts.workDir, "work-dir", "w", "", "Workspace directory (required)")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "User message (requirement depends on run status)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Iteration cap override")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging on stderr")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Answer ask_human on the terminal instead of suspending")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Resume a RUNNING run recorded on another host")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Wait for interaction/response.txt before resuming a WAITING_FOR_INPUT run")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text|json|raw")
	cmd.MarkFlagRequired("run-id")
	cmd.MarkFlagRequired("work-dir")

	return cmd
}

// =============================================================================
// List Runs Command
// =============================================================================

func buildListRunsCmd() *cobra.Command {
	var opts listRunsOptions

	cmd := &cobra.Command{
		Use:   "list-runs",
		Short: "List runs in a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListRuns(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workDir, "work-dir", "w", "", "Workspace directory (default: latest Wnnn of the agent in the current directory)")
	cmd.Flags().BoolVar(&opts.resumable, "resumable", false, "Only runs that continue can act on")
	cmd.Flags().StringVar(&opts.status, "status", "", "Only runs with this exact status")
	cmd.Flags().BoolVar(&opts.first, "first", false, "Only the most recently updated match")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text|json")

	return cmd
}

// =============================================================================
// Janitor Command
// =============================================================================

func buildJanitorCmd() *cobra.Command {
	var opts janitorOptions

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Reclaim orphaned RUNNING runs in a workspace",
		Long: `Probe every run marked RUNNING and transition the orphans (dead PID,
or PID reused by an unrelated process) to INTERRUPTED so they become
resumable. Runs whose recorded process is still alive are left alone.

With --schedule the sweep repeats on a cron expression until
interrupted, for workspaces shared by unattended orchestration.`,
		Example: `  # One sweep
  delta janitor -w ./agent/workspaces/W001

  # Sweep every five minutes
  delta janitor -w ./agent/workspaces/W001 --schedule "*/5 * * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJanitor(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workDir, "work-dir", "w", "", "Workspace directory (required)")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Cron expression for a recurring sweep")
	cmd.MarkFlagRequired("work-dir")

	return cmd
}

// =============================================================================
// Init Command
// =============================================================================

func buildInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init NAME",
		Short: "Scaffold a minimal agent project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.name = args[0]
			return runInit(opts)
		},
	}

	cmd.Flags().StringVar(&opts.template, "template", "minimal", "Scaffold template")
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "Overwrite existing files without asking")

	return cmd
}

// =============================================================================
// Tool Commands
// =============================================================================

func buildToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Tool definition utilities",
	}
	cmd.AddCommand(buildToolExpandCmd())
	return cmd
}

func buildSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "schema {agent|hooks|context}",
		Short:     "Print the JSON Schema for a config file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"agent", "hooks", "context"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(args[0])
		},
	}
	return cmd
}

func buildToolExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand PATH",
		Short: "Print the normalized form of the tool definitions in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolExpand(args[0])
		},
	}
	return cmd
}
