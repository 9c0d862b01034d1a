// Package observability provides structured logging for the engine.
//
// # Overview
//
// Every run writes a JSON engine.log inside the run directory
// (machine-readable, one record per line); with -v the same records are
// also mirrored to stderr for the operator. Both come from one Logger,
// which layers three behaviors on top of log/slog:
//
//  1. Run correlation - run_id, iteration, and tool are carried in the
//     context and stamped onto every record automatically.
//  2. Redaction - API keys and other secrets are scrubbed from messages
//     and field values before they reach any output. DELTA_API_KEY and
//     the legacy provider key names must never appear in engine.log.
//  3. Level and format control - the -v flag lowers the level to debug;
//     format is json or text per LogConfig (the CLI uses json).
//
// # Usage
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: engineLogFile,
//	})
//	ctx = observability.AddRunID(ctx, runID)
//	ctx = observability.AddIteration(ctx, 3)
//	logger.Info(ctx, "Tool executed", "tool", "count_lines", "exit_code", 0)
//
// The result formatter, not this package, owns stdout: stdout carries only
// the structured RunResult (or raw payload), and everything diagnostic
// goes through a Logger bound to stderr or engine.log.
package observability
