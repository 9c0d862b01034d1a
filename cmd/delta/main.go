// Package main provides the CLI entry point for the Delta Engine.
//
// Delta Engine runs AI agents as a stateless Think-Act-Observe loop:
// every capability is an external process and every unit of agent state
// is a file under the run's .delta/ control plane.
//
// # Basic Usage
//
// Start a new run:
//
//	delta run --agent ./my-agent -m "summarize the logs"
//
// Resume a suspended or finished run:
//
//	delta continue --run-id 20260802_101500_9f2c1a -w ./my-agent/workspaces/W001 -m "Alice"
//
// Inspect runs in a workspace:
//
//	delta list-runs -w ./my-agent/workspaces/W001 --resumable
//
// # Environment Variables
//
//   - DELTA_LLM_ADAPTER: command implementing the LLM transport contract
//     (Request JSON on stdin, Response JSON on stdout)
//   - DELTA_API_KEY: API key forwarded to the adapter (legacy provider
//     names are honored as fallbacks)
//   - DELTA_BASE_URL: endpoint override forwarded to the adapter
//
// .env files layer on top of the process environment with priority
// workspace > agent > project root.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the run context so the engine can finish the
	// in-flight child, journal ENGINE_END, and patch metadata. A second
	// signal terminates immediately.
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
		<-sigs
		os.Exit(130)
	}()

	root := buildRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
