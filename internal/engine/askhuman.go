package engine

import (
	"bufio"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/llmadapter"
	"github.com/deltaengine/delta/internal/result"
	"github.com/deltaengine/delta/internal/rundir"
)

// InteractionRequest is the persisted form of a pending ask_human call:
// .delta/<run_id>/interaction/request.json.
type InteractionRequest struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	InputType string    `json:"input_type"`
	Sensitive bool      `json:"sensitive"`
}

// handleAskHuman runs the built-in ask_human tool. In interactive mode it
// prompts on stderr, reads the answer from stdin, and journals the result;
// the returned Outcome is nil and the loop continues. In async mode it
// persists the interaction request, flips the run to WAITING_FOR_INPUT,
// and returns the terminal Outcome (the CLI exits 101).
func (e *Engine) handleAskHuman(ctx stdcontext.Context, start time.Time, call llmadapter.ToolCall) *Outcome {
	actionID := call.ID
	if actionID == "" {
		actionID = uuid.NewString()
	}

	prompt := call.Arguments["prompt"]
	inputType := call.Arguments["input_type"]
	if inputType == "" {
		inputType = "text"
	}
	sensitive := call.Arguments["sensitive"] == "true" || inputType == "password"

	e.mustAppend(journal.Event{
		Type:      journal.TypeActionRequest,
		Timestamp: time.Now().UTC(),
		ActionID:  actionID,
		ToolName:  AskHumanTool,
		ToolArgs:  call.Arguments,
		Iteration: e.iterations,
	})
	e.mustAppend(journal.Event{
		Type:      journal.TypeHumanInputRequest,
		Timestamp: time.Now().UTC(),
		RequestID: actionID,
		Prompt:    prompt,
		InputType: inputType,
		Sensitive: sensitive,
	})

	if !e.interactive {
		return e.suspendForInput(ctx, start, actionID, prompt, inputType, sensitive)
	}

	if e.assumeYes && inputType == "confirmation" {
		e.recordHumanResponse(actionID, "yes")
		return nil
	}

	answer, err := e.promptHuman(prompt, sensitive)
	if err != nil {
		answer = ""
		e.log.Error(ctx, "reading interactive input failed", "error", err)
	}

	e.recordHumanResponse(actionID, answer)
	return nil
}

// recordHumanResponse journals the received answer as both a
// HUMAN_INPUT_RECEIVED event and the ACTION_RESULT closing the ask_human
// call. Also used by resume when the answer arrives via response.txt.
func (e *Engine) recordHumanResponse(actionID, answer string) {
	e.mustAppend(journal.Event{
		Type:      journal.TypeHumanInputReceived,
		Timestamp: time.Now().UTC(),
		RequestID: actionID,
		Response:  answer,
	})
	exit := 0
	e.mustAppend(journal.Event{
		Type:         journal.TypeActionResult,
		Timestamp:    time.Now().UTC(),
		ActionID:     actionID,
		ActionStatus: journal.ActionSuccess,
		Observation:  answer,
		ExitCode:     &exit,
	})
}

func (e *Engine) promptHuman(prompt string, sensitive bool) (string, error) {
	fmt.Fprintf(e.stderr, "\n[ask_human] %s\n> ", prompt)

	if sensitive {
		if f, ok := e.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			line, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(e.stderr)
			return string(line), err
		}
	}

	reader := bufio.NewReader(e.stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// suspendForInput is the async branch: request.json is written, metadata
// flips to WAITING_FOR_INPUT, and guidance is printed to stderr.
func (e *Engine) suspendForInput(ctx stdcontext.Context, start time.Time, actionID, prompt, inputType string, sensitive bool) *Outcome {
	req := InteractionRequest{
		RequestID: actionID,
		Timestamp: time.Now().UTC(),
		Prompt:    prompt,
		InputType: inputType,
		Sensitive: sensitive,
	}
	if err := writeInteractionRequest(e.runDir, req); err != nil {
		return e.fail(ctx, start, "interaction", err)
	}

	if _, err := journal.UpdateMetadata(e.runDir, func(m *journal.Metadata) {
		m.Status = journal.StatusWaitingForInput
		m.Iterations = e.iterations
	}); err != nil {
		return e.fail(ctx, start, "metadata", err)
	}

	fmt.Fprintf(e.stderr, "run %s is waiting for human input:\n  %s\n", e.runID, prompt)
	fmt.Fprintf(e.stderr, "answer with: delta continue --run-id %s -m \"<answer>\"\n", e.runID)
	fmt.Fprintf(e.stderr, "or write the answer to %s and continue without -m\n", rundir.InteractionResponsePath(e.runDir))

	return e.outcome(journal.StatusWaitingForInput, start, func(o *Outcome) {
		o.Interaction = &result.Interaction{
			RequestID: actionID,
			Prompt:    prompt,
			InputType: inputType,
			Sensitive: sensitive,
		}
	})
}

func writeInteractionRequest(runDir string, req InteractionRequest) error {
	dir := rundir.InteractionDir(runDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create interaction dir: %w", err)
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal interaction request: %w", err)
	}
	if err := os.WriteFile(rundir.InteractionRequestPath(runDir), data, 0o644); err != nil {
		return fmt.Errorf("write interaction request: %w", err)
	}
	return nil
}

// readInteractionRequest loads a pending request.json, if any.
func readInteractionRequest(runDir string) (*InteractionRequest, error) {
	data, err := os.ReadFile(rundir.InteractionRequestPath(runDir))
	if err != nil {
		return nil, err
	}
	var req InteractionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse interaction request: %w", err)
	}
	return &req, nil
}
