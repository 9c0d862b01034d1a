// Package engine drives the Think-Act-Observe loop of spec §4.H: one
// iteration builds the LLM context, runs the pre/post hooks, invokes the
// adapter, executes every proposed tool call as a child process, and
// journals each transition before the next suspension point.
//
// The loop holds no in-memory agent state: every iteration is a function
// of the journal, the workspace, and the loaded config. Interruption,
// ask_human, the iteration cap, and adapter failure all funnel through a
// single termination path that guarantees metadata.json and ENGINE_END
// are written.
package engine

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/deltaengine/delta/internal/config"
	delctx "github.com/deltaengine/delta/internal/context"
	"github.com/deltaengine/delta/internal/hooks"
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/llmadapter"
	"github.com/deltaengine/delta/internal/observability"
	"github.com/deltaengine/delta/internal/result"
	"github.com/deltaengine/delta/internal/retry"
	"github.com/deltaengine/delta/internal/rundir"
	"github.com/deltaengine/delta/internal/toolexec"
	"github.com/deltaengine/delta/internal/toolspec"
)

// DefaultMaxIterations bounds a run when neither the CLI nor the config
// supplies a cap.
const DefaultMaxIterations = 30

// AskHumanTool is the built-in tool name that triggers the
// human-in-the-loop protocol instead of a child process.
const AskHumanTool = "ask_human"

// Params configures one Engine.
type Params struct {
	Config        *config.Config
	Adapter       llmadapter.Adapter
	Workspace     string
	RunDir        string
	RunID         string
	MaxIterations int

	// Interactive selects the synchronous ask_human path: prompt on
	// stderr, answer read from Stdin. When false, ask_human suspends the
	// run with status WAITING_FOR_INPUT.
	Interactive bool

	// AssumeYes answers interactive confirmation prompts with "yes"
	// without reading stdin (the -y flag).
	AssumeYes bool

	Stdin  io.Reader
	Stderr io.Writer

	Log *observability.Logger

	// ExtraUserMessages are user turns appended to every context build,
	// populated by resume (`continue -m` against a finished or
	// interrupted run).
	ExtraUserMessages []string
}

// Outcome is the terminal state of one Run invocation, consumed by the
// result formatter.
type Outcome struct {
	Status      journal.Status
	Result      string
	ErrKind     string
	ErrMessage  string
	Interaction *result.Interaction
	Iterations  int
	Usage       result.Usage
	StartTime   time.Time
	EndTime     time.Time
}

// Engine is one run's loop driver. It owns the journal writer and the
// hook executor for the duration of Run and must be Closed afterwards.
type Engine struct {
	cfg       *config.Config
	adapter   llmadapter.Adapter
	workspace string
	runDir    string
	runID     string
	maxIter   int

	interactive bool
	assumeYes   bool
	stdin       io.Reader
	stderr      io.Writer
	log         *observability.Logger

	store     *journal.Store
	hookExec  *hooks.Executor
	specs     map[string]*toolspec.ToolSpec
	toolDecls []llmadapter.ToolDeclaration
	extraUser []string

	usage      result.Usage
	iterations int
}

// New expands every configured tool, opens the journal, and prepares the
// hook executor. Tool expansion failures are configuration errors and
// surface before any event is written.
func New(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if p.Adapter == nil {
		return nil, fmt.Errorf("engine: adapter is required")
	}
	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	if p.Stderr == nil {
		p.Stderr = os.Stderr
	}
	if p.Stdin == nil {
		p.Stdin = os.Stdin
	}
	if p.Log == nil {
		p.Log = observability.NewLogger(observability.LogConfig{Level: "info", Format: "text", Output: p.Stderr})
	}

	specs := make(map[string]*toolspec.ToolSpec, len(p.Config.Agent.Tools))
	var decls []llmadapter.ToolDeclaration
	for _, def := range p.Config.Agent.Tools {
		spec, err := toolspec.Expand(def)
		if err != nil {
			return nil, err
		}
		specs[spec.Name] = spec
		decls = append(decls, declarationFor(spec))
	}
	decls = append(decls, llmadapter.ToolDeclaration{
		Name:        AskHumanTool,
		Description: "Ask the human operator a question and wait for their reply.",
		Parameters: []llmadapter.ParamDeclaration{
			{Name: "prompt", Description: "The question to show the human.", Required: true},
			{Name: "input_type", Description: "text, password, or confirmation."},
			{Name: "sensitive", Description: "Set to true to suppress echo of the reply."},
		},
	})

	store, err := journal.Open(p.RunDir)
	if err != nil {
		return nil, err
	}

	hookExec, err := hooks.NewExecutor(p.Config.Hooks, p.RunID, p.Workspace, rundir.IOHooksDir(p.RunDir))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Engine{
		cfg:         p.Config,
		adapter:     p.Adapter,
		workspace:   p.Workspace,
		runDir:      p.RunDir,
		runID:       p.RunID,
		maxIter:     maxIter,
		interactive: p.Interactive,
		assumeYes:   p.AssumeYes,
		stdin:       p.Stdin,
		stderr:      p.Stderr,
		log:         p.Log,
		store:       store,
		hookExec:    hookExec,
		specs:       specs,
		toolDecls:   decls,
		extraUser:   p.ExtraUserMessages,
	}, nil
}

// Close releases the journal writer.
func (e *Engine) Close() error {
	return e.store.Close()
}

func declarationFor(spec *toolspec.ToolSpec) llmadapter.ToolDeclaration {
	decl := llmadapter.ToolDeclaration{Name: spec.Name, Description: spec.Description}
	for _, p := range spec.Parameters {
		decl.Parameters = append(decl.Parameters, llmadapter.ParamDeclaration{
			Name:        p.Name,
			Description: p.Description,
			Required:    p.Required,
		})
	}
	return decl
}

// Run drives the loop until a terminal transition. It never returns a Go
// error for in-run failures: every failure mode is reflected in the
// Outcome so the CLI can format it and pick the exit code.
func (e *Engine) Run(ctx stdcontext.Context) *Outcome {
	start := time.Now().UTC()
	ctx = observability.AddRunID(ctx, e.runID)

	meta, err := journal.ReadMetadata(e.runDir)
	if err != nil {
		return e.fail(ctx, start, "metadata", err)
	}
	e.iterations = meta.Iterations

	events, err := e.store.ReadAll()
	if err != nil {
		return e.fail(ctx, start, "journal-corrupt", err)
	}
	if len(events) == 0 {
		if _, err := e.store.Append(journal.Event{
			Type:           journal.TypeEngineStart,
			Timestamp:      start,
			InitialMessage: meta.InitialMessage,
			AgentName:      meta.AgentName,
		}); err != nil {
			return e.fail(ctx, start, "journal", err)
		}
	} else {
		if _, err := e.store.Append(journal.Event{
			Type:      journal.TypeSystemMessage,
			Timestamp: time.Now().UTC(),
			Text:      "run resumed",
		}); err != nil {
			return e.fail(ctx, start, "journal", err)
		}
	}

	for e.iterations < e.maxIter {
		if ctx.Err() != nil {
			return e.interrupted(ctx, start)
		}
		iterCtx := observability.AddIteration(ctx, e.iterations)
		e.log.Debug(iterCtx, "iteration starting")

		e.dispatchHook(iterCtx, hooks.OnIterationStart, nil, nil)

		resp, finished, outcome := e.think(iterCtx, start, meta)
		if outcome != nil {
			return outcome
		}
		if finished {
			return e.complete(ctx, start, resp.Content, "")
		}

		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				return e.interrupted(ctx, start)
			}
			if call.ToolName == AskHumanTool {
				if waiting := e.handleAskHuman(iterCtx, start, call); waiting != nil {
					return waiting
				}
				continue
			}
			e.executeToolCall(iterCtx, call)
		}

		e.dispatchHook(iterCtx, hooks.OnIterationEnd, nil, nil)

		e.iterations++
		if _, err := journal.UpdateMetadata(e.runDir, func(m *journal.Metadata) {
			m.Iterations = e.iterations
		}); err != nil {
			return e.fail(ctx, start, "metadata", err)
		}
	}

	return e.complete(ctx, start, "", fmt.Sprintf("max iterations (%d) reached", e.maxIter))
}

// think performs steps 2-5 of one iteration: context build, pre_llm_request
// hook, adapter invocation, audit persistence, THOUGHT append, and
// post_llm_response hook. A non-nil Outcome short-circuits the run.
func (e *Engine) think(ctx stdcontext.Context, start time.Time, meta *journal.Metadata) (*llmadapter.Response, bool, *Outcome) {
	builder := &delctx.Builder{
		Manifest:           e.cfg.ContextManifest,
		AgentHome:          e.cfg.AgentRoot,
		Workspace:          e.workspace,
		RunDir:             e.runDir,
		RunID:              e.runID,
		InitialUserMessage: meta.InitialMessage,
		ExtraUserMessages:  e.extraUser,
		Model:              e.cfg.Agent.LLM.Model,
	}
	msgs, err := builder.Build(ctx)
	if err != nil {
		return nil, false, e.fail(ctx, start, "context-build", err)
	}

	req := e.composeRequest(msgs)

	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, false, e.fail(ctx, start, "llm-request", err)
	}
	if hr := e.dispatchHook(ctx, hooks.PreLLMRequest, nil, payload); hr != nil && hr.FinalPayload != nil {
		var replaced llmadapter.Request
		if err := json.Unmarshal(hr.FinalPayload, &replaced); err != nil {
			e.log.Warn(ctx, "pre_llm_request produced unparsable final_payload.json; using original payload", "error", err)
		} else {
			req = replaced
		}
	}

	ref := invocationRef(e.iterations)
	resp, invErr := e.invokeLLM(ctx, req)
	if invErr != nil {
		if ctx.Err() != nil {
			return nil, false, e.interrupted(ctx, start)
		}
		return nil, false, e.fail(ctx, start, "llm-adapter", invErr)
	}

	if err := writeInvocation(e.runDir, ref, req, resp); err != nil {
		return nil, false, e.fail(ctx, start, "invocation-audit", err)
	}
	if _, err := e.store.Append(journal.Event{
		Type:             journal.TypeThought,
		Timestamp:        time.Now().UTC(),
		LLMInvocationRef: ref,
		Iteration:        e.iterations,
	}); err != nil {
		return nil, false, e.fail(ctx, start, "journal", err)
	}

	e.usage.InputTokens += resp.Usage.InputTokens
	e.usage.OutputTokens += resp.Usage.OutputTokens
	e.usage.TotalCostUSD += resp.Usage.CostUSD
	if e.usage.ModelUsage == nil {
		e.usage.ModelUsage = map[string]int{}
	}
	e.usage.ModelUsage[req.Model] += resp.Usage.InputTokens + resp.Usage.OutputTokens

	e.dispatchHook(ctx, hooks.PostLLMResponse, nil, nil)

	return resp, resp.Finished(), nil
}

func (e *Engine) composeRequest(msgs []delctx.Message) llmadapter.Request {
	req := llmadapter.Request{
		Model:       e.cfg.Agent.LLM.Model,
		Temperature: e.cfg.Agent.LLM.Temperature,
		MaxTokens:   e.cfg.Agent.LLM.MaxTokens,
		Tools:       e.toolDecls,
	}
	req.Messages = append(req.Messages, llmadapter.Message{Role: "system", Content: e.cfg.SystemPrompt})
	for _, m := range msgs {
		out := llmadapter.Message{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, llmadapter.ToolCall{ID: tc.ID, ToolName: tc.ToolName, Arguments: tc.Args})
		}
		req.Messages = append(req.Messages, out)
	}
	return req
}

// invokeLLM calls the adapter with bounded retries for transient failures.
// Context cancellation and adapter errors wrapped as permanent are not
// retried.
func (e *Engine) invokeLLM(ctx stdcontext.Context, req llmadapter.Request) (*llmadapter.Response, error) {
	var resp *llmadapter.Response
	res := retry.Do(ctx, retry.Exponential(3, 500*time.Millisecond, 8*time.Second), func() error {
		r, err := e.adapter.Complete(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if res.Err != nil {
		return nil, fmt.Errorf("llm adapter failed after %d attempts: %w", res.Attempts, res.Err)
	}
	return resp, nil
}

// executeToolCall runs steps 6b-6d for one non-built-in tool call. Tool
// failure is an observation for the LLM, never an engine error; only the
// journal being unwritable is fatal, and that surfaces on the next append.
func (e *Engine) executeToolCall(ctx stdcontext.Context, call llmadapter.ToolCall) {
	actionID := call.ID
	if actionID == "" {
		actionID = uuid.NewString()
	}
	execRef := actionID
	ctx = observability.AddTool(ctx, call.ToolName)

	spec, known := e.specs[call.ToolName]

	var resolved []string
	if known {
		if argv, _, err := toolexec.BuildArgv(spec, call.Arguments); err == nil {
			resolved = argv
		}
	}

	e.mustAppend(journal.Event{
		Type:            journal.TypeActionRequest,
		Timestamp:       time.Now().UTC(),
		ActionID:        actionID,
		ToolName:        call.ToolName,
		ToolArgs:        call.Arguments,
		ResolvedCommand: resolved,
		ExecutionRef:    execRef,
		Iteration:       e.iterations,
	})

	e.dispatchHook(ctx, hooks.PreToolExecution, hooks.ToolPayload{ToolName: call.ToolName, ToolArgs: call.Arguments}, nil)

	var obs *toolexec.Observation
	if !known {
		exit := -1
		obs = &toolexec.Observation{
			Content:  fmt.Sprintf("tool %q is not defined\n=== EXIT CODE: %d ===", call.ToolName, exit),
			ExitCode: exit,
			Status:   string(journal.ActionFailed),
		}
	} else {
		var err error
		obs, err = toolexec.Execute(ctx, spec, call.Arguments, toolexec.Options{
			WorkDir: e.workspace,
			Env:     e.childEnv(),
			IODir:   filepath.Join(rundir.IOToolExecutionsDir(e.runDir), execRef),
		})
		if err != nil {
			// Spawn failure: surfaced to the LLM as a failed observation.
			e.log.Error(ctx, "tool spawn failed", "error", err)
			obs = &toolexec.Observation{
				Content:  fmt.Sprintf("%v\n=== EXIT CODE: -1 ===", err),
				ExitCode: -1,
				Status:   string(journal.ActionFailed),
			}
		}
	}

	exitCode := obs.ExitCode
	e.dispatchHook(ctx, hooks.PostToolExecution, hooks.ToolPayload{
		ToolName: call.ToolName,
		ToolArgs: call.Arguments,
		Result:   obs.Content,
		ExitCode: &exitCode,
	}, nil)

	e.mustAppend(journal.Event{
		Type:         journal.TypeActionResult,
		Timestamp:    time.Now().UTC(),
		ActionID:     actionID,
		ExecutionRef: execRef,
		ActionStatus: journal.ActionStatus(obs.Status),
		Observation:  obs.Content,
		ExitCode:     &exitCode,
	})

	e.log.Info(ctx, "tool executed", "exit_code", obs.ExitCode, "status", obs.Status)
}

// childEnv is the standard export set every child process receives
// (spec §6.4).
func (e *Engine) childEnv() map[string]string {
	return map[string]string{
		"DELTA_RUN_ID":     e.runID,
		"DELTA_AGENT_HOME": e.cfg.AgentRoot,
		"DELTA_CWD":        e.workspace,
		"JOURNAL_PATH":     rundir.JournalPath(e.runDir),
	}
}

// dispatchHook runs one hook point and journals its audit event. Hook
// failure is never fatal: a FAILED audit is recorded and the loop
// continues (spec §4.F failure policy).
func (e *Engine) dispatchHook(ctx stdcontext.Context, point hooks.Point, payload any, proposedPayload []byte) *hooks.Result {
	res, err := e.hookExec.Dispatch(ctx, point, e.iterations, payload, proposedPayload)
	if err != nil {
		e.log.Error(ctx, "hook dispatch failed", "hook", string(point), "error", err)
		return nil
	}
	if res == nil {
		return nil
	}

	e.mustAppend(journal.Event{
		Type:       journal.TypeHookAudit,
		Timestamp:  time.Now().UTC(),
		HookName:   res.HookName,
		IOPathRef:  res.IOPathRef,
		HookStatus: journal.HookStatus(res.Status),
		DurationMs: res.DurationMs,
	})
	if res.Status == hooks.StatusFailed {
		e.log.Warn(ctx, "hook failed", "hook", res.HookName, "io_path", res.IOPathRef)
	}
	if res.Control != nil {
		e.log.Info(ctx, "hook emitted control.json", "hook", res.HookName, "control", string(res.Control))
	}
	return res
}

// mustAppend appends to the journal, logging (but not recovering from)
// write failures: a journal that cannot be appended to means the next
// append attempt will surface the same error on the fatal path.
func (e *Engine) mustAppend(evt journal.Event) {
	if _, err := e.store.Append(evt); err != nil {
		e.log.Error(stdcontext.Background(), "journal append failed", "type", string(evt.Type), "error", err)
	}
}

func invocationRef(iteration int) string {
	return fmt.Sprintf("%s_%d", time.Now().UTC().Format("20060102T150405.000"), iteration)
}

func writeInvocation(runDir, ref string, req llmadapter.Request, resp *llmadapter.Response) error {
	dir := filepath.Join(rundir.IOInvocationsDir(runDir), ref)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create invocation dir %s: %w", dir, err)
	}

	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	respJSON, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	metaJSON, err := json.MarshalIndent(map[string]any{
		"model":         req.Model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"cost_usd":      resp.Usage.CostUSD,
		"finish_reason": resp.FinishReason,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal invocation metadata: %w", err)
	}

	for name, data := range map[string][]byte{
		"request.json":  reqJSON,
		"response.json": respJSON,
		"metadata.json": metaJSON,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
