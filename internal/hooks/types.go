// Package hooks implements the lifecycle hook executor: the file-based
// IPC protocol around the engine's eight hook points. Hooks are arbitrary
// subprocesses, not in-process callbacks; the file layout IS the
// interface. Each dispatch materializes an input/ directory, spawns the
// configured command, captures execution_meta/, and reads output/ back.
package hooks

// Point identifies one of the engine's eight lifecycle hook points.
type Point string

const (
	PreLLMRequest     Point = "pre_llm_request"
	PostLLMResponse   Point = "post_llm_response"
	PreToolExecution  Point = "pre_tool_execution"
	PostToolExecution Point = "post_tool_execution"
	OnError           Point = "on_error"
	OnRunEnd          Point = "on_run_end"
	OnIterationStart  Point = "on_iteration_start"
	OnIterationEnd    Point = "on_iteration_end"
)

// Status is the outcome of one hook invocation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Envelope is input/context.json: the small, stable envelope every hook
// invocation receives regardless of point, per spec §9 ("do not introduce
// language-level abstractions over hook payloads beyond a small envelope
// type").
type Envelope struct {
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
	Point     Point  `json:"point"`
	Payload   any    `json:"payload,omitempty"`
}

// ToolPayload is the hook-specific payload for pre_tool_execution and
// post_tool_execution.
type ToolPayload struct {
	ToolName string            `json:"tool_name"`
	ToolArgs map[string]string `json:"tool_args,omitempty"`
	Result   string            `json:"tool_result,omitempty"`
	ExitCode *int              `json:"exit_code,omitempty"`
}

// ErrorPayload is the hook-specific payload for on_error.
type ErrorPayload struct {
	ErrorMessage string `json:"error_message"`
}

// Result describes one completed hook invocation for the caller to
// journal as a HOOK_EXECUTION_AUDIT event.
type Result struct {
	HookName     string
	Point        Point
	IOPathRef    string
	Status       Status
	DurationMs   int64
	FinalPayload []byte // non-nil only for pre_llm_request when output/final_payload.json existed
	Control      []byte // output/control.json contents when present; advisory, logged only
	Err          error  // spawn-level error (command not found, etc); a non-zero exit is not an error
}
