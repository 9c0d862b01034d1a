// Package journal implements the run's append-only event log: a single
// writer that assigns monotonic sequence numbers to JSONL records, plus
// the metadata.json lifecycle for the owning run.
package journal

import "time"

// Type discriminates the kind of journal event. Every record carries one
// discriminator plus the optional payload fields for its kind; readers
// fail fast on unknown tags rather than degrading silently.
type Type string

// Event kinds, per spec §3.1.
const (
	TypeEngineStart        Type = "ENGINE_START"
	TypeThought            Type = "THOUGHT"
	TypeActionRequest      Type = "ACTION_REQUEST"
	TypeActionResult       Type = "ACTION_RESULT"
	TypeHookAudit          Type = "HOOK_EXECUTION_AUDIT"
	TypeHumanInputRequest  Type = "HUMAN_INPUT_REQUEST"
	TypeHumanInputReceived Type = "HUMAN_INPUT_RECEIVED"
	TypeEngineEnd          Type = "ENGINE_END"
	TypeError              Type = "ERROR"
	TypeSystemMessage      Type = "SYSTEM_MESSAGE"
)

// ActionStatus is the outcome recorded on an ACTION_RESULT event.
type ActionStatus string

const (
	ActionSuccess ActionStatus = "SUCCESS"
	ActionFailed  ActionStatus = "FAILED"
)

// HookStatus is the outcome recorded on a HOOK_EXECUTION_AUDIT event.
type HookStatus string

const (
	HookSuccess HookStatus = "SUCCESS"
	HookFailed  HookStatus = "FAILED"
)

// Event is one record in journal.jsonl. Exactly one of the payload
// pointers below is populated for a given Type; Seq and Timestamp are
// common to every event.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`

	// ENGINE_START
	InitialMessage string `json:"initial_message,omitempty"`
	AgentName      string `json:"agent_name,omitempty"`

	// THOUGHT
	LLMInvocationRef string `json:"llm_invocation_ref,omitempty"`
	Iteration        int    `json:"iteration,omitempty"`

	// ACTION_REQUEST / ACTION_RESULT
	ActionID        string            `json:"action_id,omitempty"`
	ToolName        string            `json:"tool_name,omitempty"`
	ToolArgs        map[string]string `json:"tool_args,omitempty"`
	ResolvedCommand []string          `json:"resolved_command,omitempty"`
	ExecutionRef    string            `json:"execution_ref,omitempty"`
	ActionStatus    ActionStatus      `json:"status,omitempty"`
	Observation     string            `json:"observation_content,omitempty"`
	ExitCode        *int              `json:"exit_code,omitempty"`

	// HOOK_EXECUTION_AUDIT
	HookName   string     `json:"hook_name,omitempty"`
	IOPathRef  string     `json:"io_path_ref,omitempty"`
	HookStatus HookStatus `json:"hook_status,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`

	// HUMAN_INPUT_REQUEST / HUMAN_INPUT_RECEIVED
	RequestID string `json:"request_id,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	InputType string `json:"input_type,omitempty"`
	Sensitive bool   `json:"sensitive,omitempty"`
	Response  string `json:"response,omitempty"`

	// ENGINE_END
	FinalStatus string `json:"final_status,omitempty"`
	Message     string `json:"message,omitempty"`

	// ERROR
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// SYSTEM_MESSAGE
	Text string `json:"text,omitempty"`
}
