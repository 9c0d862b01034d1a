package llmadapter

import "testing"

func TestResponseFinished(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want bool
	}{
		{"stop with no tool calls", Response{Content: "done", FinishReason: "stop"}, true},
		{"end_turn with no tool calls", Response{Content: "done", FinishReason: "end_turn"}, true},
		{"stop_sequence with no tool calls", Response{FinishReason: "stop_sequence"}, true},
		{"empty finish reason counts as stop", Response{Content: "done"}, true},
		{"truncated reply is not final", Response{Content: "partial", FinishReason: "length"}, false},
		{"filtered reply is not final", Response{FinishReason: "content_filter"}, false},
		{"tool calls pending", Response{
			FinishReason: "tool_calls",
			ToolCalls:    []ToolCall{{ID: "c1", ToolName: "echo"}},
		}, false},
		{"tool calls with stop reason still pending", Response{
			FinishReason: "stop",
			ToolCalls:    []ToolCall{{ID: "c1", ToolName: "echo"}},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Finished(); got != tt.want {
				t.Errorf("Finished() = %v, want %v", got, tt.want)
			}
		})
	}
}
