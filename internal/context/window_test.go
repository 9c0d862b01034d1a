package context

import (
	"strings"
	"testing"
)

func TestWindowFor(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"claude-sonnet-4-20250514", 200000},
		{"gpt-4o-mini", 128000},
		{"gpt-4", 8192},
		{"gemini-1.5-pro", 1048576},
		{"some-unknown-model", defaultWindowTokens},
		{"", defaultWindowTokens},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := WindowFor(tt.model); got != tt.want {
				t.Errorf("WindowFor(%q) = %d, want %d", tt.model, got, tt.want)
			}
		})
	}
}

func TestEstimateTokensCountsToolCalls(t *testing.T) {
	plain := Message{Role: RoleAssistant, Content: "hello"}
	withCall := Message{
		Role:    RoleAssistant,
		Content: "hello",
		ToolCalls: []ToolCall{
			{ToolName: "count_lines", Args: map[string]string{"file": "/tmp/data.txt"}},
		},
	}
	if EstimateTokens(withCall) <= EstimateTokens(plain) {
		t.Error("tool call arguments should add to the estimate")
	}
}

func TestFitToWindowNoopUnderBudget(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "hi"},
	}
	got := fitToWindow(msgs, "claude-sonnet-4", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}

func TestFitToWindowDropsOldestDialogueFirst(t *testing.T) {
	big := strings.Repeat("x", 400) // ~100 tokens per message
	msgs := []Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "task"},
		{Role: RoleAssistant, Content: big, ToolCalls: []ToolCall{{ID: "a1", ToolName: "t"}}},
		{Role: RoleTool, Content: big, ToolCallID: "a1"},
		{Role: RoleAssistant, Content: "recent answer"},
	}

	got := fitToWindow(msgs, "", 150)

	for _, m := range got {
		if m.Role == RoleTool && m.ToolCallID == "a1" {
			t.Error("tool result survived after its assistant turn was dropped")
		}
	}
	if got[0].Role != RoleSystem || got[1].Role != RoleUser {
		t.Error("system and user turns must never be dropped")
	}
	last := got[len(got)-1]
	if last.Content != "recent answer" {
		t.Errorf("most recent assistant turn should survive, got %q", last.Content)
	}
}

func TestFitToWindowDropsToolResultWithItsRequest(t *testing.T) {
	big := strings.Repeat("y", 2000)
	msgs := []Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleAssistant, Content: big, ToolCalls: []ToolCall{{ID: "a1", ToolName: "t"}}},
		{Role: RoleTool, Content: big, ToolCallID: "a1"},
		{Role: RoleAssistant, Content: big, ToolCalls: []ToolCall{{ID: "a2", ToolName: "t"}}},
		{Role: RoleTool, Content: big, ToolCallID: "a2"},
	}

	got := fitToWindow(msgs, "", 1100)

	seenCalls := map[string]bool{}
	for _, m := range got {
		for _, tc := range m.ToolCalls {
			seenCalls[tc.ID] = true
		}
	}
	for _, m := range got {
		if m.Role == RoleTool && !seenCalls[m.ToolCallID] {
			t.Errorf("orphan tool result for %s", m.ToolCallID)
		}
	}
}
