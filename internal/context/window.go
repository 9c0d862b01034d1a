package context

import "unicode/utf8"

// tokensPerChar is the conservative chars-to-tokens estimate used when
// bounding assembled context. The builder only needs a safety margin, not
// tokenizer-exact counts.
const tokensPerChar = 0.25

// defaultWindowTokens is assumed when the model is unknown.
const defaultWindowTokens = 128000

// modelWindows maps known model ID prefixes to their context window sizes.
// Matching is by prefix so dated releases (claude-sonnet-4-20250514 etc.)
// resolve without enumerating every revision.
var modelWindows = map[string]int{
	"claude-":  200000,
	"gpt-4o":   128000,
	"gpt-4":    8192,
	"o1":       200000,
	"gemini-":  1048576,
	"deepseek": 65536,
}

// WindowFor returns the assumed context window for a model ID.
func WindowFor(model string) int {
	best := 0
	window := defaultWindowTokens
	for prefix, size := range modelWindows {
		if len(prefix) > best && hasPrefix(model, prefix) {
			best = len(prefix)
			window = size
		}
	}
	return window
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// EstimateTokens estimates the token cost of one message, counting the
// role/framing overhead as a small constant.
func EstimateTokens(m Message) int {
	chars := utf8.RuneCountInString(m.Content)
	for _, tc := range m.ToolCalls {
		chars += utf8.RuneCountInString(tc.ToolName)
		for k, v := range tc.Args {
			chars += utf8.RuneCountInString(k) + utf8.RuneCountInString(v)
		}
	}
	return int(float64(chars)*tokensPerChar) + 4
}

// EstimateTotal sums EstimateTokens across msgs.
func EstimateTotal(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m)
	}
	return total
}
