package context

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deltaengine/delta/internal/config"
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/llmadapter"
)

// Builder assembles the ordered LLM message sequence for one iteration
// from a context manifest, the journal, and the surrounding agent/
// workspace/run paths, per spec §4.E. Source order is LLM priority order.
type Builder struct {
	Manifest  config.ContextManifest
	AgentHome string
	Workspace string
	RunDir    string
	RunID     string

	// InitialUserMessage is the run's originating user turn. It is emitted
	// immediately before the first journal source's replay (or at the end
	// when the manifest declares no journal source) so the reconstructed
	// dialogue reads user -> assistant -> tool in natural order.
	InitialUserMessage string

	// ExtraUserMessages are user turns appended after every source, in
	// order: resume messages supplied via `continue -m` against a finished
	// or interrupted run.
	ExtraUserMessages []string

	// Model bounds the assembled context when it is known: when the
	// estimated token count exceeds the model's window, the oldest
	// replayed dialogue turns are dropped first. Zero values disable
	// trimming.
	Model     string
	MaxTokens int
}

func (b *Builder) env() Env {
	return Env{
		AgentHome:   b.AgentHome,
		Workspace:   b.Workspace,
		RunID:       b.RunID,
		JournalPath: filepath.Join(b.RunDir, "journal.jsonl"),
	}
}

// Build processes every source in declaration order, producing the
// assembled message sequence to send to the LLM adapter.
func (b *Builder) Build(ctx stdcontext.Context) ([]Message, error) {
	var out []Message
	env := b.env()
	userEmitted := false

	for _, src := range b.Manifest.Sources {
		switch src.Kind {
		case config.SourceKindFile:
			msg, ok, err := buildFileSource(*src.File, env)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, *msg)
			}

		case config.SourceKindComputedFile:
			msg, ok, err := buildComputedFileSource(ctx, *src.ComputedFile, env)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, *msg)
			}

		case config.SourceKindJournal:
			if !userEmitted && b.InitialUserMessage != "" {
				out = append(out, Message{Role: RoleUser, Content: b.InitialUserMessage})
				userEmitted = true
			}
			msgs, err := b.buildJournalSource(*src.Journal)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)

		default:
			return nil, fmt.Errorf("unknown context source type %q", src.Kind)
		}
	}

	if !userEmitted && b.InitialUserMessage != "" {
		out = append(out, Message{Role: RoleUser, Content: b.InitialUserMessage})
	}
	for _, m := range b.ExtraUserMessages {
		out = append(out, Message{Role: RoleUser, Content: m})
	}

	return fitToWindow(out, b.Model, b.MaxTokens), nil
}

// cycle groups the journal events of one Think-Act-Observe iteration: one
// THOUGHT, the ACTION_REQUESTs it produced, and their matching
// ACTION_RESULTs.
type cycle struct {
	iteration int
	thought   *journal.Event
	actions   []*journal.Event
	results   map[string]*journal.Event
}

// buildJournalSource replays the journal and reconstructs the native
// prior assistant/tool dialogue, retaining only the most recent
// max_iterations complete cycles when set.
func (b *Builder) buildJournalSource(src config.JournalSource) ([]Message, error) {
	events, err := journal.ReadAll(b.RunDir)
	if err != nil {
		return nil, err
	}

	var order []int
	cycles := map[int]*cycle{}
	getCycle := func(iter int) *cycle {
		c, ok := cycles[iter]
		if !ok {
			c = &cycle{iteration: iter, results: map[string]*journal.Event{}}
			cycles[iter] = c
			order = append(order, iter)
		}
		return c
	}

	for i := range events {
		e := &events[i]
		switch e.Type {
		case journal.TypeThought:
			getCycle(e.Iteration).thought = e
		case journal.TypeActionRequest:
			c := getCycle(e.Iteration)
			c.actions = append(c.actions, e)
		case journal.TypeActionResult:
			// ACTION_RESULT events don't carry Iteration directly; find the
			// owning cycle by matching ActionID against a recorded request.
			for _, iter := range order {
				c := cycles[iter]
				for _, req := range c.actions {
					if req.ActionID == e.ActionID {
						c.results[e.ActionID] = e
					}
				}
			}
		}
	}

	if src.MaxIterations > 0 && len(order) > src.MaxIterations {
		order = order[len(order)-src.MaxIterations:]
	}

	var out []Message
	for _, iter := range order {
		c := cycles[iter]
		if c.thought == nil {
			continue
		}

		content, err := readAssistantContent(b.RunDir, c.thought.LLMInvocationRef)
		if err != nil {
			return nil, err
		}

		assistant := Message{Role: RoleAssistant, Content: content}
		for _, req := range c.actions {
			assistant.ToolCalls = append(assistant.ToolCalls, ToolCall{
				ID:       req.ActionID,
				ToolName: req.ToolName,
				Args:     req.ToolArgs,
			})
		}
		out = append(out, assistant)

		for _, req := range c.actions {
			result, ok := c.results[req.ActionID]
			if !ok {
				continue
			}
			out = append(out, Message{
				Role:       RoleTool,
				Content:    result.Observation,
				ToolCallID: req.ActionID,
			})
		}
	}

	return out, nil
}

// readAssistantContent loads the assistant's textual reply from the
// invocation's recorded response.json. An absent or unparsable file
// yields an empty string rather than failing the whole replay, since the
// audit record (not the replay) is the canonical source of truth for
// what the LLM was actually shown going forward.
func readAssistantContent(runDir, invocationRef string) (string, error) {
	if invocationRef == "" {
		return "", nil
	}
	path := filepath.Join(runDir, "io", "invocations", invocationRef, "response.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil
	}
	var resp llmadapter.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", nil
	}
	return resp.Content, nil
}
