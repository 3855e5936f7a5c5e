// Package filter narrows a watched event stream with expr-lang expressions
// such as `eventType == "post_tool_use_failure" && agentName == "planner"`.
package filter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gosuda/agentboard/internal/domain"
)

// Env is what an expression sees. Fields that do not apply to the item being
// matched are zero; board events only carry Type and Timestamp.
type Env struct {
	Type          string    `expr:"type"`
	ProjectID     string    `expr:"projectId"`
	AgentName     string    `expr:"agentName"`
	EventType     string    `expr:"eventType"`
	Status        string    `expr:"status"`
	ToolName      string    `expr:"toolName"`
	DurationMs    int64     `expr:"durationMs"`
	Summary       string    `expr:"summary"`
	CorrelationID string    `expr:"correlationId"`
	Level         string    `expr:"level"`
	Message       string    `expr:"message"`
	Timestamp     time.Time `expr:"timestamp"`
}

// Filter is a compiled boolean expression. The zero Filter matches everything.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile checks the expression against Env. An empty expression yields a
// filter that matches everything.
func Compile(source string) (*Filter, error) {
	if source == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("filter.Compile: %w", err)
	}
	return &Filter{source: source, program: program}, nil
}

func (f *Filter) String() string { return f.source }

func (f *Filter) match(env Env) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("filter.Filter.match: %w", err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// MatchHookEvent evaluates the filter against one hook event.
func (f *Filter) MatchHookEvent(e domain.HookEventSummary) (bool, error) {
	env := Env{
		Type:      string(domain.MessageHookEvent),
		ProjectID: e.ProjectID,
		AgentName: e.AgentName,
		EventType: string(e.EventType),
		Status:    string(e.Status),
		Summary:   e.Summary,
		Timestamp: e.Timestamp,
	}
	if e.ToolName != nil {
		env.ToolName = *e.ToolName
	}
	if e.DurationMs != nil {
		env.DurationMs = *e.DurationMs
	}
	if e.CorrelationID != nil {
		env.CorrelationID = *e.CorrelationID
	}
	return f.match(env)
}

// MatchLogEntry evaluates the filter against one activity entry.
func (f *Filter) MatchLogEntry(e domain.LogEntry) (bool, error) {
	return f.match(Env{
		Type:      string(domain.MessageActivityEntry),
		ProjectID: e.ProjectID,
		AgentName: e.AgentName,
		Level:     string(e.Level),
		Message:   e.Message,
		Timestamp: e.Timestamp,
	})
}

// Apply filters a stream message. Batches are narrowed to matching items;
// keep is false when nothing in the message matches.
func (f *Filter) Apply(msg domain.Message) (out domain.Message, keep bool, err error) {
	if f == nil || f.program == nil {
		return msg, true, nil
	}

	switch msg.Type {
	case domain.MessageHookEvent:
		return applyBatch(msg, f.MatchHookEvent)
	case domain.MessageActivityEntry:
		return applyBatch(msg, f.MatchLogEntry)
	default:
		ok, err := f.match(Env{Type: string(msg.Type), Timestamp: msg.Timestamp})
		return msg, ok, err
	}
}

func applyBatch[T any](msg domain.Message, match func(T) (bool, error)) (domain.Message, bool, error) {
	items, err := domain.DecodeOneOrMany[T](msg.Data)
	if err != nil {
		return msg, false, fmt.Errorf("filter.Apply: decode %s: %w", msg.Type, err)
	}

	kept := items[:0]
	for _, item := range items {
		ok, err := match(item)
		if err != nil {
			return msg, false, err
		}
		if ok {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return msg, false, nil
	}
	if len(kept) == len(items) {
		return msg, true, nil
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return msg, false, fmt.Errorf("filter.Apply: encode %s: %w", msg.Type, err)
	}
	msg.Data = data
	return msg, true, nil
}
