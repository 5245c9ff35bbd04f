// ABOUTME: Tests for shared tool invocation and a scriptable fake tool used across agent tests
// ABOUTME: Checks argument decoding, JSON result capture and failure masking

package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool records its inputs and answers with a canned output.
type fakeTool struct {
	name   string
	output string
	err    error

	mu     sync.Mutex
	inputs []string
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake " + f.name }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Call(_ context.Context, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return f.output, f.err
}

func (f *fakeTool) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

func staticToolkit(tools ...Tool) Toolkit {
	return func(string) []Tool { return tools }
}

func TestInvokeTool_RecordsJSONResult(t *testing.T) {
	tool := &fakeTool{name: "add_task", output: `{"id":"t1","title":"milk"}`}

	call := invokeTool(context.Background(), slog.Default(), tool, `{"title":"milk"}`)

	assert.Equal(t, "add_task", call.ToolName)
	assert.Equal(t, map[string]any{"title": "milk"}, call.Arguments)
	assert.JSONEq(t, `{"id":"t1","title":"milk"}`, string(call.Result))
}

func TestInvokeTool_WrapsPlainTextAsJSONString(t *testing.T) {
	tool := &fakeTool{name: "echo", output: "hello there"}

	call := invokeTool(context.Background(), slog.Default(), tool, "")

	assert.Equal(t, map[string]any{}, call.Arguments)
	assert.Equal(t, `"hello there"`, string(call.Result))
	assert.Equal(t, []string{"{}"}, tool.calls())
}

func TestInvokeTool_MasksToolErrors(t *testing.T) {
	tool := &fakeTool{name: "list_tasks", err: errors.New("db password is hunter2")}

	call := invokeTool(context.Background(), slog.Default(), tool, `{}`)

	assert.JSONEq(t, `{"error":"tool failed"}`, string(call.Result))
	assert.NotContains(t, string(call.Result), "hunter2")
}

func TestInvokeTool_BadArgumentsStillCallsTool(t *testing.T) {
	tool := &fakeTool{name: "list_tasks", output: `[]`}

	call := invokeTool(context.Background(), slog.Default(), tool, `not json`)

	require.NotNil(t, call.Arguments)
	assert.Empty(t, call.Arguments)
	assert.Equal(t, `[]`, string(call.Result))
}
