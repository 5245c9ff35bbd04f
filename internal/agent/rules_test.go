// ABOUTME: Tests for the offline RuleAgent command vocabulary
// ABOUTME: Verifies tool dispatch, task resolution by number or title, and help fallback

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTasks = `{"tasks":[
	{"id":"t-milk","title":"Buy milk","is_completed":false},
	{"id":"t-dog","title":"Walk the dog","is_completed":true}
],"total":2,"completed":1,"pending":1}`

type ruleFixture struct {
	list, add, complete, del *fakeTool
	agent                    *RuleAgent
}

func newRuleFixture() *ruleFixture {
	f := &ruleFixture{
		list:     &fakeTool{name: "list_tasks", output: twoTasks},
		add:      &fakeTool{name: "add_task", output: `{"id":"t-new","title":"Call mom","is_completed":false}`},
		complete: &fakeTool{name: "complete_task", output: `{"id":"t-milk","title":"Buy milk","is_completed":true}`},
		del:      &fakeTool{name: "delete_task", output: `{"id":"t-dog","deleted":true}`},
	}
	f.agent = NewRuleAgent(staticToolkit(f.list, f.add, f.complete, f.del), nil)
	return f
}

func (f *ruleFixture) run(t *testing.T, msg string) *Result {
	t.Helper()
	res, err := f.agent.Run(context.Background(), &Request{Owner: "alice", Message: msg})
	require.NoError(t, err)
	return res
}

func TestRuleAgent_Add(t *testing.T) {
	f := newRuleFixture()

	res := f.run(t, "remind me to Call mom")

	assert.Equal(t, `Added "Call mom" to your tasks.`, res.Content)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "add_task", res.ToolCalls[0].ToolName)
	assert.Equal(t, map[string]any{"title": "Call mom"}, res.ToolCalls[0].Arguments)
}

func TestRuleAgent_List(t *testing.T) {
	f := newRuleFixture()

	res := f.run(t, "show my tasks")

	assert.Contains(t, res.Content, "You have 2 tasks (1 pending, 1 done):")
	assert.Contains(t, res.Content, "1. [ ] Buy milk")
	assert.Contains(t, res.Content, "2. [x] Walk the dog")
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "list_tasks", res.ToolCalls[0].ToolName)
}

func TestRuleAgent_CompleteByNumber(t *testing.T) {
	f := newRuleFixture()

	res := f.run(t, "complete 1")

	assert.Equal(t, `Marked "Buy milk" as done.`, res.Content)
	require.Len(t, res.ToolCalls, 1, "lookup call is not recorded")
	assert.Equal(t, map[string]any{"task_id": "t-milk"}, res.ToolCalls[0].Arguments)
}

func TestRuleAgent_DeleteByTitle(t *testing.T) {
	f := newRuleFixture()

	res := f.run(t, "remove the dog")

	assert.Equal(t, `Deleted "Walk the dog".`, res.Content)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "delete_task", res.ToolCalls[0].ToolName)
	assert.Equal(t, map[string]any{"task_id": "t-dog"}, res.ToolCalls[0].Arguments)
}

func TestRuleAgent_UnknownTask(t *testing.T) {
	f := newRuleFixture()

	res := f.run(t, "done 7")

	assert.Equal(t, `I couldn't find a task matching "7".`, res.Content)
	assert.Empty(t, res.ToolCalls)
	assert.Empty(t, f.complete.calls())
}

func TestRuleAgent_ToolErrorSurfaced(t *testing.T) {
	f := newRuleFixture()
	f.add.output = `{"error":"Task title cannot be empty."}`

	res := f.run(t, "add   .")

	assert.Equal(t, "Task title cannot be empty.", res.Content)
}

func TestRuleAgent_HelpFallback(t *testing.T) {
	f := newRuleFixture()

	res := f.run(t, "what's the weather like?")

	assert.Equal(t, ruleHelpText, res.Content)
	assert.Empty(t, res.ToolCalls)
	assert.Empty(t, f.list.calls())
}

func TestResolveTask(t *testing.T) {
	tasks := []taskRef{
		{ID: "a", Title: "Buy milk"},
		{ID: "b", Title: "Buy bread"},
	}

	tests := []struct {
		ref    string
		wantID string
		found  bool
	}{
		{ref: "2", wantID: "b", found: true},
		{ref: "#1", wantID: "a", found: true},
		{ref: "task 2", wantID: "b", found: true},
		{ref: "buy bread", wantID: "b", found: true},
		{ref: "milk as done", wantID: "a", found: true},
		{ref: "0", found: false},
		{ref: "eggs", found: false},
		{ref: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := resolveTask(tasks, tt.ref)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}
