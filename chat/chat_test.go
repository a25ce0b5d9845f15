package chat

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dksnowdon/gomini/llm"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{ calls int }

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "Echoes its input." }
func (e *echoTool) Parameters() *tools.Schema {
	return &tools.Schema{
		Type: "object",
		Properties: map[string]*tools.Schema{
			"text": {Type: "string"},
		},
		Required: []string{"text"},
	}
}
func (e *echoTool) Sensitive() bool { return false }
func (e *echoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	e.calls++
	text, _ := args["text"].(string)
	return text, nil
}

func newTestEngine(t *testing.T, client llm.Client, reg *tools.Registry) *Engine {
	t.Helper()
	t.Chdir(t.TempDir())
	sess, err := session.New("test")
	require.NoError(t, err)
	if reg == nil {
		reg = tools.NewRegistry(false, nil)
	}
	return New(client, reg, sess)
}

func TestSendMessagePlainText(t *testing.T) {
	mock := &llm.MockClient{Replies: []*llm.Reply{{Text: "hello there"}}}
	e := newTestEngine(t, mock, nil)

	text, err := e.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	require.Len(t, e.Session.History, 2)
	assert.Equal(t, session.RoleUser, e.Session.History[0].Role)
	assert.Equal(t, session.RoleModel, e.Session.History[1].Role)
}

func TestSendMessageToolRound(t *testing.T) {
	mock := &llm.MockClient{Replies: []*llm.Reply{
		{FunctionCalls: []llm.FunctionCall{{Name: "echo", Args: map[string]any{"text": "ping"}}}},
		{Text: "done"},
	}}
	tool := &echoTool{}
	reg := tools.NewRegistry(false, nil)
	reg.Register(tool)
	e := newTestEngine(t, mock, reg)

	text, err := e.SendMessage(context.Background(), "call the tool")
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, 1, tool.calls)

	// user, model(call), user(response), model(text)
	require.Len(t, e.Session.History, 4)
	callTurn := e.Session.History[1]
	respTurn := e.Session.History[2]
	assert.Equal(t, session.RoleModel, callTurn.Role)
	assert.Equal(t, session.RoleUser, respTurn.Role)

	var calls, responses int
	for _, p := range callTurn.Parts {
		if _, ok := p.(session.FunctionCallPart); ok {
			calls++
		}
	}
	for _, p := range respTurn.Parts {
		if fr, ok := p.(session.FunctionResponsePart); ok {
			responses++
			assert.Equal(t, "echo", fr.Name)
			assert.Equal(t, "ping", fr.Content)
		}
	}
	assert.Equal(t, calls, responses)
}

func TestSendMessageMaxTurns(t *testing.T) {
	// A script of one tool-calling reply repeats forever.
	mock := &llm.MockClient{Replies: []*llm.Reply{
		{FunctionCalls: []llm.FunctionCall{{Name: "echo", Args: map[string]any{"text": "again"}}}},
	}}
	tool := &echoTool{}
	reg := tools.NewRegistry(false, nil)
	reg.Register(tool)
	e := newTestEngine(t, mock, reg)

	text, err := e.SendMessage(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, "Error: Max tool execution turns reached.", text)
	assert.Equal(t, 10, tool.calls)

	// user + 10 rounds of (model, user) + final notice.
	require.Len(t, e.Session.History, 22)
	last := e.Session.History[21]
	assert.Equal(t, session.RoleModel, last.Role)
	assert.Equal(t, "Error: Max tool execution turns reached.", last.Parts[0].(session.TextPart).Text)

	// Every call turn is followed by a matching response turn.
	for i := 1; i < 21; i += 2 {
		assert.Equal(t, session.RoleModel, e.Session.History[i].Role)
		assert.Equal(t, session.RoleUser, e.Session.History[i+1].Role)
	}
}

func TestSendMessageBackendErrorKeepsUserTurn(t *testing.T) {
	mock := &llm.MockClient{Err: context.DeadlineExceeded}
	e := newTestEngine(t, mock, nil)

	_, err := e.SendMessage(context.Background(), "hi")
	require.Error(t, err)

	// The user turn survives so the send can be retried; no dangling model
	// turn follows it.
	require.Len(t, e.Session.History, 1)
	assert.Equal(t, session.RoleUser, e.Session.History[0].Role)
}

func TestStreamEventSequence(t *testing.T) {
	mock := &llm.MockClient{Replies: []*llm.Reply{
		{Text: "let me check", FunctionCalls: []llm.FunctionCall{{Name: "echo", Args: map[string]any{"text": "x"}}}},
		{Text: "all done"},
	}}
	reg := tools.NewRegistry(false, nil)
	reg.Register(&echoTool{})
	e := newTestEngine(t, mock, reg)

	var kinds []EventKind
	e.OnEvent = func(ev StreamEvent) { kinds = append(kinds, ev.Kind) }

	_, err := e.SendMessage(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventText, EventToolStart, EventToolResult, EventText}, kinds)
}

func TestToolResultPreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 500)
	mock := &llm.MockClient{Replies: []*llm.Reply{
		{FunctionCalls: []llm.FunctionCall{{Name: "echo", Args: map[string]any{"text": long}}}},
		{Text: "ok"},
	}}
	reg := tools.NewRegistry(false, nil)
	reg.Register(&echoTool{})
	e := newTestEngine(t, mock, reg)

	var preview string
	e.OnEvent = func(ev StreamEvent) {
		if ev.Kind == EventToolResult {
			preview = ev.Text
		}
	}

	_, err := e.SendMessage(context.Background(), "go")
	require.NoError(t, err)
	assert.Len(t, preview, 203)
	assert.True(t, strings.HasSuffix(preview, "..."))

	// The recorded response keeps the full text.
	fr := e.Session.History[2].Parts[0].(session.FunctionResponsePart)
	assert.Len(t, fr.Content, 500)
}

func TestThoughtSignatureOnEveryCallPart(t *testing.T) {
	mock := &llm.MockClient{Replies: []*llm.Reply{
		{
			ThoughtSignature: "sig-abc",
			FunctionCalls: []llm.FunctionCall{
				{Name: "echo", Args: map[string]any{"text": "one"}},
				{Name: "echo", Args: map[string]any{"text": "two"}},
			},
		},
		{Text: "ok"},
	}}
	reg := tools.NewRegistry(false, nil)
	reg.Register(&echoTool{})
	e := newTestEngine(t, mock, reg)

	_, err := e.SendMessage(context.Background(), "go")
	require.NoError(t, err)

	var signatures []string
	for _, p := range e.Session.History[1].Parts {
		if fc, ok := p.(session.FunctionCallPart); ok {
			signatures = append(signatures, fc.ThoughtSignature)
		}
	}
	assert.Equal(t, []string{"sig-abc", "sig-abc"}, signatures)
}

func TestResultPreviewRuneBoundary(t *testing.T) {
	long := strings.Repeat("世", 100)
	preview := resultPreview(long)
	assert.True(t, utf8.ValidString(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))
	// 世 is 3 bytes; the 200-byte cut backs up to the 198-byte boundary.
	assert.Len(t, preview, 201)
}

func TestUnknownToolResultFedBack(t *testing.T) {
	mock := &llm.MockClient{Replies: []*llm.Reply{
		{FunctionCalls: []llm.FunctionCall{{Name: "no_such_tool", Args: map[string]any{}}}},
		{Text: "ok"},
	}}
	e := newTestEngine(t, mock, tools.NewRegistry(false, nil))

	_, err := e.SendMessage(context.Background(), "go")
	require.NoError(t, err)

	fr := e.Session.History[2].Parts[0].(session.FunctionResponsePart)
	assert.Equal(t, "Error: Tool 'no_such_tool' not found.", fr.Content)
}
