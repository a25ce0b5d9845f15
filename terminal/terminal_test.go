package terminal

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dksnowdon/gomini/chat"
	"github.com/dksnowdon/gomini/llm"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(t *testing.T, input string) (*Terminal, *bytes.Buffer) {
	t.Helper()
	t.Chdir(t.TempDir())
	sess, err := session.New("test")
	require.NoError(t, err)

	reg := tools.NewRegistry(true, nil)
	engine := chat.New(&llm.MockClient{}, reg, sess)

	var out bytes.Buffer
	term := New(engine, reg)
	term.in = bufio.NewReader(strings.NewReader(input))
	term.out = &out
	term.spinner = NewSpinner(&out, "Thinking...")
	return term, &out
}

func TestConfirmParsesAnswer(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tc := range cases {
		term, _ := newTestTerminal(t, tc.input)
		got := term.Confirm("run_terminal", map[string]any{"command": "ls"})
		assert.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

func TestCommandSafeToggle(t *testing.T) {
	term, out := newTestTerminal(t, "")

	term.runCommand(context.Background(), "/safe off")
	assert.False(t, term.registry.SafeMode())

	term.runCommand(context.Background(), "/safe on")
	assert.True(t, term.registry.SafeMode())

	term.runCommand(context.Background(), "/safe")
	assert.Contains(t, out.String(), "Safe mode is on.")
}

func TestCommandPersona(t *testing.T) {
	term, out := newTestTerminal(t, "")

	term.runCommand(context.Background(), "/persona coder")
	assert.Equal(t, "coder", term.engine.Session.Persona)
	assert.NotEmpty(t, term.engine.SystemInstruction)

	term.runCommand(context.Background(), "/persona pirate")
	assert.Contains(t, out.String(), "Unknown persona")
	assert.Equal(t, "coder", term.engine.Session.Persona)
}

func TestCommandExit(t *testing.T) {
	term, _ := newTestTerminal(t, "")
	assert.True(t, term.runCommand(context.Background(), "/exit"))
	assert.True(t, term.runCommand(context.Background(), "/quit"))
	assert.False(t, term.runCommand(context.Background(), "/help"))
}

func TestCommandClear(t *testing.T) {
	term, out := newTestTerminal(t, "")
	term.engine.Session.Append(session.NewUserText("hi"))

	term.runCommand(context.Background(), "/clear")
	assert.Empty(t, term.engine.Session.History)
	assert.Contains(t, out.String(), "History cleared.")
}

func TestUnknownCommand(t *testing.T) {
	term, out := newTestTerminal(t, "")
	term.runCommand(context.Background(), "/dance")
	assert.Contains(t, out.String(), "Unknown command /dance")
}

func TestRunExitsOnEOF(t *testing.T) {
	term, _ := newTestTerminal(t, "")
	require.NoError(t, term.Run(context.Background(), ""))
}

func TestSpinnerStartStop(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinner(&out, "Thinking...")
	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.Stop()
	s.Stop()
	assert.Contains(t, out.String(), "Thinking...")
}
