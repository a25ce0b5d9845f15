// Package llm abstracts the model backends. Each client translates the
// session's part-based history into its provider's wire format and back.
package llm

import (
	"context"
	"fmt"

	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
)

// FunctionCall is a tool invocation requested by the model. ID is set only
// by backends that issue call ids.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Request carries everything a backend needs for one generation round.
type Request struct {
	History           []session.Content
	Tools             []tools.Declaration
	SystemInstruction string
	// OnText receives text fragments as the backend produces them. May be
	// nil. Backends without streaming support call it once with the full
	// text.
	OnText func(string)
}

// Reply is one model response: final text, zero or more function calls, and
// an opaque thought signature to echo on the next round (Gemini only).
type Reply struct {
	Text             string
	FunctionCalls    []FunctionCall
	ThoughtSignature string
}

// Client is the interface for interacting with a model backend.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Reply, error)
}

// MockClient replays scripted replies. With no script it parrots the last
// user message. When the script runs out, the last reply repeats, which
// makes exhaustion scenarios easy to drive in tests.
type MockClient struct {
	Replies []*Reply
	Err     error

	// Requests records every request received, for assertions.
	Requests []*Request

	next int
}

func (m *MockClient) Generate(ctx context.Context, req *Request) (*Reply, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Replies) == 0 {
		text := fmt.Sprintf("I am a mock model. The history has %d turns.", len(req.History))
		if req.OnText != nil {
			req.OnText(text)
		}
		return &Reply{Text: text}, nil
	}

	reply := m.Replies[m.next]
	if m.next < len(m.Replies)-1 {
		m.next++
	}
	if req.OnText != nil && reply.Text != "" {
		req.OnText(reply.Text)
	}
	return reply, nil
}
