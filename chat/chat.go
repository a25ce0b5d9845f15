// Package chat runs the multi-turn conversation loop: it sends the session
// history to the model, executes the tool calls the model requests, feeds the
// results back, and repeats until the model answers in plain text.
package chat

import (
	"context"
	"unicode/utf8"

	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/llm"
	"github.com/dksnowdon/gomini/log"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
)

// maxToolTurns bounds the number of model->tool rounds per user message.
const maxToolTurns = 10

// maxTurnsNotice is returned as the final answer when the bound is hit.
const maxTurnsNotice = "Error: Max tool execution turns reached."

// previewLimit is how much of a tool result is surfaced in stream events.
const previewLimit = 200

// EventKind discriminates stream events.
type EventKind int

const (
	// EventText is a fragment of model output text.
	EventText EventKind = iota
	// EventToolStart marks the beginning of a tool execution.
	EventToolStart
	// EventToolResult carries a tool's outcome and a preview of its output.
	EventToolResult
)

// StreamEvent is one unit of conversation progress, emitted as it happens so
// a front end can render text and tool activity live.
type StreamEvent struct {
	Kind EventKind

	// Text is the output fragment for EventText, or the result preview for
	// EventToolResult.
	Text string

	// ToolName and Args are set for EventToolStart and EventToolResult.
	ToolName string
	Args     map[string]any

	// Outcome is set for EventToolResult.
	Outcome tools.Outcome
}

// Engine drives one conversation over a session.
type Engine struct {
	Client   llm.Client
	Registry *tools.Registry
	Session  *session.Session

	// SystemInstruction is prepended to every request, typically a persona
	// prompt.
	SystemInstruction string

	// OnEvent receives stream events. May be nil.
	OnEvent func(StreamEvent)
}

// New creates an Engine over the given backend, tool registry and session.
func New(client llm.Client, registry *tools.Registry, sess *session.Session) *Engine {
	return &Engine{Client: client, Registry: registry, Session: sess}
}

// SendMessage runs one full user exchange and returns the model's final text.
// Hitting the tool-turn bound is not an error: the notice text is returned
// with a nil error and recorded in the history like any other answer.
func (e *Engine) SendMessage(ctx context.Context, message string) (string, error) {
	return e.SendParts(ctx, session.TextPart{Text: message})
}

// SendParts is SendMessage for multimodal input, e.g. text plus inline image
// or video data.
//
// History is committed one completed round at a time. A round is either the
// final text answer, or a model turn holding function calls plus the user
// turn holding their responses. A failed or cancelled round commits nothing,
// so the saved history never contains a call without its response.
func (e *Engine) SendParts(ctx context.Context, parts ...session.Part) (string, error) {
	pending := []session.Content{{Role: session.RoleUser, Parts: parts}}

	for turn := 0; ; turn++ {
		if turn >= maxToolTurns {
			pending = append(pending, session.NewModelText(maxTurnsNotice))
			e.commit(pending)
			e.emit(StreamEvent{Kind: EventText, Text: maxTurnsNotice})
			return maxTurnsNotice, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		history := make([]session.Content, 0, len(e.Session.History)+len(pending))
		history = append(history, e.Session.History...)
		history = append(history, pending...)

		reply, err := e.Client.Generate(ctx, &llm.Request{
			History:           history,
			Tools:             e.Registry.Declarations(),
			SystemInstruction: e.SystemInstruction,
			OnText: func(fragment string) {
				e.emit(StreamEvent{Kind: EventText, Text: fragment})
			},
		})
		if err != nil {
			// The user's turn survives a backend failure so a retried send
			// continues the same conversation. Completed tool rounds were
			// committed already; the failed round leaves no trace.
			e.commit(pending)
			return "", errors.Wrapf(err, "model request failed")
		}

		if len(reply.FunctionCalls) == 0 {
			pending = append(pending, session.NewModelText(reply.Text))
			e.commit(pending)
			return reply.Text, nil
		}

		modelParts := make([]session.Part, 0, len(reply.FunctionCalls)+1)
		if reply.Text != "" {
			modelParts = append(modelParts, session.TextPart{Text: reply.Text})
		}
		responseParts := make([]session.Part, 0, len(reply.FunctionCalls))
		for _, fc := range reply.FunctionCalls {
			// Every call part of the round carries the same continuation
			// token; replayed history must echo it on each one.
			call := session.FunctionCallPart{
				ID:               fc.ID,
				Name:             fc.Name,
				Args:             fc.Args,
				ThoughtSignature: reply.ThoughtSignature,
			}
			modelParts = append(modelParts, call)

			if err := ctx.Err(); err != nil {
				return "", err
			}
			e.emit(StreamEvent{Kind: EventToolStart, ToolName: fc.Name, Args: fc.Args})
			result := e.Registry.Execute(ctx, fc.Name, fc.Args)
			e.emit(StreamEvent{
				Kind:     EventToolResult,
				ToolName: fc.Name,
				Args:     fc.Args,
				Text:     resultPreview(result.Text),
				Outcome:  result.Outcome,
			})
			responseParts = append(responseParts, session.FunctionResponsePart{
				ID:      fc.ID,
				Name:    fc.Name,
				Content: result.Text,
			})
		}

		pending = append(pending,
			session.Content{Role: session.RoleModel, Parts: modelParts},
			session.Content{Role: session.RoleUser, Parts: responseParts},
		)
		e.commit(pending)
		pending = nil
	}
}

// commit appends the turns to the session and persists it.
func (e *Engine) commit(turns []session.Content) {
	if len(turns) == 0 {
		return
	}
	e.Session.Append(turns...)
	if err := e.Session.Save(); err != nil {
		log.Default.Warnf("failed to save session: %v", err)
	}
}

func (e *Engine) emit(ev StreamEvent) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// resultPreview truncates a tool result for display, backing up to a rune
// boundary so the cut never splits a multi-byte character.
func resultPreview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
