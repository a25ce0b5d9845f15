// Package tools unifies local tool implementations and connected MCP tool
// servers behind one dispatch contract.
package tools

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/log"
	"github.com/dksnowdon/gomini/mcp"
)

// Schema is the JSON-Schema subset used to describe tool parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Declaration is the backend-facing description of one tool.
type Declaration struct {
	Name        string
	Description string
	Parameters  *Schema
	Sensitive   bool
	// Server is the MCP server providing the tool; empty for local tools.
	Server string
}

// Tool defines the interface for any local action the agent can take.
type Tool interface {
	Name() string
	Description() string
	Parameters() *Schema
	Sensitive() bool
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Outcome classifies the result of one dispatch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDenied
	OutcomeNotFound
	OutcomeExecutionError
	OutcomeTransportError
	OutcomeTimeout
)

// Result is what the conversation engine feeds back into history. Text is
// always model-visible, including for failures; a tool fault must never
// crash the session.
type Result struct {
	Outcome Outcome
	Text    string
}

// ConfirmFunc obtains a synchronous yes/no from the user before a sensitive
// tool runs. Returning false denies the execution.
type ConfirmFunc func(toolName string, args map[string]any) bool

// Registry holds the local tools plus zero or more connected MCP clients.
// Dispatch checks local tools first, then each client in registration order.
type Registry struct {
	local   []Tool
	byName  map[string]Tool
	clients []*mcp.Client

	safeMode    bool
	trustRemote bool
	confirm     ConfirmFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithTrustedRemotes exempts MCP tools from the safe-mode gate. The default
// treats every remote tool as sensitive.
func WithTrustedRemotes() Option {
	return func(r *Registry) { r.trustRemote = true }
}

// NewRegistry creates an empty registry. safeMode is session-scoped; confirm
// is consulted for sensitive tools while it is on. A nil confirm denies.
func NewRegistry(safeMode bool, confirm ConfirmFunc, opts ...Option) *Registry {
	r := &Registry{
		byName:   make(map[string]Tool),
		safeMode: safeMode,
		confirm:  confirm,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a local tool. The first registration of a name wins;
// duplicates are dropped with a warning.
func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name()]; exists {
		log.Default.Warnf("tool '%s' already registered, keeping the first one", t.Name())
		return
	}
	r.byName[t.Name()] = t
	r.local = append(r.local, t)
}

// RegisterMCP attaches a connected MCP client. Its tools become dispatchable
// after any local tool of the same name.
func (r *Registry) RegisterMCP(c *mcp.Client) {
	r.clients = append(r.clients, c)
}

// SetSafeMode toggles the session's safety gate.
func (r *Registry) SetSafeMode(on bool) { r.safeMode = on }

// SafeMode reports the current gate state.
func (r *Registry) SafeMode() bool { return r.safeMode }

// Clients returns the attached MCP clients in registration order.
func (r *Registry) Clients() []*mcp.Client { return r.clients }

// Declarations exports the union of local and discovered remote tools, local
// tools first, in registration order. Name collisions resolve to the first
// occurrence, so two calls without intervening registrations are identical.
func (r *Registry) Declarations() []Declaration {
	var decls []Declaration
	seen := make(map[string]bool)

	for _, t := range r.local {
		decls = append(decls, Declaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
			Sensitive:   t.Sensitive(),
		})
		seen[t.Name()] = true
	}

	for _, c := range r.clients {
		if !c.Connected() {
			continue
		}
		for _, info := range c.Tools() {
			if seen[info.Name] {
				continue
			}
			seen[info.Name] = true
			decls = append(decls, Declaration{
				Name:        info.Name,
				Description: info.Description,
				Parameters:  parseRemoteSchema(info.InputSchema),
				Sensitive:   !r.trustRemote,
				Server:      c.Name,
			})
		}
	}
	return decls
}

// Execute dispatches one tool call. Implementation faults are converted to
// model-visible text, never propagated to the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	if t, ok := r.byName[name]; ok {
		if r.safeMode && t.Sensitive() && !r.confirmed(name, args) {
			return Result{Outcome: OutcomeDenied, Text: "Error: User denied execution."}
		}
		log.Default.Infof("executing local tool: %s", name)
		out, err := t.Execute(ctx, args)
		if err != nil {
			return Result{Outcome: OutcomeExecutionError, Text: fmt.Sprintf("Error executing %s: %v", name, err)}
		}
		return Result{Outcome: OutcomeSuccess, Text: out}
	}

	for _, c := range r.clients {
		if !c.Connected() || !c.HasTool(name) {
			continue
		}
		// Remote tools are gated wholesale under safe mode unless the
		// registry was built with trusted remotes.
		if r.safeMode && !r.trustRemote && !r.confirmed(name, args) {
			return Result{Outcome: OutcomeDenied, Text: "Error: User denied execution."}
		}
		log.Default.Infof("executing MCP tool: %s (server %s)", name, c.Name)
		text, err := c.CallTool(ctx, name, args)
		if err != nil {
			return remoteFailure(name, err)
		}
		return Result{Outcome: OutcomeSuccess, Text: text}
	}

	return Result{Outcome: OutcomeNotFound, Text: fmt.Sprintf("Error: Tool '%s' not found.", name)}
}

func (r *Registry) confirmed(name string, args map[string]any) bool {
	return r.confirm != nil && r.confirm(name, args)
}

func remoteFailure(name string, err error) Result {
	var toolErr *mcp.ToolError
	switch {
	case errors.Is(err, mcp.ErrTimeout):
		return Result{Outcome: OutcomeTimeout, Text: fmt.Sprintf("Error: tool '%s' timed out.", name)}
	case stderrors.As(err, &toolErr):
		return Result{Outcome: OutcomeExecutionError, Text: fmt.Sprintf("Error executing %s: %v", name, err)}
	default:
		return Result{Outcome: OutcomeTransportError, Text: fmt.Sprintf("Error: tool '%s' failed: %v", name, err)}
	}
}

func parseRemoteSchema(raw json.RawMessage) *Schema {
	if len(raw) == 0 {
		return &Schema{Type: "object", Properties: map[string]*Schema{}}
	}
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		log.Default.Warnf("unparseable input schema, exporting empty object: %v", err)
		return &Schema{Type: "object", Properties: map[string]*Schema{}}
	}
	return &s
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
