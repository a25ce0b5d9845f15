// Package terminal implements the interactive command-line front end: the
// prompt loop, slash commands, tool confirmation prompts and live rendering
// of model output and tool activity.
package terminal

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dksnowdon/gomini/chat"
	"github.com/dksnowdon/gomini/llm"
	"github.com/dksnowdon/gomini/mcp"
	"github.com/dksnowdon/gomini/persona"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
)

// ANSI escape sequences used for output styling.
const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
)

// Terminal runs the interactive session.
type Terminal struct {
	engine   *chat.Engine
	registry *tools.Registry

	// SwitchModel replaces the backend when the user runs /model. Left nil,
	// the command only reports the active model.
	SwitchModel func(ctx context.Context, name string) (llm.Client, error)

	in      *bufio.Reader
	out     io.Writer
	spinner *Spinner
}

// New creates a Terminal over the given engine and registry.
func New(engine *chat.Engine, registry *tools.Registry) *Terminal {
	t := &Terminal{
		engine:   engine,
		registry: registry,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
	t.spinner = NewSpinner(t.out, "Thinking...")
	engine.OnEvent = t.render
	return t
}

// Confirm asks the user to approve a sensitive tool execution. It satisfies
// tools.ConfirmFunc.
func (t *Terminal) Confirm(toolName string, args map[string]any) bool {
	t.spinner.Stop()
	fmt.Fprintf(t.out, "%sAllow execution of %s with args %v? [y/N]%s ", colorYellow, toolName, args, colorReset)
	line, err := t.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// Run starts the prompt loop. An optional initial prompt is processed before
// the first read. Returns when the user exits or stdin closes.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		t.processMessage(ctx, initialPrompt)
	}

	for {
		fmt.Fprintf(t.out, "%sYou >%s ", colorGreen, colorReset)
		line, err := t.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.out)
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := t.runCommand(ctx, input); quit {
				return nil
			}
			continue
		}

		t.processMessage(ctx, input)
	}
}

func (t *Terminal) processMessage(ctx context.Context, message string) {
	t.spinner.Start()
	_, err := t.engine.SendMessage(ctx, message)
	t.spinner.Stop()
	if err != nil {
		fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
		return
	}
	fmt.Fprintln(t.out)
}

// render displays stream events as they arrive.
func (t *Terminal) render(ev chat.StreamEvent) {
	t.spinner.Stop()
	switch ev.Kind {
	case chat.EventText:
		fmt.Fprint(t.out, ev.Text)
	case chat.EventToolStart:
		fmt.Fprintf(t.out, "\n%s[tool] %s %v%s\n", colorCyan, ev.ToolName, ev.Args, colorReset)
	case chat.EventToolResult:
		color := colorDim
		if ev.Outcome != tools.OutcomeSuccess {
			color = colorRed
		}
		fmt.Fprintf(t.out, "%s%s%s\n", color, ev.Text, colorReset)
		t.spinner.Start()
	}
}

// runCommand handles a slash command. It returns true when the session
// should end.
func (t *Terminal) runCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	command, args := fields[0], fields[1:]

	switch command {
	case "/exit", "/quit":
		return true
	case "/help":
		t.printHelp()
	case "/clear":
		t.engine.Session.Clear()
		if err := t.engine.Session.Save(); err != nil {
			fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
			return false
		}
		fmt.Fprintln(t.out, "History cleared.")
	case "/safe":
		t.cmdSafe(args)
	case "/model":
		t.cmdModel(ctx, args)
	case "/persona":
		t.cmdPersona(args)
	case "/image":
		t.cmdMedia(ctx, args, imageMIMETypes, "/image <path> [prompt]")
	case "/video":
		t.cmdMedia(ctx, args, videoMIMETypes, "/video <path> [prompt]")
	case "/load":
		t.cmdLoad(args)
	case "/mcp":
		t.cmdMCP(ctx, args)
	default:
		fmt.Fprintf(t.out, "Unknown command %s. Try /help.\n", command)
	}
	return false
}

func (t *Terminal) printHelp() {
	fmt.Fprint(t.out, `Commands:
  /help                          show this help
  /exit, /quit                   end the session
  /clear                         clear the conversation history
  /safe [on|off]                 show or set safe mode
  /model [name]                  show or switch the model
  /persona [name]                show or switch the persona
  /image <path> [prompt]         send an image with an optional prompt
  /video <path> [prompt]         send a video with an optional prompt
  /load <name>                   load a saved session
  /mcp connect <name> <cmd> [args...]  connect a tool server
  /mcp list                      list connected tool servers
`)
}

func (t *Terminal) cmdSafe(args []string) {
	if len(args) == 0 {
		state := "off"
		if t.registry.SafeMode() {
			state = "on"
		}
		fmt.Fprintf(t.out, "Safe mode is %s.\n", state)
		return
	}
	switch args[0] {
	case "on":
		t.registry.SetSafeMode(true)
		fmt.Fprintln(t.out, "Safe mode enabled.")
	case "off":
		t.registry.SetSafeMode(false)
		fmt.Fprintln(t.out, "Safe mode disabled.")
	default:
		fmt.Fprintln(t.out, "Usage: /safe [on|off]")
	}
}

func (t *Terminal) cmdModel(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(t.out, "Model: %s\n", t.engine.Session.Model)
		return
	}
	if t.SwitchModel == nil {
		fmt.Fprintln(t.out, "Model switching is not available.")
		return
	}
	client, err := t.SwitchModel(ctx, args[0])
	if err != nil {
		fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
		return
	}
	t.engine.Client = client
	t.engine.Session.Model = args[0]
	fmt.Fprintf(t.out, "Switched to %s.\n", args[0])
}

func (t *Terminal) cmdPersona(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(t.out, "Persona: %s (available: %s)\n",
			t.engine.Session.Persona, strings.Join(persona.Names(), ", "))
		return
	}
	name := args[0]
	if !persona.Known(name) {
		fmt.Fprintf(t.out, "Unknown persona %q. Available: %s\n", name, strings.Join(persona.Names(), ", "))
		return
	}
	p := persona.Get(name)
	t.engine.SystemInstruction = p.Prompt
	t.engine.Session.Persona = name
	fmt.Fprintf(t.out, "Persona set to %s.\n", name)
}

var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var videoMIMETypes = map[string]string{
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

func (t *Terminal) cmdMedia(ctx context.Context, args []string, mimeTypes map[string]string, usage string) {
	if len(args) == 0 {
		fmt.Fprintf(t.out, "Usage: %s\n", usage)
		return
	}
	path := args[0]
	mimeType, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		fmt.Fprintf(t.out, "Unsupported file type %q.\n", filepath.Ext(path))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
		return
	}

	prompt := strings.Join(args[1:], " ")
	if prompt == "" {
		prompt = "Describe this."
	}
	parts := []session.Part{
		session.InlineDataPart{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)},
		session.TextPart{Text: prompt},
	}

	t.spinner.Start()
	_, err = t.engine.SendParts(ctx, parts...)
	t.spinner.Stop()
	if err != nil {
		fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
		return
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) cmdLoad(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(t.out, "Usage: /load <name>")
		return
	}
	sess, err := session.Load(args[0])
	if err != nil {
		fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
		return
	}
	t.engine.Session = sess
	if sess.Persona != "" {
		t.engine.SystemInstruction = persona.Get(sess.Persona).Prompt
	}
	fmt.Fprintf(t.out, "Loaded session %s (%d turns).\n", sess.Name, len(sess.History))
}

func (t *Terminal) cmdMCP(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(t.out, "Usage: /mcp connect <name> <cmd> [args...] | /mcp list")
		return
	}
	switch args[0] {
	case "list":
		for _, c := range t.registry.Clients() {
			fmt.Fprintf(t.out, "%s: %d tools\n", c.Name, len(c.Tools()))
		}
	case "connect":
		if len(args) < 3 {
			fmt.Fprintln(t.out, "Usage: /mcp connect <name> <cmd> [args...]")
			return
		}
		client := mcp.NewClient(args[1], args[2], args[3:]...)
		if err := client.Connect(ctx); err != nil {
			fmt.Fprintf(t.out, "%sError: %v%s\n", colorRed, err, colorReset)
			return
		}
		t.registry.RegisterMCP(client)
		fmt.Fprintf(t.out, "Connected to %s (%d tools).\n", client.Name, len(client.Tools()))
	default:
		fmt.Fprintln(t.out, "Usage: /mcp connect <name> <cmd> [args...] | /mcp list")
	}
}
