package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dksnowdon/gomini/chat"
	"github.com/dksnowdon/gomini/config"
	"github.com/dksnowdon/gomini/llm"
	"github.com/dksnowdon/gomini/log"
	"github.com/dksnowdon/gomini/mcp"
	"github.com/dksnowdon/gomini/persona"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/terminal"
	"github.com/dksnowdon/gomini/tools"
)

func main() {
	llmFlag := flag.String("llm", "", "Backend: 'gemini', 'openai', 'anthropic', 'bedrock' or 'mock'")
	modelFlag := flag.String("model", "", "Model name for the selected backend")
	sessionFlag := flag.String("s", "", "Session name to create or use")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	personaFlag := flag.String("p", "", "Persona to use")
	safeFlag := flag.Bool("safe", true, "Ask before running sensitive tools")
	trustMCPFlag := flag.Bool("trust-mcp", false, "Run MCP server tools without confirmation")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugFlag {
		log.SetLevel("debug")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *llmFlag, *modelFlag, *personaFlag, *safeFlag, *trustMCPFlag)

	var sess *session.Session
	sessionName := *sessionFlag
	if *resumeFlag != "" {
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Resuming session: %s\n", sessionName)
		if *modelFlag == "" && sess.Model != "" {
			cfg.Model = sess.Model
		}
		if *personaFlag == "" && sess.Persona != "" {
			cfg.Persona = sess.Persona
		}
	} else {
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Starting new session: %s\n", sessionName)
	}

	if cfg.Persona == "" {
		cfg.Persona = "default"
	}
	if !persona.Known(cfg.Persona) {
		fmt.Fprintf(os.Stderr, "Unknown persona '%s'. Available: %s\n", cfg.Persona, strings.Join(persona.Names(), ", "))
		os.Exit(1)
	}

	sess.Model = cfg.Model
	sess.Persona = cfg.Persona
	if err := sess.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session '%s': %+v\n", sessionName, err)
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := newBackend(ctx, cfg.LLMClient, cfg.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.LLMClient, err)
		os.Exit(1)
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	engine := chat.New(client, nil, sess)
	engine.SystemInstruction = persona.Get(cfg.Persona).Prompt

	term, registry := buildTerminal(ctx, cfg, engine)
	defer func() {
		for _, c := range registry.Clients() {
			if err := c.Close(); err != nil {
				log.Default.Debugf("closing MCP client %s: %v", c.Name, err)
			}
		}
	}()

	term.SwitchModel = func(ctx context.Context, name string) (llm.Client, error) {
		return newBackend(ctx, cfg.LLMClient, name)
	}

	initialPrompt := strings.Join(flag.Args(), " ")
	fmt.Println("gomini is ready. Type your prompt, or /help for commands.")
	if err := term.Run(ctx, initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Session stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}

// applyFlags overlays command-line flags on the loaded config. Explicit flags
// win over config file values.
func applyFlags(cfg *config.Config, llmName, model, personaName string, safe, trustMCP bool) {
	if llmName != "" {
		cfg.LLMClient = llmName
	}
	if model != "" {
		cfg.Model = model
	}
	if personaName != "" {
		cfg.Persona = personaName
	}
	if isFlagSet("safe") {
		cfg.SafeModeFlag = &safe
	}
	if trustMCP {
		cfg.TrustMCPTools = true
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// newBackend creates the model client named in the config. An empty or
// unknown name falls back to the mock backend.
func newBackend(ctx context.Context, name, model string) (llm.Client, error) {
	switch name {
	case "gemini":
		return llm.NewGeminiClient(ctx, model)
	case "openai":
		return llm.NewOpenAIClient(ctx, model)
	case "anthropic":
		return llm.NewAnthropicClient(ctx, model)
	case "bedrock":
		return llm.NewBedrockClient(ctx, model)
	default:
		return &llm.MockClient{}, nil
	}
}

// buildTerminal wires the tool registry, the local tool catalog and any
// configured MCP servers, then creates the terminal over them.
func buildTerminal(ctx context.Context, cfg *config.Config, engine *chat.Engine) (*terminal.Terminal, *tools.Registry) {
	var opts []tools.Option
	if cfg.TrustMCPTools {
		opts = append(opts, tools.WithTrustedRemotes())
	}

	// The registry needs the terminal's confirmation prompt and the terminal
	// needs the registry, so the confirm func is bound after construction.
	var term *terminal.Terminal
	registry := tools.NewRegistry(cfg.SafeMode(), func(name string, args map[string]any) bool {
		return term.Confirm(name, args)
	}, opts...)

	registry.Register(tools.NewReadFileTool(&cfg.FilesystemAccess))
	registry.Register(tools.NewWriteFileTool(&cfg.FilesystemAccess))
	registry.Register(tools.NewListDirectoryTool())
	registry.Register(tools.NewSearchFilesTool(&cfg.FilesystemAccess))
	registry.Register(tools.NewRunTerminalTool(cfg.CommandTimeout()))
	registry.Register(tools.NewWebSearchTool(&cfg.WebSearch))

	for _, server := range cfg.MCPServers {
		client := mcp.NewClient(server.Name, server.Command, server.Args...)
		if err := client.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not connect MCP server '%s': %v\n", server.Name, err)
			continue
		}
		fmt.Printf("Connected MCP server %s (%d tools).\n", server.Name, len(client.Tools()))
		registry.RegisterMCP(client)
	}

	engine.Registry = registry
	term = terminal.New(engine, registry)
	return term, registry
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "gomini"
	}
	return fmt.Sprintf("%s_%s", filepath.Base(wd), time.Now().Format("2006-01-02_15-04-05"))
}
