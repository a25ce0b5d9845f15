package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dksnowdon/gomini/errors"
)

// RunTerminalTool executes a shell command with a bounded execution time.
// Classified sensitive: under safe mode it runs only after user confirmation.
type RunTerminalTool struct {
	timeout time.Duration
}

func NewRunTerminalTool(timeout time.Duration) *RunTerminalTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RunTerminalTool{timeout: timeout}
}

func (t *RunTerminalTool) Name() string { return "run_terminal" }
func (t *RunTerminalTool) Description() string {
	return fmt.Sprintf("Runs a terminal/shell command and returns its output. Execution is limited to %s.", t.timeout)
}
func (t *RunTerminalTool) Sensitive() bool { return true }

func (t *RunTerminalTool) Parameters() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"command": {Type: "string", Description: "Terminal command to run (e.g. 'git status')"},
		},
		Required: []string{"command"},
	}
}

func (t *RunTerminalTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, ok := args["command"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'command' argument")
	}

	// The bound is enforced here, not by the registry.
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.New("command timed out (%s limit)", t.timeout)
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += fmt.Sprintf("\nSTDERR:\n%s", stderr.String())
	}
	if err != nil {
		return "", errors.Wrapf(err, "command execution failed. Output:\n%s", output)
	}
	if strings.TrimSpace(output) == "" {
		return "(No output)", nil
	}
	return output, nil
}
