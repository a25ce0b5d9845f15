package mcp

import (
	"bufio"
	"encoding/json"
	"io"
	"os/exec"
	"sync"

	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/log"
)

// transport owns the server subprocess and its stdio pipes. Stdout carries
// newline-delimited JSON-RPC; stderr is drained continuously so the child
// never blocks on a full pipe. No protocol logic lives here.
type transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	// Stdin is a single-writer resource; concurrent callers must not
	// interleave partial lines.
	writeMu sync.Mutex
}

func spawn(name, command string, args []string) (*transport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open stdin pipe for '%s'", name)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open stdout pipe for '%s'", name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open stderr pipe for '%s'", name)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start MCP server '%s'", name)
	}

	go drainStderr(name, stderr)

	return &transport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// writeMessage serializes v and writes it as one newline-terminated line.
func (t *transport) writeMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize JSON-RPC message")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return errors.Wrapf(err, "failed to write to MCP server stdin")
	}
	return nil
}

// readLine blocks until the next line arrives or the stream closes.
func (t *transport) readLine() ([]byte, error) {
	return t.stdout.ReadBytes('\n')
}

// close terminates the child process. Pending reads on the stdout pipe
// unblock with an error once the process is gone.
func (t *transport) close() error {
	if err := t.stdin.Close(); err != nil {
		log.Default.Debugf("closing stdin pipe: %v", err)
	}
	if t.cmd.Process != nil {
		if err := t.cmd.Process.Kill(); err != nil {
			return err
		}
	}
	// Reap the child so it doesn't linger as a zombie.
	go t.cmd.Wait()
	return nil
}

func drainStderr(name string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Default.Debugf("mcp[%s] stderr: %s", name, scanner.Text())
	}
}
