package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner renders a braille activity indicator on one line while the model
// is thinking. Stop erases the line, so output printed afterwards starts at
// the left margin.
type Spinner struct {
	out     io.Writer
	message string

	mu      sync.Mutex
	done    chan struct{}
	stopped sync.WaitGroup
}

func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{out: out, message: message}
}

func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.stopped.Add(1)

	go func(done chan struct{}) {
		defer s.stopped.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		frame := 0
		for {
			select {
			case <-done:
				fmt.Fprintf(s.out, "\r%*s\r", len(s.message)+2, "")
				return
			case <-ticker.C:
				fmt.Fprintf(s.out, "\r%c %s", spinnerFrames[frame%len(spinnerFrames)], s.message)
				frame++
			}
		}
	}(s.done)
}

// Stop halts the spinner and clears its line. Safe to call repeatedly.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	close(s.done)
	s.done = nil
	s.mu.Unlock()
	s.stopped.Wait()
}
