// Package log carries the CLI-side progress indicator used while a
// forensics shadow run is in flight. All output goes to stderr so the
// run's JSON result on stdout stays machine-readable.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ProgressIndicator shows a spinner while a shadow run executes and a
// one-line outcome when it finishes or fails.
type ProgressIndicator struct {
	mu        sync.Mutex
	name      string
	total     int
	startTime time.Time
	spinner   *spinner
}

// ProgressConfig configures indicator behavior.
type ProgressConfig struct {
	ShowSpinner bool
}

// DefaultProgressConfig enables the spinner. Callers gate construction
// on a TTY check, so there is no extra quiet mode here.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{ShowSpinner: true}
}

// NewProgressIndicator starts an indicator for one named operation.
func NewProgressIndicator(name string, total int, config ProgressConfig) *ProgressIndicator {
	pi := &ProgressIndicator{
		name:      name,
		total:     total,
		startTime: time.Now(),
	}
	if config.ShowSpinner {
		pi.spinner = newSpinner(name)
		pi.spinner.start()
	}
	return pi
}

// FinishWithMessage stops the spinner and prints a success line.
func (pi *ProgressIndicator) FinishWithMessage(message string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.stopSpinner()
	elapsed := time.Since(pi.startTime).Round(time.Millisecond)
	fmt.Fprintf(os.Stderr, "\r\033[K%s: %s (%v)\n", pi.name, message, elapsed)
}

// Fail stops the spinner and prints a failure line.
func (pi *ProgressIndicator) Fail(reason string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.stopSpinner()
	elapsed := time.Since(pi.startTime).Round(time.Millisecond)
	fmt.Fprintf(os.Stderr, "\r\033[K%s failed: %s (%v)\n", pi.name, reason, elapsed)
}

func (pi *ProgressIndicator) stopSpinner() {
	if pi.spinner != nil {
		pi.spinner.stop()
		pi.spinner = nil
	}
}

type spinner struct {
	label string
	done  chan struct{}
	once  sync.Once
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func newSpinner(label string) *spinner {
	return &spinner{label: label, done: make(chan struct{})}
}

func (s *spinner) start() {
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		frame := 0
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\r\033[K%s %s", spinnerFrames[frame], s.label)
				frame = (frame + 1) % len(spinnerFrames)
			}
		}
	}()
}

func (s *spinner) stop() {
	s.once.Do(func() { close(s.done) })
}
