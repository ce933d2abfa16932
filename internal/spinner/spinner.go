// Package spinner renders a terminal activity indicator whose message can be
// updated while it runs.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is an animated progress indicator. Start it with Start; it is safe
// to Update and Stop from any goroutine.
type Spinner struct {
	w        io.Writer
	mu       sync.Mutex
	message  string
	maxWidth int
	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:        w,
		message:  message,
		maxWidth: len(message),
		done:     make(chan struct{}),
		cleared:  make(chan struct{}),
	}
	go s.loop()
	return s
}

// Update replaces the spinner's message on the next frame.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	if len(message) > s.maxWidth {
		s.maxWidth = len(message)
	}
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	i := 0
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			width := s.maxWidth
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", width+2)) //nolint:errcheck
			close(s.cleared)
			return
		case <-time.After(80 * time.Millisecond):
			s.mu.Lock()
			message := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s %s", frames[i%len(frames)], message) //nolint:errcheck
			i++
		}
	}
}
