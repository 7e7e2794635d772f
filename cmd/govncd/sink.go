package main

import (
	"github.com/rs/zerolog"

	"github.com/go-rfb/govncd/internal/input"
)

// loggingSink is a placeholder input.Sink: it logs every injected event
// instead of driving the host OS. No example in the reference corpus
// demonstrates cross-platform input injection (the closest, pyautogui, has
// no Go equivalent there), so internal/input.Sink is an interface boundary
// with no concrete OS backend shipped — see DESIGN.md. A real deployment
// wires in a platform-specific Sink here.
type loggingSink struct {
	log zerolog.Logger
}

func newLoggingSink(log zerolog.Logger) *loggingSink {
	return &loggingSink{log: log}
}

func (s *loggingSink) MoveMouse(x, y int) {
	s.log.Debug().Int("x", x).Int("y", y).Msg("input: move mouse")
}

func (s *loggingSink) MouseDown(button input.Button) {
	s.log.Debug().Int("button", int(button)).Msg("input: mouse down")
}

func (s *loggingSink) MouseUp(button input.Button) {
	s.log.Debug().Int("button", int(button)).Msg("input: mouse up")
}

func (s *loggingSink) Scroll(ticks int) {
	s.log.Debug().Int("ticks", ticks).Msg("input: scroll")
}

func (s *loggingSink) KeyDown(name string) {
	s.log.Debug().Str("key", name).Msg("input: key down")
}

func (s *loggingSink) KeyUp(name string) {
	s.log.Debug().Str("key", name).Msg("input: key up")
}
