package terminal

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Rorical/RoriAgent/internal/logging"
)

const (
	enableBracketedPaste  = "\x1b[?2004h"
	disableBracketedPaste = "\x1b[?2004l"
	enableFocusReporting  = "\x1b[?1004h"
	disableFocusReporting = "\x1b[?1004l"
	pushKittyFlags        = "\x1b[>1u"
	popKittyFlags         = "\x1b[<u"
)

type TerminalOptions struct {
	// Kitty pushes the disambiguate-escape-codes flag. Set it only when
	// the terminal answered the capability probe.
	Kitty  bool
	Logger *zap.Logger
}

// Terminal switches the controlling terminal into the modes the decoder
// expects and puts it back afterwards.
type Terminal struct {
	in   *os.File
	out  *os.File
	opts TerminalOptions
	log  *zap.Logger

	mu     sync.Mutex
	active bool
	state  *term.State
}

func NewTerminal(in, out *os.File, opts TerminalOptions) *Terminal {
	return &Terminal{
		in:   in,
		out:  out,
		opts: opts,
		log:  logging.OrNop(opts.Logger).Named("tty"),
	}
}

// Setup enters raw mode and enables bracketed paste and focus reports.
// Calling it again while already set up does nothing, so a paste the
// decoder is in the middle of is not cut short.
func (t *Terminal) Setup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return nil
	}

	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		t.state = state
	}

	seq := enableBracketedPaste + enableFocusReporting
	if t.opts.Kitty {
		seq += pushKittyFlags
	}
	if _, err := t.out.WriteString(seq); err != nil {
		t.restoreMode()
		return fmt.Errorf("failed to enable terminal modes: %w", err)
	}
	t.active = true
	t.log.Debug("terminal modes enabled", zap.Bool("raw", t.state != nil), zap.Bool("kitty", t.opts.Kitty))
	return nil
}

// Restore undoes Setup. Only the first call after a Setup has an effect.
func (t *Terminal) Restore() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil
	}
	t.active = false

	seq := disableBracketedPaste + disableFocusReporting
	if t.opts.Kitty {
		seq += popKittyFlags
	}
	_, werr := t.out.WriteString(seq)
	rerr := t.restoreMode()
	t.log.Debug("terminal modes restored")
	if werr != nil {
		return fmt.Errorf("failed to disable terminal modes: %w", werr)
	}
	return rerr
}

func (t *Terminal) restoreMode() error {
	if t.state == nil {
		return nil
	}
	state := t.state
	t.state = nil
	if err := term.Restore(int(t.in.Fd()), state); err != nil {
		return fmt.Errorf("failed to restore terminal state: %w", err)
	}
	return nil
}

// Active reports whether Setup has been applied and not yet restored.
func (t *Terminal) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
