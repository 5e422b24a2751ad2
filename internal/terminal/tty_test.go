//go:build linux

package terminal

import (
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

func canonical(t *testing.T, fd int) bool {
	t.Helper()
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		t.Fatalf("get termios: %v", err)
	}
	return termios.Lflag&unix.ICANON != 0
}

func TestTerminalSetupRestoreOnce(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	output := make(chan string, 64)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				output <- string(buf[:n])
			}
			if err != nil {
				close(output)
				return
			}
		}
	}()

	fd := int(tty.Fd())
	before := canonical(t, fd)

	term := NewTerminal(tty, tty, TerminalOptions{Kitty: true, Logger: zaptest.NewLogger(t)})
	if err := term.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := term.Setup(); err != nil {
		t.Fatalf("second Setup: %v", err)
	}
	if canonical(t, fd) {
		t.Fatal("terminal still in canonical mode after Setup")
	}
	if !term.Active() {
		t.Fatal("Active() = false after Setup")
	}

	if err := term.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := term.Restore(); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	if canonical(t, fd) != before {
		t.Fatal("canonical mode not restored")
	}

	var got strings.Builder
	deadline := time.After(5 * time.Second)
	for !strings.Contains(got.String(), popKittyFlags) {
		select {
		case s, ok := <-output:
			if !ok {
				t.Fatalf("pty closed early, got %q", got.String())
			}
			got.WriteString(s)
		case <-deadline:
			t.Fatalf("timed out waiting for restore sequences, got %q", got.String())
		}
	}

	out := got.String()
	for seq, want := range map[string]int{
		enableBracketedPaste:  1,
		disableBracketedPaste: 1,
		enableFocusReporting:  1,
		disableFocusReporting: 1,
		pushKittyFlags:        1,
		popKittyFlags:         1,
	} {
		if n := strings.Count(out, seq); n != want {
			t.Errorf("%q written %d times, want %d", seq, n, want)
		}
	}
}
