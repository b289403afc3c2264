package glyphterm

import (
	"errors"
	"os"
	"slices"
	"strings"
	"testing"
	"time"
)

func spawnTestShell(t *testing.T, rows, cols int) *PtySession {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	s, err := Spawn(SpawnOptions{
		Shell: "/bin/sh",
		Env:   []string{"PATH=/usr/bin:/bin", "PS1=$ ", "COLUMNS=999", "LINES=999"},
		Rows:  rows,
		Cols:  cols,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// pump feeds shell output into e until done returns true or the deadline passes.
func pump(t *testing.T, s *PtySession, e *Engine, done func() bool) {
	t.Helper()
	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, res, err := s.ReadNonblocking(buf, 10*time.Millisecond)
		switch res {
		case ReadData:
			e.Feed(buf[:n])
		case ReadClosed:
			return
		case ReadError:
			t.Fatalf("read: %v", err)
		}
		if done() {
			return
		}
	}
}

// screenContains reports whether any row contains want.
func screenContains(e *Engine, want string) bool {
	rows, _ := e.Size()
	for row := 0; row < rows; row++ {
		if strings.Contains(e.LineContent(row), want) {
			return true
		}
	}
	return false
}

// waitPrompt pumps output until the shell's "$ " prompt is on screen with the
// cursor right after it, and returns the cursor position.
func waitPrompt(t *testing.T, s *PtySession, e *Engine) (row, col int) {
	t.Helper()
	atPrompt := func() bool {
		row, col, _ := e.Cursor()
		return col == 2 && strings.TrimSpace(e.LineContent(row)) == "$"
	}
	pump(t, s, e, atPrompt)
	if !atPrompt() {
		t.Fatalf("shell prompt never appeared, screen:\n%s", screenDump(e))
	}
	row, col, _ = e.Cursor()
	return row, col
}

func TestPtyEchoScenario(t *testing.T) {
	s := spawnTestShell(t, 24, 80)
	e := NewEngine(24, 80, WithResponse(s))
	row, col := waitPrompt(t, s, e)

	input := []byte("echo hi\r")
	for i := range input {
		if err := s.WriteInput(input[i : i+1]); err != nil {
			t.Fatalf("WriteInput byte %d: %v", i, err)
		}
		if input[i] == '\r' {
			break
		}
		want := col + i + 1
		pump(t, s, e, func() bool {
			_, c, _ := e.Cursor()
			return c == want
		})

		if i == len(input)-2 {
			// Everything before the carriage return is echoed.
			gotRow, gotCol, _ := e.Cursor()
			if gotRow != row || gotCol != col+7 {
				t.Errorf("expected cursor at %d,%d before CR, got %d,%d", row, col+7, gotRow, gotCol)
			}
		}
	}

	line := e.LineContent(row)
	if idx := strings.Index(line, "echo hi"); idx != col {
		t.Errorf("expected 'echo hi' at column %d of row %d, got %q", col, row, line)
	}

	hiRow := func() int {
		rows, _ := e.Size()
		for r := row + 1; r < rows; r++ {
			if strings.TrimSpace(e.LineContent(r)) == "hi" {
				return r
			}
		}
		return -1
	}
	pump(t, s, e, func() bool { return hiRow() >= 0 })
	if hiRow() < 0 {
		t.Errorf("expected a row reading 'hi' below the command, screen:\n%s", screenDump(e))
	}
}

func TestPtyResize(t *testing.T) {
	s := spawnTestShell(t, 24, 80)

	rows, cols, err := s.WindowSize()
	if err != nil {
		t.Fatalf("WindowSize: %v", err)
	}
	if rows != 24 || cols != 80 {
		t.Errorf("expected 24x80, got %dx%d", rows, cols)
	}

	if err := s.Resize(30, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	rows, cols, err = s.WindowSize()
	if err != nil {
		t.Fatalf("WindowSize: %v", err)
	}
	if rows != 30 || cols != 100 {
		t.Errorf("expected 30x100, got %dx%d", rows, cols)
	}
}

func TestPtyEnvironment(t *testing.T) {
	s := spawnTestShell(t, 24, 80)
	e := NewEngine(24, 80, WithResponse(s))
	waitPrompt(t, s, e)

	if err := s.WriteInput([]byte("echo \"T=$TERM\"\r")); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	// The echoed command line shows $TERM unexpanded, so only the output matches.
	want := "T=xterm-256color"
	pump(t, s, e, func() bool { return screenContains(e, want) })

	if !screenContains(e, want) {
		t.Errorf("expected %q on screen, screen:\n%s", want, screenDump(e))
	}
}

func TestPtyHangup(t *testing.T) {
	s := spawnTestShell(t, 24, 80)
	e := NewEngine(24, 80)

	if err := s.WriteInput([]byte("exit\r")); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}

	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, res, err := s.ReadNonblocking(buf, 10*time.Millisecond)
		if res == ReadError {
			t.Fatalf("expected a benign close, got %v", err)
		}
		if res == ReadClosed {
			return
		}
		e.Feed(buf[:n])
	}
	t.Error("expected the session to report closed after exit")
}

func TestPtyClosed(t *testing.T) {
	s := spawnTestShell(t, 24, 80)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected a second Close to be a no-op, got %v", err)
	}
	if err := s.WriteInput([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if _, res, err := s.ReadNonblocking(make([]byte, 1), 0); res != ReadError || !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v %v", res, err)
	}
}

func TestShellEnv(t *testing.T) {
	env := shellEnv([]string{"HOME=/root", "TERM=dumb", "COLUMNS=80", "LINES=24", "LINESX=1"})

	want := []string{"HOME=/root", "LINESX=1", "TERM=xterm-256color"}
	if !slices.Equal(env, want) {
		t.Errorf("expected %v, got %v", want, env)
	}
}

func screenDump(e *Engine) string {
	rows, _ := e.Size()
	lines := make([]string, rows)
	for row := range lines {
		lines[row] = e.LineContent(row)
	}
	return strings.Join(lines, "\n")
}
