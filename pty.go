package glyphterm

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("pty session closed")

// DefaultTerm is the terminal type advertised to the child.
const DefaultTerm = "xterm-256color"

// hangupGrace is how long Close waits for the child to exit after SIGHUP.
const hangupGrace = 500 * time.Millisecond

// ReadResult classifies the outcome of a non-blocking read.
type ReadResult int

const (
	// ReadNoData means nothing arrived within the timeout.
	ReadNoData ReadResult = iota
	// ReadData means at least one byte was read.
	ReadData
	// ReadClosed means the child side hung up. This is a normal exit.
	ReadClosed
	// ReadError means the read failed for any other reason.
	ReadError
)

// String returns the result name.
func (r ReadResult) String() string {
	switch r {
	case ReadNoData:
		return "no-data"
	case ReadData:
		return "data"
	case ReadClosed:
		return "closed"
	case ReadError:
		return "error"
	default:
		return fmt.Sprintf("ReadResult(%d)", int(r))
	}
}

// SpawnOptions describes the child process of a session.
type SpawnOptions struct {
	// Shell is the program to run. Defaults to $SHELL, then /bin/sh.
	Shell string
	Args  []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is the base environment; nil means os.Environ().
	Env []string

	Rows int
	Cols int

	Logger *slog.Logger
}

// PtySession is a shell running on the slave side of a pseudo-terminal.
// The parent keeps only the master.
type PtySession struct {
	master *os.File
	fd     int
	cmd    *exec.Cmd
	logger *slog.Logger

	rows, cols int
	closed     bool
}

// Spawn allocates a pseudo-terminal and starts the shell in a new session
// with the slave as its controlling terminal and standard streams.
func Spawn(opts SpawnOptions) (*PtySession, error) {
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}
	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	rows, cols := clampSize(opts.Rows, opts.Cols)

	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := pty.Setsize(master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set initial window size: %w", err)
	}

	cmd := exec.Command(shell, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = shellEnv(opts.Env)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0, // fd 0 in child = slave
	}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("start %s: %w", shell, err)
	}
	slave.Close()

	s := &PtySession{
		master: master,
		fd:     int(master.Fd()),
		cmd:    cmd,
		logger: logger,
		rows:   rows,
		cols:   cols,
	}
	logger.Info("shell started", "shell", shell, "pid", cmd.Process.Pid, "rows", rows, "cols", cols)
	return s, nil
}

// shellEnv returns base with TERM set and COLUMNS/LINES removed, so the
// child reads its size from the terminal.
func shellEnv(base []string) []string {
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		switch name {
		case "TERM", "COLUMNS", "LINES":
			continue
		}
		env = append(env, kv)
	}
	return append(env, "TERM="+DefaultTerm)
}

// Pid returns the child's process id.
func (s *PtySession) Pid() int {
	return s.cmd.Process.Pid
}

// Write implements io.Writer on top of WriteInput.
func (s *PtySession) Write(p []byte) (int, error) {
	if err := s.WriteInput(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteInput writes all of p to the master. Short writes are retried.
func (s *PtySession) WriteInput(p []byte) error {
	if s.closed {
		return ErrSessionClosed
	}
	for len(p) > 0 {
		n, err := unix.Write(s.fd, p)
		if n > 0 {
			p = p[n:]
		}
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				pfd := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLOUT}}
				if _, perr := unix.Poll(pfd, -1); perr != nil && !errors.Is(perr, unix.EINTR) {
					return fmt.Errorf("poll pty for write: %w", perr)
				}
				continue
			}
			return fmt.Errorf("write pty: %w", err)
		}
	}
	return nil
}

// Resize pushes rows×cols to the terminal's window size. The child receives
// SIGWINCH.
func (s *PtySession) Resize(rows, cols int) error {
	if s.closed {
		return ErrSessionClosed
	}
	rows, cols = clampSize(rows, cols)
	if err := pty.Setsize(s.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("set window size %dx%d: %w", cols, rows, err)
	}
	s.rows, s.cols = rows, cols
	return nil
}

// WindowSize reads the window size back from the terminal.
func (s *PtySession) WindowSize() (rows, cols int, err error) {
	if s.closed {
		return 0, 0, ErrSessionClosed
	}
	ws, err := pty.GetsizeFull(s.master)
	if err != nil {
		return 0, 0, fmt.Errorf("get window size: %w", err)
	}
	return int(ws.Rows), int(ws.Cols), nil
}

// ReadNonblocking waits up to timeout for output and reads what is there.
// A zero timeout only checks. EIO and a zero-length read mean the child hung
// up and are reported as ReadClosed, not as errors.
func (s *PtySession) ReadNonblocking(buf []byte, timeout time.Duration) (int, ReadResult, error) {
	if s.closed {
		return 0, ReadError, ErrSessionClosed
	}

	pfd := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	ready, err := unix.Poll(pfd, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, ReadNoData, nil
		}
		return 0, ReadError, fmt.Errorf("poll pty: %w", err)
	}
	if ready == 0 {
		return 0, ReadNoData, nil
	}

	revents := pfd[0].Revents
	if revents&unix.POLLIN == 0 {
		if revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			return 0, ReadClosed, nil
		}
		if revents&unix.POLLNVAL != 0 {
			return 0, ReadError, fmt.Errorf("poll pty: %w", unix.EBADF)
		}
		return 0, ReadNoData, nil
	}

	n, err := unix.Read(s.fd, buf)
	switch {
	case err == nil && n > 0:
		return n, ReadData, nil
	case err == nil:
		return 0, ReadClosed, nil
	case errors.Is(err, unix.EIO):
		return 0, ReadClosed, nil
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		return 0, ReadNoData, nil
	default:
		return 0, ReadError, fmt.Errorf("read pty: %w", err)
	}
}

// Close releases the master, hangs up the child and reaps it. A child that
// ignores SIGHUP is killed.
func (s *PtySession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.master.Close()

	proc := s.cmd.Process
	_ = proc.Signal(syscall.SIGHUP)

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case werr := <-done:
		s.logger.Debug("shell exited", "pid", proc.Pid, "error", werr)
	case <-time.After(hangupGrace):
		s.logger.Warn("shell ignored hangup, killing", "pid", proc.Pid)
		_ = proc.Kill()
		<-done
	}

	if err != nil {
		return fmt.Errorf("close pty master: %w", err)
	}
	return nil
}
