package glyphterm

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultIdleWait bounds the PTY wait when nothing needs painting.
	DefaultIdleWait = 10 * time.Millisecond

	// DefaultReadBufferSize is the PTY read chunk size.
	DefaultReadBufferSize = 4096
)

// PTY is the pseudo-terminal side of the loop. *PtySession implements it.
type PTY interface {
	WriteInput(p []byte) error
	Resize(rows, cols int) error
	ReadNonblocking(buf []byte, timeout time.Duration) (int, ReadResult, error)
	Close() error
}

// Backend is the window: a Canvas plus input events and lifecycle.
type Backend interface {
	Canvas

	// PollEvents returns the pending events without blocking.
	PollEvents() []Event

	// Size returns the drawable size in pixels.
	Size() (width, height int)

	SetTitle(title string)
	UploadAtlas(atlas *image.Alpha)
	Close() error
}

var _ PTY = (*PtySession)(nil)

type loopState int

const (
	stateRunning loopState = iota
	stateTerminating
)

// Loop multiplexes window events and PTY I/O on one goroutine and repaints
// the grid when it changes.
type Loop struct {
	pty      PTY
	engine   *Engine
	renderer *Renderer
	backend  Backend

	logger      *slog.Logger
	clock       Clock
	idleWait    time.Duration
	blinkPeriod time.Duration
	readBuf     []byte

	dirty DirtySignal
	blink *blinker

	rows, cols int
	state      loopState
	err        error
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// WithClock sets the time source used for blinking.
func WithClock(c Clock) Option {
	return func(lp *Loop) {
		lp.clock = c
	}
}

// WithIdleWait sets how long the loop waits on the PTY when idle.
func WithIdleWait(d time.Duration) Option {
	return func(lp *Loop) {
		lp.idleWait = d
	}
}

// WithBlinkPeriod sets the cursor blink half-period.
func WithBlinkPeriod(d time.Duration) Option {
	return func(lp *Loop) {
		lp.blinkPeriod = d
	}
}

// WithReadBufferSize sets the PTY read chunk size.
func WithReadBufferSize(n int) Option {
	return func(lp *Loop) {
		if n > 0 {
			lp.readBuf = make([]byte, n)
		}
	}
}

// NewLoop wires the session, engine, renderer and window together. It uploads
// the atlas to the backend and routes damage and title changes from the
// engine. The engine's grid size is taken as the current size.
func NewLoop(pty PTY, engine *Engine, renderer *Renderer, backend Backend, opts ...Option) *Loop {
	l := &Loop{
		pty:         pty,
		engine:      engine,
		renderer:    renderer,
		backend:     backend,
		logger:      discardLogger(),
		clock:       realClock{},
		idleWait:    DefaultIdleWait,
		blinkPeriod: DefaultBlinkPeriod,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.readBuf == nil {
		l.readBuf = make([]byte, DefaultReadBufferSize)
	}
	l.blink = newBlinker(l.clock.Now(), l.blinkPeriod)
	l.rows, l.cols = engine.Size()

	engine.OnDamage(func(image.Rectangle) bool {
		l.dirty.Set()
		return true
	})
	if engine.onTitle == nil {
		engine.onTitle = backend.SetTitle
	}
	backend.UploadAtlas(renderer.atlas.Bitmap())

	cw, ch := renderer.CellSize()
	w, h := backend.Size()
	engine.SetPixelSize(cw, ch, w, h)

	l.dirty.Set()
	return l
}

// Size returns the current grid size.
func (l *Loop) Size() (rows, cols int) {
	return l.rows, l.cols
}

// Dirty returns the loop's repaint signal.
func (l *Loop) Dirty() *DirtySignal {
	return &l.dirty
}

// Run drives the loop until the shell exits, the window is closed, a PTY
// error occurs or ctx is cancelled. A shell exit, window close or
// cancellation returns nil. The window, engine and PTY are closed on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()

	l.logger.Info("loop started", "rows", l.rows, "cols", l.cols)
	for l.state == stateRunning {
		if ctx.Err() != nil {
			l.logger.Info("loop cancelled")
			break
		}
		l.iterate()
	}
	return l.err
}

// iterate runs one pass: events, PTY, blink, paint.
func (l *Loop) iterate() {
	for _, ev := range l.backend.PollEvents() {
		l.handleEvent(ev)
		if l.state != stateRunning {
			return
		}
	}

	wait := l.idleWait
	if l.dirty.IsSet() {
		wait = 0
	}
	n, res, err := l.pty.ReadNonblocking(l.readBuf, wait)
	switch res {
	case ReadData:
		l.engine.Feed(l.readBuf[:n])
		l.dirty.Set()
	case ReadClosed:
		l.logger.Info("shell hung up")
		l.terminate(nil)
		return
	case ReadError:
		l.terminate(fmt.Errorf("read from shell: %w", err))
		return
	}

	if l.blink.update(l.clock.Now()) {
		l.dirty.Set()
	}

	if l.dirty.IsSet() {
		l.renderer.Render(l.engine, l.blink.phase, &l.dirty)
	}
}

func (l *Loop) handleEvent(ev Event) {
	switch ev.Type {
	case EventQuit:
		l.logger.Info("window closed")
		l.terminate(nil)
	case EventResize:
		l.resize(ev.Width, ev.Height)
	case EventText:
		if ev.Mods.Has(ModControl) || ev.Text == "" {
			return
		}
		l.input([]byte(ev.Text))
	case EventKey:
		if b := EncodeKey(ev.Key, ev.Rune, ev.Mods, l.engine.AppCursorKeys()); len(b) > 0 {
			l.input(b)
		}
	}
}

// input sends keyboard bytes to the shell and keeps the cursor lit.
func (l *Loop) input(p []byte) {
	if err := l.pty.WriteInput(p); err != nil {
		l.terminate(fmt.Errorf("write to shell: %w", err))
		return
	}
	if l.blink.reset(l.clock.Now()) {
		l.dirty.Set()
	}
}

// resize recomputes the grid for a width×height drawable. The engine is
// resized before the PTY so the child's redraw lands on the new grid. If the
// PTY rejects the size the engine goes back to the old one.
func (l *Loop) resize(width, height int) {
	cw, ch := l.renderer.CellSize()
	l.engine.SetPixelSize(cw, ch, width, height)

	rows, cols := l.renderer.GridSize(width, height)
	if rows == l.rows && cols == l.cols {
		return
	}
	l.logger.Debug("resize", "rows", rows, "cols", cols, "width", width, "height", height)

	l.engine.Resize(rows, cols)
	if err := l.pty.Resize(rows, cols); err != nil {
		// Keep the grid matching the child's window size; the next resize
		// event retries.
		l.logger.Warn("resize pty", "rows", rows, "cols", cols, "error", err)
		l.engine.Resize(l.rows, l.cols)
		l.dirty.Set()
		return
	}
	l.rows, l.cols = rows, cols
	l.dirty.Set()
}

func (l *Loop) terminate(err error) {
	l.state = stateTerminating
	if err != nil && l.err == nil {
		l.err = err
	}
}

func (l *Loop) shutdown() {
	if err := l.backend.Close(); err != nil {
		l.logger.Warn("close window", "error", err)
	}
	l.engine.Close()
	if err := l.pty.Close(); err != nil {
		l.logger.Warn("close pty", "error", err)
	}
	if l.err != nil {
		l.logger.Error("loop stopped", "error", l.err)
		return
	}
	l.logger.Info("loop stopped")
}

// clampSize keeps a grid size at least 1×1.
func clampSize(rows, cols int) (int, int) {
	return max(rows, 1), max(cols, 1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
