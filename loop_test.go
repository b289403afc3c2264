package glyphterm

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"
)

type fakePTY struct {
	written  []byte
	reads    [][]byte
	hangup   bool
	readErr  error
	writeErr error
	sizeErr  error
	resizes  []image.Point // X is cols, Y is rows
	timeouts []time.Duration
	closed   bool
}

func (p *fakePTY) WriteInput(b []byte) error {
	if p.writeErr != nil {
		return p.writeErr
	}
	p.written = append(p.written, b...)
	return nil
}

func (p *fakePTY) Resize(rows, cols int) error {
	if p.sizeErr != nil {
		return p.sizeErr
	}
	p.resizes = append(p.resizes, image.Pt(cols, rows))
	return nil
}

func (p *fakePTY) ReadNonblocking(buf []byte, timeout time.Duration) (int, ReadResult, error) {
	p.timeouts = append(p.timeouts, timeout)
	if len(p.reads) > 0 {
		n := copy(buf, p.reads[0])
		p.reads = p.reads[1:]
		return n, ReadData, nil
	}
	if p.readErr != nil {
		return 0, ReadError, p.readErr
	}
	if p.hangup {
		return 0, ReadClosed, nil
	}
	return 0, ReadNoData, nil
}

func (p *fakePTY) Close() error {
	p.closed = true
	return nil
}

// The recording canvas doubles as the window.

func (c *recordingCanvas) PollEvents() []Event {
	events := c.events
	c.events = nil
	return events
}

func (c *recordingCanvas) Size() (int, int) { return c.width, c.height }

func (c *recordingCanvas) SetTitle(title string) { c.title = title }

func (c *recordingCanvas) UploadAtlas(atlas *image.Alpha) { c.atlas = atlas }

func (c *recordingCanvas) Close() error {
	c.closed = true
	return nil
}

type loopFixture struct {
	loop    *Loop
	pty     *fakePTY
	backend *recordingCanvas
	engine  *Engine
	clock   *fakeClock
	cw, ch  int
}

func newLoopFixture(t *testing.T, rows, cols int) *loopFixture {
	t.Helper()
	atlas := sharedAtlas(t)
	cw, ch := atlas.CellSize()

	f := &loopFixture{
		pty:     &fakePTY{},
		backend: &recordingCanvas{width: cols * cw, height: rows * ch},
		clock:   newFakeClock(),
		cw:      cw,
		ch:      ch,
	}
	f.engine = NewEngine(rows, cols, WithResponse(ptyWriter{f.pty}))
	renderer := NewRenderer(atlas, f.backend)
	f.loop = NewLoop(f.pty, f.engine, renderer, f.backend, WithClock(f.clock))
	return f
}

type ptyWriter struct{ p *fakePTY }

func (w ptyWriter) Write(b []byte) (int, error) {
	if err := w.p.WriteInput(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func TestNewLoopWiring(t *testing.T) {
	f := newLoopFixture(t, 24, 80)

	if f.backend.atlas == nil {
		t.Error("expected the atlas to be uploaded")
	}
	if !f.loop.Dirty().IsSet() {
		t.Error("expected the first frame to be pending")
	}
	if w, h := f.engine.WindowSizePixels(); w != 80*f.cw || h != 24*f.ch {
		t.Errorf("expected window pixels %dx%d, got %dx%d", 80*f.cw, 24*f.ch, w, h)
	}
}

func TestLoopFirstIterationRenders(t *testing.T) {
	f := newLoopFixture(t, 24, 80)

	f.loop.iterate()

	if f.backend.presents != 1 {
		t.Errorf("expected 1 frame, got %d", f.backend.presents)
	}
	if f.pty.timeouts[0] != 0 {
		t.Errorf("expected a zero wait while dirty, got %v", f.pty.timeouts[0])
	}
	if f.loop.Dirty().IsSet() {
		t.Error("expected dirty to be cleared by the render")
	}
}

func TestLoopIdleIsIdempotent(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.loop.iterate()
	f.backend.reset()

	for i := 0; i < 5; i++ {
		f.loop.iterate()
	}

	if f.backend.presents != 0 {
		t.Errorf("expected no frames while idle, got %d", f.backend.presents)
	}
	for _, wait := range f.pty.timeouts[1:] {
		if wait != DefaultIdleWait {
			t.Errorf("expected idle wait %v, got %v", DefaultIdleWait, wait)
		}
	}
}

func TestLoopFeedsOutput(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.loop.iterate()
	f.backend.reset()

	f.pty.reads = [][]byte{[]byte("hello")}
	f.loop.iterate()

	if got := f.engine.LineContent(0); got != "hello" {
		t.Errorf("expected 'hello', got '%s'", got)
	}
	if f.backend.presents != 1 {
		t.Errorf("expected 1 frame after output, got %d", f.backend.presents)
	}
}

func TestLoopBlinkRepaints(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.loop.iterate()
	f.backend.reset()

	f.clock.Advance(DefaultBlinkPeriod)
	f.loop.iterate()
	if f.backend.presents != 1 {
		t.Fatalf("expected a repaint on blink, got %d frames", f.backend.presents)
	}
	if f.backend.count("fill") != 0 {
		t.Error("expected no cursor overlay in the off phase")
	}

	f.loop.iterate()
	if f.backend.presents != 1 {
		t.Errorf("expected no repaint within a phase, got %d frames", f.backend.presents)
	}
}

func TestLoopResize(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.loop.iterate()

	f.backend.width, f.backend.height = 100*f.cw, 30*f.ch
	f.backend.events = []Event{ResizeEvent(100*f.cw+3, 30*f.ch+2)}
	f.loop.iterate()

	if len(f.pty.resizes) != 1 || f.pty.resizes[0] != image.Pt(100, 30) {
		t.Errorf("expected one pty resize to 30x100, got %v", f.pty.resizes)
	}
	rows, cols := f.engine.Size()
	if rows != 30 || cols != 100 {
		t.Errorf("expected engine 30x100, got %dx%d", rows, cols)
	}
	if lr, lc := f.loop.Size(); lr != rows || lc != cols {
		t.Errorf("expected loop size to match the engine, got %dx%d", lr, lc)
	}

	// Every draw of the new frame stays within the new grid.
	bounds := image.Rect(0, 0, 100*f.cw, 30*f.ch)
	for _, op := range f.backend.ops {
		if op.kind != "clear" && !op.dst.In(bounds) {
			t.Errorf("%s %v outside %v", op.kind, op.dst, bounds)
		}
	}

	// Same cell grid, different pixels: nothing to push.
	f.backend.events = []Event{ResizeEvent(100*f.cw+1, 30*f.ch+1)}
	f.loop.iterate()
	if len(f.pty.resizes) != 1 {
		t.Errorf("expected no resize for an unchanged grid, got %v", f.pty.resizes)
	}
}

func TestLoopResizeFailureKeepsOldGrid(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.loop.iterate()

	f.pty.sizeErr = errors.New("ioctl failed")
	f.backend.events = []Event{ResizeEvent(100*f.cw, 30*f.ch)}
	f.loop.iterate()

	if rows, cols := f.engine.Size(); rows != 24 || cols != 80 {
		t.Errorf("expected engine back at 24x80, got %dx%d", rows, cols)
	}
	if rows, cols := f.loop.Size(); rows != 24 || cols != 80 {
		t.Errorf("expected loop size 24x80, got %dx%d", rows, cols)
	}

	// The next event retries.
	f.pty.sizeErr = nil
	f.backend.events = []Event{ResizeEvent(100*f.cw, 30*f.ch)}
	f.loop.iterate()

	if len(f.pty.resizes) != 1 || f.pty.resizes[0] != image.Pt(100, 30) {
		t.Errorf("expected the retry to push 30x100, got %v", f.pty.resizes)
	}
	if rows, cols := f.engine.Size(); rows != 30 || cols != 100 {
		t.Errorf("expected engine 30x100, got %dx%d", rows, cols)
	}
}

func TestLoopResizeClampsToOneCell(t *testing.T) {
	f := newLoopFixture(t, 24, 80)

	f.backend.events = []Event{ResizeEvent(0, 0)}
	f.loop.iterate()

	if len(f.pty.resizes) != 1 || f.pty.resizes[0] != image.Pt(1, 1) {
		t.Errorf("expected a 1x1 resize, got %v", f.pty.resizes)
	}
}

func TestLoopCtrlCWritesOneByte(t *testing.T) {
	f := newLoopFixture(t, 24, 80)

	f.backend.events = []Event{
		KeyEvent(KeyRune, 'c', ModControl),
		TextEvent("c", ModControl),
	}
	f.loop.iterate()

	if !bytes.Equal(f.pty.written, []byte{0x03}) {
		t.Errorf("expected exactly 0x03, got %q", f.pty.written)
	}
}

func TestLoopTextAndKeys(t *testing.T) {
	f := newLoopFixture(t, 24, 80)

	f.backend.events = []Event{
		KeyEvent(KeyRune, 'l', 0),
		TextEvent("l", 0),
		TextEvent("s", ModShift),
		KeyEvent(KeyEnter, 0, 0),
		KeyEvent(KeyUp, 0, 0),
	}
	f.loop.iterate()

	if got := string(f.pty.written); got != "ls\r\x1b[A" {
		t.Errorf("expected 'ls\\r\\x1b[A', got %q", got)
	}
}

func TestLoopAppCursorKeys(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.pty.reads = [][]byte{[]byte("\x1b[?1h")}
	f.loop.iterate()

	f.backend.events = []Event{KeyEvent(KeyDown, 0, 0)}
	f.loop.iterate()

	if got := string(f.pty.written); got != "\x1bOB" {
		t.Errorf("expected application cursor sequence, got %q", got)
	}
}

func TestLoopRepliesAndTitle(t *testing.T) {
	f := newLoopFixture(t, 24, 80)

	f.pty.reads = [][]byte{[]byte("\x1b]2;shell\x07\x1b[5n")}
	f.loop.iterate()

	if f.backend.title != "shell" {
		t.Errorf("expected title 'shell', got '%s'", f.backend.title)
	}
	if got := string(f.pty.written); got != "\x1b[0n" {
		t.Errorf("expected status report, got %q", got)
	}
}

func TestLoopRunHangup(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.pty.reads = [][]byte{[]byte("bye\r\n")}
	f.pty.hangup = true

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("expected a clean exit, got %v", err)
	}
	if !f.backend.closed || !f.pty.closed {
		t.Error("expected the window and pty to be closed")
	}
	if !strings.HasPrefix(f.engine.LineContent(0), "bye") {
		t.Errorf("expected output before the hangup to be fed, got '%s'", f.engine.LineContent(0))
	}
}

func TestLoopRunReadError(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	boom := errors.New("boom")
	f.pty.readErr = boom

	err := f.loop.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected the read error, got %v", err)
	}
	if !f.backend.closed {
		t.Error("expected the window to be closed")
	}
}

func TestLoopRunWriteError(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	boom := errors.New("boom")
	f.pty.writeErr = boom
	f.backend.events = []Event{TextEvent("x", 0)}

	if err := f.loop.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the write error, got %v", err)
	}
}

func TestLoopRunQuit(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	f.backend.events = []Event{QuitEvent(), TextEvent("ignored", 0)}

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("expected a clean exit, got %v", err)
	}
	if len(f.pty.timeouts) != 0 {
		t.Error("expected no pty read after quit")
	}
	if len(f.pty.written) != 0 {
		t.Error("expected events after quit to be dropped")
	}
}

func TestLoopRunCancelled(t *testing.T) {
	f := newLoopFixture(t, 24, 80)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.loop.Run(ctx); err != nil {
		t.Fatalf("expected a clean exit, got %v", err)
	}
	if !f.backend.closed || !f.pty.closed {
		t.Error("expected the window and pty to be closed")
	}
}
