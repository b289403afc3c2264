package glyphterm

import (
	"image"
	"image/color"
	"io"
	"log/slog"

	"github.com/danielgatis/go-ansicode"
	headlessterm "github.com/danielgatis/go-headless-term"
)

// Cell is a grid position with all colors resolved to RGB.
type Cell struct {
	Char  rune
	FG    color.RGBA
	BG    color.RGBA
	Flags headlessterm.CellFlags
}

// Wide returns true if the cell starts a character that spans two columns.
func (c Cell) Wide() bool {
	return c.Flags&headlessterm.CellFlagWideChar != 0
}

// Spacer returns true if the cell is the trailing half of a wide character.
func (c Cell) Spacer() bool {
	return c.Flags&headlessterm.CellFlagWideCharSpacer != 0
}

// Grid is the read-only view of the terminal state consumed by the renderer.
type Grid interface {
	Size() (rows, cols int)
	Cell(row, col int) Cell
	Cursor() (row, col int, visible bool)
	DefaultColors() (fg, bg color.RGBA)
}

// DamageFunc receives the region of the grid that changed, in cell
// coordinates (X is the column, Y the row). It returns true once the damage
// is handled; unhandled damage is reported again on the next flush.
type DamageFunc func(r image.Rectangle) bool

// Engine adapts the headless terminal emulator to the render pipeline.
// It feeds PTY output in, reports damage, resolves cells and routes the
// emulator's replies back to the PTY.
type Engine struct {
	term    *headlessterm.Terminal
	palette Palette
	logger  *slog.Logger

	onDamage DamageFunc
	output   io.Writer
	onTitle  func(string)
	onBell   func()

	// pending holds damage a callback declined to handle.
	pending    image.Rectangle
	fullDamage bool

	cursorRow     int
	cursorCol     int
	cursorVisible bool

	cellWidth    int
	cellHeight   int
	windowWidth  int
	windowHeight int
}

// Ensure Engine satisfies the interfaces it is used through.
var (
	_ Grid                      = (*Engine)(nil)
	_ headlessterm.SizeProvider = (*Engine)(nil)
)

// EngineOption configures an Engine during construction.
type EngineOption func(*Engine)

// WithPalette sets the colors used to resolve cells.
func WithPalette(p Palette) EngineOption {
	return func(e *Engine) {
		e.palette = p
	}
}

// WithDefaultColors overrides the default foreground and background.
func WithDefaultColors(fg, bg color.RGBA) EngineOption {
	return func(e *Engine) {
		e.palette.Foreground = fg
		e.palette.Background = bg
	}
}

// WithResponse sets where emulator replies (device attributes, cursor
// reports) are written. Typically the PTY input.
func WithResponse(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.output = w
	}
}

// WithDamageFunc sets the damage callback.
func WithDamageFunc(fn DamageFunc) EngineOption {
	return func(e *Engine) {
		e.onDamage = fn
	}
}

// WithTitleFunc sets the handler for window title changes (OSC 0/2).
func WithTitleFunc(fn func(string)) EngineOption {
	return func(e *Engine) {
		e.onTitle = fn
	}
}

// WithBellFunc sets the handler for BEL.
func WithBellFunc(fn func()) EngineOption {
	return func(e *Engine) {
		e.onBell = fn
	}
}

// WithEngineLogger sets the logger used by the engine adapter.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine with a rows×cols grid.
func NewEngine(rows, cols int, opts ...EngineOption) *Engine {
	e := &Engine{
		palette:       DefaultPalette(),
		logger:        discardLogger(),
		output:        io.Discard,
		cursorVisible: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.term = headlessterm.New(
		headlessterm.WithSize(rows, cols),
		headlessterm.WithResponse(responseWriter{e}),
		headlessterm.WithTitle(titleProvider{e}),
		headlessterm.WithBell(bellProvider{e}),
		headlessterm.WithSizeProvider(e),
		headlessterm.WithMiddleware(&headlessterm.Middleware{
			ClearScreen: e.clearScreen,
			PopTitle:    e.popTitle,
		}),
	)
	return e
}

// OnDamage replaces the damage callback.
func (e *Engine) OnDamage(fn DamageFunc) {
	e.onDamage = fn
}

// Feed parses raw PTY output and reports the resulting damage.
func (e *Engine) Feed(p []byte) {
	if _, err := e.term.Write(p); err != nil {
		e.logger.Debug("engine write", "error", err)
	}
	e.flushDamage()
}

// Resize changes the grid dimensions. The reflow is reported as full damage
// before Resize returns, so the next render reads the final grid.
func (e *Engine) Resize(rows, cols int) {
	e.term.Resize(rows, cols)
	e.fullDamage = true
	e.flushDamage()
}

// Size returns the grid dimensions.
func (e *Engine) Size() (rows, cols int) {
	return e.term.Rows(), e.term.Cols()
}

// Cell returns the resolved cell at (row, col). Out of range positions
// resolve to a blank cell in the default colors.
func (e *Engine) Cell(row, col int) Cell {
	c := e.term.Cell(row, col)
	if c == nil {
		return Cell{Char: ' ', FG: e.palette.Foreground, BG: e.palette.Background}
	}

	out := Cell{
		Char:  c.Char,
		FG:    e.palette.Resolve(c.Fg, true),
		BG:    e.palette.Resolve(c.Bg, false),
		Flags: c.Flags,
	}
	if c.HasFlag(headlessterm.CellFlagReverse) {
		out.FG, out.BG = out.BG, out.FG
	}
	if c.HasFlag(headlessterm.CellFlagDim) {
		out.FG = dim(out.FG)
	}
	if c.HasFlag(headlessterm.CellFlagHidden) || out.Char == 0 {
		out.Char = ' '
	}
	return out
}

// Cursor returns the cursor position and visibility.
func (e *Engine) Cursor() (row, col int, visible bool) {
	row, col = e.term.CursorPos()
	return row, col, e.term.CursorVisible()
}

// DefaultColors returns the default foreground and background.
func (e *Engine) DefaultColors() (fg, bg color.RGBA) {
	return e.palette.Foreground, e.palette.Background
}

// AppCursorKeys returns true when the application enabled DECCKM.
func (e *Engine) AppCursorKeys() bool {
	return e.term.HasMode(headlessterm.ModeCursorKeys)
}

// Title returns the last title set by the application.
func (e *Engine) Title() string {
	return e.term.Title()
}

// LineContent returns the text of a row with trailing blanks removed.
func (e *Engine) LineContent(row int) string {
	return e.term.LineContent(row)
}

// SetPixelSize records the cell and window sizes reported to size queries.
func (e *Engine) SetPixelSize(cellWidth, cellHeight, windowWidth, windowHeight int) {
	e.cellWidth = cellWidth
	e.cellHeight = cellHeight
	e.windowWidth = windowWidth
	e.windowHeight = windowHeight
}

// WindowSizePixels implements headlessterm.SizeProvider.
func (e *Engine) WindowSizePixels() (width, height int) {
	return e.windowWidth, e.windowHeight
}

// CellSizePixels implements headlessterm.SizeProvider.
func (e *Engine) CellSizePixels() (width, height int) {
	return e.cellWidth, e.cellHeight
}

// Close releases the emulator's scrollback and image storage.
func (e *Engine) Close() {
	e.term.ClearScrollback()
	e.term.ClearImages()
	e.onDamage = nil
	e.output = io.Discard
}

// flushDamage collects the dirty cells and cursor movement since the last
// flush and hands them to the damage callback.
func (e *Engine) flushDamage() {
	rows, cols := e.Size()
	full := image.Rect(0, 0, cols, rows)

	damage := e.pending
	if e.fullDamage {
		damage = full
	} else if e.term.HasDirty() {
		for _, pos := range e.term.DirtyCells() {
			damage = damage.Union(image.Rect(pos.Col, pos.Row, pos.Col+1, pos.Row+1))
		}
	}

	row, col, visible := e.Cursor()
	if row != e.cursorRow || col != e.cursorCol || visible != e.cursorVisible {
		damage = damage.Union(image.Rect(e.cursorCol, e.cursorRow, e.cursorCol+1, e.cursorRow+1))
		damage = damage.Union(image.Rect(col, row, col+1, row+1))
		e.cursorRow, e.cursorCol, e.cursorVisible = row, col, visible
	}

	e.term.ClearDirty()
	e.fullDamage = false

	damage = damage.Intersect(full)
	if damage.Empty() {
		e.pending = image.Rectangle{}
		return
	}
	if e.onDamage != nil && !e.onDamage(damage) {
		e.pending = damage
		return
	}
	e.pending = image.Rectangle{}
}

// clearScreen escalates a full-screen erase to full damage.
func (e *Engine) clearScreen(mode ansicode.ClearMode, next func(ansicode.ClearMode)) {
	next(mode)
	if mode == ansicode.ClearModeAll {
		e.fullDamage = true
	}
}

// popTitle reports the restored title after XTWINOPS 23. The title provider
// cannot read it back because it runs under the emulator's lock.
func (e *Engine) popTitle(next func()) {
	next()
	if e.onTitle != nil {
		e.onTitle(e.term.Title())
	}
}

// responseWriter forwards emulator replies to the configured output.
type responseWriter struct {
	e *Engine
}

func (w responseWriter) Write(p []byte) (int, error) {
	if _, err := w.e.output.Write(p); err != nil {
		w.e.logger.Warn("engine reply dropped", "bytes", len(p), "error", err)
		return 0, err
	}
	return len(p), nil
}

// titleProvider forwards title changes. The emulator keeps the push/pop
// stack; pops are reported by popTitle.
type titleProvider struct {
	e *Engine
}

func (p titleProvider) SetTitle(title string) {
	if p.e.onTitle != nil {
		p.e.onTitle(title)
	}
}

func (titleProvider) PushTitle() {}
func (titleProvider) PopTitle()  {}

// bellProvider forwards BEL.
type bellProvider struct {
	e *Engine
}

func (p bellProvider) Ring() {
	if p.e.onBell != nil {
		p.e.onBell()
	}
}
