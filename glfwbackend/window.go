// Package glfwbackend is the on-screen backend for the glyphterm event loop:
// a GLFW window with an OpenGL 4.1 core context.
//
// GLFW must be used from the main OS thread. Call runtime.LockOSThread in
// main's init before creating a Window.
package glfwbackend

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/danielgatis/go-glyphterm"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Window is a glyphterm.Backend drawing with OpenGL.
type Window struct {
	win    *glfw.Window
	logger *slog.Logger
	events []glyphterm.Event

	width  int
	height int
	proj   [16]float32

	rectProgram  uint32
	glyphProgram uint32
	rectVAO      uint32
	rectVBO      uint32
	glyphVAO     uint32
	glyphVBO     uint32

	colorLoc     int32
	rectProjLoc  int32
	tintLoc      int32
	glyphProjLoc int32
	atlasLoc     int32

	atlasTex    uint32
	atlasWidth  int
	atlasHeight int
}

var _ glyphterm.Backend = (*Window)(nil)

// Config describes the window to open.
type Config struct {
	Title  string
	Width  int
	Height int
	Logger *slog.Logger
}

// New initializes GLFW, opens the window and prepares the GL pipeline.
func New(cfg Config) (*Window, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	win.MakeContextCurrent()
	// Present must not block: the PTY poll is the loop's only wait.
	glfw.SwapInterval(0)

	if err := gl.Init(); err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("init opengl: %w", err)
	}
	logger.Debug("opengl ready", "version", gl.GoStr(gl.GetString(gl.VERSION)))

	w := &Window{win: win, logger: logger}
	if err := w.initGL(); err != nil {
		w.Close()
		return nil, err
	}

	fw, fh := win.GetFramebufferSize()
	w.setViewport(fw, fh)

	win.SetCloseCallback(w.onClose)
	win.SetFramebufferSizeCallback(w.onFramebufferSize)
	win.SetCharModsCallback(w.onChar)
	win.SetKeyCallback(w.onKey)

	return w, nil
}

func (w *Window) initGL() error {
	var err error
	w.rectProgram, err = createProgram(rectVertexShader, rectFragmentShader)
	if err != nil {
		return fmt.Errorf("create rect shader: %w", err)
	}
	w.colorLoc = gl.GetUniformLocation(w.rectProgram, gl.Str("color\x00"))
	w.rectProjLoc = gl.GetUniformLocation(w.rectProgram, gl.Str("projection\x00"))

	w.glyphProgram, err = createProgram(glyphVertexShader, glyphFragmentShader)
	if err != nil {
		return fmt.Errorf("create glyph shader: %w", err)
	}
	w.tintLoc = gl.GetUniformLocation(w.glyphProgram, gl.Str("tint\x00"))
	w.glyphProjLoc = gl.GetUniformLocation(w.glyphProgram, gl.Str("projection\x00"))
	w.atlasLoc = gl.GetUniformLocation(w.glyphProgram, gl.Str("atlas\x00"))

	w.rectVAO, w.rectVBO = newQuadBuffer(2)
	w.glyphVAO, w.glyphVBO = newQuadBuffer(4)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	return nil
}

// setViewport maps pixel coordinates with the origin at the top left.
func (w *Window) setViewport(width, height int) {
	w.width, w.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	w.proj = orthoMatrix(0, float32(width), float32(height), 0, -1, 1)
}

// UploadAtlas copies the glyph coverage bitmap into a single-channel texture.
func (w *Window) UploadAtlas(atlas *image.Alpha) {
	if w.atlasTex != 0 {
		gl.DeleteTextures(1, &w.atlasTex)
	}
	b := atlas.Bounds()
	w.atlasWidth, w.atlasHeight = b.Dx(), b.Dy()

	gl.GenTextures(1, &w.atlasTex)
	gl.BindTexture(gl.TEXTURE_2D, w.atlasTex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(atlas.Stride))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RED, int32(w.atlasWidth), int32(w.atlasHeight), 0,
		gl.RED, gl.UNSIGNED_BYTE, gl.Ptr(atlas.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)

	// Glyphs are copied 1:1, so sample texels exactly.
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	w.logger.Debug("atlas uploaded", "width", w.atlasWidth, "height", w.atlasHeight)
}

// Clear fills the framebuffer.
func (w *Window) Clear(c color.RGBA) {
	gl.ClearColor(float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// FillRect draws a solid or translucent rectangle.
func (w *Window) FillRect(r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	x0, y0 := float32(r.Min.X), float32(r.Min.Y)
	x1, y1 := float32(r.Max.X), float32(r.Max.Y)
	vertices := []float32{
		x0, y0,
		x1, y0,
		x1, y1,
		x0, y0,
		x1, y1,
		x0, y1,
	}
	clr := normalize(c)

	gl.UseProgram(w.rectProgram)
	gl.UniformMatrix4fv(w.rectProjLoc, 1, false, &w.proj[0])
	gl.Uniform4fv(w.colorLoc, 1, &clr[0])

	gl.BindVertexArray(w.rectVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, w.rectVBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, gl.Ptr(vertices))
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
}

// CopyRect draws the atlas region src into dst, tinted.
func (w *Window) CopyRect(src, dst image.Rectangle, tint color.RGBA) {
	if w.atlasTex == 0 || dst.Empty() {
		return
	}
	x0, y0 := float32(dst.Min.X), float32(dst.Min.Y)
	x1, y1 := float32(dst.Max.X), float32(dst.Max.Y)
	aw, ah := float32(w.atlasWidth), float32(w.atlasHeight)
	u0, v0 := float32(src.Min.X)/aw, float32(src.Min.Y)/ah
	u1, v1 := float32(src.Max.X)/aw, float32(src.Max.Y)/ah

	vertices := []float32{
		x0, y0, u0, v0,
		x1, y0, u1, v0,
		x1, y1, u1, v1,
		x0, y0, u0, v0,
		x1, y1, u1, v1,
		x0, y1, u0, v1,
	}
	clr := normalize(tint)

	gl.UseProgram(w.glyphProgram)
	gl.UniformMatrix4fv(w.glyphProjLoc, 1, false, &w.proj[0])
	gl.Uniform4fv(w.tintLoc, 1, &clr[0])
	gl.Uniform1i(w.atlasLoc, 0)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, w.atlasTex)

	gl.BindVertexArray(w.glyphVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, w.glyphVBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, gl.Ptr(vertices))
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
}

// Present swaps the back buffer to the screen.
func (w *Window) Present() {
	w.win.SwapBuffers()
}

// PollEvents processes pending window events and returns them in order.
func (w *Window) PollEvents() []glyphterm.Event {
	glfw.PollEvents()
	events := w.events
	w.events = nil
	return events
}

// Size returns the framebuffer size in pixels.
func (w *Window) Size() (width, height int) {
	return w.width, w.height
}

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) {
	w.win.SetTitle(title)
}

// Close releases GL resources, destroys the window and terminates GLFW.
func (w *Window) Close() error {
	if w.win == nil {
		return nil
	}
	gl.DeleteVertexArrays(1, &w.rectVAO)
	gl.DeleteBuffers(1, &w.rectVBO)
	gl.DeleteVertexArrays(1, &w.glyphVAO)
	gl.DeleteBuffers(1, &w.glyphVBO)
	gl.DeleteProgram(w.rectProgram)
	gl.DeleteProgram(w.glyphProgram)
	if w.atlasTex != 0 {
		gl.DeleteTextures(1, &w.atlasTex)
	}
	w.win.Destroy()
	w.win = nil
	glfw.Terminate()
	return nil
}

func (w *Window) push(ev glyphterm.Event) {
	w.events = append(w.events, ev)
}

func (w *Window) onClose(*glfw.Window) {
	w.push(glyphterm.QuitEvent())
}

func (w *Window) onFramebufferSize(_ *glfw.Window, width, height int) {
	w.setViewport(width, height)
	w.push(glyphterm.ResizeEvent(width, height))
}

func (w *Window) onChar(_ *glfw.Window, char rune, mods glfw.ModifierKey) {
	w.push(glyphterm.TextEvent(string(char), convertMods(mods)))
}

func (w *Window) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	k, r := convertKey(key)
	if k == glyphterm.KeyUnknown {
		return
	}
	w.push(glyphterm.KeyEvent(k, r, convertMods(mods)))
}

func normalize(c color.RGBA) [4]float32 {
	return [4]float32{
		float32(c.R) / 255,
		float32(c.G) / 255,
		float32(c.B) / 255,
		float32(c.A) / 255,
	}
}
