// Package glyphterm provides a graphical terminal front-end: a shell on a
// pseudo-terminal, a headless terminal emulator holding the screen, and a
// glyph-atlas renderer that paints the screen onto a window.
//
// # Quick Start
//
// Build an atlas, open a window, spawn a shell and run the loop:
//
//	atlas, err := glyphterm.BuildAtlas(fontBytes, 25, glyphterm.DefaultRanges())
//	window, err := glfwbackend.New(glfwbackend.Config{Title: "glyphterm", Width: 800, Height: 600})
//
//	renderer := glyphterm.NewRenderer(atlas, window)
//	rows, cols := renderer.GridSize(window.Size())
//
//	session, err := glyphterm.Spawn(glyphterm.SpawnOptions{Rows: rows, Cols: cols})
//	engine := glyphterm.NewEngine(rows, cols, glyphterm.WithResponse(session))
//
//	loop := glyphterm.NewLoop(session, engine, renderer, window)
//	err = loop.Run(ctx)
//
// # Architecture
//
// The package is organized around these core types:
//
//   - [PtySession]: The shell process and the master side of its pseudo-terminal
//   - [Engine]: Parses shell output into a grid of resolved [Cell] values
//   - [Atlas]: Every glyph of a fixed set of codepoint ranges packed into one bitmap
//   - [Renderer]: Paints a [Grid] onto a [Canvas] with atlas glyphs
//   - [Loop]: Multiplexes window events and shell I/O on one goroutine
//
// # Pseudo-terminal
//
// [Spawn] starts the shell in a new session with the slave side as its
// controlling terminal. TERM is set to xterm-256color and COLUMNS/LINES are
// removed so programs read the size from the terminal. [PtySession.ReadNonblocking]
// waits a bounded time for output:
//
//	n, res, err := session.ReadNonblocking(buf, 10*time.Millisecond)
//	switch res {
//	case glyphterm.ReadData:
//	    engine.Feed(buf[:n])
//	case glyphterm.ReadClosed:
//	    // The shell exited. Not an error.
//	case glyphterm.ReadError:
//	    return err
//	}
//
// # Glyph Atlas
//
// [BuildAtlas] rasterizes every codepoint of every [Range] and packs them into
// a single coverage bitmap. Ranges are looked up in order with an exclusive
// upper bound. Codepoints outside every range are not drawn; codepoints inside
// a range that the font lacks occupy an empty slot.
//
// Cell size is fixed when the atlas is built: the width is the advance of the
// first glyph of the first range, the height is the point size.
//
// # Damage and Repaint
//
// The engine reports changed regions through a [DamageFunc]. The loop's
// callback sets a [DirtySignal]; the renderer clears it after a complete
// frame. While the signal is set the loop does not wait on the shell, so
// pending output and the repaint happen back to back.
//
// # Canvases
//
// [Canvas] is the drawing surface. [ImageCanvas] renders into an *image.RGBA
// for offscreen use and tests; the glfwbackend package draws with OpenGL.
package glyphterm
