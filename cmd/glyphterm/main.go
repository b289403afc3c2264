// glyphterm is a graphical terminal: it runs a shell on a pseudo-terminal
// and draws the screen in an OpenGL window.
//
// Set GLYPHTERM_DEBUG to any value for debug logging.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/danielgatis/go-glyphterm"
	"github.com/danielgatis/go-glyphterm/glfwbackend"
)

const (
	fontPath     = "font.ttf"
	fontSize     = 25
	windowWidth  = 800
	windowHeight = 600
	windowTitle  = "glyphterm"
	defaultShell = "bash"
)

func init() {
	// GLFW and the GL context belong to the main thread.
	runtime.LockOSThread()
}

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("GLYPHTERM_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if err := run(logger); err != nil {
		logger.Error("glyphterm failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("read font: %w", err)
	}
	atlas, err := glyphterm.BuildAtlas(fontBytes, fontSize, glyphterm.DefaultRanges())
	if err != nil {
		return fmt.Errorf("build glyph atlas: %w", err)
	}
	cellWidth, cellHeight := atlas.CellSize()
	logger.Debug("atlas built", "cell_width", cellWidth, "cell_height", cellHeight)

	window, err := glfwbackend.New(glfwbackend.Config{
		Title:  windowTitle,
		Width:  windowWidth,
		Height: windowHeight,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	renderer := glyphterm.NewRenderer(atlas, window)
	rows, cols := renderer.GridSize(window.Size())

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = defaultShell
	}
	session, err := glyphterm.Spawn(glyphterm.SpawnOptions{
		Shell:  shell,
		Rows:   rows,
		Cols:   cols,
		Logger: logger,
	})
	if err != nil {
		window.Close()
		return fmt.Errorf("spawn shell: %w", err)
	}

	engine := glyphterm.NewEngine(rows, cols,
		glyphterm.WithResponse(session),
		glyphterm.WithEngineLogger(logger),
		glyphterm.WithBellFunc(func() { logger.Debug("bell") }),
	)

	loop := glyphterm.NewLoop(session, engine, renderer, window, glyphterm.WithLogger(logger))
	return loop.Run(ctx)
}
