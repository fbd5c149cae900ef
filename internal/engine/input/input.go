// Package input turns SDL2 events into per-frame viewer input.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Input is the state of one frame: keys pressed since the last Update,
// keys held down, and mouse motion.
type Input struct {
	pressed map[sdl.Scancode]bool
	held    map[sdl.Scancode]bool

	dragging bool
	resized  bool
	width    int
	height   int

	// DragX and DragY sum the mouse motion made with the left button held.
	DragX, DragY float32
	// Wheel sums the vertical scroll.
	Wheel float32
	// Clicked reports a right click at ClickX, ClickY this frame.
	Clicked        bool
	ClickX, ClickY int32
}

// New creates an Input with no keys down.
func New() *Input {
	return &Input{
		pressed: make(map[sdl.Scancode]bool),
		held:    make(map[sdl.Scancode]bool),
	}
}

// Update drains the SDL event queue. It reports whether the viewer should
// quit, which a window close or Escape requests.
func (i *Input) Update() bool {
	i.reset()
	quit := false
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		if i.handle(ev) {
			quit = true
		}
	}
	return quit
}

func (i *Input) reset() {
	clear(i.pressed)
	i.resized = false
	i.DragX, i.DragY, i.Wheel = 0, 0, 0
	i.Clicked = false
}

func (i *Input) handle(ev sdl.Event) (quit bool) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		return true

	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			i.resized, i.width, i.height = true, int(e.Data1), int(e.Data2)
		case sdl.WINDOWEVENT_FOCUS_LOST:
			clear(i.held)
			i.dragging = false
		}

	case *sdl.KeyboardEvent:
		key := e.Keysym.Scancode
		if e.Type == sdl.KEYUP {
			delete(i.held, key)
			return false
		}
		if e.Repeat != 0 {
			return false
		}
		i.pressed[key], i.held[key] = true, true
		return key == sdl.SCANCODE_ESCAPE

	case *sdl.MouseMotionEvent:
		if i.dragging {
			i.DragX += float32(e.XRel)
			i.DragY += float32(e.YRel)
		}

	case *sdl.MouseButtonEvent:
		down := e.Type == sdl.MOUSEBUTTONDOWN
		switch e.Button {
		case sdl.BUTTON_LEFT:
			i.dragging = down
		case sdl.BUTTON_RIGHT:
			if down {
				i.Clicked, i.ClickX, i.ClickY = true, e.X, e.Y
			}
		}

	case *sdl.MouseWheelEvent:
		i.Wheel += float32(e.Y)
	}
	return false
}

// IsKeyPressed reports whether key went down during the last Update.
func (i *Input) IsKeyPressed(key sdl.Scancode) bool {
	return i.pressed[key]
}

// IsKeyDown reports whether key is currently held.
func (i *Input) IsKeyDown(key sdl.Scancode) bool {
	return i.held[key]
}

// Axis is +1 while only pos is held, -1 while only neg is held and 0
// otherwise.
func (i *Input) Axis(pos, neg sdl.Scancode) float32 {
	var v float32
	if i.held[pos] {
		v++
	}
	if i.held[neg] {
		v--
	}
	return v
}

// Resized returns the last window size reported this frame.
func (i *Input) Resized() (width, height int, ok bool) {
	return i.width, i.height, i.resized
}
