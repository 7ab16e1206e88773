/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package window is the headless controller of the floating note window:
// placement, drag, and the Normal/FullScreen/Minimized size modes.
// UI runtimes feed it pointer and toolbar events and render Layout().
package window

import (
	"fmt"
	"log/slog"
	"sync"

	"handnote/internal/log"
)

// Point is a viewport coordinate in pixels.
type Point struct{ X, Y float64 }

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mode is the window size mode. Exactly one mode holds at any time.
type Mode int

const (
	Normal Mode = iota
	FullScreen
	Minimized
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case FullScreen:
		return "fullscreen"
	case Minimized:
		return "minimized"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Viewport is the size of the hosting page or screen.
type Viewport struct{ Width, Height float64 }

// Box is the rendered window rectangle.
type Box struct{ Left, Top, Width, Height float64 }

// State is the window placement. Dragging only holds in Normal mode.
type State struct {
	Position           Point
	Mode               Mode
	SavedPosition      *Point // where to return when leaving FullScreen or Minimized
	DragOffset         Point
	Dragging           bool
	ReturnToFullScreen bool // restore goes back to FullScreen
}

// Geometry holds the layout constants.
type Geometry struct {
	ReferenceWidth  float64 // width used to centre the initial position
	TopFraction     float64 // initial top as a fraction of viewport height
	HeightFraction  float64 // normal height as a fraction of viewport height
	TargetHeight    float64 // fixed normal height; 0 uses HeightFraction
	PageRatio       float64 // width/height of the page
	MinimizedSize   float64
	MinimizedRight  float64 // distance of the minimized box from the right edge
	MinimizedBottom float64 // distance of the minimized box from the bottom edge
}

// DefaultGeometry returns the A4 portrait layout.
func DefaultGeometry() Geometry {
	return Geometry{
		ReferenceWidth:  600,
		TopFraction:     0.2,
		HeightFraction:  0.9,
		PageRatio:       210.0 / 297.0,
		MinimizedSize:   40,
		MinimizedRight:  60,
		MinimizedBottom: 180,
	}
}

// Controller owns the State of one window. All operations are total:
// calls whose preconditions do not hold are ignored.
// It is safe for concurrent use; mode listeners run outside the lock.
type Controller struct {
	mu          sync.Mutex
	geo         Geometry
	vp          Viewport
	st          State
	initialized bool
	hub         *Hub
	detach      func()
	listeners   map[int]func(from, to Mode)
	nextL       int
	l           *slog.Logger
}

// NewController returns a controller in Normal mode at the origin.
// Zero fields of geo take their DefaultGeometry values.
func NewController(geo Geometry) *Controller {
	d := DefaultGeometry()
	if geo.ReferenceWidth <= 0 {
		geo.ReferenceWidth = d.ReferenceWidth
	}
	if geo.TopFraction <= 0 {
		geo.TopFraction = d.TopFraction
	}
	if geo.HeightFraction <= 0 {
		geo.HeightFraction = d.HeightFraction
	}
	if geo.PageRatio <= 0 {
		geo.PageRatio = d.PageRatio
	}
	if geo.MinimizedSize <= 0 {
		geo.MinimizedSize = d.MinimizedSize
	}
	if geo.MinimizedRight <= 0 {
		geo.MinimizedRight = d.MinimizedRight
	}
	if geo.MinimizedBottom <= 0 {
		geo.MinimizedBottom = d.MinimizedBottom
	}
	return &Controller{geo: geo, listeners: make(map[int]func(from, to Mode)), l: log.WithComponent("window")}
}

// Initialize places the window horizontally centred for the reference width
// and at TopFraction of the viewport height. Only the first call has an effect.
func (c *Controller) Initialize(vp Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return
	}
	c.initialized = true
	c.vp = vp
	c.st = State{Mode: Normal, Position: Point{
		X: (vp.Width - c.geo.ReferenceWidth) / 2,
		Y: vp.Height * c.geo.TopFraction,
	}}
}

// SetViewport records a resized viewport. The window does not move.
func (c *Controller) SetViewport(vp Viewport) {
	c.mu.Lock()
	c.vp = vp
	c.mu.Unlock()
}

// Attach routes drags through h: the controller subscribes to h while a drag is active.
func (c *Controller) Attach(h *Hub) {
	c.mu.Lock()
	c.hub = h
	c.mu.Unlock()
}

// BeginDrag starts a drag at pointer p. Ignored outside Normal mode.
func (c *Controller) BeginDrag(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Mode != Normal {
		return
	}
	c.st.Dragging = true
	c.st.DragOffset = p.Sub(c.st.Position)
	if c.hub != nil && c.detach == nil {
		c.detach = c.hub.Subscribe(c.PointerMove, c.EndDrag)
	}
}

// PointerMove follows the pointer while dragging in Normal mode.
func (c *Controller) PointerMove(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.st.Dragging || c.st.Mode != Normal {
		return
	}
	c.st.Position = p.Sub(c.st.DragOffset)
}

// EndDrag stops any drag and releases the global pointer listeners.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	c.st.Dragging = false
	detach := c.takeDetachLocked()
	c.mu.Unlock()
	if detach != nil {
		detach()
	}
}

// ToggleFullScreen enters FullScreen from Normal, saving the position, or
// returns to Normal at the saved position. Ignored while Minimized.
func (c *Controller) ToggleFullScreen() {
	c.transition(func(st *State) {
		switch st.Mode {
		case Normal:
			saved := st.Position
			st.SavedPosition = &saved
			st.Mode = FullScreen
		case FullScreen:
			st.Mode = Normal
			if st.SavedPosition != nil {
				st.Position = *st.SavedPosition
			}
		}
	})
}

// Minimize collapses the window, remembering whether it was FullScreen.
func (c *Controller) Minimize() {
	c.transition(func(st *State) {
		if st.Mode == Minimized {
			return
		}
		st.ReturnToFullScreen = st.Mode == FullScreen
		saved := st.Position
		st.SavedPosition = &saved
		st.Mode = Minimized
	})
}

// Restore reopens a minimized window in the mode it was minimized from.
func (c *Controller) Restore() {
	c.transition(func(st *State) {
		if st.Mode != Minimized {
			return
		}
		if st.ReturnToFullScreen {
			st.Mode = FullScreen
		} else {
			st.Mode = Normal
			if st.SavedPosition != nil {
				st.Position = *st.SavedPosition
			}
		}
		st.ReturnToFullScreen = false
	})
}

// transition applies fn, ends drags that left Normal mode and notifies mode listeners.
func (c *Controller) transition(fn func(st *State)) {
	c.mu.Lock()
	from := c.st.Mode
	fn(&c.st)
	to := c.st.Mode
	var detach func()
	if to != Normal {
		c.st.Dragging = false
		detach = c.takeDetachLocked()
	}
	var fns []func(from, to Mode)
	if from != to {
		fns = c.listenersLocked()
	}
	c.mu.Unlock()

	if detach != nil {
		detach()
	}
	if from == to {
		return
	}
	c.l.Debug("mode change", slog.String("from", from.String()), slog.String("to", to.String()))
	for _, f := range fns {
		f(from, to)
	}
}

func (c *Controller) takeDetachLocked() func() {
	d := c.detach
	c.detach = nil
	return d
}

func (c *Controller) listenersLocked() []func(from, to Mode) {
	out := make([]func(from, to Mode), 0, len(c.listeners))
	for i := 0; i < c.nextL; i++ {
		if f, ok := c.listeners[i]; ok {
			out = append(out, f)
		}
	}
	return out
}

// OnModeChange registers fn for mode transitions and returns a func removing it.
func (c *Controller) OnModeChange(fn func(from, to Mode)) (cancel func()) {
	c.mu.Lock()
	id := c.nextL
	c.nextL++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Layout returns the window box for the current state and viewport.
func (c *Controller) Layout() Box {
	c.mu.Lock()
	defer c.mu.Unlock()
	return layout(c.geo, c.vp, c.st)
}

func layout(g Geometry, vp Viewport, st State) Box {
	switch st.Mode {
	case FullScreen:
		return Box{Width: vp.Width, Height: vp.Height}
	case Minimized:
		return Box{
			Left:   vp.Width - g.MinimizedRight,
			Top:    vp.Height - g.MinimizedBottom,
			Width:  g.MinimizedSize,
			Height: g.MinimizedSize,
		}
	default:
		h := g.TargetHeight
		if h <= 0 {
			h = vp.Height * g.HeightFraction
		}
		return Box{Left: st.Position.X, Top: st.Position.Y, Width: h * g.PageRatio, Height: h}
	}
}

// NormalSize returns the window size in Normal mode for the current viewport.
func (c *Controller) NormalSize() (w, h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := layout(c.geo, c.vp, State{Mode: Normal})
	return b.Width, b.Height
}

// Viewport returns the last viewport seen.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.st
	if st.SavedPosition != nil {
		p := *st.SavedPosition
		st.SavedPosition = &p
	}
	return st
}

// Close ends any drag and releases hub listeners. The controller stays usable.
func (c *Controller) Close() {
	c.EndDrag()
}
