//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"handnote/internal/render"
	"handnote/internal/shape"
	"handnote/internal/surface"
	"handnote/internal/window"
)

// NoteCanvas shows a drawing surface at its camera and turns drags into pen strokes.
type NoteCanvas struct {
	widget.BaseWidget
	surf *surface.Canvas

	mu     sync.Mutex
	stroke []shape.Point // page coordinates of the stroke being drawn
	Color  string
	Width  float64
}

func NewNoteCanvas(surf *surface.Canvas) *NoteCanvas {
	c := &NoteCanvas{surf: surf, Color: "black", Width: 2}
	c.ExtendBaseWidget(c)
	return c
}

func (c *NoteCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.White)
	img := canvas.NewRaster(c.draw)
	return &noteCanvasRenderer{c: c, bg: bg, img: img, objects: []fyne.CanvasObject{bg, img}}
}

// MinSize keeps the editor usable while minimised layouts settle.
func (c *NoteCanvas) MinSize() fyne.Size { return fyne.NewSize(120, 120) }

// frame returns the page area visible in a container of the given size.
func (c *NoteCanvas) frame(size fyne.Size) shape.Rect {
	cam := c.surf.Camera()
	return shape.Rect{X: -cam.X, Y: -cam.Y, W: float64(size.Width) / cam.Z, H: float64(size.Height) / cam.Z}
}

func (c *NoteCanvas) draw(w, h int) image.Image {
	size := c.Size()
	if w <= 0 || h <= 0 || size.Width <= 0 || size.Height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	shapes := c.surf.CurrentShapes()
	if s, ok := c.pending(); ok {
		shapes = append(shapes, s)
	}
	frame := c.frame(size)
	img, err := render.Raster(shapes, c.surf, render.Options{
		Scale:      float64(w) / frame.W,
		Background: color.White,
		Frame:      &frame,
	})
	if err != nil {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return img
}

// pending returns the stroke in progress as a draw shape.
func (c *NoteCanvas) pending() (shape.Shape, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stroke) == 0 {
		return shape.Shape{}, false
	}
	o := c.stroke[0]
	pts := make([]shape.Point, len(c.stroke))
	for i, p := range c.stroke {
		pts[i] = shape.Point{X: p.X - o.X, Y: p.Y - o.Y}
	}
	return shape.New(shape.Draw, o.X, o.Y, shape.Props{Points: pts, Color: c.Color, StrokeWidth: c.Width}), true
}

func (c *NoteCanvas) Dragged(e *fyne.DragEvent) {
	p := c.surf.ScreenToPage(shape.Pt{X: float64(e.Position.X), Y: float64(e.Position.Y)})
	c.mu.Lock()
	c.stroke = append(c.stroke, shape.Point{X: p.X, Y: p.Y})
	c.mu.Unlock()
	c.Refresh()
}

// DragEnd commits the stroke as a user edit.
func (c *NoteCanvas) DragEnd() {
	s, ok := c.pending()
	c.mu.Lock()
	c.stroke = nil
	c.mu.Unlock()
	if ok {
		c.surf.Add(s)
	}
	c.Refresh()
}

type noteCanvasRenderer struct {
	c       *NoteCanvas
	bg      *canvas.Rectangle
	img     *canvas.Raster
	objects []fyne.CanvasObject
}

func (r *noteCanvasRenderer) Destroy()                     {}
func (r *noteCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *noteCanvasRenderer) MinSize() fyne.Size           { return r.c.MinSize() }
func (r *noteCanvasRenderer) Refresh()                     { r.Layout(r.c.Size()); canvas.Refresh(r.c) }

func (r *noteCanvasRenderer) Layout(size fyne.Size) {
	r.c.surf.Resize(float64(size.Width), float64(size.Height))
	for _, o := range r.objects {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
}

// titleBar is the drag handle of the floating note. Drags begin on the
// controller and continue through the global pointer hub.
type titleBar struct {
	widget.BaseWidget
	label    *widget.Label
	ctrl     *window.Controller
	hub      *window.Hub
	origin   func() fyne.Position
	onMove   func()
	dragging bool
}

func newTitleBar(title string, ctrl *window.Controller, hub *window.Hub, origin func() fyne.Position, onMove func()) *titleBar {
	t := &titleBar{label: widget.NewLabel(title), ctrl: ctrl, hub: hub, origin: origin, onMove: onMove}
	t.ExtendBaseWidget(t)
	return t
}

func (t *titleBar) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(t.label)
}

// pagePoint converts an event position on the bar to page coordinates.
func (t *titleBar) pagePoint(pos fyne.Position) window.Point {
	abs := fyne.CurrentApp().Driver().AbsolutePositionForObject(t)
	o := t.origin()
	return window.Point{X: float64(abs.X + pos.X - o.X), Y: float64(abs.Y + pos.Y - o.Y)}
}

func (t *titleBar) Dragged(e *fyne.DragEvent) {
	p := t.pagePoint(e.Position)
	if !t.dragging {
		t.dragging = true
		t.ctrl.BeginDrag(window.Point{X: p.X - float64(e.Dragged.DX), Y: p.Y - float64(e.Dragged.DY)})
	}
	t.hub.Move(p)
	t.onMove()
}

func (t *titleBar) DragEnd() {
	t.dragging = false
	t.hub.Up()
	t.onMove()
}
