/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package surface

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"handnote/internal/log"
	"handnote/internal/shape"
	"handnote/internal/undo"

	"github.com/google/uuid"
)

// Canvas is an in-memory Surface.
//
// Calls through the Surface interface are programmatic: they neither record
// history nor notify listeners. The editing methods (Add, Update, Delete,
// Clear, PlaceImage, Undo, Redo) act on behalf of the user and do both.
type Canvas struct {
	mu        sync.Mutex
	key       string
	w, h      float64
	shapes    []shape.Shape
	assets    map[shape.AssetID]shape.Asset
	camera    Camera
	listeners map[int]ChangeFunc
	nextL     int
	history   *undo.Manager
	now       func() time.Time
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithHistory shares an undo manager between canvases.
func WithHistory(m *undo.Manager) Option { return func(c *Canvas) { c.history = m } }

// WithClock replaces time.Now for history coalescing.
func WithClock(now func() time.Time) Option { return func(c *Canvas) { c.now = now } }

var _ Surface = (*Canvas)(nil)

// NewCanvas returns an empty canvas with a container of w×h screen pixels.
func NewCanvas(w, h float64, opts ...Option) *Canvas {
	c := &Canvas{
		key:       uuid.NewString(),
		w:         w,
		h:         h,
		assets:    make(map[shape.AssetID]shape.Asset),
		camera:    Camera{Z: 1},
		listeners: make(map[int]ChangeFunc),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.history == nil {
		c.history = undo.NewManager(undo.Config{MaxDepth: 200, MinInterval: 300 * time.Millisecond})
	}
	return c
}

func (c *Canvas) Width() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w
}

func (c *Canvas) Height() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

// Resize changes the container size.
func (c *Canvas) Resize(w, h float64) {
	c.mu.Lock()
	c.w, c.h = w, h
	c.mu.Unlock()
}

func (c *Canvas) CreateAssets(assets ...shape.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range assets {
		c.assets[a.ID] = a.Clone()
	}
}

func (c *Canvas) CreateShapes(shapes ...shape.Shape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(shapes)
}

func (c *Canvas) upsertLocked(shapes []shape.Shape) {
	for _, s := range shapes {
		s = s.Clone()
		if s.TypeName == "" {
			s.TypeName = "shape"
		}
		if i := c.indexLocked(s.ID); i >= 0 {
			c.shapes[i] = s
			continue
		}
		c.shapes = append(c.shapes, s)
	}
}

func (c *Canvas) indexLocked(id shape.ID) int {
	for i := range c.shapes {
		if c.shapes[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Canvas) CurrentShapes() []shape.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	return shape.CloneAll(c.shapes)
}

func (c *Canvas) Shape(id shape.ID) (shape.Shape, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.shapes[i].Clone(), true
	}
	return shape.Shape{}, false
}

func (c *Canvas) Asset(id shape.AssetID) (shape.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assets[id]
	if !ok {
		return shape.Asset{}, false
	}
	return a.Clone(), true
}

func (c *Canvas) SendToBack(ids ...shape.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	want := make(map[shape.ID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	back := make([]shape.Shape, 0, len(c.shapes))
	rest := make([]shape.Shape, 0, len(c.shapes))
	for _, s := range c.shapes {
		if want[s.ID] {
			back = append(back, s)
		} else {
			rest = append(rest, s)
		}
	}
	c.shapes = append(back, rest...)
}

func (c *Canvas) OnChange(fn ChangeFunc) (stop func()) {
	c.mu.Lock()
	id := c.nextL
	c.nextL++
	c.listeners[id] = fn
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered change listeners.
func (c *Canvas) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Canvas) SetCamera(cam Camera) {
	if cam.Z <= 0 {
		cam.Z = 1
	}
	c.mu.Lock()
	c.camera = cam
	c.mu.Unlock()
}

func (c *Canvas) Camera() Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

// ScreenToPage converts a container point to page coordinates.
func (c *Canvas) ScreenToPage(p shape.Pt) shape.Pt {
	cam := c.Camera()
	return shape.Pt{X: p.X/cam.Z - cam.X, Y: p.Y/cam.Z - cam.Y}
}

func (c *Canvas) RenderSVG(ctx context.Context, shapes []shape.Shape) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(shapes) == 0 {
		return "", nil
	}
	c.mu.Lock()
	assets := make(map[shape.AssetID]shape.Asset, len(c.assets))
	for id, a := range c.assets {
		assets[id] = a
	}
	c.mu.Unlock()
	return renderSVG(shapes, assets)
}

// Add creates shapes as a user edit.
func (c *Canvas) Add(shapes ...shape.Shape) {
	c.edit(func() bool {
		c.upsertLocked(shapes)
		return len(shapes) > 0
	})
}

// Update replaces an existing unlocked shape as a user edit. Image shapes keep their aspect ratio.
func (c *Canvas) Update(next shape.Shape) bool {
	var ok bool
	c.edit(func() bool {
		i := c.indexLocked(next.ID)
		if i < 0 || c.shapes[i].IsLocked {
			return false
		}
		c.shapes[i] = shape.LockAspectRatio(c.shapes[i], next.Clone())
		ok = true
		return true
	})
	return ok
}

// Delete removes unlocked shapes as a user edit.
func (c *Canvas) Delete(ids ...shape.ID) {
	c.edit(func() bool {
		del := make(map[shape.ID]bool, len(ids))
		for _, id := range ids {
			del[id] = true
		}
		return c.retainLocked(func(s shape.Shape) bool { return s.IsLocked || !del[s.ID] })
	})
}

// Clear removes every unlocked shape as a user edit.
func (c *Canvas) Clear() {
	c.edit(func() bool {
		return c.retainLocked(func(s shape.Shape) bool { return s.IsLocked })
	})
}

func (c *Canvas) retainLocked(keep func(shape.Shape) bool) bool {
	out := c.shapes[:0:0]
	for _, s := range c.shapes {
		if keep(s) {
			out = append(out, s)
		}
	}
	changed := len(out) != len(c.shapes)
	c.shapes = out
	return changed
}

// PlaceImage creates asset and an image shape of its size centred in the visible area.
func (c *Canvas) PlaceImage(a shape.Asset) shape.Shape {
	c.mu.Lock()
	cam := c.camera
	cx, cy := c.w/2/cam.Z-cam.X, c.h/2/cam.Z-cam.Y
	c.mu.Unlock()
	s := shape.New(shape.Image, cx-a.Props.W/2, cy-a.Props.H/2, shape.Props{W: a.Props.W, H: a.Props.H, AssetID: a.ID})
	c.CreateAssets(a)
	c.Add(s)
	return s
}

// Undo reverts the last user edit.
func (c *Canvas) Undo() bool { return c.travel(c.history.Undo) }

// Redo re-applies the last undone edit.
func (c *Canvas) Redo() bool { return c.travel(c.history.Redo) }

func (c *Canvas) CanUndo() bool { return c.history.CanUndo(c.key) }
func (c *Canvas) CanRedo() bool { return c.history.CanRedo(c.key) }

func (c *Canvas) travel(step func(key string, current []byte) ([]byte, bool)) bool {
	c.mu.Lock()
	cur, err := json.Marshal(c.shapes)
	if err != nil {
		c.mu.Unlock()
		return false
	}
	blob, ok := step(c.key, cur)
	if !ok {
		c.mu.Unlock()
		return false
	}
	var restored []shape.Shape
	if err := json.Unmarshal(blob, &restored); err != nil {
		c.mu.Unlock()
		log.WithComponent("surface").Error("restore history entry", slog.Any("err", err))
		return false
	}
	c.shapes = restored
	snap := shape.CloneAll(c.shapes)
	fns := c.listenersLocked()
	c.mu.Unlock()
	notify(fns, snap)
	return true
}

// edit runs fn under the lock, records the prior state when fn reports a change
// and notifies listeners afterwards.
func (c *Canvas) edit(fn func() bool) {
	c.mu.Lock()
	before, err := json.Marshal(c.shapes)
	if !fn() {
		c.mu.Unlock()
		return
	}
	if err == nil {
		c.history.Record(c.key, before, c.now())
	}
	snap := shape.CloneAll(c.shapes)
	fns := c.listenersLocked()
	c.mu.Unlock()
	notify(fns, snap)
}

func (c *Canvas) listenersLocked() []ChangeFunc {
	fns := make([]ChangeFunc, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []ChangeFunc, shapes []shape.Shape) {
	for _, fn := range fns {
		fn(shape.CloneAll(shapes))
	}
}
