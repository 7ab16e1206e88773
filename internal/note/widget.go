/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package note is the handwritten-note widget: it moves a note between its
// closed thumbnail, the paper-type picker and the open editor, and hands the
// serialized editor state to the host on close.
package note

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"handnote/internal/assets"
	"handnote/internal/editorstate"
	hlog "handnote/internal/log"
	"handnote/internal/notify"
	"handnote/internal/paper"
	"handnote/internal/render"
	"handnote/internal/sanitize"
	"handnote/internal/shape"
	"handnote/internal/surface"
	"handnote/internal/window"
)

// ErrNotOpen is returned by editor actions while the editor is not open.
var ErrNotOpen = errors.New("note: editor not open")

// OptionsKey is the block property the widget persists through.
const OptionsKey = "editorOptions"

// WarnNoType is shown when proceeding without a paper type.
const WarnNoType = "Please select note type first"

// Mode is the widget's top-level presentation.
type Mode int

const (
	Closed Mode = iota
	TypeSelection
	Open
)

func (m Mode) String() string {
	switch m {
	case Closed:
		return "closed"
	case TypeSelection:
		return "type-selection"
	case Open:
		return "open"
	}
	return "unknown"
}

// UpdateFunc receives persisted block properties.
type UpdateFunc func(key string, value any)

// SurfaceFactory builds a drawing surface of the given container size.
type SurfaceFactory func(w, h float64) surface.Surface

type Config struct {
	Editor         editorstate.Config
	Geometry       window.Geometry
	ZoomDebounce   time.Duration
	FullScreenZoom float64
}

// Option configures a Widget.
type Option func(*Widget)

func WithConfig(cfg Config) Option         { return func(w *Widget) { w.cfg = cfg } }
func WithNotifier(n notify.Notifier) Option { return func(w *Widget) { w.notify = n } }
func WithFetcher(f assets.Fetcher) Option   { return func(w *Widget) { w.fetch = f } }
func WithHub(h *window.Hub) Option          { return func(w *Widget) { w.hub = h } }
func WithSurface(f SurfaceFactory) Option   { return func(w *Widget) { w.newSurface = f } }

// Thumbnail is what the closed widget shows.
type Thumbnail struct {
	SVG         string
	Placeholder bool
	Width       int
	Height      int
}

// Widget is one handwritten note on the host page.
type Widget struct {
	cfg        Config
	notify     notify.Notifier
	fetch      assets.Fetcher
	hub        *window.Hub
	newSurface SurfaceFactory
	update     UpdateFunc
	l          *slog.Logger

	mu        sync.Mutex
	mode      Mode
	opts      editorstate.EditorOptions
	selected  paper.Type
	vp        window.Viewport
	ctrl      *window.Controller
	store     *editorstate.Store
	surf      surface.Surface
	minZoom   float64
	zoomTimer *time.Timer
	stopMode  func()
}

// New returns a closed widget over the persisted opts. update receives the
// serialized state each time the editor closes.
func New(opts editorstate.EditorOptions, update UpdateFunc, o ...Option) *Widget {
	w := &Widget{opts: opts, update: update, l: hlog.WithComponent("note")}
	for _, fn := range o {
		fn(w)
	}
	if w.cfg.ZoomDebounce <= 0 {
		w.cfg.ZoomDebounce = 100 * time.Millisecond
	}
	if w.cfg.FullScreenZoom <= 0 {
		w.cfg.FullScreenZoom = FullScreenZoom
	}
	if w.notify == nil {
		w.notify = notify.Log{}
	}
	if w.fetch == nil {
		w.fetch = assets.Embedded{}
	}
	if w.hub == nil {
		w.hub = window.NewHub()
	}
	if w.newSurface == nil {
		w.newSurface = func(width, height float64) surface.Surface { return surface.NewCanvas(width, height) }
	}
	if w.update == nil {
		w.update = func(string, any) {}
	}
	return w
}

func (w *Widget) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Options returns the last persisted options.
func (w *Widget) Options() editorstate.EditorOptions {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts
}

// Selected returns the paper type picked in the type-selection step.
func (w *Widget) Selected() paper.Type {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

// Controller, Store and Surface expose the open editor's parts; nil when not open.
func (w *Widget) Controller() *window.Controller {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctrl
}

func (w *Widget) Store() *editorstate.Store {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store
}

func (w *Widget) Surface() surface.Surface {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.surf
}

// Hub is the global pointer observer feeding window drags.
func (w *Widget) Hub() *window.Hub { return w.hub }

// Thumbnail returns the sanitised preview of the persisted note.
func (w *Widget) Thumbnail() Thumbnail {
	w.mu.Lock()
	st := editorstate.Decode(w.opts, w.defaultDims())
	w.mu.Unlock()
	svg := sanitize.SVG(st.Preview)
	return Thumbnail{SVG: svg, Placeholder: svg == "", Width: st.Dimensions.Width, Height: st.Dimensions.Height}
}

func (w *Widget) defaultDims() shape.Dimensions {
	if d := w.cfg.Editor.DefaultDimensions; d.Width > 0 && d.Height > 0 {
		return d
	}
	return editorstate.DefaultDimensions
}

// Open leaves the closed state. Notes with persisted content go straight to
// the editor; fresh notes ask for a paper type first.
func (w *Widget) Open(ctx context.Context, vp window.Viewport) {
	w.mu.Lock()
	if w.mode != Closed {
		w.mu.Unlock()
		return
	}
	w.vp = vp
	st := editorstate.Decode(w.opts, w.defaultDims())
	if !st.HasContent() {
		w.mode = TypeSelection
		w.selected = ""
		w.mu.Unlock()
		w.l.DebugContext(ctx, "type selection")
		return
	}
	w.mu.Unlock()
	w.openEditor(ctx, st.NoteType)
}

// SelectType toggles t as the chosen paper type.
func (w *Widget) SelectType(t paper.Type) {
	if !t.Valid() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != TypeSelection {
		return
	}
	if w.selected == t {
		w.selected = ""
		return
	}
	w.selected = t
}

// Proceed opens the editor with the selected paper type, or warns when none is selected.
func (w *Widget) Proceed(ctx context.Context) {
	w.mu.Lock()
	if w.mode != TypeSelection {
		w.mu.Unlock()
		return
	}
	t := w.selected
	w.mu.Unlock()
	if t == "" {
		w.notify.Warn(ctx, WarnNoType)
		return
	}
	w.openEditor(ctx, t)
}

// Cancel leaves the type-selection step without saving.
func (w *Widget) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode == TypeSelection {
		w.mode = Closed
		w.selected = ""
	}
}

func (w *Widget) openEditor(ctx context.Context, t paper.Type) {
	ctrl := window.NewController(w.cfg.Geometry)
	w.mu.Lock()
	vp := w.vp
	opts := w.opts
	w.mu.Unlock()

	ctrl.Initialize(vp)
	ctrl.Attach(w.hub)
	nw, nh := ctrl.NormalSize()
	surf := w.newSurface(nw, nh)
	if t != "" {
		opts.NoteType = string(t)
	}
	store := editorstate.New(w.cfg.Editor, w.fetch)
	store.Hydrate(ctx, surf, opts)

	w.mu.Lock()
	w.ctrl, w.store, w.surf = ctrl, store, surf
	w.minZoom = MinZoom
	w.mode = Open
	w.mu.Unlock()
	stop := ctrl.OnModeChange(w.onModeChange)
	w.mu.Lock()
	w.stopMode = stop
	w.mu.Unlock()
	w.l.InfoContext(ctx, "editor opened", slog.String("noteType", string(t)), slog.Float64("w", nw), slog.Float64("h", nh))
}

// Close persists and tears down the editor. In type selection it cancels.
func (w *Widget) Close(ctx context.Context) {
	w.mu.Lock()
	switch w.mode {
	case TypeSelection:
		w.mode = Closed
		w.selected = ""
		w.mu.Unlock()
		return
	case Closed:
		w.mu.Unlock()
		return
	}
	store, ctrl, stopMode := w.store, w.ctrl, w.stopMode
	if w.zoomTimer != nil {
		w.zoomTimer.Stop()
		w.zoomTimer = nil
	}
	w.mu.Unlock()

	store.Flush(ctx)
	opts := store.Serialize()
	store.Close()
	if stopMode != nil {
		stopMode()
	}
	ctrl.Close()

	w.mu.Lock()
	w.opts = opts
	w.mode = Closed
	w.selected = ""
	w.ctrl, w.store, w.surf, w.stopMode = nil, nil, nil, nil
	w.mu.Unlock()

	w.l.InfoContext(ctx, "editor closed", slog.Bool("everChanged", opts.IsEverChanged))
	w.update(OptionsKey, opts)
}

// Resize adapts the camera zoom to a new editor container size.
func (w *Widget) Resize(width, height float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != Open {
		return
	}
	nw, nh := w.ctrl.NormalSize()
	vp := w.ctrl.Viewport()
	z := ZoomFor(Size{width, height}, Size{nw, nh}, Size{vp.Width, vp.Height}, w.minZoom, w.cfg.FullScreenZoom)
	surf := w.surf
	if math.Abs(z-surf.Camera().Z) < zoomEpsilon {
		return
	}
	if w.zoomTimer != nil {
		w.zoomTimer.Stop()
	}
	w.zoomTimer = time.AfterFunc(w.cfg.ZoomDebounce, func() {
		surf.SetCamera(surface.Camera{Z: z})
	})
}

func (w *Widget) onModeChange(from, to window.Mode) {
	w.mu.Lock()
	surf := w.surf
	switch {
	case to == window.FullScreen:
		w.minZoom = w.cfg.FullScreenZoom
	case from == window.FullScreen:
		w.minZoom = MinZoom
	default:
		w.mu.Unlock()
		return
	}
	z := w.minZoom
	w.mu.Unlock()
	if to == window.FullScreen && surf != nil {
		surf.SetCamera(surface.Camera{Z: z})
	}
}

// MinZoomLevel returns the current zoom floor.
func (w *Widget) MinZoomLevel() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minZoom
}

type imagePlacer interface {
	PlaceImage(a shape.Asset) shape.Shape
}

// InsertStamp places a named stamp image centred in the visible area.
func (w *Widget) InsertStamp(ctx context.Context, name string) (shape.Shape, error) {
	w.mu.Lock()
	surf, store := w.surf, w.store
	open := w.mode == Open
	w.mu.Unlock()
	if !open {
		return shape.Shape{}, ErrNotOpen
	}
	a, err := render.Stamp(name)
	if err != nil {
		return shape.Shape{}, err
	}
	if p, ok := surf.(imagePlacer); ok {
		return p.PlaceImage(a), nil
	}
	cam := surf.Camera()
	if cam.Z <= 0 {
		cam.Z = 1
	}
	// the paper is square, so the vertical centre follows the width
	half := surf.Width() / 2 / cam.Z
	s := shape.New(shape.Image, half-cam.X-a.Props.W/2, half-cam.Y-a.Props.H/2, shape.Props{W: a.Props.W, H: a.Props.H, AssetID: a.ID})
	surf.CreateAssets(a)
	surf.CreateShapes(s)
	store.OnSurfaceChanged(surf.CurrentShapes())
	w.l.DebugContext(ctx, "stamp inserted", slog.String("stamp", name))
	return s, nil
}
