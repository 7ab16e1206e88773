/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editorstate holds the editor state of one handwritten note and
// converts it to and from the host's persisted editorOptions.
package editorstate

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"handnote/internal/assets"
	hlog "handnote/internal/log"
	"handnote/internal/paper"
	"handnote/internal/render"
	"handnote/internal/sanitize"
	"handnote/internal/shape"
	"handnote/internal/surface"
)

const (
	DefaultDebounce = 100 * time.Millisecond
	defaultSide     = 250
)

// DefaultDimensions is the preview box used when none is persisted.
var DefaultDimensions = shape.Dimensions{Width: defaultSide, Height: defaultSide}

// TileFunc turns a paper tile svg into an image data URL of w×h pixels.
type TileFunc func(svg []byte, w, h int) (string, error)

type Config struct {
	Debounce          time.Duration
	DefaultType       paper.Type
	DefaultDimensions shape.Dimensions
	Tile              TileFunc
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if !c.DefaultType.Valid() {
		c.DefaultType = paper.Default
	}
	if c.DefaultDimensions.Width <= 0 || c.DefaultDimensions.Height <= 0 {
		c.DefaultDimensions = DefaultDimensions
	}
	if c.Tile == nil {
		c.Tile = render.PaperDataURL
	}
	return c
}

// Decode normalises persisted options into a State. Malformed fields are
// dropped and logged; Decode never fails.
func Decode(opts EditorOptions, def shape.Dimensions) State {
	l := hlog.WithOperation(hlog.WithComponent("editorstate"), "decode")
	var st State
	if t, ok := paper.Parse(opts.NoteType); ok {
		st.NoteType = t
	} else if opts.NoteType != "" {
		l.Debug("unknown note type", slog.String("noteType", opts.NoteType))
	}
	st.EverChanged = opts.IsEverChanged

	data, err := decodeEditorData(opts.EditorData)
	if err != nil {
		l.Debug("editorData dropped", slog.Any("err", err))
	}
	st.Background = data.Background
	st.Assets = data.Assets
	st.Shapes = data.Shapes
	if st.Background != nil {
		st.Shapes = shape.Without(st.Shapes, st.Background.ShapeID)
	}

	img, err := decodeImageData(opts.ImageData)
	if err != nil {
		l.Debug("imageData dropped", slog.Any("err", err))
	}
	st.Preview = img.SVG

	st.Dimensions = def
	switch {
	case opts.ImageWidth > 0 && opts.ImageHeight > 0:
		st.Dimensions = shape.Dimensions{Width: round(float64(opts.ImageWidth)), Height: round(float64(opts.ImageHeight))}
	case img.Width > 0 && img.Height > 0:
		st.Dimensions = shape.Dimensions{Width: img.Width, Height: img.Height}
	}
	return st
}

func round(f float64) int { return int(math.Round(f)) }

// Encode is the inverse of Decode.
func Encode(st State) EditorOptions {
	opts := EditorOptions{
		NoteType:      string(st.NoteType),
		ImageWidth:    FlexNumber(st.Dimensions.Width),
		ImageHeight:   FlexNumber(st.Dimensions.Height),
		IsEverChanged: st.EverChanged,
	}
	if st.Background != nil || len(st.Assets) > 0 || len(st.Shapes) > 0 {
		raw, err := quote(EditorData{Background: st.Background, Assets: st.Assets, Shapes: st.Shapes})
		if err == nil {
			opts.EditorData = raw
		}
	}
	if st.Preview != "" {
		raw, err := quote(ImageData{Width: st.Dimensions.Width, Height: st.Dimensions.Height, SVG: st.Preview})
		if err == nil {
			opts.ImageData = raw
		}
	}
	return opts
}

// Store owns the State of one open note and keeps it in sync with a surface.
type Store struct {
	cfg   Config
	fetch assets.Fetcher
	l     *slog.Logger

	flushMu sync.Mutex // serialises flushes

	mu        sync.Mutex
	st        State
	seen      []shape.Shape // last user shapes reported by the surface
	latest    []shape.Shape // full shape list awaiting flush
	pending   bool
	stale     bool // last render failed
	closed    bool
	renders   int
	surf      surface.Surface
	stop      func()
	timer     *time.Timer
	cancel    context.CancelFunc
	observers map[int]func(State)
	nextObs   int

	wg sync.WaitGroup
}

// New returns a Store; fetch supplies paper assets for default backgrounds.
func New(cfg Config, fetch assets.Fetcher) *Store {
	if fetch == nil {
		fetch = assets.Embedded{}
	}
	return &Store{
		cfg:       cfg.withDefaults(),
		fetch:     fetch,
		l:         hlog.WithComponent("editorstate"),
		observers: map[int]func(State){},
	}
}

// Decode normalises opts with the store's default dimensions.
func (s *Store) Decode(opts EditorOptions) State { return Decode(opts, s.cfg.DefaultDimensions) }

// Hydrate decodes opts and materialises the result on surf. Calling it again
// with the same persisted background replaces shapes instead of duplicating them.
func (s *Store) Hydrate(ctx context.Context, surf surface.Surface, opts EditorOptions) {
	st := s.Decode(opts)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prevStop := s.stop
	if s.cancel != nil {
		s.cancel()
	}
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.st = st
	s.seen = shape.CloneAll(st.Shapes)
	s.latest = nil
	s.pending = false
	s.surf = surf
	s.mu.Unlock()
	if prevStop != nil {
		prevStop()
	}

	if bg := st.Background; bg != nil {
		a, ok := findAsset(st.Assets, bg.AssetID)
		if !ok {
			a = backgroundAsset(bg.AssetID, "", bg.W, bg.H)
		}
		surf.CreateAssets(a)
		surf.CreateShapes(BackgroundShape(*bg))
	} else if !st.EverChanged {
		t := st.NoteType
		if t == "" {
			t = s.cfg.DefaultType
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loadBackground(loadCtx, surf, t)
		}()
	}

	if len(st.Assets) > 0 {
		surf.CreateAssets(st.Assets...)
	}
	if len(st.Shapes) > 0 {
		surf.CreateShapes(st.Shapes...)
	}
	if st.Background != nil {
		surf.SendToBack(st.Background.ShapeID)
	}

	stop := surf.OnChange(s.OnSurfaceChanged)
	s.mu.Lock()
	if s.closed || s.surf != surf {
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()
	s.l.DebugContext(ctx, "hydrated",
		slog.Int("shapes", len(st.Shapes)),
		slog.Bool("background", st.Background != nil),
		slog.String("noteType", string(st.NoteType)))
}

func findAsset(list []shape.Asset, id shape.AssetID) (shape.Asset, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return shape.Asset{}, false
}

func backgroundAsset(id shape.AssetID, src string, w, h float64) shape.Asset {
	a := shape.NewImageAsset("paper-background", "image/png", src, w, h)
	a.ID = id
	return a
}

// BackgroundShape is the locked image shape at the origin that shows the paper.
func BackgroundShape(bg shape.Background) shape.Shape {
	sh := shape.New(shape.Image, 0, 0, shape.Props{W: bg.W, H: bg.H, AssetID: bg.AssetID})
	sh.ID = bg.ShapeID
	sh.IsLocked = true
	return sh
}

// loadBackground paints the default paper for t across a square the width of surf.
func (s *Store) loadBackground(ctx context.Context, surf surface.Surface, t paper.Type) {
	l := hlog.WithOperation(s.l, "background")
	side := round(surf.Width())
	if side <= 0 {
		side = s.cfg.DefaultDimensions.Width
	}
	link := t.AssetLink()
	data, err := s.fetch.Fetch(ctx, link)
	if err != nil {
		l.WarnContext(ctx, "paper asset unavailable", slog.String("link", link), slog.Any("err", err))
		return
	}
	src, err := s.cfg.Tile(data, side, side)
	if err != nil {
		l.WarnContext(ctx, "paper tile failed", slog.String("link", link), slog.Any("err", err))
		return
	}
	if ctx.Err() != nil {
		return
	}

	bg := shape.Background{ShapeID: shape.NewID(), AssetID: shape.NewAssetID(), W: float64(side), H: float64(side)}
	a := backgroundAsset(bg.AssetID, src, bg.W, bg.H)

	s.mu.Lock()
	if s.closed || s.st.Background != nil || s.surf != surf || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.st.Background = &bg
	s.st.EverChanged = true
	s.st.Assets = append(s.st.Assets, a)
	snap := s.st.Clone()
	obs := s.observersLocked()
	s.mu.Unlock()

	surf.CreateAssets(a)
	surf.CreateShapes(BackgroundShape(bg))
	surf.SendToBack(bg.ShapeID)

	l.InfoContext(ctx, "default background created", slog.String("noteType", string(t)), slog.Int("side", side))
	for _, fn := range obs {
		fn(snap)
	}
}

// Wait blocks until in-flight background loads have finished.
func (s *Store) Wait() { s.wg.Wait() }

// OnSurfaceChanged receives the surface's full shape list and schedules a
// debounced flush when user content differs from what was last seen.
func (s *Store) OnSurfaceChanged(shapes []shape.Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	user := s.userShapesLocked(shapes)
	if shape.Equal(user, s.seen) && !s.stale {
		return
	}
	s.seen = shape.CloneAll(user)
	s.latest = shape.CloneAll(shapes)
	s.pending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() { s.flush(context.Background()) })
}

func (s *Store) userShapesLocked(shapes []shape.Shape) []shape.Shape {
	if s.st.Background == nil {
		return shapes
	}
	return shape.Without(shapes, s.st.Background.ShapeID)
}

// Flush runs a pending debounced update now.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.flush(ctx)
}

func (s *Store) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.closed || !s.pending || s.surf == nil {
		s.mu.Unlock()
		return
	}
	s.pending = false
	all := s.latest
	surf := s.surf
	s.mu.Unlock()

	l := hlog.WithOperation(s.l, "flush")
	svg, err := surf.RenderSVG(ctx, all)
	var used []shape.Asset
	for _, id := range shape.UsedAssets(all) {
		if a, ok := surf.Asset(id); ok {
			used = append(used, a)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.renders++
	s.st.Shapes = s.userShapesLocked(all)
	s.st.Assets = used
	s.st.EverChanged = true
	if err != nil {
		s.stale = true
		l.WarnContext(ctx, "preview render failed", slog.Any("err", err))
	} else {
		s.stale = false
		s.st.Preview = svg
	}
	snap := s.st.Clone()
	obs := s.observersLocked()
	s.mu.Unlock()

	l.DebugContext(ctx, "state updated", slog.Int("shapes", len(snap.Shapes)), slog.Int("assets", len(snap.Assets)))
	for _, fn := range obs {
		fn(snap)
	}
}

// Serialize returns the persisted form of the current state.
func (s *Store) Serialize() EditorOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Encode(s.st)
}

// ExportPreview returns the sanitised preview svg, or "" when none exists.
func (s *Store) ExportPreview() string {
	s.mu.Lock()
	svg := s.st.Preview
	s.mu.Unlock()
	return sanitize.SVG(svg)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// SetNoteType records the chosen paper type before hydration of a fresh note.
func (s *Store) SetNoteType(t paper.Type) {
	s.mu.Lock()
	s.st.NoteType = t
	s.mu.Unlock()
}

// RenderCount reports how many preview renders have run.
func (s *Store) RenderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// OnUpdate registers fn to receive a copy of the state after each write.
func (s *Store) OnUpdate(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) observersLocked() []func(State) {
	out := make([]func(State), 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if fn, ok := s.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// Close stops the debounce timer, unsubscribes from the surface and makes
// late background loads a no-op. It does not flush.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}
