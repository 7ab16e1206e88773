/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package note

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"handnote/internal/assets"
	"handnote/internal/editorstate"
	"handnote/internal/notify"
	"handnote/internal/paper"
	"handnote/internal/shape"
	"handnote/internal/surface"
	"handnote/internal/window"
)

const fakeTile = "data:image/png;base64,iVBORw0KGgo="

var desktop = window.Viewport{Width: 1600, Height: 1000}

type fakeFetcher struct {
	err   error
	calls atomic.Int32
	mu    sync.Mutex
	links []string
}

func (f *fakeFetcher) Fetch(_ context.Context, link string) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.links = append(f.links, link)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20"/>`), nil
}

type updates struct {
	mu   sync.Mutex
	keys []string
	vals []any
}

func (u *updates) fn(key string, value any) {
	u.mu.Lock()
	u.keys = append(u.keys, key)
	u.vals = append(u.vals, value)
	u.mu.Unlock()
}

func (u *updates) last(t *testing.T) editorstate.EditorOptions {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.vals) == 0 {
		t.Fatalf("host was not updated")
	}
	opts, ok := u.vals[len(u.vals)-1].(editorstate.EditorOptions)
	if !ok {
		t.Fatalf("update value is %T", u.vals[len(u.vals)-1])
	}
	return opts
}

func newWidget(t *testing.T, opts editorstate.EditorOptions, f assets.Fetcher, n notify.Notifier, u *updates) *Widget {
	t.Helper()
	cfg := Config{
		Editor: editorstate.Config{
			Debounce: 10 * time.Millisecond,
			Tile:     func([]byte, int, int) (string, error) { return fakeTile, nil },
		},
		ZoomDebounce: 5 * time.Millisecond,
	}
	return New(opts, u.fn, WithConfig(cfg), WithFetcher(f), WithNotifier(n))
}

func stroke(x float64) shape.Shape {
	return shape.New(shape.Draw, x, 20, shape.Props{Points: []shape.Point{{X: 0, Y: 0}, {X: 30, Y: 12}}, Color: "black", StrokeWidth: 2})
}

func persistedWithBackground(shapes ...shape.Shape) (editorstate.EditorOptions, shape.Background) {
	bg := shape.Background{ShapeID: shape.NewID(), AssetID: shape.NewAssetID(), W: 400, H: 400}
	a := shape.NewImageAsset("paper-background", "image/png", fakeTile, 400, 400)
	a.ID = bg.AssetID
	return editorstate.Encode(editorstate.State{
		NoteType:    paper.Squared,
		EverChanged: true,
		Background:  &bg,
		Assets:      []shape.Asset{a},
		Shapes:      shapes,
		Dimensions:  editorstate.DefaultDimensions,
	}), bg
}

func nearPoint(a, b window.Point) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestFreshNotePicksPaperType(t *testing.T) {
	ctx := context.Background()
	var f fakeFetcher
	var rec notify.Recorder
	var u updates
	w := newWidget(t, editorstate.EditorOptions{}, &f, &rec, &u)

	w.Open(ctx, desktop)
	if w.Mode() != TypeSelection {
		t.Fatalf("mode = %v, want type selection", w.Mode())
	}

	w.Proceed(ctx)
	if w.Mode() != TypeSelection {
		t.Fatalf("proceed without a type left type selection")
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != WarnNoType {
		t.Fatalf("warnings = %v", msgs)
	}

	w.SelectType(paper.Ruled)
	w.SelectType(paper.Ruled)
	if w.Selected() != "" {
		t.Fatalf("selecting the selected type must clear it")
	}
	w.SelectType(paper.Ruled)
	w.Proceed(ctx)
	if w.Mode() != Open {
		t.Fatalf("mode = %v, want open", w.Mode())
	}

	w.Store().Wait()
	st := w.Store().Snapshot()
	if st.NoteType != paper.Ruled || !st.EverChanged || st.Background == nil {
		t.Fatalf("state after proceed = %+v", st)
	}
	if side := math.Round(w.Surface().Width()); st.Background.W != side {
		t.Fatalf("background side %v, want surface width %v", st.Background.W, side)
	}
	if len(f.links) != 1 || f.links[0] != paper.Ruled.AssetLink() {
		t.Fatalf("fetched %v", f.links)
	}

	w.Close(ctx)
	if w.Mode() != Closed {
		t.Fatalf("mode after close = %v", w.Mode())
	}
	if len(u.keys) != 1 || u.keys[0] != OptionsKey {
		t.Fatalf("update keys = %v", u.keys)
	}
	opts := u.last(t)
	if opts.NoteType != "ruled" || !opts.IsEverChanged {
		t.Fatalf("persisted options = %+v", opts)
	}

	w.Open(ctx, desktop)
	if w.Mode() != Open {
		t.Fatalf("reopening a note with content must skip type selection")
	}
	w.Close(ctx)
}

func TestPersistedNoteSkipsTypeSelection(t *testing.T) {
	ctx := context.Background()
	s1, s2 := stroke(10), stroke(60)
	opts, bg := persistedWithBackground(s1, s2)
	var f fakeFetcher
	var u updates
	w := newWidget(t, opts, &f, &notify.Recorder{}, &u)

	w.Open(ctx, desktop)
	if w.Mode() != Open {
		t.Fatalf("mode = %v, want open", w.Mode())
	}
	w.Store().Wait()
	got := w.Surface().CurrentShapes()
	if len(got) != 3 || got[0].ID != bg.ShapeID || got[1].ID != s1.ID || got[2].ID != s2.ID {
		t.Fatalf("surface shapes = %+v", got)
	}
	if _, ok := w.Surface().Asset(bg.AssetID); !ok {
		t.Fatalf("background asset missing")
	}
	if f.calls.Load() != 0 {
		t.Fatalf("persisted background refetched")
	}
	if st := w.Store().Snapshot(); st.Background == nil || *st.Background != bg {
		t.Fatalf("background descriptor changed: %+v", st.Background)
	}
	w.Close(ctx)
}

func TestFullScreenMinimizeRestore(t *testing.T) {
	ctx := context.Background()
	opts, _ := persistedWithBackground(stroke(1))
	w := newWidget(t, opts, &fakeFetcher{}, &notify.Recorder{}, &updates{})
	w.Open(ctx, desktop)
	defer w.Close(ctx)
	ctrl := w.Controller()

	ctrl.ToggleFullScreen()
	if z := w.Surface().Camera().Z; z != FullScreenZoom || w.MinZoomLevel() != FullScreenZoom {
		t.Fatalf("full screen zoom = %v, floor %v", z, w.MinZoomLevel())
	}
	ctrl.Minimize()
	if !ctrl.State().ReturnToFullScreen {
		t.Fatalf("minimize from full screen must remember it")
	}
	if w.MinZoomLevel() != MinZoom {
		t.Fatalf("zoom floor not reset when leaving full screen")
	}
	ctrl.Restore()
	if m := ctrl.State().Mode; m != window.FullScreen {
		t.Fatalf("restored to %v, want full screen", m)
	}
	if w.MinZoomLevel() != FullScreenZoom {
		t.Fatalf("zoom floor not raised after restore")
	}
}

func TestDragThroughHub(t *testing.T) {
	ctx := context.Background()
	opts, _ := persistedWithBackground()
	w := newWidget(t, opts, &fakeFetcher{}, &notify.Recorder{}, &updates{})
	w.Open(ctx, desktop)
	defer w.Close(ctx)
	ctrl, hub := w.Controller(), w.Hub()

	drag := func(from, to window.Point) {
		grab := ctrl.State().Position.Add(window.Point{X: 5, Y: 5})
		ctrl.BeginDrag(grab)
		hub.Move(grab.Add(to.Sub(from)))
		hub.Up()
	}
	start := ctrl.State().Position
	drag(start, window.Point{X: 100, Y: 100})
	if p := ctrl.State().Position; !nearPoint(p, window.Point{X: 100, Y: 100}) {
		t.Fatalf("position = %+v", p)
	}
	drag(window.Point{X: 100, Y: 100}, window.Point{X: 150, Y: 120})
	st := ctrl.State()
	if !nearPoint(st.Position, window.Point{X: 150, Y: 120}) || st.Dragging {
		t.Fatalf("state after drag = %+v", st)
	}
	if hub.Listeners() != 0 {
		t.Fatalf("pointer listeners leaked: %d", hub.Listeners())
	}
}

func TestBackgroundFetchFailureKeepsEditorUsable(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{err: errors.New("network unreachable")}
	var u updates
	w := newWidget(t, editorstate.EditorOptions{}, f, &notify.Recorder{}, &u)
	w.Open(ctx, desktop)
	w.SelectType(paper.Squared)
	w.Proceed(ctx)
	w.Store().Wait()
	if w.Mode() != Open {
		t.Fatalf("mode = %v", w.Mode())
	}
	if st := w.Store().Snapshot(); st.Background != nil {
		t.Fatalf("background set despite fetch failure")
	}
	w.Surface().(*surface.Canvas).Add(stroke(3))
	w.Close(ctx)

	st := editorstate.Decode(u.last(t), editorstate.DefaultDimensions)
	if st.Background != nil || len(st.Shapes) != 1 || st.Preview == "" {
		t.Fatalf("persisted state = %+v", st)
	}
}

func TestCancelAndCloseFromTypeSelection(t *testing.T) {
	ctx := context.Background()
	var u updates
	w := newWidget(t, editorstate.EditorOptions{}, &fakeFetcher{}, &notify.Recorder{}, &u)
	w.Open(ctx, desktop)
	w.SelectType(paper.Squared)
	w.Cancel()
	if w.Mode() != Closed || w.Selected() != "" {
		t.Fatalf("cancel left mode %v selected %q", w.Mode(), w.Selected())
	}
	w.Open(ctx, desktop)
	w.Close(ctx)
	if w.Mode() != Closed || len(u.keys) != 0 {
		t.Fatalf("close from type selection must not save")
	}
}

func TestResizeZoom(t *testing.T) {
	ctx := context.Background()
	opts, _ := persistedWithBackground()
	w := newWidget(t, opts, &fakeFetcher{}, &notify.Recorder{}, &updates{})
	w.Open(ctx, desktop)
	defer w.Close(ctx)
	surf := w.Surface()

	w.Resize(desktop.Width, desktop.Height)
	eventually(t, func() bool { return surf.Camera().Z == FullScreenZoom })

	nw, nh := w.Controller().NormalSize()
	w.Resize(nw, nh)
	eventually(t, func() bool { return surf.Camera().Z == MinZoom })
}

func TestZoomFor(t *testing.T) {
	normal := Size{600, 800}
	full := Size{1600, 1000}
	tests := []struct {
		name  string
		c     Size
		floor float64
		want  float64
	}{
		{"normal", normal, 1, 1},
		{"smaller", Size{300, 300}, 1, 1},
		{"full", full, 1, 2.75},
		{"halfway width", Size{1100, 800}, 1, 1.875},
		{"height wins", Size{600, 900}, 1, 1.875},
		{"floor", normal, 2.75, 2.75},
		{"fractional floored", Size{1100.9, 800}, 1, 1.875},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ZoomFor(tt.c, normal, full, tt.floor, FullScreenZoom); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("ZoomFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsertStamp(t *testing.T) {
	ctx := context.Background()
	opts, _ := persistedWithBackground()
	w := newWidget(t, opts, &fakeFetcher{}, &notify.Recorder{}, &updates{})
	if _, err := w.InsertStamp(ctx, "hexane"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("closed widget accepted a stamp: %v", err)
	}
	w.Open(ctx, desktop)
	defer w.Close(ctx)

	s, err := w.InsertStamp(ctx, "benzene-ring")
	if err != nil {
		t.Fatalf("InsertStamp: %v", err)
	}
	if s.Type != shape.Image || s.Props.W != 120 || s.Props.H != 120 {
		t.Fatalf("stamp shape = %+v", s)
	}
	if _, err := w.InsertStamp(ctx, "pentagon"); err == nil {
		t.Fatalf("unknown stamp accepted")
	}
	w.Store().Flush(ctx)
	st := w.Store().Snapshot()
	found := false
	for _, a := range st.Assets {
		if a.ID == s.Props.AssetID {
			found = true
		}
	}
	if !found || len(st.Shapes) != 1 {
		t.Fatalf("stamp not stored: shapes=%d assets=%+v", len(st.Shapes), st.Assets)
	}
}

func TestThumbnail(t *testing.T) {
	w := New(editorstate.EditorOptions{}, nil)
	if th := w.Thumbnail(); !th.Placeholder || th.SVG != "" || th.Width != 250 {
		t.Fatalf("empty note thumbnail = %+v", th)
	}
	opts := editorstate.Encode(editorstate.State{
		Preview:    `<svg xmlns="http://www.w3.org/2000/svg"><circle r="3" onload="x()"/></svg>`,
		Dimensions: shape.Dimensions{Width: 320, Height: 240},
	})
	th := New(opts, nil).Thumbnail()
	if th.Placeholder || !strings.Contains(th.SVG, "<circle") || strings.Contains(th.SVG, "onload") {
		t.Fatalf("thumbnail = %+v", th)
	}
	if th.Width != 320 || th.Height != 240 {
		t.Fatalf("thumbnail size = %dx%d", th.Width, th.Height)
	}
}
