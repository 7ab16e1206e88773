/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editorstate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"handnote/internal/assets"
	"handnote/internal/paper"
	"handnote/internal/shape"
	"handnote/internal/surface"
)

const fakeTile = "data:image/png;base64,iVBORw0KGgo="

type fetchLog struct {
	links atomic.Value
	calls atomic.Int32
}

func (f *fetchLog) fetcher(err error) assets.Fetcher {
	return assets.FetcherFunc(func(ctx context.Context, link string) ([]byte, error) {
		f.calls.Add(1)
		f.links.Store(link)
		if err != nil {
			return nil, err
		}
		return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20"/>`), nil
	})
}

func testConfig() Config {
	return Config{
		Debounce: 10 * time.Millisecond,
		Tile:     func([]byte, int, int) (string, error) { return fakeTile, nil },
	}
}

func stroke(x float64) shape.Shape {
	return shape.New(shape.Draw, x, 10, shape.Props{Points: []shape.Point{{X: 0, Y: 0}, {X: 20, Y: 8}}, Color: "black", StrokeWidth: 2})
}

// persisted builds editor options with a background and the given shapes.
func persisted(t *testing.T, shapes ...shape.Shape) (EditorOptions, shape.Background) {
	t.Helper()
	bg := shape.Background{ShapeID: shape.NewID(), AssetID: shape.NewAssetID(), W: 300, H: 300}
	a := backgroundAsset(bg.AssetID, fakeTile, 300, 300)
	st := State{
		NoteType:    paper.Ruled,
		EverChanged: true,
		Background:  &bg,
		Assets:      []shape.Asset{a},
		Shapes:      shapes,
		Preview:     `<svg xmlns="http://www.w3.org/2000/svg"></svg>`,
		Dimensions:  shape.Dimensions{Width: 300, Height: 200},
	}
	return Encode(st), bg
}

func countBackgrounds(shapes []shape.Shape, id shape.ID) int {
	n := 0
	for _, s := range shapes {
		if s.ID == id {
			n++
		}
	}
	return n
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

func TestDecodeTolerantInputs(t *testing.T) {
	sh := stroke(1)
	arr, _ := json.Marshal([]shape.Shape{sh})
	obj, _ := json.Marshal(EditorData{Shapes: []shape.Shape{sh}})
	str, _ := json.Marshal(string(obj))

	tests := []struct {
		name       string
		raw        string
		wantShapes int
	}{
		{"object", string(obj), 1},
		{"bare array", string(arr), 1},
		{"json string", string(str), 1},
		{"null", "null", 0},
		{"malformed", `"{not json"`, 0},
		{"number", `42`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts EditorOptions
			in := `{"imageWidth":"250px","imageHeight":180,"editorData":` + tt.raw + `}`
			if err := json.Unmarshal([]byte(in), &opts); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			st := Decode(opts, DefaultDimensions)
			if len(st.Shapes) != tt.wantShapes {
				t.Fatalf("shapes = %d, want %d", len(st.Shapes), tt.wantShapes)
			}
			if st.Dimensions != (shape.Dimensions{Width: 250, Height: 180}) {
				t.Fatalf("dimensions = %+v", st.Dimensions)
			}
		})
	}
}

func TestDecodeDefaults(t *testing.T) {
	var opts EditorOptions
	if err := json.Unmarshal([]byte(`{"noteType":"dotted","imageWidth":"wide","imageData":"<svg></svg>"}`), &opts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	st := Decode(opts, DefaultDimensions)
	if st.NoteType != "" {
		t.Fatalf("unknown note type kept: %q", st.NoteType)
	}
	if st.Dimensions != DefaultDimensions {
		t.Fatalf("dimensions = %+v", st.Dimensions)
	}
	if st.Preview != "<svg></svg>" {
		t.Fatalf("raw svg imageData not accepted: %q", st.Preview)
	}
	if st.HasContent() || st.EverChanged {
		t.Fatalf("empty options produced content: %+v", st)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	opts, bg := persisted(t, stroke(1), stroke(2))
	raw, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back EditorOptions
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	st := Decode(back, DefaultDimensions)
	again := Decode(Encode(st), DefaultDimensions)

	if again.NoteType != paper.Ruled || !again.EverChanged {
		t.Fatalf("scalar fields lost: %+v", again)
	}
	if again.Background == nil || *again.Background != bg {
		t.Fatalf("background = %+v, want %+v", again.Background, bg)
	}
	if !shape.Equal(again.Shapes, st.Shapes) || len(again.Shapes) != 2 {
		t.Fatalf("shapes changed across round trip")
	}
	if again.Dimensions != (shape.Dimensions{Width: 300, Height: 200}) {
		t.Fatalf("dimensions = %+v", again.Dimensions)
	}
	if again.Preview != st.Preview {
		t.Fatalf("preview changed")
	}
}

func TestSerializedFormMatchesSchema(t *testing.T) {
	opts, _ := persisted(t, stroke(1))
	doc, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(Schema()), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("serialized options invalid: %v", res.Errors())
	}
	if !strings.HasPrefix(string(opts.EditorData), `"`) || !strings.HasPrefix(string(opts.ImageData), `"`) {
		t.Fatalf("editorData and imageData must be JSON strings")
	}
}

func TestHydrateWithBackgroundIsIdempotent(t *testing.T) {
	opts, bg := persisted(t, stroke(1), stroke(2))
	var f fetchLog
	s := New(testConfig(), f.fetcher(nil))
	defer s.Close()
	c := surface.NewCanvas(300, 300)

	s.Hydrate(context.Background(), c, opts)
	s.Hydrate(context.Background(), c, opts)
	s.Wait()

	got := c.CurrentShapes()
	if n := countBackgrounds(got, bg.ShapeID); n != 1 {
		t.Fatalf("background shape count = %d", n)
	}
	if len(got) != 3 {
		t.Fatalf("expected background + 2 shapes, got %d", len(got))
	}
	if f.calls.Load() != 0 {
		t.Fatalf("persisted background must not be fetched")
	}
}

func TestHydratePersistedBackground(t *testing.T) {
	s1, s2 := stroke(1), stroke(2)
	opts, bg := persisted(t, s1, s2)
	var f fetchLog
	s := New(testConfig(), f.fetcher(nil))
	defer s.Close()
	c := surface.NewCanvas(300, 300)
	s.Hydrate(context.Background(), c, opts)
	s.Wait()

	got := c.CurrentShapes()
	if got[0].ID != bg.ShapeID || !got[0].IsLocked {
		t.Fatalf("background not at the back: %+v", got[0])
	}
	if got[1].ID != s1.ID || got[2].ID != s2.ID {
		t.Fatalf("shapes not restored in order")
	}
	a, ok := c.Asset(bg.AssetID)
	if !ok || a.Props.Src != fakeTile {
		t.Fatalf("background asset not restored with its source: %+v", a)
	}
	st := s.Snapshot()
	if st.Background == nil || *st.Background != bg || len(st.Shapes) != 2 {
		t.Fatalf("state = %+v", st)
	}
}

func TestHydrateMissingAssetUsesPlaceholder(t *testing.T) {
	bg := shape.Background{ShapeID: shape.NewID(), AssetID: shape.NewAssetID(), W: 100, H: 100}
	opts := Encode(State{Background: &bg, EverChanged: true, Dimensions: DefaultDimensions})
	s := New(testConfig(), nil)
	defer s.Close()
	c := surface.NewCanvas(100, 100)
	s.Hydrate(context.Background(), c, opts)
	a, ok := c.Asset(bg.AssetID)
	if !ok || a.Props.Src != "" {
		t.Fatalf("expected empty-src placeholder asset, got %+v ok=%v", a, ok)
	}
}

func TestDefaultBackgroundOnFreshNote(t *testing.T) {
	var f fetchLog
	s := New(testConfig(), f.fetcher(nil))
	defer s.Close()
	c := surface.NewCanvas(320, 240)
	s.Hydrate(context.Background(), c, EditorOptions{NoteType: "ruled"})
	s.Wait()

	if link, _ := f.links.Load().(string); link != paper.Ruled.AssetLink() {
		t.Fatalf("fetched %q", link)
	}
	st := s.Snapshot()
	if st.Background == nil || !st.EverChanged {
		t.Fatalf("background not recorded: %+v", st)
	}
	if st.Background.W != 320 || st.Background.H != 320 {
		t.Fatalf("background side = %v×%v, want surface width", st.Background.W, st.Background.H)
	}
	got := c.CurrentShapes()
	if len(got) != 1 || got[0].ID != st.Background.ShapeID || !got[0].IsLocked || got[0].X != 0 || got[0].Y != 0 {
		t.Fatalf("background shape = %+v", got)
	}
	opts := s.Serialize()
	again := Decode(opts, DefaultDimensions)
	if again.Background == nil || *again.Background != *st.Background || len(again.Assets) != 1 {
		t.Fatalf("serialized state lost background: %+v", again)
	}
}

func TestNoDefaultBackgroundWhenEverChanged(t *testing.T) {
	var f fetchLog
	s := New(testConfig(), f.fetcher(nil))
	defer s.Close()
	c := surface.NewCanvas(200, 200)
	s.Hydrate(context.Background(), c, EditorOptions{IsEverChanged: true})
	s.Wait()
	if f.calls.Load() != 0 || s.Snapshot().Background != nil {
		t.Fatalf("changed note must not regenerate a background")
	}
}

func TestBackgroundFetchFailureIsAbsorbed(t *testing.T) {
	var f fetchLog
	s := New(testConfig(), f.fetcher(errors.New("connection refused")))
	defer s.Close()
	c := surface.NewCanvas(200, 200)
	s.Hydrate(context.Background(), c, EditorOptions{NoteType: "squared"})
	s.Wait()

	if s.Snapshot().Background != nil {
		t.Fatalf("background set after failed fetch")
	}
	c.Add(stroke(5))
	s.Flush(context.Background())
	st := s.Snapshot()
	if len(st.Shapes) != 1 || st.Preview == "" {
		t.Fatalf("note not drawable after fetch failure: %+v", st)
	}
}

func TestChangesUpdateStateAfterDebounce(t *testing.T) {
	opts, bg := persisted(t)
	cfg := testConfig()
	cfg.Debounce = 50 * time.Millisecond
	s := New(cfg, nil)
	defer s.Close()
	c := surface.NewCanvas(300, 300)
	s.Hydrate(context.Background(), c, opts)

	var updates atomic.Int32
	cancel := s.OnUpdate(func(State) { updates.Add(1) })
	defer cancel()

	c.Add(stroke(1))
	c.Add(stroke(2))
	eventually(t, func() bool { return s.RenderCount() == 1 })

	st := s.Snapshot()
	if len(st.Shapes) != 2 {
		t.Fatalf("shapes = %d", len(st.Shapes))
	}
	for _, sh := range st.Shapes {
		if sh.ID == bg.ShapeID {
			t.Fatalf("background leaked into shapes")
		}
	}
	if len(st.Assets) != 1 || st.Assets[0].ID != bg.AssetID {
		t.Fatalf("background asset not collected: %+v", st.Assets)
	}
	if !strings.Contains(st.Preview, "<path") {
		t.Fatalf("preview not regenerated: %q", st.Preview)
	}
	if updates.Load() != 1 {
		t.Fatalf("observer called %d times", updates.Load())
	}
}

func TestUnchangedShapesRenderOnce(t *testing.T) {
	s := New(Config{Debounce: time.Hour}, nil)
	defer s.Close()
	c := surface.NewCanvas(300, 300)
	s.Hydrate(context.Background(), c, EditorOptions{IsEverChanged: true})

	shapes := []shape.Shape{stroke(1)}
	s.OnSurfaceChanged(shapes)
	s.Flush(context.Background())
	s.OnSurfaceChanged(shape.CloneAll(shapes))
	s.Flush(context.Background())
	if n := s.RenderCount(); n != 1 {
		t.Fatalf("renders = %d, want 1", n)
	}
}

func TestCloseStopsUpdates(t *testing.T) {
	s := New(Config{Debounce: time.Hour}, nil)
	c := surface.NewCanvas(300, 300)
	s.Hydrate(context.Background(), c, EditorOptions{IsEverChanged: true})
	s.Close()
	if c.Listeners() != 0 {
		t.Fatalf("store still subscribed after close")
	}
	s.OnSurfaceChanged([]shape.Shape{stroke(1)})
	s.Flush(context.Background())
	if s.RenderCount() != 0 {
		t.Fatalf("closed store rendered")
	}
}

func TestExportPreviewSanitises(t *testing.T) {
	opts := Encode(State{
		Preview:    `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script><rect width="1" height="1" onclick="x()"/></svg>`,
		Dimensions: DefaultDimensions,
	})
	s := New(testConfig(), nil)
	defer s.Close()
	s.Hydrate(context.Background(), surface.NewCanvas(10, 10), opts)
	s.Wait()
	out := s.ExportPreview()
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") || !strings.Contains(out, "<rect") {
		t.Fatalf("unsanitised preview: %q", out)
	}
}
