/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"handnote/internal/editorstate"
	"handnote/internal/paper"
	"handnote/internal/render"
	"handnote/internal/shape"
)

func sampleState(t *testing.T) editorstate.State {
	t.Helper()
	tile := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range tile.Pix {
		tile.Pix[i] = 0xee
	}
	src, err := render.PNGDataURL(tile)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	bg := shape.Background{ShapeID: shape.NewID(), AssetID: shape.NewAssetID(), W: 200, H: 200}
	a := shape.NewImageAsset("paper-background", "image/png", src, 200, 200)
	a.ID = bg.AssetID
	return editorstate.State{
		NoteType:   paper.Squared,
		Background: &bg,
		Assets:     []shape.Asset{a},
		Shapes: []shape.Shape{
			shape.New(shape.Draw, 20, 20, shape.Props{Points: []shape.Point{{X: 0, Y: 0}, {X: 60, Y: 30}}, Color: "blue", StrokeWidth: 3}),
			shape.New(shape.Geo, 100, 100, shape.Props{W: 40, H: 30, Geo: "ellipse", Color: "red", Fill: "yellow"}),
			shape.New(shape.Text, 30, 150, shape.Props{W: 100, H: 20, Text: "H2O", Color: "black"}),
		},
		Dimensions: editorstate.DefaultDimensions,
	}
}

func TestFileFormats(t *testing.T) {
	st := sampleState(t)
	dir := t.TempDir()
	tests := []struct {
		name  string
		magic string
	}{
		{"note.svg", "<svg"},
		{"out/note.png", "\x89PNG"},
		{"note.PDF", "%PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := File(context.Background(), st, path, Options{}); err != nil {
				t.Fatalf("File: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.HasPrefix(data, []byte(tt.magic)) {
				t.Fatalf("%s starts with %q", tt.name, data[:min(len(data), 8)])
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	err := File(context.Background(), sampleState(t), filepath.Join(t.TempDir(), "note.gif"), Options{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEmptyNote(t *testing.T) {
	st := editorstate.State{Dimensions: editorstate.DefaultDimensions}
	if _, err := PDF(st, Options{}); !errors.Is(err, render.ErrEmpty) {
		t.Fatalf("PDF of empty note: %v", err)
	}
	if _, err := SVG(context.Background(), st, Options{}); !errors.Is(err, render.ErrEmpty) {
		t.Fatalf("SVG of empty note: %v", err)
	}
	img := Thumbnail(st, 120, 90)
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 90 {
		t.Fatalf("placeholder size = %v", b)
	}
}

func TestSVGContent(t *testing.T) {
	st := sampleState(t)
	out, err := SVG(context.Background(), st, Options{})
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	for _, want := range []string{"<path", "<ellipse", "<image", "H2O"} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %s:\n%s", want, out)
		}
	}
	bare, err := SVG(context.Background(), st, Options{NoPaper: true})
	if err != nil {
		t.Fatalf("SVG without paper: %v", err)
	}
	if strings.Contains(bare, "<image") {
		t.Fatalf("paper exported despite NoPaper")
	}
}

func TestPNGPaintsOnWhite(t *testing.T) {
	st := sampleState(t)
	st.Background = nil
	data, err := PNG(st, Options{Scale: 1})
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := render.DecodeImageURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Fatalf("corner pixel = %v, want white", color.RGBA64{uint16(r), uint16(g), uint16(b), 0xffff})
	}
}

func TestThumbnailFits(t *testing.T) {
	img := Thumbnail(sampleState(t), 100, 100)
	b := img.Bounds()
	if b.Dx() > 100 || b.Dy() > 100 || b.Dx() == 0 {
		t.Fatalf("thumbnail bounds = %v", b)
	}
}

func TestRGB(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
	}{
		{"#ff8000", 255, 128, 0},
		{"#0f0", 0, 255, 0},
		{"blue", 0, 0, 0},
		{"#zzzzzz", 0, 0, 0},
	}
	for _, tt := range tests {
		r, g, b := rgb(tt.in)
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("rgb(%q) = %d,%d,%d", tt.in, r, g, b)
		}
	}
}
