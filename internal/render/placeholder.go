/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"image"
	"math"
	"sort"

	"handnote/internal/shape"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Placeholder draws the thumbnail shown for a note without content:
// a sheet with a folded corner, a few pen lines and a label.
func Placeholder(w, h int) image.Image {
	if w <= 0 || h <= 0 {
		w, h = 250, 250
	}
	fw, fh := float64(w), float64(h)
	dc := gg.NewContext(w, h)
	dc.SetHexColor("#f4f6f8")
	dc.Clear()

	m := math.Min(fw, fh) * 0.12
	fold := math.Min(fw, fh) * 0.15
	dc.MoveTo(m, m)
	dc.LineTo(fw-m-fold, m)
	dc.LineTo(fw-m, m+fold)
	dc.LineTo(fw-m, fh-m)
	dc.LineTo(m, fh-m)
	dc.ClosePath()
	dc.SetHexColor("#ffffff")
	dc.FillPreserve()
	dc.SetHexColor("#c3ccd6")
	dc.SetLineWidth(2)
	dc.Stroke()

	dc.SetHexColor("#9fb7d4")
	dc.SetLineWidth(1)
	for y := m + fold + 12; y < fh-m-24; y += 14 {
		dc.DrawLine(m+10, y, fw-m-10, y)
		dc.Stroke()
	}

	dc.SetHexColor("#4465e9")
	dc.SetLineWidth(3)
	dc.SetLineCapRound()
	dc.MoveTo(m+16, fh/2)
	for x := m + 16.0; x < fw-m-16; x += 4 {
		dc.LineTo(x, fh/2+math.Sin(x/9)*6)
	}
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetHexColor("#5c6670")
	dc.DrawStringAnchored("Handwritten note", fw/2, fh-m/2, 0.5, 0.5)
	return dc.Image()
}

// stampSize is the page size of a placed stamp.
const stampSize = 120

// stamps maps stamp names to their drawing routine.
var stamps = map[string]func(dc *gg.Context, c, r float64){
	// hexagon with alternating double bonds
	"benzene-ring": func(dc *gg.Context, c, r float64) {
		hexagon(dc, c, r)
		for i := 0; i < 6; i += 2 {
			a0 := float64(i)*math.Pi/3 - math.Pi/2
			a1 := a0 + math.Pi/3
			ir := r * 0.78
			dc.DrawLine(c+ir*math.Cos(a0), c+ir*math.Sin(a0), c+ir*math.Cos(a1), c+ir*math.Sin(a1))
			dc.Stroke()
		}
	},
	"hexane": func(dc *gg.Context, c, r float64) {
		hexagon(dc, c, r)
	},
}

func hexagon(dc *gg.Context, c, r float64) {
	dc.DrawRegularPolygon(6, c, c, r, 0)
	dc.Stroke()
}

// StampNames lists the available stamps.
func StampNames() []string {
	names := make([]string, 0, len(stamps))
	for n := range stamps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stamp renders the named stamp and returns it as an image asset ready to place.
func Stamp(name string) (shape.Asset, error) {
	draw, ok := stamps[name]
	if !ok {
		return shape.Asset{}, fmt.Errorf("unknown stamp %q", name)
	}
	const px = stampSize * 2
	dc := gg.NewContext(px, px)
	dc.SetHexColor("#1d1d1d")
	dc.SetLineWidth(px / 40)
	dc.SetLineCapRound()
	draw(dc, px/2, px*0.42)
	src, err := PNGDataURL(dc.Image())
	if err != nil {
		return shape.Asset{}, err
	}
	return shape.NewImageAsset(name, "image/png", src, stampSize, stampSize), nil
}
