/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"

	"handnote/internal/log"
	"handnote/internal/shape"
	"handnote/internal/surface"
	"handnote/internal/textlayout"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// ErrEmpty reports that there is nothing to rasterise.
var ErrEmpty = errors.New("render: nothing to draw")

// AssetLookup resolves the assets referenced by image shapes.
type AssetLookup interface {
	Asset(id shape.AssetID) (shape.Asset, bool)
}

// Options controls raster output.
type Options struct {
	Scale      float64    // pixels per page unit; 0 means 1
	Padding    float64    // page units around the content
	Background color.Color // nil leaves the canvas transparent
	Frame      *shape.Rect // page area to draw; nil covers the shapes' bounds
}

var (
	monoOnce sync.Once
	monoFont *truetype.Font
	monoErr  error
)

func face(size float64) (font.Face, error) {
	monoOnce.Do(func() { monoFont, monoErr = truetype.Parse(gomono.TTF) })
	if monoErr != nil {
		return nil, monoErr
	}
	return truetype.NewFace(monoFont, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull}), nil
}

// Raster draws shapes in paint order into an image covering their bounds.
func Raster(shapes []shape.Shape, assets AssetLookup, opt Options) (image.Image, error) {
	box, ok := shape.BoundsOf(shapes)
	if opt.Frame != nil {
		box, ok = *opt.Frame, true
	} else {
		box = box.Inset(-opt.Padding, -opt.Padding)
	}
	if !ok || box.W <= 0 || box.H <= 0 {
		return nil, ErrEmpty
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	w, h := int(box.W*scale+0.5), int(box.H*scale+0.5)
	if w <= 0 || h <= 0 || w > 16384 || h > 16384 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}

	dc := gg.NewContext(w, h)
	if opt.Background != nil {
		dc.SetColor(opt.Background)
		dc.Clear()
	}
	dc.Scale(scale, scale)
	dc.Translate(-box.X, -box.Y)

	l := log.WithComponent("render")
	for _, s := range shapes {
		dc.Push()
		dc.Translate(s.X, s.Y)
		dc.Rotate(s.Rotation)
		if err := drawShape(dc, s, assets); err != nil {
			l.Debug("skip shape", slog.String("shape", string(s.ID)), slog.Any("err", err))
		}
		dc.Pop()
	}
	return dc.Image(), nil
}

func drawShape(dc *gg.Context, s shape.Shape, assets AssetLookup) error {
	setColor(dc, s.Props.Color)
	sw := s.Props.StrokeWidth
	if sw <= 0 {
		sw = 2
	}
	dc.SetLineWidth(sw)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	switch s.Type {
	case shape.Draw, shape.Line:
		pts := s.Props.Points
		if len(pts) == 0 {
			return nil
		}
		dc.MoveTo(pts[0].X, pts[0].Y)
		for _, p := range pts[1:] {
			dc.LineTo(p.X, p.Y)
		}
		if len(pts) == 1 {
			dc.LineTo(pts[0].X, pts[0].Y)
		}
		dc.Stroke()
	case shape.Geo:
		if s.Props.Geo == "ellipse" {
			dc.DrawEllipse(s.Props.W/2, s.Props.H/2, s.Props.W/2, s.Props.H/2)
		} else {
			dc.DrawRectangle(0, 0, s.Props.W, s.Props.H)
		}
		if s.Props.Fill != "" && s.Props.Fill != "none" {
			dc.Push()
			setColor(dc, s.Props.Fill)
			dc.FillPreserve()
			dc.Pop()
		}
		dc.Stroke()
	case shape.Text:
		size := textlayout.FontSize(s.Props.Text, s.Props.H)
		f, err := face(size)
		if err != nil {
			return err
		}
		dc.SetFontFace(f)
		for i, line := range textlayout.Lines(s.Props.Text, s.Props.W, textlayout.Face(f)) {
			dc.DrawString(line, 0, size*float64(i+1))
		}
	case shape.Image:
		if assets == nil {
			return fmt.Errorf("no asset lookup")
		}
		a, ok := assets.Asset(s.Props.AssetID)
		if !ok || a.Props.Src == "" {
			return fmt.Errorf("asset %s unavailable", s.Props.AssetID)
		}
		img, err := DecodeImageURL(a.Props.Src)
		if err != nil {
			return err
		}
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 || s.Props.W <= 0 || s.Props.H <= 0 {
			return nil
		}
		dc.Scale(s.Props.W/float64(b.Dx()), s.Props.H/float64(b.Dy()))
		dc.DrawImage(img, 0, 0)
	}
	return nil
}

func setColor(dc *gg.Context, name string) {
	c := surface.Color(name)
	if strings.HasPrefix(c, "#") {
		dc.SetHexColor(c)
		return
	}
	dc.SetRGB(0, 0, 0)
}
