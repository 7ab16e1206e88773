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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"handnote/internal/editorstate"
	"handnote/internal/render"
	"handnote/internal/shape"
	"handnote/internal/surface"
	"handnote/internal/textlayout"
	"handnote/internal/version"
)

// PDF draws st as vector graphics on a single page sized to the content.
// Units are points and one page unit maps to one point; images are embedded as PNG.
func PDF(st editorstate.State, opt Options) ([]byte, error) {
	opt = opt.withDefaults()
	shapes, assets := Content(st, opt.NoPaper)
	box, ok := shape.BoundsOf(shapes)
	if !ok || box.W <= 0 || box.H <= 0 {
		return nil, fmt.Errorf("export pdf: %w", render.ErrEmpty)
	}
	box = box.Inset(-opt.Padding, -opt.Padding)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: box.W, Ht: box.H},
	})
	pdf.SetTitle(opt.Title, true)
	pdf.SetCreator("handnote "+version.String(), true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	p := &pdfPainter{pdf: pdf, origin: shape.Pt{X: box.X, Y: box.Y}, assets: assets}
	for _, s := range shapes {
		p.shape(s)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfPainter struct {
	pdf    *gofpdf.Fpdf
	origin shape.Pt
	assets Assets
	images int
}

// at maps a shape-local point to page coordinates.
func (p *pdfPainter) at(s shape.Shape, x, y float64) (float64, float64) {
	q := s.Transform().Apply(shape.Pt{X: x, Y: y})
	return q.X - p.origin.X, q.Y - p.origin.Y
}

func (p *pdfPainter) shape(s shape.Shape) {
	pdf := p.pdf
	if s.Opacity > 0 && s.Opacity < 1 {
		pdf.SetAlpha(s.Opacity, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}
	r, g, b := rgb(surface.Color(s.Props.Color))
	pdf.SetDrawColor(r, g, b)
	sw := s.Props.StrokeWidth
	if sw <= 0 {
		sw = 2
	}
	pdf.SetLineWidth(sw)
	deg := -s.Rotation * 180 / math.Pi

	switch s.Type {
	case shape.Draw, shape.Line:
		pts := s.Props.Points
		if len(pts) == 0 {
			return
		}
		x, y := p.at(s, pts[0].X, pts[0].Y)
		pdf.MoveTo(x, y)
		if len(pts) == 1 {
			pdf.LineTo(x, y)
		}
		for _, pt := range pts[1:] {
			x, y := p.at(s, pt.X, pt.Y)
			pdf.LineTo(x, y)
		}
		pdf.DrawPath("D")
	case shape.Geo:
		style := "D"
		if f := s.Props.Fill; f != "" && f != "none" {
			fr, fg, fb := rgb(surface.Color(f))
			pdf.SetFillColor(fr, fg, fb)
			style = "FD"
		}
		w, h := s.Props.W, s.Props.H
		if s.Props.Geo == "ellipse" {
			cx, cy := p.at(s, w/2, h/2)
			pdf.Ellipse(cx, cy, w/2, h/2, deg, style)
			return
		}
		corners := make([]gofpdf.PointType, 0, 4)
		for _, c := range [][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
			x, y := p.at(s, c[0], c[1])
			corners = append(corners, gofpdf.PointType{X: x, Y: y})
		}
		pdf.Polygon(corners, style)
	case shape.Text:
		size := textlayout.FontSize(s.Props.Text, s.Props.H)
		lines := textlayout.Lines(s.Props.Text, s.Props.W, textlayout.Monospace(size))
		x, y := p.at(s, 0, 0)
		pdf.SetTextColor(r, g, b)
		pdf.SetFont("Courier", "", size)
		pdf.TransformBegin()
		pdf.TransformRotate(deg, x, y)
		for i, line := range lines {
			pdf.Text(x, y+size*float64(i+1)*0.85, line)
		}
		pdf.TransformEnd()
	case shape.Image:
		p.image(s, deg)
	}
}

func (p *pdfPainter) image(s shape.Shape, deg float64) {
	a, ok := p.assets.Asset(s.Props.AssetID)
	if !ok || a.Props.Src == "" || s.Props.W <= 0 || s.Props.H <= 0 {
		return
	}
	img, err := render.DecodeImageURL(a.Props.Src)
	if err != nil {
		return
	}
	data, err := render.EncodePNG(img)
	if err != nil {
		return
	}
	p.images++
	name := fmt.Sprintf("img%d", p.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	x, y := p.at(s, 0, 0)
	p.pdf.TransformBegin()
	p.pdf.TransformRotate(deg, x, y)
	p.pdf.ImageOptions(name, x, y, s.Props.W, s.Props.H, false, opts, 0, "")
	p.pdf.TransformEnd()
}

// rgb parses #rgb or #rrggbb; anything else is black.
func rgb(hex string) (r, g, b int) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
