/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package surface

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strings"

	"handnote/internal/shape"
	"handnote/internal/textlayout"
)

const svgPadding = 8

// palette maps named shape colors to SVG colors; other values pass through.
var palette = map[string]string{
	"black":  "#1d1d1d",
	"grey":   "#9fa8b2",
	"blue":   "#4465e9",
	"green":  "#099268",
	"red":    "#e03131",
	"orange": "#e16919",
	"violet": "#ae3ec9",
	"yellow": "#f1ac4b",
	"white":  "#ffffff",
}

// Color resolves a shape color name to an SVG color.
func Color(name string) string {
	if name == "" {
		return palette["black"]
	}
	if c, ok := palette[name]; ok {
		return c
	}
	return name
}

func renderSVG(shapes []shape.Shape, assets map[shape.AssetID]shape.Asset) (string, error) {
	box, _ := shape.BoundsOf(shapes)
	box = box.Inset(-svgPadding, -svgPadding)
	if box.W <= 0 || box.H <= 0 || math.IsNaN(box.W) || math.IsInf(box.W, 0) {
		return "", fmt.Errorf("%w: empty bounds", ErrRender)
	}

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf(`<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="%g %g %g %g">`, box.W, box.H, box.X, box.Y, box.W, box.H)
	for _, s := range shapes {
		tr := fmt.Sprintf(`translate(%g %g)`, s.X, s.Y)
		if s.Rotation != 0 {
			tr += fmt.Sprintf(` rotate(%g)`, s.Rotation*180/math.Pi)
		}
		opacity := ""
		if s.Opacity > 0 && s.Opacity < 1 {
			opacity = fmt.Sprintf(` opacity="%g"`, s.Opacity)
		}
		stroke := Color(s.Props.Color)
		sw := s.Props.StrokeWidth
		if sw <= 0 {
			sw = 2
		}
		switch s.Type {
		case shape.Image:
			a, ok := assets[s.Props.AssetID]
			if !ok || a.Props.Src == "" {
				continue
			}
			wf(`<image transform="%s" width="%g" height="%g" href="%s" preserveAspectRatio="none"%s/>`,
				tr, s.Props.W, s.Props.H, html.EscapeString(a.Props.Src), opacity)
		case shape.Draw, shape.Line:
			if len(s.Props.Points) == 0 {
				continue
			}
			wf(`<path transform="%s" d="%s" fill="none" stroke="%s" stroke-width="%g" stroke-linecap="round" stroke-linejoin="round"%s/>`,
				tr, pathData(s.Props.Points), html.EscapeString(stroke), sw, opacity)
		case shape.Geo:
			fill := "none"
			if s.Props.Fill != "" && s.Props.Fill != "none" {
				fill = Color(s.Props.Fill)
			}
			if s.Props.Geo == "ellipse" {
				wf(`<ellipse transform="%s" cx="%g" cy="%g" rx="%g" ry="%g" fill="%s" stroke="%s" stroke-width="%g"%s/>`,
					tr, s.Props.W/2, s.Props.H/2, s.Props.W/2, s.Props.H/2, html.EscapeString(fill), html.EscapeString(stroke), sw, opacity)
			} else {
				wf(`<rect transform="%s" width="%g" height="%g" fill="%s" stroke="%s" stroke-width="%g"%s/>`,
					tr, s.Props.W, s.Props.H, html.EscapeString(fill), html.EscapeString(stroke), sw, opacity)
			}
		case shape.Text:
			size := textlayout.FontSize(s.Props.Text, s.Props.H)
			for i, line := range textlayout.Lines(s.Props.Text, s.Props.W, textlayout.Monospace(size)) {
				wf(`<text transform="%s" x="0" y="%g" font-family="monospace" font-size="%g" fill="%s">%s</text>`,
					tr, size*float64(i+1), size, html.EscapeString(stroke), html.EscapeString(line))
			}
		}
	}
	wf(`</svg>`)
	if werr != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, werr)
	}
	return buf.String(), nil
}

func pathData(pts []shape.Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i == 0 {
			fmt.Fprintf(&b, "M%g %g", p.X, p.Y)
			continue
		}
		fmt.Fprintf(&b, " L%g %g", p.X, p.Y)
	}
	if len(pts) == 1 {
		fmt.Fprintf(&b, " L%g %g", pts[0].X, pts[0].Y)
	}
	return b.String()
}
