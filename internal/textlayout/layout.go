/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout breaks the text of note text shapes into lines.
// Renderers share it so SVG, raster and PDF output wrap identically for
// monospace text.
package textlayout

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// DefaultSize is the font size used when a text shape has no height.
const DefaultSize = 24

// monoAdvance is the advance of Go Mono and Courier glyphs in em.
const monoAdvance = 0.6

// Measurer returns the advance width of s.
type Measurer func(s string) float64

// Monospace measures text set in a monospace face of the given size.
func Monospace(size float64) Measurer {
	return func(s string) float64 { return float64(utf8.RuneCountInString(s)) * monoAdvance * size }
}

// Face measures with a concrete font face.
func Face(f font.Face) Measurer {
	return func(s string) float64 { return float64(font.MeasureString(f, s)) / 64 }
}

// Basic measures with the fixed 7x13 bitmap face, for deterministic tests.
func Basic() Measurer { return Face(basicfont.Face7x13) }

// FontSize returns the size at which the hard lines of text fill height h.
func FontSize(text string, h float64) float64 {
	n := strings.Count(text, "\n") + 1
	if size := h / float64(n); size > 0 {
		return size
	}
	return DefaultSize
}

// Lines splits text at newlines and wraps each paragraph at spaces so that no
// line exceeds maxWidth. A single word wider than maxWidth keeps its own line.
// maxWidth <= 0 disables wrapping.
func Lines(text string, maxWidth float64, measure Measurer) []string {
	paras := strings.Split(text, "\n")
	if maxWidth <= 0 || measure == nil {
		return paras
	}
	var out []string
	for _, p := range paras {
		out = append(out, wrap(p, maxWidth, measure)...)
	}
	return out
}

func wrap(p string, maxWidth float64, measure Measurer) []string {
	words := strings.Split(p, " ")
	var (
		lines []string
		cur   strings.Builder
	)
	for i, w := range words {
		if i == 0 {
			cur.WriteString(w)
			continue
		}
		next := cur.String() + " " + w
		if cur.Len() > 0 && measure(next) > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(w)
			continue
		}
		cur.Reset()
		cur.WriteString(next)
	}
	return append(lines, cur.String())
}

// Width returns the widest line.
func Width(lines []string, measure Measurer) float64 {
	var w float64
	for _, l := range lines {
		w = max(w, measure(l))
	}
	return w
}
