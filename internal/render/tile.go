/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render rasterises paper tiles, previews and stamps, and converts
// images to and from data URLs.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// ErrInvalidSize reports a non-positive output size.
var ErrInvalidSize = errors.New("render: invalid size")

// defaultTile is used when the tile svg declares no usable size.
const defaultTile = 20

// TilePaper rasterises one svg tile at its declared size and repeats it
// across a w×h image, starting at the top-left corner.
func TilePaper(svg []byte, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse tile svg: %w", err)
	}
	tw, th := int(icon.ViewBox.W+0.5), int(icon.ViewBox.H+0.5)
	if tw <= 0 || th <= 0 {
		tw, th = defaultTile, defaultTile
	}
	tile := image.NewRGBA(image.Rect(0, 0, tw, th))
	icon.SetTarget(0, 0, float64(tw), float64(th))
	scanner := rasterx.NewScannerGV(tw, th, tile, tile.Bounds())
	icon.Draw(rasterx.NewDasher(tw, th, scanner), 1)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += th {
		for x := 0; x < w; x += tw {
			draw.Draw(out, image.Rect(x, y, x+tw, y+th), tile, image.Point{}, draw.Over)
		}
	}
	return out, nil
}

// PaperDataURL tiles svg across a w×h PNG and returns it as a data URL.
func PaperDataURL(svg []byte, w, h int) (string, error) {
	img, err := TilePaper(svg, w, h)
	if err != nil {
		return "", err
	}
	return PNGDataURL(img)
}
