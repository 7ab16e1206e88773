/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes a handwritten note to SVG, PNG or PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"handnote/internal/editorstate"
	"handnote/internal/render"
	"handnote/internal/shape"
)

// ErrUnsupportedFormat is returned for output paths with an unknown extension.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Options controls export output.
//   - Scale: PNG pixels per page unit; 0 means 2
//   - Padding: page units around the content; 0 means 8
//   - NoPaper: leave the paper background out
//   - Title: PDF document title
type Options struct {
	Scale   float64
	Padding float64
	NoPaper bool
	Title   string
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = 2
	}
	if o.Padding <= 0 {
		o.Padding = 8
	}
	if o.Title == "" {
		o.Title = "Handwritten note"
	}
	return o
}

// Assets resolves assets by id.
type Assets map[shape.AssetID]shape.Asset

func (a Assets) Asset(id shape.AssetID) (shape.Asset, bool) {
	v, ok := a[id]
	return v, ok
}

// Content returns the note's shapes in paint order, paper first unless
// noPaper is set, together with the assets they use.
func Content(st editorstate.State, noPaper bool) ([]shape.Shape, Assets) {
	assets := Assets{}
	for _, a := range st.Assets {
		assets[a.ID] = a
	}
	shapes := make([]shape.Shape, 0, len(st.Shapes)+1)
	if st.Background != nil && !noPaper {
		shapes = append(shapes, editorstate.BackgroundShape(*st.Background))
	}
	shapes = append(shapes, st.Shapes...)
	return shapes, assets
}

// File exports st to outPath; the format follows the extension.
func File(ctx context.Context, st editorstate.State, outPath string, opt Options) error {
	ext := strings.ToLower(filepath.Ext(outPath))
	var (
		data []byte
		err  error
	)
	switch ext {
	case ".svg":
		var s string
		s, err = SVG(ctx, st, opt)
		data = []byte(s)
	case ".png":
		data, err = PNG(st, opt)
	case ".pdf":
		data, err = PDF(st, opt)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ext, err)
	}
	return nil
}

// Thumbnail rasterises st to fit within maxW×maxH, falling back to the
// placeholder image for notes without content.
func Thumbnail(st editorstate.State, maxW, maxH int) image.Image {
	shapes, assets := Content(st, false)
	img, err := render.Raster(shapes, assets, render.Options{Scale: 1, Background: color.White})
	if err != nil {
		return render.Placeholder(maxW, maxH)
	}
	return render.Fit(img, maxW, maxH)
}
