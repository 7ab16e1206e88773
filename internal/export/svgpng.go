/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"fmt"
	"image/color"

	"handnote/internal/editorstate"
	"handnote/internal/render"
	"handnote/internal/sanitize"
	"handnote/internal/surface"
)

// SVG renders st through the reference surface and returns sanitised markup.
func SVG(ctx context.Context, st editorstate.State, opt Options) (string, error) {
	opt = opt.withDefaults()
	shapes, assets := Content(st, opt.NoPaper)
	if len(shapes) == 0 {
		return "", fmt.Errorf("export svg: %w", render.ErrEmpty)
	}
	c := surface.NewCanvas(float64(st.Dimensions.Width), float64(st.Dimensions.Height))
	for _, a := range assets {
		c.CreateAssets(a)
	}
	c.CreateShapes(shapes...)
	out, err := c.RenderSVG(ctx, c.CurrentShapes())
	if err != nil {
		return "", fmt.Errorf("export svg: %w", err)
	}
	return sanitize.SVG(out), nil
}

// PNG rasterises st on a white page.
func PNG(st editorstate.State, opt Options) ([]byte, error) {
	opt = opt.withDefaults()
	shapes, assets := Content(st, opt.NoPaper)
	img, err := render.Raster(shapes, assets, render.Options{Scale: opt.Scale, Padding: opt.Padding, Background: color.White})
	if err != nil {
		return nil, fmt.Errorf("export png: %w", err)
	}
	return render.EncodePNG(img)
}
