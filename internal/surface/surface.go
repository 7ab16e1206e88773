/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package surface defines the drawing-surface capability the note widget
// drives, and ships Canvas, an in-memory surface used by the CLI, the desktop
// front end and tests.
package surface

import (
	"context"
	"errors"

	"handnote/internal/shape"
)

// ErrRender reports that the surface could not produce a snapshot image.
var ErrRender = errors.New("surface: render failed")

// Camera is the surface viewport transform: page = screen/Z - (X,Y).
type Camera struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ChangeFunc receives the full current shape list after each change.
type ChangeFunc func(shapes []shape.Shape)

// Surface is an embeddable drawing engine. Implementations must be safe for
// use from the UI goroutine and the store's debounce goroutine.
type Surface interface {
	// Width is the current container width in screen pixels.
	Width() float64
	// CreateAssets inserts or replaces assets by id.
	CreateAssets(assets ...shape.Asset)
	// CreateShapes inserts shapes or replaces those with the same id in place.
	CreateShapes(shapes ...shape.Shape)
	// CurrentShapes returns the shapes in paint order (back to front).
	CurrentShapes() []shape.Shape
	Shape(id shape.ID) (shape.Shape, bool)
	Asset(id shape.AssetID) (shape.Asset, bool)
	// SendToBack moves the shapes to the bottom of the paint order.
	SendToBack(ids ...shape.ID)
	// RenderSVG renders the given shapes to SVG markup; an empty list renders "".
	RenderSVG(ctx context.Context, shapes []shape.Shape) (string, error)
	// OnChange registers fn for content changes and returns a func removing it.
	OnChange(fn ChangeFunc) (stop func())
	SetCamera(c Camera)
	Camera() Camera
}
