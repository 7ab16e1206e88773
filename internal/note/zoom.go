/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package note

import "math"

const (
	MinZoom        = 1.0
	FullScreenZoom = 2.75
	zoomEpsilon    = 0.01
)

// Size is a width/height pair in screen pixels.
type Size struct{ Width, Height float64 }

// ZoomFor interpolates the editor zoom for a container of size c. Each axis
// grows linearly from MinZoom at the normal editor size to top at the full
// viewport; the larger axis wins and the result never drops below floor.
func ZoomFor(c, normal, full Size, floor, top float64) float64 {
	w, h := math.Floor(c.Width), math.Floor(c.Height)
	zw := axisZoom(w, normal.Width, full.Width, top)
	zh := axisZoom(h, normal.Height, full.Height, top)
	return math.Max(math.Max(zw, zh), floor)
}

func axisZoom(v, lo, hi, top float64) float64 {
	switch {
	case v <= lo:
		return MinZoom
	case v >= hi:
		return top
	default:
		return MinZoom + (v-lo)/(hi-lo)*(top-MinZoom)
	}
}
