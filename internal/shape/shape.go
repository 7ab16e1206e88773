/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package shape holds the records exchanged with a drawing surface: shapes,
// image assets and the background descriptor, in their persisted JSON form.
package shape

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ID identifies a shape ("shape:<uuid>").
type ID string

// AssetID identifies an asset ("asset:<uuid>").
type AssetID string

// NewID returns a fresh shape id.
func NewID() ID { return ID("shape:" + uuid.NewString()) }

// NewAssetID returns a fresh asset id.
func NewAssetID() AssetID { return AssetID("asset:" + uuid.NewString()) }

// Valid reports whether id carries the shape prefix.
func (id ID) Valid() bool { return strings.HasPrefix(string(id), "shape:") && len(id) > len("shape:") }

// Valid reports whether id carries the asset prefix.
func (id AssetID) Valid() bool { return strings.HasPrefix(string(id), "asset:") && len(id) > len("asset:") }

// Kind is the shape type.
type Kind string

const (
	Draw  Kind = "draw"
	Image Kind = "image"
	Geo   Kind = "geo"
	Line  Kind = "line"
	Text  Kind = "text"
)

// Point is a stroke sample relative to the shape origin. Z carries pen pressure.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Props are the kind-specific properties of a shape.
type Props struct {
	W           float64 `json:"w,omitempty"`
	H           float64 `json:"h,omitempty"`
	AssetID     AssetID `json:"assetId,omitempty"`
	Points      []Point `json:"points,omitempty"`
	Geo         string  `json:"geo,omitempty"` // "rectangle" | "ellipse"
	Text        string  `json:"text,omitempty"`
	Color       string  `json:"color,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

// Shape is a single drawable element.
type Shape struct {
	ID       ID              `json:"id"`
	TypeName string          `json:"typeName"`
	Type     Kind            `json:"type"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Rotation float64         `json:"rotation"`
	IsLocked bool            `json:"isLocked"`
	Opacity  float64         `json:"opacity,omitempty"`
	ParentID string          `json:"parentId,omitempty"`
	Index    string          `json:"index,omitempty"`
	Props    Props           `json:"props"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// New returns a shape of kind k at x,y with a fresh id.
func New(k Kind, x, y float64, p Props) Shape {
	return Shape{ID: NewID(), TypeName: "shape", Type: k, X: x, Y: y, Opacity: 1, Props: p}
}

// Clone returns a deep copy of s.
func (s Shape) Clone() Shape {
	c := s
	if s.Props.Points != nil {
		c.Props.Points = append([]Point(nil), s.Props.Points...)
	}
	if s.Meta != nil {
		c.Meta = append(json.RawMessage(nil), s.Meta...)
	}
	return c
}

// CloneAll deep-copies a shape list; nil stays nil.
func CloneAll(in []Shape) []Shape {
	if in == nil {
		return nil
	}
	out := make([]Shape, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// AssetProps describe the image behind an asset.
type AssetProps struct {
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	MimeType   string  `json:"mimeType"`
	Src        string  `json:"src"`
	Name       string  `json:"name"`
	IsAnimated bool    `json:"isAnimated"`
}

// Asset is an image resource referenced by image shapes.
type Asset struct {
	ID       AssetID         `json:"id"`
	TypeName string          `json:"typeName"`
	Type     string          `json:"type"`
	Props    AssetProps      `json:"props"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// NewImageAsset returns an image asset with a fresh id.
func NewImageAsset(name, mime, src string, w, h float64) Asset {
	return Asset{
		ID:       NewAssetID(),
		TypeName: "asset",
		Type:     "image",
		Props:    AssetProps{W: w, H: h, MimeType: mime, Src: src, Name: name},
	}
}

// Clone returns a deep copy of a.
func (a Asset) Clone() Asset {
	c := a
	if a.Meta != nil {
		c.Meta = append(json.RawMessage(nil), a.Meta...)
	}
	return c
}

// Background identifies the materialised paper background.
type Background struct {
	ShapeID ID      `json:"shapeId"`
	AssetID AssetID `json:"assetId"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
}

// Dimensions is the declared preview box size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Equal compares two shape lists by value, in order.
func Equal(a, b []Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Equal compares two shapes by their encoded form.
func (s Shape) Equal(o Shape) bool {
	if s.ID != o.ID || s.Type != o.Type {
		return false
	}
	x, err1 := json.Marshal(s)
	y, err2 := json.Marshal(o)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(x, y)
}

// Without returns shapes minus the one with id; the input is not modified.
func Without(shapes []Shape, id ID) []Shape {
	out := make([]Shape, 0, len(shapes))
	for _, s := range shapes {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// UsedAssets returns the asset ids referenced by image shapes, in first-use order.
func UsedAssets(shapes []Shape) []AssetID {
	var ids []AssetID
	seen := map[AssetID]bool{}
	for _, s := range shapes {
		if s.Type != Image || s.Props.AssetID == "" || seen[s.Props.AssetID] {
			continue
		}
		seen[s.Props.AssetID] = true
		ids = append(ids, s.Props.AssetID)
	}
	return ids
}

// LockAspectRatio keeps an image shape's aspect ratio across an update:
// when next changes the ratio of prev, its height follows its width.
func LockAspectRatio(prev, next Shape) Shape {
	if next.Type != Image || prev.Props.W <= 0 || prev.Props.H <= 0 || next.Props.H == 0 {
		return next
	}
	aspect := prev.Props.W / prev.Props.H
	if d := next.Props.W/next.Props.H - aspect; d > 0.001 || d < -0.001 {
		next.Props.H = next.Props.W / aspect
	}
	return next
}
