/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editorstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"handnote/internal/paper"
	"handnote/internal/shape"
)

// ErrDecode reports malformed persisted editor data. It never leaves this
// package: Decode turns it into absent fields.
var ErrDecode = errors.New("editorstate: malformed persisted data")

// EditorOptions is the host-facing persisted form of a note.
// EditorData and ImageData hold JSON strings when produced by Serialize but
// are also accepted as structured JSON.
type EditorOptions struct {
	NoteType      string          `json:"noteType,omitempty"`
	ImageWidth    FlexNumber      `json:"imageWidth"`
	ImageHeight   FlexNumber      `json:"imageHeight"`
	EditorData    json.RawMessage `json:"editorData,omitempty"`
	ImageData     json.RawMessage `json:"imageData,omitempty"`
	IsEverChanged bool            `json:"isEverChanged,omitempty"`
}

// FlexNumber accepts a JSON number or a numeric string such as "250" or "250px".
// Anything else decodes to 0.
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		*n = 0
		return nil
	}
	*n = FlexNumber(f)
	return nil
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(n), 'f', -1, 64)), nil
}

// EditorData is the structured content of the editorData field.
type EditorData struct {
	Background *shape.Background `json:"background,omitempty"`
	Assets     []shape.Asset     `json:"assets,omitempty"`
	Shapes     []shape.Shape     `json:"shapes,omitempty"`
}

// ImageData is the structured content of the imageData field.
type ImageData struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	SVG    string `json:"svg"`
}

// State is the in-memory editor state of one note.
type State struct {
	EverChanged bool
	NoteType    paper.Type // "" when undefined
	Background  *shape.Background
	Assets      []shape.Asset
	Shapes      []shape.Shape // user content; never contains the background shape
	Preview     string        // rendered svg; "" when undefined
	Dimensions  shape.Dimensions
}

// HasContent reports whether the state carries persisted content.
func (s State) HasContent() bool { return s.Background != nil || len(s.Shapes) > 0 }

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	if s.Background != nil {
		bg := *s.Background
		c.Background = &bg
	}
	if s.Assets != nil {
		c.Assets = make([]shape.Asset, len(s.Assets))
		for i, a := range s.Assets {
			c.Assets[i] = a.Clone()
		}
	}
	c.Shapes = shape.CloneAll(s.Shapes)
	return c
}

// unquote strips up to two levels of JSON string encoding.
func unquote(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	for depth := 0; depth < 2 && len(raw) > 0 && raw[0] == '"'; depth++ {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		raw = bytes.TrimSpace([]byte(s))
	}
	return raw, nil
}

// decodeEditorData accepts the structured object, a bare shape array or a JSON string of either.
func decodeEditorData(raw json.RawMessage) (EditorData, error) {
	b, err := unquote(raw)
	if err != nil || len(b) == 0 || string(b) == "null" {
		return EditorData{}, err
	}
	var d EditorData
	switch b[0] {
	case '{':
		if err := json.Unmarshal(b, &d); err != nil {
			return EditorData{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	case '[':
		if err := json.Unmarshal(b, &d.Shapes); err != nil {
			return EditorData{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	default:
		return EditorData{}, fmt.Errorf("%w: editorData starts with %q", ErrDecode, b[0])
	}
	if d.Background != nil && (d.Background.ShapeID == "" || d.Background.AssetID == "") {
		d.Background = nil
	}
	d.Shapes = validShapes(d.Shapes)
	return d, nil
}

func validShapes(in []shape.Shape) []shape.Shape {
	if in == nil {
		return nil
	}
	out := in[:0]
	for _, s := range in {
		if s.ID == "" || s.Type == "" {
			continue
		}
		if s.TypeName == "" {
			s.TypeName = "shape"
		}
		out = append(out, s)
	}
	return out
}

// decodeImageData accepts the structured object, a JSON string of it or raw svg markup.
func decodeImageData(raw json.RawMessage) (ImageData, error) {
	b, err := unquote(raw)
	if err != nil || len(b) == 0 || string(b) == "null" {
		return ImageData{}, err
	}
	switch b[0] {
	case '{':
		var d ImageData
		if err := json.Unmarshal(b, &d); err != nil {
			return ImageData{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return d, nil
	case '<':
		return ImageData{SVG: string(b)}, nil
	default:
		return ImageData{}, fmt.Errorf("%w: imageData starts with %q", ErrDecode, b[0])
	}
}

// quote encodes v as JSON and wraps the result in a JSON string.
func quote(v any) (json.RawMessage, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}
