/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestNewIDs(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b || !a.Valid() || !strings.HasPrefix(string(a), "shape:") {
		t.Fatalf("bad shape ids %q %q", a, b)
	}
	if id := NewAssetID(); !id.Valid() || ID(id).Valid() {
		t.Fatalf("bad asset id %q", id)
	}
	if ID("shape:").Valid() || AssetID("x").Valid() {
		t.Fatalf("empty/foreign ids must not validate")
	}
}

func TestShapeJSONFieldNames(t *testing.T) {
	s := Shape{ID: "shape:a", TypeName: "shape", Type: Image, X: 1, Y: 2, IsLocked: true,
		Props: Props{W: 10, H: 20, AssetID: "asset:b"}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"id":"shape:a"`, `"typeName":"shape"`, `"type":"image"`, `"isLocked":true`, `"assetId":"asset:b"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("%s missing %s", data, want)
		}
	}
}

func TestEqualAndClone(t *testing.T) {
	a := New(Draw, 5, 5, Props{Points: []Point{{0, 0, 0.5}, {10, 10, 0.5}}, Color: "black"})
	a.Meta = json.RawMessage(`{"k":1}`)
	b := a.Clone()
	if !Equal([]Shape{a}, []Shape{b}) {
		t.Fatalf("clone should be equal")
	}
	b.Props.Points[1].X = 11
	if a.Props.Points[1].X != 10 {
		t.Fatalf("clone shares points with original")
	}
	if Equal([]Shape{a}, []Shape{b}) {
		t.Fatalf("changed point must break equality")
	}
	if Equal([]Shape{a}, []Shape{a, a}) {
		t.Fatalf("length mismatch must not be equal")
	}
	if !Equal(nil, []Shape{}) {
		t.Fatalf("nil and empty lists are equal by value")
	}
	if CloneAll(nil) != nil {
		t.Fatalf("CloneAll(nil) should stay nil")
	}
}

func TestWithoutAndUsedAssets(t *testing.T) {
	img1 := New(Image, 0, 0, Props{W: 1, H: 1, AssetID: "asset:1"})
	img2 := New(Image, 0, 0, Props{W: 1, H: 1, AssetID: "asset:1"})
	img3 := New(Image, 0, 0, Props{W: 1, H: 1, AssetID: "asset:2"})
	geo := New(Geo, 0, 0, Props{W: 1, H: 1, Geo: "rectangle"})
	in := []Shape{img1, geo, img2, img3}
	got := UsedAssets(in)
	if len(got) != 2 || got[0] != "asset:1" || got[1] != "asset:2" {
		t.Fatalf("UsedAssets = %v", got)
	}
	rest := Without(in, geo.ID)
	if len(rest) != 3 || len(in) != 4 {
		t.Fatalf("Without = %d items, input %d", len(rest), len(in))
	}
}

func TestLockAspectRatio(t *testing.T) {
	prev := New(Image, 0, 0, Props{W: 200, H: 100})
	next := prev
	next.Props.W = 300
	next.Props.H = 100
	got := LockAspectRatio(prev, next)
	if got.Props.H != 150 {
		t.Fatalf("H = %v, want 150", got.Props.H)
	}
	same := prev
	same.Props.W, same.Props.H = 400, 200
	if got := LockAspectRatio(prev, same); got.Props.H != 200 {
		t.Fatalf("unchanged ratio must pass through, got %v", got.Props.H)
	}
	geo := New(Geo, 0, 0, Props{W: 10, H: 10})
	g2 := geo
	g2.Props.W = 50
	if got := LockAspectRatio(geo, g2); got.Props.H != 10 {
		t.Fatalf("non-image shapes are not locked")
	}
}

func TestBounds(t *testing.T) {
	r := New(Geo, 10, 20, Props{W: 100, H: 50})
	b := r.Bounds()
	if b != R(10, 20, 100, 50) {
		t.Fatalf("unexpected bounds %+v", b)
	}
	r.Rotation = math.Pi / 2
	b = r.Bounds()
	if math.Abs(b.X+40) > 1e-9 || math.Abs(b.W-50) > 1e-9 || math.Abs(b.H-100) > 1e-9 {
		t.Fatalf("rotated bounds %+v", b)
	}
	d := New(Draw, 0, 0, Props{Points: []Point{{X: 1, Y: 1}, {X: 5, Y: 9}}, StrokeWidth: 2})
	if lb := d.LocalBounds(); lb != R(0, 0, 6, 10) {
		t.Fatalf("stroke bounds %+v", lb)
	}
	u, ok := BoundsOf([]Shape{New(Geo, 0, 0, Props{W: 10, H: 10}), New(Geo, 20, 20, Props{W: 10, H: 10})})
	if !ok || u != R(0, 0, 30, 30) {
		t.Fatalf("union %+v %v", u, ok)
	}
	if _, ok := BoundsOf(nil); ok {
		t.Fatalf("empty list has no bounds")
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	if p := m.Apply(Pt{1, 1}); p.X != 12 || p.Y != 8 {
		t.Fatalf("unexpected transform result: %+v", p)
	}
	if in := R(10, 20, 100, 50).Inset(5, 5); in != R(15, 25, 90, 40) {
		t.Fatalf("inset %+v", in)
	}
}
