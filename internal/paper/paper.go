/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package paper is the registry of note paper types.
package paper

import "strings"

// Type identifies a paper background style.
type Type string

const (
	Squared Type = "squared"
	Ruled   Type = "ruled"

	Default = Squared
)

// Info describes how a paper type is presented.
type Info struct {
	Type      Type
	Label     string
	ClassName string // style token of the picker tile and the open editor
	AssetLink string // background tile, resolved by an assets.Fetcher
}

// registry lists paper types in picker order.
var registry = []Info{
	{Type: Squared, Label: "Squared", ClassName: "paper-squared", AssetLink: "/assets/svg/paper-types/paper-squared.svg"},
	{Type: Ruled, Label: "Ruled", ClassName: "paper-ruled", AssetLink: "/assets/svg/paper-types/paper-ruled.svg"},
}

// All returns every registered paper type in display order.
func All() []Info {
	out := make([]Info, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the registry entry for t.
func Lookup(t Type) (Info, bool) {
	for _, i := range registry {
		if i.Type == t {
			return i, true
		}
	}
	return Info{}, false
}

// Parse maps an identifier to a Type. Matching ignores case and surrounding space.
func Parse(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Lookup(t); !ok {
		return "", false
	}
	return t, true
}

// Valid reports whether t is registered.
func (t Type) Valid() bool {
	_, ok := Lookup(t)
	return ok
}

func (t Type) String() string { return string(t) }

// ClassName returns the style token for t, or "" when unknown.
func (t Type) ClassName() string {
	i, _ := Lookup(t)
	return i.ClassName
}

// AssetLink returns the background asset path for t, or "" when unknown.
func (t Type) AssetLink() string {
	i, _ := Lookup(t)
	return i.AssetLink
}
