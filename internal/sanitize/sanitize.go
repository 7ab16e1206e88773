/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package sanitize cleans SVG markup before it is embedded in a renderable surface.
package sanitize

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// dropped elements are removed together with their content.
var dropped = map[string]bool{
	"script":        true,
	"foreignobject": true,
	"iframe":        true,
	"object":        true,
	"embed":         true,
	"handler":       true,
	"listener":      true,
	"set":           true, // can assign href to javascript: urls
	"animate":       true,
}

// camel restores SVG names the tokenizer folds to lower case.
var camel = map[string]string{
	"viewbox":             "viewBox",
	"preserveaspectratio": "preserveAspectRatio",
	"lineargradient":      "linearGradient",
	"radialgradient":      "radialGradient",
	"gradientunits":       "gradientUnits",
	"gradienttransform":   "gradientTransform",
	"clippath":            "clipPath",
	"clippathunits":       "clipPathUnits",
	"patternunits":        "patternUnits",
	"patterntransform":    "patternTransform",
	"patterncontentunits": "patternContentUnits",
	"maskunits":           "maskUnits",
	"maskcontentunits":    "maskContentUnits",
	"textpath":            "textPath",
	"textlength":          "textLength",
	"lengthadjust":        "lengthAdjust",
	"stddeviation":        "stdDeviation",
	"fegaussianblur":      "feGaussianBlur",
	"feoffset":            "feOffset",
	"feblend":             "feBlend",
	"fecolormatrix":       "feColorMatrix",
	"femerge":             "feMerge",
	"femergenode":         "feMergeNode",
	"filterunits":         "filterUnits",
	"markerwidth":         "markerWidth",
	"markerheight":        "markerHeight",
	"markerunits":         "markerUnits",
	"refx":                "refX",
	"refy":                "refY",
	"xlink:href":          "xlink:href",
}

func restore(name string) string {
	if c, ok := camel[name]; ok {
		return c
	}
	return name
}

// SVG returns in with scripts, event handlers, foreign content and unsafe
// links removed. Input without an svg element yields "".
func SVG(in string) string {
	if !strings.Contains(strings.ToLower(in), "<svg") {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(in))
	var b strings.Builder
	b.Grow(len(in))
	skip := 0
	inStyle := false
	sawSVG := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return ""
			}
			break
		}
		raw := string(z.Raw())
		tok := z.Token()
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			if tok.Data != "style" || tt == html.SelfClosingTagToken {
				z.NextIsNotRawText()
			}
			if skip > 0 {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if dropped[tok.Data] {
				if tt == html.StartTagToken {
					skip = 1
				}
				continue
			}
			if tok.Data == "svg" {
				sawSVG = true
			}
			inStyle = tok.Data == "style" && tt == html.StartTagToken
			attrs, changed := cleanAttrs(tok.Attr)
			if !changed {
				b.WriteString(raw)
				continue
			}
			writeTag(&b, tok.Data, attrs, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			if skip > 0 {
				skip--
				continue
			}
			if dropped[tok.Data] {
				continue
			}
			inStyle = false
			b.WriteString(raw)
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if inStyle && unsafeCSS(raw) {
				continue
			}
			b.WriteString(raw)
		default:
			// comments, doctypes and processing instructions are dropped
		}
	}
	if !sawSVG {
		return ""
	}
	return b.String()
}

func writeTag(b *strings.Builder, name string, attrs []html.Attribute, selfClosing bool) {
	b.WriteByte('<')
	b.WriteString(restore(name))
	for _, a := range attrs {
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(restore(a.Key))
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
}

// cleanAttrs drops event handlers and unsafe urls; changed reports whether anything was removed.
func cleanAttrs(in []html.Attribute) (out []html.Attribute, changed bool) {
	out = in[:0:0]
	for _, a := range in {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			key = a.Namespace + ":" + key
		}
		switch {
		case strings.HasPrefix(key, "on"):
			changed = true
			continue
		case key == "href" || key == "xlink:href" || key == "src" || key == "action" || key == "formaction":
			if !safeURL(a.Val) {
				changed = true
				continue
			}
		case key == "style":
			if unsafeCSS(a.Val) {
				changed = true
				continue
			}
		default:
			if strings.Contains(normalize(a.Val), "javascript:") {
				changed = true
				continue
			}
		}
		out = append(out, a)
	}
	return out, changed
}

// normalize lower-cases v and strips whitespace and control characters used to hide schemes.
func normalize(v string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		if r >= 'A' && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, v)
}

func safeURL(v string) bool {
	n := normalize(v)
	switch {
	case n == "", strings.HasPrefix(n, "#"):
		return true
	case strings.HasPrefix(n, "data:"):
		for _, p := range []string{"data:image/png", "data:image/jpeg", "data:image/gif", "data:image/webp"} {
			if strings.HasPrefix(n, p) {
				return true
			}
		}
		return false
	case strings.HasPrefix(n, "http://"), strings.HasPrefix(n, "https://"):
		return true
	}
	// relative references only
	if i := strings.IndexAny(n, ":/?#"); i >= 0 && n[i] == ':' {
		return false
	}
	return true
}

func unsafeCSS(v string) bool {
	n := normalize(v)
	return strings.Contains(n, "javascript:") || strings.Contains(n, "expression(") ||
		strings.Contains(n, "@import") || strings.Contains(n, "behavior:") || strings.Contains(n, "-moz-binding")
}
