/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sanitize

import (
	"strings"
	"testing"
)

func TestSVGKeepsSafeMarkup(t *testing.T) {
	in := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><defs><linearGradient id="g"><stop offset="0"/></linearGradient></defs><path d="M0 0 L10 10" stroke="#000"/><image href="data:image/png;base64,AA==" width="10" height="10"/><text x="1" y="2">a &amp; b</text></svg>`
	if got := SVG(in); got != in {
		t.Fatalf("safe svg changed:\n got %s\nwant %s", got, in)
	}
}

func TestSVGDropsActiveContent(t *testing.T) {
	tests := []struct {
		name, in, bad string
	}{
		{"script", `<svg><script>alert(1)</script><rect/></svg>`, "alert"},
		{"self-closing script", `<svg><script/><rect onload="x()"/></svg>`, "onload"},
		{"handler", `<svg onload="alert(1)" viewBox="0 0 1 1"><rect/></svg>`, "onload"},
		{"foreign", `<svg><foreignObject><iframe src="x"></iframe><b>hi</b></foreignObject><rect/></svg>`, "hi"},
		{"js href", `<svg><a href=" java&#x09;script:alert(1)"><rect/></a></svg>`, "script:"},
		{"xlink", `<svg><image xlink:href="javascript:alert(1)"/></svg>`, "javascript"},
		{"svg data", `<svg><image href="data:image/svg+xml;base64,PHN2Zy8+"/></svg>`, "svg+xml"},
		{"style attr", `<svg><rect style="background:url(javascript:alert(1))"/></svg>`, "javascript"},
		{"style import", `<svg><style>@import url(http://evil/x.css);</style><rect/></svg>`, "@import"},
		{"set", `<svg><a><set attributeName="href" to="javascript:alert(1)"/></a></svg>`, "alert"},
		{"comment", `<svg><!-- <script>x</script> --><rect/></svg>`, "<!--"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SVG(tc.in)
			if strings.Contains(got, tc.bad) {
				t.Fatalf("output still contains %q: %s", tc.bad, got)
			}
			if !strings.Contains(got, "<svg") {
				t.Fatalf("svg root lost: %q", got)
			}
		})
	}
}

func TestSVGRestoresCamelCaseOnRebuild(t *testing.T) {
	got := SVG(`<svg viewBox="0 0 5 5" onclick="x()" preserveAspectRatio="none"><clipPath id="c"/></svg>`)
	for _, want := range []string{`viewBox="0 0 5 5"`, `preserveAspectRatio="none"`, `<clipPath id="c"/>`} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %s in %s", want, got)
		}
	}
}

func TestSVGRejectsNonSVG(t *testing.T) {
	for _, in := range []string{"", "plain text", "<div>hi</div>", "<!-- <svg> -->"} {
		if got := SVG(in); got != "" {
			t.Errorf("SVG(%q) = %q, want empty", in, got)
		}
	}
}

func TestSafeURL(t *testing.T) {
	for v, want := range map[string]bool{
		"#frag": true, "https://x/y.png": true, "img/a.png": true, "data:image/png;base64,AA": true,
		"javascript:alert(1)": false, "JaVaScRiPt:x": false, "data:text/html,<b>": false, "vbscript:x": false,
	} {
		if got := safeURL(v); got != want {
			t.Errorf("safeURL(%q) = %v, want %v", v, got, want)
		}
	}
}
