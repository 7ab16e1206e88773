/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets resolves asset links such as
// "/assets/svg/paper-types/paper-squared.svg" to their bytes, from the tiles
// embedded in the binary or from an asset server.
package assets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// ErrNotFound reports that no fetcher knows the link.
var ErrNotFound = errors.New("asset not found")

// Fetcher loads the bytes behind an asset link.
type Fetcher interface {
	Fetch(ctx context.Context, link string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, link string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, link string) ([]byte, error) { return f(ctx, link) }

//go:embed svg/paper-types/*.svg
var embedded embed.FS

// Embedded serves the paper tiles compiled into the binary.
type Embedded struct{}

func (Embedded) Fetch(ctx context.Context, link string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(path.Clean("/"+link), "/assets/")
	if !fs.ValidPath(name) || strings.HasPrefix(name, "/") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, link)
	}
	data, err := embedded.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, link)
	}
	return data, nil
}

// Links lists the embedded asset links.
func Links() []string {
	var out []string
	_ = fs.WalkDir(embedded, ".", func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			out = append(out, "/assets/"+p)
		}
		return nil
	})
	return out
}

// Chain tries each fetcher in order and returns the first success.
type Chain []Fetcher

func (c Chain) Fetch(ctx context.Context, link string) ([]byte, error) {
	var errs []error
	for _, f := range c {
		if f == nil {
			continue
		}
		data, err := f.Fetch(ctx, link)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, link)
	}
	return nil, errors.Join(errs...)
}
