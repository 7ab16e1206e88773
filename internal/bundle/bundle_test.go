/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package bundle

import (
	"archive/zip"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"handnote/internal/note"
	"handnote/internal/render"
	"handnote/internal/store"
)

const ruled = `{"noteType":"ruled","imageWidth":250,"imageHeight":250}`

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "notes.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	return p
}

func TestExportAndInstall(t *testing.T) {
	ctx := context.Background()
	src := openStore(t)
	if err := src.PutRaw(ctx, "a", note.OptionsKey, []byte(ruled)); err != nil {
		t.Fatal(err)
	}
	if err := src.PutRaw(ctx, "b", note.OptionsKey, []byte(`{"imageWidth":"300px","imageHeight":200}`)); err != nil {
		t.Fatal(err)
	}
	png, err := render.EncodePNG(image.NewRGBA(image.Rect(0, 0, 12, 8)))
	if err != nil {
		t.Fatal(err)
	}
	if err := src.PutPreview(ctx, "a", png, 12, 8); err != nil {
		t.Fatal(err)
	}

	zipPath := filepath.Join(t.TempDir(), "out", "notes.zip")
	n, err := Export(ctx, src, nil, zipPath)
	if err != nil || n != 2 {
		t.Fatalf("Export = %d, %v", n, err)
	}

	dst := openStore(t)
	n, err = Install(ctx, dst, zipPath)
	if err != nil || n != 2 {
		t.Fatalf("Install = %d, %v", n, err)
	}
	opts, err := dst.Options(ctx, "a")
	if err != nil || opts.NoteType != "ruled" {
		t.Fatalf("installed options = %+v, %v", opts, err)
	}
	if _, w, h, err := dst.Preview(ctx, "a"); err != nil || w != 12 || h != 8 {
		t.Fatalf("installed preview %dx%d, %v", w, h, err)
	}
	if _, _, _, err := dst.Preview(ctx, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("block without preview got one: %v", err)
	}

	n, err = Install(ctx, dst, zipPath)
	if err != nil || n != 0 {
		t.Fatalf("second install must skip existing blocks, got %d, %v", n, err)
	}
}

func TestExportSelectedAndMissing(t *testing.T) {
	ctx := context.Background()
	src := openStore(t)
	if err := src.PutRaw(ctx, "a", note.OptionsKey, []byte(ruled)); err != nil {
		t.Fatal(err)
	}
	n, err := Export(ctx, src, []string{"a", "gone"}, filepath.Join(t.TempDir(), "x.zip"))
	if err != nil || n != 1 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	if _, err := Export(ctx, src, []string{"../up"}, filepath.Join(t.TempDir(), "y.zip")); !errors.Is(err, ErrBadID) {
		t.Fatalf("expected ErrBadID, got %v", err)
	}
	if _, err := Export(ctx, src, nil, ""); err == nil {
		t.Fatalf("expected error for empty destination")
	}
}

func TestInstallRejectsUnsafeAndInvalidEntries(t *testing.T) {
	ctx := context.Background()
	dst := openStore(t)
	p := writeZip(t, map[string]string{
		"../evil/editorOptions.json": ruled,
		"a/b/editorOptions.json":     ruled,
		"notes.txt":                  "hello",
	})
	n, err := Install(ctx, dst, p)
	if err != nil || n != 0 {
		t.Fatalf("unsafe entries installed: %d, %v", n, err)
	}
	if ids, _ := dst.Blocks(ctx); len(ids) != 0 {
		t.Fatalf("unexpected blocks %v", ids)
	}

	bad := writeZip(t, map[string]string{"x/editorOptions.json": `{"noteType":"dotted"}`})
	if _, err := Install(ctx, dst, bad); !errors.Is(err, store.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	if _, err := Install(ctx, dst, filepath.Join(t.TempDir(), "missing.zip")); err == nil {
		t.Fatalf("expected error for missing bundle")
	}
}
