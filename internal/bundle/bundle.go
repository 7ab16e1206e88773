/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package bundle moves note blocks between stores as zip archives.
// Each block is stored as <id>/editorOptions.json plus an optional <id>/preview.png.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "handnote/internal/log"
	"handnote/internal/note"
	"handnote/internal/store"
)

const (
	manifestName = "handnote.manifest.txt"
	optionsFile  = note.OptionsKey + ".json"
	previewFile  = "preview.png"
	maxEntry     = 64 << 20
)

// ErrBadID reports a block id that cannot be used as an archive directory.
var ErrBadID = errors.New("bundle: invalid block id")

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Export writes the given blocks, or every block when ids is empty, into a zip
// at destZipPath and returns how many blocks were written.
func Export(ctx context.Context, st *store.Store, ids []string, destZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "export").With(slog.String("zip", destZipPath))
	if strings.TrimSpace(destZipPath) == "" {
		return 0, errors.New("destZipPath is required")
	}
	if len(ids) == 0 {
		all, err := st.Blocks(ctx)
		if err != nil {
			return 0, err
		}
		ids = all
	}
	for _, id := range ids {
		if !validID(id) {
			return 0, fmt.Errorf("%w: %q", ErrBadID, id)
		}
	}
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZipPath)
	zf, err := os.Create(destZipPath)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("Handnote bundle\nCreated: %s\nBlocks: %d\n", time.Now().Format(time.RFC3339), len(ids))
	if err := add(zw, manifestName, []byte(manifest)); err != nil {
		return 0, err
	}
	written := 0
	for _, id := range ids {
		raw, err := st.Get(ctx, id, note.OptionsKey)
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("skip missing block", slog.String("block", id))
			continue
		}
		if err != nil {
			return written, err
		}
		if err := add(zw, path.Join(id, optionsFile), raw); err != nil {
			return written, err
		}
		png, _, _, err := st.Preview(ctx, id)
		switch {
		case err == nil:
			if err := add(zw, path.Join(id, previewFile), png); err != nil {
				return written, err
			}
		case !errors.Is(err, store.ErrNotFound):
			return written, err
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("bundle exported", slog.Int("blocks", written))
	return written, nil
}

func add(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Install imports the blocks of a bundle. Blocks already present in st are
// skipped and invalid options fail the install. Returns the count installed.
func Install(ctx context.Context, st *store.Store, packZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "install").With(slog.String("zip", packZipPath))
	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return 0, fmt.Errorf("open bundle: %w", err)
	}
	defer func() { _ = r.Close() }()

	previews := map[string]*zip.File{}
	var blocks []*zip.File
	for _, f := range r.File {
		dir, file := path.Split(f.Name)
		id := strings.TrimSuffix(dir, "/")
		if f.FileInfo().IsDir() || f.Name == manifestName {
			continue
		}
		if !validID(id) {
			l.Warn("skip unexpected entry", slog.String("entry", f.Name))
			continue
		}
		switch file {
		case optionsFile:
			blocks = append(blocks, f)
		case previewFile:
			previews[id] = f
		}
	}

	installed := 0
	for _, f := range blocks {
		id := path.Dir(f.Name)
		if _, err := st.Get(ctx, id, note.OptionsKey); err == nil {
			l.Warn("skip existing block", slog.String("block", id))
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return installed, err
		}
		raw, err := read(f)
		if err != nil {
			return installed, err
		}
		if err := st.PutRaw(ctx, id, note.OptionsKey, raw); err != nil {
			return installed, fmt.Errorf("install %s: %w", id, err)
		}
		if p, ok := previews[id]; ok {
			if err := installPreview(ctx, st, id, p); err != nil {
				l.Warn("preview not installed", slog.String("block", id), slog.Any("err", err))
			}
		}
		installed++
	}
	l.Info("bundle installed", slog.Int("blocks", installed))
	return installed, nil
}

func installPreview(ctx context.Context, st *store.Store, id string, f *zip.File) error {
	data, err := read(f)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return st.PutPreview(ctx, id, data, cfg.Width, cfg.Height)
}

func read(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntry+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > maxEntry {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	return data, nil
}
