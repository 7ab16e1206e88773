/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package host wires the configured collaborators of a note widget: the block
// store, paper asset fetchers and the user notifier.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"handnote/internal/assets"
	"handnote/internal/config"
	"handnote/internal/editorstate"
	"handnote/internal/export"
	applog "handnote/internal/log"
	"handnote/internal/note"
	"handnote/internal/notify"
	"handnote/internal/paper"
	"handnote/internal/render"
	"handnote/internal/shape"
	"handnote/internal/store"
	"handnote/internal/telemetry"
	"handnote/internal/window"
)

// ThumbSize bounds stored preview images.
const ThumbSize = 320

type Host struct {
	Config   config.AppConfig
	Store    *store.Store
	Fetcher  assets.Fetcher
	Notifier notify.Notifier
	Events   *telemetry.Client
	l        *slog.Logger
}

// Open connects the store and builds fetchers and notifier from cfg.
// token authorises the optional asset server.
func Open(ctx context.Context, cfg config.AppConfig, token string) (*Host, error) {
	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	var fetch assets.Fetcher = assets.Embedded{}
	if cfg.Assets.BaseURL != "" {
		fetch = assets.Chain{
			assets.NewHTTPFetcher(cfg.Assets.BaseURL, token, cfg.Assets.Timeout(), cfg.Assets.TLSInsecure),
			assets.Embedded{},
		}
	}
	var n notify.Notifier = notify.Log{}
	if cfg.Notify.Desktop {
		n = notify.NewDesktop("Handnote", notify.Log{})
	}
	return &Host{
		Config:   cfg,
		Store:    st,
		Fetcher:  fetch,
		Notifier: n,
		Events:   telemetry.Default(),
		l:        applog.WithComponent("host"),
	}, nil
}

// Close sends queued usage events and closes the store.
func (h *Host) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	h.Events.Flush(ctx)
	return h.Store.Close()
}

// NoteConfig maps the user configuration onto widget settings.
func (h *Host) NoteConfig() note.Config {
	e := h.Config.Editor
	t, ok := paper.Parse(e.DefaultPaper)
	if !ok {
		t = paper.Default
	}
	geo := window.DefaultGeometry()
	if w := h.Config.Window; w.ReferenceWidth > 0 {
		geo.ReferenceWidth = w.ReferenceWidth
	}
	if w := h.Config.Window; w.TopFraction > 0 {
		geo.TopFraction = w.TopFraction
	}
	geo.TargetHeight = h.Config.Window.TargetHeight
	return note.Config{
		Editor: editorstate.Config{
			Debounce:          e.Debounce(),
			DefaultType:       t,
			DefaultDimensions: shape.Dimensions{Width: e.DefaultWidth, Height: e.DefaultHeight},
		},
		Geometry:       geo,
		ZoomDebounce:   100 * time.Millisecond,
		FullScreenZoom: e.FullScreenZoom,
	}
}

// Options loads a block's persisted options; a missing block yields empty options.
func (h *Host) Options(ctx context.Context, blockID string) (editorstate.EditorOptions, error) {
	opts, err := h.Store.Options(ctx, blockID)
	if errors.Is(err, store.ErrNotFound) {
		return editorstate.EditorOptions{}, nil
	}
	return opts, err
}

// Widget returns a closed note widget for blockID that persists into the store
// and refreshes the stored preview on every save.
func (h *Host) Widget(ctx context.Context, blockID string, extra ...note.Option) (*note.Widget, error) {
	opts, err := h.Options(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", blockID, err)
	}
	save := h.Store.Updater(ctx, blockID)
	update := func(key string, value any) {
		save(key, value)
		o, ok := value.(editorstate.EditorOptions)
		if !ok || key != note.OptionsKey {
			return
		}
		st := editorstate.Decode(o, h.NoteConfig().Editor.DefaultDimensions)
		if err := h.savePreview(ctx, blockID, st); err != nil {
			h.l.WarnContext(ctx, "preview not stored", slog.String("block", blockID), slog.Any("err", err))
		}
		h.Events.Send("note_saved", map[string]any{"paper": string(st.NoteType), "shapes": len(st.Shapes)})
	}
	o := []note.Option{
		note.WithConfig(h.NoteConfig()),
		note.WithFetcher(h.Fetcher),
		note.WithNotifier(h.Notifier),
	}
	return note.New(opts, update, append(o, extra...)...), nil
}

// SavePreview stores a PNG thumbnail of opts for blockID.
func (h *Host) SavePreview(ctx context.Context, blockID string, opts editorstate.EditorOptions) error {
	return h.savePreview(ctx, blockID, editorstate.Decode(opts, h.NoteConfig().Editor.DefaultDimensions))
}

func (h *Host) savePreview(ctx context.Context, blockID string, st editorstate.State) error {
	img := export.Thumbnail(st, ThumbSize, ThumbSize)
	png, err := render.EncodePNG(img)
	if err != nil {
		return err
	}
	b := img.Bounds()
	return h.Store.PutPreview(ctx, blockID, png, b.Dx(), b.Dy())
}
