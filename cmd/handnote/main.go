/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"handnote/internal/backend"
	"handnote/internal/bundle"
	"handnote/internal/config"
	"handnote/internal/crash"
	"handnote/internal/editorstate"
	"handnote/internal/export"
	"handnote/internal/host"
	applog "handnote/internal/log"
	"handnote/internal/note"
	"handnote/internal/render"
	"handnote/internal/store"
	"handnote/internal/telemetry"
	"handnote/internal/ui"
	"handnote/internal/version"
)

const defaultBlock = "default"

func usage() {
	fmt.Println("Handnote: handwritten note blocks")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  handnote version|-v|--version          Show version")
	fmt.Println("  handnote list                           List stored note blocks")
	fmt.Println("  handnote show <id>                      Print a summary of the note stored under <id>")
	fmt.Println("  handnote import <id> <file.json>        Store editor options from a JSON file")
	fmt.Println("  handnote export <id> <out.svg|png|pdf>  Export the note")
	fmt.Println("  handnote thumb <id> <out.png>           Write the closed-mode preview image")
	fmt.Println("  handnote rm <id>                        Delete a note block")
	fmt.Println("  handnote bundle <out.zip> [<id>...]     Archive note blocks (all when no id is given)")
	fmt.Println("  handnote install <bundle.zip>           Import the blocks of an archive, skipping existing ones")
	fmt.Println("  handnote serve [<addr>]                 Serve paper tiles and blocks over HTTP (default 127.0.0.1:8080)")
	fmt.Println("  handnote ui [<id>]                      Launch desktop UI (build with -tags fyne for full UI)")
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func need(args []string, n int, what string) {
	if len(args) < n {
		fmt.Println(what)
		usage()
		os.Exit(2)
	}
}

func main() {
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	crashDir := ""
	if d, err := config.Dir(); err == nil {
		crashDir = filepath.Join(d, "crash")
	}
	defer crash.Recover(crash.Options{Dir: crashDir})

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Handnote: handwritten note blocks")
		fmt.Println(version.String())
		return
	case "list", "show", "import", "export", "thumb", "rm", "bundle", "install", "serve", "ui":
	default:
		usage()
		return
	}

	events := telemetry.Init(telemetry.FromEnv())
	defer events.Close()
	events.Send("command", map[string]any{"name": args[1]})

	ctx := context.Background()
	h, err := host.Open(ctx, cfg, token)
	if err != nil {
		fail(l, "open store failed", err)
	}
	defer h.Close()

	switch args[1] {
	case "list":
		ids, err := h.Store.Blocks(ctx)
		if err != nil {
			fail(l, "list failed", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "show":
		need(args, 3, "show requires <id>")
		st := loadState(ctx, l, h, args[2])
		fmt.Printf("Note: %s\n", args[2])
		fmt.Printf("Paper: %s\n", orNone(string(st.NoteType)))
		fmt.Printf("Size: %dx%d\n", st.Dimensions.Width, st.Dimensions.Height)
		fmt.Printf("Shapes: %d  Assets: %d\n", len(st.Shapes), len(st.Assets))
		fmt.Printf("Background: %t  Preview: %t  Ever changed: %t\n", st.Background != nil, st.Preview != "", st.EverChanged)
	case "import":
		need(args, 4, "import requires <id> and <file.json>")
		raw, err := os.ReadFile(args[3])
		if err != nil {
			fail(l, "read failed", err)
		}
		ctx := applog.WithNote(ctx, args[2])
		if err := h.Store.PutRaw(ctx, args[2], note.OptionsKey, raw); err != nil {
			fail(l, "import failed", err)
		}
		opts, err := h.Store.Options(ctx, args[2])
		if err == nil {
			err = h.SavePreview(ctx, args[2], opts)
		}
		if err != nil {
			l.WarnContext(ctx, "preview not stored", slog.Any("err", err))
		}
		fmt.Println("Imported", args[3], "into", args[2])
	case "export":
		need(args, 4, "export requires <id> and <out>")
		st := loadState(ctx, l, h, args[2])
		abs, _ := filepath.Abs(args[3])
		if err := export.File(ctx, st, abs, export.Options{Title: args[2]}); err != nil {
			fail(l, "export failed", err)
		}
		fmt.Println("Exported", args[2], "to", abs)
	case "thumb":
		need(args, 4, "thumb requires <id> and <out.png>")
		st := loadState(ctx, l, h, args[2])
		data, err := render.EncodePNG(export.Thumbnail(st, host.ThumbSize, host.ThumbSize))
		if err != nil {
			fail(l, "thumbnail failed", err)
		}
		if err := os.WriteFile(args[3], data, 0o644); err != nil {
			fail(l, "write failed", err)
		}
		fmt.Println("Wrote", args[3])
	case "rm":
		need(args, 3, "rm requires <id>")
		if err := h.Store.Delete(ctx, args[2]); err != nil {
			fail(l, "delete failed", err)
		}
	case "bundle":
		need(args, 3, "bundle requires <out.zip>")
		n, err := bundle.Export(ctx, h.Store, args[3:], args[2])
		if err != nil {
			fail(l, "bundle failed", err)
		}
		fmt.Printf("Archived %d note(s) into %s\n", n, args[2])
	case "install":
		need(args, 3, "install requires <bundle.zip>")
		n, err := bundle.Install(ctx, h.Store, args[2])
		if err != nil {
			fail(l, "install failed", err)
		}
		fmt.Printf("Installed %d note(s)\n", n)
	case "serve":
		addr := "127.0.0.1:8080"
		if len(args) >= 3 {
			addr = args[2]
		}
		sctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		if err := backend.Serve(sctx, h.Store, backend.Config{Addr: addr, Token: token}); err != nil {
			fail(l, "serve failed", err)
		}
	case "ui":
		id := defaultBlock
		if len(args) >= 3 {
			id = args[2]
		}
		if err := ui.Run(h, id); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	}
}

func loadState(ctx context.Context, l *slog.Logger, h *host.Host, id string) editorstate.State {
	opts, err := h.Store.Options(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("No note stored under", id)
		os.Exit(1)
	}
	if err != nil {
		fail(l, "load failed", err)
	}
	return editorstate.Decode(opts, editorstate.DefaultDimensions)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
