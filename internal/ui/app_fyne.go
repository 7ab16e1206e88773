//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"handnote/internal/config"
	"handnote/internal/crash"
	"handnote/internal/editorstate"
	"handnote/internal/export"
	"handnote/internal/host"
	applog "handnote/internal/log"
	"handnote/internal/note"
	"handnote/internal/notify"
	"handnote/internal/paper"
	"handnote/internal/render"
	"handnote/internal/surface"
	"handnote/internal/window"
)

const zoomSettle = 150 * time.Millisecond

// Run opens a desktop window hosting the note stored under blockID.
func Run(h *host.Host, blockID string) error {
	if h == nil {
		return fmt.Errorf("ui: host is required")
	}
	l := applog.WithComponent("ui")
	ctx := applog.WithNote(context.Background(), blockID)
	l.InfoContext(ctx, "starting UI")

	a := &noteApp{h: h, blockID: blockID, ctx: ctx, l: l}
	defer crash.Recover(crash.Options{Dir: crashDir(), Note: blockID, Autosave: a.autosave})
	h.Events.Send("ui_started", nil)

	a.fy = app.NewWithID("handnote")
	a.win = a.fy.NewWindow("Handnote")
	prefs := a.fy.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 800)
	a.win.Resize(fyne.NewSize(float32(max(winW, 640)), float32(max(winH, 480))))

	a.status = widget.NewLabel("Ready")
	toast := notify.Func(func(_ context.Context, msg string) {
		fyne.Do(func() { a.status.SetText(msg) })
		a.fy.SendNotification(fyne.NewNotification("Handnote", msg))
	})
	w, err := h.Widget(ctx, blockID, note.WithNotifier(notify.Multi{toast, h.Notifier}))
	if err != nil {
		return err
	}
	a.note = w

	a.overlay = container.NewStack()
	a.page = container.New(&pageLayout{app: a}, canvas.NewRectangle(color.RGBA{R: 242, G: 240, B: 235, A: 255}), a.overlay)
	a.win.SetContent(container.NewBorder(nil, a.status, nil, nil, a.page))
	a.win.SetOnClosed(func() {
		a.note.Close(ctx)
		sz := a.win.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	a.render()
	a.win.ShowAndRun()
	return nil
}

func crashDir() string {
	if d, err := config.Dir(); err == nil {
		return filepath.Join(d, "crash")
	}
	return ""
}

type noteApp struct {
	h       *host.Host
	blockID string
	ctx     context.Context
	l       *slog.Logger

	fy      fyne.App
	win     fyne.Window
	page    *fyne.Container
	overlay *fyne.Container
	status  *widget.Label
	note    *note.Widget
	canvas   *NoteCanvas
	stopUpd  func()
	stopMode func()
}

func (a *noteApp) autosave() error {
	if a.note != nil {
		a.note.Close(a.ctx)
	}
	return nil
}

func (a *noteApp) viewport() window.Viewport {
	sz := a.page.Size()
	return window.Viewport{Width: float64(sz.Width), Height: float64(sz.Height)}
}

// render rebuilds the overlay for the widget's current mode.
func (a *noteApp) render() {
	var content fyne.CanvasObject
	switch a.note.Mode() {
	case note.Closed:
		content = a.closedView()
	case note.TypeSelection:
		content = a.typeView()
	default:
		content = a.editorView()
	}
	a.overlay.Objects = []fyne.CanvasObject{content}
	a.overlay.Refresh()
	a.page.Refresh()
}

func (a *noteApp) closedView() fyne.CanvasObject {
	th := a.note.Thumbnail()
	st := editorstate.Decode(a.note.Options(), editorstate.DefaultDimensions)
	img := canvas.NewImageFromImage(export.Thumbnail(st, th.Width, th.Height))
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(float32(th.Width), float32(th.Height)))
	open := widget.NewButton("Open note", func() {
		a.note.Open(a.ctx, a.viewport())
		a.afterOpen()
	})
	return container.NewBorder(nil, open, nil, nil, img)
}

func (a *noteApp) typeView() fyne.CanvasObject {
	var buttons []fyne.CanvasObject
	for _, info := range paper.All() {
		info := info
		label := info.Label
		if a.note.Selected() == info.Type {
			label = "✓ " + label
		}
		buttons = append(buttons, widget.NewButton(label, func() {
			a.note.SelectType(info.Type)
			a.render()
		}))
	}
	proceed := widget.NewButton("Proceed", func() {
		a.note.Proceed(a.ctx)
		a.afterOpen()
	})
	proceed.Importance = widget.HighImportance
	cancel := widget.NewButton("Cancel", func() {
		a.note.Cancel()
		a.render()
	})
	return container.NewVBox(
		widget.NewLabel("Choose a paper type"),
		container.NewHBox(buttons...),
		container.NewHBox(cancel, proceed),
	)
}

// afterOpen hooks the editor once the widget has opened.
func (a *noteApp) afterOpen() {
	if a.note.Mode() != note.Open {
		a.render()
		return
	}
	surf, ok := a.note.Surface().(*surface.Canvas)
	if !ok {
		dialog.ShowError(fmt.Errorf("unsupported drawing surface %T", a.note.Surface()), a.win)
		return
	}
	c := NewNoteCanvas(surf)
	a.canvas = c
	a.stopUpd = a.note.Store().OnUpdate(func(editorstate.State) {
		fyne.Do(c.Refresh)
	})
	a.stopMode = a.note.Controller().OnModeChange(func(_, _ window.Mode) {
		fyne.Do(a.render)
	})
	a.render()
}

func (a *noteApp) closeEditor() {
	for _, stop := range []func(){a.stopUpd, a.stopMode} {
		if stop != nil {
			stop()
		}
	}
	a.stopUpd, a.stopMode = nil, nil
	a.note.Close(a.ctx)
	a.canvas = nil
	a.status.SetText("Saved")
	a.render()
}

func (a *noteApp) editorView() fyne.CanvasObject {
	ctrl := a.note.Controller()
	if ctrl.State().Mode == window.Minimized {
		return widget.NewButton("✎", ctrl.Restore)
	}
	origin := func() fyne.Position { return a.fy.Driver().AbsolutePositionForObject(a.page) }
	bar := newTitleBar("Handwritten note", ctrl, a.note.Hub(), origin, a.page.Refresh)
	tools := container.NewHBox(
		widget.NewButton("Undo", func() { a.canvas.surf.Undo(); a.canvas.Refresh() }),
		widget.NewButton("Redo", func() { a.canvas.surf.Redo(); a.canvas.Refresh() }),
		widget.NewButton("Clear", func() { a.canvas.surf.Clear(); a.canvas.Refresh() }),
	)
	for _, name := range render.StampNames() {
		name := name
		tools.Add(widget.NewButton(name, func() {
			if _, err := a.note.InsertStamp(a.ctx, name); err != nil {
				dialog.ShowError(err, a.win)
			}
			a.canvas.Refresh()
		}))
	}
	tools.Add(widget.NewButton("⛶", ctrl.ToggleFullScreen))
	tools.Add(widget.NewButton("–", ctrl.Minimize))
	tools.Add(widget.NewButton("Save & close", a.closeEditor))
	return container.NewBorder(container.NewVBox(bar, tools), nil, nil, nil, a.canvas)
}

// pageLayout plays the host page: it reports viewport changes to the window
// controller and places the note where the controller says.
type pageLayout struct{ app *noteApp }

func (p *pageLayout) Layout(objs []fyne.CanvasObject, size fyne.Size) {
	if len(objs) > 0 {
		objs[0].Move(fyne.NewPos(0, 0))
		objs[0].Resize(size)
	}
	if len(objs) < 2 {
		return
	}
	overlay := objs[1]
	vp := window.Viewport{Width: float64(size.Width), Height: float64(size.Height)}
	ctrl := p.app.note.Controller()
	if ctrl == nil || p.app.note.Mode() != note.Open {
		ms := overlay.MinSize()
		overlay.Move(fyne.NewPos(24, 24))
		overlay.Resize(ms)
		return
	}
	ctrl.SetViewport(vp)
	b := ctrl.Layout()
	overlay.Move(fyne.NewPos(float32(b.Left), float32(b.Top)))
	overlay.Resize(fyne.NewSize(float32(b.Width), float32(b.Height)))
	if c := p.app.canvas; c != nil {
		sz := c.Size()
		p.app.note.Resize(float64(sz.Width), float64(sz.Height))
		// the zoom lands after the widget's debounce
		time.AfterFunc(zoomSettle, func() { fyne.Do(c.Refresh) })
	}
}

func (p *pageLayout) MinSize([]fyne.CanvasObject) fyne.Size { return fyne.NewSize(320, 320) }
