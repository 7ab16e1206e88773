/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package notify delivers transient, non-blocking user warnings.
package notify

import (
	"context"
	"log/slog"
	"sync"

	hlog "handnote/internal/log"
)

// Notifier shows a short warning to the user. Implementations never block
// the caller for long and never fail loudly.
type Notifier interface {
	Warn(ctx context.Context, msg string)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg string)

func (f Func) Warn(ctx context.Context, msg string) { f(ctx, msg) }

// Log writes warnings to the application logger.
type Log struct{}

func (Log) Warn(ctx context.Context, msg string) {
	hlog.WithComponent("notify").WarnContext(ctx, "user warning", slog.String("msg", msg))
}

// Recorder keeps warnings in memory; the CLI and tests read them back.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *Recorder) Warn(_ context.Context, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

// Messages returns the recorded warnings in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// Multi fans a warning out to several notifiers.
type Multi []Notifier

func (m Multi) Warn(ctx context.Context, msg string) {
	for _, n := range m {
		if n != nil {
			n.Warn(ctx, msg)
		}
	}
}

// Desktop posts warnings as desktop notifications and falls back to another
// notifier when the desktop bus is unavailable.
type Desktop struct {
	App      string
	Title    string
	Fallback Notifier

	send func(app, title, body string) error
}

// NewDesktop returns a Desktop notifier using the platform backend.
func NewDesktop(app string, fallback Notifier) *Desktop {
	if fallback == nil {
		fallback = Log{}
	}
	return &Desktop{App: app, Title: app, Fallback: fallback, send: sendDesktop}
}

func (d *Desktop) Warn(ctx context.Context, msg string) {
	if err := d.send(d.App, d.Title, msg); err != nil {
		hlog.WithComponent("notify").DebugContext(ctx, "desktop notification failed", slog.Any("err", err))
		d.Fallback.Warn(ctx, msg)
	}
}
