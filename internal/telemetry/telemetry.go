/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Nothing is sent unless HWN_TELEMETRY_OPT_IN is set and an endpoint is configured.
//
// Environment variables (read by FromEnv):
//   - HWN_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable
//   - HWN_TELEMETRY_URL: endpoint receiving JSON events
//   - HWN_CRASH_UPLOAD_URL: endpoint receiving plain-text crash reports
//   - HWN_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - HWN_TELEMETRY_DEBUG: log send attempts at debug level
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "handnote/internal/log"
	"handnote/internal/version"
)

// ErrDisabled is returned by UploadCrash when crash uploads are not configured.
var ErrDisabled = errors.New("telemetry: disabled")

type Config struct {
	OptIn     bool
	EventsURL string
	CrashURL  string
	Timeout   time.Duration
	Debug     bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:     truthy(os.Getenv("HWN_TELEMETRY_OPT_IN")),
		EventsURL: strings.TrimSpace(os.Getenv("HWN_TELEMETRY_URL")),
		CrashURL:  strings.TrimSpace(os.Getenv("HWN_CRASH_UPLOAD_URL")),
		Timeout:   1500 * time.Millisecond,
		Debug:     os.Getenv("HWN_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("HWN_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Event is the JSON body posted for each usage event. Props must not carry note content.
type Event struct {
	Name    string         `json:"name"`
	Time    time.Time      `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client posts events from a bounded queue on its own goroutine; a full queue drops events.
type Client struct {
	cfg     Config
	l       *slog.Logger
	http    *http.Client
	q       chan Event
	pending atomic.Int64
	done    chan struct{}
	once    sync.Once
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:  cfg,
		l:    applog.WithComponent("telemetry"),
		http: &http.Client{Timeout: cfg.Timeout},
		q:    make(chan Event, 64),
		done: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Send queues an event.
func (c *Client) Send(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		Time:    time.Now().UTC(),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Props:   make(map[string]any, len(props)),
	}
	for k, v := range props {
		ev.Props[k] = v
	}
	c.pending.Add(1)
	select {
	case c.q <- ev:
	case <-c.done:
		c.pending.Add(-1)
	default:
		c.pending.Add(-1)
		c.debug("event dropped", slog.String("event", name))
	}
}

// Flush waits until queued events are sent or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Close flushes briefly and stops the sender.
func (c *Client) Close() {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	c.Flush(ctx)
	c.once.Do(func() { close(c.done) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.q:
			body, err := json.Marshal(ev)
			if err == nil {
				err = c.post(context.Background(), c.cfg.EventsURL, "application/json", body)
			}
			if err != nil {
				c.debug("event send failed", slog.String("event", ev.Name), slog.Any("err", err))
			} else {
				c.debug("event sent", slog.String("event", ev.Name))
			}
			c.pending.Add(-1)
		}
	}
}

// UploadCrash posts a crash report and waits for the response.
func (c *Client) UploadCrash(ctx context.Context, report []byte) error {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return ErrDisabled
	}
	return c.post(ctx, c.cfg.CrashURL, "text/plain; charset=utf-8", report)
}

func (c *Client) post(ctx context.Context, url, ctype string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", ctype)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: %s: %s", url, resp.Status)
	}
	return nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.cfg.Debug {
		c.l.Debug(msg, args...)
	}
}

var std atomic.Pointer[Client]

// Init installs the package-level client, closing the previous one.
func Init(cfg Config) *Client {
	c := New(cfg)
	if old := std.Swap(c); old != nil {
		old.Close()
	}
	return c
}

// Default returns the package-level client, creating it from the environment on first use.
func Default() *Client {
	if c := std.Load(); c != nil {
		return c
	}
	c := New(FromEnv())
	if !std.CompareAndSwap(nil, c) {
		c.Close()
	}
	return std.Load()
}

// Send queues an event on the default client.
func Send(name string, props map[string]any) { Default().Send(name, props) }

// UploadCrash posts a report with the default client.
func UploadCrash(ctx context.Context, report []byte) error {
	return Default().UploadCrash(ctx, report)
}
