/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the handnote binary into a crash report and
// a last-chance save of the open note.
package crash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "handnote/internal/log"
	"handnote/internal/telemetry"
	"handnote/internal/version"
)

const uploadTimeout = 2 * time.Second

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Options tells Recover where to write and what to save.
type Options struct {
	Dir      string       // report directory; temp dir when empty
	Note     string       // block id of the open note, if any
	Autosave func() error // persists the open note; may be nil
}

// Recover captures a panic, logs it with a stacktrace, writes a crash report
// and runs the autosave callback.
//
// Usage: defer crash.Recover(opts)
func Recover(opts Options) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, report, err := writeReport(opts, r, stack)
		if err != nil {
			l.Error("crash report failed", slog.Any("err", err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		if err := telemetry.UploadCrash(ctx, report); err != nil && !errors.Is(err, telemetry.ErrDisabled) {
			l.Warn("crash upload failed", slog.Any("err", err))
		}
		cancel()
		if opts.Autosave != nil {
			if err := autosave(opts.Autosave); err != nil {
				l.Error("autosave after crash failed", slog.Any("err", err))
			} else {
				l.Info("autosave after crash written", slog.String("note", opts.Note))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

// autosave runs fn and turns a second panic into an error.
func autosave(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autosave panicked: %v", r)
		}
	}()
	return fn()
}

func writeReport(opts Options, panicVal any, stack []byte) (string, []byte, error) {
	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create crash dir: %w", err)
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Handnote Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if opts.Note != "" {
		_, _ = fmt.Fprintf(&buf, "Note: %s\n", opts.Note)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, buf.Bytes(), err
	}
	return path, buf.Bytes(), nil
}
