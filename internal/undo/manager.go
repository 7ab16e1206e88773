/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo histories of encoded surface states.
package undo

import (
	"sync"
	"time"
)

// Entry is an encoded surface state. Its size is estimated as len(Blob).
type Entry struct {
	Blob []byte
	TS   time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap across all histories; oldest undo entries are pruned when exceeded.
	MaxBytes int
	// MaxDepth limits the undo entries kept per history (0 means unlimited).
	MaxDepth int
	// MinInterval folds edits recorded within the interval into the previous entry,
	// so one continuous stroke undoes as a unit.
	MinInterval time.Duration
}

// Manager holds one undo and one redo stack per key (typically a surface id).
// It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       map[string][]Entry
	redo       map[string][]Entry
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 * 1024 * 1024
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Entry), redo: make(map[string][]Entry)}
}

// Record stores the state a change is about to replace. Any recorded change clears redo.
// Within MinInterval of the previous record the earlier state is kept and only its time is refreshed.
func (m *Manager) Record(key string, before []byte, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(key)
	stack := m.undo[key]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 && ts.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		stack[n-1].TS = ts
		return
	}
	m.undo[key] = append(stack, Entry{Blob: before, TS: ts})
	m.totalBytes += len(before)
	m.enforceCapsLocked(key)
}

// Undo returns the state to restore and moves current onto the redo stack.
func (m *Manager) Undo(key string, current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[key]
	if len(stack) == 0 {
		return nil, false
	}
	e := stack[len(stack)-1]
	m.undo[key] = stack[:len(stack)-1]
	m.redo[key] = append(m.redo[key], Entry{Blob: current, TS: time.Now()})
	m.totalBytes += len(current) - len(e.Blob)
	return e.Blob, true
}

// Redo returns the state undone last and moves current back onto the undo stack.
func (m *Manager) Redo(key string, current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[key]
	if len(r) == 0 {
		return nil, false
	}
	e := r[len(r)-1]
	m.redo[key] = r[:len(r)-1]
	// the restored entry must not coalesce with the next edit
	m.undo[key] = append(m.undo[key], Entry{Blob: current})
	m.totalBytes += len(current) - len(e.Blob)
	m.enforceCapsLocked(key)
	return e.Blob, true
}

// CanUndo reports whether key has undo entries.
func (m *Manager) CanUndo(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[key]) > 0
}

// CanRedo reports whether key has redo entries.
func (m *Manager) CanRedo(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[key]) > 0
}

// Clear drops both stacks of key.
func (m *Manager) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.undo[key] {
		m.totalBytes -= len(e.Blob)
	}
	m.dropRedoLocked(key)
	delete(m.undo, key)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, histories, undoEntries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			histories++
		}
		undoEntries += len(v)
	}
	return m.totalBytes, histories, undoEntries
}

func (m *Manager) dropRedoLocked(key string) {
	for _, e := range m.redo[key] {
		m.totalBytes -= len(e.Blob)
	}
	delete(m.redo, key)
}

func (m *Manager) enforceCapsLocked(key string) {
	if m.cfg.MaxDepth > 0 {
		stack := m.undo[key]
		if extra := len(stack) - m.cfg.MaxDepth; extra > 0 {
			for _, e := range stack[:extra] {
				m.totalBytes -= len(e.Blob)
			}
			m.undo[key] = append([]Entry(nil), stack[extra:]...)
		}
	}
	// prune the oldest entry across all histories until under the cap
	for m.totalBytes > m.cfg.MaxBytes {
		oldestKey := ""
		found := false
		var oldestTS time.Time
		for k, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestKey, oldestTS, found = k, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestKey]
		m.totalBytes -= len(stack[0].Blob)
		if len(stack) == 1 {
			delete(m.undo, oldestKey)
		} else {
			m.undo[oldestKey] = stack[1:]
		}
	}
}
