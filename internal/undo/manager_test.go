/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxDepth: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Record("s", []byte("a"), t0)
	m.Record("s", []byte("b"), t0.Add(20*time.Millisecond))
	if _, histories, total := m.Stats(); histories != 1 || total != 2 {
		t.Fatalf("expected 1 history and 2 entries, got histories=%d total=%d", histories, total)
	}
	got, ok := m.Undo("s", []byte("c"))
	if !ok || string(got) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, got)
	}
	if !m.CanRedo("s") {
		t.Fatalf("redo should be available")
	}
	got, ok = m.Redo("s", []byte("b"))
	if !ok || string(got) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, got)
	}
	if _, ok := m.Redo("s", nil); ok {
		t.Fatalf("redo stack should be empty")
	}
}

func TestCoalesceKeepsEarliestState(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Record("s", []byte("1"), t0)
	m.Record("s", []byte("2"), t0.Add(10*time.Millisecond))
	m.Record("s", []byte("3"), t0.Add(40*time.Millisecond))
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 entry, got %d", total)
	}
	got, ok := m.Undo("s", []byte("4"))
	if !ok || string(got) != "1" {
		t.Fatalf("expected earliest state '1', got ok=%v blob=%q", ok, got)
	}
}

func TestRecordClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Record("s", []byte("a"), time.Now())
	m.Undo("s", []byte("b"))
	m.Record("s", []byte("a"), time.Now())
	if m.CanRedo("s") {
		t.Fatalf("new change must clear redo")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxDepth: 2})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Record("a", []byte("xxxxx"), t0.Add(time.Duration(i)*time.Millisecond))
	}
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected MaxDepth cap to limit to 2, got %d", total)
	}
	m.Record("b", make([]byte, 20), t0.Add(20*time.Millisecond))
	if bytes, _, _ := m.Stats(); bytes > 20 {
		t.Fatalf("expected MaxBytes cap to hold, got %d bytes", bytes)
	}
	if m.CanUndo("a") {
		t.Fatalf("oldest history should have been pruned first")
	}
}

func TestClear(t *testing.T) {
	m := NewManager(Config{})
	m.Record("s", []byte("abc"), time.Now())
	m.Undo("s", []byte("de"))
	m.Clear("s")
	if bytes, histories, total := m.Stats(); bytes != 0 || histories != 0 || total != 0 {
		t.Fatalf("clear left bytes=%d histories=%d total=%d", bytes, histories, total)
	}
	if m.CanUndo("s") || m.CanRedo("s") {
		t.Fatalf("stacks not cleared")
	}
}
