/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package window

import "sync"

// Hub fans out global pointer events (moves and releases anywhere on screen)
// to the listeners of an active drag. The UI runtime feeds Move and Up.
type Hub struct {
	mu   sync.Mutex
	subs map[int]subscription
	next int
}

type subscription struct {
	move func(Point)
	up   func()
}

func NewHub() *Hub { return &Hub{subs: make(map[int]subscription)} }

// Subscribe registers move and up handlers and returns a func removing them.
func (h *Hub) Subscribe(move func(Point), up func()) (cancel func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscription{move: move, up: up}
	h.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Move delivers a pointer position to every listener in subscription order.
func (h *Hub) Move(p Point) {
	for _, s := range h.snapshot() {
		if s.move != nil {
			s.move(p)
		}
	}
}

// Up delivers a pointer release to every listener.
func (h *Hub) Up() {
	for _, s := range h.snapshot() {
		if s.up != nil {
			s.up()
		}
	}
}

// Listeners returns the number of active subscriptions.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) snapshot() []subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]subscription, 0, len(h.subs))
	for i := 0; i < h.next; i++ {
		if s, ok := h.subs[i]; ok {
			out = append(out, s)
		}
	}
	return out
}
