/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package streaming

import (
	"github.com/provideplatform/provenance/temporal"
)

// ring is a bounded fifo of the most recently attested frames
type ring struct {
	frames []*temporal.FrameProof
	head   int
	size   int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{frames: make([]*temporal.FrameProof, capacity)}
}

// push appends the frame and reports whether the oldest frame was evicted
func (r *ring) push(f *temporal.FrameProof) bool {
	capacity := len(r.frames)
	if r.size < capacity {
		r.frames[(r.head+r.size)%capacity] = f
		r.size++
		return false
	}

	r.frames[r.head] = f
	r.head = (r.head + 1) % capacity
	return true
}

// list returns the buffered frames, oldest first
func (r *ring) list() []*temporal.FrameProof {
	out := make([]*temporal.FrameProof, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.frames[(r.head+i)%len(r.frames)])
	}
	return out
}
