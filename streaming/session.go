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
	"sync"
	"time"

	"github.com/provideplatform/provenance/temporal"
)

// Status is the streaming session state
type Status string

const (
	// StatusActive sessions accept frames
	StatusActive Status = "active"

	// StatusCompleted sessions are sealed; the state is terminal
	StatusCompleted Status = "completed"
)

// Config is the per-session configuration
type Config struct {
	BufferSize       int  `json:"buffer_size"`
	StrictContinuity bool `json:"strict_continuity"`
}

// Stats counts the frames a session has seen
type Stats struct {
	Received int `json:"received"`
	Attested int `json:"attested"`
	Dropped  int `json:"dropped"`
}

// Session is a live capture session; recent is a lossy inspection buffer,
// history is the authoritative attested sequence
type Session struct {
	ID          string
	Status      Status
	Config      Config
	Stats       Stats
	StartedAt   time.Time
	EndedAt     *time.Time
	Attestation *temporal.VideoAttestation

	mutex    sync.Mutex
	history  []*temporal.FrameProof
	previous *temporal.FrameProof
	recent   *ring
}

// Snapshot is a point-in-time copy of a session
type Snapshot struct {
	ID            string     `json:"id"`
	Status        Status     `json:"status"`
	Config        Config     `json:"config"`
	Stats         Stats      `json:"stats"`
	PreviousHash  string     `json:"previous_hash,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	AttestationID string     `json:"attestation_id,omitempty"`
}

// snapshot must be called with the session mutex held
func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		ID:        s.ID,
		Status:    s.Status,
		Config:    s.Config,
		Stats:     s.Stats,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
	if s.previous != nil {
		snap.PreviousHash = s.previous.Hash
	}
	if s.Attestation != nil {
		snap.AttestationID = s.Attestation.ID
	}
	return snap
}
