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
	"context"
	"fmt"
	"sync"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/temporal"
)

// NatsAttestationSealedSubject is published when a session is ended
const NatsAttestationSealedSubject = "provenance.attestation.sealed"

// Manager tracks live sessions; frames for one session are processed in
// arrival order while sessions proceed independently. Ended sessions are
// retained up to a bound, oldest evicted first; their attestations remain
// resolvable through the temporal engine.
type Manager struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
	ended    []string
	retained int

	defaults Config
	engine   *temporal.Engine
	notifier common.Notifier
}

// NewManager returns a session manager sealing attestations with the engine
func NewManager(engine *temporal.Engine, notifier common.Notifier, cfg *common.Config) *Manager {
	if cfg == nil {
		cfg = common.DefaultConfig()
	}
	if notifier == nil {
		notifier = &common.NoopNotifier{}
	}

	return &Manager{
		sessions: map[string]*Session{},
		ended:    make([]string, 0),
		retained: cfg.StreamRetainedSessions,
		defaults: Config{
			BufferSize:       cfg.StreamBufferSize,
			StrictContinuity: cfg.StreamStrictContinuity,
		},
		engine:   engine,
		notifier: notifier,
	}
}

// Start opens a session; a nil config selects the configured defaults
func (m *Manager) Start(cfg *Config) (string, error) {
	sessionCfg := m.defaults
	if cfg != nil {
		sessionCfg = *cfg
		if sessionCfg.BufferSize <= 0 {
			sessionCfg.BufferSize = m.defaults.BufferSize
		}
	}

	id, err := common.NewID()
	if err != nil {
		return "", err
	}

	s := &Session{
		ID:        id,
		Status:    StatusActive,
		Config:    sessionCfg,
		StartedAt: m.engine.Now(),
		history:   make([]*temporal.FrameProof, 0),
		recent:    newRing(sessionCfg.BufferSize),
	}

	m.mutex.Lock()
	m.sessions[id] = s
	m.mutex.Unlock()

	metrics.ActiveSessions.Inc()
	common.Log.Debugf("started streaming session %s; buffer size: %d", id, sessionCfg.BufferSize)
	return id, nil
}

func (m *Manager) session(id string) (*Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("streaming session %s not found; %w", id, common.ErrSessionNotFound)
	}
	return s, nil
}

// AddFrame hashes the frame and links it to the session's previous frame
func (m *Manager) AddFrame(ctx context.Context, id string, frame *temporal.Frame) (*temporal.FrameProof, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.Status != StatusActive {
		return nil, fmt.Errorf("streaming session %s is %s; %w", id, s.Status, common.ErrSessionClosed)
	}
	if frame == nil {
		return nil, fmt.Errorf("nil frame; %w", common.ErrMalformedContent)
	}

	s.Stats.Received++

	hash, err := m.engine.HashFrame(frame.Data)
	if err != nil {
		return nil, err
	}

	if frame.PreviousHash != "" && s.Config.StrictContinuity {
		expected := ""
		if s.previous != nil {
			expected = s.previous.Hash
		}
		if frame.PreviousHash != expected {
			return nil, fmt.Errorf("frame claims previous hash %s; session %s tip is %q; %w", frame.PreviousHash, id, expected, common.ErrChainContinuity)
		}
	}

	timestampMs := frame.TimestampMs
	if timestampMs == 0 {
		timestampMs = common.Milliseconds(m.engine.Now())
	}

	proof := temporal.Link(s.previous, len(s.history), timestampMs, hash, frame.PreviousHash)
	s.history = append(s.history, proof)
	s.previous = proof
	s.Stats.Attested++

	if s.recent.push(proof) {
		s.Stats.Dropped++
		metrics.FramesDropped.Inc()
	}

	return proof, nil
}

// End seals the session; no frame is accepted afterwards
func (m *Manager) End(ctx context.Context, id string) (*temporal.VideoAttestation, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.Status != StatusActive {
		return nil, fmt.Errorf("streaming session %s already ended; %w", id, common.ErrSessionClosed)
	}

	endedAt := m.engine.Now()
	history := make([]*temporal.FrameProof, len(s.history))
	copy(history, s.history)

	a, err := m.engine.Seal(temporal.ModeStreaming, history, endedAt.Sub(s.StartedAt).Milliseconds())
	if err != nil {
		return nil, err
	}
	if err := m.engine.Persist(ctx, a); err != nil {
		return nil, err
	}

	s.Status = StatusCompleted
	s.EndedAt = &endedAt
	s.Attestation = a
	s.history = nil
	metrics.ActiveSessions.Dec()

	m.retire(id)

	if err := m.notifier.Notify(NatsAttestationSealedSubject, a); err != nil {
		common.Log.Warningf("failed to dispatch sealed attestation %s for session %s; %s", a.ID, id, err.Error())
	}

	common.Log.Debugf("ended streaming session %s; %d frame(s) attested, %d dropped from buffer; chain integrity: %v",
		id, s.Stats.Attested, s.Stats.Dropped, a.ChainIntegrity)
	return a, nil
}

// retire queues the ended session for eviction once more than the retained
// number of sessions have ended
func (m *Manager) retire(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.ended = append(m.ended, id)
	for len(m.ended) > m.retained {
		delete(m.sessions, m.ended[0])
		m.ended[0] = ""
		m.ended = m.ended[1:]
	}
}

// Len returns the number of sessions held in memory
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Get returns a snapshot of the session
func (m *Manager) Get(id string) (*Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshot(), nil
}

// Recent returns the frames retained in the session buffer, oldest first
func (m *Manager) Recent(id string) ([]*temporal.FrameProof, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.recent.list(), nil
}

// Attestation returns the sealed attestation of an ended session
func (m *Manager) Attestation(id string) (*temporal.VideoAttestation, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.Attestation == nil {
		return nil, fmt.Errorf("streaming session %s has not ended; %w", id, common.ErrConflict)
	}
	return s.Attestation, nil
}
