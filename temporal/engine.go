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

package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
)

// Engine hashes and chains frame sequences
type Engine struct {
	algorithm string
	maxFrames int
	now       func() time.Time
	store     providers.Store
	tileSize  int
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithClock overrides the clock used for attestation timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an attestation engine; attestations are persisted to s
// when it is non-nil
func NewEngine(s providers.Store, cfg *common.Config, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = common.DefaultConfig()
	}

	e := &Engine{
		algorithm: cfg.HashAlgorithm,
		maxFrames: cfg.MaxFrames,
		now:       time.Now,
		store:     s,
		tileSize:  cfg.TileSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxFrames returns the full_frame limit
func (e *Engine) MaxFrames() int {
	return e.maxFrames
}

// Now returns the engine clock reading
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// HashFrame returns the commitment root over the frame bytes
func (e *Engine) HashFrame(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty frame; %w", common.ErrMalformedContent)
	}

	c, err := commitment.Commit(data, e.tileSize, commitment.WithAlgorithm(e.algorithm))
	if err != nil {
		return "", err
	}
	return c.RootHash, nil
}

// Attest hashes and chains the frames in the order given
func (e *Engine) Attest(ctx context.Context, mode Mode, frames []*Frame) (*VideoAttestation, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("at least one frame required; %w", common.ErrMalformedContent)
	}
	if mode == ModeFullFrame && len(frames) > e.maxFrames {
		return nil, fmt.Errorf("%d frames exceeds the full_frame limit of %d; %w", len(frames), e.maxFrames, common.ErrTooManyFrames)
	}

	proofs := make([]*FrameProof, 0, len(frames))
	var prev *FrameProof
	for i, f := range frames {
		if f == nil {
			return nil, fmt.Errorf("nil frame at position %d; %w", i, common.ErrMalformedContent)
		}
		hash, err := e.HashFrame(f.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to hash frame %d; %w", f.Index, err)
		}
		prev = Link(prev, f.Index, f.TimestampMs, hash, f.PreviousHash)
		proofs = append(proofs, prev)
	}

	a, err := e.Seal(mode, proofs, proofs[len(proofs)-1].TimestampMs-proofs[0].TimestampMs)
	if err != nil {
		return nil, err
	}

	if err := e.Persist(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Seal builds the attestation over an already linked frame history
func (e *Engine) Seal(mode Mode, frames []*FrameProof, durationMs int64) (*VideoAttestation, error) {
	id, err := common.NewID()
	if err != nil {
		return nil, err
	}

	a := &VideoAttestation{
		ID:             id,
		Mode:           mode,
		FrameCount:     len(frames),
		DurationMs:     durationMs,
		ChainIntegrity: VerifyChainIntegrity(frames),
		Frames:         frames,
		CreatedAt:      e.Now(),
	}
	if len(frames) > 0 {
		a.StartHash = frames[0].Hash
		a.EndHash = frames[len(frames)-1].Hash
	}

	metrics.FramesAttested.WithLabelValues(string(mode)).Add(float64(len(frames)))
	if !a.ChainIntegrity {
		common.Log.Warningf("video attestation %s sealed with broken chain integrity", a.ID)
	}
	return a, nil
}

// Persist stores the attestation when the engine has a store
func (e *Engine) Persist(ctx context.Context, a *VideoAttestation) error {
	if e.store == nil {
		return nil
	}
	if err := store.InsertJSON(ctx, e.store, store.NamespaceAttestations, a.ID, a); err != nil {
		return fmt.Errorf("failed to persist video attestation %s; %w", a.ID, err)
	}
	common.Log.Debugf("persisted %s video attestation %s over %d frame(s)", a.Mode, a.ID, a.FrameCount)
	return nil
}

// Get resolves a persisted attestation
func (e *Engine) Get(ctx context.Context, id string) (*VideoAttestation, error) {
	if e.store == nil {
		return nil, fmt.Errorf("video attestation %s not found; %w", id, common.ErrNotFound)
	}

	var a VideoAttestation
	if err := store.GetJSON(ctx, e.store, store.NamespaceAttestations, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
