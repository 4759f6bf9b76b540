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

package region

import (
	"context"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
)

// Service produces and persists region proofs; original pixels are never stored
type Service struct {
	registry *commitment.Registry
	store    providers.Store
}

// NewService returns a region proof service
func NewService(s providers.Store, registry *commitment.Registry) *Service {
	return &Service{
		registry: registry,
		store:    s,
	}
}

func (s *Service) tileSize(tileSize int) int {
	if tileSize > 0 {
		return tileSize
	}
	return s.registry.TileSize()
}

// Reveal discloses the region and persists the proof
func (s *Service) Reveal(ctx context.Context, original *commitment.Image, r Region, tileSize int) (*RevealResult, error) {
	result, err := Reveal(original, r, s.tileSize(tileSize), commitment.WithAlgorithm(s.registry.Algorithm()))
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, result.Proof); err != nil {
		return nil, err
	}
	return result, nil
}

// Redact redacts the regions and persists the proof
func (s *Service) Redact(ctx context.Context, original *commitment.Image, regions []Region, mode Mode, tileSize int) (*RedactResult, error) {
	result, err := Redact(original, regions, mode, s.tileSize(tileSize), commitment.WithAlgorithm(s.registry.Algorithm()))
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, result.Proof); err != nil {
		return nil, err
	}
	return result, nil
}

// Get resolves a persisted region proof
func (s *Service) Get(ctx context.Context, id string) (*Proof, error) {
	var p Proof
	if err := store.GetJSON(ctx, s.store, store.NamespaceRegionProofs, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify checks the region proof
func (s *Service) Verify(ctx context.Context, p *Proof, supplied *Supplied) *Result {
	return Verify(p, supplied)
}

func (s *Service) persist(ctx context.Context, p *Proof) error {
	if _, err := s.registry.Register(ctx, p.OriginalCommitment); err != nil {
		return err
	}
	if _, err := s.registry.Register(ctx, p.ResultCommitment); err != nil {
		return err
	}

	if err := store.InsertJSON(ctx, s.store, store.NamespaceRegionProofs, p.ID, p); err != nil {
		return err
	}

	metrics.RegionProofs.WithLabelValues(string(p.Kind)).Inc()
	common.Log.Debugf("persisted %s region proof %s over %d region(s); %d of %d tiles affected",
		p.Kind, p.ID, len(p.Regions), len(p.AffectedTiles), p.OriginalCommitment.TileCount)
	return nil
}
