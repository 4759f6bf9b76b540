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

package proof

import (
	"context"
	"fmt"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
)

// Service generates, persists and verifies transformation proofs
type Service struct {
	Generator *Generator
	Verifier  *Verifier

	registry *commitment.Registry
	store    providers.Store
}

// NewService returns a proof service; commitments of generated proofs are
// registered with the given registry
func NewService(s providers.Store, registry *commitment.Registry, generator *Generator, verifier *Verifier) *Service {
	return &Service{
		Generator: generator,
		Verifier:  verifier,
		registry:  registry,
		store:     s,
	}
}

// Generate produces the proof and persists it together with both commitments
func (s *Service) Generate(ctx context.Context, original, transformed *commitment.Image, t *Transformation) (*Proof, error) {
	p, err := s.Generator.Generate(ctx, original, transformed, t)
	if err != nil {
		return nil, err
	}

	if s.registry != nil {
		if _, err := s.registry.Register(ctx, p.InputCommitment); err != nil {
			return nil, err
		}
		if _, err := s.registry.Register(ctx, p.OutputCommitment); err != nil {
			return nil, err
		}
	}

	if err := store.InsertJSON(ctx, s.store, store.NamespaceProofs, p.ID, p); err != nil {
		return nil, fmt.Errorf("failed to persist proof %s; %s", p.ID, err.Error())
	}

	return p, nil
}

// Get resolves a persisted proof
func (s *Service) Get(ctx context.Context, id string) (*Proof, error) {
	var p Proof
	if err := store.GetJSON(ctx, s.store, store.NamespaceProofs, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify checks the proof, optionally against the transformed image
func (s *Service) Verify(ctx context.Context, p *Proof, transformed *commitment.Image) *Result {
	result := s.Verifier.Verify(ctx, p, transformed)
	if !result.Valid && p != nil {
		common.Log.Debugf("proof %s rejected; reason: %s", p.ID, result.Reason)
	}
	return result
}
