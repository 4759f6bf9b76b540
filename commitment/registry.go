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

package commitment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
)

// Registry computes commitments and persists them, never the content, by id
type Registry struct {
	algorithm string
	index     *Index
	store     providers.Store
	tileSize  int
}

// NewRegistry initializes the registry and rebuilds the index from persisted commitments
func NewRegistry(ctx context.Context, s providers.Store, cfg *common.Config) (*Registry, error) {
	r := &Registry{
		algorithm: AlgorithmSHA256,
		index:     NewIndex(),
		store:     s,
		tileSize:  common.DefaultConfig().TileSize,
	}

	if cfg != nil {
		if cfg.HashAlgorithm != "" {
			r.algorithm = normalizeAlgorithm(cfg.HashAlgorithm)
		}
		if cfg.TileSize > 0 {
			r.tileSize = cfg.TileSize
		}
	}

	if _, err := HashFuncFactory(r.algorithm); err != nil {
		return nil, err
	}

	records, err := s.List(ctx, store.NamespaceCommitments)
	if err != nil {
		return nil, fmt.Errorf("failed to load commitments; %s", err.Error())
	}

	for _, raw := range records {
		var c Commitment
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal persisted commitment; %s", err.Error())
		}
		if _, err := r.index.Add(&c); err != nil {
			return nil, err
		}
	}

	common.Log.Debugf("initialized commitment registry with %d commitment(s); index root: %s", len(records), r.index.Root())
	return r, nil
}

// TileSize returns the default tile size used when callers pass zero
func (r *Registry) TileSize() int {
	return r.tileSize
}

// Algorithm returns the tile hash algorithm
func (r *Registry) Algorithm() string {
	return r.algorithm
}

// Commit computes and registers the commitment over content
func (r *Registry) Commit(ctx context.Context, content []byte, tileSize int) (*Commitment, error) {
	c, err := Commit(content, r.resolveTileSize(tileSize), WithAlgorithm(r.algorithm))
	if err != nil {
		return nil, err
	}
	return r.register(ctx, c)
}

// CommitImage computes and registers the commitment over the image pixels
func (r *Registry) CommitImage(ctx context.Context, img *Image, tileSize int) (*Commitment, error) {
	c, err := CommitImage(img, r.resolveTileSize(tileSize), WithAlgorithm(r.algorithm))
	if err != nil {
		return nil, err
	}
	return r.register(ctx, c)
}

// Register persists an externally computed commitment after validating it
func (r *Registry) Register(ctx context.Context, c *Commitment) (*Commitment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = c.digest()
	}
	return r.register(ctx, c)
}

// Get resolves a registered commitment by id
func (r *Registry) Get(ctx context.Context, id string) (*Commitment, error) {
	var c Commitment
	if err := store.GetJSON(ctx, r.store, store.NamespaceCommitments, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Prove returns a membership proof for the registered commitment
func (r *Registry) Prove(ctx context.Context, id string) (*MembershipProof, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.index.Prove(c)
}

// IndexRoot returns the current root of the commitment index
func (r *Registry) IndexRoot() string {
	return r.index.Root()
}

func (r *Registry) register(ctx context.Context, c *Commitment) (*Commitment, error) {
	err := store.InsertJSON(ctx, r.store, store.NamespaceCommitments, c.ID, c)
	if err != nil && !errors.Is(err, common.ErrConflict) {
		return nil, fmt.Errorf("failed to persist commitment %s; %s", c.ID, err.Error())
	}

	if err == nil {
		if _, err := r.index.Add(c); err != nil {
			return nil, err
		}
		metrics.CommitmentsComputed.WithLabelValues(c.Algorithm).Inc()
		common.Log.Debugf("registered commitment %s; root: %s; tiles: %d", c.ID, c.RootHash, c.TileCount)
	}

	return c, nil
}

func (r *Registry) resolveTileSize(tileSize int) int {
	if tileSize > 0 {
		return tileSize
	}
	return r.tileSize
}
