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
	"encoding/hex"
	"fmt"
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	zkproviders "github.com/provideplatform/provenance/zkp/providers"
)

// Generator produces transformation proofs from an original and a transformed image
type Generator struct {
	algorithm string
	tileSize  int
	zk        zkproviders.ZKSnarkProvider
	now       func() time.Time
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithZKSnarkProvider enables zk_snark payloads for transformations with a circuit
func WithZKSnarkProvider(provider zkproviders.ZKSnarkProvider) GeneratorOption {
	return func(g *Generator) {
		g.zk = provider
	}
}

// WithHashAlgorithm selects the tile hash algorithm for new commitments
func WithHashAlgorithm(algorithm string) GeneratorOption {
	return func(g *Generator) {
		g.algorithm = algorithm
	}
}

// WithClock overrides the generator clock
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator returns a generator committing with the given tile size
func NewGenerator(tileSize int, opts ...GeneratorOption) *Generator {
	g := &Generator{
		algorithm: commitment.AlgorithmSHA256,
		tileSize:  tileSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate commits both images and selects the strongest payload available
// for the transformation; the original bytes are not retained
func (g *Generator) Generate(ctx context.Context, original, transformed *commitment.Image, t *Transformation) (*Proof, error) {
	if t == nil {
		return nil, fmt.Errorf("transformation required; %w", common.ErrInvalidTransformationParams)
	}
	t = t.Clone()
	t.Normalize()

	if err := original.Validate(); err != nil {
		return nil, err
	}
	if err := transformed.Validate(); err != nil {
		return nil, err
	}

	supported := IsSupported(t.Type)
	if supported {
		expected, err := t.OutputShape(ShapeOf(original))
		if err != nil {
			return nil, err
		}
		if expected != ShapeOf(transformed) {
			return nil, invalidParams(fmt.Sprintf("transformed image %dx%dx%d does not match expected %dx%dx%d",
				transformed.Width, transformed.Height, transformed.Channels,
				expected.Width, expected.Height, expected.Channels))
		}
	}

	input, err := commitment.CommitImage(original, g.tileSize, commitment.WithAlgorithm(g.algorithm))
	if err != nil {
		return nil, err
	}
	output, err := commitment.CommitImage(transformed, g.tileSize, commitment.WithAlgorithm(g.algorithm))
	if err != nil {
		return nil, err
	}

	binding, err := Binding(input, output, t)
	if err != nil {
		return nil, err
	}

	id, err := common.NewID()
	if err != nil {
		return nil, err
	}

	p := &Proof{
		ID:                 id,
		TransformationType: t.Type,
		Params:             t.Params,
		InputCommitment:    input,
		OutputCommitment:   output,
		Payload:            &Payload{},
		CreatedAt:          g.now().UTC(),
	}

	switch {
	case !supported:
		common.Log.Warningf("no structural proof for %s transformation; issuing advisory hash commitment", t.Type)
		p.PayloadKind = PayloadKindHashCommitment
		p.Payload.HashCommitment = &HashCommitmentPayload{Binding: binding}
		p.Advisory = true

	case g.zkCapable(t.Type):
		circuit, _ := zkCircuit(t.Type)
		zk, err := g.zkPayload(ctx, circuit, t, input, output, binding)
		if err != nil {
			return nil, err
		}
		p.PayloadKind = PayloadKindZKSnark
		p.Payload.ZKSnark = zk

	default:
		p.PayloadKind = PayloadKindTileInclusion
		p.Payload.TileInclusion = &TileInclusionPayload{
			Binding:         binding,
			InputShape:      ShapeOf(original),
			OutputShape:     ShapeOf(transformed),
			OutputTileCount: output.TileCount,
		}
	}

	metrics.ProofsGenerated.WithLabelValues(string(p.PayloadKind)).Inc()
	common.Log.Debugf("generated %s proof %s for %s transformation; %s -> %s", p.PayloadKind, p.ID, t.Type, input.RootHash, output.RootHash)
	return p, nil
}

func (g *Generator) zkCapable(transformationType string) bool {
	if g.zk == nil {
		return false
	}
	circuit, ok := zkCircuit(transformationType)
	return ok && g.zk.Supports(circuit)
}

func (g *Generator) zkPayload(ctx context.Context, circuit string, t *Transformation, input, output *commitment.Commitment, binding string) (*ZKSnarkPayload, error) {
	assignment, err := zkAssignment(circuit, t, input, output)
	if err != nil {
		return nil, err
	}

	raw, err := g.zk.Prove(ctx, circuit, assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to generate zk proof for %s transformation; %s", t.Type, err.Error())
	}

	payload := &ZKSnarkPayload{
		Binding:  binding,
		Provider: g.zk.Name(),
		Circuit:  circuit,
		Proof:    hex.EncodeToString(raw),
	}

	if described, ok := g.zk.(interface {
		Curve() string
		ProvingScheme() string
	}); ok {
		payload.Curve = described.Curve()
		payload.ProvingScheme = described.ProvingScheme()
	}

	return payload, nil
}
