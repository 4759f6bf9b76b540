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
	"strconv"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	zkproviders "github.com/provideplatform/provenance/zkp/providers"
)

// Verifier checks transformation proofs without access to the original bytes
type Verifier struct {
	zk map[string]zkproviders.ZKSnarkProvider
}

// NewVerifier returns a verifier able to check zk_snark payloads from the given providers
func NewVerifier(providers ...zkproviders.ZKSnarkProvider) *Verifier {
	v := &Verifier{
		zk: map[string]zkproviders.ZKSnarkProvider{},
	}
	for _, p := range providers {
		if p != nil {
			v.zk[p.Name()] = p
		}
	}
	return v
}

// Verify checks the proof; when transformed is non-nil it must be the image
// the output commitment was computed over
func (v *Verifier) Verify(ctx context.Context, p *Proof, transformed *commitment.Image) *Result {
	result := v.verify(ctx, p, transformed)
	if p != nil {
		metrics.ProofVerifications.WithLabelValues(string(p.PayloadKind), strconv.FormatBool(result.Valid)).Inc()
	}
	return result
}

func (v *Verifier) verify(ctx context.Context, p *Proof, transformed *commitment.Image) *Result {
	if p == nil {
		return invalid(nil, fmt.Errorf("nil proof; %w", common.ErrMalformedContent))
	}

	result := &Result{
		PayloadKind: p.PayloadKind,
		Advisory:    p.PayloadKind == PayloadKindHashCommitment,
	}

	if err := v.wellFormed(p); err != nil {
		return invalid(result, err)
	}

	t := p.Transformation()
	supported := IsSupported(t.Type)

	if transformed != nil {
		if err := transformed.Validate(); err != nil {
			return invalid(result, err)
		}

		if supported {
			expected, err := t.OutputShape(CommitmentShape(p.InputCommitment))
			if err != nil {
				return invalid(result, err)
			}
			if expected != ShapeOf(transformed) {
				return invalid(result, invalidParams(fmt.Sprintf("transformed image %dx%d does not match expected %dx%d",
					transformed.Width, transformed.Height, expected.Width, expected.Height)))
			}
		}

		recomputed, err := commitment.CommitImage(transformed, p.OutputCommitment.TileSize, commitment.WithAlgorithm(p.OutputCommitment.Algorithm))
		if err != nil {
			return invalid(result, err)
		}
		if !recomputed.Equal(p.OutputCommitment) {
			return invalid(result, fmt.Errorf("transformed image does not match output commitment; %w", common.ErrHashMismatch))
		}
	}

	binding, err := Binding(p.InputCommitment, p.OutputCommitment, t)
	if err != nil {
		return invalid(result, err)
	}
	if binding != p.Payload.Binding() {
		return invalid(result, fmt.Errorf("payload binding mismatch; %w", common.ErrHashMismatch))
	}

	switch p.PayloadKind {
	case PayloadKindHashCommitment:
		// hash equality is all this kind can offer

	case PayloadKindTileInclusion:
		if err := v.verifyTileInclusion(p, t); err != nil {
			return invalid(result, err)
		}

	case PayloadKindZKSnark:
		if err := v.verifyGeometry(p, t); err != nil {
			return invalid(result, err)
		}
		provider, ok := v.zk[p.Payload.ZKSnark.Provider]
		if !ok || !provider.Supports(p.Payload.ZKSnark.Circuit) {
			result.Reason = ReasonZKProviderUnavailable
			return result
		}
		if err := v.verifyZK(ctx, provider, p, t); err != nil {
			return invalid(result, err)
		}

	default:
		return invalid(result, fmt.Errorf("unknown payload kind %s; %w", p.PayloadKind, common.ErrMalformedContent))
	}

	result.Valid = true
	return result
}

func (v *Verifier) wellFormed(p *Proof) error {
	if err := p.InputCommitment.Validate(); err != nil {
		return err
	}
	if err := p.OutputCommitment.Validate(); err != nil {
		return err
	}

	kind, err := p.Payload.Kind()
	if err != nil {
		return err
	}
	if kind != p.PayloadKind {
		return fmt.Errorf("payload variant %s does not match declared kind %s; %w", kind, p.PayloadKind, common.ErrMalformedContent)
	}
	if !common.IsHexDigest(p.Payload.Binding()) {
		return fmt.Errorf("invalid payload binding; %w", common.ErrMalformedContent)
	}
	if p.PayloadKind != PayloadKindHashCommitment && !IsSupported(p.TransformationType) {
		return fmt.Errorf("%s payload for %s transformation; %w", p.PayloadKind, p.TransformationType, common.ErrUnsupportedTransformation)
	}
	return nil
}

// verifyGeometry checks the output commitment has the shape the parameters
// produce from the input commitment
func (v *Verifier) verifyGeometry(p *Proof, t *Transformation) error {
	if !p.InputCommitment.IsImage() || !p.OutputCommitment.IsImage() {
		return fmt.Errorf("structural proofs require image commitments; %w", common.ErrMalformedContent)
	}

	expected, err := t.OutputShape(CommitmentShape(p.InputCommitment))
	if err != nil {
		return err
	}
	if expected != CommitmentShape(p.OutputCommitment) {
		return invalidParams("output commitment shape does not match transformation params")
	}
	return nil
}

func (v *Verifier) verifyTileInclusion(p *Proof, t *Transformation) error {
	payload := p.Payload.TileInclusion

	if err := v.verifyGeometry(p, t); err != nil {
		return err
	}
	if payload.InputShape != CommitmentShape(p.InputCommitment) {
		return invalidParams("declared input shape does not match input commitment")
	}
	if payload.OutputShape != CommitmentShape(p.OutputCommitment) {
		return invalidParams("declared output shape does not match output commitment")
	}
	if payload.OutputTileCount != p.OutputCommitment.TileCount ||
		payload.OutputTileCount != commitment.TileCount(payload.OutputShape.Length(), p.OutputCommitment.TileSize) {
		return fmt.Errorf("declared output tile count %d inconsistent with output geometry; %w", payload.OutputTileCount, common.ErrMalformedContent)
	}
	return nil
}

func (v *Verifier) verifyZK(ctx context.Context, provider zkproviders.ZKSnarkProvider, p *Proof, t *Transformation) error {
	raw, err := hex.DecodeString(p.Payload.ZKSnark.Proof)
	if err != nil {
		return fmt.Errorf("invalid zk proof encoding; %w", common.ErrMalformedContent)
	}

	assignment, err := zkAssignment(p.Payload.ZKSnark.Circuit, t, p.InputCommitment, p.OutputCommitment)
	if err != nil {
		return err
	}

	if err := provider.Verify(ctx, p.Payload.ZKSnark.Circuit, raw, assignment); err != nil {
		return fmt.Errorf("zk proof rejected; %s; %w", err.Error(), common.ErrHashMismatch)
	}
	return nil
}

func invalid(result *Result, err error) *Result {
	if result == nil {
		result = &Result{}
	}
	result.Valid = false
	result.Reason = common.Reason(err)
	common.Log.Debugf("proof verification failed; %s", err.Error())
	return result
}
