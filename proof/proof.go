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
	"encoding/json"
	"fmt"
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
)

// PayloadKind identifies the kind of evidence carried by a proof
type PayloadKind string

const (
	// PayloadKindHashCommitment binds the commitments by hash equality only;
	// proofs of this kind are advisory
	PayloadKindHashCommitment PayloadKind = "hash_commitment"

	// PayloadKindTileInclusion adds structural checks of the declared geometry
	PayloadKindTileInclusion PayloadKind = "tile_inclusion"

	// PayloadKindZKSnark carries a succinct proof of the transformation geometry
	PayloadKindZKSnark PayloadKind = "zk_snark"
)

// ReasonZKProviderUnavailable is reported when a zk_snark proof cannot be checked
const ReasonZKProviderUnavailable = "ZKProviderUnavailable"

// HashCommitmentPayload binds input, output and transformation by hash
type HashCommitmentPayload struct {
	Binding string `json:"binding"`
}

// TileInclusionPayload binds the commitments and declares both shapes so the
// geometry can be checked against the parameters
type TileInclusionPayload struct {
	Binding         string `json:"binding"`
	InputShape      Shape  `json:"input_shape"`
	OutputShape     Shape  `json:"output_shape"`
	OutputTileCount int    `json:"output_tile_count"`
}

// ZKSnarkPayload carries a serialized zksnark proof from a pluggable provider
type ZKSnarkPayload struct {
	Binding       string `json:"binding"`
	Provider      string `json:"provider"`
	Circuit       string `json:"circuit"`
	Curve         string `json:"curve,omitempty"`
	ProvingScheme string `json:"proving_scheme,omitempty"`
	Proof         string `json:"proof"`
}

// Payload is a tagged variant; exactly one member is set
type Payload struct {
	HashCommitment *HashCommitmentPayload `json:"hash_commitment,omitempty"`
	TileInclusion  *TileInclusionPayload  `json:"tile_inclusion,omitempty"`
	ZKSnark        *ZKSnarkPayload        `json:"zk_snark,omitempty"`
}

// Kind returns the kind of the populated member
func (p *Payload) Kind() (PayloadKind, error) {
	if p == nil {
		return "", fmt.Errorf("nil proof payload; %w", common.ErrMalformedContent)
	}

	var kinds []PayloadKind
	if p.HashCommitment != nil {
		kinds = append(kinds, PayloadKindHashCommitment)
	}
	if p.TileInclusion != nil {
		kinds = append(kinds, PayloadKindTileInclusion)
	}
	if p.ZKSnark != nil {
		kinds = append(kinds, PayloadKindZKSnark)
	}

	if len(kinds) != 1 {
		return "", fmt.Errorf("proof payload must carry exactly one variant, found %d; %w", len(kinds), common.ErrMalformedContent)
	}
	return kinds[0], nil
}

// Binding returns the binding hash of the populated member
func (p *Payload) Binding() string {
	switch {
	case p == nil:
		return ""
	case p.HashCommitment != nil:
		return p.HashCommitment.Binding
	case p.TileInclusion != nil:
		return p.TileInclusion.Binding
	case p.ZKSnark != nil:
		return p.ZKSnark.Binding
	}
	return ""
}

// Proof attests the output commitment was derived from the input commitment
// by the declared transformation
type Proof struct {
	ID                 string                 `json:"id"`
	TransformationType string                 `json:"transformation_type"`
	Params             map[string]interface{} `json:"params,omitempty"`
	InputCommitment    *commitment.Commitment `json:"input_commitment"`
	OutputCommitment   *commitment.Commitment `json:"output_commitment"`
	PayloadKind        PayloadKind            `json:"payload_kind"`
	Payload            *Payload               `json:"payload"`
	Advisory           bool                   `json:"advisory"`
	CreatedAt          time.Time              `json:"created_at"`
}

// Transformation returns the declared transformation
func (p *Proof) Transformation() *Transformation {
	return &Transformation{
		Type:   p.TransformationType,
		Params: p.Params,
	}
}

// Digest returns the hash of the canonical encoding of the proof
func (p *Proof) Digest() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode proof %s; %s", p.ID, err.Error())
	}
	return common.SHA256(string(raw)), nil
}

// Result is the outcome of a proof verification
type Result struct {
	Valid       bool        `json:"valid"`
	Reason      string      `json:"reason,omitempty"`
	Advisory    bool        `json:"advisory"`
	PayloadKind PayloadKind `json:"payload_kind,omitempty"`
}

// Binding hashes the commitments together with the declared transformation
func Binding(input, output *commitment.Commitment, t *Transformation) (string, error) {
	params, err := t.CanonicalParams()
	if err != nil {
		return "", err
	}

	return common.SHA256Concat(
		[]byte(input.RootHash),
		[]byte("|"),
		[]byte(output.RootHash),
		[]byte("|"),
		[]byte(t.Type),
		[]byte("|"),
		[]byte(params),
	), nil
}
