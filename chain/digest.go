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

package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"github.com/providenetwork/merkletree"
	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/proof"
)

// Summary is the compact form of a chain: its endpoints and a merkle root
// over the proof digests
type Summary struct {
	ChainID            string                 `json:"chain_id"`
	OriginalCommitment *commitment.Commitment `json:"original_commitment"`
	FinalCommitment    *commitment.Commitment `json:"final_commitment"`
	Length             int                    `json:"length"`
	ProofsRoot         string                 `json:"proofs_root,omitempty"`
}

// proofContent is a proof digest stored in the proofs tree
type proofContent struct {
	digest []byte
}

// CalculateHash returns the proof digest
func (pc *proofContent) CalculateHash() ([]byte, error) {
	if len(pc.digest) == 0 {
		return nil, errors.New("proof content requires a digest")
	}
	return pc.digest, nil
}

// Equals returns true if the given content carries the same digest
func (pc *proofContent) Equals(other merkletree.Content) (bool, error) {
	h, err := other.CalculateHash()
	if err != nil {
		return false, err
	}
	return bytes.Equal(pc.digest, h), nil
}

// Compact summarizes the chain
func Compact(c *Chain) (*Summary, error) {
	summary := &Summary{
		ChainID:            c.ID,
		OriginalCommitment: c.OriginalCommitment,
		FinalCommitment:    c.CurrentCommitment,
		Length:             len(c.Proofs),
	}

	if len(c.Proofs) == 0 {
		return summary, nil
	}

	root, err := ProofsRoot(c.Proofs)
	if err != nil {
		return nil, err
	}
	summary.ProofsRoot = root
	return summary, nil
}

// ProofsRoot returns the hex-encoded merkle root over the proof digests
func ProofsRoot(proofs []*proof.Proof) (string, error) {
	tree, err := proofsTree(proofs)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(tree.MerkleRoot()), nil
}

// ContainsProof returns true if the proof is a member of the proofs tree
func ContainsProof(proofs []*proof.Proof, p *proof.Proof) (bool, error) {
	tree, err := proofsTree(proofs)
	if err != nil {
		return false, err
	}

	content, err := newProofContent(p)
	if err != nil {
		return false, err
	}
	return tree.VerifyContent(content)
}

func proofsTree(proofs []*proof.Proof) (*merkletree.MerkleTree, error) {
	contents := make([]merkletree.Content, 0, len(proofs))
	for _, p := range proofs {
		content, err := newProofContent(p)
		if err != nil {
			return nil, err
		}
		contents = append(contents, content)
	}

	tree, err := merkletree.NewTreeWithHashStrategy(contents, func() hash.Hash {
		return sha256.New()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build proofs tree; %s", err.Error())
	}
	return tree, nil
}

func newProofContent(p *proof.Proof) (*proofContent, error) {
	digest, err := p.Digest()
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return nil, err
	}
	return &proofContent{digest: raw}, nil
}
