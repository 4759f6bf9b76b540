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
	"context"
	"fmt"
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/proof"
)

// Chain is the ordered sequence of transformation proofs deriving the current
// commitment from the original one
type Chain struct {
	ID                 string                 `json:"id"`
	OriginalCommitment *commitment.Commitment `json:"original_commitment"`
	Proofs             []*proof.Proof         `json:"proofs"`
	CurrentCommitment  *commitment.Commitment `json:"current_commitment"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// StepResult is the verification outcome of a single chain step
type StepResult struct {
	Index           int    `json:"index"`
	ContinuityValid bool   `json:"continuity_valid"`
	ProofValid      bool   `json:"proof_valid"`
	Advisory        bool   `json:"advisory"`
	Valid           bool   `json:"valid"`
	Reason          string `json:"reason,omitempty"`
}

// Report is the outcome of a full chain verification
type Report struct {
	ChainID      string        `json:"chain_id"`
	Valid        bool          `json:"valid"`
	Length       int           `json:"length"`
	FirstInvalid int           `json:"first_invalid"`
	HeadValid    bool          `json:"head_valid"`
	Steps        []*StepResult `json:"steps"`
}

// Start begins a chain at the original commitment
func Start(original *commitment.Commitment) (*Chain, error) {
	if err := original.Validate(); err != nil {
		return nil, err
	}

	id, err := common.NewID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Chain{
		ID:                 id,
		OriginalCommitment: original,
		Proofs:             make([]*proof.Proof, 0),
		CurrentCommitment:  original,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Append extends the chain when the proof's input is the current commitment
func Append(c *Chain, p *proof.Proof) error {
	if p == nil || p.InputCommitment == nil || p.OutputCommitment == nil {
		return fmt.Errorf("proof with input and output commitments required; %w", common.ErrMalformedContent)
	}

	if !p.InputCommitment.Equal(c.CurrentCommitment) {
		return fmt.Errorf("proof input %s does not match chain %s head %s; %w", p.InputCommitment.RootHash, c.ID, c.CurrentCommitment.RootHash, common.ErrChainContinuity)
	}

	c.Proofs = append(c.Proofs, p)
	c.CurrentCommitment = p.OutputCommitment
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// VerifyChain checks every link and every proof; a broken step does not stop
// verification of the steps after it
func VerifyChain(ctx context.Context, verifier *proof.Verifier, c *Chain) *Report {
	report := &Report{
		ChainID:      c.ID,
		Length:       len(c.Proofs),
		FirstInvalid: -1,
		Steps:        make([]*StepResult, 0, len(c.Proofs)),
	}

	expected := c.OriginalCommitment
	for i, p := range c.Proofs {
		step := &StepResult{Index: i}

		if p == nil {
			step.Reason = common.ReasonMalformedContent
		} else {
			step.ContinuityValid = p.InputCommitment.Equal(expected)

			result := verifier.Verify(ctx, p, nil)
			step.ProofValid = result.Valid
			step.Advisory = result.Advisory

			switch {
			case !step.ContinuityValid:
				step.Reason = common.ReasonChainContinuity
			case !result.Valid:
				step.Reason = result.Reason
			}

			expected = p.OutputCommitment
		}

		step.Valid = step.ContinuityValid && step.ProofValid
		if !step.Valid && report.FirstInvalid == -1 {
			report.FirstInvalid = i
		}
		report.Steps = append(report.Steps, step)
	}

	report.HeadValid = c.CurrentCommitment.Equal(expected)
	report.Valid = report.FirstInvalid == -1 && report.HeadValid
	return report
}
