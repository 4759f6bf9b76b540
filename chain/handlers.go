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
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/proof"
	provide "github.com/provideplatform/provide-go/common"
)

type startParams struct {
	CommitmentID       string                 `json:"commitment_id,omitempty"`
	OriginalCommitment *commitment.Commitment `json:"original_commitment,omitempty"`
}

type appendParams struct {
	ProofID string       `json:"proof_id,omitempty"`
	Proof   *proof.Proof `json:"proof,omitempty"`
	Index   *int         `json:"index,omitempty"`
}

// InstallAPI registers the proof chain API handlers with gin; commitments and
// proofs may be referenced by id
func InstallAPI(r *gin.Engine, m *Manager, registry *commitment.Registry, proofs *proof.Service) {
	r.POST("/api/v1/chains", createChainHandler(m, registry))
	r.GET("/api/v1/chains/:id", chainDetailsHandler(m))
	r.POST("/api/v1/chains/:id/proofs", appendChainProofHandler(m, proofs))
	r.GET("/api/v1/chains/:id/verify", verifyChainHandler(m))
	r.GET("/api/v1/chains/:id/compact", compactChainHandler(m))
}

func createChainHandler(m *Manager, registry *commitment.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &startParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		original := params.OriginalCommitment
		if params.CommitmentID != "" {
			original, err = registry.Get(c, params.CommitmentID)
			if err != nil {
				provide.RenderError(err.Error(), common.StatusCode(err), c)
				return
			}
		}

		chain, err := m.Start(c, original)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(chain, 201, c)
	}
}

func chainDetailsHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		chain, err := m.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(chain, 200, c)
	}
}

func appendChainProofHandler(m *Manager, proofs *proof.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &appendParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		p := params.Proof
		if params.ProofID != "" {
			p, err = proofs.Get(c, params.ProofID)
			if err != nil {
				provide.RenderError(err.Error(), common.StatusCode(err), c)
				return
			}
		}

		var chain *Chain
		if params.Index != nil {
			chain, err = m.AppendAt(c, c.Param("id"), *params.Index, p)
		} else {
			chain, err = m.Append(c, c.Param("id"), p)
		}
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(chain, 200, c)
	}
}

func verifyChainHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := m.Verify(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(report, 200, c)
	}
}

func compactChainHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := m.Compact(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(summary, 200, c)
	}
}
