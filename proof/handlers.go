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

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	provide "github.com/provideplatform/provide-go/common"
)

type generateParams struct {
	Original       *commitment.Image `json:"original"`
	Transformed    *commitment.Image `json:"transformed,omitempty"`
	Transformation *Transformation   `json:"transformation"`
}

type verifyParams struct {
	Proof       *Proof            `json:"proof,omitempty"`
	Transformed *commitment.Image `json:"transformed,omitempty"`
}

// InstallAPI registers the transformation proof API handlers with gin
func InstallAPI(r *gin.Engine, svc *Service) {
	r.POST("/api/v1/proofs", createProofHandler(svc))
	r.GET("/api/v1/proofs/:id", proofDetailsHandler(svc))
	r.POST("/api/v1/proofs/verify", verifyProofHandler(svc))
	r.POST("/api/v1/proofs/:id/verify", verifyStoredProofHandler(svc))
}

// commit both images and generate the proof; when the transformed image is
// omitted the reference transformation is applied to the original
func createProofHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &generateParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		if params.Transformation == nil {
			provide.RenderError("transformation required", 422, c)
			return
		}

		transformed := params.Transformed
		if transformed == nil {
			transformed, err = Apply(params.Original, params.Transformation)
			if err != nil {
				provide.RenderError(err.Error(), common.StatusCode(err), c)
				return
			}
		}

		proof, err := svc.Generate(c, params.Original, transformed, params.Transformation)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(proof, 201, c)
	}
}

func proofDetailsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		proof, err := svc.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(proof, 200, c)
	}
}

func verifyProofHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &verifyParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		provide.Render(svc.Verify(c, params.Proof, params.Transformed), 200, c)
	}
}

func verifyStoredProofHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		proof, err := svc.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		params := &verifyParams{}
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}
		if len(buf) > 0 {
			err = json.Unmarshal(buf, params)
			if err != nil {
				provide.RenderError(err.Error(), 422, c)
				return
			}
		}

		provide.Render(svc.Verify(c, proof, params.Transformed), 200, c)
	}
}
