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
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/common"
	provide "github.com/provideplatform/provide-go/common"
)

type commitParams struct {
	Content  []byte `json:"content,omitempty"`
	Image    *Image `json:"image,omitempty"`
	TileSize int    `json:"tile_size,omitempty"`
}

type verifyLeafParams struct {
	TileIndex int      `json:"tile_index"`
	Tile      []byte   `json:"tile,omitempty"`
	LeafHash  string   `json:"leaf_hash,omitempty"`
	Path      []string `json:"path"`
}

// InstallAPI registers the commitment API handlers with gin
func InstallAPI(r *gin.Engine, registry *Registry) {
	r.POST("/api/v1/commitments", createCommitmentHandler(registry))
	r.GET("/api/v1/commitments/:id", commitmentDetailsHandler(registry))
	r.GET("/api/v1/commitments/:id/membership", commitmentMembershipHandler(registry))
	r.POST("/api/v1/commitments/:id/verify_leaf", verifyLeafHandler(registry))
}

func createCommitmentHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &commitParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		var commitment *Commitment
		if params.Image != nil {
			commitment, err = registry.CommitImage(c, params.Image, params.TileSize)
		} else {
			commitment, err = registry.Commit(c, params.Content, params.TileSize)
		}
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(commitment, 201, c)
	}
}

func commitmentDetailsHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		commitment, err := registry.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(commitment, 200, c)
	}
}

func commitmentMembershipHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		proof, err := registry.Prove(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(proof, 200, c)
	}
}

func verifyLeafHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		commitment, err := registry.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &verifyLeafParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		var verified bool
		if params.LeafHash != "" {
			verified, err = VerifyLeafHash(commitment, params.TileIndex, params.LeafHash, params.Path)
		} else {
			verified, err = VerifyLeaf(commitment, params.TileIndex, params.Tile, params.Path)
		}
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(map[string]interface{}{
			"verified": verified,
		}, 200, c)
	}
}
