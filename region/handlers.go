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


package region

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	provide "github.com/provideplatform/provide-go/common"
)

type revealParams struct {
	Image    *commitment.Image `json:"image"`
	Region   Region            `json:"region"`
	TileSize int               `json:"tile_size,omitempty"`
}

type redactParams struct {
	Image    *commitment.Image `json:"image"`
	Regions  []Region          `json:"regions"`
	Mode     string            `json:"mode,omitempty"`
	TileSize int               `json:"tile_size,omitempty"`
}

type verifyParams struct {
	Proof    *Proof    `json:"proof"`
	Supplied *Supplied `json:"supplied,omitempty"`
}

// InstallAPI registers the selective reveal and redaction API handlers with gin
func InstallAPI(r *gin.Engine, svc *Service) {
	r.POST("/api/v1/regions/reveal", revealHandler(svc))
	r.POST("/api/v1/regions/redact", redactHandler(svc))
	r.GET("/api/v1/regions/:id", regionProofDetailsHandler(svc))
	r.POST("/api/v1/regions/verify", verifyRegionProofHandler(svc))
}

func revealHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &revealParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		result, err := svc.Reveal(c, params.Image, params.Region, params.TileSize)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(result, 201, c)
	}
}

func redactHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &redactParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		mode, err := ParseMode(params.Mode)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		result, err := svc.Redact(c, params.Image, params.Regions, mode, params.TileSize)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(result, 201, c)
	}
}

func regionProofDetailsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(p, 200, c)
	}
}

func verifyRegionProofHandler(svc *Service) gin.HandlerFunc {
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

		provide.Render(svc.Verify(c, params.Proof, params.Supplied), 200, c)
	}
}
