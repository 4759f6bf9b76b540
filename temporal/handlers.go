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


package temporal

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/common"
	provide "github.com/provideplatform/provide-go/common"
)

type attestParams struct {
	Mode   string   `json:"mode,omitempty"`
	Frames []*Frame `json:"frames"`
}

// InstallAPI registers the video attestation API handlers with gin
func InstallAPI(r *gin.Engine, e *Engine) {
	r.POST("/api/v1/attestations", createAttestationHandler(e))
	r.GET("/api/v1/attestations/:id", attestationDetailsHandler(e))
	r.POST("/api/v1/attestations/verify", verifyAttestationHandler())
	r.GET("/api/v1/attestations/:id/verify", verifyStoredAttestationHandler(e))
}

func createAttestationHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &attestParams{}
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

		attestation, err := e.Attest(c, mode, params.Frames)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(attestation, 201, c)
	}
}

func attestationDetailsHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		attestation, err := e.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(attestation, 200, c)
	}
}

func verifyAttestationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		attestation := &VideoAttestation{}
		err = json.Unmarshal(buf, attestation)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		provide.Render(Verify(attestation), 200, c)
	}
}

func verifyStoredAttestationHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		attestation, err := e.Get(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(Verify(attestation), 200, c)
	}
}
