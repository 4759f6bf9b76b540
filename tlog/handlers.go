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


package tlog

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/common"
	provide "github.com/provideplatform/provide-go/common"
)

type appendParams struct {
	ContentHash string            `json:"content_hash"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// InstallAPI registers the transparency log API handlers with gin
func InstallAPI(r *gin.Engine, l *Log) {
	r.POST("/api/v1/log/entries", appendEntryHandler(l))
	r.GET("/api/v1/log/entries", exportHandler(l))
	r.GET("/api/v1/log/entries/:index", entryDetailsHandler(l))
	r.GET("/api/v1/log/entries/:index/inclusion", inclusionProofHandler(l))
	r.GET("/api/v1/log/verify/:content_hash", verifyContentHandler(l))
	r.GET("/api/v1/log/public_key", publicKeyHandler(l))
	r.GET("/api/v1/log/checkpoint", checkpointHandler(l))
}

func appendEntryHandler(l *Log) gin.HandlerFunc {
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

		entry, err := l.Append(c, params.ContentHash, params.Extra)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(entry, 201, c)
	}
}

// the export is written as-is so repeated downloads are byte-identical
func exportHandler(l *Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := l.ExportJSON(c)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		c.Data(200, "application/json; charset=UTF-8", raw)
	}
}

func entryDetailsHandler(l *Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.ParseUint(c.Param("index"), 10, 64)
		if err != nil {
			provide.RenderError("invalid log index", 400, c)
			return
		}

		entry, err := l.Get(c, index)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(entry, 200, c)
	}
}

// the tree size defaults to the current log size when the size query
// parameter is omitted
func inclusionProofHandler(l *Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.ParseUint(c.Param("index"), 10, 64)
		if err != nil {
			provide.RenderError("invalid log index", 400, c)
			return
		}

		var size uint64
		if c.Query("size") != "" {
			size, err = strconv.ParseUint(c.Query("size"), 10, 64)
			if err != nil {
				provide.RenderError("invalid tree size", 400, c)
				return
			}
		}

		p, err := l.InclusionProof(c, index, size)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(p, 200, c)
	}
}

func verifyContentHandler(l *Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := l.Verify(c, c.Param("content_hash"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(v, 200, c)
	}
}

func publicKeyHandler(l *Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		provide.Render(map[string]interface{}{
			"origin":     l.Origin(),
			"public_key": l.PublicKey(),
		}, 200, c)
	}
}

func checkpointHandler(l *Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		checkpoint, err := l.Checkpoint(c)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(checkpoint, 200, c)
	}
}
