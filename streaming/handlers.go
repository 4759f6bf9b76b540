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


package streaming

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/temporal"
	provide "github.com/provideplatform/provide-go/common"
)

// InstallAPI registers the streaming session API handlers with gin
func InstallAPI(r *gin.Engine, m *Manager) {
	r.POST("/api/v1/sessions", createSessionHandler(m))
	r.GET("/api/v1/sessions/:id", sessionDetailsHandler(m))
	r.POST("/api/v1/sessions/:id/frames", addFrameHandler(m))
	r.GET("/api/v1/sessions/:id/frames", recentFramesHandler(m))
	r.POST("/api/v1/sessions/:id/end", endSessionHandler(m))
}

// the request body is optional; an empty body starts a session with the
// configured defaults
func createSessionHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		var cfg *Config
		if len(buf) > 0 {
			cfg = &Config{}
			err = json.Unmarshal(buf, cfg)
			if err != nil {
				provide.RenderError(err.Error(), 422, c)
				return
			}
		}

		id, err := m.Start(cfg)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		session, err := m.Get(id)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(session, 201, c)
	}
}

func sessionDetailsHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := m.Get(c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(session, 200, c)
	}
}

func addFrameHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		frame := &temporal.Frame{}
		err = json.Unmarshal(buf, frame)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		fp, err := m.AddFrame(c, c.Param("id"), frame)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(fp, 201, c)
	}
}

func recentFramesHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		frames, err := m.Recent(c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(frames, 200, c)
	}
}

func endSessionHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		attestation, err := m.End(c, c.Param("id"))
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		provide.Render(attestation, 200, c)
	}
}
