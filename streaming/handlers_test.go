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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	InstallAPI(r, testManager(&recordingNotifier{}))

	w := serve(r, http.MethodPost, "/api/v1/sessions", []byte(`{"buffer_size":2}`))
	require.Equal(t, http.StatusCreated, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, StatusActive, snap.Status)
	assert.Equal(t, 2, snap.Config.BufferSize)

	base := "/api/v1/sessions/" + snap.ID
	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(frame(i))
		w = serve(r, http.MethodPost, base+"/frames", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = serve(r, http.MethodGet, base+"/frames", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recent []*temporal.FrameProof
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	require.Len(t, recent, 2)
	assert.Equal(t, 1, recent[0].Index)

	w = serve(r, http.MethodPost, base+"/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var a temporal.VideoAttestation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, 3, a.FrameCount)
	assert.True(t, a.ChainIntegrity)

	body, _ := json.Marshal(frame(3))
	w = serve(r, http.MethodPost, base+"/frames", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionAPIDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m := testManager(&recordingNotifier{})
	InstallAPI(r, m)

	w := serve(r, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, m.defaults.BufferSize, snap.Config.BufferSize)
}
