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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(l *Log) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	InstallAPI(r, l)
	return r
}

func serve(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogAPI(t *testing.T) {
	l := testLog(t, memory.NewStore(), nil)
	r := testRouter(l)

	body, _ := json.Marshal(map[string]interface{}{
		"content_hash": contentHash(0),
		"extra":        map[string]string{"source": "api"},
	})
	w := serve(r, http.MethodPost, "/api/v1/log/entries", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var entry Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, uint64(0), entry.LogIndex)
	assert.Equal(t, contentHash(0), entry.ContentHash)

	w = serve(r, http.MethodGet, "/api/v1/log/verify/"+contentHash(0), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v Verification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.True(t, v.Verified)
	assert.True(t, v.SignatureValid)

	w = serve(r, http.MethodGet, "/api/v1/log/verify/"+contentHash(1), nil)
	require.Equal(t, http.StatusOK, w.Code)
	v = Verification{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.False(t, v.Verified)

	w = serve(r, http.MethodGet, "/api/v1/log/entries/0", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(r, http.MethodGet, "/api/v1/log/entries/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(r, http.MethodGet, "/api/v1/log/entries/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogAPIRejectsMalformedHash(t *testing.T) {
	r := testRouter(testLog(t, memory.NewStore(), nil))

	body, _ := json.Marshal(map[string]interface{}{"content_hash": "not-a-digest"})
	w := serve(r, http.MethodPost, "/api/v1/log/entries", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/log/entries", []byte("{"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLogAPIExportIsStable(t *testing.T) {
	l := testLog(t, memory.NewStore(), nil)
	appendN(t, l, 3)
	r := testRouter(l)

	first := serve(r, http.MethodGet, "/api/v1/log/entries", nil)
	second := serve(r, http.MethodGet, "/api/v1/log/entries", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

	report, err := AuditJSON(first.Body.Bytes(), l.PublicKey())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 3, report.Size)
}

func TestLogAPIInclusion(t *testing.T) {
	l := testLog(t, memory.NewStore(), nil)
	appendN(t, l, 5)
	r := testRouter(l)

	w := serve(r, http.MethodGet, "/api/v1/log/checkpoint", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var checkpoint Checkpoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkpoint))
	assert.Equal(t, uint64(5), checkpoint.Size)

	w = serve(r, http.MethodGet, "/api/v1/log/entries/3/inclusion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p InclusionProof
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.NoError(t, VerifyInclusion(&p, checkpoint.RootHash))

	w = serve(r, http.MethodGet, "/api/v1/log/entries/3/inclusion?size=2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
