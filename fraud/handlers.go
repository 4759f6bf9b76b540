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


package fraud

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/proof"
	"github.com/provideplatform/provenance/region"
	"github.com/provideplatform/provenance/temporal"
	"github.com/provideplatform/provenance/tlog"
	provide "github.com/provideplatform/provide-go/common"
)

// candidateParams is a candidate tagged with its kind
type candidateParams struct {
	Kind      string          `json:"kind"`
	Candidate json.RawMessage `json:"candidate"`
	Deep      bool            `json:"deep,omitempty"`
}

type batchParams struct {
	Candidates []*candidateParams `json:"candidates"`
}

// InstallAPI registers the fraud pre-filter API handlers with gin
func InstallAPI(r *gin.Engine, checker *Checker) {
	r.POST("/api/v1/fraud/check", fraudCheckHandler(checker))
	r.POST("/api/v1/fraud/batch", fraudBatchHandler(checker))
}

// DecodeCandidate unmarshals the raw candidate into the type named by kind
func DecodeCandidate(kind string, raw []byte) (interface{}, error) {
	var candidate interface{}
	switch kind {
	case CandidateProof:
		candidate = &proof.Proof{}
	case CandidateRegionProof:
		candidate = &region.Proof{}
	case CandidateLogEntry:
		candidate = &tlog.Entry{}
	case CandidateLogEntries:
		entries := make([]*tlog.Entry, 0)
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode %s candidate; %s; %w", kind, err.Error(), common.ErrMalformedContent)
		}
		return entries, nil
	case CandidateAttestation:
		candidate = &temporal.VideoAttestation{}
	default:
		return nil, fmt.Errorf("unsupported candidate kind %q; %w", kind, common.ErrMalformedContent)
	}

	if err := json.Unmarshal(raw, candidate); err != nil {
		return nil, fmt.Errorf("failed to decode %s candidate; %s; %w", kind, err.Error(), common.ErrMalformedContent)
	}
	return candidate, nil
}

func fraudCheckHandler(checker *Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &candidateParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		candidate, err := DecodeCandidate(params.Kind, params.Candidate)
		if err != nil {
			provide.RenderError(err.Error(), common.StatusCode(err), c)
			return
		}

		if params.Deep {
			provide.Render(checker.DeepCheck(candidate), 200, c)
		} else {
			provide.Render(checker.QuickCheck(candidate), 200, c)
		}
	}
}

// candidates which cannot be decoded are passed through as raw json so the
// batch reports them at their position rather than failing the request
func fraudBatchHandler(checker *Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			provide.RenderError(err.Error(), 400, c)
			return
		}

		params := &batchParams{}
		err = json.Unmarshal(buf, params)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}

		candidates := make([]interface{}, len(params.Candidates))
		for i, p := range params.Candidates {
			if p == nil {
				continue
			}
			candidate, err := DecodeCandidate(p.Kind, p.Candidate)
			if err != nil {
				common.Log.Debugf("batch candidate %d not decoded; %s", i, err.Error())
				candidates[i] = p.Candidate
				continue
			}
			candidates[i] = candidate
		}

		provide.Render(checker.BatchCheck(candidates), 200, c)
	}
}
