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
	"fmt"
)

// Check names reported by Verify
const (
	CheckChainIntegrity      = "chain_integrity"
	CheckStartHash           = "start_hash"
	CheckEndHash             = "end_hash"
	CheckTimestampsMonotonic = "timestamps_monotonic"
	CheckFrameCount          = "frame_count"
	CheckFrameIndices        = "frame_indices"
)

// Check is the outcome of one attestation check
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Report is the outcome of an attestation verification; every check runs
// regardless of earlier failures
type Report struct {
	AttestationID string   `json:"attestation_id"`
	Valid         bool     `json:"valid"`
	Checks        []*Check `json:"checks"`
}

// Verify independently re-derives the attestation's chain and checks its
// declared summary against the frames
func Verify(a *VideoAttestation) *Report {
	report := &Report{Checks: make([]*Check, 0, 6)}
	if a == nil {
		report.Checks = append(report.Checks, &Check{Name: CheckChainIntegrity, Detail: "nil attestation"})
		return report
	}
	report.AttestationID = a.ID

	frames := a.Frames
	var first, last *FrameProof
	if len(frames) > 0 {
		first, last = frames[0], frames[len(frames)-1]
	}

	integrity := &Check{Name: CheckChainIntegrity, Passed: true}
	if broken := firstBrokenLink(frames); broken != -1 {
		integrity.Passed = false
		integrity.Detail = fmt.Sprintf("link broken at frame position %d", broken)
	} else if !a.ChainIntegrity {
		integrity.Passed = false
		integrity.Detail = "attestation declares a broken chain"
	}

	start := &Check{Name: CheckStartHash}
	if first != nil && a.StartHash == first.Hash {
		start.Passed = true
	} else {
		start.Detail = "start hash does not match the first frame"
	}

	end := &Check{Name: CheckEndHash}
	if last != nil && a.EndHash == last.Hash {
		end.Passed = true
	} else {
		end.Detail = "end hash does not match the last frame"
	}

	monotonic := &Check{Name: CheckTimestampsMonotonic, Passed: true}
	for i := 1; i < len(frames); i++ {
		if frames[i] == nil || frames[i-1] == nil {
			continue
		}
		if frames[i].TimestampMs < frames[i-1].TimestampMs {
			monotonic.Passed = false
			monotonic.Detail = fmt.Sprintf("timestamp decreases at frame position %d", i)
			break
		}
	}

	count := &Check{Name: CheckFrameCount, Passed: a.FrameCount == len(frames) && len(frames) > 0}
	if !count.Passed {
		count.Detail = fmt.Sprintf("declared %d frame(s), attested %d", a.FrameCount, len(frames))
	}

	indices := &Check{Name: CheckFrameIndices, Passed: true}
	for i, f := range frames {
		if f == nil {
			indices.Passed = false
			indices.Detail = fmt.Sprintf("missing frame at position %d", i)
			break
		}
		if f.Index < 0 || (i > 0 && frames[i-1] != nil && f.Index <= frames[i-1].Index) {
			indices.Passed = false
			indices.Detail = fmt.Sprintf("frame index %d at position %d is not increasing", f.Index, i)
			break
		}
	}

	report.Checks = append(report.Checks, integrity, start, end, monotonic, count, indices)

	report.Valid = true
	for _, c := range report.Checks {
		if !c.Passed {
			report.Valid = false
		}
	}
	return report
}
