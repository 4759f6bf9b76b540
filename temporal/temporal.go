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
	"strconv"
	"time"

	"github.com/provideplatform/provenance/common"
)

// Mode is the attestation mode
type Mode string

const (
	// ModeKeyframe attests a sparse, pre-selected set of frames
	ModeKeyframe Mode = "keyframe"

	// ModeFullFrame attests every frame, up to the configured maximum
	ModeFullFrame Mode = "full_frame"

	// ModeStreaming attests frames as they arrive in a live session
	ModeStreaming Mode = "streaming"
)

// ParseMode returns the attestation mode; the empty string selects keyframe
func ParseMode(mode string) (Mode, error) {
	switch Mode(mode) {
	case "", ModeKeyframe:
		return ModeKeyframe, nil
	case ModeFullFrame:
		return ModeFullFrame, nil
	case ModeStreaming:
		return ModeStreaming, nil
	}
	return "", fmt.Errorf("unsupported attestation mode %q; %w", mode, common.ErrMalformedContent)
}

// Frame is a captured frame; PreviousHash is an optional producer claim
type Frame struct {
	Index        int    `json:"index"`
	TimestampMs  int64  `json:"timestamp_ms"`
	Data         []byte `json:"data"`
	PreviousHash string `json:"previous_hash,omitempty"`
}

// FrameProof is the attested record of a frame; it never carries frame data
type FrameProof struct {
	Index        int    `json:"index"`
	TimestampMs  int64  `json:"timestamp_ms"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	ChainHash    string `json:"chain_hash"`
}

// VideoAttestation is a hash-chained sequence of frame proofs
type VideoAttestation struct {
	ID             string        `json:"id"`
	Mode           Mode          `json:"mode"`
	FrameCount     int           `json:"frame_count"`
	DurationMs     int64         `json:"duration_ms"`
	StartHash      string        `json:"start_hash"`
	EndHash        string        `json:"end_hash"`
	ChainIntegrity bool          `json:"chain_integrity"`
	Frames         []*FrameProof `json:"frames"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ChainHash links a frame hash and timestamp to the previous chain hash
func ChainHash(previousChainHash, hash string, timestampMs int64) string {
	return common.SHA256Concat([]byte(previousChainHash), []byte(hash), []byte(strconv.FormatInt(timestampMs, 10)))
}

// Link returns the proof for the frame following prev, which is nil for the
// first frame; a claimed previous hash is recorded as claimed
func Link(prev *FrameProof, index int, timestampMs int64, hash, claimedPreviousHash string) *FrameProof {
	previousHash := ""
	previousChainHash := common.ZeroHash
	if prev != nil {
		previousHash = prev.Hash
		previousChainHash = prev.ChainHash
	}
	if claimedPreviousHash != "" {
		previousHash = claimedPreviousHash
	}

	return &FrameProof{
		Index:        index,
		TimestampMs:  timestampMs,
		Hash:         hash,
		PreviousHash: previousHash,
		ChainHash:    ChainHash(previousChainHash, hash, timestampMs),
	}
}

// VerifyChainIntegrity recomputes every link of the sequence
func VerifyChainIntegrity(frames []*FrameProof) bool {
	return firstBrokenLink(frames) == -1
}

// firstBrokenLink returns the index of the first frame whose link does not
// recompute, or -1
func firstBrokenLink(frames []*FrameProof) int {
	previousHash := ""
	previousChainHash := common.ZeroHash

	for i, f := range frames {
		if f == nil || f.PreviousHash != previousHash || f.ChainHash != ChainHash(previousChainHash, f.Hash, f.TimestampMs) {
			return i
		}
		previousHash = f.Hash
		previousChainHash = f.ChainHash
	}
	return -1
}
