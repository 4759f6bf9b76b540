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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames(n int) []*Frame {
	frames := make([]*Frame, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, &Frame{
			Index:       i,
			TimestampMs: int64(1000 + i*40),
			Data:        []byte(fmt.Sprintf("frame-%03d-%s", i, string(make([]byte, 2048)))),
		})
	}
	return frames
}

func testEngine() *Engine {
	cfg := common.DefaultConfig()
	cfg.MaxFrames = 10
	return NewEngine(memory.NewStore(), cfg)
}

func checkByName(report *Report, name string) *Check {
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAttestKeyframes(t *testing.T) {
	ctx := context.Background()
	e := testEngine()

	a, err := e.Attest(ctx, ModeKeyframe, testFrames(5))
	require.NoError(t, err)

	assert.Equal(t, 5, a.FrameCount)
	assert.Equal(t, int64(160), a.DurationMs)
	assert.True(t, a.ChainIntegrity)
	assert.Equal(t, a.Frames[0].Hash, a.StartHash)
	assert.Equal(t, a.Frames[4].Hash, a.EndHash)
	assert.Equal(t, "", a.Frames[0].PreviousHash)
	for i := 1; i < 5; i++ {
		assert.Equal(t, a.Frames[i-1].Hash, a.Frames[i].PreviousHash)
	}

	report := Verify(a)
	assert.True(t, report.Valid)
	assert.Len(t, report.Checks, 6)

	resolved, err := e.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, Verify(resolved).Valid)
}

func TestAttestIsDeterministic(t *testing.T) {
	ctx := context.Background()

	a, err := testEngine().Attest(ctx, ModeKeyframe, testFrames(3))
	require.NoError(t, err)
	b, err := testEngine().Attest(ctx, ModeKeyframe, testFrames(3))
	require.NoError(t, err)

	assert.Equal(t, a.Frames, b.Frames)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAttestFullFrameLimit(t *testing.T) {
	ctx := context.Background()
	e := testEngine()

	_, err := e.Attest(ctx, ModeFullFrame, testFrames(11))
	assert.True(t, errors.Is(err, common.ErrTooManyFrames))

	_, err = e.Attest(ctx, ModeFullFrame, testFrames(10))
	assert.NoError(t, err)

	// the limit binds full_frame only
	_, err = e.Attest(ctx, ModeKeyframe, testFrames(11))
	assert.NoError(t, err)

	_, err = e.Attest(ctx, ModeKeyframe, nil)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))

	frames := testFrames(2)
	frames[1].Data = nil
	_, err = e.Attest(ctx, ModeKeyframe, frames)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestVerifyOutOfOrderTimestamps(t *testing.T) {
	frames := testFrames(4)
	frames[2].TimestampMs = 900

	a, err := testEngine().Attest(context.Background(), ModeKeyframe, frames)
	require.NoError(t, err)

	// the chain itself is intact
	assert.True(t, a.ChainIntegrity)

	report := Verify(a)
	assert.False(t, report.Valid)
	assert.False(t, checkByName(report, CheckTimestampsMonotonic).Passed)
	assert.True(t, checkByName(report, CheckChainIntegrity).Passed)
	assert.True(t, checkByName(report, CheckStartHash).Passed)
	assert.True(t, checkByName(report, CheckEndHash).Passed)
}

func TestTamperedPreviousHash(t *testing.T) {
	frames := testFrames(5)
	frames[2].PreviousHash = common.SHA256("forged")

	a, err := testEngine().Attest(context.Background(), ModeKeyframe, frames)
	require.NoError(t, err)
	assert.False(t, a.ChainIntegrity)
	assert.Equal(t, common.SHA256("forged"), a.Frames[2].PreviousHash)

	report := Verify(a)
	assert.False(t, report.Valid)
	assert.False(t, checkByName(report, CheckChainIntegrity).Passed)
	assert.True(t, checkByName(report, CheckTimestampsMonotonic).Passed)
}

func TestVerifyRunsEveryCheck(t *testing.T) {
	a, err := testEngine().Attest(context.Background(), ModeKeyframe, testFrames(3))
	require.NoError(t, err)

	a.StartHash = common.ZeroHash
	a.EndHash = common.ZeroHash
	a.FrameCount = 7
	a.Frames[1].Hash = common.SHA256("swapped")

	report := Verify(a)
	assert.False(t, report.Valid)
	assert.Len(t, report.Checks, 6)
	assert.False(t, checkByName(report, CheckChainIntegrity).Passed)
	assert.False(t, checkByName(report, CheckStartHash).Passed)
	assert.False(t, checkByName(report, CheckEndHash).Passed)
	assert.False(t, checkByName(report, CheckFrameCount).Passed)
	assert.True(t, checkByName(report, CheckFrameIndices).Passed)
}

func TestLink(t *testing.T) {
	first := Link(nil, 0, 10, common.SHA256("a"), "")
	assert.Equal(t, "", first.PreviousHash)
	assert.Equal(t, ChainHash(common.ZeroHash, common.SHA256("a"), 10), first.ChainHash)

	second := Link(first, 1, 20, common.SHA256("b"), "")
	assert.Equal(t, first.Hash, second.PreviousHash)
	assert.True(t, VerifyChainIntegrity([]*FrameProof{first, second}))
	assert.False(t, VerifyChainIntegrity([]*FrameProof{second, first}))
}
