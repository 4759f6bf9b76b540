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
	"encoding/hex"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/proof"
	"github.com/provideplatform/provenance/region"
	"github.com/provideplatform/provenance/temporal"
	"github.com/provideplatform/provenance/tlog"
)

func checkCommitment(f *findings, field string, c *commitment.Commitment, deep bool) {
	if c == nil {
		f.add("missing %s", field)
		return
	}

	f.requireDigest(field+".id", c.ID)
	f.requireDigest(field+".root_hash", c.RootHash)
	if c.TileSize <= 0 {
		f.add("%s.tile_size must be positive", field)
	}
	if c.TileCount <= 0 {
		f.add("%s.tile_count must be positive", field)
	}
	if c.ContentLength < 0 {
		f.add("%s.content_length must not be negative", field)
	}
	if c.Width < 0 || c.Height < 0 || c.Channels < 0 {
		f.add("%s shape must not be negative", field)
	}

	if !deep || c.TileSize <= 0 {
		return
	}
	if c.TileCount != commitment.TileCount(c.ContentLength, c.TileSize) {
		f.add("%s.tile_count inconsistent with content length and tile size", field)
	}
	if c.TreeDepth != commitment.Depth(c.TileCount) {
		f.add("%s.tree_depth inconsistent with tile count", field)
	}
	if c.IsImage() && c.Width*c.Height*c.Channels != c.ContentLength {
		f.add("%s shape inconsistent with content length", field)
	}
}

func (c *Checker) checkProof(f *findings, p *proof.Proof, deep bool) {
	if p == nil {
		f.add("missing proof")
		return
	}

	if p.ID == "" {
		f.add("missing id")
	}
	if p.TransformationType == "" {
		f.add("missing transformation_type")
	}
	checkCommitment(f, "input_commitment", p.InputCommitment, deep)
	checkCommitment(f, "output_commitment", p.OutputCommitment, deep)
	c.checkTime(f, "created_at", p.CreatedAt)

	switch p.PayloadKind {
	case proof.PayloadKindHashCommitment, proof.PayloadKindTileInclusion, proof.PayloadKindZKSnark:
	default:
		f.add("unrecognized payload_kind %q", p.PayloadKind)
	}

	kind, err := p.Payload.Kind()
	if err != nil {
		f.add("malformed payload")
	} else {
		if kind != p.PayloadKind {
			f.add("payload variant %s does not match payload_kind %s", kind, p.PayloadKind)
		}
		f.requireDigest("payload.binding", p.Payload.Binding())
		if kind == proof.PayloadKindZKSnark {
			if _, err := hex.DecodeString(p.Payload.ZKSnark.Proof); err != nil || p.Payload.ZKSnark.Proof == "" {
				f.add("payload.proof is not hex-encoded")
			}
			if p.Payload.ZKSnark.Provider == "" || p.Payload.ZKSnark.Circuit == "" {
				f.add("payload must name its zk provider and circuit")
			}
		}
	}

	if p.PayloadKind == proof.PayloadKindHashCommitment && !p.Advisory {
		f.add("hash_commitment proof is not flagged advisory")
	}

	supported := proof.IsSupported(p.TransformationType)
	if !supported && p.PayloadKind != proof.PayloadKindHashCommitment && p.PayloadKind != "" {
		f.add("%s payload claimed for unsupported transformation %q", p.PayloadKind, p.TransformationType)
	}

	var expected proof.Shape
	boundsChecked := false
	if supported && p.InputCommitment != nil && p.InputCommitment.IsImage() {
		shape, err := p.Transformation().OutputShape(proof.CommitmentShape(p.InputCommitment))
		if err != nil {
			f.add("transformation params out of bounds")
		} else {
			expected = shape
			boundsChecked = true
		}
	}

	if !deep {
		return
	}

	if boundsChecked && p.OutputCommitment != nil && expected != proof.CommitmentShape(p.OutputCommitment) {
		f.add("output dimensions inconsistent with transformation params")
	}
	if supported && p.InputCommitment != nil && !p.InputCommitment.IsImage() {
		f.add("structural transformation over non-image commitment")
	}
	if p.Payload != nil && p.Payload.TileInclusion != nil && p.InputCommitment != nil && p.OutputCommitment != nil {
		payload := p.Payload.TileInclusion
		if payload.InputShape != proof.CommitmentShape(p.InputCommitment) || payload.OutputShape != proof.CommitmentShape(p.OutputCommitment) {
			f.add("declared payload shapes inconsistent with commitments")
		}
		if payload.OutputTileCount != p.OutputCommitment.TileCount {
			f.add("declared output tile count inconsistent with output commitment")
		}
	}
}

func (c *Checker) checkRegionProof(f *findings, p *region.Proof, deep bool) {
	if p == nil {
		f.add("missing region proof")
		return
	}

	if p.ID == "" {
		f.add("missing id")
	}
	switch p.Kind {
	case region.KindReveal:
	case region.KindRedact:
		if p.Mode != region.ModeBlack && p.Mode != region.ModeBlur {
			f.add("unrecognized redaction mode %q", p.Mode)
		}
	default:
		f.add("unrecognized region proof kind %q", p.Kind)
	}

	checkCommitment(f, "original_commitment", p.OriginalCommitment, deep)
	checkCommitment(f, "result_commitment", p.ResultCommitment, deep)
	c.checkTime(f, "created_at", p.CreatedAt)

	if len(p.Regions) == 0 {
		f.add("missing regions")
	}
	for i, r := range p.Regions {
		if r.Width <= 0 || r.Height <= 0 || r.X < 0 || r.Y < 0 {
			f.add("region %d out of bounds", i)
		} else if p.OriginalCommitment != nil && r.Validate(p.OriginalCommitment.Width, p.OriginalCommitment.Height) != nil {
			f.add("region %d exceeds the original image", i)
		}
	}

	tileCount := 0
	if p.OriginalCommitment != nil {
		tileCount = p.OriginalCommitment.TileCount
	}
	for _, i := range append(append([]int{}, p.AffectedTiles...), p.UnaffectedTiles...) {
		if i < 0 || i >= tileCount {
			f.add("tile index %d out of range", i)
			break
		}
	}
	for _, incl := range append(append([]*region.Inclusion{}, p.Inclusions...), p.ResultInclusions...) {
		if incl == nil {
			f.add("missing inclusion")
			continue
		}
		f.requireDigest("inclusion.leaf_hash", incl.LeafHash)
		for _, h := range incl.Path {
			if !common.IsHexDigest(h) {
				f.add("inclusion path for tile %d is not hex-encoded", incl.Index)
				break
			}
		}
	}
	if p.Kind == region.KindRedact && len(p.ResultInclusions) != len(p.UnaffectedTiles) {
		f.add("result inclusions do not cover the unaffected tiles")
	}

	if !deep || len(f.reasons) > 0 {
		return
	}

	o := p.OriginalCommitment
	if o.TileCount > region.MaxTiles {
		f.add("original commitment has too many tiles for a region proof")
		return
	}
	affected, err := region.AffectedTiles(o.Width, o.Height, o.Channels, o.TileSize, p.Regions)
	if err != nil {
		f.add("regions cannot be mapped onto the original tiles")
		return
	}

	declared := map[int]bool{}
	for _, i := range p.AffectedTiles {
		declared[i] = true
	}
	for _, i := range p.UnaffectedTiles {
		if declared[i] {
			f.add("tile %d declared both affected and unaffected", i)
			return
		}
	}
	if !sameIndices(affected, p.AffectedTiles) {
		f.add("declared affected tiles do not match the regions")
	}
	if !sameIndices(region.Complement(o.TileCount, affected), p.UnaffectedTiles) {
		f.add("declared unaffected tiles are not the complement of the affected tiles")
	}

	covered := p.UnaffectedTiles
	if p.Kind == region.KindReveal {
		covered = p.AffectedTiles
	}
	if len(p.Inclusions) != len(covered) {
		f.add("inclusions do not cover the attested tiles")
	}
	for _, incl := range p.Inclusions {
		if len(incl.Path) != o.TreeDepth {
			f.add("inclusion path for tile %d inconsistent with tree depth", incl.Index)
			break
		}
	}
}

func (c *Checker) checkEntry(f *findings, e *tlog.Entry, deep bool) {
	if e == nil {
		f.add("missing log entry")
		return
	}

	f.requireDigest("content_hash", e.ContentHash)
	f.requireDigest("previous_hash", e.PreviousHash)
	f.requireDigest("entry_hash", e.EntryHash)
	if sig, err := hex.DecodeString(e.Signature); err != nil || len(sig) == 0 {
		f.add("signature is not hex-encoded")
	}
	c.checkTimestampMs(f, "timestamp_ms", e.TimestampMs)

	if !deep {
		return
	}
	if e.LogIndex == 0 && e.PreviousHash != common.ZeroHash {
		f.add("genesis entry does not link to the zero hash")
	}
	if e.LogIndex > 0 && e.PreviousHash == common.ZeroHash {
		f.add("entry %d links to the zero hash", e.LogIndex)
	}
	if e.EntryHash != e.ComputeEntryHash() {
		f.add("entry_hash inconsistent with entry fields")
	}
}

func (c *Checker) checkEntries(f *findings, entries []*tlog.Entry, deep bool) {
	if len(entries) == 0 {
		f.add("missing log entries")
		return
	}

	for i, e := range entries {
		before := len(f.reasons)
		c.checkEntry(f, e, deep)
		if len(f.reasons) > before {
			f.add("entry at position %d rejected", i)
			continue
		}
		if i == 0 {
			continue
		}

		prev := entries[i-1]
		if prev == nil {
			continue
		}
		if e.LogIndex != prev.LogIndex+1 {
			f.add("log index %d does not follow %d", e.LogIndex, prev.LogIndex)
		}
		if e.TimestampMs < prev.TimestampMs {
			f.add("timestamp of entry %d precedes its predecessor", e.LogIndex)
		}
		if deep && e.PreviousHash != prev.EntryHash {
			f.add("entry %d does not link to its predecessor", e.LogIndex)
		}
	}
}

func (c *Checker) checkAttestation(f *findings, a *temporal.VideoAttestation, deep bool) {
	if a == nil {
		f.add("missing video attestation")
		return
	}

	if a.ID == "" {
		f.add("missing id")
	}
	if _, err := temporal.ParseMode(string(a.Mode)); err != nil || a.Mode == "" {
		f.add("unrecognized attestation mode %q", a.Mode)
	}
	if a.FrameCount <= 0 {
		f.add("frame_count must be positive")
	}
	if a.DurationMs < 0 {
		f.add("duration_ms must not be negative")
	}
	f.requireDigest("start_hash", a.StartHash)
	f.requireDigest("end_hash", a.EndHash)
	c.checkTime(f, "created_at", a.CreatedAt)

	for i, frame := range a.Frames {
		if frame == nil {
			f.add("missing frame at position %d", i)
			return
		}
		if !common.IsHexDigest(frame.Hash) || !common.IsHexDigest(frame.ChainHash) {
			f.add("frame %d hashes are not hex-encoded digests", frame.Index)
		}
		if frame.PreviousHash != "" && !common.IsHexDigest(frame.PreviousHash) {
			f.add("frame %d previous_hash is not a hex-encoded digest", frame.Index)
		}
		if frame.TimestampMs < 0 {
			f.add("frame %d timestamp must not be negative", frame.Index)
		}
		if i > 0 {
			prev := a.Frames[i-1]
			if frame.Index <= prev.Index {
				f.add("frame index %d does not increase", frame.Index)
			}
			if frame.TimestampMs < prev.TimestampMs {
				f.add("frame %d timestamp precedes its predecessor", frame.Index)
			}
		}
	}

	if !deep {
		return
	}
	if a.FrameCount != len(a.Frames) {
		f.add("frame_count inconsistent with attested frames")
	}
	if len(a.Frames) == 0 {
		return
	}
	if a.StartHash != a.Frames[0].Hash {
		f.add("start_hash inconsistent with first frame")
	}
	if a.EndHash != a.Frames[len(a.Frames)-1].Hash {
		f.add("end_hash inconsistent with last frame")
	}
	if a.Frames[0].PreviousHash != "" {
		f.add("first frame claims a predecessor")
	}
	for i := 1; i < len(a.Frames); i++ {
		if a.Frames[i].PreviousHash != a.Frames[i-1].Hash {
			f.add("frame %d does not link to its predecessor", a.Frames[i].Index)
		}
	}
}

func sameIndices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
