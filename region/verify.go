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

package region

import (
	"bytes"
	"fmt"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
)

// Supplied is the optional material a verifier checks against a proof
type Supplied struct {
	RevealedBytes []byte            `json:"revealed_bytes,omitempty"`
	Disclosures   []*Disclosure     `json:"disclosures,omitempty"`
	Redacted      *commitment.Image `json:"redacted,omitempty"`
}

// Result is the outcome of a region proof verification
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type tileSetError struct {
	msg string
}

func (e *tileSetError) Error() string {
	return e.msg
}

// Verify checks the proof. The declared tile sets are checked against the
// regions before any hashing takes place.
func Verify(p *Proof, supplied *Supplied) *Result {
	if err := verify(p, supplied); err != nil {
		common.Log.Debugf("region proof verification failed; %s", err.Error())
		if _, ok := err.(*tileSetError); ok {
			return &Result{Reason: ReasonTileSetMismatch}
		}
		return &Result{Reason: common.Reason(err)}
	}
	return &Result{Valid: true}
}

func verify(p *Proof, supplied *Supplied) error {
	if err := wellFormed(p); err != nil {
		return err
	}

	if err := verifyTileSets(p); err != nil {
		return err
	}

	expected := p.UnaffectedTiles
	if p.Kind == KindReveal {
		expected = p.AffectedTiles
	}
	if len(p.Inclusions) != len(expected) {
		return &tileSetError{fmt.Sprintf("%d inclusions provided for %d tiles", len(p.Inclusions), len(expected))}
	}

	leaves := make(map[int]string, len(p.Inclusions))
	for i, incl := range p.Inclusions {
		if incl == nil || incl.Index != expected[i] {
			return &tileSetError{fmt.Sprintf("inclusion %d does not cover tile %d", i, expected[i])}
		}
		ok, err := commitment.VerifyLeafHash(p.OriginalCommitment, incl.Index, incl.LeafHash, incl.Path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("inclusion path for tile %d does not match original root; %w", incl.Index, common.ErrHashMismatch)
		}
		leaves[incl.Index] = incl.LeafHash
	}

	if p.Kind == KindRedact {
		if err := verifyResultInclusions(p, leaves); err != nil {
			return err
		}
	}

	if supplied == nil {
		return nil
	}

	switch p.Kind {
	case KindReveal:
		return verifyRevealed(p, leaves, supplied)
	default:
		return verifyRedacted(p, leaves, supplied)
	}
}

func wellFormed(p *Proof) error {
	if p == nil {
		return fmt.Errorf("nil region proof; %w", common.ErrMalformedContent)
	}
	if p.OriginalCommitment == nil || p.ResultCommitment == nil {
		return fmt.Errorf("region proof requires original and result commitments; %w", common.ErrMalformedContent)
	}
	if err := p.OriginalCommitment.Validate(); err != nil {
		return err
	}
	if err := p.ResultCommitment.Validate(); err != nil {
		return err
	}

	o, res := p.OriginalCommitment, p.ResultCommitment
	if !o.IsImage() || !res.IsImage() {
		return fmt.Errorf("region proofs require image commitments; %w", common.ErrMalformedContent)
	}
	if err := checkTileCount(o); err != nil {
		return err
	}
	if res.TileSize != o.TileSize || res.Algorithm != o.Algorithm {
		return fmt.Errorf("result commitment geometry differs from original; %w", common.ErrMalformedContent)
	}
	if len(p.Regions) > MaxRegions {
		return fmt.Errorf("%d regions exceed the limit of %d; %w", len(p.Regions), MaxRegions, common.ErrMalformedContent)
	}

	switch p.Kind {
	case KindReveal:
		if len(p.Regions) != 1 {
			return fmt.Errorf("reveal proofs cover exactly one region; %w", common.ErrMalformedContent)
		}
		r := p.Regions[0]
		if res.Width != r.Width || res.Height != r.Height || res.Channels != o.Channels {
			return fmt.Errorf("result commitment shape does not match revealed region; %w", common.ErrInvalidTransformationParams)
		}
	case KindRedact:
		if _, err := ParseMode(string(p.Mode)); err != nil {
			return err
		}
		if o.Width != res.Width || o.Height != res.Height || o.Channels != res.Channels {
			return fmt.Errorf("redacted commitment shape does not match original; %w", common.ErrInvalidTransformationParams)
		}
	default:
		return fmt.Errorf("unknown region proof kind %q; %w", p.Kind, common.ErrMalformedContent)
	}

	return nil
}

// verifyTileSets checks the affected set is the one the regions map to, and
// the unaffected set is exactly its complement
func verifyTileSets(p *Proof) error {
	c := p.OriginalCommitment
	affected, err := AffectedTiles(c.Width, c.Height, c.Channels, c.TileSize, p.Regions)
	if err != nil {
		return err
	}

	if !equalIndices(affected, p.AffectedTiles) {
		return &tileSetError{"declared affected tiles do not match the regions"}
	}

	isAffected := make(map[int]bool, len(affected))
	for _, i := range affected {
		isAffected[i] = true
	}
	for _, i := range p.UnaffectedTiles {
		if isAffected[i] {
			return &tileSetError{fmt.Sprintf("tile %d is declared unaffected but overlaps a region", i)}
		}
	}

	if !equalIndices(Complement(c.TileCount, affected), p.UnaffectedTiles) {
		return &tileSetError{"declared unaffected tiles are not the complement of the affected tiles"}
	}

	return nil
}

// verifyResultInclusions checks every unaffected original leaf sits at the
// same index of the redacted tree
func verifyResultInclusions(p *Proof, leaves map[int]string) error {
	if len(p.ResultInclusions) != len(p.UnaffectedTiles) {
		return &tileSetError{fmt.Sprintf("%d result inclusions provided for %d unaffected tiles", len(p.ResultInclusions), len(p.UnaffectedTiles))}
	}

	for i, incl := range p.ResultInclusions {
		if incl == nil || incl.Index != p.UnaffectedTiles[i] {
			return &tileSetError{fmt.Sprintf("result inclusion %d does not cover tile %d", i, p.UnaffectedTiles[i])}
		}
		if incl.LeafHash != leaves[incl.Index] {
			return fmt.Errorf("unaffected tile %d differs from the original; %w", incl.Index, common.ErrHashMismatch)
		}
		ok, err := commitment.VerifyLeafHash(p.ResultCommitment, incl.Index, incl.LeafHash, incl.Path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("inclusion path for tile %d does not match redacted root; %w", incl.Index, common.ErrHashMismatch)
		}
	}

	return nil
}

// verifyRevealed rebuilds the region from the disclosed covering tiles; revealed
// bytes are only trusted once they match that reconstruction
func verifyRevealed(p *Proof, leaves map[int]string, supplied *Supplied) error {
	c := p.OriginalCommitment
	r := p.Regions[0]

	if len(supplied.Disclosures) == 0 {
		if supplied.RevealedBytes != nil {
			return fmt.Errorf("revealed bytes require the disclosed covering tiles; %w", common.ErrMalformedContent)
		}
		return nil
	}

	tiles := make(map[int][]byte, len(supplied.Disclosures))
	for _, d := range supplied.Disclosures {
		if d == nil {
			return fmt.Errorf("nil tile disclosure; %w", common.ErrMalformedContent)
		}
		leaf, ok := leaves[d.Index]
		if !ok {
			return fmt.Errorf("disclosed tile %d is not covered by the proof; %w", d.Index, common.ErrMalformedContent)
		}
		if _, dup := tiles[d.Index]; dup {
			return fmt.Errorf("tile %d disclosed more than once; %w", d.Index, common.ErrMalformedContent)
		}
		if len(d.Data) != tileLength(c, d.Index) {
			return fmt.Errorf("disclosed tile %d has length %d; %w", d.Index, len(d.Data), common.ErrMalformedContent)
		}
		hash, err := commitment.HashTile(c.Algorithm, d.Data)
		if err != nil {
			return err
		}
		if hash != leaf {
			return fmt.Errorf("disclosed tile %d does not match its leaf hash; %w", d.Index, common.ErrHashMismatch)
		}
		tiles[d.Index] = d.Data
	}
	if len(tiles) != len(leaves) {
		return fmt.Errorf("%d of %d covering tiles disclosed; %w", len(tiles), len(leaves), common.ErrMalformedContent)
	}

	region := extractDisclosed(c, r, tiles)
	if supplied.RevealedBytes != nil && !bytes.Equal(region, supplied.RevealedBytes) {
		return fmt.Errorf("revealed bytes do not match the disclosed tiles; %w", common.ErrHashMismatch)
	}

	recomputed, err := commitment.CommitImage(&commitment.Image{
		Width:    r.Width,
		Height:   r.Height,
		Channels: c.Channels,
		Pix:      region,
	}, p.ResultCommitment.TileSize, commitment.WithAlgorithm(p.ResultCommitment.Algorithm))
	if err != nil {
		return err
	}
	if !recomputed.Equal(p.ResultCommitment) {
		return fmt.Errorf("revealed bytes do not match result commitment; %w", common.ErrHashMismatch)
	}

	return nil
}

// tileLength is the byte length of tile i; only the last tile may be short
func tileLength(c *commitment.Commitment, i int) int {
	remaining := c.ContentLength - i*c.TileSize
	if remaining < c.TileSize {
		return remaining
	}
	return c.TileSize
}

// extractDisclosed copies the region's rows out of the disclosed tiles,
// which must cover every row span of the region
func extractDisclosed(c *commitment.Commitment, r Region, tiles map[int][]byte) []byte {
	rowLength := r.Width * c.Channels
	out := make([]byte, 0, rowLength*r.Height)
	for y := r.Y; y < r.Y+r.Height; y++ {
		start := (y*c.Width + r.X) * c.Channels
		end := start + rowLength
		for start < end {
			tile := tiles[start/c.TileSize]
			offset := start % c.TileSize
			n := len(tile) - offset
			if n <= 0 {
				return out
			}
			if n > end-start {
				n = end - start
			}
			out = append(out, tile[offset:offset+n]...)
			start += n
		}
	}
	return out
}

func verifyRedacted(p *Proof, leaves map[int]string, supplied *Supplied) error {
	if supplied.Redacted == nil {
		return nil
	}

	tree, recomputed, err := commitment.CommitImageTree(supplied.Redacted, p.ResultCommitment.TileSize, commitment.WithAlgorithm(p.ResultCommitment.Algorithm))
	if err != nil {
		return err
	}
	if !recomputed.Equal(p.ResultCommitment) {
		return fmt.Errorf("redacted image does not match result commitment; %w", common.ErrHashMismatch)
	}

	for _, i := range p.UnaffectedTiles {
		leaf, err := tree.LeafHash(i)
		if err != nil {
			return err
		}
		if leaf != leaves[i] {
			return fmt.Errorf("unaffected tile %d differs from the original; %w", i, common.ErrHashMismatch)
		}
	}

	return nil
}

func equalIndices(a, b []int) bool {
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
