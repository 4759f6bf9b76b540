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
	"fmt"
	"sort"
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
)

// Kind distinguishes reveal proofs from redaction proofs
type Kind string

// Mode is the redaction operator applied to a region
type Mode string

const (
	// KindReveal discloses the region and withholds the rest of the image
	KindReveal Kind = "reveal"

	// KindRedact hides the regions and proves the rest of the image unchanged
	KindRedact Kind = "redact"

	// ModeBlur replaces region pixels with a box blur of the region
	ModeBlur Mode = "blur"

	// ModeBlack zeroes region pixels
	ModeBlack Mode = "black"
)

// BlurRadius is the half-width in pixels of the redaction box blur
const BlurRadius = 4

const (
	// MaxTiles bounds the tile count of an image a region proof can cover
	MaxTiles = 1 << 20

	// MaxRegions bounds the number of regions in a single proof
	MaxRegions = 64
)

// ReasonTileSetMismatch is reported when the declared tile sets are not the
// ones the regions map to
const ReasonTileSetMismatch = "TileSetMismatch"

// Region is a pixel rectangle
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Inclusion is the merkle inclusion data of a single original tile
type Inclusion struct {
	Index    int      `json:"index"`
	LeafHash string   `json:"leaf_hash"`
	Path     []string `json:"path"`
}

// Proof is a selective reveal or redaction proof; it carries hashes and
// indices only, never pixel data
type Proof struct {
	ID                 string                 `json:"id"`
	Kind               Kind                   `json:"kind"`
	Mode               Mode                   `json:"mode,omitempty"`
	OriginalCommitment *commitment.Commitment `json:"original_commitment"`
	Regions            []Region               `json:"regions"`
	AffectedTiles      []int                  `json:"affected_tiles"`
	UnaffectedTiles    []int                  `json:"unaffected_tiles"`
	Inclusions         []*Inclusion           `json:"inclusions"`
	ResultCommitment   *commitment.Commitment `json:"result_commitment"`

	// ResultInclusions places each unaffected original leaf in the redacted
	// tree; reveal proofs leave it empty
	ResultInclusions []*Inclusion `json:"result_inclusions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate returns an error if the region does not fit an image of the given size
func (r Region) Validate(width, height int) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %dx%d must have positive dimensions; %w", r.Width, r.Height, common.ErrInvalidTransformationParams)
	}
	if r.X < 0 || r.Y < 0 || r.X > width-r.Width || r.Y > height-r.Height {
		return fmt.Errorf("region (%d,%d %dx%d) out of bounds of %dx%d image; %w", r.X, r.Y, r.Width, r.Height, width, height, common.ErrInvalidTransformationParams)
	}
	return nil
}

// Contains returns true if the pixel lies inside the region
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// AffectedTiles returns, in ascending order, every tile holding at least one
// byte of any region row of a row-major width x height x channels buffer
func AffectedTiles(width, height, channels, tileSize int, regions []Region) ([]int, error) {
	if width <= 0 || height <= 0 || channels <= 0 ||
		width > commitment.MaxDimension || height > commitment.MaxDimension || channels > commitment.MaxChannels {
		return nil, fmt.Errorf("invalid image shape %dx%dx%d; %w", width, height, channels, common.ErrMalformedContent)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("invalid tile size %d; %w", tileSize, common.ErrMalformedContent)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("at least one region required; %w", common.ErrInvalidTransformationParams)
	}
	if len(regions) > MaxRegions {
		return nil, fmt.Errorf("%d regions exceed the limit of %d; %w", len(regions), MaxRegions, common.ErrInvalidTransformationParams)
	}

	affected := map[int]bool{}
	for _, r := range regions {
		if err := r.Validate(width, height); err != nil {
			return nil, err
		}

		for y := r.Y; y < r.Y+r.Height; y++ {
			start := (y*width + r.X) * channels
			end := (y*width + r.X + r.Width) * channels
			for tile := start / tileSize; tile <= (end-1)/tileSize; tile++ {
				affected[tile] = true
			}
		}
	}

	return sortedIndices(affected), nil
}

// Complement returns the tiles in [0, tileCount) absent from the given set;
// tileCount is clamped to MaxTiles
func Complement(tileCount int, tiles []int) []int {
	if tileCount > MaxTiles {
		tileCount = MaxTiles
	}

	excluded := make(map[int]bool, len(tiles))
	for _, i := range tiles {
		excluded[i] = true
	}

	complement := make([]int, 0)
	for i := 0; i < tileCount; i++ {
		if !excluded[i] {
			complement = append(complement, i)
		}
	}
	return complement
}

// Extract copies the region's pixels out of the image, row by row
func Extract(img *commitment.Image, r Region) []byte {
	out := make([]byte, 0, r.Width*r.Height*img.Channels)
	for y := r.Y; y < r.Y+r.Height; y++ {
		start := img.Offset(r.X, y)
		out = append(out, img.Pix[start:start+r.Width*img.Channels]...)
	}
	return out
}

// checkTileCount rejects images too finely tiled for a region proof
func checkTileCount(c *commitment.Commitment) error {
	if c.TileCount > MaxTiles {
		return fmt.Errorf("%d tiles exceed the region proof limit of %d; %w", c.TileCount, MaxTiles, common.ErrMalformedContent)
	}
	return nil
}

func sortedIndices(set map[int]bool) []int {
	indices := make([]int, 0, len(set))
	for i := range set {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// inclusions gathers the leaf hash and path of each tile
func inclusions(tree *commitment.Tree, tiles []int) ([]*Inclusion, error) {
	incl := make([]*Inclusion, 0, len(tiles))
	for _, i := range tiles {
		leaf, err := tree.LeafHash(i)
		if err != nil {
			return nil, err
		}
		path, err := tree.InclusionPath(i)
		if err != nil {
			return nil, err
		}
		incl = append(incl, &Inclusion{
			Index:    i,
			LeafHash: leaf,
			Path:     path,
		})
	}
	return incl, nil
}
