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
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
)

// Disclosure is the raw content of a disclosed tile
type Disclosure struct {
	Index int    `json:"index"`
	Data  []byte `json:"data"`
}

// RevealResult is the disclosed region and the proof it came from the original
type RevealResult struct {
	RevealedBytes []byte        `json:"revealed_bytes"`
	Disclosures   []*Disclosure `json:"disclosures"`
	Proof         *Proof        `json:"proof"`
}

// Reveal discloses the region of the original image; inclusion data is
// produced for exactly the tiles covering the region
func Reveal(original *commitment.Image, r Region, tileSize int, opts ...commitment.Option) (*RevealResult, error) {
	tree, c, err := commitment.CommitImageTree(original, tileSize, opts...)
	if err != nil {
		return nil, err
	}
	if err := checkTileCount(c); err != nil {
		return nil, err
	}

	regions := []Region{r}
	affected, err := AffectedTiles(original.Width, original.Height, original.Channels, tileSize, regions)
	if err != nil {
		return nil, err
	}

	incl, err := inclusions(tree, affected)
	if err != nil {
		return nil, err
	}

	revealed := Extract(original, r)
	result, err := commitment.CommitImage(&commitment.Image{
		Width:    r.Width,
		Height:   r.Height,
		Channels: original.Channels,
		Pix:      revealed,
	}, tileSize, commitment.WithAlgorithm(c.Algorithm))
	if err != nil {
		return nil, err
	}

	disclosures := make([]*Disclosure, 0, len(affected))
	for _, i := range affected {
		tile := commitment.Tile(original.Pix, tileSize, i)
		data := make([]byte, len(tile))
		copy(data, tile)
		disclosures = append(disclosures, &Disclosure{Index: i, Data: data})
	}

	id, err := common.NewID()
	if err != nil {
		return nil, err
	}

	return &RevealResult{
		RevealedBytes: revealed,
		Disclosures:   disclosures,
		Proof: &Proof{
			ID:                 id,
			Kind:               KindReveal,
			OriginalCommitment: c,
			Regions:            regions,
			AffectedTiles:      affected,
			UnaffectedTiles:    Complement(c.TileCount, affected),
			Inclusions:         incl,
			ResultCommitment:   result,
			CreatedAt:          time.Now().UTC(),
		},
	}, nil
}
