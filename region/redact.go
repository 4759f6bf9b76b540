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
	"time"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
)

// RedactResult is the redacted image and the proof that every tile outside
// the regions is unchanged
type RedactResult struct {
	Redacted *commitment.Image `json:"redacted"`
	Proof    *Proof            `json:"proof"`
}

// ParseMode returns the redaction mode; the empty string selects black
func ParseMode(mode string) (Mode, error) {
	switch Mode(mode) {
	case "", ModeBlack:
		return ModeBlack, nil
	case ModeBlur:
		return ModeBlur, nil
	}
	return "", fmt.Errorf("unsupported redaction mode %q; %w", mode, common.ErrInvalidTransformationParams)
}

// Redact applies the mode to every region of the original image
func Redact(original *commitment.Image, regions []Region, mode Mode, tileSize int, opts ...commitment.Option) (*RedactResult, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	tree, c, err := commitment.CommitImageTree(original, tileSize, opts...)
	if err != nil {
		return nil, err
	}
	if err := checkTileCount(c); err != nil {
		return nil, err
	}

	affected, err := AffectedTiles(original.Width, original.Height, original.Channels, tileSize, regions)
	if err != nil {
		return nil, err
	}
	unaffected := Complement(c.TileCount, affected)

	incl, err := inclusions(tree, unaffected)
	if err != nil {
		return nil, err
	}

	redacted := original.Clone()
	for _, r := range regions {
		switch mode {
		case ModeBlack:
			black(redacted, r)
		case ModeBlur:
			blur(redacted, r)
		}
	}

	resultTree, result, err := commitment.CommitImageTree(redacted, tileSize, commitment.WithAlgorithm(c.Algorithm))
	if err != nil {
		return nil, err
	}

	resultIncl, err := inclusions(resultTree, unaffected)
	if err != nil {
		return nil, err
	}

	id, err := common.NewID()
	if err != nil {
		return nil, err
	}

	return &RedactResult{
		Redacted: redacted,
		Proof: &Proof{
			ID:                 id,
			Kind:               KindRedact,
			Mode:               mode,
			OriginalCommitment: c,
			Regions:            regions,
			AffectedTiles:      affected,
			UnaffectedTiles:    unaffected,
			Inclusions:         incl,
			ResultCommitment:   result,
			ResultInclusions:   resultIncl,
			CreatedAt:          time.Now().UTC(),
		},
	}, nil
}

func black(img *commitment.Image, r Region) {
	for y := r.Y; y < r.Y+r.Height; y++ {
		start := img.Offset(r.X, y)
		row := img.Pix[start : start+r.Width*img.Channels]
		for i := range row {
			row[i] = 0
		}
	}
}

// blur averages each region pixel over the window of radius BlurRadius,
// clipped to the region so no pixel outside the region is read or written
func blur(img *commitment.Image, r Region) {
	source := Extract(img, r)
	channels := img.Channels

	for y := 0; y < r.Height; y++ {
		y0, y1 := clip(y-BlurRadius, r.Height), clip(y+BlurRadius, r.Height)
		for x := 0; x < r.Width; x++ {
			x0, x1 := clip(x-BlurRadius, r.Width), clip(x+BlurRadius, r.Width)
			count := (y1 - y0 + 1) * (x1 - x0 + 1)

			dst := img.Offset(r.X+x, r.Y+y)
			for ch := 0; ch < channels; ch++ {
				sum := 0
				for wy := y0; wy <= y1; wy++ {
					for wx := x0; wx <= x1; wx++ {
						sum += int(source[(wy*r.Width+wx)*channels+ch])
					}
				}
				img.Pix[dst+ch] = byte(sum / count)
			}
		}
	}
}

func clip(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
