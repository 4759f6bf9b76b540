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

package commitment

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/provideplatform/provenance/common"
)

const (
	// MaxDimension bounds the width and height of a committed image
	MaxDimension = 1 << 16

	// MaxChannels bounds the bytes per pixel of a committed image
	MaxChannels = 16
)

// Commitment is the merkle commitment over the tiles of a piece of content;
// the content bytes themselves are never retained
type Commitment struct {
	ID            string `json:"id"`
	Algorithm     string `json:"algorithm"`
	RootHash      string `json:"root_hash"`
	TileSize      int    `json:"tile_size"`
	TileCount     int    `json:"tile_count"`
	TreeDepth     int    `json:"tree_depth"`
	ContentLength int    `json:"content_length"`

	Width    int `json:"width,omitempty"`
	Height   int `json:"height,omitempty"`
	Channels int `json:"channels,omitempty"`
}

// Image is a raw row-major pixel buffer with a fixed number of bytes per pixel
type Image struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pix      []byte `json:"pix"`
}

// NewImage allocates a zeroed image
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Validate returns an error if the pixel buffer does not match the declared shape
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("nil image; %w", common.ErrMalformedContent)
	}
	if !validShape(img.Width, img.Height, img.Channels) {
		return fmt.Errorf("invalid image shape %dx%dx%d; %w", img.Width, img.Height, img.Channels, common.ErrMalformedContent)
	}
	if len(img.Pix) != img.Width*img.Height*img.Channels {
		return fmt.Errorf("image buffer length %d does not match shape %dx%dx%d; %w", len(img.Pix), img.Width, img.Height, img.Channels, common.ErrMalformedContent)
	}
	return nil
}

// validShape bounds each dimension so their product cannot overflow
func validShape(width, height, channels int) bool {
	return width > 0 && width <= MaxDimension &&
		height > 0 && height <= MaxDimension &&
		channels > 0 && channels <= MaxChannels
}

// Offset returns the byte offset of the pixel at (x, y)
func (img *Image) Offset(x, y int) int {
	return (y*img.Width + x) * img.Channels
}

// Clone returns a deep copy of the image
func (img *Image) Clone() *Image {
	pix := make([]byte, len(img.Pix))
	copy(pix, img.Pix)
	return &Image{
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
		Pix:      pix,
	}
}

// Commit computes the tile commitment over content
func Commit(content []byte, tileSize int, opts ...Option) (*Commitment, error) {
	tree, err := BuildTree(content, tileSize, opts...)
	if err != nil {
		return nil, err
	}

	return tree.commitment(len(content), tileSize, 0, 0, 0), nil
}

// CommitImage computes the tile commitment over the pixel buffer and records its shape
func CommitImage(img *Image, tileSize int, opts ...Option) (*Commitment, error) {
	_, c, err := CommitImageTree(img, tileSize, opts...)
	return c, err
}

// CommitImageTree returns the commitment together with the tree it was built from,
// for callers that go on to extract inclusion paths
func CommitImageTree(img *Image, tileSize int, opts ...Option) (*Tree, *Commitment, error) {
	tree, err := BuildImageTree(img, tileSize, opts...)
	if err != nil {
		return nil, nil, err
	}

	return tree, tree.commitment(len(img.Pix), tileSize, img.Width, img.Height, img.Channels), nil
}

// BuildImageTree builds the tile tree over the pixel buffer
func BuildImageTree(img *Image, tileSize int, opts ...Option) (*Tree, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return BuildTree(img.Pix, tileSize, opts...)
}

// commitment describes the tree built over content of the given shape
func (tree *Tree) commitment(length, tileSize, width, height, channels int) *Commitment {
	c := &Commitment{
		Algorithm:     tree.Algorithm,
		RootHash:      tree.Root(),
		TileSize:      tileSize,
		TileCount:     tree.Length(),
		TreeDepth:     tree.Depth(),
		ContentLength: length,
		Width:         width,
		Height:        height,
		Channels:      channels,
	}
	c.ID = c.digest()
	return c
}

// digest derives the commitment id from its canonical descriptor
func (c *Commitment) digest() string {
	return common.SHA256(fmt.Sprintf("%s:%s:%d:%d:%d:%d:%d", c.Algorithm, c.RootHash, c.TileSize, c.ContentLength, c.Width, c.Height, c.Channels))
}

// Validate checks the commitment is internally consistent without access to content
func (c *Commitment) Validate() error {
	if c == nil {
		return fmt.Errorf("nil commitment; %w", common.ErrMalformedContent)
	}
	if _, err := HashFuncFactory(c.Algorithm); err != nil {
		return err
	}
	if !common.IsHexDigest(c.RootHash) {
		return fmt.Errorf("invalid commitment root hash %q; %w", c.RootHash, common.ErrMalformedContent)
	}
	if c.TileSize <= 0 || c.ContentLength < 0 {
		return fmt.Errorf("invalid commitment geometry; %w", common.ErrMalformedContent)
	}
	if c.TileCount != TileCount(c.ContentLength, c.TileSize) {
		return fmt.Errorf("commitment tile count %d inconsistent with content length %d; %w", c.TileCount, c.ContentLength, common.ErrMalformedContent)
	}
	if c.TreeDepth != Depth(c.TileCount) {
		return fmt.Errorf("commitment tree depth %d inconsistent with tile count %d; %w", c.TreeDepth, c.TileCount, common.ErrMalformedContent)
	}
	if c.Width != 0 || c.Height != 0 || c.Channels != 0 {
		if !validShape(c.Width, c.Height, c.Channels) {
			return fmt.Errorf("invalid commitment shape %dx%dx%d; %w", c.Width, c.Height, c.Channels, common.ErrMalformedContent)
		}
	}
	if c.IsImage() && c.Width*c.Height*c.Channels != c.ContentLength {
		return fmt.Errorf("commitment shape %dx%dx%d inconsistent with content length %d; %w", c.Width, c.Height, c.Channels, c.ContentLength, common.ErrMalformedContent)
	}
	if c.ID != "" && c.ID != c.digest() {
		return fmt.Errorf("commitment id %s does not match descriptor; %w", c.ID, common.ErrHashMismatch)
	}
	return nil
}

// IsImage returns true if the commitment records an image shape
func (c *Commitment) IsImage() bool {
	return c.Width > 0 && c.Height > 0 && c.Channels > 0
}

// Equal returns true if both commitments bind the same content under the same geometry
func (c *Commitment) Equal(other *Commitment) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.RootHash == other.RootHash &&
		c.Algorithm == other.Algorithm &&
		c.TileSize == other.TileSize &&
		c.ContentLength == other.ContentLength &&
		c.Width == other.Width &&
		c.Height == other.Height &&
		c.Channels == other.Channels
}

// VerifyLeaf checks that tileBytes is the tile at tileIndex of the committed content
func VerifyLeaf(c *Commitment, tileIndex int, tileBytes []byte, path []string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("nil commitment; %w", common.ErrMalformedContent)
	}
	leaf, err := HashTile(c.Algorithm, tileBytes)
	if err != nil {
		return false, err
	}
	return VerifyLeafHash(c, tileIndex, leaf, path)
}

// VerifyLeafHash checks that the hex-encoded leaf hash sits at tileIndex of the committed tree
func VerifyLeafHash(c *Commitment, tileIndex int, leafHash string, path []string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("nil commitment; %w", common.ErrMalformedContent)
	}
	if tileIndex < 0 || tileIndex >= c.TileCount {
		return false, fmt.Errorf("tile index %d out of range [0, %d); %w", tileIndex, c.TileCount, common.ErrMalformedContent)
	}
	if len(path) != c.TreeDepth {
		return false, fmt.Errorf("inclusion path length %d does not match tree depth %d; %w", len(path), c.TreeDepth, common.ErrMalformedContent)
	}

	h, err := HashFuncFactory(c.Algorithm)
	if err != nil {
		return false, err
	}

	leaf, err := hex.DecodeString(leafHash)
	if err != nil {
		return false, fmt.Errorf("invalid leaf hash %s; %w", leafHash, common.ErrMalformedContent)
	}

	root, err := hex.DecodeString(c.RootHash)
	if err != nil {
		return false, fmt.Errorf("invalid root hash %s; %w", c.RootHash, common.ErrMalformedContent)
	}

	computed, err := computeRoot(h, leaf, tileIndex, path)
	if err != nil {
		return false, err
	}

	return bytes.Equal(computed, root), nil
}
