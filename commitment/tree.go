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
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"

	"github.com/provideplatform/provenance/common"
)

// Leaf and interior hashes are domain separated so an interior node can
// never be presented as a leaf
var (
	leafPrefix = []byte{0x00}
	nodePrefix = []byte{0x01}
)

// Node is a single node or leaf in the tile tree
type Node struct {
	hash   []byte
	index  int
	Parent *Node
}

// Hash returns the hex representation of the hash of the node
func (node *Node) Hash() string {
	return hex.EncodeToString(node.hash)
}

// Index returns the index of this node in its level
func (node *Node) Index() int {
	return node.index
}

// String returns the hash of this node. Alias to Hash()
func (node *Node) String() string {
	return node.Hash()
}

// Tree is a binary merkle tree whose leaves are the hashes of fixed-size
// tiles; an unpaired node at the end of a level is paired with itself
type Tree struct {
	Algorithm string
	Nodes     [][]*Node
	RootNode  *Node

	hash HashFunc
}

// NewTree returns an empty tree using the named hash algorithm
func NewTree(algorithm string) (*Tree, error) {
	h, err := HashFuncFactory(algorithm)
	if err != nil {
		return nil, err
	}

	return &Tree{
		Algorithm: normalizeAlgorithm(algorithm),
		Nodes:     make([][]*Node, 1),
		hash:      h,
	}, nil
}

// BuildTree splits content into tiles of tileSize bytes and builds the tree
// over them; empty content yields a single leaf over a zero-length tile
func BuildTree(content []byte, tileSize int, opts ...Option) (*Tree, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("invalid tile size %d; %w", tileSize, common.ErrMalformedContent)
	}

	options := resolveOptions(opts...)
	tree, err := NewTree(options.algorithm)
	if err != nil {
		return nil, err
	}

	count := TileCount(len(content), tileSize)
	for i := 0; i < count; i++ {
		tree.RawAdd(Tile(content, tileSize, i))
	}

	tree.Recalculate()
	return tree, nil
}

// TileCount returns the number of tiles for content of the given length
func TileCount(length, tileSize int) int {
	if length == 0 {
		return 1
	}
	return (length-1)/tileSize + 1
}

// Tile returns the bytes of tile i; the last tile may be short
func Tile(content []byte, tileSize, i int) []byte {
	start := i * tileSize
	if start >= len(content) {
		return content[len(content):]
	}
	end := start + tileSize
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

// Depth returns ceil(log2(n)) for n leaves
func Depth(leaves int) int {
	if leaves <= 1 {
		return 0
	}
	return bits.Len(uint(leaves - 1))
}

// HashLeaf returns the leaf hash of the given tile bytes
func (tree *Tree) HashLeaf(tile []byte) []byte {
	return tree.hash(leafPrefix, tile)
}

// HashTile returns the hex-encoded leaf hash of the tile under the named algorithm
func HashTile(algorithm string, tile []byte) (string, error) {
	h, err := HashFuncFactory(algorithm)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h(leafPrefix, tile)), nil
}

// RawAdd hashes the tile and appends the leaf without recalculating the tree
func (tree *Tree) RawAdd(tile []byte) (index int, hash string) {
	h := tree.HashLeaf(tile)
	index = len(tree.Nodes[0])
	tree.Nodes[0] = append(tree.Nodes[0], &Node{
		hash:  h,
		index: index,
	})
	return index, hex.EncodeToString(h)
}

func (tree *Tree) resizeVertically() {
	neededLevels := Depth(len(tree.Nodes[0])) + 1
	if len(tree.Nodes) < neededLevels {
		n := make([][]*Node, neededLevels)
		copy(n, tree.Nodes)
		tree.Nodes = n
	}
}

func (tree *Tree) createParent(left, right *Node) *Node {
	parentNode := &Node{
		hash:  tree.hash(nodePrefix, left.hash, right.hash),
		index: left.index / 2,
	}

	left.Parent = parentNode
	right.Parent = parentNode

	return parentNode
}

func (tree *Tree) getNodeSibling(level int, index int) *Node {
	nodesCount := len(tree.Nodes[level])
	if index%2 == 1 {
		return tree.Nodes[level][index-1]
	}

	if index == nodesCount-1 {
		return tree.Nodes[level][index]
	}

	return tree.Nodes[level][index+1]
}

// Recalculate recreates the whole tree bottom up and returns the hex string of the new root
func (tree *Tree) Recalculate() (treeRoot string) {
	if tree.Length() == 0 {
		return ""
	}

	tree.resizeVertically()
	levels := len(tree.Nodes)

	for i := 0; i < levels-1; i++ {
		levelLen := len(tree.Nodes[i])
		tree.Nodes[i+1] = make([]*Node, (levelLen/2)+(levelLen%2))
		for j := 0; j < levelLen; j += 2 {
			left := tree.Nodes[i][j]
			right := tree.getNodeSibling(i, j)
			tree.Nodes[i+1][j/2] = tree.createParent(left, right)
		}
	}

	tree.RootNode = tree.Nodes[levels-1][0]
	return tree.RootNode.Hash()
}

// Root returns the hex-encoded root hash
func (tree *Tree) Root() string {
	if tree.RootNode == nil {
		return ""
	}
	return tree.RootNode.Hash()
}

// Length returns the count of the tree leafs
func (tree *Tree) Length() int {
	return len(tree.Nodes[0])
}

// Depth returns the number of levels above the leaves
func (tree *Tree) Depth() int {
	return Depth(tree.Length())
}

// LeafHash returns the hex-encoded hash at the given leaf index
func (tree *Tree) LeafHash(index int) (string, error) {
	if index < 0 || index >= tree.Length() {
		return "", fmt.Errorf("tile index %d out of bounds; %w", index, common.ErrMalformedContent)
	}
	return tree.Nodes[0][index].Hash(), nil
}

// InclusionPath returns the sibling hashes, leaf level first, needed to
// recompute the root from the leaf at index
func (tree *Tree) InclusionPath(index int) ([]string, error) {
	if index < 0 || index >= tree.Length() {
		return nil, fmt.Errorf("tile index %d out of bounds; %w", index, common.ErrMalformedContent)
	}

	levels := len(tree.Nodes)
	path := make([]string, 0, levels-1)
	for level := 0; level < levels-1; level++ {
		path = append(path, tree.getNodeSibling(level, index).Hash())
		index /= 2
	}

	return path, nil
}

// String returns human readable version of the tree
func (tree *Tree) String() string {
	b := strings.Builder{}

	for i := len(tree.Nodes) - 1; i >= 0; i-- {
		ll := len(tree.Nodes[i])
		b.WriteString(fmt.Sprintf("Level: %v, Count: %v\n", i, ll))
		for k := 0; k < ll; k++ {
			b.WriteString(fmt.Sprintf("%v\t", tree.Nodes[i][k].Hash()))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// computeRoot folds the path into the leaf hash; the leaf index selects
// whether each sibling sits on the left or the right
func computeRoot(hash HashFunc, leafHash []byte, index int, path []string) ([]byte, error) {
	current := leafHash
	for _, h := range path {
		sibling, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("invalid inclusion path hash %s; %w", h, common.ErrMalformedContent)
		}

		if index%2 == 0 {
			current = hash(nodePrefix, current, sibling)
		} else {
			current = hash(nodePrefix, sibling, current)
		}
		index /= 2
	}
	return current, nil
}
