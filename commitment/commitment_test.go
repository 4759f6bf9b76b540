package commitment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContent(n int) []byte {
	content := make([]byte, n)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func TestCommitGeometry(t *testing.T) {
	c, err := Commit(testContent(10000), 1024)
	require.NoError(t, err)

	assert.Equal(t, 10, c.TileCount)
	assert.Equal(t, 4, c.TreeDepth)
	assert.Equal(t, 10000, c.ContentLength)
	assert.Equal(t, AlgorithmSHA256, c.Algorithm)
	assert.True(t, common.IsHexDigest(c.RootHash))
	assert.NoError(t, c.Validate())
}

func TestCommitDeterministic(t *testing.T) {
	content := testContent(10000)

	a, err := Commit(content, 1024)
	require.NoError(t, err)
	b, err := Commit(content, 1024)
	require.NoError(t, err)

	assert.Equal(t, a.RootHash, b.RootHash)
	assert.Equal(t, a.ID, b.ID)
}

func TestCommitSingleByteMutation(t *testing.T) {
	content := testContent(10000)
	original, err := Commit(content, 1024)
	require.NoError(t, err)

	for _, pos := range []int{0, 1023, 1024, 5000, 9216, 9999} {
		mutated := make([]byte, len(content))
		copy(mutated, content)
		mutated[pos] ^= 0x01

		c, err := Commit(mutated, 1024)
		require.NoError(t, err)
		assert.NotEqual(t, original.RootHash, c.RootHash, "mutation at byte %d must change the root", pos)
	}
}

func TestCommitEmptyContent(t *testing.T) {
	c, err := Commit([]byte{}, 1024)
	require.NoError(t, err)

	empty := sha256.Sum256([]byte{0x00})
	assert.Equal(t, 1, c.TileCount)
	assert.Equal(t, 0, c.TreeDepth)
	assert.Equal(t, hex.EncodeToString(empty[:]), c.RootHash)
}

func TestCommitSingleTileRootIsLeafHash(t *testing.T) {
	content := testContent(100)
	c, err := Commit(content, 1024)
	require.NoError(t, err)

	leaf := sha256.Sum256(append([]byte{0x00}, content...))
	assert.Equal(t, hex.EncodeToString(leaf[:]), c.RootHash)

	hash, err := HashTile(AlgorithmSHA256, content)
	require.NoError(t, err)
	assert.Equal(t, c.RootHash, hash)
}

func TestCommitUnpairedLeafIsDuplicated(t *testing.T) {
	content := testContent(30)
	c, err := Commit(content, 10)
	require.NoError(t, err)

	h := func(data ...[]byte) []byte {
		d := sha256.New()
		for _, b := range data {
			d.Write(b)
		}
		return d.Sum(nil)
	}

	leaf, node := []byte{0x00}, []byte{0x01}
	l0, l1, l2 := h(leaf, content[0:10]), h(leaf, content[10:20]), h(leaf, content[20:30])
	expected := h(node, h(node, l0, l1), h(node, l2, l2))
	assert.Equal(t, hex.EncodeToString(expected), c.RootHash)
	assert.Equal(t, 2, c.TreeDepth)
}

func TestInteriorNodeIsNotALeaf(t *testing.T) {
	content := testContent(64)
	tree, err := BuildTree(content, 32)
	require.NoError(t, err)

	c, err := Commit(content, 32)
	require.NoError(t, err)

	// the children of the root, committed as the content of a single tile
	children := append(append([]byte{}, tree.Nodes[0][0].hash...), tree.Nodes[0][1].hash...)
	forged, err := Commit(children, len(children))
	require.NoError(t, err)
	assert.NotEqual(t, c.RootHash, forged.RootHash)

	ok, err := VerifyLeaf(forged, 0, children, []string{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyLeafHash(c, 0, tree.Nodes[0][0].Hash(), []string{tree.Nodes[0][1].Hash()})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTileCountDoesNotOverflow(t *testing.T) {
	assert.Equal(t, 1, TileCount(0, 1<<62))
	assert.Equal(t, 1, TileCount(10, 1<<62))
	assert.Equal(t, 1, TileCount(10, int(^uint(0)>>1)))
	assert.Equal(t, 3, TileCount(30, 10))
	assert.Equal(t, 4, TileCount(31, 10))
}

func TestImageShapeBounds(t *testing.T) {
	wrapping := &Image{Width: 1 << 32, Height: 1 << 32, Channels: 1}
	assert.True(t, errors.Is(wrapping.Validate(), common.ErrMalformedContent))

	wide := &Image{Width: MaxDimension + 1, Height: 1, Channels: 1, Pix: make([]byte, MaxDimension+1)}
	assert.True(t, errors.Is(wide.Validate(), common.ErrMalformedContent))

	c, err := CommitImage(NewImage(4, 4, 3), 16)
	require.NoError(t, err)

	forged := *c
	forged.ID = ""
	forged.Width, forged.Height, forged.ContentLength = 1<<32, 1<<32, 0
	forged.TileCount, forged.TreeDepth = 1, 0
	assert.True(t, errors.Is(forged.Validate(), common.ErrMalformedContent))
}

func TestCommitInvalidTileSize(t *testing.T) {
	_, err := Commit(testContent(10), 0)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestCommitBLAKE3(t *testing.T) {
	content := testContent(4096)

	a, err := Commit(content, 1024)
	require.NoError(t, err)
	b, err := Commit(content, 1024, WithAlgorithm(AlgorithmBLAKE3))
	require.NoError(t, err)

	assert.Equal(t, AlgorithmBLAKE3, b.Algorithm)
	assert.NotEqual(t, a.RootHash, b.RootHash)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = Commit(content, 1024, WithAlgorithm("md5"))
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestVerifyLeaf(t *testing.T) {
	content := testContent(10000)
	tree, err := BuildTree(content, 1024)
	require.NoError(t, err)

	c, err := Commit(content, 1024)
	require.NoError(t, err)

	for i := 0; i < c.TileCount; i++ {
		path, err := tree.InclusionPath(i)
		require.NoError(t, err)
		assert.Len(t, path, c.TreeDepth)

		ok, err := VerifyLeaf(c, i, Tile(content, 1024, i), path)
		require.NoError(t, err)
		assert.True(t, ok, "tile %d", i)

		ok, err = VerifyLeaf(c, i, []byte("forged"), path)
		require.NoError(t, err)
		assert.False(t, ok, "tile %d", i)
	}

	path, _ := tree.InclusionPath(0)
	_, err = VerifyLeaf(c, 10, Tile(content, 1024, 0), path)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))

	_, err = VerifyLeaf(c, -1, Tile(content, 1024, 0), path)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))

	_, err = VerifyLeaf(c, 0, Tile(content, 1024, 0), path[:2])
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestVerifyLeafWrongPosition(t *testing.T) {
	content := testContent(4096)
	tree, err := BuildTree(content, 1024)
	require.NoError(t, err)
	c, err := Commit(content, 1024)
	require.NoError(t, err)

	path, err := tree.InclusionPath(1)
	require.NoError(t, err)

	ok, err := VerifyLeaf(c, 2, Tile(content, 1024, 1), path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitImage(t *testing.T) {
	img := NewImage(16, 8, 3)
	copy(img.Pix, testContent(len(img.Pix)))

	c, err := CommitImage(img, 64)
	require.NoError(t, err)
	assert.Equal(t, 16, c.Width)
	assert.Equal(t, 8, c.Height)
	assert.Equal(t, 3, c.Channels)
	assert.Equal(t, 6, c.TileCount)
	assert.True(t, c.IsImage())
	assert.NoError(t, c.Validate())

	raw, err := Commit(img.Pix, 64)
	require.NoError(t, err)
	assert.Equal(t, raw.RootHash, c.RootHash)
	assert.False(t, raw.Equal(c))

	img.Pix = img.Pix[1:]
	_, err = CommitImage(img, 64)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestCommitmentValidate(t *testing.T) {
	c, err := Commit(testContent(2048), 1024)
	require.NoError(t, err)

	tampered := *c
	tampered.TileCount = 3
	assert.True(t, errors.Is(tampered.Validate(), common.ErrMalformedContent))

	tampered = *c
	tampered.RootHash = "not-a-hash"
	assert.True(t, errors.Is(tampered.Validate(), common.ErrMalformedContent))

	tampered = *c
	tampered.RootHash = common.ZeroHash
	assert.True(t, errors.Is(tampered.Validate(), common.ErrHashMismatch))
}

func TestIndexMembership(t *testing.T) {
	idx := NewIndex()

	a, err := Commit(testContent(100), 32)
	require.NoError(t, err)
	b, err := Commit(testContent(200), 32)
	require.NoError(t, err)

	_, err = idx.Add(a)
	require.NoError(t, err)
	_, err = idx.Add(b)
	require.NoError(t, err)

	assert.True(t, idx.Contains(a.ID, a.RootHash))
	assert.False(t, idx.Contains(a.ID, b.RootHash))

	proof, err := idx.Prove(a)
	require.NoError(t, err)
	assert.Equal(t, idx.Root(), proof.IndexRoot)
	assert.True(t, VerifyMembership(proof))

	proof.RootHash = b.RootHash
	assert.False(t, VerifyMembership(proof))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	cfg := common.DefaultConfig()
	cfg.TileSize = 256

	registry, err := NewRegistry(ctx, s, cfg)
	require.NoError(t, err)

	c, err := registry.Commit(ctx, testContent(1000), 0)
	require.NoError(t, err)
	assert.Equal(t, 256, c.TileSize)
	assert.Equal(t, 4, c.TileCount)

	again, err := registry.Commit(ctx, testContent(1000), 0)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	resolved, err := registry.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, resolved)

	_, err = registry.Get(ctx, "unknown")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	proof, err := registry.Prove(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, VerifyMembership(proof))

	reloaded, err := NewRegistry(ctx, s, cfg)
	require.NoError(t, err)
	assert.Equal(t, registry.IndexRoot(), reloaded.IndexRoot())
}
