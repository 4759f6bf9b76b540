package proof

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers/memory"
	zkproviders "github.com/provideplatform/provenance/zkp/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h, c int) *commitment.Image {
	img := commitment.NewImage(w, h, c)
	for i := range img.Pix {
		img.Pix[i] = byte((i*7 + i/3) % 256)
	}
	return img
}

func cropTransformation() *Transformation {
	return &Transformation{
		Type:   TransformationCrop,
		Params: map[string]interface{}{"x": 0, "y": 0, "width": 100, "height": 100},
	}
}

func TestGenerateCropTileInclusion(t *testing.T) {
	ctx := context.Background()
	original := testImage(200, 200, 3)
	tr := cropTransformation()

	transformed, err := Apply(original, tr)
	require.NoError(t, err)
	assert.Equal(t, 100, transformed.Width)
	assert.Equal(t, 100, transformed.Height)

	p, err := NewGenerator(1024).Generate(ctx, original, transformed, tr)
	require.NoError(t, err)
	assert.Equal(t, PayloadKindTileInclusion, p.PayloadKind)
	assert.False(t, p.Advisory)
	assert.NotNil(t, p.Payload.TileInclusion)

	v := NewVerifier()

	result := v.Verify(ctx, p, transformed)
	assert.True(t, result.Valid, result.Reason)
	assert.False(t, result.Advisory)

	result = v.Verify(ctx, p, nil)
	assert.True(t, result.Valid, result.Reason)

	wrongDims := testImage(100, 90, 3)
	result = v.Verify(ctx, p, wrongDims)
	assert.False(t, result.Valid)
	assert.Equal(t, common.ReasonInvalidTransformationParams, result.Reason)

	mutated := transformed.Clone()
	mutated.Pix[4242] ^= 0xff
	result = v.Verify(ctx, p, mutated)
	assert.False(t, result.Valid)
	assert.Equal(t, common.ReasonHashMismatch, result.Reason)
}

func TestGenerateInvalidParams(t *testing.T) {
	ctx := context.Background()
	original := testImage(200, 200, 3)
	g := NewGenerator(1024)

	outOfBounds := &Transformation{
		Type:   TransformationCrop,
		Params: map[string]interface{}{"x": 150, "y": 0, "width": 100, "height": 100},
	}
	_, err := g.Generate(ctx, original, testImage(100, 100, 3), outOfBounds)
	assert.True(t, errors.Is(err, common.ErrInvalidTransformationParams))

	zeroResize := &Transformation{
		Type:   TransformationResize,
		Params: map[string]interface{}{"width": 0, "height": 100},
	}
	_, err = g.Generate(ctx, original, testImage(100, 100, 3), zeroResize)
	assert.True(t, errors.Is(err, common.ErrInvalidTransformationParams))

	_, err = g.Generate(ctx, original, testImage(100, 90, 3), cropTransformation())
	assert.True(t, errors.Is(err, common.ErrInvalidTransformationParams))

	badRotation := &Transformation{
		Type:   TransformationRotate,
		Params: map[string]interface{}{"degrees": 45},
	}
	_, err = g.Generate(ctx, original, original, badRotation)
	assert.True(t, errors.Is(err, common.ErrInvalidTransformationParams))

	missing := &Transformation{Type: TransformationBrightness}
	_, err = g.Generate(ctx, original, original, missing)
	assert.True(t, errors.Is(err, common.ErrInvalidTransformationParams))

	malformed := testImage(10, 10, 3)
	malformed.Pix = malformed.Pix[:10]
	_, err = g.Generate(ctx, malformed, original, cropTransformation())
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestCropBoundsDoNotOverflow(t *testing.T) {
	in := Shape{Width: 200, Height: 200, Channels: 3}

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"huge x", map[string]interface{}{"x": 1 << 62, "y": 0, "width": 1 << 62, "height": 100}},
		{"huge y", map[string]interface{}{"x": 0, "y": 1 << 62, "width": 100, "height": 1 << 62}},
		{"wrapping width", map[string]interface{}{"x": 10, "y": 0, "width": int64(1<<63 - 5), "height": 100}},
		{"width past edge", map[string]interface{}{"x": 150, "y": 0, "width": 51, "height": 100}},
		{"non-finite", map[string]interface{}{"x": 0, "y": 0, "width": 1e300, "height": 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Transformation{Type: TransformationCrop, Params: tt.params}
			_, err := tr.OutputShape(in)
			assert.True(t, errors.Is(err, common.ErrInvalidTransformationParams), "got %v", err)
		})
	}

	edge := &Transformation{
		Type:   TransformationCrop,
		Params: map[string]interface{}{"x": 100, "y": 100, "width": 100, "height": 100},
	}
	shape, err := edge.OutputShape(in)
	require.NoError(t, err)
	assert.Equal(t, Shape{Width: 100, Height: 100, Channels: 3}, shape)
}

func TestGenerateLeavesTransformationUntouched(t *testing.T) {
	ctx := context.Background()
	original := testImage(200, 200, 3)

	tr := &Transformation{
		Type:   " CROP ",
		Params: map[string]interface{}{"x": 0, "y": 0, "width": 100, "height": 100},
	}
	transformed, err := Apply(original, cropTransformation())
	require.NoError(t, err)

	p, err := NewGenerator(1024).Generate(ctx, original, transformed, tr)
	require.NoError(t, err)
	assert.Equal(t, TransformationCrop, p.TransformationType)
	assert.Equal(t, " CROP ", tr.Type)

	p.Params["x"] = 42
	assert.Equal(t, 0, tr.Params["x"])

	tr.Params["width"] = 7
	assert.Equal(t, 100, p.Params["width"])
}

func TestSupportedTransformationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	original := testImage(64, 48, 4)
	g := NewGenerator(512)
	v := NewVerifier()

	cases := []*Transformation{
		{Type: TransformationResize, Params: map[string]interface{}{"width": 32, "height": 24}},
		{Type: TransformationGrayscale},
		{Type: TransformationBrightness, Params: map[string]interface{}{"value": 25}},
		{Type: TransformationContrast, Params: map[string]interface{}{"value": -40}},
		{Type: TransformationRotate, Params: map[string]interface{}{"degrees": 90}},
		{Type: TransformationRotate, Params: map[string]interface{}{"degrees": -180}},
		{Type: "CROP", Params: map[string]interface{}{"x": 8, "y": 4, "w": 16, "h": 16}},
	}

	for _, tr := range cases {
		transformed, err := Apply(original, tr)
		require.NoError(t, err, tr.Type)

		p, err := g.Generate(ctx, original, transformed, tr)
		require.NoError(t, err, tr.Type)
		assert.Equal(t, PayloadKindTileInclusion, p.PayloadKind, tr.Type)

		result := v.Verify(ctx, p, transformed)
		assert.True(t, result.Valid, "%s: %s", tr.Type, result.Reason)
	}
}

func TestRotateDimensions(t *testing.T) {
	original := testImage(4, 2, 1)
	rotated, err := Apply(original, &Transformation{Type: TransformationRotate, Params: map[string]interface{}{"degrees": 90}})
	require.NoError(t, err)
	assert.Equal(t, 2, rotated.Width)
	assert.Equal(t, 4, rotated.Height)

	// top-left pixel moves to the top-right corner under a clockwise turn
	assert.Equal(t, original.Pix[0], rotated.Pix[rotated.Offset(1, 0)])

	back, err := Apply(rotated, &Transformation{Type: TransformationRotate, Params: map[string]interface{}{"degrees": 270}})
	require.NoError(t, err)
	assert.Equal(t, original.Pix, back.Pix)
}

func TestUnsupportedTransformationIsAdvisory(t *testing.T) {
	ctx := context.Background()
	original := testImage(32, 32, 3)
	edited := testImage(32, 32, 3)
	edited.Pix[0] ^= 0x10

	tr := &Transformation{Type: "sepia", Params: map[string]interface{}{"strength": 0.8}}
	p, err := NewGenerator(256).Generate(ctx, original, edited, tr)
	require.NoError(t, err)
	assert.Equal(t, PayloadKindHashCommitment, p.PayloadKind)
	assert.True(t, p.Advisory)

	result := NewVerifier().Verify(ctx, p, edited)
	assert.True(t, result.Valid, result.Reason)
	assert.True(t, result.Advisory)

	// the weaker guarantee is preserved through serialization
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded Proof
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Advisory)
	assert.True(t, NewVerifier().Verify(ctx, &decoded, nil).Advisory)
}

func TestVerifyTamperedProof(t *testing.T) {
	ctx := context.Background()
	original := testImage(200, 200, 3)
	tr := cropTransformation()
	transformed, err := Apply(original, tr)
	require.NoError(t, err)

	p, err := NewGenerator(1024).Generate(ctx, original, transformed, tr)
	require.NoError(t, err)
	v := NewVerifier()

	tampered := *p
	tampered.Params = map[string]interface{}{"x": 10, "y": 0, "width": 100, "height": 100}
	result := v.Verify(ctx, &tampered, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, common.ReasonHashMismatch, result.Reason)

	other, err := commitment.CommitImage(testImage(100, 100, 3), 1024)
	require.NoError(t, err)
	tampered = *p
	tampered.OutputCommitment = other
	result = v.Verify(ctx, &tampered, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, common.ReasonHashMismatch, result.Reason)

	tampered = *p
	tampered.Payload = &Payload{
		HashCommitment: &HashCommitmentPayload{Binding: p.Payload.TileInclusion.Binding},
		TileInclusion:  p.Payload.TileInclusion,
	}
	result = v.Verify(ctx, &tampered, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, common.ReasonMalformedContent, result.Reason)

	tampered = *p
	tampered.PayloadKind = PayloadKindHashCommitment
	result = v.Verify(ctx, &tampered, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, common.ReasonMalformedContent, result.Reason)

	assert.False(t, v.Verify(ctx, nil, nil).Valid)
}

func TestZKSnarkPayload(t *testing.T) {
	ctx := context.Background()
	zk, err := zkproviders.InitGnarkProvider(common.StringOrNil("bn254"), common.StringOrNil("groth16"), memory.NewStore())
	require.NoError(t, err)

	original := testImage(200, 200, 3)
	tr := &Transformation{
		Type:   TransformationCrop,
		Params: map[string]interface{}{"x": 50, "y": 25, "width": 100, "height": 100},
	}
	transformed, err := Apply(original, tr)
	require.NoError(t, err)

	p, err := NewGenerator(1024, WithZKSnarkProvider(zk)).Generate(ctx, original, transformed, tr)
	require.NoError(t, err)
	assert.Equal(t, PayloadKindZKSnark, p.PayloadKind)
	assert.Equal(t, zkproviders.ZKSnarkProviderGnark, p.Payload.ZKSnark.Provider)
	assert.Equal(t, "bn254", p.Payload.ZKSnark.Curve)

	result := NewVerifier(zk).Verify(ctx, p, transformed)
	assert.True(t, result.Valid, result.Reason)

	result = NewVerifier().Verify(ctx, p, transformed)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonZKProviderUnavailable, result.Reason)

	// grayscale has no circuit and falls back to tile inclusion
	gray, err := Apply(original, &Transformation{Type: TransformationGrayscale})
	require.NoError(t, err)
	p, err = NewGenerator(1024, WithZKSnarkProvider(zk)).Generate(ctx, original, gray, &Transformation{Type: TransformationGrayscale})
	require.NoError(t, err)
	assert.Equal(t, PayloadKindTileInclusion, p.PayloadKind)
}

func TestServicePersistsProofs(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	registry, err := commitment.NewRegistry(ctx, s, common.DefaultConfig())
	require.NoError(t, err)

	svc := NewService(s, registry, NewGenerator(1024), NewVerifier())

	original := testImage(200, 200, 3)
	tr := cropTransformation()
	transformed, err := Apply(original, tr)
	require.NoError(t, err)

	p, err := svc.Generate(ctx, original, transformed, tr)
	require.NoError(t, err)

	resolved, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.OutputCommitment, resolved.OutputCommitment)
	assert.True(t, svc.Verify(ctx, resolved, transformed).Valid)

	_, err = registry.Get(ctx, p.InputCommitment.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
