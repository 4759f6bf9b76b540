package providers

import (
	"context"
	"testing"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/provideplatform/provenance/zkp/lib/circuits/gnark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCropAssignment(t *testing.T) *gnark.CropCircuit {
	in, err := gnark.CommitmentVariable(common.SHA256("input"))
	require.NoError(t, err)
	out, err := gnark.CommitmentVariable(common.SHA256("output"))
	require.NoError(t, err)

	return &gnark.CropCircuit{
		InputWidth:   200,
		InputHeight:  200,
		OutputWidth:  100,
		OutputHeight: 100,
		InputRoot:    in,
		OutputRoot:   out,
		X:            10,
		Y:            20,
	}
}

func TestInitGnarkProvider(t *testing.T) {
	_, err := InitGnarkProvider(common.StringOrNil("bn254"), common.StringOrNil("plonk"), nil)
	assert.Error(t, err)

	_, err = InitGnarkProvider(common.StringOrNil("secp256k1"), common.StringOrNil("groth16"), nil)
	assert.Error(t, err)

	p, err := InitGnarkProvider(common.StringOrNil("bn254"), common.StringOrNil("groth16"), nil)
	require.NoError(t, err)
	assert.Equal(t, ZKSnarkProviderGnark, p.Name())
	assert.True(t, p.Supports("crop"))
	assert.True(t, p.Supports("Resize"))
	assert.False(t, p.Supports("rotate"))
}

func TestGnarkProviderProveVerifyPersistedKeys(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	p, err := InitGnarkProvider(common.StringOrNil("bn254"), common.StringOrNil("groth16"), s)
	require.NoError(t, err)

	assignment := testCropAssignment(t)
	proof, err := p.Prove(ctx, GnarkCircuitIdentifierCrop, assignment)
	require.NoError(t, err)
	assert.NotEmpty(t, proof)

	assert.NoError(t, p.Verify(ctx, GnarkCircuitIdentifierCrop, proof, assignment))

	// a fresh provider resolves the persisted keys and accepts the earlier proof
	reloaded, err := InitGnarkProvider(common.StringOrNil("bn254"), common.StringOrNil("groth16"), s)
	require.NoError(t, err)
	assert.NoError(t, reloaded.Verify(ctx, GnarkCircuitIdentifierCrop, proof, assignment))

	tampered := testCropAssignment(t)
	tampered.OutputWidth = 99
	assert.Error(t, reloaded.Verify(ctx, GnarkCircuitIdentifierCrop, proof, tampered))

	_, err = p.Prove(ctx, "unknown", assignment)
	assert.Error(t, err)
}
