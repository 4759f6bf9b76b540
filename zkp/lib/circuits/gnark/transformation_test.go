package gnark

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInputRoot = "9f2c1a7e5b3d4c6f8a0b1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f"
const testOutputRoot = "1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2c"

func cropAssignment(t *testing.T, inW, inH, outW, outH, x, y int) *CropCircuit {
	in, err := CommitmentVariable(testInputRoot)
	require.NoError(t, err)
	out, err := CommitmentVariable(testOutputRoot)
	require.NoError(t, err)

	return &CropCircuit{
		InputWidth:   inW,
		InputHeight:  inH,
		OutputWidth:  outW,
		OutputHeight: outH,
		InputRoot:    in,
		OutputRoot:   out,
		X:            x,
		Y:            y,
	}
}

func TestCropCircuitGroth16(t *testing.T) {
	var circuit CropCircuit
	ccs, err := frontend.Compile(ecc.BN254, r1cs.NewBuilder, &circuit)
	require.NoError(t, err)

	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	valid := cropAssignment(t, 200, 200, 100, 100, 0, 0)
	witness, err := frontend.NewWitness(valid, ecc.BN254)
	require.NoError(t, err)

	proof, err := groth16.Prove(ccs, pk, witness)
	require.NoError(t, err)

	publicWitness, err := frontend.NewWitness(valid, ecc.BN254, frontend.PublicOnly())
	require.NoError(t, err)
	assert.NoError(t, groth16.Verify(proof, vk, publicWitness))

	// the proof does not hold for a different output shape
	other := cropAssignment(t, 200, 200, 100, 90, 0, 0)
	otherPublic, err := frontend.NewWitness(other, ecc.BN254, frontend.PublicOnly())
	require.NoError(t, err)
	assert.Error(t, groth16.Verify(proof, vk, otherPublic))
}

func TestCropCircuitOutOfBounds(t *testing.T) {
	var circuit CropCircuit
	ccs, err := frontend.Compile(ecc.BN254, r1cs.NewBuilder, &circuit)
	require.NoError(t, err)

	pk, _, err := groth16.Setup(ccs)
	require.NoError(t, err)

	invalid := cropAssignment(t, 200, 200, 100, 100, 150, 0)
	witness, err := frontend.NewWitness(invalid, ecc.BN254)
	require.NoError(t, err)

	_, err = groth16.Prove(ccs, pk, witness)
	assert.Error(t, err)
}

func TestResizeCircuitGroth16(t *testing.T) {
	var circuit ResizeCircuit
	ccs, err := frontend.Compile(ecc.BN254, r1cs.NewBuilder, &circuit)
	require.NoError(t, err)

	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	in, _ := CommitmentVariable(testInputRoot)
	out, _ := CommitmentVariable(testOutputRoot)

	assignment := &ResizeCircuit{
		InputWidth:   640,
		InputHeight:  480,
		OutputWidth:  320,
		OutputHeight: 240,
		InputRoot:    in,
		OutputRoot:   out,
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254)
	require.NoError(t, err)
	proof, err := groth16.Prove(ccs, pk, witness)
	require.NoError(t, err)

	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254, frontend.PublicOnly())
	require.NoError(t, err)
	assert.NoError(t, groth16.Verify(proof, vk, publicWitness))

	assignment.OutputWidth = 0
	witness, err = frontend.NewWitness(assignment, ecc.BN254)
	require.NoError(t, err)
	_, err = groth16.Prove(ccs, pk, witness)
	assert.Error(t, err)
}

func TestCommitmentVariable(t *testing.T) {
	v, err := CommitmentVariable(testInputRoot)
	require.NoError(t, err)
	assert.True(t, v.Sign() > 0)
	assert.True(t, v.BitLen() <= 8*commitmentBytes)

	_, err = CommitmentVariable("abcd")
	assert.Error(t, err)

	_, err = CommitmentVariable("zz")
	assert.Error(t, err)
}
