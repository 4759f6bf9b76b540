package gnark

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// MaxDimension bounds every image dimension proven by the transformation circuits
const MaxDimension = 1 << 16

// commitmentBytes is the number of root hash bytes lifted into the scalar field
const commitmentBytes = 31

// CropCircuit proves the output is a non-empty window of the input: there
// exist offsets x, y with x+outW <= inW and y+outH <= inH
type CropCircuit struct {
	InputWidth   frontend.Variable `gnark:",public"`
	InputHeight  frontend.Variable `gnark:",public"`
	OutputWidth  frontend.Variable `gnark:",public"`
	OutputHeight frontend.Variable `gnark:",public"`
	InputRoot    frontend.Variable `gnark:",public"`
	OutputRoot   frontend.Variable `gnark:",public"`

	X frontend.Variable
	Y frontend.Variable
}

// Define declares the crop constraints
func (circuit *CropCircuit) Define(api frontend.API) error {
	assertDimension(api, circuit.InputWidth)
	assertDimension(api, circuit.InputHeight)
	assertDimension(api, circuit.OutputWidth)
	assertDimension(api, circuit.OutputHeight)

	api.AssertIsLessOrEqual(circuit.X, MaxDimension)
	api.AssertIsLessOrEqual(circuit.Y, MaxDimension)
	api.AssertIsLessOrEqual(api.Add(circuit.X, circuit.OutputWidth), circuit.InputWidth)
	api.AssertIsLessOrEqual(api.Add(circuit.Y, circuit.OutputHeight), circuit.InputHeight)

	assertCommitment(api, circuit.InputRoot)
	assertCommitment(api, circuit.OutputRoot)
	return nil
}

// ResizeCircuit proves both images have non-empty dimensions within bounds
// and binds the input and output commitments
type ResizeCircuit struct {
	InputWidth   frontend.Variable `gnark:",public"`
	InputHeight  frontend.Variable `gnark:",public"`
	OutputWidth  frontend.Variable `gnark:",public"`
	OutputHeight frontend.Variable `gnark:",public"`
	InputRoot    frontend.Variable `gnark:",public"`
	OutputRoot   frontend.Variable `gnark:",public"`
}

// Define declares the resize constraints
func (circuit *ResizeCircuit) Define(api frontend.API) error {
	assertDimension(api, circuit.InputWidth)
	assertDimension(api, circuit.InputHeight)
	assertDimension(api, circuit.OutputWidth)
	assertDimension(api, circuit.OutputHeight)

	assertCommitment(api, circuit.InputRoot)
	assertCommitment(api, circuit.OutputRoot)
	return nil
}

// 0 < v <= MaxDimension
func assertDimension(api frontend.API, v frontend.Variable) {
	api.AssertIsEqual(api.IsZero(v), 0)
	api.AssertIsLessOrEqual(v, MaxDimension)
}

func assertCommitment(api frontend.API, v frontend.Variable) {
	api.AssertIsEqual(api.IsZero(v), 0)
}

// CommitmentVariable lifts the leading bytes of a hex-encoded root hash into a field element
func CommitmentVariable(rootHash string) (*big.Int, error) {
	raw, err := hex.DecodeString(rootHash)
	if err != nil {
		return nil, fmt.Errorf("invalid commitment root %s; %s", rootHash, err.Error())
	}
	if len(raw) < commitmentBytes {
		return nil, fmt.Errorf("invalid commitment root %s; expected at least %d bytes", rootHash, commitmentBytes)
	}
	return new(big.Int).SetBytes(raw[:commitmentBytes]), nil
}
