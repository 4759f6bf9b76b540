package providers

import (
	"context"
)

// ZKSnarkProviderGnark gnark zksnark provider
const ZKSnarkProviderGnark = "gnark"

// GnarkCircuitIdentifierCrop gnark crop geometry circuit
const GnarkCircuitIdentifierCrop = "crop"

// GnarkCircuitIdentifierResize gnark resize geometry circuit
const GnarkCircuitIdentifierResize = "resize"

// ZKSnarkProvider provides a common interface to the zksnark backends which
// fill the zk_snark proof payload
type ZKSnarkProvider interface {
	// Name returns the provider identifier recorded in proof payloads
	Name() string

	// Supports returns true if the provider holds a circuit with the given identifier
	Supports(circuit string) bool

	// Prove generates a serialized proof for the full circuit assignment
	Prove(ctx context.Context, circuit string, assignment interface{}) ([]byte, error)

	// Verify checks a serialized proof against the public part of the assignment
	Verify(ctx context.Context, circuit string, proof []byte, publicAssignment interface{}) error
}
