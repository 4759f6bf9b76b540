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

package proof

import (
	"fmt"
	"strings"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/zkp/lib/circuits/gnark"
	zkproviders "github.com/provideplatform/provenance/zkp/providers"
)

// zkCircuit returns the circuit identifier proving the transformation, if any
func zkCircuit(transformationType string) (string, bool) {
	switch strings.ToLower(transformationType) {
	case TransformationCrop:
		return zkproviders.GnarkCircuitIdentifierCrop, true
	case TransformationResize:
		return zkproviders.GnarkCircuitIdentifierResize, true
	}
	return "", false
}

// zkAssignment builds the circuit assignment binding the commitments; the
// private crop offsets are only set when proving
func zkAssignment(circuit string, t *Transformation, input, output *commitment.Commitment) (interface{}, error) {
	in, err := gnark.CommitmentVariable(input.RootHash)
	if err != nil {
		return nil, err
	}
	out, err := gnark.CommitmentVariable(output.RootHash)
	if err != nil {
		return nil, err
	}

	switch circuit {
	case zkproviders.GnarkCircuitIdentifierCrop:
		x, err := t.intParam("x")
		if err != nil {
			return nil, err
		}
		y, err := t.intParam("y")
		if err != nil {
			return nil, err
		}
		return &gnark.CropCircuit{
			InputWidth:   input.Width,
			InputHeight:  input.Height,
			OutputWidth:  output.Width,
			OutputHeight: output.Height,
			InputRoot:    in,
			OutputRoot:   out,
			X:            x,
			Y:            y,
		}, nil

	case zkproviders.GnarkCircuitIdentifierResize:
		return &gnark.ResizeCircuit{
			InputWidth:   input.Width,
			InputHeight:  input.Height,
			OutputWidth:  output.Width,
			OutputHeight: output.Height,
			InputRoot:    in,
			OutputRoot:   out,
		}, nil
	}

	return nil, fmt.Errorf("no zk circuit for %s", circuit)
}
