package providers

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store"
	storeproviders "github.com/provideplatform/provenance/store/providers"
	"github.com/provideplatform/provenance/zkp/lib/circuits/gnark"
)

// GnarkProvider proves and verifies the library circuits using gnark groth16
type GnarkProvider struct {
	curveID         ecc.ID
	provingSchemeID backend.ID
	circuitLibrary  map[string]func() frontend.Circuit
	store           storeproviders.Store

	mutex     sync.Mutex
	artifacts map[string]*gnarkArtifacts
}

type gnarkArtifacts struct {
	r1cs         frontend.CompiledConstraintSystem
	provingKey   groth16.ProvingKey
	verifyingKey groth16.VerifyingKey
}

type gnarkKeys struct {
	ProvingKey   string `json:"proving_key"`
	VerifyingKey string `json:"verifying_key"`
}

// InitGnarkProvider initializes and configures a new GnarkProvider instance;
// when a store is given, setup keys are persisted and reused across restarts
func InitGnarkProvider(curveID *string, provingScheme *string, s storeproviders.Store) (*GnarkProvider, error) {
	curve := common.GnarkCurveIDFactory(curveID)
	if curve == ecc.UNKNOWN {
		return nil, fmt.Errorf("failed to initialize gnark provider; unsupported curve")
	}

	scheme := common.GnarkProvingSchemeFactory(provingScheme)
	if scheme != backend.GROTH16 {
		return nil, fmt.Errorf("failed to initialize gnark provider; unsupported proving scheme")
	}

	return &GnarkProvider{
		curveID:         curve,
		provingSchemeID: scheme,
		circuitLibrary: map[string]func() frontend.Circuit{
			GnarkCircuitIdentifierCrop:   func() frontend.Circuit { return &gnark.CropCircuit{} },
			GnarkCircuitIdentifierResize: func() frontend.Circuit { return &gnark.ResizeCircuit{} },
		},
		store:     s,
		artifacts: map[string]*gnarkArtifacts{},
	}, nil
}

// Name returns the provider identifier
func (p *GnarkProvider) Name() string {
	return ZKSnarkProviderGnark
}

// Curve returns the configured curve name
func (p *GnarkProvider) Curve() string {
	return p.curveID.String()
}

// ProvingScheme returns the configured proving scheme name
func (p *GnarkProvider) ProvingScheme() string {
	return p.provingSchemeID.String()
}

// Supports returns true if the circuit is in the library
func (p *GnarkProvider) Supports(circuit string) bool {
	_, ok := p.circuitLibrary[strings.ToLower(circuit)]
	return ok
}

// Prove generates a serialized groth16 proof for the assignment
func (p *GnarkProvider) Prove(ctx context.Context, circuit string, assignment interface{}) ([]byte, error) {
	c, ok := assignment.(frontend.Circuit)
	if !ok {
		return nil, fmt.Errorf("invalid gnark assignment type %T; expected frontend.Circuit", assignment)
	}

	artifacts, err := p.setup(ctx, circuit)
	if err != nil {
		return nil, err
	}

	witness, err := frontend.NewWitness(c, p.curveID)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s witness; %s", circuit, err.Error())
	}

	proof, err := groth16.Prove(artifacts.r1cs, artifacts.provingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("failed to prove %s circuit; %s", circuit, err.Error())
	}

	buf := new(bytes.Buffer)
	if _, err := proof.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to serialize %s proof; %s", circuit, err.Error())
	}

	common.Log.Debugf("generated %d-byte %s proof using gnark %s", buf.Len(), circuit, p.provingSchemeID.String())
	return buf.Bytes(), nil
}

// Verify checks the proof against the public inputs of the assignment
func (p *GnarkProvider) Verify(ctx context.Context, circuit string, proof []byte, publicAssignment interface{}) error {
	c, ok := publicAssignment.(frontend.Circuit)
	if !ok {
		return fmt.Errorf("invalid gnark assignment type %T; expected frontend.Circuit", publicAssignment)
	}

	artifacts, err := p.setup(ctx, circuit)
	if err != nil {
		return err
	}

	prf := groth16.NewProof(p.curveID)
	if _, err := prf.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("unable to decode proof; %s", err.Error())
	}

	publicWitness, err := frontend.NewWitness(c, p.curveID, frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to build %s public witness; %s", circuit, err.Error())
	}

	return groth16.Verify(prf, artifacts.verifyingKey, publicWitness)
}

// VerifyingKey returns the serialized verifying key for the circuit
func (p *GnarkProvider) VerifyingKey(ctx context.Context, circuit string) ([]byte, error) {
	artifacts, err := p.setup(ctx, circuit)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if _, err := artifacts.verifyingKey.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to serialize %s verifying key; %s", circuit, err.Error())
	}
	return buf.Bytes(), nil
}

// setup compiles the circuit and resolves its keys, once per circuit
func (p *GnarkProvider) setup(ctx context.Context, circuit string) (*gnarkArtifacts, error) {
	id := strings.ToLower(circuit)
	factory, ok := p.circuitLibrary[id]
	if !ok {
		return nil, fmt.Errorf("gnark circuit %s not resolved", circuit)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if artifacts, ok := p.artifacts[id]; ok {
		return artifacts, nil
	}

	ccs, err := frontend.Compile(p.curveID, r1cs.NewBuilder, factory())
	if err != nil {
		common.Log.Warningf("failed to compile circuit to r1cs using gnark; %s", err.Error())
		return nil, err
	}

	artifacts := &gnarkArtifacts{r1cs: ccs}
	loaded, err := p.loadKeys(ctx, id, artifacts)
	if err != nil {
		return nil, err
	}

	if !loaded {
		artifacts.provingKey, artifacts.verifyingKey, err = groth16.Setup(ccs)
		if err != nil {
			return nil, fmt.Errorf("failed to setup %s circuit; %s", id, err.Error())
		}
		if err := p.persistKeys(ctx, id, artifacts); err != nil {
			return nil, err
		}
		common.Log.Debugf("setup completed for %s circuit on curve %s", id, p.curveID.String())
	}

	p.artifacts[id] = artifacts
	return artifacts, nil
}

func (p *GnarkProvider) keysKey(circuit string) string {
	return fmt.Sprintf("%s:%s:%s", circuit, p.curveID.String(), p.provingSchemeID.String())
}

func (p *GnarkProvider) loadKeys(ctx context.Context, circuit string, artifacts *gnarkArtifacts) (bool, error) {
	if p.store == nil {
		return false, nil
	}

	var keys gnarkKeys
	err := store.GetJSON(ctx, p.store, store.NamespaceZKPKeys, p.keysKey(circuit), &keys)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to load %s keys; %s", circuit, err.Error())
	}

	pk, err := hex.DecodeString(keys.ProvingKey)
	if err != nil {
		return false, fmt.Errorf("unable to decode proving key; %s", err.Error())
	}
	vk, err := hex.DecodeString(keys.VerifyingKey)
	if err != nil {
		return false, fmt.Errorf("unable to decode verifying key; %s", err.Error())
	}

	artifacts.provingKey = groth16.NewProvingKey(p.curveID)
	if _, err := artifacts.provingKey.ReadFrom(bytes.NewReader(pk)); err != nil {
		return false, fmt.Errorf("unable to decode proving key; %s", err.Error())
	}

	artifacts.verifyingKey = groth16.NewVerifyingKey(p.curveID)
	if _, err := artifacts.verifyingKey.ReadFrom(bytes.NewReader(vk)); err != nil {
		return false, fmt.Errorf("unable to decode verifying key; %s", err.Error())
	}

	common.Log.Debugf("loaded persisted keys for %s circuit", circuit)
	return true, nil
}

func (p *GnarkProvider) persistKeys(ctx context.Context, circuit string, artifacts *gnarkArtifacts) error {
	if p.store == nil {
		return nil
	}

	pk := new(bytes.Buffer)
	if _, err := artifacts.provingKey.WriteTo(pk); err != nil {
		return fmt.Errorf("failed to serialize proving key; %s", err.Error())
	}

	vk := new(bytes.Buffer)
	if _, err := artifacts.verifyingKey.WriteTo(vk); err != nil {
		return fmt.Errorf("failed to serialize verifying key; %s", err.Error())
	}

	return store.PutJSON(ctx, p.store, store.NamespaceZKPKeys, p.keysKey(circuit), &gnarkKeys{
		ProvingKey:   hex.EncodeToString(pk.Bytes()),
		VerifyingKey: hex.EncodeToString(vk.Bytes()),
	})
}
