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

// Package metrics exposes the prometheus collectors updated by the provenance services.
package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "provenance"

var (
	// CommitmentsComputed counts tile commitments computed, by hash algorithm
	CommitmentsComputed = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "commitments_computed_total",
		Help:      "Number of tile commitments computed.",
	}, []string{"algorithm"})

	// ProofsGenerated counts transformation proofs, by payload kind
	ProofsGenerated = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "proofs_generated_total",
		Help:      "Number of transformation proofs generated.",
	}, []string{"payload_kind"})

	// ProofVerifications counts transformation proof verifications, by payload kind and outcome
	ProofVerifications = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "proof_verifications_total",
		Help:      "Number of transformation proof verifications.",
	}, []string{"payload_kind", "valid"})

	// ChainAppends counts proof chain appends, by outcome
	ChainAppends = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "chain_appends_total",
		Help:      "Number of proof chain append attempts.",
	}, []string{"result"})

	// RegionProofs counts reveal and redaction proofs
	RegionProofs = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "region_proofs_total",
		Help:      "Number of selective reveal and redaction proofs generated.",
	}, []string{"kind"})

	// FraudRejections counts candidates rejected by the pre-filter
	FraudRejections = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "fraud_rejections_total",
		Help:      "Number of candidates flagged by the fraud pre-filter.",
	}, []string{"candidate", "depth"})

	// FramesAttested counts attested frames, by attestation mode
	FramesAttested = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "frames_attested_total",
		Help:      "Number of video frames attested.",
	}, []string{"mode"})

	// FramesDropped counts frames evicted from streaming inspection buffers
	FramesDropped = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Number of frames evicted from streaming session buffers.",
	})

	// ActiveSessions is the number of streaming sessions accepting frames
	ActiveSessions = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "streaming_sessions_active",
		Help:      "Number of active streaming sessions.",
	})

	// LogSize is the number of entries in the transparency log
	LogSize = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "log_size",
		Help:      "Number of entries in the transparency log.",
	})
)

func init() {
	prom.MustRegister(
		CommitmentsComputed,
		ProofsGenerated,
		ProofVerifications,
		ChainAppends,
		RegionProofs,
		FraudRejections,
		FramesAttested,
		FramesDropped,
		ActiveSessions,
		LogSize,
	)
}

// RegisterRuntimeCollectors adds the build info collector to the default registry
func RegisterRuntimeCollectors() {
	prom.Register(collectors.NewBuildInfoCollector())
}
