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

package fraud

import (
	"fmt"
	"time"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/proof"
	"github.com/provideplatform/provenance/region"
	"github.com/provideplatform/provenance/temporal"
	"github.com/provideplatform/provenance/tlog"
)

// DefaultMaxClockSkew bounds how far in the future a timestamp may lie
const DefaultMaxClockSkew = time.Minute * 5

// Candidate kinds reported by the checker
const (
	CandidateProof       = "transformation_proof"
	CandidateRegionProof = "region_proof"
	CandidateLogEntry    = "log_entry"
	CandidateLogEntries  = "log_entries"
	CandidateAttestation = "video_attestation"
	CandidateUnknown     = "unknown"
)

// Report is the pre-filter verdict for a single candidate
type Report struct {
	Candidate     string   `json:"candidate"`
	FraudDetected bool     `json:"fraud_detected"`
	Reasons       []string `json:"reasons,omitempty"`
}

// BatchReport partitions a batch into passing and failing positions
type BatchReport struct {
	Passed []int           `json:"passed"`
	Failed map[int]*Report `json:"failed"`
}

// Checker screens candidates structurally; it never hashes content
type Checker struct {
	maxClockSkew time.Duration
	now          func() time.Time
}

// Option configures a Checker
type Option func(*Checker)

// WithClock overrides the clock used for timestamp sanity checks
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// WithMaxClockSkew overrides how far in the future timestamps may lie
func WithMaxClockSkew(skew time.Duration) Option {
	return func(c *Checker) {
		c.maxClockSkew = skew
	}
}

// NewChecker returns a pre-filter
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		maxClockSkew: DefaultMaxClockSkew,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultChecker = NewChecker()

// QuickCheck screens the candidate with the default checker
func QuickCheck(candidate interface{}) *Report {
	return defaultChecker.QuickCheck(candidate)
}

// DeepCheck screens the candidate with the default checker
func DeepCheck(candidate interface{}) *Report {
	return defaultChecker.DeepCheck(candidate)
}

// BatchCheck screens every candidate with the default checker
func BatchCheck(candidates []interface{}) *BatchReport {
	return defaultChecker.BatchCheck(candidates)
}

// findings accumulates the reasons a candidate is rejected
type findings struct {
	reasons []string
}

func (f *findings) add(format string, args ...interface{}) {
	f.reasons = append(f.reasons, fmt.Sprintf(format, args...))
}

func (f *findings) requireDigest(field, value string) {
	if value == "" {
		f.add("missing %s", field)
	} else if !common.IsHexDigest(value) {
		f.add("%s is not a hex-encoded digest", field)
	}
}

// QuickCheck runs the required-field, hash-shape, bounds and timestamp checks
func (c *Checker) QuickCheck(candidate interface{}) *Report {
	return c.check(candidate, false)
}

// DeepCheck runs QuickCheck plus cross-field consistency checks, without
// recomputing any commitment
func (c *Checker) DeepCheck(candidate interface{}) *Report {
	return c.check(candidate, true)
}

// BatchCheck quick-checks every candidate; one rejection never stops the batch
func (c *Checker) BatchCheck(candidates []interface{}) *BatchReport {
	report := &BatchReport{
		Passed: make([]int, 0, len(candidates)),
		Failed: map[int]*Report{},
	}
	for i, candidate := range candidates {
		r := c.QuickCheck(candidate)
		if r.FraudDetected {
			report.Failed[i] = r
		} else {
			report.Passed = append(report.Passed, i)
		}
	}
	return report
}

func (c *Checker) check(candidate interface{}, deep bool) *Report {
	f := &findings{}
	var kind string

	switch v := candidate.(type) {
	case *proof.Proof:
		kind = CandidateProof
		c.checkProof(f, v, deep)
	case *region.Proof:
		kind = CandidateRegionProof
		c.checkRegionProof(f, v, deep)
	case *tlog.Entry:
		kind = CandidateLogEntry
		c.checkEntry(f, v, deep)
	case []*tlog.Entry:
		kind = CandidateLogEntries
		c.checkEntries(f, v, deep)
	case *temporal.VideoAttestation:
		kind = CandidateAttestation
		c.checkAttestation(f, v, deep)
	default:
		kind = CandidateUnknown
		f.add("unsupported candidate type %T", candidate)
	}

	report := &Report{
		Candidate:     kind,
		FraudDetected: len(f.reasons) > 0,
		Reasons:       f.reasons,
	}

	if report.FraudDetected {
		depth := "quick"
		if deep {
			depth = "deep"
		}
		metrics.FraudRejections.WithLabelValues(kind, depth).Inc()
		common.Log.Debugf("fraud pre-filter rejected %s candidate; %d reason(s)", kind, len(f.reasons))
	}
	return report
}

func (c *Checker) checkTime(f *findings, field string, t time.Time) {
	if t.IsZero() {
		f.add("missing %s", field)
		return
	}
	if t.After(c.now().Add(c.maxClockSkew)) {
		f.add("%s lies in the future", field)
	}
}

func (c *Checker) checkTimestampMs(f *findings, field string, ms int64) {
	if ms <= 0 {
		f.add("%s must be positive", field)
		return
	}
	if ms > common.Milliseconds(c.now().Add(c.maxClockSkew)) {
		f.add("%s lies in the future", field)
	}
}
