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

package common

import (
	"errors"
)

// Error kinds surfaced by the provenance services; wrap them with %w so
// callers can match using errors.Is
var (
	ErrMalformedContent            = errors.New("malformed content")
	ErrInvalidTransformationParams = errors.New("invalid transformation params")
	ErrChainContinuity             = errors.New("chain continuity violated")
	ErrSessionNotFound             = errors.New("session not found")
	ErrSessionClosed               = errors.New("session closed")
	ErrSignatureInvalid            = errors.New("signature invalid")
	ErrHashMismatch                = errors.New("hash mismatch")
	ErrUnsupportedTransformation   = errors.New("unsupported transformation")
	ErrTooManyFrames               = errors.New("too many frames")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Reason tags reported in verification results
const (
	ReasonMalformedContent            = "MalformedContent"
	ReasonInvalidTransformationParams = "InvalidTransformationParams"
	ReasonChainContinuity             = "ChainContinuityError"
	ReasonSessionNotFound             = "SessionNotFound"
	ReasonSessionClosed               = "SessionClosed"
	ReasonSignatureInvalid            = "SignatureInvalid"
	ReasonHashMismatch                = "HashMismatch"
	ReasonUnsupportedTransformation   = "UnsupportedTransformation"
	ReasonTooManyFrames               = "TooManyFrames"
	ReasonNotFound                    = "NotFound"
	ReasonConflict                    = "Conflict"
	ReasonUnknown                     = "Unknown"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrMalformedContent, ReasonMalformedContent},
	{ErrInvalidTransformationParams, ReasonInvalidTransformationParams},
	{ErrChainContinuity, ReasonChainContinuity},
	{ErrSessionNotFound, ReasonSessionNotFound},
	{ErrSessionClosed, ReasonSessionClosed},
	{ErrSignatureInvalid, ReasonSignatureInvalid},
	{ErrHashMismatch, ReasonHashMismatch},
	{ErrUnsupportedTransformation, ReasonUnsupportedTransformation},
	{ErrTooManyFrames, ReasonTooManyFrames},
	{ErrNotFound, ReasonNotFound},
	{ErrConflict, ReasonConflict},
}

// Reason returns the reason tag for the error kind wrapped by err; nil
// yields the empty string
func Reason(err error) string {
	if err == nil {
		return ""
	}

	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}

	return ReasonUnknown
}

// StatusCode maps an error kind to the http status rendered by the api handlers
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return 404
	case errors.Is(err, ErrConflict), errors.Is(err, ErrSessionClosed), errors.Is(err, ErrChainContinuity):
		return 409
	case errors.Is(err, ErrMalformedContent),
		errors.Is(err, ErrInvalidTransformationParams),
		errors.Is(err, ErrUnsupportedTransformation),
		errors.Is(err, ErrTooManyFrames),
		errors.Is(err, ErrHashMismatch),
		errors.Is(err, ErrSignatureInvalid):
		return 422
	default:
		return 500
	}
}
