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

package commitment

// Option configures commitment computation
type Option func(*options)

type options struct {
	algorithm string
}

// WithAlgorithm selects the tile hash algorithm
func WithAlgorithm(algorithm string) Option {
	return func(o *options) {
		o.algorithm = algorithm
	}
}

func resolveOptions(opts ...Option) *options {
	o := &options{
		algorithm: AlgorithmSHA256,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
