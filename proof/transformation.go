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
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
)

// Supported transformation types
const (
	TransformationCrop       = "crop"
	TransformationResize     = "resize"
	TransformationGrayscale  = "grayscale"
	TransformationBrightness = "brightness"
	TransformationContrast   = "contrast"
	TransformationRotate     = "rotate"
)

// MaxDimension bounds the width and height of a transformation output
const MaxDimension = commitment.MaxDimension

var supportedTransformations = map[string]bool{
	TransformationCrop:       true,
	TransformationResize:     true,
	TransformationGrayscale:  true,
	TransformationBrightness: true,
	TransformationContrast:   true,
	TransformationRotate:     true,
}

// Transformation is a declared edit with its parameters
type Transformation struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Shape is the geometry of a raw pixel buffer
type Shape struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels"`
}

// ShapeOf returns the shape of the image
func ShapeOf(img *commitment.Image) Shape {
	return Shape{Width: img.Width, Height: img.Height, Channels: img.Channels}
}

// CommitmentShape returns the shape recorded by the commitment
func CommitmentShape(c *commitment.Commitment) Shape {
	return Shape{Width: c.Width, Height: c.Height, Channels: c.Channels}
}

// Length returns the number of bytes in a buffer of this shape
func (s Shape) Length() int {
	return s.Width * s.Height * s.Channels
}

// IsSupported returns true if the transformation type has a structural proof
func IsSupported(transformationType string) bool {
	return supportedTransformations[strings.ToLower(transformationType)]
}

// Clone returns a copy of the transformation whose params share no state with t
func (t *Transformation) Clone() *Transformation {
	if t == nil {
		return nil
	}
	clone := &Transformation{Type: t.Type}
	if t.Params != nil {
		clone.Params = cloneValue(t.Params).(map[string]interface{})
	}
	return clone
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = cloneValue(item)
		}
		return m
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = cloneValue(item)
		}
		return items
	}
	return v
}

// Normalize lowercases the type
func (t *Transformation) Normalize() {
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
}

// CanonicalParams returns the deterministic encoding of the parameters
func (t *Transformation) CanonicalParams() (string, error) {
	if len(t.Params) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(t.Params)
	if err != nil {
		return "", fmt.Errorf("failed to encode transformation params; %s", err.Error())
	}
	return string(raw), nil
}

// OutputShape validates the parameters against the input shape and returns
// the shape the transformed image must have
func (t *Transformation) OutputShape(in Shape) (Shape, error) {
	switch strings.ToLower(t.Type) {
	case TransformationCrop:
		x, err := t.intParam("x")
		if err != nil {
			return Shape{}, err
		}
		y, err := t.intParam("y")
		if err != nil {
			return Shape{}, err
		}
		w, err := t.intParam("width", "w")
		if err != nil {
			return Shape{}, err
		}
		h, err := t.intParam("height", "h")
		if err != nil {
			return Shape{}, err
		}
		if x < 0 || y < 0 || w <= 0 || h <= 0 {
			return Shape{}, invalidParams("crop region must have non-negative origin and positive size")
		}
		if x > in.Width-w || y > in.Height-h {
			return Shape{}, invalidParams(fmt.Sprintf("crop region %dx%d at (%d,%d) exceeds %dx%d input", w, h, x, y, in.Width, in.Height))
		}
		return Shape{Width: w, Height: h, Channels: in.Channels}, nil

	case TransformationResize:
		w, err := t.intParam("width", "w")
		if err != nil {
			return Shape{}, err
		}
		h, err := t.intParam("height", "h")
		if err != nil {
			return Shape{}, err
		}
		if w <= 0 || h <= 0 || w > MaxDimension || h > MaxDimension {
			return Shape{}, invalidParams(fmt.Sprintf("invalid resize target %dx%d", w, h))
		}
		return Shape{Width: w, Height: h, Channels: in.Channels}, nil

	case TransformationGrayscale:
		return in, nil

	case TransformationBrightness, TransformationContrast:
		v, err := t.floatParam("value")
		if err != nil {
			return Shape{}, err
		}
		if v < -100 || v > 100 {
			return Shape{}, invalidParams(fmt.Sprintf("%s value %v outside [-100, 100]", t.Type, v))
		}
		return in, nil

	case TransformationRotate:
		degrees, err := t.intParam("degrees")
		if err != nil {
			return Shape{}, err
		}
		switch normalizeDegrees(degrees) {
		case 0, 180:
			return in, nil
		case 90, 270:
			return Shape{Width: in.Height, Height: in.Width, Channels: in.Channels}, nil
		default:
			return Shape{}, invalidParams(fmt.Sprintf("rotation of %d degrees is not a multiple of 90", degrees))
		}
	}

	return Shape{}, fmt.Errorf("transformation %s; %w", t.Type, common.ErrUnsupportedTransformation)
}

func normalizeDegrees(degrees int) int {
	return ((degrees % 360) + 360) % 360
}

func invalidParams(msg string) error {
	return fmt.Errorf("%s; %w", msg, common.ErrInvalidTransformationParams)
}

// intParam resolves the first present key as an integer
func (t *Transformation) intParam(keys ...string) (int, error) {
	v, err := t.floatParam(keys...)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, invalidParams(fmt.Sprintf("param %s must be an integer", keys[0]))
	}
	if math.Abs(v) > math.MaxInt32 {
		return 0, invalidParams(fmt.Sprintf("param %s out of range", keys[0]))
	}
	return int(v), nil
}

func (t *Transformation) floatParam(keys ...string) (float64, error) {
	for _, key := range keys {
		raw, ok := t.Params[key]
		if !ok {
			continue
		}

		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return 0, invalidParams(fmt.Sprintf("param %s is not numeric", key))
			}
			return f, nil
		default:
			return 0, invalidParams(fmt.Sprintf("param %s is not numeric", key))
		}
	}

	return 0, invalidParams(fmt.Sprintf("param %s required for %s", keys[0], t.Type))
}
