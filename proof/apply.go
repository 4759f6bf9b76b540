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
)

// Apply produces the transformed image using the reference implementation of
// each supported transformation
func Apply(img *commitment.Image, t *Transformation) (*commitment.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	out, err := t.OutputShape(ShapeOf(img))
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(t.Type) {
	case TransformationCrop:
		x, _ := t.intParam("x")
		y, _ := t.intParam("y")
		return crop(img, x, y, out.Width, out.Height), nil
	case TransformationResize:
		return resize(img, out.Width, out.Height), nil
	case TransformationGrayscale:
		return grayscale(img), nil
	case TransformationBrightness:
		v, _ := t.floatParam("value")
		delta := v * 255 / 100
		return mapColor(img, func(p float64) float64 { return p + delta }), nil
	case TransformationContrast:
		v, _ := t.floatParam("value")
		factor := (100 + v) / 100
		return mapColor(img, func(p float64) float64 { return (p-128)*factor + 128 }), nil
	case TransformationRotate:
		degrees, _ := t.intParam("degrees")
		return rotate(img, normalizeDegrees(degrees)), nil
	}

	return nil, fmt.Errorf("no reference implementation for %s", t.Type)
}

func crop(img *commitment.Image, x, y, w, h int) *commitment.Image {
	out := commitment.NewImage(w, h, img.Channels)
	rowLen := w * img.Channels
	for row := 0; row < h; row++ {
		src := img.Offset(x, y+row)
		copy(out.Pix[row*rowLen:(row+1)*rowLen], img.Pix[src:src+rowLen])
	}
	return out
}

// nearest neighbour
func resize(img *commitment.Image, w, h int) *commitment.Image {
	out := commitment.NewImage(w, h, img.Channels)
	for y := 0; y < h; y++ {
		sy := y * img.Height / h
		for x := 0; x < w; x++ {
			sx := x * img.Width / w
			copy(out.Pix[out.Offset(x, y):out.Offset(x, y)+img.Channels], img.Pix[img.Offset(sx, sy):img.Offset(sx, sy)+img.Channels])
		}
	}
	return out
}

// colorChannels returns the number of leading channels holding color; a
// trailing alpha channel is left untouched
func colorChannels(channels int) int {
	switch channels {
	case 2, 4:
		return channels - 1
	default:
		return channels
	}
}

func grayscale(img *commitment.Image) *commitment.Image {
	out := img.Clone()
	if colorChannels(img.Channels) < 3 {
		return out
	}

	for i := 0; i < len(out.Pix); i += img.Channels {
		r, g, b := int(out.Pix[i]), int(out.Pix[i+1]), int(out.Pix[i+2])
		luma := byte((299*r + 587*g + 114*b) / 1000)
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = luma, luma, luma
	}
	return out
}

func mapColor(img *commitment.Image, fn func(float64) float64) *commitment.Image {
	out := img.Clone()
	color := colorChannels(img.Channels)
	for i := 0; i < len(out.Pix); i += img.Channels {
		for c := 0; c < color; c++ {
			out.Pix[i+c] = clamp(fn(float64(out.Pix[i+c])))
		}
	}
	return out
}

func clamp(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

// rotate turns the image clockwise by a multiple of 90 degrees
func rotate(img *commitment.Image, degrees int) *commitment.Image {
	if degrees == 0 {
		return img.Clone()
	}

	w, h := img.Width, img.Height
	if degrees == 90 || degrees == 270 {
		w, h = img.Height, img.Width
	}

	out := commitment.NewImage(w, h, img.Channels)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var dx, dy int
			switch degrees {
			case 90:
				dx, dy = img.Height-1-y, x
			case 180:
				dx, dy = img.Width-1-x, img.Height-1-y
			case 270:
				dx, dy = y, img.Width-1-x
			}
			copy(out.Pix[out.Offset(dx, dy):out.Offset(dx, dy)+img.Channels], img.Pix[img.Offset(x, y):img.Offset(x, y)+img.Channels])
		}
	}
	return out
}
