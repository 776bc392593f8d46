/* Package signals contains types to express multi channel audio buffers and their levels.
 *
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package signals

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Hz is cycles per second.
type Hz float64

// Period returns the period of this frequency.
func (h Hz) Period() float64 {
	return 1.0 / float64(h)
}

// Power is the signal power, which is equivalent to the variance ( avg(sum(v^2)) - avg(v)^2 ) of a signal.
type Power float64

// DB returns the power converted to Decibel.
func (p Power) DB() DB {
	return DB(10 * math.Log10(float64(p)))
}

// DB is power expressed on a logarithm scale.
type DB float64

// Power returns the power of this Decibel level.
func (d DB) Power() Power {
	return Power(math.Pow(10, float64(d/10)))
}

// Gain returns the gain of this Decibel level.
func (d DB) Gain() float64 {
	return math.Pow(10, float64(d/20))
}

// GainDB returns the Decibel level of an amplitude gain.
// A zero gain is -Inf.
func GainDB(gain float64) DB {
	return DB(20 * math.Log10(math.Abs(gain)))
}

// Float64Slice represents a sound buffer of floats between -1 and 1.
type Float64Slice []float64

// EqTol returns whether the other float slice is equal to this one,
// within the given tolerance.
func (f Float64Slice) EqTol(o Float64Slice, tol float64) bool {
	if len(f) != len(o) {
		return false
	}
	for idx := range f {
		if math.Abs(f[idx]-o[idx]) > tol {
			return false
		}
	}
	return true
}

// Peak returns the largest absolute value in the slice, or 0 for an empty slice.
func (f Float64Slice) Peak() float64 {
	if len(f) == 0 {
		return 0
	}
	return math.Max(floats.Max(f), -floats.Min(f))
}

// PowerCalculator calculates power of signals.
type PowerCalculator struct {
	sum          float64
	sumOfSquares float64
	len          float64
}

// Feed feeds the calculator the next sample.
func (p *PowerCalculator) Feed(f float64) {
	p.sum += f
	p.sumOfSquares += f * f
	p.len++
}

// Power returns the power of the signal so far.
func (p *PowerCalculator) Power() Power {
	if p.len == 0 {
		return 0
	}
	mean := p.sum / p.len
	return Power(p.sumOfSquares/p.len - mean*mean)
}

// Power returns the signal power of the slice.
func (f Float64Slice) Power() Power {
	pc := &PowerCalculator{}
	for _, val := range f {
		pc.Feed(val)
	}
	return pc.Power()
}

// AddLevel adds a number of Decibel to the signal.
func (f Float64Slice) AddLevel(d DB) {
	floats.Scale(d.Gain(), f)
}

// Buffer is a multi channel sound buffer, indexed as [channel][sample].
// All channels are expected to have the same length.
type Buffer []Float64Slice

// NewBuffer returns a zero filled buffer with the given shape.
func NewBuffer(channels, samples int) Buffer {
	b := make(Buffer, channels)
	for idx := range b {
		b[idx] = make(Float64Slice, samples)
	}
	return b
}

// NumChannels returns the number of channels in the buffer.
func (b Buffer) NumChannels() int {
	return len(b)
}

// NumSamples returns the number of samples per channel in the buffer.
func (b Buffer) NumSamples() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Shape returns the number of channels and samples in the buffer.
func (b Buffer) Shape() (int, int) {
	return b.NumChannels(), b.NumSamples()
}

func (b Buffer) String() string {
	channels, samples := b.Shape()
	return fmt.Sprintf("Buffer(%dx%d)", channels, samples)
}

// Copy returns a deep copy of the buffer.
func (b Buffer) Copy() Buffer {
	result := make(Buffer, len(b))
	for idx := range b {
		result[idx] = append(Float64Slice(nil), b[idx]...)
	}
	return result
}

// Validate returns an error if the channels of the buffer have different lengths.
func (b Buffer) Validate() error {
	for idx := range b {
		if len(b[idx]) != len(b[0]) {
			return fmt.Errorf("channel %v has %v samples, channel 0 has %v", idx, len(b[idx]), len(b[0]))
		}
	}
	return nil
}

// Peak returns the largest absolute value across all channels.
func (b Buffer) Peak() float64 {
	peak := 0.0
	for _, channel := range b {
		peak = math.Max(peak, channel.Peak())
	}
	return peak
}

// PeakDB returns the peak level of the buffer in dB relative to full scale.
func (b Buffer) PeakDB() DB {
	return GainDB(b.Peak())
}

// Scale multiplies every sample in place and returns the buffer.
func (b Buffer) Scale(gain float64) Buffer {
	for _, channel := range b {
		floats.Scale(gain, channel)
	}
	return b
}

// Clamp limits every sample in place to [min, max] and returns the buffer.
func (b Buffer) Clamp(min, max float64) Buffer {
	for _, channel := range b {
		for idx, val := range channel {
			if val < min {
				channel[idx] = min
			} else if val > max {
				channel[idx] = max
			}
		}
	}
	return b
}

// EqTol returns whether the other buffer has the same shape and equal values
// within the given tolerance.
func (b Buffer) EqTol(o Buffer, tol float64) bool {
	if len(b) != len(o) {
		return false
	}
	for idx := range b {
		if !b[idx].EqTol(o[idx], tol) {
			return false
		}
	}
	return true
}
