/* Package augment contains stochastic transforms applied to audio chunks, and a registry to build chains of them from configuration.
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
package augment

import (
	"fmt"
	"math/rand"

	"github.com/google-research/audiochunks/tools/chunk"
	"github.com/google-research/audiochunks/tools/signals"
)

const (
	// NormalizeEpsilon is added to the peak before normalizing.
	NormalizeEpsilon = 1e-2
	// FillNoiseMaxLevel is the largest amplitude of the noise added by FillNoise.
	FillNoiseMaxLevel = 0.25
)

// Transform is a shape preserving function of a buffer.
// Implementations must not modify the input buffer, and must keep no state between calls.
type Transform interface {
	Apply(b signals.Buffer, r *rand.Rand) signals.Buffer
}

// Crop crops or pads the buffer to NSamples.
type Crop struct {
	NSamples  int
	Randomize bool
}

// Apply returns a window of c.NSamples from b.
func (c Crop) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	return chunk.Draw(b, c.NSamples, c.Randomize, r)
}

func (c Crop) String() string {
	return fmt.Sprintf("Crop(%v, randomize=%v)", c.NSamples, c.Randomize)
}

// PhaseFlip negates the buffer with probability P.
type PhaseFlip struct {
	P float64
}

// Apply returns b negated with probability p.P, and a copy of b otherwise.
func (p PhaseFlip) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	result := b.Copy()
	if r.Float64() < p.P {
		result.Scale(-1)
	}
	return result
}

func (p PhaseFlip) String() string {
	return fmt.Sprintf("PhaseFlip(%v)", p.P)
}

// FillNoise adds uniform noise with a random amplitude up to FillNoiseMaxLevel, with probability P.
type FillNoise struct {
	P float64
}

// Apply returns b with noise added with probability f.P, and a copy of b otherwise.
func (f FillNoise) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	result := b.Copy()
	if r.Float64() >= f.P {
		return result
	}
	level := FillNoiseMaxLevel * r.Float64()
	for _, channel := range result {
		for idx := range channel {
			channel[idx] += level * (2*r.Float64() - 1)
		}
	}
	return result
}

func (f FillNoise) String() string {
	return fmt.Sprintf("FillNoise(%v)", f.P)
}

// RandomPool smooths the buffer with a moving average of random width in [1, MaxKernel), with probability P.
type RandomPool struct {
	P         float64
	MaxKernel int
}

// Apply returns b smoothed with probability p.P, and a copy of b otherwise.
func (p RandomPool) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	if r.Float64() >= p.P || p.MaxKernel < 2 {
		return b.Copy()
	}
	return MovingAverage(b, 1+r.Intn(p.MaxKernel-1))
}

func (p RandomPool) String() string {
	return fmt.Sprintf("RandomPool(%v, maxKernel=%v)", p.P, p.MaxKernel)
}

// MovingAverage returns b where every sample is replaced by the mean of the
// kernel samples centered on it. Near the edges only the samples inside the
// buffer are averaged, so the result has the same shape as b.
func MovingAverage(b signals.Buffer, kernel int) signals.Buffer {
	result := signals.NewBuffer(b.Shape())
	if kernel < 1 {
		kernel = 1
	}
	before := kernel / 2
	for channelIdx, channel := range b {
		prefix := make([]float64, len(channel)+1)
		for idx, val := range channel {
			prefix[idx+1] = prefix[idx] + val
		}
		for idx := range channel {
			from := idx - before
			if from < 0 {
				from = 0
			}
			to := idx - before + kernel
			if to > len(channel) {
				to = len(channel)
			}
			result[channelIdx][idx] = (prefix[to] - prefix[from]) / float64(to-from)
		}
	}
	return result
}

// RandomGain scales the buffer with a gain uniformly drawn from [Min, Max].
type RandomGain struct {
	Min float64
	Max float64
}

// Apply returns b scaled by a random gain.
func (g RandomGain) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	return b.Copy().Scale(g.Min + r.Float64()*(g.Max-g.Min))
}

func (g RandomGain) String() string {
	return fmt.Sprintf("RandomGain(%v, %v)", g.Min, g.Max)
}

// NormalizeInputs divides the buffer by its peak plus NormalizeEpsilon, if Enabled.
type NormalizeInputs struct {
	Enabled bool
}

// Apply returns b normalized if n.Enabled, and a copy of b otherwise.
func (n NormalizeInputs) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	result := b.Copy()
	if !n.Enabled {
		return result
	}
	return result.Scale(1 / (result.Peak() + NormalizeEpsilon))
}

func (n NormalizeInputs) String() string {
	return fmt.Sprintf("NormalizeInputs(%v)", n.Enabled)
}

// Chain applies a sequence of transforms in order.
type Chain []Transform

// Apply feeds b through all transforms of the chain.
func (c Chain) Apply(b signals.Buffer, r *rand.Rand) signals.Buffer {
	for _, transform := range c {
		b = transform.Apply(b, r)
	}
	return b
}

// ApplyClamped feeds b through all transforms of the chain and clamps the result to [-1, 1].
func (c Chain) ApplyClamped(b signals.Buffer, r *rand.Rand) signals.Buffer {
	result := c.Apply(b, r)
	if len(c) == 0 {
		result = result.Copy()
	}
	return result.Clamp(-1, 1)
}

func (c Chain) String() string {
	return fmt.Sprintf("%v", []Transform(c))
}
