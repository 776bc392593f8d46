/* Package chunk draws fixed length windows from audio buffers, and redraws windows that turn out to be silent.
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
package chunk

import (
	"math/rand"

	"github.com/google-research/audiochunks/tools/signals"
)

const (
	// DefaultSilenceThreshold is the peak level below which a chunk is considered silent.
	DefaultSilenceThreshold signals.DB = -60
)

// Start returns the first sample of a window of nSamples out of a signal of
// length samples. Random starts are uniform in [0, max(0, samples-nSamples)].
func Start(samples, nSamples int, randomize bool, r *rand.Rand) int {
	if !randomize {
		return 0
	}
	slack := samples - nSamples
	if slack < 0 {
		slack = 0
	}
	return r.Intn(slack + 1)
}

// DrawAt returns a window of nSamples starting at start. Samples past the end of the
// signal are zero, so short signals are padded on the right.
func DrawAt(signal signals.Buffer, nSamples int, start int) signals.Buffer {
	result := signals.NewBuffer(signal.NumChannels(), nSamples)
	for channelIdx, channel := range signal {
		if start < len(channel) {
			copy(result[channelIdx], channel[start:])
		}
	}
	return result
}

// Draw returns a window of nSamples from the signal, starting at a random
// position if randomize is set and at the first sample otherwise.
func Draw(signal signals.Buffer, nSamples int, randomize bool, r *rand.Rand) signals.Buffer {
	return DrawAt(signal, nSamples, Start(signal.NumSamples(), nSamples, randomize, r))
}

// IsSilence returns true if the peak level of the chunk is below thresh.
// An all zero chunk has a level of -Inf and is always silent.
func IsSilence(chunk signals.Buffer, thresh signals.DB) bool {
	return chunk.PeakDB() < thresh
}

// Drawer draws chunks and optionally redraws silent ones.
type Drawer struct {
	// NSamples is the length of the drawn chunks.
	NSamples int
	// Randomize makes the first draw start at a random position.
	Randomize bool
	// RedrawSilence makes the drawer redraw chunks that are silent.
	RedrawSilence bool
	// Threshold is the level below which chunks are silent.
	Threshold signals.DB
	// MaxRedraws is the maximum number of redraws of a silent chunk.
	MaxRedraws int
}

// Stats describes the outcome of a Drawer.Draw.
type Stats struct {
	// Draws is the number of windows drawn, including the accepted one.
	Draws int
	// Silent is true if redrawing was enabled and the accepted chunk is silent.
	Silent bool
}

// Draw returns a chunk of d.NSamples from signal.
func (d Drawer) Draw(signal signals.Buffer, r *rand.Rand) signals.Buffer {
	result, _ := d.DrawWithStats(signal, r)
	return result
}

// DrawWithStats returns a chunk of d.NSamples from signal, along with how many
// windows were drawn to produce it.
//
// A silent chunk is redrawn from a random position until it isn't silent, or
// until MaxRedraws redraws have been made, at which point the last chunk is
// returned as is.
func (d Drawer) DrawWithStats(signal signals.Buffer, r *rand.Rand) (signals.Buffer, Stats) {
	stats := Stats{Draws: 1}
	result := Draw(signal, d.NSamples, d.Randomize, r)
	for {
		if !d.RedrawSilence {
			return result, stats
		}
		stats.Silent = IsSilence(result, d.Threshold)
		if !stats.Silent || stats.Draws > d.MaxRedraws {
			return result, stats
		}
		result = Draw(signal, d.NSamples, true, r)
		stats.Draws++
	}
}
