/* Package encode converts the channel layout of audio chunks.
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
package encode

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google-research/audiochunks/tools/signals"
)

// Encoder is a deterministic conversion of the channel layout of a buffer.
// Encoders never modify their input.
type Encoder interface {
	Encode(b signals.Buffer) signals.Buffer
}

// Mono averages all channels into a single channel.
type Mono struct{}

// Encode returns a single channel buffer, where each sample is the mean of the channels of b.
func (Mono) Encode(b signals.Buffer) signals.Buffer {
	if b.NumChannels() < 2 {
		return b.Copy()
	}
	result := signals.NewBuffer(1, b.NumSamples())
	for _, channel := range b {
		for idx, val := range channel {
			result[0][idx] += val
		}
	}
	for idx := range result[0] {
		result[0][idx] /= float64(b.NumChannels())
	}
	return result
}

// Stereo produces exactly two channels.
type Stereo struct{}

// Encode returns b with mono duplicated to both channels, and only the first two channels kept
// when b has more than two.
func (Stereo) Encode(b signals.Buffer) signals.Buffer {
	switch b.NumChannels() {
	case 0:
		return signals.NewBuffer(2, 0)
	case 1:
		return signals.Buffer{
			append(signals.Float64Slice(nil), b[0]...),
			append(signals.Float64Slice(nil), b[0]...),
		}
	default:
		return b[:2].Copy()
	}
}

// None returns its input unchanged.
type None struct{}

// Encode returns a copy of b.
func (None) Encode(b signals.Buffer) signals.Buffer {
	return b.Copy()
}

var (
	encoders = map[string]Encoder{
		"mono":   Mono{},
		"stereo": Stereo{},
		"none":   None{},
	}
)

// Lookup returns the encoder with the given name. The empty name is "mono".
func Lookup(name string) (Encoder, error) {
	if name == "" {
		name = "mono"
	}
	encoder, found := encoders[strings.ToLower(name)]
	if !found {
		names := []string{}
		for known := range encoders {
			names = append(names, known)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown encoding %q, known encodings are %s", name, strings.Join(names, ", "))
	}
	return encoder, nil
}
