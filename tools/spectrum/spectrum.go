/* Package spectrum computes power spectra of chunks.
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
package spectrum

import (
	"bytes"
	"fmt"
	"io"
	"math/cmplx"

	"github.com/google-research/audiochunks/tools/signals"
	"github.com/mjibson/go-dsp/fft"
)

// S is the power spectrum of a signal, from DC up to but excluding Nyquist.
type S struct {
	// Power is the power in each bin, where a full scale sine has power 0.5.
	Power    []signals.Power
	BinWidth signals.Hz
	Rate     signals.Hz
}

func binPowers(f signals.Float64Slice) []signals.Power {
	coeffs := fft.FFTReal(f)
	invBuffer := 1.0 / float64(len(f))
	result := make([]signals.Power, len(coeffs)/2)
	for bin := range result {
		gain := cmplx.Abs(coeffs[bin]) * invBuffer
		if bin == 0 {
			result[bin] = signals.Power(gain * gain)
			continue
		}
		gain *= 2
		result[bin] = signals.Power(0.5 * gain * gain)
	}
	return result
}

// Compute returns the spectrum of f, sampled at rate.
func Compute(f signals.Float64Slice, rate signals.Hz) *S {
	return &S{
		Power:    binPowers(f),
		BinWidth: rate / signals.Hz(len(f)),
		Rate:     rate,
	}
}

// ComputeBuffer returns the spectrum of b, sampled at rate, averaged over its channels.
func ComputeBuffer(b signals.Buffer, rate signals.Hz) *S {
	result := &S{
		BinWidth: rate / signals.Hz(b.NumSamples()),
		Rate:     rate,
	}
	for _, channel := range b {
		powers := binPowers(channel)
		if result.Power == nil {
			result.Power = make([]signals.Power, len(powers))
		}
		for bin := range powers {
			result.Power[bin] += powers[bin] / signals.Power(b.NumChannels())
		}
	}
	return result
}

// DB returns the power of each bin in dB.
func (s *S) DB() []signals.DB {
	result := make([]signals.DB, len(s.Power))
	for bin := range s.Power {
		result[bin] = s.Power[bin].DB()
	}
	return result
}

// F32DB returns the power of each bin in dB as float32s.
func (s *S) F32DB() []float32 {
	result := make([]float32, len(s.Power))
	for bin := range s.Power {
		result[bin] = float32(s.Power[bin].DB())
	}
	return result
}

// Peak returns the center frequency of the bin with the most power.
func (s *S) Peak() signals.Hz {
	peakBin := 0
	for bin := range s.Power {
		if s.Power[bin] > s.Power[peakBin] {
			peakBin = bin
		}
	}
	return signals.Hz(peakBin) * s.BinWidth
}

// Print draws the spectrum as a bar chart of a given width, one line per bin.
func (s *S) Print(width int, w io.Writer) {
	headers := []string{}
	maxHeaderLen := 0
	maxPower := signals.Power(0)
	for bin := range s.Power {
		header := fmt.Sprintf("%.2fHz %.1fdB ", signals.Hz(bin)*s.BinWidth, s.Power[bin].DB())
		if len(header) > maxHeaderLen {
			maxHeaderLen = len(header)
		}
		headers = append(headers, header)
		if s.Power[bin] > maxPower {
			maxPower = s.Power[bin]
		}
	}
	barLen := width - maxHeaderLen
	for bin := range s.Power {
		line := bytes.NewBufferString(headers[bin])
		for line.Len() < maxHeaderLen {
			fmt.Fprint(line, " ")
		}
		if maxPower > 0 {
			for stars := int(float64(s.Power[bin]/maxPower) * float64(barLen)); stars > 0; stars-- {
				fmt.Fprint(line, "*")
			}
		}
		fmt.Fprintln(w, line.String())
	}
}
