/*
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
package audiofile

import (
	"math"

	"github.com/google-research/audiochunks/tools/signals"
	"github.com/mjibson/go-dsp/fft"
)

// Resample returns f, sampled at rate from, resampled to rate to.
//
// The resampling is done in the frequency domain, treating f as one period of
// a periodic signal: frequencies above the lower Nyquist frequency are
// dropped and the spectrum is zero padded or truncated to the new length.
func Resample(f signals.Float64Slice, from, to int) signals.Float64Slice {
	n := len(f)
	if from == to || n == 0 {
		return append(signals.Float64Slice(nil), f...)
	}
	m := int(math.Round(float64(n) * float64(to) / float64(from)))
	if m == 0 {
		return signals.Float64Slice{}
	}
	coeffs := fft.FFTReal(f)
	resampled := make([]complex128, m)
	k := n
	if m < k {
		k = m
	}
	half := (k + 1) / 2
	for bin := 0; bin < half; bin++ {
		resampled[bin] = coeffs[bin]
	}
	for bin := 1; bin < half; bin++ {
		resampled[m-bin] = coeffs[n-bin]
	}
	if k%2 == 0 {
		nyquist := k / 2
		if n < m {
			resampled[nyquist] = coeffs[nyquist] / 2
			resampled[m-nyquist] = coeffs[nyquist] / 2
		} else if m < n {
			resampled[nyquist] = coeffs[nyquist] + coeffs[n-nyquist]
		} else {
			resampled[nyquist] = coeffs[nyquist]
		}
	}
	samples := fft.IFFT(resampled)
	scale := float64(m) / float64(n)
	result := make(signals.Float64Slice, m)
	for idx := range result {
		result[idx] = real(samples[idx]) * scale
	}
	return result
}

// ResampleBuffer returns all channels of b resampled from rate from to rate to.
func ResampleBuffer(b signals.Buffer, from, to int) signals.Buffer {
	result := make(signals.Buffer, len(b))
	for idx := range b {
		result[idx] = Resample(b[idx], from, to)
	}
	return result
}
