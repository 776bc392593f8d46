/* Package audiofile finds, reads and writes audio files.
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
package audiofile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/google-research/audiochunks/tools/signals"
	"github.com/youpy/go-wav"
)

var (
	// Extensions are the file extensions List recognizes as audio files.
	Extensions = []string{"wav", "WAV", "wave", "WAVE"}

	// ErrUnsupportedFormat is returned when reading files that aren't WAV files.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Recognized returns whether the path has one of the Extensions.
func Recognized(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// List returns the audio files found in paths.
// Directories are searched recursively, files are included if they are Recognized.
// The files of each path are sorted, and the paths keep their order.
func List(paths ...string) ([]string, error) {
	result := []string{}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if Recognized(root) {
				result = append(result, root)
			}
			continue
		}
		if strings.ContainsAny(root, "*?[]{}\\") {
			return nil, fmt.Errorf("directory %q contains glob meta characters", root)
		}
		pattern := filepath.Join(root, "**", "*.{"+strings.Join(Extensions, ",")+"}")
		matches, err := doublestar.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("unable to glob %q: %w", pattern, err)
		}
		found := []string{}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, err
			}
			if info.Mode().IsRegular() {
				found = append(found, match)
			}
		}
		sort.Strings(found)
		result = append(result, found...)
	}
	return result, nil
}

// Source is something WAV data can be read from, like an *os.File or a *bytes.Reader.
type Source interface {
	io.Reader
	io.ReaderAt
}

// ReadWAV returns the samples and sample rate of the WAV data in src.
func ReadWAV(src Source) (signals.Buffer, int, error) {
	reader := wav.NewReader(src)
	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return nil, 0, fmt.Errorf("%w: %v channels", ErrUnsupportedFormat, format.NumChannels)
	}
	if format.BitsPerSample < 8 || format.BitsPerSample > 32 {
		return nil, 0, fmt.Errorf("%w: %v bits per sample", ErrUnsupportedFormat, format.BitsPerSample)
	}
	// 8 bit WAV samples are unsigned, wider ones are signed.
	offset := 0.0
	scale := math.Pow(2, float64(format.BitsPerSample-1))
	if format.BitsPerSample == 8 {
		offset = -128
	}
	result := signals.NewBuffer(int(format.NumChannels), 0)
	for {
		samples, err := reader.ReadSamples()
		for _, sample := range samples {
			for channelIdx := range result {
				result[channelIdx] = append(result[channelIdx], (float64(sample.Values[channelIdx])+offset)/scale)
			}
		}
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, err
		}
	}
	return result, int(format.SampleRate), nil
}

// ReadWAVFile returns the samples and sample rate of the WAV file at path.
func ReadWAVFile(path string) (signals.Buffer, int, error) {
	if !Recognized(path) {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadWAV(f)
}

// WriteWAV writes the buffer as a 16 bit WAV file to a writer, declaring a given
// sample rate. Values outside [-1, 1] are clipped.
func WriteWAV(w io.Writer, b signals.Buffer, rate int) error {
	if b.NumChannels() < 1 || b.NumChannels() > 2 {
		return fmt.Errorf("%w: %v channels", ErrUnsupportedFormat, b.NumChannels())
	}
	if err := b.Validate(); err != nil {
		return err
	}
	wavSamples := make([]wav.Sample, b.NumSamples())
	for idx := range wavSamples {
		for channelIdx := range b {
			val := math.Max(-1, math.Min(1, b[channelIdx][idx]))
			wavSamples[idx].Values[channelIdx] = int(val * float64(math.MaxInt16))
		}
	}
	buf := &bytes.Buffer{}
	wavWriter := wav.NewWriter(buf, uint32(b.NumSamples()), uint16(b.NumChannels()), uint32(rate), 16)
	if err := wavWriter.WriteSamples(wavSamples); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}

// WriteWAVFile writes the buffer as a 16 bit WAV file to path.
func WriteWAVFile(path string, b signals.Buffer, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, b, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Loader loads audio files at a given sample rate.
type Loader struct {
	// Rate is the sample rate of the loaded buffers. Files with other rates are resampled.
	// A Rate of 0 keeps the rate of the file.
	Rate int
}

// Load returns the samples of the audio file at path, at the sample rate of the loader.
func (l Loader) Load(path string) (signals.Buffer, error) {
	b, rate, err := ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	if l.Rate > 0 && rate != l.Rate {
		if rate <= 0 {
			return nil, fmt.Errorf("%q has invalid sample rate %v", path, rate)
		}
		b = ResampleBuffer(b, rate, l.Rate)
	}
	return b, nil
}
