/* Package tfexample stores chunks as tf.Example protos in TFRecord files.
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
package tfexample

import (
	"io"

	"github.com/google-research/audiochunks/tools/signals"
	"github.com/ryszard/tfutils/go/tfrecord"
	"google.golang.org/protobuf/proto"

	proto1 "github.com/golang/protobuf/proto"
	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

// Feature names of the produced tf.Examples.
const (
	AudioFeature      = "audio"
	ChannelsFeature   = "channels"
	SamplesFeature    = "samples"
	SampleRateFeature = "sample_rate"
	IndexFeature      = "index"
	PathFeature       = "path"
	DrawsFeature      = "draws"
	SpectrumFeature   = "spectrum_db"
)

// Chunk is a chunk of audio along with where it came from.
type Chunk struct {
	Audio      signals.Buffer
	SampleRate int
	// Index is the dataset index of the file the chunk was drawn from.
	Index int
	Path  string
	// Draws is the number of windows drawn before the chunk was accepted.
	Draws int
	// SpectrumDB is an optional power spectrum of the audio, stored if not nil.
	SpectrumDB []float32
}

func int64Feature(i int) *tf.Feature {
	return &tf.Feature{Kind: &tf.Feature_Int64List{Int64List: &tf.Int64List{Value: []int64{int64(i)}}}}
}

// ToTFExample converts the chunk to a tf.Example.
// The audio is stored channel after channel in a single float list.
func (c Chunk) ToTFExample() (*tf.Example, error) {
	if err := c.Audio.Validate(); err != nil {
		return nil, err
	}
	floats := make([]float32, 0, c.Audio.NumChannels()*c.Audio.NumSamples())
	for _, channel := range c.Audio {
		for _, sample := range channel {
			floats = append(floats, float32(sample))
		}
	}
	ex := &tf.Example{
		Features: &tf.Features{
			Feature: map[string]*tf.Feature{
				AudioFeature:      &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: floats}}},
				ChannelsFeature:   int64Feature(c.Audio.NumChannels()),
				SamplesFeature:    int64Feature(c.Audio.NumSamples()),
				SampleRateFeature: int64Feature(c.SampleRate),
				IndexFeature:      int64Feature(c.Index),
				PathFeature:       &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: [][]byte{[]byte(c.Path)}}}},
				DrawsFeature:      int64Feature(c.Draws),
			},
		},
	}
	if c.SpectrumDB != nil {
		ex.Features.Feature[SpectrumFeature] = &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: c.SpectrumDB}}}
	}
	return ex, nil
}

// Writer writes chunks as TFRecords.
type Writer struct {
	w       io.Writer
	written int
}

// NewWriter returns a writer of TFRecords to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the chunk as a TFRecord containing a tf.Example.
func (w *Writer) Write(c Chunk) error {
	example, err := c.ToTFExample()
	if err != nil {
		return err
	}
	encoded, err := proto.Marshal(proto1.MessageV2(example))
	if err != nil {
		return err
	}
	if err := tfrecord.Write(w.w, encoded); err != nil {
		return err
	}
	w.written++
	return nil
}

// Written returns the number of chunks written.
func (w *Writer) Written() int {
	return w.written
}
