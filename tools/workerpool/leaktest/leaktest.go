/* leaktest draws many chunks concurrently from an in memory dataset of noise
 * and reports whether the heap keeps growing.
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
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"

	"github.com/cheggaaa/pb"
	"github.com/google-research/audiochunks/tools/augment"
	"github.com/google-research/audiochunks/tools/dataset"
	"github.com/google-research/audiochunks/tools/signals"
	"github.com/google-research/audiochunks/tools/workerpool"
	"github.com/sirupsen/logrus"
)

var (
	numFiles    = flag.Int("num_files", 64, "Number of noise files in the dataset.")
	fileSamples = flag.Int("file_samples", 1<<18, "Number of samples in each noise file.")
	sampleSize  = flag.Int("sample_size", 1<<16, "Number of samples in each chunk.")
	jobs        = flag.Int("jobs", 10000, "Number of chunks to draw.")
	rounds      = flag.Int("rounds", 4, "Number of rounds of jobs, the heap is measured after each.")
)

type noiseLoader struct {
	samples int
}

func (n noiseLoader) Load(path string) (signals.Buffer, error) {
	r := rand.New(rand.NewSource(int64(len(path))))
	result := signals.NewBuffer(2, n.samples)
	for _, channel := range result {
		for idx := range channel {
			channel[idx] = r.Float64()*2 - 1
		}
	}
	return result, nil
}

func heapMB() float64 {
	runtime.GC()
	stats := runtime.MemStats{}
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc) / (1 << 20)
}

func main() {
	flag.Parse()
	logrus.SetLevel(logrus.WarnLevel)

	files := make([]string, *numFiles)
	for idx := range files {
		files[idx] = fmt.Sprintf("noise_%v.wav", idx)
	}
	config := dataset.DefaultConfig()
	config.SampleSize = *sampleSize
	config.CacheTrainingData = true
	config.NumGPUs = 1
	config.Encoding = "stereo"
	config.Augmentations = []augment.Spec{
		{Type: "PhaseFlip"},
		{Type: "FillNoise"},
		{Type: "RandomPool"},
		{Type: "RandomGain"},
		{Type: "NormalizeInputs", Params: []byte(`{"Enabled": true}`)},
	}
	d, err := dataset.New(config, files, noiseLoader{samples: *fileSamples})
	if err != nil {
		log.Panic(err)
	}

	heaps := []float64{heapMB()}
	for round := 0; round < *rounds; round++ {
		bar := pb.StartNew(*jobs).Prefix(fmt.Sprintf("Round %v", round))
		if err := workerpool.Each(runtime.NumCPU(), *jobs, func(idx int) error {
			chunk, err := d.Get(idx % d.Len())
			if err != nil {
				return err
			}
			if chunk.NumSamples() != *sampleSize {
				return fmt.Errorf("got %v samples, wanted %v", chunk.NumSamples(), *sampleSize)
			}
			bar.Increment()
			return nil
		}); err != nil {
			log.Panic(err)
		}
		bar.Finish()
		heaps = append(heaps, heapMB())
	}
	for round, heap := range heaps {
		fmt.Printf("heap after round %v: %.1f MiB\n", round, heap)
	}
	if len(heaps) < 3 {
		return
	}
	if growth := heaps[len(heaps)-1] - heaps[1]; growth > 0.1*heaps[1] {
		log.Panicf("heap grew %.1f MiB after the first round", growth)
	}
}
