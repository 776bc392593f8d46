/* export draws chunks from a dataset of audio files and stores them as tf.Examples
 * in a TFRecord file, optionally also as WAV files.
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
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cheggaaa/pb"
	"github.com/google-research/audiochunks/tools/audiofile"
	"github.com/google-research/audiochunks/tools/dataset"
	"github.com/google-research/audiochunks/tools/signals"
	"github.com/google-research/audiochunks/tools/spectrum"
	"github.com/google-research/audiochunks/tools/tfexample"
	"github.com/google-research/audiochunks/tools/workerpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON dataset configuration. Missing fields use the defaults.")
	paths        = flag.String("paths", "", "Comma separated files and directories to draw from, overriding the configuration.")
	envFile      = flag.String("env_file", "", "Optional file with environment variables, like LOCAL_RANK and WORLD_SIZE.")
	numChunks    = flag.Int("num_chunks", 100, "Number of chunks to draw.")
	batchSize    = flag.Int("batch_size", 64, "Number of chunks to draw concurrently.")
	output       = flag.String("output", "", "Path to the TFRecord file to write the chunks to.")
	wavDir       = flag.String("wav_dir", "", "Optional directory to also write the chunks to as WAV files.")
	withSpectrum = flag.Bool("spectrum", false, "Whether to store the power spectrum of each chunk.")
	showProgress = flag.Bool("show_progress", true, "Whether to show progress bars.")
	verbose      = flag.Bool("verbose", false, "Whether to log debug messages.")
)

func loadConfig() (dataset.Config, error) {
	config := dataset.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = dataset.LoadConfig(*configPath); err != nil {
			return dataset.Config{}, err
		}
	}
	if *paths != "" {
		config.Paths = strings.Split(*paths, ",")
	}
	config.ShowProgress = config.ShowProgress || *showProgress
	rank, err := dataset.RankFromEnv(os.Getenv)
	if err != nil {
		return dataset.Config{}, err
	}
	config.Rank = rank
	return config, nil
}

func main() {
	flag.Parse()
	if *output == "" || *numChunks < 1 || *batchSize < 1 {
		flag.Usage()
		os.Exit(1)
	}
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Panic(err)
		}
	}

	config, err := loadConfig()
	if err != nil {
		log.Panic(err)
	}
	d, err := dataset.FromConfig(config)
	if err != nil {
		log.Panic(err)
	}
	if d.Len() == 0 {
		log.Panicf("no audio files found in %+v", config.Paths)
	}
	if *wavDir != "" {
		if err := os.MkdirAll(*wavDir, 0755); err != nil {
			log.Panic(err)
		}
	}

	outFile, err := os.Create(*output)
	if err != nil {
		log.Panic(err)
	}
	defer outFile.Close()
	writer := tfexample.NewWriter(outFile)
	files := d.Files()

	var bar *pb.ProgressBar
	if *showProgress {
		bar = pb.StartNew(*numChunks).Prefix("Drawing")
	}
	for batchStart := 0; batchStart < *numChunks; batchStart += *batchSize {
		batchStop := batchStart + *batchSize
		if batchStop > *numChunks {
			batchStop = *numChunks
		}
		chunks := make([]tfexample.Chunk, batchStop-batchStart)
		if err := workerpool.Each(runtime.NumCPU(), len(chunks), func(offset int) error {
			idx := (batchStart + offset) % d.Len()
			audio, stats, err := d.GetWithStats(idx)
			if err != nil {
				return err
			}
			chunks[offset] = tfexample.Chunk{
				Audio:      audio,
				SampleRate: config.SampleRate,
				Index:      stats.Index,
				Path:       files[stats.Index],
				Draws:      stats.Draws,
			}
			if *withSpectrum {
				chunks[offset].SpectrumDB = spectrum.ComputeBuffer(audio, signals.Hz(config.SampleRate)).F32DB()
			}
			return nil
		}); err != nil {
			log.Panic(err)
		}
		for offset, chunk := range chunks {
			if err := writer.Write(chunk); err != nil {
				log.Panic(err)
			}
			if *wavDir != "" {
				wavPath := filepath.Join(*wavDir, fmt.Sprintf("chunk_%06d.wav", batchStart+offset))
				if err := audiofile.WriteWAVFile(wavPath, chunk.Audio, chunk.SampleRate); err != nil {
					log.Panic(err)
				}
			}
			if bar != nil {
				bar.Increment()
			}
		}
	}
	if bar != nil {
		bar.Finish()
	}
	logrus.WithFields(logrus.Fields{
		"output": *output,
		"chunks": writer.Written(),
	}).Info("Wrote chunks")
}
