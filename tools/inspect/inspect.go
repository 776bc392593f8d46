/* inspect reports the level and silence of the audio files of a dataset,
 * which helps when choosing silence_thresh_db.
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
	"runtime"
	"strings"

	"github.com/cheggaaa/pb"
	"github.com/google-research/audiochunks/tools/audiofile"
	"github.com/google-research/audiochunks/tools/chunk"
	"github.com/google-research/audiochunks/tools/dataset"
	"github.com/google-research/audiochunks/tools/signals"
	"github.com/google-research/audiochunks/tools/spectrum"
	"github.com/google-research/audiochunks/tools/workerpool"
	"github.com/sirupsen/logrus"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON dataset configuration. Missing fields use the defaults.")
	paths        = flag.String("paths", "", "Comma separated files and directories to inspect, overriding the configuration.")
	spectrumOf   = flag.String("spectrum_of", "", "Optional audio file to print the spectrum of the first chunk of.")
	width        = flag.Int("width", 100, "Width of the printed spectrum.")
	showProgress = flag.Bool("show_progress", true, "Whether to show a progress bar.")
)

type report struct {
	path          string
	channels      int
	seconds       float64
	peak          signals.DB
	windows       int
	silentWindows int
	err           error
}

func inspect(loader audiofile.Loader, path string, config dataset.Config) report {
	result := report{path: path}
	b, err := loader.Load(path)
	if err != nil {
		result.err = err
		return result
	}
	result.channels = b.NumChannels()
	result.seconds = float64(b.NumSamples()) / float64(config.SampleRate)
	result.peak = b.PeakDB()
	for start := 0; start < b.NumSamples(); start += config.SampleSize {
		result.windows++
		if chunk.IsSilence(chunk.DrawAt(b, config.SampleSize, start), config.SilenceThreshDB) {
			result.silentWindows++
		}
	}
	return result
}

func main() {
	flag.Parse()
	config := dataset.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = dataset.LoadConfig(*configPath); err != nil {
			log.Panic(err)
		}
	}
	if *paths != "" {
		config.Paths = strings.Split(*paths, ",")
	}
	loader := audiofile.Loader{Rate: config.SampleRate}

	if *spectrumOf != "" {
		b, err := loader.Load(*spectrumOf)
		if err != nil {
			log.Panic(err)
		}
		spectrum.ComputeBuffer(chunk.DrawAt(b, config.SampleSize, 0), signals.Hz(config.SampleRate)).Print(*width, os.Stdout)
		return
	}

	files, err := audiofile.List(config.Paths...)
	if err != nil {
		log.Panic(err)
	}
	var bar *pb.ProgressBar
	if *showProgress {
		bar = pb.StartNew(len(files)).Prefix("Inspecting")
	}
	reports := make([]report, len(files))
	if err := workerpool.Each(runtime.NumCPU(), len(files), func(idx int) error {
		reports[idx] = inspect(loader, files[idx], config)
		if bar != nil {
			bar.Increment()
		}
		return nil
	}); err != nil {
		log.Panic(err)
	}
	if bar != nil {
		bar.Finish()
	}

	failed, windows, silentWindows := 0, 0, 0
	for _, r := range reports {
		if r.err != nil {
			failed++
			logrus.WithFields(logrus.Fields{
				"path":  r.path,
				"error": r.err.Error(),
			}).Warn("Unable to load file")
			continue
		}
		windows += r.windows
		silentWindows += r.silentWindows
		fmt.Printf("%v\t%v channels\t%.2fs\tpeak %.1fdB\t%v/%v silent windows\n", r.path, r.channels, r.seconds, r.peak, r.silentWindows, r.windows)
	}
	fmt.Printf("%v files, %v failed, %v/%v windows below %vdB\n", len(files), failed, silentWindows, windows, config.SilenceThreshDB)
}
