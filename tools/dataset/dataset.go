/* Package dataset serves augmented fixed length chunks drawn from a list of audio files.
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
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/google-research/audiochunks/tools/audiofile"
	"github.com/google-research/audiochunks/tools/augment"
	"github.com/google-research/audiochunks/tools/chunk"
	"github.com/google-research/audiochunks/tools/encode"
	"github.com/google-research/audiochunks/tools/signals"
	"github.com/google-research/audiochunks/tools/workerpool"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTooManyFailures is returned by Get when MaxLoadAttempts files in a row failed.
	ErrTooManyFailures = errors.New("too many failed attempts")
	// ErrAlreadyPreloaded is returned when preloading a dataset a second time.
	ErrAlreadyPreloaded = errors.New("dataset already preloaded")
)

// Loader loads the samples of an audio file at the sample rate of the dataset.
type Loader interface {
	Load(path string) (signals.Buffer, error)
}

type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (l *lockedSource) Int63() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Int63()
}

func (l *lockedSource) Seed(seed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.src.Seed(seed)
}

// Stats describes how a chunk was produced.
type Stats struct {
	// Index is the index of the file the chunk was drawn from.
	Index int
	// Attempts is the number of files tried, including the successful one.
	Attempts int
	// Draws is the number of windows drawn from the file.
	Draws int
	// Silent is true if silence redrawing was enabled and the chunk is still silent.
	Silent bool
}

// Dataset serves chunks from a fixed list of audio files.
//
// Get is safe for concurrent use. The file list and the augmentation chain never
// change after New, and the cache is only written once by Preload.
type Dataset struct {
	config  Config
	files   []string
	loader  Loader
	drawer  chunk.Drawer
	chain   augment.Chain
	encoder encode.Encoder
	rand    *rand.Rand

	preloadMu sync.Mutex
	preloaded bool
	// cache holds a map[int]signals.Buffer once Preload has run.
	cache atomic.Value
	shard atomic.Value
}

// New returns a dataset of the first config.LoadFrac of files, loaded with loader.
// If config.CacheTrainingData is set, the shard of this process is preloaded before New returns.
func New(config Config, files []string, loader Loader) (*Dataset, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := config.Rank.Validate(); err != nil {
		return nil, err
	}
	chain, err := augment.NewChain(config.SampleSize, config.RandomCrop, config.Augmentations)
	if err != nil {
		return nil, err
	}
	encoder, err := encode.Lookup(config.Encoding)
	if err != nil {
		return nil, err
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	nFiles := int(float64(len(files)) * config.LoadFrac)
	d := &Dataset{
		config: config,
		files:  append([]string(nil), files[:nFiles]...),
		loader: loader,
		drawer: chunk.Drawer{
			NSamples:      config.SampleSize,
			Randomize:     config.RandomCrop,
			RedrawSilence: config.RedrawSilence,
			Threshold:     config.SilenceThreshDB,
			MaxRedraws:    config.MaxRedraws,
		},
		chain:   chain,
		encoder: encoder,
		rand:    rand.New(&lockedSource{src: rand.NewSource(seed)}),
	}
	logrus.WithFields(logrus.Fields{
		"function":     "New",
		"found_files":  len(files),
		"used_files":   nFiles,
		"chain":        chain.String(),
		"encoding":     config.Encoding,
		"sample_size":  config.SampleSize,
		"sample_rate":  config.SampleRate,
		"cache":        config.CacheTrainingData,
		"redraw_quiet": config.RedrawSilence,
	}).Info("Created dataset")
	if config.CacheTrainingData {
		if err := d.Preload(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "New",
				"error":    err.Error(),
			}).Warn("Some files could not be cached, they will be loaded when requested")
		}
	}
	return d, nil
}

// FromConfig returns a dataset of the audio files found in config.Paths, loaded
// with an audiofile.Loader at config.SampleRate.
func FromConfig(config Config) (*Dataset, error) {
	files, err := audiofile.List(config.Paths...)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "FromConfig",
		"paths":    config.Paths,
		"files":    len(files),
	}).Info("Found audio files")
	return New(config, files, audiofile.Loader{Rate: config.SampleRate})
}

// Len returns the number of files in the dataset.
func (d *Dataset) Len() int {
	return len(d.files)
}

// Files returns a copy of the files in the dataset.
func (d *Dataset) Files() []string {
	return append([]string(nil), d.files...)
}

// Config returns the configuration of the dataset.
func (d *Dataset) Config() Config {
	return d.config
}

// Shard returns the shard cached by Preload, and false if Preload hasn't run.
func (d *Dataset) Shard() (Shard, bool) {
	shard, ok := d.shard.Load().(Shard)
	return shard, ok
}

// Cached returns whether the file at idx is cached.
func (d *Dataset) Cached(idx int) bool {
	cache, _ := d.cache.Load().(map[int]signals.Buffer)
	_, found := cache[idx]
	return found
}

// Preload loads the shard of this process, computed by ShardRange from the
// configured rank, using one goroutine per CPU.
// Files that fail to load are left out of the cache and reported in the returned
// error. Preload can only be called once, and not concurrently with Get.
func (d *Dataset) Preload() error {
	d.preloadMu.Lock()
	defer d.preloadMu.Unlock()
	if d.preloaded {
		return ErrAlreadyPreloaded
	}
	d.preloaded = true

	shard := ShardRange(len(d.files), d.config.Rank, d.config.NumGPUs)
	fields := logrus.Fields{
		"function": "Preload",
		"shard":    shard.String(),
		"rank":     d.config.Rank.String(),
		"num_gpus": d.config.NumGPUs,
	}
	if shard.Source == ShardFallback {
		logrus.WithFields(fields).Warn("No rank known, caching the fallback shard")
	} else {
		logrus.WithFields(fields).Info("Caching shard")
	}

	var bar *pb.ProgressBar
	if d.config.ShowProgress {
		bar = pb.StartNew(shard.Len()).Prefix("Caching")
	}
	loaded := make([]signals.Buffer, shard.Len())
	err := workerpool.Each(runtime.NumCPU(), shard.Len(), func(offset int) error {
		path := d.files[shard.Start+offset]
		b, err := d.loader.Load(path)
		if bar != nil {
			bar.Increment()
		}
		if err != nil {
			return fmt.Errorf("caching %q: %w", path, err)
		}
		loaded[offset] = b
		return nil
	})
	if bar != nil {
		bar.Finish()
	}

	cache := map[int]signals.Buffer{}
	for offset, b := range loaded {
		if b != nil {
			cache[shard.Start+offset] = b
		}
	}
	d.cache.Store(cache)
	d.shard.Store(shard)
	logrus.WithFields(logrus.Fields{
		"function": "Preload",
		"shard":    shard.String(),
		"cached":   len(cache),
	}).Info("Cached shard")
	return err
}

// Get returns a chunk drawn from the file at idx.
//
// If the file can't be used, files at other random indices are tried instead,
// up to MaxLoadAttempts files in total.
func (d *Dataset) Get(idx int) (signals.Buffer, error) {
	result, _, err := d.GetWithStats(idx)
	return result, err
}

// GetWithStats returns a chunk drawn from the file at idx, like Get, along with
// how it was produced.
func (d *Dataset) GetWithStats(idx int) (signals.Buffer, Stats, error) {
	if idx < 0 || idx >= len(d.files) {
		return nil, Stats{}, fmt.Errorf("index %v is outside [0, %v)", idx, len(d.files))
	}
	var lastErr error
	for attempt := 1; attempt <= d.config.MaxLoadAttempts; attempt++ {
		result, drawStats, err := d.draw(idx)
		if err == nil {
			return result, Stats{
				Index:    idx,
				Attempts: attempt,
				Draws:    drawStats.Draws,
				Silent:   drawStats.Silent,
			}, nil
		}
		lastErr = err
		next := d.otherIndex(idx)
		logrus.WithFields(logrus.Fields{
			"function": "Get",
			"index":    idx,
			"path":     d.files[idx],
			"attempt":  attempt,
			"next":     next,
			"error":    err.Error(),
		}).Warn("Failed to draw chunk, trying another file")
		idx = next
	}
	return nil, Stats{}, fmt.Errorf("%w: %v files tried, last error: %v", ErrTooManyFailures, d.config.MaxLoadAttempts, lastErr)
}

// otherIndex returns a uniformly random index other than idx, or idx if it's the only one.
func (d *Dataset) otherIndex(idx int) int {
	if len(d.files) < 2 {
		return idx
	}
	other := d.rand.Intn(len(d.files) - 1)
	if other >= idx {
		other++
	}
	return other
}

func (d *Dataset) signal(idx int) (signals.Buffer, error) {
	if cache, ok := d.cache.Load().(map[int]signals.Buffer); ok {
		if b, found := cache[idx]; found {
			return b, nil
		}
		logrus.WithFields(logrus.Fields{
			"function": "signal",
			"index":    idx,
		}).Debug("Cache miss, loading file")
	}
	return d.loader.Load(d.files[idx])
}

func (d *Dataset) draw(idx int) (result signals.Buffer, stats chunk.Stats, err error) {
	// Decoders of corrupt files may panic, which is treated like any other failure.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic drawing from %q: %v", d.files[idx], r)
		}
	}()
	signal, err := d.signal(idx)
	if err != nil {
		return nil, stats, err
	}
	if signal.NumChannels() == 0 {
		return nil, stats, fmt.Errorf("%q has no channels", d.files[idx])
	}
	if err := signal.Validate(); err != nil {
		return nil, stats, fmt.Errorf("%q: %w", d.files[idx], err)
	}
	result, stats = d.drawer.DrawWithStats(signal, d.rand)
	result = d.chain.ApplyClamped(result, d.rand)
	return d.encoder.Encode(result), stats, nil
}
