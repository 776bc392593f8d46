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
package dataset

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/google-research/audiochunks/tools/augment"
	"github.com/google-research/audiochunks/tools/chunk"
	"github.com/google-research/audiochunks/tools/encode"
	"github.com/google-research/audiochunks/tools/signals"
)

// Config defines how a Dataset draws its chunks.
type Config struct {
	// Paths are the files and directories the dataset is built from.
	Paths []string `json:"paths"`
	// SampleRate is the rate all files are resampled to.
	SampleRate int `json:"sample_rate"`
	// SampleSize is the number of samples in each chunk.
	SampleSize int `json:"sample_size"`
	// RandomCrop makes chunks start at random positions of the files.
	RandomCrop bool `json:"random_crop"`
	// LoadFrac is the fraction of the found files to use, in (0, 1].
	LoadFrac float64 `json:"load_frac"`
	// CacheTrainingData makes the dataset load its shard of the files at construction.
	CacheTrainingData bool `json:"cache_training_data"`
	// NumGPUs is used to shard the cache when no rank is known.
	NumGPUs int `json:"num_gpus"`
	// RedrawSilence makes the dataset redraw silent chunks.
	RedrawSilence bool `json:"redraw_silence"`
	// SilenceThreshDB is the peak level below which a chunk is silent.
	SilenceThreshDB signals.DB `json:"silence_thresh_db"`
	// MaxRedraws is the maximum number of redraws of a silent chunk.
	MaxRedraws int `json:"max_redraws"`
	// Augmentations is the augmentation chain applied after the crop. A nil chain uses augment.DefaultSpecs.
	Augmentations []augment.Spec `json:"augmentations"`
	// Encoding is the name of the channel encoding, see encode.Lookup.
	Encoding string `json:"encoding"`
	// MaxLoadAttempts is the number of files tried by Get before giving up.
	MaxLoadAttempts int `json:"max_load_attempts"`
	// Seed seeds the random source of the dataset. 0 uses the current time.
	Seed int64 `json:"seed"`
	// ShowProgress shows a progress bar while caching files.
	ShowProgress bool `json:"show_progress"`
	// Rank is the rank of this process, used to shard the cache.
	Rank RankInfo `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:      48000,
		SampleSize:      65536,
		RandomCrop:      true,
		LoadFrac:        1.0,
		NumGPUs:         8,
		SilenceThreshDB: chunk.DefaultSilenceThreshold,
		MaxRedraws:      2,
		Encoding:        "mono",
		MaxLoadAttempts: 10,
	}
}

// Validate returns an error if the configuration is invalid, including the augmentation chain and encoding.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate %v is not positive", c.SampleRate)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample_size %v is not positive", c.SampleSize)
	}
	if c.LoadFrac <= 0 || c.LoadFrac > 1 {
		return fmt.Errorf("load_frac %v is outside (0, 1]", c.LoadFrac)
	}
	if c.NumGPUs <= 0 {
		return fmt.Errorf("num_gpus %v is not positive", c.NumGPUs)
	}
	if c.MaxRedraws < 0 {
		return fmt.Errorf("max_redraws %v is negative", c.MaxRedraws)
	}
	if c.MaxLoadAttempts <= 0 {
		return fmt.Errorf("max_load_attempts %v is not positive", c.MaxLoadAttempts)
	}
	if _, err := augment.NewChain(c.SampleSize, c.RandomCrop, c.Augmentations); err != nil {
		return err
	}
	if _, err := encode.Lookup(c.Encoding); err != nil {
		return err
	}
	return nil
}

// ParseConfig parses a JSON configuration. Fields missing in the JSON keep their DefaultConfig values.
func ParseConfig(blob []byte) (Config, error) {
	result := DefaultConfig()
	if err := json.Unmarshal(blob, &result); err != nil {
		return Config{}, fmt.Errorf("unable to decode %s as Config: %v", blob, err)
	}
	if err := result.Validate(); err != nil {
		return Config{}, err
	}
	return result, nil
}

// LoadConfig reads and validates a JSON configuration file.
func LoadConfig(path string) (Config, error) {
	blob, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(blob)
}
