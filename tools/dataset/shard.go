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
	"fmt"
	"strconv"
)

const (
	// LocalRankEnv is the environment variable holding the rank of this process.
	LocalRankEnv = "LOCAL_RANK"
	// WorldSizeEnv is the environment variable holding the number of processes.
	WorldSizeEnv = "WORLD_SIZE"
)

// RankInfo identifies this process among the processes sharing a dataset.
type RankInfo struct {
	// Known is false when no rank was provided.
	Known     bool
	LocalRank int
	WorldSize int
}

// RankFromEnv reads the rank from the LOCAL_RANK and WORLD_SIZE variables using getenv,
// typically os.Getenv.
// If neither is set the returned rank is not Known. If only one is set, or they are
// malformed, an error is returned.
func RankFromEnv(getenv func(string) string) (RankInfo, error) {
	rankString := getenv(LocalRankEnv)
	worldString := getenv(WorldSizeEnv)
	if rankString == "" && worldString == "" {
		return RankInfo{}, nil
	}
	if rankString == "" || worldString == "" {
		return RankInfo{}, fmt.Errorf("both %s (%q) and %s (%q) must be set, or neither", LocalRankEnv, rankString, WorldSizeEnv, worldString)
	}
	rank, err := strconv.Atoi(rankString)
	if err != nil {
		return RankInfo{}, fmt.Errorf("%s: %w", LocalRankEnv, err)
	}
	world, err := strconv.Atoi(worldString)
	if err != nil {
		return RankInfo{}, fmt.Errorf("%s: %w", WorldSizeEnv, err)
	}
	result := RankInfo{Known: true, LocalRank: rank, WorldSize: world}
	if err := result.Validate(); err != nil {
		return RankInfo{}, err
	}
	return result, nil
}

// Validate returns an error if a known rank is outside [0, WorldSize).
func (r RankInfo) Validate() error {
	if !r.Known {
		return nil
	}
	if r.WorldSize <= 0 {
		return fmt.Errorf("world size %v is not positive", r.WorldSize)
	}
	if r.LocalRank < 0 || r.LocalRank >= r.WorldSize {
		return fmt.Errorf("rank %v is outside [0, %v)", r.LocalRank, r.WorldSize)
	}
	return nil
}

func (r RankInfo) String() string {
	if !r.Known {
		return "unknown rank"
	}
	return fmt.Sprintf("rank %v of %v", r.LocalRank, r.WorldSize)
}

// ShardSource describes how a Shard was computed.
type ShardSource int

const (
	// ShardFromRank is a shard computed from a known rank and world size.
	ShardFromRank ShardSource = iota
	// ShardFallback is the shard used when no rank is known: the first 1/numGPUs of the files.
	// Every process without a rank gets the same fallback shard.
	ShardFallback
)

func (s ShardSource) String() string {
	switch s {
	case ShardFromRank:
		return "FromRank"
	case ShardFallback:
		return "Fallback"
	}
	return "Unknown"
}

// Shard is an interval of file indices.
type Shard struct {
	// Start is the first index of the shard, inclusive.
	Start int
	// Stop is the end of the shard, exclusive.
	Stop int
	// Source is how the shard was computed.
	Source ShardSource
}

// Len returns the number of indices in the shard.
func (s Shard) Len() int {
	return s.Stop - s.Start
}

// Contains returns whether idx is in the shard.
func (s Shard) Contains(idx int) bool {
	return idx >= s.Start && idx < s.Stop
}

func (s Shard) String() string {
	return fmt.Sprintf("[%v, %v) (%v)", s.Start, s.Stop, s.Source)
}

// ShardRange returns the shard of n files this process should cache.
//
// With a known rank the files are split into WorldSize intervals of
// n / WorldSize files, and the rank selects one of them. Without a rank the
// first n / numGPUs files are used.
func ShardRange(n int, rank RankInfo, numGPUs int) Shard {
	if rank.Known && rank.WorldSize > 0 {
		interval := n / rank.WorldSize
		return Shard{
			Start:  rank.LocalRank * interval,
			Stop:   (rank.LocalRank + 1) * interval,
			Source: ShardFromRank,
		}
	}
	if numGPUs <= 0 {
		numGPUs = 1
	}
	return Shard{
		Start:  0,
		Stop:   n / numGPUs,
		Source: ShardFallback,
	}
}
