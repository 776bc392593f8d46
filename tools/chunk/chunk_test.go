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
package chunk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google-research/audiochunks/tools/signals"
	"github.com/google/go-cmp/cmp"
)

func ramp(channels, samples int) signals.Buffer {
	b := signals.NewBuffer(channels, samples)
	for channelIdx := range b {
		for idx := range b[channelIdx] {
			b[channelIdx][idx] = float64(channelIdx*1000+idx+1) / 10000
		}
	}
	return b
}

func TestDrawShape(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, channels := range []int{1, 2, 5} {
		for _, samples := range []int{0, 1, 3, 4, 5, 100} {
			for _, nSamples := range []int{1, 4, 17} {
				for _, randomize := range []bool{false, true} {
					got := Draw(ramp(channels, samples), nSamples, randomize, r)
					if c, s := got.Shape(); c != channels || s != nSamples {
						t.Errorf("Draw(%vx%v, %v, %v) has shape %vx%v", channels, samples, nSamples, randomize, c, s)
					}
				}
			}
		}
	}
}

func TestDrawFixedStart(t *testing.T) {
	signal := ramp(2, 10)
	got := Draw(signal, 4, false, nil)
	want := signals.Buffer{signal[0][:4], signal[1][:4]}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Draw without randomize produced unexpected result: %v", diff)
	}
}

func TestDrawPadding(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	signal := ramp(2, 3)
	for _, randomize := range []bool{false, true} {
		got := Draw(signal, 8, randomize, r)
		for channelIdx := range got {
			if diff := cmp.Diff(got[channelIdx][:3], signal[channelIdx]); diff != "" {
				t.Errorf("leading samples of channel %v differ: %v", channelIdx, diff)
			}
			for idx := 3; idx < 8; idx++ {
				if got[channelIdx][idx] != 0 {
					t.Errorf("got padding sample %v of channel %v = %v, wanted 0", idx, channelIdx, got[channelIdx][idx])
				}
			}
		}
	}
}

func TestDrawEmpty(t *testing.T) {
	got := Draw(signals.NewBuffer(1, 0), 4, true, rand.New(rand.NewSource(3)))
	if diff := cmp.Diff(got, signals.Buffer{{0, 0, 0, 0}}); diff != "" {
		t.Errorf("Draw of empty signal produced unexpected result: %v", diff)
	}
}

func TestStartCoversRange(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		start := Start(10, 7, true, r)
		if start < 0 || start > 3 {
			t.Fatalf("Start(10, 7) = %v, outside [0, 3]", start)
		}
		seen[start] = true
	}
	if len(seen) != 4 {
		t.Errorf("got starts %v, wanted all of [0, 3]", seen)
	}
	if start := Start(5, 7, true, r); start != 0 {
		t.Errorf("Start(5, 7) = %v, wanted 0", start)
	}
}

func TestDrawRandomIsWindow(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	signal := ramp(1, 50)
	for i := 0; i < 100; i++ {
		got := Draw(signal, 10, true, r)
		start := int(math.Round(got[0][0]*10000)) - 1
		if diff := cmp.Diff(got[0], signal[0][start:start+10]); diff != "" {
			t.Errorf("random draw is not a contiguous window: %v", diff)
		}
	}
}

func TestIsSilence(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		chunk  signals.Buffer
		thresh signals.DB
		want   bool
	}{
		{
			desc:   "zeros with default threshold",
			chunk:  signals.NewBuffer(2, 16),
			thresh: DefaultSilenceThreshold,
			want:   true,
		},
		{
			desc:   "zeros with very low threshold",
			chunk:  signals.NewBuffer(1, 16),
			thresh: -1000,
			want:   true,
		},
		{
			desc:   "zeros with positive threshold",
			chunk:  signals.NewBuffer(1, 16),
			thresh: 12,
			want:   true,
		},
		{
			desc:   "empty chunk",
			chunk:  signals.NewBuffer(1, 0),
			thresh: DefaultSilenceThreshold,
			want:   true,
		},
		{
			desc:   "full scale",
			chunk:  signals.Buffer{{1, 1, 1, 1}},
			thresh: DefaultSilenceThreshold,
			want:   false,
		},
		{
			desc:   "quiet but above threshold",
			chunk:  signals.Buffer{{0.01, 0, 0, 0}},
			thresh: DefaultSilenceThreshold,
			want:   false,
		},
		{
			desc:   "below threshold",
			chunk:  signals.Buffer{{0.0001, -0.0005, 0, 0}},
			thresh: DefaultSilenceThreshold,
			want:   true,
		},
		{
			desc:   "loud second channel",
			chunk:  signals.Buffer{{0, 0}, {0, -0.5}},
			thresh: DefaultSilenceThreshold,
			want:   false,
		},
	} {
		if got := IsSilence(tc.chunk, tc.thresh); got != tc.want {
			t.Errorf("%v: IsSilence(%v, %v) = %v, wanted %v", tc.desc, tc.chunk, tc.thresh, got, tc.want)
		}
	}
}

func TestDrawerRedrawBound(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	for _, maxRedraws := range []int{0, 1, 2, 5} {
		d := Drawer{
			NSamples:      4,
			Randomize:     true,
			RedrawSilence: true,
			Threshold:     DefaultSilenceThreshold,
			MaxRedraws:    maxRedraws,
		}
		got, stats := d.DrawWithStats(signals.NewBuffer(1, 10), r)
		if stats.Draws != maxRedraws+1 {
			t.Errorf("got %v draws of silent signal with MaxRedraws %v, wanted %v", stats.Draws, maxRedraws, maxRedraws+1)
		}
		if !stats.Silent {
			t.Errorf("got non silent stats for silent signal")
		}
		if diff := cmp.Diff(got, signals.Buffer{{0, 0, 0, 0}}); diff != "" {
			t.Errorf("unexpected chunk from silent signal: %v", diff)
		}
	}
}

func TestDrawerAcceptsNonSilent(t *testing.T) {
	d := Drawer{
		NSamples:      4,
		RedrawSilence: true,
		Threshold:     DefaultSilenceThreshold,
		MaxRedraws:    10,
	}
	got, stats := d.DrawWithStats(signals.Buffer{{1, 1, 1, 1, 1, 1}}, rand.New(rand.NewSource(7)))
	if stats.Draws != 1 || stats.Silent {
		t.Errorf("got %+v, wanted a single non silent draw", stats)
	}
	if diff := cmp.Diff(got, signals.Buffer{{1, 1, 1, 1}}); diff != "" {
		t.Errorf("unexpected chunk: %v", diff)
	}
}

func TestDrawerRedrawFindsSound(t *testing.T) {
	// Only the last 4 samples are loud, so a fixed start is silent and redraws
	// eventually land on the loud window.
	signal := signals.NewBuffer(1, 12)
	for idx := 8; idx < 12; idx++ {
		signal[0][idx] = 0.5
	}
	d := Drawer{
		NSamples:      4,
		RedrawSilence: true,
		Threshold:     DefaultSilenceThreshold,
		MaxRedraws:    1000,
	}
	got, stats := d.DrawWithStats(signal, rand.New(rand.NewSource(8)))
	if stats.Silent || stats.Draws < 2 {
		t.Errorf("got %+v, wanted a non silent chunk after at least one redraw", stats)
	}
	if IsSilence(got, DefaultSilenceThreshold) {
		t.Errorf("got silent chunk %v", got)
	}
}

func TestDrawerWithoutRedraw(t *testing.T) {
	d := Drawer{
		NSamples:   4,
		MaxRedraws: 10,
	}
	_, stats := d.DrawWithStats(signals.NewBuffer(2, 10), rand.New(rand.NewSource(9)))
	if stats.Draws != 1 {
		t.Errorf("got %v draws with redraw disabled, wanted 1", stats.Draws)
	}
}
