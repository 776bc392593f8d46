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
package augment

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/google-research/audiochunks/tools/signals"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/stat"
)

const (
	tolerance = 1e-9
)

func testBuffer() signals.Buffer {
	return signals.Buffer{
		{0.5, -0.25, 0.125, 0, 0.75, -0.5},
		{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
	}
}

func allTransforms() []Transform {
	return []Transform{
		Crop{NSamples: 6, Randomize: true},
		PhaseFlip{P: 1},
		PhaseFlip{P: 0},
		FillNoise{P: 1},
		FillNoise{P: 0},
		RandomPool{P: 1, MaxKernel: 100},
		RandomPool{P: 0, MaxKernel: 100},
		RandomGain{Min: 0.5, Max: 2},
		NormalizeInputs{Enabled: true},
		NormalizeInputs{Enabled: false},
	}
}

func TestTransformsPreserveShape(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, transform := range allTransforms() {
		for i := 0; i < 20; i++ {
			in := testBuffer()
			out := transform.Apply(in, r)
			if c, s := out.Shape(); c != 2 || s != 6 {
				t.Errorf("%v produced shape %vx%v, wanted 2x6", transform, c, s)
			}
			if diff := cmp.Diff(in, testBuffer()); diff != "" {
				t.Errorf("%v modified its input: %v", transform, diff)
			}
		}
	}
}

func TestPhaseFlip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	in := testBuffer()
	if got := (PhaseFlip{P: 1}).Apply(in, r); !got.EqTol(in.Copy().Scale(-1), tolerance) {
		t.Errorf("PhaseFlip(1) produced %v", got)
	}
	if got := (PhaseFlip{P: 0}).Apply(in, r); !got.EqTol(in, tolerance) {
		t.Errorf("PhaseFlip(0) produced %v", got)
	}
	flips := 0
	for i := 0; i < 10000; i++ {
		if (PhaseFlip{P: 0.3}).Apply(signals.Buffer{{1}}, r)[0][0] < 0 {
			flips++
		}
	}
	if flips < 2700 || flips > 3300 {
		t.Errorf("PhaseFlip(0.3) flipped %v out of 10000 times", flips)
	}
}

func TestFillNoise(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	in := signals.NewBuffer(1, 10000)
	out := (FillNoise{P: 1}).Apply(in, r)
	if out.Peak() > FillNoiseMaxLevel {
		t.Errorf("FillNoise produced peak %v, wanted at most %v", out.Peak(), FillNoiseMaxLevel)
	}
	if out.Peak() == 0 {
		t.Errorf("FillNoise(1) added no noise")
	}
	if mean := stat.Mean(out[0], nil); math.Abs(mean) > 0.01 {
		t.Errorf("FillNoise produced mean %v, wanted about 0", mean)
	}
	if got := (FillNoise{P: 0}).Apply(in, r); got.Peak() != 0 {
		t.Errorf("FillNoise(0) added noise")
	}
}

func TestMovingAverage(t *testing.T) {
	in := signals.Buffer{{3, 0, 0, 6, 0, 0}}
	for _, tc := range []struct {
		kernel int
		want   signals.Buffer
	}{
		{
			kernel: 1,
			want:   signals.Buffer{{3, 0, 0, 6, 0, 0}},
		},
		{
			kernel: 2,
			want:   signals.Buffer{{3, 1.5, 0, 3, 3, 0}},
		},
		{
			kernel: 3,
			want:   signals.Buffer{{1.5, 1, 2, 2, 2, 0}},
		},
		{
			kernel: 100,
			want:   signals.Buffer{{1.5, 1.5, 1.5, 1.5, 1.5, 1.5}},
		},
	} {
		if got := MovingAverage(in, tc.kernel); !got.EqTol(tc.want, tolerance) {
			t.Errorf("MovingAverage(%v, %v) = %v, wanted %v", in, tc.kernel, got, tc.want)
		}
	}
}

func TestRandomPoolSmooths(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	in := signals.Buffer{{1, -1, 1, -1, 1, -1, 1, -1}}
	for i := 0; i < 20; i++ {
		out := (RandomPool{P: 1, MaxKernel: 3}).Apply(in, r)
		if out.Peak() > 1 {
			t.Errorf("RandomPool increased peak: %v", out)
		}
	}
	if got := (RandomPool{P: 0, MaxKernel: 3}).Apply(in, r); !got.EqTol(in, tolerance) {
		t.Errorf("RandomPool(0) changed the buffer: %v", got)
	}
}

func TestRandomGain(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		out := (RandomGain{Min: 0.5, Max: 0.75}).Apply(signals.Buffer{{1, -1}}, r)
		if out[0][0] < 0.5 || out[0][0] > 0.75 || out[0][1] != -out[0][0] {
			t.Errorf("RandomGain(0.5, 0.75) produced %v", out)
		}
	}
	if got := (RandomGain{Min: 2, Max: 2}).Apply(signals.Buffer{{0.25}}, r); got[0][0] != 0.5 {
		t.Errorf("RandomGain(2, 2) produced %v", got)
	}
}

func TestNormalizeInputs(t *testing.T) {
	in := signals.Buffer{{0.1, -0.49}, {0.2, 0}}
	want := signals.Buffer{{0.2, -0.98}, {0.4, 0}}
	if got := (NormalizeInputs{Enabled: true}).Apply(in, nil); !got.EqTol(want, tolerance) {
		t.Errorf("NormalizeInputs(true) produced %v, wanted %v", got, want)
	}
	if got := (NormalizeInputs{}).Apply(in, nil); !got.EqTol(in, tolerance) {
		t.Errorf("NormalizeInputs(false) produced %v", got)
	}
	if got := (NormalizeInputs{Enabled: true}).Apply(signals.NewBuffer(1, 3), nil); got.Peak() != 0 {
		t.Errorf("NormalizeInputs(true) of zeros produced %v", got)
	}
}

func TestChainShapeAndClamp(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	chain, err := NewChain(4, true, []Spec{
		{Type: "RandomGain", Params: []byte(`{"Min": 3, "Max": 4}`)},
		{Type: "FillNoise", Params: []byte(`{"P": 1}`)},
		{Type: "RandomPool", Params: []byte(`{"P": 1}`)},
		{Type: "PhaseFlip"},
		{Type: "NormInputs", Params: []byte(`{"Enabled": false}`)},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []signals.Buffer{
		testBuffer(),
		signals.NewBuffer(1, 2),
		signals.NewBuffer(3, 100),
	} {
		out := chain.ApplyClamped(in, r)
		if c, s := out.Shape(); c != in.NumChannels() || s != 4 {
			t.Errorf("chain produced shape %vx%v from %v, wanted %vx4", c, s, in, in.NumChannels())
		}
		if out.Peak() > 1 {
			t.Errorf("chain produced unclamped %v", out)
		}
	}
}

func TestChainOrder(t *testing.T) {
	// Normalizing before the gain gives a different result than after.
	in := signals.Buffer{{0.5, 0.25}}
	normThenGain := Chain{NormalizeInputs{Enabled: true}, RandomGain{Min: 0.5, Max: 0.5}}
	gainThenNorm := Chain{RandomGain{Min: 0.5, Max: 0.5}, NormalizeInputs{Enabled: true}}
	a := normThenGain.Apply(in, rand.New(rand.NewSource(7)))
	b := gainThenNorm.Apply(in, rand.New(rand.NewSource(7)))
	if a.EqTol(b, tolerance) {
		t.Errorf("chain order made no difference: %v", a)
	}
	if want := (signals.Buffer{{0.5 / 0.51 * 0.5, 0.25 / 0.51 * 0.5}}); !a.EqTol(want, tolerance) {
		t.Errorf("got %v, wanted %v", a, want)
	}
}

func TestNewChainPrependsCrop(t *testing.T) {
	chain, err := NewChain(16, false, []Spec{{Type: "RandomGain"}})
	if err != nil {
		t.Fatal(err)
	}
	want := Chain{Crop{NSamples: 16}, RandomGain{Min: 0.7, Max: 1.0}}
	if diff := cmp.Diff(chain, want); diff != "" {
		t.Errorf("unexpected chain: %v", diff)
	}
	chain, err = NewChain(16, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	want = Chain{Crop{NSamples: 16, Randomize: true}, PhaseFlip{P: 0.5}}
	if diff := cmp.Diff(chain, want); diff != "" {
		t.Errorf("unexpected default chain: %v", diff)
	}
	chain, err = NewChain(16, true, []Spec{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(chain, Chain{Crop{NSamples: 16, Randomize: true}}); diff != "" {
		t.Errorf("unexpected empty chain: %v", diff)
	}
}

func TestParseSpecs(t *testing.T) {
	specs, err := ParseSpecs([]byte(`[{"Type": "PhaseFlipper", "Params": {"P": 0.25}}, {"Type": "FillTheNoise"}, {"Type": "RandPool", "Params": {"P": 0.1, "MaxKernel": 10}}]`))
	if err != nil {
		t.Fatal(err)
	}
	chain, err := Build(specs)
	if err != nil {
		t.Fatal(err)
	}
	want := Chain{PhaseFlip{P: 0.25}, FillNoise{P: 0.33}, RandomPool{P: 0.1, MaxKernel: 10}}
	if diff := cmp.Diff(chain, want); diff != "" {
		t.Errorf("unexpected chain: %v", diff)
	}
	if _, err := ParseSpecs([]byte(`{"Type": "PhaseFlip"}`)); err == nil {
		t.Errorf("ParseSpecs accepted a non list")
	}
}

func TestBuildErrors(t *testing.T) {
	for _, tc := range []struct {
		desc       string
		specs      []Spec
		wantIndex  int
		wantReason string
	}{
		{
			desc:       "unknown name",
			specs:      []Spec{{Type: "PhaseFlip"}, {Type: "Reverb"}},
			wantIndex:  1,
			wantReason: "unknown transform",
		},
		{
			desc:       "crop in chain",
			specs:      []Spec{{Type: "PadCrop"}},
			wantIndex:  0,
			wantReason: "crop",
		},
		{
			desc:       "unknown parameter",
			specs:      []Spec{{Type: "PhaseFlip", Params: []byte(`{"Q": 1}`)}},
			wantIndex:  0,
			wantReason: "unknown field",
		},
		{
			desc:       "probability out of range",
			specs:      []Spec{{Type: "FillNoise", Params: []byte(`{"P": 1.5}`)}},
			wantIndex:  0,
			wantReason: "outside [0, 1]",
		},
		{
			desc:       "inverted gain range",
			specs:      []Spec{{Type: "RandomGain", Params: []byte(`{"Min": 2, "Max": 1}`)}},
			wantIndex:  0,
			wantReason: "greater than Max",
		},
		{
			desc:       "tiny kernel",
			specs:      []Spec{{Type: "RandomPool", Params: []byte(`{"MaxKernel": 1}`)}},
			wantIndex:  0,
			wantReason: "less than 2",
		},
	} {
		_, err := Build(tc.specs)
		configErr := &ConfigError{}
		if !errors.As(err, &configErr) {
			t.Errorf("%v: got %v, wanted a *ConfigError", tc.desc, err)
			continue
		}
		if configErr.Index != tc.wantIndex || !strings.Contains(configErr.Reason, tc.wantReason) {
			t.Errorf("%v: got %v, wanted index %v and reason containing %q", tc.desc, configErr, tc.wantIndex, tc.wantReason)
		}
	}
}

func TestNewChainRejectsEmptyChunks(t *testing.T) {
	if _, err := NewChain(0, true, nil); err == nil {
		t.Errorf("NewChain(0, ...) returned no error")
	}
}
