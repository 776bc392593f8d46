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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Spec describes a transform by containing its registered type name
// along with the parameters of the transform.
type Spec struct {
	Type   string
	Params json.RawMessage `json:",omitempty"`
}

// ConfigError is returned when a Spec can't be turned into a Transform.
type ConfigError struct {
	// Index is the position of the offending Spec in the chain.
	Index int
	// Type is the type name of the offending Spec.
	Type string
	// Reason describes what is wrong.
	Reason string
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("augmentation %d (%q): %s", c.Index, c.Type, c.Reason)
}

type constructor func(params json.RawMessage) (Transform, error)

var (
	registry = map[string]constructor{
		"PhaseFlip":       newPhaseFlip,
		"FillNoise":       newFillNoise,
		"RandomPool":      newRandomPool,
		"RandomGain":      newRandomGain,
		"NormalizeInputs": newNormalizeInputs,
	}
	aliases = map[string]string{
		"PhaseFlipper": "PhaseFlip",
		"FillTheNoise": "FillNoise",
		"RandPool":     "RandomPool",
		"NormInputs":   "NormalizeInputs",
	}
	cropNames = map[string]bool{
		"Crop":    true,
		"PadCrop": true,
	}
	// DefaultSpecs is the chain used when no augmentations are configured.
	DefaultSpecs = []Spec{{Type: "PhaseFlip"}}
)

// Names returns the sorted names of all registered transforms.
func Names() []string {
	result := []string{}
	for name := range registry {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func decodeParams(params json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func checkProbability(p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("probability P %v is outside [0, 1]", p)
	}
	return nil
}

func newPhaseFlip(params json.RawMessage) (Transform, error) {
	result := PhaseFlip{P: 0.5}
	if err := decodeParams(params, &result); err != nil {
		return nil, err
	}
	return result, checkProbability(result.P)
}

func newFillNoise(params json.RawMessage) (Transform, error) {
	result := FillNoise{P: 0.33}
	if err := decodeParams(params, &result); err != nil {
		return nil, err
	}
	return result, checkProbability(result.P)
}

func newRandomPool(params json.RawMessage) (Transform, error) {
	result := RandomPool{P: 0.2, MaxKernel: 100}
	if err := decodeParams(params, &result); err != nil {
		return nil, err
	}
	if result.MaxKernel < 2 {
		return nil, fmt.Errorf("MaxKernel %v is less than 2", result.MaxKernel)
	}
	return result, checkProbability(result.P)
}

func newRandomGain(params json.RawMessage) (Transform, error) {
	result := RandomGain{Min: 0.7, Max: 1.0}
	if err := decodeParams(params, &result); err != nil {
		return nil, err
	}
	if result.Min > result.Max {
		return nil, fmt.Errorf("Min %v is greater than Max %v", result.Min, result.Max)
	}
	return result, nil
}

func newNormalizeInputs(params json.RawMessage) (Transform, error) {
	result := NormalizeInputs{}
	if err := decodeParams(params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Transform returns the transform described by s.
func (s Spec) Transform() (Transform, error) {
	name := s.Type
	if canonical, found := aliases[name]; found {
		name = canonical
	}
	constr, found := registry[name]
	if !found {
		if cropNames[name] {
			return nil, fmt.Errorf("the crop is always the first transform and can't be configured")
		}
		return nil, fmt.Errorf("unknown transform, known transforms are %s", strings.Join(Names(), ", "))
	}
	return constr(s.Params)
}

// ParseSpecs parses a JSON list of specs.
func ParseSpecs(blob []byte) ([]Spec, error) {
	result := []Spec{}
	if err := json.Unmarshal(blob, &result); err != nil {
		return nil, fmt.Errorf("unable to decode %s as []Spec: %v", blob, err)
	}
	return result, nil
}

// Build returns the transforms described by specs, without the crop.
// All specs are validated, and the first invalid one is returned as a *ConfigError.
func Build(specs []Spec) (Chain, error) {
	result := Chain{}
	for idx, spec := range specs {
		transform, err := spec.Transform()
		if err != nil {
			return nil, &ConfigError{Index: idx, Type: spec.Type, Reason: err.Error()}
		}
		result = append(result, transform)
	}
	return result, nil
}

// NewChain returns a chain that crops to nSamples followed by the transforms described by specs.
// A nil specs uses DefaultSpecs.
func NewChain(nSamples int, randomize bool, specs []Spec) (Chain, error) {
	if nSamples < 1 {
		return nil, fmt.Errorf("chunk length %v is less than 1", nSamples)
	}
	if specs == nil {
		specs = DefaultSpecs
	}
	transforms, err := Build(specs)
	if err != nil {
		return nil, err
	}
	return append(Chain{Crop{NSamples: nSamples, Randomize: randomize}}, transforms...), nil
}
