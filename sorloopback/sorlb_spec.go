// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sorloopback

// Test spec I/O. A spec is YAML or JSON, checked against spec_schema.cue
// before it is decoded.

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"sigs.k8s.io/yaml"

	"github.com/google/sorloopback/lanemap"
)

//go:embed spec_schema.cue
var specSchema []byte

// Spec is the test spec file.
type Spec struct {
	Options SpecOptions `json:"options,omitempty"`
	Units   []SpecUnit  `json:"units"`
}

// SpecOptions overlay DefaultOptions. Unset pointers keep the default.
type SpecOptions struct {
	Retries         *int  `json:"retries,omitempty"`
	SettleDelayUs   *int  `json:"settle_delay_us,omitempty"`
	WaitForReadback *bool `json:"wait_for_readback,omitempty"`
	IgnoreMismatch  *bool `json:"ignore_mismatch,omitempty"`
	PatternIndex    *int  `json:"pattern_index,omitempty"`
	PollTimeoutMs   *int  `json:"poll_timeout_ms,omitempty"`
	DumpRegisters   *bool `json:"dump_registers,omitempty"`
}

// SpecUnit is one RunLoopback call. Options, when present, overlay the
// top-level options for this unit only.
type SpecUnit struct {
	Sor           int         `json:"sor"`
	Protocol      string      `json:"protocol"`
	LvdsPrimary   bool        `json:"lvds_primary,omitempty"`
	LvdsSecondary bool        `json:"lvds_secondary,omitempty"`
	Variant       string      `json:"variant,omitempty"`
	LanePair      string      `json:"lane_pair,omitempty"`
	Iobist        *SpecIobist  `json:"iobist,omitempty"`
	Options       *SpecOptions `json:"options,omitempty"`
}

// SpecIobist mirrors IobistParams.
type SpecIobist struct {
	LoopCountExp uint32 `json:"loop_count_exp,omitempty"`
	CaptureStart uint32 `json:"capture_start,omitempty"`
	StopOnError  bool   `json:"stop_on_error,omitempty"`
	Frl          bool   `json:"frl,omitempty"`
}

// ValidateSpecJSON checks a JSON spec against the #Spec schema.
func ValidateSpecJSON(data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(specSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling spec schema: %w", err)
	}
	val := ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return fmt.Errorf("%w: spec is not valid JSON: %v", ErrConfiguration, err)
	}
	def := schema.LookupPath(cue.ParsePath("#Spec"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("looking up #Spec: %w", err)
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: spec validation failed: %v", ErrConfiguration, err)
	}
	return nil
}

// ParseSpec decodes and validates a YAML or JSON spec.
func ParseSpec(data []byte) (*Spec, error) {
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := ValidateSpecJSON(js); err != nil {
		return nil, err
	}
	spec := &Spec{}
	if err := json.Unmarshal(js, spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return spec, nil
}

// ReadSpec reads the test spec file fn.
func ReadSpec(fn string) (*Spec, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return ParseSpec(data)
}

// WriteSpec dumps spec as YAML.
func WriteSpec(fn string, spec *Spec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(fn, data, 0600)
}

// EngineOptions applies the test spec options over DefaultOptions.
func (s *Spec) EngineOptions() Options {
	return s.Options.overlay(DefaultOptions())
}

// overlay returns o with every set field of so applied.
func (so SpecOptions) overlay(o Options) Options {
	if so.Retries != nil {
		o.Retries = *so.Retries
	}
	if so.SettleDelayUs != nil {
		o.SettleDelay = time.Duration(*so.SettleDelayUs) * time.Microsecond
	}
	if so.WaitForReadback != nil {
		o.WaitForReadback = *so.WaitForReadback
	}
	if so.IgnoreMismatch != nil {
		o.IgnoreMismatch = *so.IgnoreMismatch
	}
	if so.PatternIndex != nil {
		o.PatternIndex = *so.PatternIndex
	}
	if so.PollTimeoutMs != nil {
		o.PollTimeout = time.Duration(*so.PollTimeoutMs) * time.Millisecond
	}
	if so.DumpRegisters != nil {
		o.DumpRegisters = *so.DumpRegisters
	}
	return o
}

// EngineUnits converts the test spec units for RunSpec.
func (s *Spec) EngineUnits() ([]Unit, error) {
	base := s.EngineOptions()
	units := make([]Unit, 0, len(s.Units))
	for i, su := range s.Units {
		u, err := su.unit()
		if err != nil {
			return nil, fmt.Errorf("units[%d]: %w", i, err)
		}
		if su.Options != nil {
			o := su.Options.overlay(base)
			u.Options = &o
		}
		units = append(units, u)
	}
	return units, nil
}

func (su SpecUnit) unit() (Unit, error) {
	u := Unit{Sor: su.Sor}
	var err error
	if u.Protocol, err = ParseProtocol(su.Protocol); err != nil {
		return u, err
	}
	u.Links = LinkSelection{Primary: su.LvdsPrimary, Secondary: su.LvdsSecondary}
	if u.Hints.Variant, err = ParseVariant(su.Variant); err != nil {
		return u, err
	}
	if u.Hints.LanePair, err = lanemap.ParseLanePair(su.LanePair); err != nil {
		return u, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if su.Iobist != nil {
		u.Hints.Iobist = IobistParams{
			LoopCountExp: su.Iobist.LoopCountExp,
			CaptureStart: su.Iobist.CaptureStart,
			StopOnError:  su.Iobist.StopOnError,
			Frl:          su.Iobist.Frl,
		}
	}
	return u, nil
}
