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

package main

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/sorloopback/sorloopback"
)

func parseOptionFlags(t *testing.T, args ...string) (*flag.FlagSet, *optionFlags) {
	t.Helper()
	fs := flag.NewFlagSet("sorlbt", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	of := newOptionFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs, of
}

func TestOptionFlagsKeepSpec(t *testing.T) {
	spec, err := sorloopback.ParseSpec([]byte("options: {retries: 7, ignore_mismatch: true}\nunits: [{sor: 0, protocol: TMDS_A}]"))
	require.NoError(t, err)
	fs, of := parseOptionFlags(t)
	require.NoError(t, of.applySpec(fs, spec))

	o := spec.EngineOptions()
	assert.Equal(t, 7, o.Retries)
	assert.True(t, o.IgnoreMismatch, "an unset bool flag keeps the spec value")
	assert.Equal(t, sorloopback.DefaultOptions().PatternIndex, o.PatternIndex)
}

func TestOptionFlagsOverride(t *testing.T) {
	spec, err := sorloopback.ParseSpec([]byte(`
options: {retries: 7, ignore_mismatch: true}
units:
  - {sor: 0, protocol: TMDS_A}
  - {sor: 1, protocol: TMDS_B, options: {pattern_index: 4, retries: 9}}
`))
	require.NoError(t, err)
	fs, of := parseOptionFlags(t, "-retries", "0", "-settle_delay_us", "5", "-wait_for_readback=false",
		"-ignore_mismatch=false", "-pattern_index", "1", "-poll_timeout_ms", "2", "-dump_registers")
	require.NoError(t, of.applySpec(fs, spec))

	o := spec.EngineOptions()
	assert.Equal(t, 0, o.Retries)
	assert.Equal(t, 5*time.Microsecond, o.SettleDelay)
	assert.False(t, o.WaitForReadback)
	assert.False(t, o.IgnoreMismatch)
	assert.Equal(t, 1, o.PatternIndex)
	assert.Equal(t, 2*time.Millisecond, o.PollTimeout)
	assert.True(t, o.DumpRegisters)

	units, err := spec.EngineUnits()
	require.NoError(t, err)
	require.NotNil(t, units[1].Options)
	assert.Equal(t, o, *units[1].Options, "the command line wins over unit options")
}

func TestOptionFlagsOutOfRange(t *testing.T) {
	for name, args := range map[string][]string{
		"retries":         {"-retries", "101"},
		"negative retry":  {"-retries", "-3"},
		"settle delay":    {"-settle_delay_us", "-5"},
		"pattern index":   {"-pattern_index", "6"},
		"pattern index 2": {"-pattern_index", "-3"},
		"poll timeout":    {"-poll_timeout_ms", "-2"},
	} {
		t.Run(name, func(t *testing.T) {
			fs, of := parseOptionFlags(t, args...)
			var so sorloopback.SpecOptions
			assert.Error(t, of.apply(fs, &so))
		})
	}
}
