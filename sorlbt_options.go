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

// SOR Loopback Test main()
// This file handles the CLI, and the test spec/result file I/O.
package main

import (
	"flag"
	"fmt"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/sorloopback"
)

// optionFlags override the test spec options. The int flags default to a
// sentinel that means "keep the spec value"; the bool flags count only when
// given on the command line.
type optionFlags struct {
	retries         *int
	settleDelayUs   *int
	waitForReadback *bool
	ignoreMismatch  *bool
	patternIndex    *int
	pollTimeoutMs   *int
	dumpRegisters   *bool
}

// Not a valid pattern index; -1 selects the whole catalog.
const unsetPatternIndex = -2

func newOptionFlags(fs *flag.FlagSet) *optionFlags {
	return &optionFlags{
		retries:         fs.Int("retries", -1, "Overrides the retries per pattern on a CRC mismatch [0:100]."),
		settleDelayUs:   fs.Int("settle_delay_us", -1, "Overrides the settle delay after programming a pattern, in us."),
		waitForReadback: fs.Bool("wait_for_readback", true, "Overrides waiting for the readback to match the written pattern."),
		ignoreMismatch:  fs.Bool("ignore_mismatch", false, "Overrides logging CRC mismatches and continuing."),
		patternIndex:    fs.Int("pattern_index", unsetPatternIndex, "Overrides the tested pattern: -1 for all, or [0:5]."),
		pollTimeoutMs:   fs.Int("poll_timeout_ms", -1, "Overrides the status poll deadline, in ms."),
		dumpRegisters:   fs.Bool("dump_registers", false, "Overrides logging the SOR registers on a mismatch."),
	}
}

// apply writes the flags given on fs into so.
func (of *optionFlags) apply(fs *flag.FlagSet, so *sorloopback.SpecOptions) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *of.retries != -1 {
		if *of.retries < 0 || *of.retries > 100 {
			return fmt.Errorf("the retries = %d option is out of range [0:100]", *of.retries)
		}
		so.Retries = of.retries
	}
	if *of.settleDelayUs != -1 {
		if *of.settleDelayUs < 0 {
			return fmt.Errorf("the settle_delay_us = %d option is negative", *of.settleDelayUs)
		}
		so.SettleDelayUs = of.settleDelayUs
	}
	if *of.patternIndex != unsetPatternIndex {
		if *of.patternIndex < -1 || *of.patternIndex >= lanemap.NumPatterns {
			return fmt.Errorf("the pattern_index = %d option is out of range [-1:%d]",
				*of.patternIndex, lanemap.NumPatterns-1)
		}
		so.PatternIndex = of.patternIndex
	}
	if *of.pollTimeoutMs != -1 {
		if *of.pollTimeoutMs < 0 {
			return fmt.Errorf("the poll_timeout_ms = %d option is negative", *of.pollTimeoutMs)
		}
		so.PollTimeoutMs = of.pollTimeoutMs
	}
	if set["wait_for_readback"] {
		so.WaitForReadback = of.waitForReadback
	}
	if set["ignore_mismatch"] {
		so.IgnoreMismatch = of.ignoreMismatch
	}
	if set["dump_registers"] {
		so.DumpRegisters = of.dumpRegisters
	}
	return nil
}

// applySpec overrides the spec options and every unit's own options, so
// the command line wins over both.
func (of *optionFlags) applySpec(fs *flag.FlagSet, spec *sorloopback.Spec) error {
	if err := of.apply(fs, &spec.Options); err != nil {
		return err
	}
	for i := range spec.Units {
		if spec.Units[i].Options == nil {
			continue
		}
		if err := of.apply(fs, spec.Units[i].Options); err != nil {
			return err
		}
	}
	return nil
}
