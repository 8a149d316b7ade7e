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

// Package lanemap computes what a serializer in digital loopback is expected
// to capture: the fixed test patterns, the lane crossbar encoding for the
// Legacy (TMDS/LVDS) and UPHY families, and the hardware CRC over the result.
// Everything here is pure; no register is touched.
package lanemap

import (
	"fmt"
)

const (
	// PatternBits is the width of a debug pattern: four 10-bit lane groups.
	PatternBits = 40
	// PatternMask keeps the valid pattern bits.
	PatternMask = (uint64(1) << PatternBits) - 1

	groupBits = 10
	groupMask = (1 << groupBits) - 1
)

// A Pattern is one fixed test vector driven into the debug input registers.
type Pattern uint64

// catalog is the closed set of TMDS/LVDS vectors. UPHY reuses it.
var catalog = [...]Pattern{
	0x0a8771b803, // mixed transitions
	0x0200400810, // one bit per group, walking
	0x1f07c1f07c, // clock-like 5/5 per group
	0x3e0f83e0f8, // clock-like, shifted by one
	0xaaaaaaaaaa, // alternating, phase 1
	0x5555555555, // alternating, phase 0
}

// NumPatterns is the catalog size.
const NumPatterns = len(catalog)

// Catalog returns a copy of the pattern catalog.
func Catalog() []Pattern {
	pats := make([]Pattern, NumPatterns)
	copy(pats, catalog[:])
	return pats
}

// PatternAt returns catalog entry i.
func PatternAt(i int) (Pattern, error) {
	if i < 0 || i >= NumPatterns {
		return 0, fmt.Errorf("pattern index %d is out of range [0:%d]", i, NumPatterns-1)
	}
	return catalog[i], nil
}

// Group extracts the 10-bit group carried by physical lane n. Lanes past the
// fourth are aliased onto it.
func (p Pattern) Group(n int) uint16 {
	if n > NumLanes-1 {
		n = NumLanes - 1
	}
	if n < 0 {
		n = 0
	}
	return uint16((uint64(p) >> (uint(n) * groupBits)) & groupMask)
}

// Lo and Hi split a pattern the way the debug input registers take it.
func (p Pattern) Lo() uint32 { return uint32(p) }

// Hi returns bits [39:32].
func (p Pattern) Hi() uint32 { return uint32((uint64(p) & PatternMask) >> 32) }

func (p Pattern) String() string {
	return fmt.Sprintf("%#012x", uint64(p))
}
