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

package lanemap

// UPHY has two receive lanes, so only half of a pattern comes back.

import (
	"fmt"
	"strings"
)

// LanePair selects which two transmit lanes are looped back.
type LanePair int

// LanePair enum
const (
	Lanes01 LanePair = iota
	Lanes23
)

func (lp LanePair) String() string {
	switch lp {
	case Lanes01:
		return "lanes01"
	case Lanes23:
		return "lanes23"
	}
	return fmt.Sprintf("LanePair(%d)", int(lp))
}

// Lanes returns the two physical lanes of the pairing.
func (lp LanePair) Lanes() [2]int {
	if lp == Lanes23 {
		return [2]int{2, 3}
	}
	return [2]int{0, 1}
}

// ParseLanePair accepts "lanes01"/"lanes23" (also "01"/"23").
func ParseLanePair(s string) (LanePair, error) {
	switch strings.TrimPrefix(strings.ToLower(s), "lanes") {
	case "", "01":
		return Lanes01, nil
	case "23":
		return Lanes23, nil
	}
	return Lanes01, fmt.Errorf("unknown lane pair: %q; expecting lanes01 or lanes23", s)
}

// UphyEncoded is the expected 20-bit capture and CRC of one pattern.
type UphyEncoded struct {
	Pattern Pattern
	Value   uint32
	Crc     uint32
}

// ReduceUphy folds a 40-bit pattern to the 20 bits the pairing receives.
func ReduceUphy(p Pattern, lp LanePair) uint32 {
	v := uint64(p) & PatternMask
	if lp == Lanes23 {
		return uint32((v>>(3*groupBits))&groupMask)<<groupBits | uint32(v&groupMask)
	}
	return uint32((v >> groupBits) & ((1 << (2 * groupBits)) - 1))
}

// EncodeUphy returns the UPHY expectation for pattern p.
func EncodeUphy(lp LanePair, p Pattern) UphyEncoded {
	v := ReduceUphy(p, lp)
	return UphyEncoded{Pattern: p, Value: v, Crc: Crc32(v)}
}

// EncodeUphyAll encodes every pattern in pats.
func EncodeUphyAll(lp LanePair, pats []Pattern) []UphyEncoded {
	encs := make([]UphyEncoded, 0, len(pats))
	for _, p := range pats {
		encs = append(encs, EncodeUphy(lp, p))
	}
	return encs
}
