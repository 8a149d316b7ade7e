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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrc16KnownWords(t *testing.T) {
	for _, tc := range []struct {
		in, want uint16
	}{
		{0x0000, 0x0000},
		{0x0001, 0xd57d},
		{0x8000, 0x22f4},
		{0xffff, 0x7073},
		{0xb803, 0x8f86},
		{0x8771, 0xc4d3},
		{0x000a, 0x71f5},
		{0x0810, 0xc05a},
		{0x0040, 0x39b6},
		{0x0002, 0xbadb},
	} {
		assert.Equalf(t, tc.want, Crc16(tc.in), "Crc16(%#04x)", tc.in)
	}
}

func TestCrc48ReferenceVectors(t *testing.T) {
	assert.Equal(t, uint64(0x71f5c4d38f86), Crc48(0x0a8771b803))
	assert.Equal(t, uint64(0xbadb39b6c05a), Crc48(0x0200400810))
}

func TestCrc32PacksHalves(t *testing.T) {
	w := uint32(0x0001dc6e)
	want := uint32(Crc16(0x0001))<<16 | uint32(Crc16(0xdc6e))
	assert.Equal(t, want, Crc32(w))
	assert.Equal(t, uint32(0xd57d63eb), Crc32(w))
}

func TestCrcIsLinear(t *testing.T) {
	// The generator starts from zero and has no output inversion.
	a, b := uint16(0x1234), uint16(0x0f0f)
	assert.Equal(t, Crc16(a)^Crc16(b), Crc16(a^b))
}
