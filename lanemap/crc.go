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

// This file reproduces the serializer's loopback CRC generator.

const (
	// crcPoly is the feedback tap set of the reflected 16-bit shift register.
	crcPoly = 0x8810
	// crcPasses is the number of times the generator clocks one channel word
	// before the capture register latches.
	crcPasses = 5
	crcWidth  = 16
)

// crcUpdate is one 16-bit combinational update of the generator state with a
// data word, LSB first.
func crcUpdate(state, word uint16) uint16 {
	for i := 0; i < crcWidth; i++ {
		fb := (state ^ (word >> i)) & 1
		state >>= 1
		if fb != 0 {
			state ^= crcPoly
		}
	}
	return state
}

// Crc16 returns the hardware CRC of one 16-bit channel word.
func Crc16(word uint16) uint16 {
	var state uint16
	for i := 0; i < crcPasses; i++ {
		state = crcUpdate(state, word)
	}
	return state
}

// Crc32 is the UPHY checksum: the low and high halves of the word are run
// through the generator independently and packed high:low.
func Crc32(word uint32) uint32 {
	lo := Crc16(uint16(word))
	hi := Crc16(uint16(word >> 16))
	return uint32(hi)<<16 | uint32(lo)
}

// Crc48 is the Legacy checksum of an encoded 40-bit value. The two halves of
// the low word fill bits [31:0]; the high-order pass over bits [47:32] fills
// the third field.
func Crc48(value uint64) uint64 {
	lo := uint64(Crc32(uint32(value)))
	hi := uint64(Crc16(uint16(value >> 32)))
	return hi<<32 | lo
}
