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
	"github.com/stretchr/testify/require"
)

// scrambled is a crossbar with every field away from identity.
func scrambled() CrossbarConfig {
	var cfg CrossbarConfig
	cfg.Links[LinkA].Channels = [NumChannels]Channel{
		{Lane: 3}, {Lane: 2, Invert: true}, {Lane: 1}, {Lane: 0}, {Lane: 4, Invert: true},
	}
	cfg.Links[LinkB].Channels = [NumChannels]Channel{
		{Lane: 1, Invert: true}, {Lane: 0}, {Lane: 3}, {Lane: 2, Invert: true}, {Lane: 0},
	}
	cfg.Links[LinkB].Lane3Alias = true
	return cfg
}

func TestEncodeLegacyIdentityReferenceVectors(t *testing.T) {
	for _, tc := range []struct {
		p   Pattern
		crc uint64
	}{
		{0x0a8771b803, 0x71f5c4d38f86},
		{0x0200400810, 0xbadb39b6c05a},
	} {
		enc := EncodeLegacy(Identity(), tc.p)
		assert.Equal(t, uint64(tc.p), enc.Value[LinkA])
		assert.Equal(t, enc.Value[LinkA], enc.Value[LinkB])
		assert.Equal(t, tc.crc, enc.Crc[LinkA])
		assert.Equal(t, tc.crc, enc.Crc[LinkB])
	}
}

func TestEncodeLegacyDeterministic(t *testing.T) {
	for _, cfg := range []CrossbarConfig{Identity(), scrambled()} {
		for _, p := range Catalog() {
			assert.Equal(t, EncodeLegacy(cfg, p), EncodeLegacy(cfg, p))
		}
	}
}

func TestEncodeLegacyScrambled(t *testing.T) {
	p := Pattern(0x0a8771b803)
	enc := EncodeLegacy(scrambled(), p)
	// ch0<-lane3, ch1<-~lane2, ch2<-lane1, bits 30+ <- ch3<-lane0.
	assert.Equal(t, uint64(0xc6ee202a), enc.Value[LinkA])
	assert.Equal(t, uint64(0x077f6593), enc.Crc[LinkA])

	// Link B aliases the top group to channel 4, which reads lane 0.
	g := func(n int) uint64 { return uint64(p.Group(n)) }
	wantB := (g(1) ^ groupMask) | g(0)<<10 | g(3)<<20 | g(0)<<30
	assert.Equal(t, wantB, enc.Value[LinkB])
	assert.Equal(t, Crc48(wantB), enc.Crc[LinkB])
}

func TestEncodeLegacyBypassIsIdentity(t *testing.T) {
	cfg := scrambled()
	cfg.Bypass = true
	for _, p := range Catalog() {
		got := EncodeLegacy(cfg, p)
		want := EncodeLegacy(Identity(), p)
		assert.Equal(t, want.Value, got.Value, "pattern %s", p)
		assert.Equal(t, want.Crc, got.Crc, "pattern %s", p)
		assert.Equal(t, uint64(p), got.Value[LinkA])
	}
}

func TestEncodeLegacySwapExchangesLinks(t *testing.T) {
	cfg := scrambled()
	swapped := cfg
	swapped.Swap = true
	for _, p := range Catalog() {
		a := EncodeLegacy(cfg, p)
		b := EncodeLegacy(swapped, p)
		require.NotEqual(t, a.Value[LinkA], a.Value[LinkB], "pattern %s", p)
		assert.Equal(t, a.Value[LinkA], b.Value[LinkB])
		assert.Equal(t, a.Value[LinkB], b.Value[LinkA])
		assert.Equal(t, a.Crc[LinkA], b.Crc[LinkB])
		assert.Equal(t, a.Crc[LinkB], b.Crc[LinkA])
	}
}

func TestEncodeLegacyAllFollowsCatalogOrder(t *testing.T) {
	encs := EncodeLegacyAll(Identity(), Catalog())
	require.Len(t, encs, NumPatterns)
	for i, enc := range encs {
		p, err := PatternAt(i)
		require.NoError(t, err)
		assert.Equal(t, p, enc.Pattern)
	}
	_, err := PatternAt(NumPatterns)
	assert.Error(t, err)
}

func TestPatternGroupAliasesHighLanes(t *testing.T) {
	p := Pattern(0x0a8771b803)
	assert.Equal(t, uint16(0x003), p.Group(0))
	assert.Equal(t, uint16(0x2a), p.Group(3))
	assert.Equal(t, p.Group(3), p.Group(4))
	assert.Equal(t, p.Group(3), p.Group(7))
	assert.Equal(t, uint32(0x71b803), p.Lo()&0xffffff)
	assert.Equal(t, uint32(0x0a), p.Hi())
	assert.Equal(t, "0x0a8771b803", p.String())
}
