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

func TestReduceUphy(t *testing.T) {
	p := Pattern(0x0a8771b803)
	assert.Equal(t, uint32(0x1dc6e), ReduceUphy(p, Lanes01))
	assert.Equal(t, uint32(0x0a803), ReduceUphy(p, Lanes23))

	p = Pattern(0x0200400810)
	assert.Equal(t, uint32(0x01002), ReduceUphy(p, Lanes01))
	assert.Equal(t, uint32(0x02010), ReduceUphy(p, Lanes23))
}

func TestEncodeUphy(t *testing.T) {
	enc := EncodeUphy(Lanes01, 0x0a8771b803)
	assert.Equal(t, uint32(0x1dc6e), enc.Value)
	assert.Equal(t, uint32(0xd57d63eb), enc.Crc)

	enc = EncodeUphy(Lanes23, 0x0200400810)
	assert.Equal(t, uint32(0x8ec0), enc.Crc)

	// Symmetric patterns look the same on both pairings.
	a := EncodeUphyAll(Lanes01, Catalog())
	b := EncodeUphyAll(Lanes23, Catalog())
	require.Len(t, a, NumPatterns)
	for i := 2; i < NumPatterns; i++ {
		assert.Equal(t, a[i].Crc, b[i].Crc, "pattern %s", a[i].Pattern)
	}
}

func TestParseLanePair(t *testing.T) {
	for in, want := range map[string]LanePair{
		"lanes01": Lanes01, "LANES23": Lanes23, "23": Lanes23, "": Lanes01,
	} {
		got, err := ParseLanePair(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLanePair("lanes12")
	assert.Error(t, err)
	assert.Equal(t, [2]int{2, 3}, Lanes23.Lanes())
}
