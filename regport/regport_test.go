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

package regport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceReadWrite(t *testing.T) {
	s := NewSpace(nil)
	require.NoError(t, s.Write(0x10, 0xcafe))
	v, err := s.Read(0x10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xcafe), v)
	v, err = s.Read(0x14)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.Equal(t, Stats{Reads: 2, Writes: 1}, s.Stats())
}

func TestSpaceUnsupportedAddress(t *testing.T) {
	s := NewSpace(func(addr uint32) bool { return addr < 0x100 })
	err := s.Write(0x100, 1)
	assert.True(t, errors.Is(err, ErrUnsupported))
	_, err = s.Read(0x200)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, Stats{}, s.Stats())
}

func TestSpaceHooks(t *testing.T) {
	s := NewSpace(nil)
	// A write-one-to-clear status register and a read-only counter.
	s.Poke(0x20, 0xff)
	s.OnWrite(0x20, func(b Bank, addr, val uint32) { b.Poke(addr, b.Peek(addr)&^val) })
	reads := uint32(0)
	s.OnRead(0x24, func(b Bank, addr uint32) uint32 { reads++; return reads })

	require.NoError(t, s.Write(0x20, 0x0f))
	assert.Equal(t, uint32(0xf0), s.Peek(0x20))

	v1, _ := s.Read(0x24)
	v2, _ := s.Read(0x24)
	assert.Equal(t, []uint32{1, 2}, []uint32{v1, v2})

	snap := s.Snapshot()
	assert.Equal(t, uint32(0xf0), snap[0x20])
}

func TestPollUntil(t *testing.T) {
	s := NewSpace(nil)
	s.SetPollInterval(time.Microsecond)
	n := 0
	s.OnRead(0x30, func(b Bank, addr uint32) uint32 {
		n++
		if n >= 3 {
			return 0x8001
		}
		return 0x0001
	})
	require.NoError(t, s.PollUntil(0x30, 0x8000, 0x8000, time.Second))
	assert.Equal(t, 3, n)

	err := s.PollUntil(0x34, 1, 1, 50*time.Microsecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestPollZeroTimeoutReadsOnce(t *testing.T) {
	s := NewSpace(nil)
	s.Poke(0x40, 7)
	require.NoError(t, s.PollUntil(0x40, 7, 0xf, 0))
	assert.Equal(t, 1, s.Stats().Reads)

	err := Poll(s, 0x40, 8, 0xf, 0, time.Microsecond)
	assert.ErrorIs(t, err, ErrPollTimeout)
}
