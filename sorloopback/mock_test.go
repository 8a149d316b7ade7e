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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/sorregs"
)

// expectIdentityCrossbar makes the mock report a straight-through crossbar.
func expectIdentityCrossbar(m *MockPort, base uint32) {
	ctl, links := sorregs.EncodeCrossbar(lanemap.Identity())
	m.EXPECT().Read(base + sorregs.XbarControl).Return(ctl, nil).AnyTimes()
	for l, v := range links {
		m.EXPECT().Read(base + sorregs.XbarLink(lanemap.Link(l))).Return(v, nil).AnyTimes()
	}
}

func TestRetriesReadCrcExactly(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockPort(ctrl)
	base := sorregs.Base(0)
	crcLo := base + sorregs.CrcLo(lanemap.LinkA)

	opts := fastOptions()
	opts.Retries = 4
	opts.PatternIndex = 0

	expectIdentityCrossbar(m, base)
	m.EXPECT().Read(crcLo).Return(uint32(0), nil).Times(opts.Retries + 1)
	m.EXPECT().Read(gomock.Not(gomock.AnyOf(crcLo, base+sorregs.XbarControl,
		base+sorregs.XbarLink(lanemap.LinkA), base+sorregs.XbarLink(lanemap.LinkB)))).
		Return(uint32(0), nil).AnyTimes()
	m.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	m.EXPECT().PollUntil(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	res, err := NewEngine(m, opts).RunLoopback(0, ProtocolTmdsA, LinkSelection{}, Hints{Variant: VariantLegacy})
	var mErr *MismatchError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, opts.Retries+1, mErr.Attempts)
	assert.Equal(t, uint64(0x71f5c4d38f86), mErr.Expected)
	assert.Zero(t, mErr.Observed)
	assert.Equal(t, 1, res.RestoreCycles)
}

func TestRestoreRunsAfterWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockPort(ctrl)
	base := sorregs.Base(1)
	failure := errors.New("bus error")

	opts := fastOptions()
	opts.PatternIndex = 0

	expectIdentityCrossbar(m, base)
	m.EXPECT().Read(gomock.Any()).Return(uint32(0x5), nil).AnyTimes()
	// Arming fails on the first LinkControl write. Every saved register is
	// still written back, LinkControl included.
	gomock.InOrder(
		m.EXPECT().Write(base+sorregs.LinkControl, gomock.Any()).Return(failure),
		m.EXPECT().Write(base+sorregs.LinkControl, uint32(0x5)).Return(nil),
	)
	for _, off := range []uint32{sorregs.TestControl, sorregs.CrcControl, sorregs.DebugPatLo, sorregs.DebugPatHi} {
		m.EXPECT().Write(base+off, gomock.Any()).Return(nil).MinTimes(1)
	}

	res, err := NewEngine(m, opts).RunLoopback(1, ProtocolTmdsA, LinkSelection{}, Hints{Variant: VariantLegacy})
	assert.ErrorIs(t, err, failure)
	assert.False(t, res.Pass)
	assert.Equal(t, 1, res.RestoreCycles)
}

func TestConfigurationErrorTouchesNothing(t *testing.T) {
	for _, tc := range []struct {
		name     string
		protocol Protocol
		links    LinkSelection
		hints    Hints
	}{
		{"LVDS without links", ProtocolLvds, LinkSelection{}, Hints{}},
		{"UPHY LVDS", ProtocolLvds, LinkSelection{Primary: true}, Hints{Variant: VariantUphy}},
		{"bad lane pair", ProtocolTmdsA, LinkSelection{}, Hints{LanePair: lanemap.LanePair(5)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := NewMockPort(ctrl)
			// No EXPECT: any call fails the test.
			_, err := NewEngine(m, fastOptions()).RunLoopback(0, tc.protocol, tc.links, tc.hints)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}
