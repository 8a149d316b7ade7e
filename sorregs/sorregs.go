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

// Package sorregs is the register layout of the serializer (SOR) loopback
// block, as seen through a regport.Port: direct register offsets, field
// masks, the crossbar register packing, and the IOBIST indirect command word.
package sorregs

import (
	"fmt"

	"github.com/google/sorloopback/lanemap"
)

// //////////////////////////////////////////////////////////////////////////////
const (
	// NumSors is the number of serializer units.
	NumSors   = 8
	sorBase   = 0x0061_c000
	sorStride = 0x800
	// sorSpan is the decoded part of a unit's window.
	sorSpan = 0x300
)

// Base returns the first register address of serializer sor.
func Base(sor int) uint32 {
	return sorBase + uint32(sor)*sorStride
}

// ValidSor reports whether sor names a serializer unit.
func ValidSor(sor int) bool {
	return sor >= 0 && sor < NumSors
}

// Decodes reports whether addr falls inside the decoded part of any unit.
func Decodes(addr uint32) bool {
	if addr < sorBase || addr >= sorBase+NumSors*sorStride {
		return false
	}
	return (addr-sorBase)%sorStride < sorSpan && addr%4 == 0
}

// Direct register offsets, relative to Base(sor).
const (
	Capabilities = 0x000 // RO
	LinkControl  = 0x004
	TestControl  = 0x010
	CrcControl   = 0x014
	XbarControl  = 0x040
	xbarLink     = 0x044 // + 4 * link
	DebugPatLo   = 0x100
	DebugPatHi   = 0x104
	readbackLo   = 0x110 // + 8 * link
	readbackHi   = 0x114
	crcLo        = 0x130 // + 8 * link
	crcHi        = 0x134
	UphyControl  = 0x180
	UphyStatus   = 0x184
	UphyCrc      = 0x188
	UphyReadback = 0x18c
	IobistCmd    = 0x200
	IobistData   = 0x204
)

// XbarLink is the crossbar register of a link.
func XbarLink(l lanemap.Link) uint32 { return xbarLink + 4*uint32(l) }

// ReadbackLo is the low word of the captured pattern of a link.
func ReadbackLo(l lanemap.Link) uint32 { return readbackLo + 8*uint32(l) }

// ReadbackHi holds bits [39:32] of the captured pattern of a link.
func ReadbackHi(l lanemap.Link) uint32 { return readbackHi + 8*uint32(l) }

// CrcLo is the low word of the 48-bit CRC of a link.
func CrcLo(l lanemap.Link) uint32 { return crcLo + 8*uint32(l) }

// CrcHi holds bits [47:32] of the CRC of a link.
func CrcHi(l lanemap.Link) uint32 { return crcHi + 8*uint32(l) }

// Field masks.
const (
	// Capabilities
	CapUphy   = 1 << 0
	CapIobist = 1 << 1

	// LinkControl: per-link loopback path enables.
	LinkEnableA = 1 << 0
	LinkEnableB = 1 << 1

	// TestControl
	TestLoopback     = 1 << 0 // route TX back into the capture logic
	TestDebugPattern = 1 << 1 // TX data comes from DebugPatLo/Hi
	TestCrcEnable    = 1 << 2
	TestArmMask      = TestLoopback | TestDebugPattern | TestCrcEnable

	// CrcControl
	CrcClear = 1 << 0

	// XbarControl
	XbarBypass       = 1 << 0
	XbarSwap         = 1 << 1
	XbarLane3AliasA  = 1 << 2
	XbarLane3AliasB  = 1 << 3
	xbarChannelBits  = 4
	xbarLaneMask     = 0x7
	xbarInvertMask   = 0x8
	ReadbackHiMask   = 0xff
	CrcHiMask        = 0xffff
	UphyPairMask     = 0x3
	UphyPowerReqPos  = 8
	UphyPowerMask    = 0xf << UphyPowerReqPos
	UphyReadbackMask = 0xfffff
)

// LinkEnable returns the LinkControl bit of a link.
func LinkEnable(l lanemap.Link) uint32 {
	if l == lanemap.LinkB {
		return LinkEnableB
	}
	return LinkEnableA
}

// UphyPower returns the power request / ready bits of a lane pairing.
func UphyPower(lp lanemap.LanePair) uint32 {
	var v uint32
	for _, n := range lp.Lanes() {
		v |= 1 << (UphyPowerReqPos + n)
	}
	return v
}

// DecodeCrossbar unpacks XbarControl and the two XbarLink registers.
func DecodeCrossbar(ctl uint32, links [lanemap.NumLinks]uint32) lanemap.CrossbarConfig {
	var cfg lanemap.CrossbarConfig
	cfg.Bypass = ctl&XbarBypass != 0
	cfg.Swap = ctl&XbarSwap != 0
	cfg.Links[lanemap.LinkA].Lane3Alias = ctl&XbarLane3AliasA != 0
	cfg.Links[lanemap.LinkB].Lane3Alias = ctl&XbarLane3AliasB != 0
	for l, raw := range links {
		for ch := range cfg.Links[l].Channels {
			f := (raw >> (uint(ch) * xbarChannelBits)) & 0xf
			cfg.Links[l].Channels[ch] = lanemap.Channel{
				Lane:   uint8(f & xbarLaneMask),
				Invert: f&xbarInvertMask != 0,
			}
		}
	}
	return cfg
}

// EncodeCrossbar packs cfg into XbarControl and the XbarLink registers.
func EncodeCrossbar(cfg lanemap.CrossbarConfig) (ctl uint32, links [lanemap.NumLinks]uint32) {
	if cfg.Bypass {
		ctl |= XbarBypass
	}
	if cfg.Swap {
		ctl |= XbarSwap
	}
	if cfg.Links[lanemap.LinkA].Lane3Alias {
		ctl |= XbarLane3AliasA
	}
	if cfg.Links[lanemap.LinkB].Lane3Alias {
		ctl |= XbarLane3AliasB
	}
	for l := range cfg.Links {
		for ch, c := range cfg.Links[l].Channels {
			f := uint32(c.Lane) & xbarLaneMask
			if c.Invert {
				f |= xbarInvertMask
			}
			links[l] |= f << (uint(ch) * xbarChannelBits)
		}
	}
	return ctl, links
}

// Name returns a mnemonic for a unit-relative offset, for register dumps.
func Name(off uint32) string {
	switch off {
	case Capabilities:
		return "CAPABILITIES"
	case LinkControl:
		return "LINK_CONTROL"
	case TestControl:
		return "TEST_CONTROL"
	case CrcControl:
		return "CRC_CONTROL"
	case XbarControl:
		return "XBAR_CONTROL"
	case DebugPatLo:
		return "DEBUG_PAT_LO"
	case DebugPatHi:
		return "DEBUG_PAT_HI"
	case UphyControl:
		return "UPHY_CONTROL"
	case UphyStatus:
		return "UPHY_STATUS"
	case UphyCrc:
		return "UPHY_CRC"
	case UphyReadback:
		return "UPHY_READBACK"
	case IobistCmd:
		return "IOBIST_CMD"
	case IobistData:
		return "IOBIST_DATA"
	}
	for _, l := range []lanemap.Link{lanemap.LinkA, lanemap.LinkB} {
		switch off {
		case XbarLink(l):
			return "XBAR_LINK_" + l.String()
		case ReadbackLo(l):
			return "READBACK_LO_" + l.String()
		case ReadbackHi(l):
			return "READBACK_HI_" + l.String()
		case CrcLo(l):
			return "CRC_LO_" + l.String()
		case CrcHi(l):
			return "CRC_HI_" + l.String()
		}
	}
	return fmt.Sprintf("REG_%03X", off)
}
