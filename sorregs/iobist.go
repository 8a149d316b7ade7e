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

package sorregs

// IOBIST registers are not directly addressable. They are reached through
// IobistCmd/IobistData: write the data, write a command word with the opcode
// and the indirect address, check the error flag, read the data back.

// //////////////////////////////////////////////////////////////////////////////
const (
	// Opcodes, command word [29:28].
	IndirectOpWrite = 0x1
	IndirectOpRead  = 0x2

	// The hardware sets [30] when the command failed.
	cmdErrorPos = 30
	cmdOpPos    = 28
	cmdOpMask   = 0x3
	cmdAddrMask = 0xffff

	// Indirect window decoded by the engine.
	iobistWindowStart = 0x0100
	iobistWindowEnd   = 0x0160
)

// Indirect addresses.
const (
	IbClockGate  = 0x0100 // [0] BIST clock, [1] capture clock
	IbCaptureCfg = 0x0104 // [0] capture from the RX direction
	IbTxMux      = 0x0108 // [3:0] data mux, [7:4] rate
	IbConfig     = 0x010c // [0] stop on error, [12:8] loop count exponent, [31:16] capture start
	IbSublinkSel = 0x0110
	IbPadConnect = 0x0114
	IbPrbsSeed   = 0x0118
	IbPrbsMode   = 0x011c
	IbRwEnable   = 0x0120 // [0] write enable, [1] read enable
	IbLaneSel    = 0x0124
	IbControl    = 0x0128 // [0] start, [1] verify
	IbStatus     = 0x012c // [0] verify complete
	IbErrStatus  = 0x0130 // [3:0] error status, [7:4] lock status
	IbCapture0   = 0x0140 // 5 words, 0x0140..0x0150
)

// Field values.
const (
	IbClockEnable   = 1 << 0
	IbCaptureClock  = 1 << 1
	IbCaptureFromRx = 1 << 0

	IbTxMuxTmds = 0x1<<4 | 0x1
	IbTxMuxFrl  = 0x3<<4 | 0x2

	IbStopOnError     = 1 << 0
	IbLoopCountPos    = 8
	IbLoopCountMask   = 0x1f
	IbCaptureStartPos = 16
	IbCaptureMask     = 0xffff

	IbPadConnectOn = 1 << 0
	IbPrbsSeedInit = 0x7fff
	IbPrbs7        = 0x1 // TMDS
	IbPrbs15       = 0x2 // FRL

	IbWriteEnable = 1 << 0
	IbReadEnable  = 1 << 1

	IbStart  = 1 << 0
	IbVerify = 1 << 1

	IbVerifyDone = 1 << 0

	IbErrStatusMask = 0xff
	// IbErrStatusPass is "locked, no error".
	IbErrStatusPass = 0x20

	IbCaptureWords = 5
	// IbLanes is the number of lanes per sub-link.
	IbLanes = 4
	// IbSublinks is the number of sub-links.
	IbSublinks = 2
)

// IbCapture returns the address of capture buffer word i.
func IbCapture(i int) uint32 { return IbCapture0 + 4*uint32(i) }

// IbBanked reports whether addr is banked per sub-link. A banked register
// is reached through the sub-link selected in IbSublinkSel.
func IbBanked(addr uint32) bool {
	switch addr {
	case IbPadConnect, IbPrbsSeed, IbPrbsMode, IbRwEnable:
		return true
	}
	return false
}

// IobistAddressed reports whether addr is in the indirect window the engine
// knows how to drive.
func IobistAddressed(addr uint32) bool {
	return addr >= iobistWindowStart && addr < iobistWindowEnd && addr%4 == 0
}

// Command is the IobistCmd word.
type Command struct {
	Raw  uint32
	Op   uint32 // bitfield [29:28]
	Err  bool   // bitfield [30], set by hardware
	Addr uint32 // bitfield [15:0]
}

// Encode packs the fields into the raw word.
func (c *Command) Encode() uint32 {
	c.Raw = (c.Op&cmdOpMask)<<cmdOpPos | c.Addr&cmdAddrMask
	if c.Err {
		c.Raw |= 1 << cmdErrorPos
	}
	return c.Raw
}

// Decode unpacks a raw word into fields.
func (c *Command) Decode(raw uint32) {
	c.Raw = raw
	c.Op = (raw >> cmdOpPos) & cmdOpMask
	c.Err = (raw>>cmdErrorPos)&1 != 0
	c.Addr = raw & cmdAddrMask
}
