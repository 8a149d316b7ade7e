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

package sorsim

import (
	log "github.com/golang/glog"

	"github.com/google/sorloopback/regport"
	"github.com/google/sorloopback/sorregs"
)

// iobistCommand executes one command word. The hardware answers by rewriting
// IobistCmd with the error flag and, for reads, IobistData with the value.
func (u *unit) iobistCommand(b regport.Bank, addr, raw uint32) {
	var c sorregs.Command
	c.Decode(raw)
	c.Err = false
	switch {
	case u.caps&sorregs.CapIobist == 0,
		!sorregs.IobistAddressed(c.Addr),
		u.faults.IobistRejectAddr[c.Addr],
		u.badPad(b, c, b.Peek(u.base+sorregs.IobistData)):
		c.Err = true
	case c.Op == sorregs.IndirectOpWrite:
		u.ibWrite(b, c.Addr, b.Peek(u.base+sorregs.IobistData))
	case c.Op == sorregs.IndirectOpRead:
		b.Poke(u.base+sorregs.IobistData, b.Peek(u.ibAddr(b, c.Addr)))
	default:
		c.Err = true
	}
	if c.Err {
		log.V(2).Infof("sorsim: SOR%d rejecting IOBIST command %#08x", u.sor, raw)
	}
	b.Poke(addr, c.Encode())
}

// badPad reports a pad connect of a sub-link marked bad.
func (u *unit) badPad(b regport.Bank, c sorregs.Command, data uint32) bool {
	if c.Op != sorregs.IndirectOpWrite || c.Addr != sorregs.IbPadConnect || data&sorregs.IbPadConnectOn == 0 {
		return false
	}
	return u.faults.IobistBadSublink[int(b.Peek(shadow(u.sor, sorregs.IbSublinkSel)))]
}

// ibAddr returns the bank address of an indirect register, following the
// sub-link selection for banked ones.
func (u *unit) ibAddr(b regport.Bank, addr uint32) uint32 {
	if !sorregs.IbBanked(addr) {
		return shadow(u.sor, addr)
	}
	return banked(u.sor, int(b.Peek(shadow(u.sor, sorregs.IbSublinkSel))), addr)
}

func (u *unit) ibWrite(b regport.Bank, addr, val uint32) {
	b.Poke(u.ibAddr(b, addr), val)
	switch addr {
	case sorregs.IbLaneSel, sorregs.IbSublinkSel:
		b.Poke(shadow(u.sor, sorregs.IbStatus), 0)
	case sorregs.IbControl:
		if val&sorregs.IbVerify != 0 && !u.faults.IobistVerifyHangs {
			u.verify(b)
		}
	}
}

// ready reports whether the engine was set up far enough for a verify to
// mean anything: clocks on, pad connected, both directions enabled.
func (u *unit) ready(b regport.Bank) bool {
	ind := func(a uint32) uint32 { return b.Peek(u.ibAddr(b, a)) }
	rw := uint32(sorregs.IbWriteEnable | sorregs.IbReadEnable)
	return ind(sorregs.IbClockGate)&sorregs.IbClockEnable != 0 &&
		ind(sorregs.IbPadConnect)&sorregs.IbPadConnectOn != 0 &&
		ind(sorregs.IbRwEnable)&rw == rw &&
		ind(sorregs.IbPrbsMode) != 0
}

func (u *unit) verify(b regport.Bank) {
	sublink := int(b.Peek(shadow(u.sor, sorregs.IbSublinkSel)))
	lane := int(b.Peek(shadow(u.sor, sorregs.IbLaneSel)))
	status := uint32(sorregs.IbErrStatusPass)
	capture := [sorregs.IbCaptureWords]uint32{}
	if !u.ready(b) {
		status = 0
	} else if u.faults.IobistFailLanes[[2]int{sublink, lane}] {
		status = ibFailStatus
		for i := range capture {
			capture[i] = 0xdead0000 | uint32(sublink)<<8 | uint32(lane)<<4 | uint32(i)
		}
	}
	log.V(2).Infof("sorsim: SOR%d IOBIST verify sublink %d lane %d status %#x", u.sor, sublink, lane, status)
	b.Poke(shadow(u.sor, sorregs.IbErrStatus), status)
	for i, w := range capture {
		b.Poke(shadow(u.sor, sorregs.IbCapture(i)), w)
	}
	b.Poke(shadow(u.sor, sorregs.IbStatus), sorregs.IbVerifyDone)
}
