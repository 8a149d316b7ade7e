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

// Package sorsim is a register-level model of the SOR loopback block. It
// backs a regport.Space with hooks that behave like the capture logic: a
// debug pattern written while loopback is armed shows up in the readback and
// CRC registers after going through the crossbar, and the IOBIST indirect
// protocol answers like the built-in self-test engine. Faults can be injected
// per unit.
package sorsim

import (
	log "github.com/golang/glog"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/regport"
	"github.com/google/sorloopback/sorregs"
)

// Faults selects misbehavior of one unit.
type Faults struct {
	// CorruptCrc is the number of CRC reads to corrupt per link; -1 corrupts
	// every read. UPHY uses the LinkA entry.
	CorruptCrc [lanemap.NumLinks]int
	// StuckReadback keeps the readback registers from updating.
	StuckReadback bool
	// UphyNeverReady keeps the lane power-up status clear.
	UphyNeverReady bool
	// IobistFailLanes fails the verify of {sublink, lane}.
	IobistFailLanes map[[2]int]bool
	// IobistRejectAddr sets the command error flag for these indirect
	// addresses.
	IobistRejectAddr map[uint32]bool
	// IobistBadSublink rejects connecting the pad of these sub-links.
	IobistBadSublink map[int]bool
	// IobistVerifyHangs never reports verify complete.
	IobistVerifyHangs bool
}

// Unit is the power-on state of one serializer.
type Unit struct {
	Caps        uint32
	Crossbar    lanemap.CrossbarConfig
	LinkControl uint32
	Faults      Faults
}

// Legacy, Uphy and Iobist return fault-free units of each chip family.
func Legacy() Unit { return Unit{Crossbar: lanemap.Identity()} }

// Uphy is a two-lane UPHY serializer.
func Uphy() Unit { return Unit{Caps: sorregs.CapUphy, Crossbar: lanemap.Identity()} }

// Iobist is a serializer with the built-in self-test engine.
func Iobist() Unit { return Unit{Caps: sorregs.CapIobist, Crossbar: lanemap.Identity()} }

// ibFailStatus is what a failing lane reports: locked with errors.
const ibFailStatus = 0x21

// shadowBase keys the indirect registers inside the Bank, outside the
// decoded direct window.
const shadowBase = 0x8000_0000

func shadow(sor int, addr uint32) uint32 {
	return shadowBase | uint32(sor)<<16 | addr&0xffff
}

// banked keys a per-sub-link copy of an indirect register.
func banked(sor, sublink int, addr uint32) uint32 {
	return shadow(sor, addr) | uint32(sublink+1)<<12
}

// Device is a simulated register space holding sorregs.NumSors units.
type Device struct {
	*regport.Space
	units [sorregs.NumSors]*unit
}

type unit struct {
	sor         int
	base        uint32
	caps        uint32
	faults      Faults
	corruptLeft [lanemap.NumLinks]int
}

// New builds a Device. Units missing from the map are fault-free Legacy.
func New(units map[int]Unit) *Device {
	d := &Device{Space: regport.NewSpace(sorregs.Decodes)}
	for sor := range d.units {
		cfg, ok := units[sor]
		if !ok {
			cfg = Legacy()
		}
		d.units[sor] = d.install(sor, cfg)
	}
	return d
}

// Indirect returns the stored value of an IOBIST indirect register. Banked
// registers are read through SublinkIndirect.
func (d *Device) Indirect(sor int, addr uint32) uint32 {
	return d.Peek(shadow(sor, addr))
}

// SetIndirect stores an IOBIST indirect register without going through the
// command protocol.
func (d *Device) SetIndirect(sor int, addr, val uint32) {
	d.Poke(shadow(sor, addr), val)
}

// SublinkIndirect returns the sub-link copy of a banked indirect register.
func (d *Device) SublinkIndirect(sor, sublink int, addr uint32) uint32 {
	return d.Peek(banked(sor, sublink, addr))
}

// SetSublinkIndirect stores the sub-link copy of a banked indirect register.
func (d *Device) SetSublinkIndirect(sor, sublink int, addr, val uint32) {
	d.Poke(banked(sor, sublink, addr), val)
}

func (d *Device) install(sor int, cfg Unit) *unit {
	u := &unit{
		sor:         sor,
		base:        sorregs.Base(sor),
		caps:        cfg.Caps,
		faults:      cfg.Faults,
		corruptLeft: cfg.Faults.CorruptCrc,
	}
	s := d.Space
	ctl, links := sorregs.EncodeCrossbar(cfg.Crossbar)
	s.Poke(u.base+sorregs.Capabilities, cfg.Caps)
	s.Poke(u.base+sorregs.LinkControl, cfg.LinkControl)
	s.Poke(u.base+sorregs.XbarControl, ctl)
	for l, v := range links {
		s.Poke(u.base+sorregs.XbarLink(lanemap.Link(l)), v)
	}

	s.OnWrite(u.base+sorregs.Capabilities, func(b regport.Bank, addr, val uint32) {})
	s.OnWrite(u.base+sorregs.DebugPatHi, func(b regport.Bank, addr, val uint32) {
		b.Poke(addr, val)
		u.commit(b)
	})
	s.OnWrite(u.base+sorregs.CrcControl, func(b regport.Bank, addr, val uint32) {
		b.Poke(addr, val)
		if val&sorregs.CrcClear != 0 {
			u.clearCrc(b)
		}
	})
	s.OnWrite(u.base+sorregs.UphyControl, func(b regport.Bank, addr, val uint32) {
		b.Poke(addr, val)
		if !u.faults.UphyNeverReady {
			b.Poke(u.base+sorregs.UphyStatus, val&sorregs.UphyPowerMask)
		}
	})
	for l := range lanemap.NumLinks {
		link := lanemap.Link(l)
		s.OnRead(u.base+sorregs.CrcLo(link), func(b regport.Bank, addr uint32) uint32 {
			return u.crcRead(b, addr, link)
		})
	}
	s.OnRead(u.base+sorregs.UphyCrc, func(b regport.Bank, addr uint32) uint32 {
		return u.crcRead(b, addr, lanemap.LinkA)
	})
	s.OnWrite(u.base+sorregs.IobistCmd, u.iobistCommand)
	return u
}

// crcRead applies the CRC corruption fault.
func (u *unit) crcRead(b regport.Bank, addr uint32, l lanemap.Link) uint32 {
	v := b.Peek(addr)
	switch left := u.corruptLeft[l]; {
	case left > 0:
		u.corruptLeft[l]--
		fallthrough
	case left < 0:
		log.V(2).Infof("sorsim: SOR%d corrupting CRC read of link %s", u.sor, l)
		return v ^ 1
	}
	return v
}

func (u *unit) clearCrc(b regport.Bank) {
	for l := range lanemap.NumLinks {
		b.Poke(u.base+sorregs.CrcLo(lanemap.Link(l)), 0)
		b.Poke(u.base+sorregs.CrcHi(lanemap.Link(l)), 0)
	}
	b.Poke(u.base+sorregs.UphyCrc, 0)
}

// commit models a pattern going round the loop. Nothing is captured unless
// loopback is armed with the debug pattern source.
func (u *unit) commit(b regport.Bank) {
	tc := b.Peek(u.base + sorregs.TestControl)
	if tc&sorregs.TestLoopback == 0 || tc&sorregs.TestDebugPattern == 0 {
		return
	}
	p := lanemap.Pattern(uint64(b.Peek(u.base+sorregs.DebugPatHi)&sorregs.ReadbackHiMask)<<32 |
		uint64(b.Peek(u.base+sorregs.DebugPatLo)))
	crcOn := tc&sorregs.TestCrcEnable != 0

	if u.caps&sorregs.CapUphy != 0 {
		lp := lanemap.LanePair(b.Peek(u.base+sorregs.UphyControl) & sorregs.UphyPairMask)
		want := sorregs.UphyPower(lp)
		powered := b.Peek(u.base+sorregs.UphyStatus)&want == want
		enc := lanemap.EncodeUphy(lp, p)
		if !u.faults.StuckReadback {
			b.Poke(u.base+sorregs.UphyReadback, enc.Value)
		}
		if crcOn && powered {
			b.Poke(u.base+sorregs.UphyCrc, enc.Crc)
		}
		return
	}

	var links [lanemap.NumLinks]uint32
	for l := range links {
		links[l] = b.Peek(u.base + sorregs.XbarLink(lanemap.Link(l)))
	}
	cfg := sorregs.DecodeCrossbar(b.Peek(u.base+sorregs.XbarControl), links)
	enc := lanemap.EncodeLegacy(cfg, p)
	lc := b.Peek(u.base + sorregs.LinkControl)
	for l := range lanemap.NumLinks {
		link := lanemap.Link(l)
		if lc&sorregs.LinkEnable(link) == 0 {
			continue
		}
		if !u.faults.StuckReadback {
			b.Poke(u.base+sorregs.ReadbackLo(link), uint32(enc.Value[l]))
			b.Poke(u.base+sorregs.ReadbackHi(link), uint32(enc.Value[l]>>32)&sorregs.ReadbackHiMask)
		}
		if crcOn {
			b.Poke(u.base+sorregs.CrcLo(link), uint32(enc.Crc[l]))
			b.Poke(u.base+sorregs.CrcHi(link), uint32(enc.Crc[l]>>32)&sorregs.CrcHiMask)
		}
	}
}
