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

// Per hardware family operations. A family is picked once per session and
// supplies the steps below; IOBIST replaces the whole pattern loop.

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/sorregs"
)

type variantOps struct {
	// touched are the direct offsets saved and restored by the session.
	touched []uint32
	// touchedIndirect are the IOBIST indirect addresses saved and restored.
	touchedIndirect []uint32
	// touchedBanked are indirect addresses banked per sub-link, saved and
	// restored once for every active sub-link.
	touchedBanked []uint32

	arm    func(s *session) error
	disarm func(s *session) error
	// recompute fills s.expected.
	recompute func(s *session) error
	// writePattern drives one pattern and optionally awaits its readback.
	writePattern func(s *session, exp expectation) error
	// matchCrcs reads the hardware CRCs once and compares the active links.
	matchCrcs func(s *session, exp expectation) (obs [lanemap.NumLinks]uint64, ok bool, err error)
	// updateCrcTable records the final comparison of a pattern.
	updateCrcTable func(s *session, exp expectation, obs [lanemap.NumLinks]uint64, attempts int)

	// inner, when set, replaces arm/recompute/compare/disarm.
	inner func(s *session) error
}

var legacyOps = &variantOps{
	touched: []uint32{
		sorregs.LinkControl, sorregs.TestControl, sorregs.CrcControl,
		sorregs.DebugPatLo, sorregs.DebugPatHi,
	},
	arm:            legacyArm,
	disarm:         disarmTest,
	recompute:      legacyRecompute,
	writePattern:   legacyWritePattern,
	matchCrcs:      legacyMatchCrcs,
	updateCrcTable: recordCrcs,
}

var uphyOps = &variantOps{
	touched: []uint32{
		sorregs.LinkControl, sorregs.TestControl, sorregs.CrcControl,
		sorregs.DebugPatLo, sorregs.DebugPatHi, sorregs.UphyControl,
	},
	arm:            uphyArm,
	disarm:         uphyDisarm,
	recompute:      uphyRecompute,
	writePattern:   uphyWritePattern,
	matchCrcs:      uphyMatchCrcs,
	updateCrcTable: recordCrcs,
}

var iobistOps = &variantOps{
	touched: []uint32{sorregs.IobistData},
	touchedIndirect: []uint32{
		sorregs.IbClockGate, sorregs.IbCaptureCfg, sorregs.IbTxMux, sorregs.IbConfig,
		sorregs.IbSublinkSel, sorregs.IbLaneSel, sorregs.IbControl,
	},
	touchedBanked: []uint32{
		sorregs.IbPadConnect, sorregs.IbPrbsSeed, sorregs.IbPrbsMode, sorregs.IbRwEnable,
	},
	inner: iobistRun,
}

func opsFor(v Variant) *variantOps {
	switch v {
	case VariantUphy:
		return uphyOps
	case VariantIobist:
		return iobistOps
	}
	return legacyOps
}

func (s *session) write(off, val uint32) error {
	log.V(2).Infof("SOR%d: write %s = %#x", s.sor, sorregs.Name(off), val)
	if err := s.e.port.Write(s.base+off, val); err != nil {
		return fmt.Errorf("writing %s: %w", sorregs.Name(off), err)
	}
	return nil
}

func (s *session) read(off uint32) (uint32, error) {
	v, err := s.e.port.Read(s.base + off)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", sorregs.Name(off), err)
	}
	return v, nil
}

// armTest clears the CRCs and turns on loopback, the debug pattern source and
// the CRC generator.
func armTest(s *session) error {
	if err := s.write(sorregs.CrcControl, s.savedValue(sorregs.CrcControl)|sorregs.CrcClear); err != nil {
		return err
	}
	return s.write(sorregs.TestControl, s.savedValue(sorregs.TestControl)|sorregs.TestArmMask)
}

func disarmTest(s *session) error {
	return s.write(sorregs.TestControl, s.savedValue(sorregs.TestControl)&^sorregs.TestArmMask)
}

func writeDebugPattern(s *session, p lanemap.Pattern) error {
	if err := s.write(sorregs.DebugPatLo, uint32(p)); err != nil {
		return err
	}
	// The high word commits the pattern.
	return s.write(sorregs.DebugPatHi, uint32(uint64(p)>>32)&sorregs.ReadbackHiMask)
}

// //////////////////////////////////////////////////////////////////////////////
// Legacy

func legacyArm(s *session) error {
	lc := s.savedValue(sorregs.LinkControl) &^ (sorregs.LinkEnableA | sorregs.LinkEnableB)
	for _, l := range s.links() {
		lc |= sorregs.LinkEnable(l)
	}
	if err := s.write(sorregs.LinkControl, lc); err != nil {
		return err
	}
	return armTest(s)
}

// legacyRecompute reads the crossbar once and encodes every pattern.
func legacyRecompute(s *session) error {
	ctl, err := s.read(sorregs.XbarControl)
	if err != nil {
		return err
	}
	var links [lanemap.NumLinks]uint32
	for l := range links {
		if links[l], err = s.read(sorregs.XbarLink(lanemap.Link(l))); err != nil {
			return err
		}
	}
	cfg := sorregs.DecodeCrossbar(ctl, links)
	log.V(1).Infof("SOR%d crossbar: %+v", s.sor, cfg)
	pats := s.e.opts.patterns()
	s.expected = s.expected[:0]
	for _, ip := range pats {
		enc := lanemap.EncodeLegacy(cfg, ip.pattern)
		s.expected = append(s.expected, expectation{indexedPattern: ip, value: enc.Value, crc: enc.Crc})
	}
	return nil
}

func legacyWritePattern(s *session, exp expectation) error {
	if err := writeDebugPattern(s, exp.pattern); err != nil {
		return err
	}
	if !s.e.opts.WaitForReadback {
		return nil
	}
	// Best effort: functional models do not update the readback in time.
	for _, l := range s.links() {
		v := exp.value[l]
		if err := s.poll("readback", sorregs.ReadbackLo(l), uint32(v), 0xffffffff, true); err != nil {
			return err
		}
		if err := s.poll("readback", sorregs.ReadbackHi(l), uint32(v>>32), sorregs.ReadbackHiMask, true); err != nil {
			return err
		}
	}
	return nil
}

func legacyMatchCrcs(s *session, exp expectation) (obs [lanemap.NumLinks]uint64, ok bool, err error) {
	ok = true
	for _, l := range s.links() {
		lo, err := s.read(sorregs.CrcLo(l))
		if err != nil {
			return obs, false, err
		}
		hi, err := s.read(sorregs.CrcHi(l))
		if err != nil {
			return obs, false, err
		}
		obs[l] = uint64(hi&sorregs.CrcHiMask)<<32 | uint64(lo)
		ok = ok && obs[l] == exp.crc[l]
	}
	return obs, ok, nil
}

// recordCrcs appends one PatternResult per active link.
func recordCrcs(s *session, exp expectation, obs [lanemap.NumLinks]uint64, attempts int) {
	for _, l := range s.links() {
		pr := &PatternResult{
			Link:     l,
			Index:    exp.index,
			Pattern:  exp.pattern,
			Value:    exp.value[l],
			Expected: exp.crc[l],
			Observed: obs[l],
			Attempts: attempts,
			Pass:     obs[l] == exp.crc[l],
		}
		s.res.Patterns = append(s.res.Patterns, pr)
		s.e.arts.patternMeasurement(s.res, pr)
	}
}

// //////////////////////////////////////////////////////////////////////////////
// UPHY. The unit has one lane pair under test and one CRC register; the
// expectation is kept on every active link slot.

func uphyArm(s *session) error {
	lp := s.hints.LanePair
	if err := s.write(sorregs.LinkControl, s.savedValue(sorregs.LinkControl)|sorregs.LinkEnableA); err != nil {
		return err
	}
	ctl := s.savedValue(sorregs.UphyControl) &^ (sorregs.UphyPairMask | sorregs.UphyPowerMask)
	if err := s.write(sorregs.UphyControl, ctl|uint32(lp)); err != nil {
		return err
	}
	// Lane power-up sequence.
	pw := sorregs.UphyPower(lp)
	if err := s.write(sorregs.UphyControl, ctl|uint32(lp)|pw); err != nil {
		return err
	}
	// Best effort: simulators may never report the lanes ready.
	if err := s.poll("uphy_lane_power", sorregs.UphyStatus, pw, pw, true); err != nil {
		return err
	}
	return armTest(s)
}

func uphyDisarm(s *session) error {
	if err := disarmTest(s); err != nil {
		return err
	}
	ctl := s.savedValue(sorregs.UphyControl) &^ (sorregs.UphyPairMask | sorregs.UphyPowerMask)
	return s.write(sorregs.UphyControl, ctl|uint32(s.hints.LanePair))
}

func uphyRecompute(s *session) error {
	s.expected = s.expected[:0]
	for _, ip := range s.e.opts.patterns() {
		enc := lanemap.EncodeUphy(s.hints.LanePair, ip.pattern)
		exp := expectation{indexedPattern: ip}
		for _, l := range s.links() {
			exp.value[l] = uint64(enc.Value)
			exp.crc[l] = uint64(enc.Crc)
		}
		s.expected = append(s.expected, exp)
	}
	log.V(1).Infof("SOR%d UPHY %s: %d patterns", s.sor, s.hints.LanePair, len(s.expected))
	return nil
}

func uphyWritePattern(s *session, exp expectation) error {
	if err := writeDebugPattern(s, exp.pattern); err != nil {
		return err
	}
	if !s.e.opts.WaitForReadback {
		return nil
	}
	l := s.links()[0]
	return s.poll("uphy_readback", sorregs.UphyReadback, uint32(exp.value[l]), sorregs.UphyReadbackMask, true)
}

func uphyMatchCrcs(s *session, exp expectation) (obs [lanemap.NumLinks]uint64, ok bool, err error) {
	v, err := s.read(sorregs.UphyCrc)
	if err != nil {
		return obs, false, err
	}
	ok = true
	for _, l := range s.links() {
		obs[l] = uint64(v)
		ok = ok && obs[l] == exp.crc[l]
	}
	return obs, ok, nil
}
