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

// Session-level procedures: save, arm, the per-pattern loop, disarm, restore.

import (
	"errors"
	"fmt"
	"slices"
	"time"

	log "github.com/golang/glog"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/sorregs"
)

type state int

const (
	stateIdle state = iota
	stateSaved
	stateLinksResolved
	stateDebugArmed
	statePerPattern
	stateDebugDisarmed
	stateRestored
)

var stateNames = [...]string{
	"Idle", "Saved", "LinksResolved", "DebugArmed", "PerPattern", "DebugDisarmed", "Restored",
}

func (s state) String() string { return stateNames[s] }

// savedReg is one register of the snapshot. Indirect registers go through
// the IOBIST protocol on restore; banked ones select sublink first.
type savedReg struct {
	addr     uint32
	val      uint32
	indirect bool
	banked   bool
	sublink  int
}

// expectation is what one pattern should produce on each link.
type expectation struct {
	indexedPattern
	value [lanemap.NumLinks]uint64
	crc   [lanemap.NumLinks]uint64
}

// A session tests one link set of one unit. It is single-threaded.
type session struct {
	e        *Engine
	res      *Result
	sor      int
	base     uint32
	active   [lanemap.NumLinks]bool
	kind     Variant
	ops      *variantOps
	hints    Hints
	ind      *indirect
	st       state
	saved    []savedReg
	expected []expectation
}

func (e *Engine) newSession(res *Result, sor int, active [lanemap.NumLinks]bool, kind Variant, hints Hints) *session {
	base := sorregs.Base(sor)
	return &session{
		e:      e,
		res:    res,
		sor:    sor,
		base:   base,
		active: active,
		kind:   kind,
		ops:    opsFor(kind),
		hints:  hints,
		ind:    &indirect{port: e.port, base: base},
	}
}

func (s *session) enter(st state) {
	log.V(2).Infof("SOR%d %s: %s -> %s", s.sor, s.kind, s.st, st)
	s.st = st
}

// links returns the active links in order.
func (s *session) links() []lanemap.Link {
	var ls []lanemap.Link
	for l, on := range s.active {
		if on {
			ls = append(ls, lanemap.Link(l))
		}
	}
	return ls
}

// runSession runs one session. The restore is deferred before anything is
// saved, so it covers every exit path, including a failing save.
func (e *Engine) runSession(res *Result, sor int, active [lanemap.NumLinks]bool, kind Variant, hints Hints) (err error) {
	s := e.newSession(res, sor, active, kind, hints)
	defer func() {
		if rerr := s.restore(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	if err := s.save(); err != nil {
		return err
	}
	s.enter(stateLinksResolved)
	return s.run()
}

// save snapshots every register the variant touches.
func (s *session) save() error {
	for _, off := range s.ops.touched {
		addr := s.base + off
		val, err := s.e.port.Read(addr)
		if err != nil {
			return fmt.Errorf("saving %s: %w", sorregs.Name(off), err)
		}
		s.saved = append(s.saved, savedReg{addr: addr, val: val})
	}
	for _, addr := range s.ops.touchedIndirect {
		val, err := s.ind.ReadIndirect(addr)
		if err != nil {
			return fmt.Errorf("saving indirect %#x: %w", addr, err)
		}
		s.saved = append(s.saved, savedReg{addr: addr, val: val, indirect: true})
	}
	// Banked registers come after IbSublinkSel, so the selection is restored
	// after them.
	for sl, on := range s.active {
		if !on || len(s.ops.touchedBanked) == 0 {
			continue
		}
		if err := s.ind.WriteIndirect(sorregs.IbSublinkSel, uint32(sl)); err != nil {
			return fmt.Errorf("selecting sublink %d: %w", sl, err)
		}
		for _, addr := range s.ops.touchedBanked {
			val, err := s.ind.ReadIndirect(addr)
			if err != nil {
				return fmt.Errorf("saving sublink %d indirect %#x: %w", sl, addr, err)
			}
			s.saved = append(s.saved, savedReg{addr: addr, val: val, indirect: true, banked: true, sublink: sl})
		}
	}
	log.V(2).Infof("SOR%d: saved %d registers", s.sor, len(s.saved))
	s.enter(stateSaved)
	return nil
}

// restore writes the snapshot back in reverse order and counts one cycle.
// A failing write does not stop the others.
func (s *session) restore() error {
	var errs []error
	for _, r := range slices.Backward(s.saved) {
		var err error
		switch {
		case r.banked:
			if err = s.ind.WriteIndirect(sorregs.IbSublinkSel, uint32(r.sublink)); err == nil {
				err = s.ind.WriteIndirect(r.addr, r.val)
			}
		case r.indirect:
			err = s.ind.WriteIndirect(r.addr, r.val)
		default:
			err = s.e.port.Write(r.addr, r.val)
		}
		if err != nil {
			log.Errorf("SOR%d: restoring %#x: %v", s.sor, r.addr, err)
			errs = append(errs, err)
		}
	}
	s.res.RestoreCycles++
	s.e.metrics.restored()
	s.enter(stateRestored)
	return errors.Join(errs...)
}

func (s *session) savedValue(off uint32) uint32 {
	for _, r := range s.saved {
		if !r.indirect && r.addr == s.base+off {
			return r.val
		}
	}
	return 0
}

// run arms the unit, runs the inner loop and disarms, the last through defer.
func (s *session) run() (err error) {
	if s.ops.inner != nil {
		return s.ops.inner(s)
	}
	if err := s.ops.recompute(s); err != nil {
		return err
	}
	defer func() {
		if derr := s.ops.disarm(s); derr != nil {
			err = errors.Join(err, derr)
		}
		s.enter(stateDebugDisarmed)
	}()
	if err := s.ops.arm(s); err != nil {
		return err
	}
	s.enter(stateDebugArmed)

	for _, exp := range s.expected {
		s.enter(statePerPattern)
		if err := s.comparePattern(exp); err != nil {
			return err
		}
	}
	return nil
}

// comparePattern writes one pattern and compares the CRCs. Only the read and
// compare is retried, Retries+1 attempts in total.
func (s *session) comparePattern(exp expectation) error {
	opts := s.e.opts
	if err := s.ops.writePattern(s, exp); err != nil {
		return err
	}
	var (
		obs      [lanemap.NumLinks]uint64
		ok       bool
		err      error
		attempts int
	)
	for attempts < opts.Retries+1 {
		time.Sleep(opts.SettleDelay)
		attempts++
		s.e.metrics.attempt()
		if obs, ok, err = s.ops.matchCrcs(s, exp); err != nil {
			return err
		}
		if ok {
			break
		}
		log.V(1).Infof("SOR%d pattern %d: attempt %d of %d mismatched", s.sor, exp.index, attempts, opts.Retries+1)
	}
	s.ops.updateCrcTable(s, exp, obs, attempts)
	if ok {
		log.V(1).Infof("SOR%d pattern %d %s: pass", s.sor, exp.index, exp.pattern)
		return nil
	}

	var mErr *MismatchError
	for _, l := range s.links() {
		if obs[l] == exp.crc[l] {
			continue
		}
		log.Errorf("SOR%d %s link %s pattern %d %s: observed crc %#x, expected %#x",
			s.sor, s.kind, l, exp.index, exp.pattern, obs[l], exp.crc[l])
		if mErr == nil {
			mErr = &MismatchError{
				Sor: s.sor, Variant: s.kind, Link: l, Pattern: exp.pattern,
				Expected: exp.crc[l], Observed: obs[l], Attempts: attempts,
			}
		}
	}
	s.res.Mismatches++
	s.e.metrics.mismatch()
	if opts.DumpRegisters {
		s.dumpRegisters()
	}
	if opts.IgnoreMismatch {
		log.Warningf("SOR%d: ignoring mismatch on pattern %d", s.sor, exp.index)
		return nil
	}
	return mErr
}

// dumpRegisters logs the unit's registers. Read errors are logged, not
// returned.
func (s *session) dumpRegisters() {
	offs := []uint32{
		sorregs.Capabilities, sorregs.LinkControl, sorregs.TestControl, sorregs.CrcControl,
		sorregs.XbarControl, sorregs.DebugPatLo, sorregs.DebugPatHi,
	}
	for _, l := range []lanemap.Link{lanemap.LinkA, lanemap.LinkB} {
		offs = append(offs, sorregs.XbarLink(l), sorregs.ReadbackLo(l), sorregs.ReadbackHi(l),
			sorregs.CrcLo(l), sorregs.CrcHi(l))
	}
	if s.kind == VariantUphy {
		offs = append(offs, sorregs.UphyControl, sorregs.UphyStatus, sorregs.UphyCrc, sorregs.UphyReadback)
	}
	for _, off := range offs {
		if v, err := s.e.port.Read(s.base + off); err != nil {
			log.Errorf("SOR%d %s: %v", s.sor, sorregs.Name(off), err)
		} else {
			log.Infof("SOR%d %-16s = %#08x", s.sor, sorregs.Name(off), v)
		}
	}
}
