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

// IOBIST self-test: engine setup, then per sub-link and per lane PRBS runs.

import (
	"errors"
	"fmt"
	"time"

	log "github.com/golang/glog"

	"github.com/google/sorloopback/sorregs"
)

const (
	defaultLoopCountExp = 16
	minLoopCountExp     = 8
	maxLoopCountExp     = 31
)

// clampLoopCountExp maps 0 to the default and clamps the rest to
// [minLoopCountExp, maxLoopCountExp].
func clampLoopCountExp(v uint32) uint32 {
	switch {
	case v == 0:
		return defaultLoopCountExp
	case v > maxLoopCountExp:
		log.Warningf("IOBIST loop count exponent %d clamped to %d", v, maxLoopCountExp)
		return maxLoopCountExp
	case v < minLoopCountExp:
		log.Warningf("IOBIST loop count exponent %d clamped to %d", v, minLoopCountExp)
		return minLoopCountExp
	}
	return v
}

type iobistController struct {
	s       *session
	params  IobistParams
	loopExp uint32
}

// iobistRun is the IOBIST inner loop. A failing setup is fatal for the run.
// A protocol error or verify timeout ends its sub-link only.
func iobistRun(s *session) error {
	c := &iobistController{
		s:       s,
		params:  s.hints.Iobist,
		loopExp: clampLoopCountExp(s.hints.Iobist.LoopCountExp),
	}
	if err := c.setup(); err != nil {
		return fmt.Errorf("SOR%d IOBIST setup: %w", s.sor, err)
	}
	s.enter(stateDebugArmed)
	defer s.enter(stateDebugDisarmed)

	var errs []error
	for sl, on := range s.active {
		if !on {
			continue
		}
		s.enter(statePerPattern)
		if err := c.sublink(sl); err != nil {
			log.Errorf("SOR%d IOBIST sublink %d: %v", s.sor, sl, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *iobistController) write(addr, val uint32) error {
	if err := c.s.ind.WriteIndirect(addr, val); err != nil {
		return fmt.Errorf("write %#x: %w", addr, err)
	}
	return nil
}

func (c *iobistController) setup() error {
	mux := uint32(sorregs.IbTxMuxTmds)
	if c.params.Frl {
		mux = sorregs.IbTxMuxFrl
	}
	cfg := (c.loopExp&sorregs.IbLoopCountMask)<<sorregs.IbLoopCountPos |
		(c.params.CaptureStart&sorregs.IbCaptureMask)<<sorregs.IbCaptureStartPos
	if c.params.StopOnError {
		cfg |= sorregs.IbStopOnError
	}
	for _, w := range [][2]uint32{
		{sorregs.IbClockGate, sorregs.IbClockEnable | sorregs.IbCaptureClock},
		{sorregs.IbCaptureCfg, sorregs.IbCaptureFromRx},
		{sorregs.IbTxMux, mux},
		{sorregs.IbConfig, cfg},
	} {
		if err := c.write(w[0], w[1]); err != nil {
			return err
		}
	}
	log.V(1).Infof("SOR%d IOBIST: mux=%#x config=%#x", c.s.sor, mux, cfg)
	return nil
}

// sublink runs the four lanes of one sub-link. Lane mismatches are collected;
// anything else stops the sub-link.
func (c *iobistController) sublink(sl int) error {
	mode := uint32(sorregs.IbPrbs7)
	if c.params.Frl {
		mode = sorregs.IbPrbs15
	}
	for _, w := range [][2]uint32{
		{sorregs.IbSublinkSel, uint32(sl)},
		{sorregs.IbPadConnect, sorregs.IbPadConnectOn},
		{sorregs.IbPrbsSeed, sorregs.IbPrbsSeedInit},
		{sorregs.IbPrbsMode, mode},
		{sorregs.IbRwEnable, sorregs.IbWriteEnable | sorregs.IbReadEnable},
	} {
		if err := c.write(w[0], w[1]); err != nil {
			return fmt.Errorf("sublink %d: %w", sl, err)
		}
	}

	var mismatches []error
	for lane := range sorregs.IbLanes {
		err := c.lane(sl, lane)
		var mErr *MismatchError
		switch {
		case err == nil:
		case errors.As(err, &mErr):
			mismatches = append(mismatches, err)
		default:
			return fmt.Errorf("sublink %d lane %d: %w", sl, lane, err)
		}
	}
	if err := c.write(sorregs.IbControl, 0); err != nil {
		return fmt.Errorf("sublink %d: %w", sl, err)
	}
	return errors.Join(mismatches...)
}

func (c *iobistController) lane(sl, lane int) error {
	s := c.s
	lr := &LaneResult{Sublink: sl, Lane: lane}
	s.res.Lanes = append(s.res.Lanes, lr)
	fail := func(err error) error {
		lr.Message = err.Error()
		s.e.metrics.iobistLane(false)
		s.e.arts.laneMeasurement(s.res, lr)
		return err
	}

	if err := c.write(sorregs.IbLaneSel, uint32(lane)); err != nil {
		return fail(err)
	}
	if err := c.write(sorregs.IbControl, sorregs.IbStart); err != nil {
		return fail(err)
	}
	// Let the data traverse the loop.
	time.Sleep(s.e.opts.SettleDelay)
	if err := c.write(sorregs.IbControl, sorregs.IbStart|sorregs.IbVerify); err != nil {
		return fail(err)
	}
	if err := s.pollIndirect("iobist_verify", sorregs.IbStatus, sorregs.IbVerifyDone, sorregs.IbVerifyDone, false); err != nil {
		return fail(err)
	}
	st, err := s.ind.ReadIndirect(sorregs.IbErrStatus)
	if err != nil {
		return fail(err)
	}
	lr.ErrStatus = st & sorregs.IbErrStatusMask
	if lr.ErrStatus == sorregs.IbErrStatusPass {
		lr.Pass = true
		s.e.metrics.iobistLane(true)
		s.e.arts.laneMeasurement(s.res, lr)
		log.V(1).Infof("SOR%d IOBIST sublink %d lane %d: pass", s.sor, sl, lane)
		return nil
	}

	// Capture buffer dump for diagnosis.
	lr.Capture = make([]uint32, sorregs.IbCaptureWords)
	for i := range lr.Capture {
		if lr.Capture[i], err = s.ind.ReadIndirect(sorregs.IbCapture(i)); err != nil {
			return fail(err)
		}
	}
	log.Errorf("SOR%d IOBIST sublink %d lane %d: error status %#x, capture %#08x",
		s.sor, sl, lane, lr.ErrStatus, lr.Capture)
	s.res.Mismatches++
	s.e.metrics.mismatch()
	mErr := &MismatchError{
		Sor: s.sor, Variant: VariantIobist, Sublink: sl, Lane: lane,
		Expected: sorregs.IbErrStatusPass, Observed: uint64(lr.ErrStatus),
	}
	lr.Message = mErr.Error()
	s.e.metrics.iobistLane(false)
	s.e.arts.laneMeasurement(s.res, lr)
	if s.e.opts.IgnoreMismatch {
		log.Warningf("SOR%d: ignoring IOBIST mismatch on sublink %d lane %d", s.sor, sl, lane)
		return nil
	}
	return mErr
}
