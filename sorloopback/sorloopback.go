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

// Package sorloopback verifies a display output serializer (SOR) in internal
// digital loopback. Fixed patterns are pushed through the lane crossbar and
// the CRCs captured by the hardware are compared against the ones computed
// by lanemap. Chips with the IOBIST engine run a per-lane PRBS self-test
// instead.
package sorloopback

// This file includes the main exported functions:
// NewEngine() binds the engine to a register port.
// RunLoopback() tests one serializer unit.
// RunSpec() tests every unit listed in a Spec, in parallel across units.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/regport"
	"github.com/google/sorloopback/sorregs"
)

// Protocol is the output protocol the serializer is tested in.
type Protocol int

// Protocols.
const (
	ProtocolTmdsA Protocol = iota
	ProtocolTmdsB
	ProtocolDualTmds
	ProtocolLvds
)

var protocolNames = [...]string{"TMDS_A", "TMDS_B", "DUAL_TMDS", "LVDS"}

func (p Protocol) String() string {
	if p < 0 || int(p) >= len(protocolNames) {
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
	return protocolNames[p]
}

// ParseProtocol accepts the String form, case-insensitive.
func ParseProtocol(s string) (Protocol, error) {
	for i, n := range protocolNames {
		if strings.EqualFold(s, n) {
			return Protocol(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown protocol %q", ErrConfiguration, s)
}

// Variant is the hardware family.
type Variant int

// Variants. VariantAuto picks one from the capability register.
const (
	VariantAuto Variant = iota
	VariantLegacy
	VariantUphy
	VariantIobist
)

var variantNames = [...]string{"auto", "legacy", "uphy", "iobist"}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// ParseVariant accepts the String form, case-insensitive. "" is auto.
func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return VariantAuto, nil
	}
	for i, n := range variantNames {
		if strings.EqualFold(s, n) {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrConfiguration, s)
}

// LinkSelection picks the LVDS sub-links under test. Other protocols imply
// their links.
type LinkSelection struct {
	Primary   bool
	Secondary bool
}

// IobistParams are the self-test knobs.
type IobistParams struct {
	// LoopCountExp is log2 of the PRBS loop count. 0 selects 16; other values
	// are clamped to [8, 31].
	LoopCountExp uint32
	CaptureStart uint32
	StopOnError  bool
	// Frl selects the FRL data mux and PRBS15 instead of TMDS and PRBS7.
	Frl bool
}

// Hints steer variant selection and carry per-variant parameters.
type Hints struct {
	Variant  Variant
	LanePair lanemap.LanePair // UPHY only
	Iobist   IobistParams
}

// Options are the per-engine test knobs.
type Options struct {
	// Retries is the number of extra CRC read-and-compare attempts.
	Retries int
	// SettleDelay separates a pattern write (or IOBIST start) from the read.
	SettleDelay time.Duration
	// WaitForReadback polls the readback registers for the encoded pattern.
	WaitForReadback bool
	// IgnoreMismatch logs CRC mismatches and keeps going.
	IgnoreMismatch bool
	// PatternIndex forces one catalog entry; -1 runs all of them.
	PatternIndex int
	// PollTimeout bounds every poll of a session.
	PollTimeout time.Duration
	// DumpRegisters logs the unit's registers on a mismatch.
	DumpRegisters bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Retries:         3,
		SettleDelay:     100 * time.Microsecond,
		WaitForReadback: true,
		PatternIndex:    -1,
		PollTimeout:     10 * time.Millisecond,
	}
}

func (o Options) validate() error {
	if o.Retries < 0 {
		return fmt.Errorf("%w: retries = %d", ErrConfiguration, o.Retries)
	}
	if o.PatternIndex < -1 || o.PatternIndex >= lanemap.NumPatterns {
		return fmt.Errorf("%w: pattern index %d out of range [-1:%d]",
			ErrConfiguration, o.PatternIndex, lanemap.NumPatterns-1)
	}
	if o.SettleDelay < 0 || o.PollTimeout < 0 {
		return fmt.Errorf("%w: negative delay", ErrConfiguration)
	}
	return nil
}

// patterns returns the catalog entries selected by PatternIndex.
func (o Options) patterns() []indexedPattern {
	pats := lanemap.Catalog()
	out := make([]indexedPattern, 0, len(pats))
	for i, p := range pats {
		if o.PatternIndex == -1 || o.PatternIndex == i {
			out = append(out, indexedPattern{index: i, pattern: p})
		}
	}
	return out
}

type indexedPattern struct {
	index   int
	pattern lanemap.Pattern
}

// PatternResult is one compared pattern on one link.
type PatternResult struct {
	Link     lanemap.Link
	Index    int
	Pattern  lanemap.Pattern
	Value    uint64 // encoded pattern
	Expected uint64
	Observed uint64
	Attempts int
	Pass     bool
}

// LaneResult is one IOBIST lane.
type LaneResult struct {
	Sublink   int
	Lane      int
	ErrStatus uint32
	Capture   []uint32 // only on failure
	Pass      bool
	Message   string
}

// Result is the outcome of RunLoopback.
type Result struct {
	Sor      int
	Protocol Protocol
	Variant  Variant
	Pass     bool
	// RestoreCycles counts register restorations, one per session.
	RestoreCycles int
	Patterns      []*PatternResult
	Lanes         []*LaneResult
	// PollTimeouts lists the call sites of timed out polls, best-effort ones
	// included.
	PollTimeouts []string
	Mismatches   int
	Duration     time.Duration
	Message      string
}

// Engine runs loopback sessions against one register port.
type Engine struct {
	port    regport.Port
	opts    Options
	metrics *Metrics
	arts    *ArtifactWriter
}

// NewEngine returns an Engine driving port.
func NewEngine(port regport.Port, opts Options) *Engine {
	return &Engine{port: port, opts: opts}
}

// SetMetrics attaches counters. nil detaches.
func (e *Engine) SetMetrics(m *Metrics) { e.metrics = m }

// SetArtifacts attaches an artifact stream. nil detaches.
func (e *Engine) SetArtifacts(w *ArtifactWriter) { e.arts = w }

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// resolveLinks returns the link sets of the sessions to run, in order.
// DUAL_TMDS is two single-link sessions.
func resolveLinks(protocol Protocol, links LinkSelection) ([][lanemap.NumLinks]bool, error) {
	switch protocol {
	case ProtocolTmdsA:
		return [][lanemap.NumLinks]bool{{true, false}}, nil
	case ProtocolTmdsB:
		return [][lanemap.NumLinks]bool{{false, true}}, nil
	case ProtocolDualTmds:
		return [][lanemap.NumLinks]bool{{true, false}, {false, true}}, nil
	case ProtocolLvds:
		if !links.Primary && !links.Secondary {
			return nil, fmt.Errorf("%w: LVDS with no sub-link selected", ErrConfiguration)
		}
		return [][lanemap.NumLinks]bool{{links.Primary, links.Secondary}}, nil
	}
	return nil, fmt.Errorf("%w: unsupported protocol %s", ErrConfiguration, protocol)
}

// checkCombo rejects protocol/variant pairs the hardware cannot run.
func checkCombo(protocol Protocol, v Variant) error {
	if protocol == ProtocolLvds && (v == VariantUphy || v == VariantIobist) {
		return fmt.Errorf("%w: %s does not support %s", ErrConfiguration, v, protocol)
	}
	return nil
}

// selectVariant honors an explicit hint, else reads the capability register.
func (e *Engine) selectVariant(sor int, hint Variant) (Variant, error) {
	switch hint {
	case VariantLegacy, VariantUphy, VariantIobist:
		return hint, nil
	case VariantAuto:
	default:
		return hint, fmt.Errorf("%w: unknown variant %s", ErrConfiguration, hint)
	}
	caps, err := e.port.Read(sorregs.Base(sor) + sorregs.Capabilities)
	if err != nil {
		return hint, err
	}
	switch {
	case caps&sorregs.CapIobist != 0:
		return VariantIobist, nil
	case caps&sorregs.CapUphy != 0:
		return VariantUphy, nil
	}
	return VariantLegacy, nil
}

// RunLoopback tests one serializer unit. Configuration errors are reported
// before any register is written. Every session that got past validation
// restores the registers it touched, whatever the outcome.
func (e *Engine) RunLoopback(sor int, protocol Protocol, links LinkSelection, hints Hints) (res *Result, err error) {
	t := time.Now()
	res = &Result{Sor: sor, Protocol: protocol, Variant: hints.Variant}
	defer func() {
		res.Duration = time.Since(t)
		res.Pass = err == nil && res.Mismatches == 0
		if err != nil {
			res.Message = err.Error()
		}
		e.metrics.session(res, err)
		log.Infof("SOR%d %s %s: pass=%v mismatches=%d restores=%d duration=%s",
			sor, protocol, res.Variant, res.Pass, res.Mismatches, res.RestoreCycles, res.Duration)
	}()

	if !sorregs.ValidSor(sor) {
		return res, fmt.Errorf("%w: SOR%d does not exist", ErrConfiguration, sor)
	}
	if err := e.opts.validate(); err != nil {
		return res, err
	}
	if hints.LanePair != lanemap.Lanes01 && hints.LanePair != lanemap.Lanes23 {
		return res, fmt.Errorf("%w: lane pair %d", ErrConfiguration, int(hints.LanePair))
	}
	runs, err := resolveLinks(protocol, links)
	if err != nil {
		return res, err
	}
	if err := checkCombo(protocol, hints.Variant); err != nil {
		return res, err
	}
	kind, err := e.selectVariant(sor, hints.Variant)
	res.Variant = kind
	if err != nil {
		return res, err
	}
	if err := checkCombo(protocol, kind); err != nil {
		return res, err
	}

	e.arts.stepStart(res)
	defer func() { e.arts.stepEnd(res, err) }()

	if kind == VariantIobist {
		// One session covers every sub-link.
		var all [lanemap.NumLinks]bool
		for _, r := range runs {
			for l, on := range r {
				all[l] = all[l] || on
			}
		}
		return res, e.runSession(res, sor, all, kind, hints)
	}
	for _, active := range runs {
		if err := e.runSession(res, sor, active, kind, hints); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Unit is one entry of RunSpec. A non-nil Options replaces the engine
// options for this unit, retry and timeout budget included.
type Unit struct {
	Sor      int
	Protocol Protocol
	Links    LinkSelection
	Hints    Hints
	Options  *Options
}

// forUnit returns the engine to run u with.
func (e *Engine) forUnit(u Unit) *Engine {
	if u.Options == nil {
		return e
	}
	ue := *e
	ue.opts = *u.Options
	return &ue
}

// RunSpec runs every unit. Distinct units run in parallel; runs of the same
// unit are serialized. Results keep the order of units.
func (e *Engine) RunSpec(units []Unit) ([]*Result, error) {
	results := make([]*Result, len(units))
	bySor := make(map[int][]int)
	var order []int
	for i, u := range units {
		if _, ok := bySor[u.Sor]; !ok {
			order = append(order, u.Sor)
		}
		bySor[u.Sor] = append(bySor[u.Sor], i)
	}

	e.arts.runStart(units)
	var g errgroup.Group
	for _, sor := range order {
		idx := bySor[sor]
		g.Go(func() error {
			var errs []error
			for _, i := range idx {
				u := units[i]
				res, err := e.forUnit(u).RunLoopback(u.Sor, u.Protocol, u.Links, u.Hints)
				results[i] = res
				if err != nil {
					errs = append(errs, fmt.Errorf("SOR%d %s: %w", u.Sor, u.Protocol, err))
				}
			}
			return errors.Join(errs...)
		})
	}
	err := g.Wait()
	e.arts.runEnd(results)
	return results, err
}
