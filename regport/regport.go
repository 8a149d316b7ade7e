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

// Package regport is the single gateway to a 32-bit register space.
// The loopback engine only ever talks to a Port; the host decides what sits
// behind it (a simulator, a BAR mapping, a trace replayer).
// Space is the in-memory implementation. All of its accesses go through one
// mutex, because the backends plugged in as hooks are not thread-safe.
package regport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/golang/glog"
)

var (
	// ErrPollTimeout is returned by PollUntil when the value never matched.
	// Callers may downgrade it to a warning.
	ErrPollTimeout = errors.New("register poll timed out")
	// ErrUnsupported is returned for an address the register space does not
	// decode.
	ErrUnsupported = errors.New("register address not supported")
)

// DefaultPollInterval is the re-read interval of PollUntil.
const DefaultPollInterval = 10 * time.Microsecond

// Reader is the read half of a Port.
type Reader interface {
	Read(addr uint32) (uint32, error)
}

// Port is the register access provider consumed by the loopback engine.
type Port interface {
	Reader
	Write(addr, val uint32) error
	// PollUntil re-reads addr until (value & mask) == (want & mask) or the
	// timeout elapses, in which case the error wraps ErrPollTimeout.
	PollUntil(addr, want, mask uint32, timeout time.Duration) error
}

// Poll implements PollUntil on top of any Reader. The register is read at
// least once, even with a zero timeout.
func Poll(r Reader, addr, want, mask uint32, timeout, interval time.Duration) error {
	t := time.Now()
	var val uint32
	var err error
	for do := true; do; do = time.Since(t) < timeout {
		if val, err = r.Read(addr); err != nil {
			return err
		}
		if val&mask == want&mask {
			log.V(3).Infof("Poll: Pass addr=%#x val=%#x want=%#x mask=%#x", addr, val, want, mask)
			return nil
		}
		log.V(3).Infof("Poll: Read addr=%#x val=%#x want=%#x mask=%#x", addr, val, want, mask)
		time.Sleep(interval)
	}
	return fmt.Errorf("%w: addr=%#x val=%#x want=%#x mask=%#x after %s",
		ErrPollTimeout, addr, val, want, mask, timeout)
}

// Bank is the raw storage of a Space, handed to hooks while the Space lock is
// held. Hooks must use Bank, never the Space methods.
type Bank map[uint32]uint32

// Peek reads raw storage.
func (b Bank) Peek(addr uint32) uint32 { return b[addr] }

// Poke writes raw storage.
func (b Bank) Poke(addr, val uint32) { b[addr] = val }

// ReadHook computes the value returned for a read of addr.
type ReadHook func(b Bank, addr uint32) uint32

// WriteHook consumes a write of val to addr. It is responsible for storing
// whatever the register should hold afterwards.
type WriteHook func(b Bank, addr, val uint32)

// Stats counts accesses.
type Stats struct {
	Reads, Writes int
}

// Space is a map-backed register space with optional per-address behavior.
type Space struct {
	m          sync.Mutex
	bank       Bank
	readHooks  map[uint32]ReadHook
	writeHooks map[uint32]WriteHook
	decodes    func(addr uint32) bool
	interval   time.Duration
	stats      Stats
}

// NewSpace returns an empty Space. decodes reports whether an address is
// backed; nil decodes every address.
func NewSpace(decodes func(addr uint32) bool) *Space {
	return &Space{
		bank:       make(Bank),
		readHooks:  make(map[uint32]ReadHook),
		writeHooks: make(map[uint32]WriteHook),
		decodes:    decodes,
		interval:   DefaultPollInterval,
	}
}

// SetPollInterval overrides DefaultPollInterval.
func (s *Space) SetPollInterval(d time.Duration) {
	s.m.Lock()
	defer s.m.Unlock()
	s.interval = d
}

// OnRead installs a read hook for addr.
func (s *Space) OnRead(addr uint32, h ReadHook) {
	s.m.Lock()
	defer s.m.Unlock()
	s.readHooks[addr] = h
}

// OnWrite installs a write hook for addr.
func (s *Space) OnWrite(addr uint32, h WriteHook) {
	s.m.Lock()
	defer s.m.Unlock()
	s.writeHooks[addr] = h
}

func (s *Space) check(addr uint32) error {
	if s.decodes != nil && !s.decodes(addr) {
		return fmt.Errorf("%w: %#x", ErrUnsupported, addr)
	}
	return nil
}

// Read implements Port.
func (s *Space) Read(addr uint32) (uint32, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.check(addr); err != nil {
		return 0, err
	}
	s.stats.Reads++
	if h, ok := s.readHooks[addr]; ok {
		return h(s.bank, addr), nil
	}
	return s.bank[addr], nil
}

// Write implements Port.
func (s *Space) Write(addr, val uint32) error {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.check(addr); err != nil {
		return err
	}
	s.stats.Writes++
	if h, ok := s.writeHooks[addr]; ok {
		h(s.bank, addr, val)
		return nil
	}
	s.bank[addr] = val
	return nil
}

// PollUntil implements Port.
func (s *Space) PollUntil(addr, want, mask uint32, timeout time.Duration) error {
	s.m.Lock()
	interval := s.interval
	s.m.Unlock()
	return Poll(s, addr, want, mask, timeout, interval)
}

// Peek returns the stored value of addr, bypassing hooks and counters.
func (s *Space) Peek(addr uint32) uint32 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.bank[addr]
}

// Poke stores val at addr, bypassing hooks and counters.
func (s *Space) Poke(addr, val uint32) {
	s.m.Lock()
	defer s.m.Unlock()
	s.bank[addr] = val
}

// Snapshot copies the stored values.
func (s *Space) Snapshot() map[uint32]uint32 {
	s.m.Lock()
	defer s.m.Unlock()
	snap := make(map[uint32]uint32, len(s.bank))
	for k, v := range s.bank {
		snap[k] = v
	}
	return snap
}

// Stats returns the access counters.
func (s *Space) Stats() Stats {
	s.m.Lock()
	defer s.m.Unlock()
	return s.stats
}
