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
	"fmt"

	"github.com/google/sorloopback/lanemap"
)

var (
	// ErrConfiguration is a request the engine refuses before touching
	// hardware: no link selected, unsupported protocol/variant pair, bad knob.
	ErrConfiguration = errors.New("loopback configuration error")
	// ErrCrcMismatch is a persistent difference between the hardware CRC and
	// the expected one, or an IOBIST lane that did not report pass.
	ErrCrcMismatch = errors.New("loopback CRC mismatch")
	// ErrIndirectProtocol is an IOBIST indirect access to an unsupported
	// address, or one the hardware flagged.
	ErrIndirectProtocol = errors.New("IOBIST indirect protocol error")
)

// MismatchError describes one mismatch. It matches ErrCrcMismatch with
// errors.Is.
type MismatchError struct {
	Sor      int
	Variant  Variant
	Link     lanemap.Link
	Pattern  lanemap.Pattern
	Expected uint64
	Observed uint64
	Attempts int
	// IOBIST lanes fill these instead of Link/Pattern.
	Sublink, Lane int
}

func (e *MismatchError) Error() string {
	if e.Variant == VariantIobist {
		return fmt.Sprintf("%v: SOR%d IOBIST sublink %d lane %d: error status %#x, want %#x",
			ErrCrcMismatch, e.Sor, e.Sublink, e.Lane, e.Observed, e.Expected)
	}
	return fmt.Sprintf("%v: SOR%d %s link %s pattern %s: crc %#x, want %#x after %d attempts",
		ErrCrcMismatch, e.Sor, e.Variant, e.Link, e.Pattern, e.Observed, e.Expected, e.Attempts)
}

// Unwrap returns ErrCrcMismatch.
func (e *MismatchError) Unwrap() error { return ErrCrcMismatch }
