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

	log "github.com/golang/glog"

	"github.com/google/sorloopback/regport"
	"github.com/google/sorloopback/sorregs"
)

// poll waits for a direct register. With bestEffort a timeout is logged and
// counted, and the session proceeds as if the value had matched.
func (s *session) poll(site string, off, want, mask uint32, bestEffort bool) error {
	err := s.e.port.PollUntil(s.base+off, want, mask, s.e.opts.PollTimeout)
	return s.pollResult(site, sorregs.Name(off), err, bestEffort)
}

// pollIndirect waits for an IOBIST indirect register.
func (s *session) pollIndirect(site string, addr, want, mask uint32, bestEffort bool) error {
	err := regport.Poll(s.ind, addr, want, mask, s.e.opts.PollTimeout, regport.DefaultPollInterval)
	return s.pollResult(site, fmt.Sprintf("indirect %#x", addr), err, bestEffort)
}

func (s *session) pollResult(site, reg string, err error, bestEffort bool) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, regport.ErrPollTimeout) {
		return fmt.Errorf("%s: %w", site, err)
	}
	s.res.PollTimeouts = append(s.res.PollTimeouts, site)
	s.e.metrics.pollTimeout(site)
	if bestEffort {
		log.Warningf("SOR%d %s: %s poll timed out; proceeding: %v", s.sor, site, reg, err)
		return nil
	}
	log.Errorf("SOR%d %s: %s poll timed out: %v", s.sor, site, reg, err)
	return fmt.Errorf("%s: %w", site, err)
}
