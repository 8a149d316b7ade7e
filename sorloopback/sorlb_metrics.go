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

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sorloopback"

// Metrics are the engine counters. A nil *Metrics counts nothing.
type Metrics struct {
	Sessions      *prometheus.CounterVec // by variant, result
	CrcAttempts   prometheus.Counter
	CrcMismatches prometheus.Counter
	PollTimeouts  *prometheus.CounterVec // by call site
	IobistLanes   *prometheus.CounterVec // by result
	Restores      prometheus.Counter
}

// NewMetrics creates unregistered counters.
func NewMetrics() *Metrics {
	return &Metrics{
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "RunLoopback calls by variant and result.",
		}, []string{"variant", "result"}),
		CrcAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "crc_attempts_total",
			Help:      "CRC read-and-compare attempts.",
		}),
		CrcMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "crc_mismatches_total",
			Help:      "Patterns or IOBIST lanes that failed after all retries.",
		}),
		PollTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "poll_timeouts_total",
			Help:      "Register poll timeouts by call site.",
		}, []string{"site"}),
		IobistLanes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "iobist_lanes_total",
			Help:      "IOBIST lanes by result.",
		}, []string{"result"}),
		Restores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "restore_cycles_total",
			Help:      "Register restorations.",
		}),
	}
}

// Register registers every counter on reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Sessions, m.CrcAttempts, m.CrcMismatches, m.PollTimeouts, m.IobistLanes, m.Restores,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func resultLabel(pass bool, err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "config_error"
	case errors.Is(err, ErrIndirectProtocol):
		return "protocol_error"
	case errors.Is(err, ErrCrcMismatch), err == nil && !pass:
		return "mismatch"
	case err != nil:
		return "error"
	}
	return "pass"
}

func (m *Metrics) session(res *Result, err error) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(res.Variant.String(), resultLabel(res.Pass, err)).Inc()
}

func (m *Metrics) attempt() {
	if m != nil {
		m.CrcAttempts.Inc()
	}
}

func (m *Metrics) mismatch() {
	if m != nil {
		m.CrcMismatches.Inc()
	}
}

func (m *Metrics) pollTimeout(site string) {
	if m != nil {
		m.PollTimeouts.WithLabelValues(site).Inc()
	}
}

func (m *Metrics) iobistLane(pass bool) {
	if m == nil {
		return
	}
	if pass {
		m.IobistLanes.WithLabelValues("pass").Inc()
	} else {
		m.IobistLanes.WithLabelValues("fail").Inc()
	}
}

func (m *Metrics) restored() {
	if m != nil {
		m.Restores.Inc()
	}
}
