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

// Misc. result analysis functions.

import (
	"fmt"
	"sort"
)

// SorResult contains pass-fail info per serializer unit.
type SorResult struct {
	Sor          int
	NumRuns      int
	NumChecked   int // patterns x links, plus IOBIST lanes
	NumPassed    int
	PollTimeouts int
	Message      string
}

// TestResult contains pass-fail info at the top-level of a test run.
type TestResult struct {
	NumChecked int
	NumPassed  int
	SorResults []*SorResult
	Pass       bool
}

// TallyResults tallies pass-fail info per SOR.
func TallyResults(results []*Result) *TestResult {
	res := &TestResult{Pass: true}
	bySor := make(map[int]*SorResult)
	for _, r := range results {
		if r == nil {
			continue
		}
		sr, ok := bySor[r.Sor]
		if !ok {
			sr = &SorResult{Sor: r.Sor}
			bySor[r.Sor] = sr
			res.SorResults = append(res.SorResults, sr)
		}
		sr.NumRuns++
		sr.PollTimeouts += len(r.PollTimeouts)
		for _, p := range r.Patterns {
			sr.NumChecked++
			if p.Pass {
				sr.NumPassed++
			}
		}
		for _, l := range r.Lanes {
			sr.NumChecked++
			if l.Pass {
				sr.NumPassed++
			}
		}
		if !r.Pass {
			res.Pass = false
		}
	}
	sort.Slice(res.SorResults, func(i, j int) bool { return res.SorResults[i].Sor < res.SorResults[j].Sor })
	for _, sr := range res.SorResults {
		res.NumChecked += sr.NumChecked
		res.NumPassed += sr.NumPassed
		failed := ""
		if sr.NumPassed != sr.NumChecked {
			failed = "(Failed)"
		}
		sr.Message = fmt.Sprintf("SOR%d: %d runs, %d checks, %d passed, %d poll timeouts. %s",
			sr.Sor, sr.NumRuns, sr.NumChecked, sr.NumPassed, sr.PollTimeouts, failed)
	}
	return res
}
