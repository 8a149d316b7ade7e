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
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/sorloopback/lanemap"
)

func sampleResults() []*Result {
	return []*Result{
		{
			Sor: 2, Protocol: ProtocolTmdsA, Variant: VariantIobist, RestoreCycles: 1,
			Lanes: []*LaneResult{
				{Sublink: 0, Lane: 0, ErrStatus: 0x20, Pass: true},
				{Sublink: 0, Lane: 1, ErrStatus: 0x21, Capture: []uint32{1, 2, 3, 4, 5}, Message: "lane 1 failed"},
			},
			Mismatches: 1,
		},
		{
			Sor: 0, Protocol: ProtocolTmdsA, Variant: VariantLegacy, Pass: true, RestoreCycles: 1,
			Patterns: []*PatternResult{{
				Link: lanemap.LinkA, Index: 0, Pattern: 0x0a8771b803, Value: 0x0a8771b803,
				Expected: 0x71f5c4d38f86, Observed: 0x71f5c4d38f86, Attempts: 1, Pass: true,
			}},
			PollTimeouts: []string{"readback"},
		},
	}
}

func TestResultPbtxtRoundTrip(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "result.pbtxt")
	require.NoError(t, WriteResultPbtxt(fn, sampleResults()))
	rs, err := ReadResult(fn)
	require.NoError(t, err)

	results := structs(rs, "results")
	require.Len(t, results, 2)
	assert.Equal(t, "0", str(results[0], "sor"), "sorted by SOR")
	assert.Equal(t, "legacy", str(results[0], "variant"))
	assert.Equal(t, "true", str(results[0], "pass"))
	p := structs(results[0], "patterns")[0]
	assert.Equal(t, "0x71f5c4d38f86", str(p, "observed"))
	assert.Equal(t, "A", str(p, "link"))
	lanes := structs(results[1], "lanes")
	require.Len(t, lanes, 2)
	assert.Len(t, field(lanes[1], "capture").GetListValue().GetValues(), 5)
}

func TestResultRows(t *testing.T) {
	rs, err := ResultsToStruct(sampleResults())
	require.NoError(t, err)
	rows := ResultRows(rs)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader[:], rows[0])
	assert.Equal(t, []string{
		"0", "TMDS_A", "legacy", "pattern", "A", "0", "0xa8771b803",
		"0x71f5c4d38f86", "0x71f5c4d38f86", "1", "true",
	}, rows[1])
	assert.Equal(t, "iobist", rows[3][eKind])
	assert.Equal(t, "0x20", rows[3][eExpected])
	assert.Equal(t, "0x21", rows[3][eObserved])
	assert.Equal(t, "false", rows[3][ePass])
}

func TestConvertToCsv(t *testing.T) {
	dir := t.TempDir()
	resfn := filepath.Join(dir, "result.pbtxt")
	csvfn := filepath.Join(dir, "result.csv")
	require.NoError(t, WriteResultPbtxt(resfn, sampleResults()))
	rs, err := ReadResult(resfn)
	require.NoError(t, err)
	require.NoError(t, ConvertToCsv(csvfn, rs))

	f, err := os.Open(csvfn)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, ResultRows(rs), recs)
}

func TestTallyResults(t *testing.T) {
	rs := sampleResults()
	rs = append(rs, nil, &Result{Sor: 0, Protocol: ProtocolTmdsB, Pass: true,
		Patterns: []*PatternResult{{Link: lanemap.LinkB, Pass: true}}})
	tr := TallyResults(rs)
	assert.False(t, tr.Pass)
	assert.Equal(t, 4, tr.NumChecked)
	assert.Equal(t, 3, tr.NumPassed)
	require.Len(t, tr.SorResults, 2)
	assert.Equal(t, 0, tr.SorResults[0].Sor)
	assert.Equal(t, 2, tr.SorResults[0].NumRuns)
	assert.Equal(t, 1, tr.SorResults[0].PollTimeouts)
	assert.False(t, strings.Contains(tr.SorResults[0].Message, "(Failed)"))
	assert.Contains(t, tr.SorResults[1].Message, "(Failed)")
}
