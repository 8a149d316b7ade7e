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

// Result pbtxt I/O. Results are kept as a structpb.Struct so the file is
// readable without generated protos.

import (
	"fmt"
	"os"
	"sort"

	"google.golang.org/protobuf/encoding/prototext"
	structpb "google.golang.org/protobuf/types/known/structpb"
)

func hex(v uint64) string { return fmt.Sprintf("%#x", v) }

// ResultsToStruct converts results, sorted by SOR, to a Struct with a
// "results" list.
func ResultsToStruct(results []*Result) (*structpb.Struct, error) {
	sorted := make([]*Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sor < sorted[j].Sor })

	list := make([]any, 0, len(sorted))
	for _, r := range sorted {
		pats := make([]any, 0, len(r.Patterns))
		for _, p := range r.Patterns {
			pats = append(pats, map[string]any{
				"link":     p.Link.String(),
				"index":    p.Index,
				"pattern":  hex(uint64(p.Pattern)),
				"value":    hex(p.Value),
				"expected": hex(p.Expected),
				"observed": hex(p.Observed),
				"attempts": p.Attempts,
				"pass":     p.Pass,
			})
		}
		lanes := make([]any, 0, len(r.Lanes))
		for _, l := range r.Lanes {
			capture := make([]any, 0, len(l.Capture))
			for _, w := range l.Capture {
				capture = append(capture, hex(uint64(w)))
			}
			lanes = append(lanes, map[string]any{
				"sublink":    l.Sublink,
				"lane":       l.Lane,
				"err_status": hex(uint64(l.ErrStatus)),
				"capture":    capture,
				"pass":       l.Pass,
				"message":    l.Message,
			})
		}
		timeouts := make([]any, 0, len(r.PollTimeouts))
		for _, t := range r.PollTimeouts {
			timeouts = append(timeouts, t)
		}
		list = append(list, map[string]any{
			"sor":            r.Sor,
			"protocol":       r.Protocol.String(),
			"variant":        r.Variant.String(),
			"pass":           r.Pass,
			"restore_cycles": r.RestoreCycles,
			"mismatches":     r.Mismatches,
			"duration":       r.Duration.String(),
			"message":        r.Message,
			"poll_timeouts":  timeouts,
			"patterns":       pats,
			"lanes":          lanes,
		})
	}
	return structpb.NewStruct(map[string]any{"results": list})
}

// WriteResultPbtxt writes results to a textproto.
func WriteResultPbtxt(outfn string, results []*Result) error {
	st, err := ResultsToStruct(results)
	if err != nil {
		return err
	}
	opt := prototext.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}
	data, err := opt.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(outfn, data, 0600)
}

// ReadResult reads a result textproto written by WriteResultPbtxt.
func ReadResult(resfn string) (*structpb.Struct, error) {
	data, err := os.ReadFile(resfn)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	opt := prototext.UnmarshalOptions{DiscardUnknown: true}
	if err := opt.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}
