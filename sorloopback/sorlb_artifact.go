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

// OCP-style artifact stream: one JSON object per line, sequence numbered and
// timestamped, so a reader can tell if any artifact is lost.

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"
	"google.golang.org/protobuf/encoding/protojson"
	structpb "google.golang.org/protobuf/types/known/structpb"
	timestamppb "google.golang.org/protobuf/types/known/timestamppb"

	"github.com/google/sorloopback/sorregs"
)

// ArtifactWriter streams artifacts. It is safe for concurrent use. A nil
// *ArtifactWriter drops everything.
type ArtifactWriter struct {
	m       sync.Mutex
	w       io.Writer
	seqNum  atomic.Int32
	name    string
	version string
	cmdline string
}

// NewArtifactWriter streams to w.
func NewArtifactWriter(w io.Writer, name, version, cmdline string) *ArtifactWriter {
	return &ArtifactWriter{w: w, name: name, version: version, cmdline: cmdline}
}

func hwInfoID(sor int) string { return fmt.Sprintf("SOR=%d", sor) }

func stepID(res *Result) string {
	return fmt.Sprintf("%s;PROTOCOL=%s", hwInfoID(res.Sor), res.Protocol)
}

// output wraps body under kind and writes one line.
func (a *ArtifactWriter) output(kind string, body map[string]any) {
	if a == nil {
		return
	}
	// Sequence numbers follow write order.
	a.m.Lock()
	defer a.m.Unlock()
	env := map[string]any{
		"sequenceNumber": int(a.seqNum.Add(1)),
		"timestamp":      timestamppb.Now().AsTime().UTC().Format(time.RFC3339Nano),
		kind:             body,
	}
	st, err := structpb.NewStruct(env)
	if err != nil {
		log.Errorf("structpb.NewStruct(%v) failed: %v", env, err)
		return
	}
	opt := protojson.MarshalOptions{Multiline: false}
	data, err := opt.Marshal(st)
	if err != nil {
		log.Errorf("protojson.Marshal(%v) failed: %v", st, err)
		return
	}
	if _, err := a.w.Write(append(data, '\n')); err != nil {
		log.Errorf("artifact write failed: %v", err)
	}
}

func (a *ArtifactWriter) runStart(units []Unit) {
	if a == nil {
		return
	}
	a.output("schemaVersion", map[string]any{"major": 2, "minor": 0})
	hw := make([]any, 0, len(units))
	for _, u := range units {
		hw = append(hw, map[string]any{
			"hardwareInfoId": hwInfoID(u.Sor),
			"name":           fmt.Sprintf("SOR%d", u.Sor),
		})
	}
	a.output("testRunArtifact", map[string]any{
		"testRunStart": map[string]any{
			"name":        a.name,
			"version":     a.version,
			"commandLine": a.cmdline,
			"dutInfo":     map[string]any{"dutInfoId": "this_sor", "hardwareInfos": hw},
		},
	})
}

func (a *ArtifactWriter) runEnd(results []*Result) {
	verdict := "NOT_APPLICABLE"
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Pass && verdict != "FAIL" {
			verdict = "PASS"
		} else if !r.Pass {
			verdict = "FAIL"
		}
	}
	a.output("testRunArtifact", map[string]any{
		"testRunEnd": map[string]any{"status": "COMPLETE", "result": verdict},
	})
}

func (a *ArtifactWriter) stepStart(res *Result) {
	a.output("testStepArtifact", map[string]any{
		"testStepId":    stepID(res),
		"testStepStart": map[string]any{"name": fmt.Sprintf("SORLB@%s:%s", stepID(res), res.Variant)},
	})
}

func (a *ArtifactWriter) stepEnd(res *Result, err error) {
	if a == nil {
		return
	}
	diag := map[string]any{"hardwareInfoId": hwInfoID(res.Sor)}
	switch {
	case err == nil && res.Mismatches == 0:
		diag["type"] = "PASS"
		diag["verdict"] = "sor_loopback-pass"
		diag["message"] = fmt.Sprintf("%d patterns, %d lanes tested. All passed.", len(res.Patterns), len(res.Lanes))
	default:
		diag["type"] = "FAIL"
		diag["verdict"] = "sor_loopback-fail"
		msg := fmt.Sprintf("%d mismatches.", res.Mismatches)
		if err != nil {
			msg += " " + err.Error()
		}
		diag["message"] = msg
	}
	a.output("testStepArtifact", map[string]any{"testStepId": stepID(res), "diagnosis": diag})
	a.output("testStepArtifact", map[string]any{
		"testStepId":  stepID(res),
		"testStepEnd": map[string]any{"status": "COMPLETE"},
	})
}

func (a *ArtifactWriter) patternMeasurement(res *Result, pr *PatternResult) {
	a.output("testStepArtifact", map[string]any{
		"testStepId": stepID(res),
		"measurement": map[string]any{
			"name":           fmt.Sprintf("crc.link%s.pattern%d", pr.Link, pr.Index),
			"hardwareInfoId": hwInfoID(res.Sor),
			"value":          fmt.Sprintf("%#x", pr.Observed),
			"validators": []any{map[string]any{
				"type":  "EQUAL",
				"value": fmt.Sprintf("%#x", pr.Expected),
			}},
			"metadata": map[string]any{"attempts": pr.Attempts, "pass": pr.Pass},
		},
	})
}

func (a *ArtifactWriter) laneMeasurement(res *Result, lr *LaneResult) {
	a.output("testStepArtifact", map[string]any{
		"testStepId": stepID(res),
		"measurement": map[string]any{
			"name":           fmt.Sprintf("iobist.sublink%d.lane%d", lr.Sublink, lr.Lane),
			"hardwareInfoId": hwInfoID(res.Sor),
			"value":          fmt.Sprintf("%#x", lr.ErrStatus),
			"validators": []any{map[string]any{
				"type":  "EQUAL",
				"value": fmt.Sprintf("%#x", sorregs.IbErrStatusPass),
			}},
			"metadata": map[string]any{"pass": lr.Pass, "message": lr.Message},
		},
	})
}
