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

// Converts a result pbtxt to a csv, one row per compared pattern or IOBIST
// lane.

import (
	"encoding/csv"
	"fmt"
	"os"

	structpb "google.golang.org/protobuf/types/known/structpb"

	"github.com/google/sorloopback/sorregs"
)

const (
	eSor = iota
	eProtocol
	eVariant
	eKind
	eLink
	eIndex
	ePattern
	eExpected
	eObserved
	eAttempts
	ePass
	eSize
)

var csvHeader = [eSize]string{
	eSor:      "SOR",
	eProtocol: "Protocol",
	eVariant:  "Variant",
	eKind:     "Kind",
	eLink:     "Link",
	eIndex:    "Index",
	ePattern:  "Pattern",
	eExpected: "Expected",
	eObserved: "Observed",
	eAttempts: "Attempts",
	ePass:     "Pass",
}

func field(s *structpb.Struct, k string) *structpb.Value {
	return s.GetFields()[k]
}

func str(s *structpb.Struct, k string) string {
	v := field(s, k)
	switch v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return v.GetStringValue()
	case *structpb.Value_NumberValue:
		return fmt.Sprintf("%d", int64(v.GetNumberValue()))
	case *structpb.Value_BoolValue:
		return fmt.Sprintf("%v", v.GetBoolValue())
	}
	return ""
}

func structs(s *structpb.Struct, k string) []*structpb.Struct {
	var out []*structpb.Struct
	for _, v := range field(s, k).GetListValue().GetValues() {
		if sv := v.GetStructValue(); sv != nil {
			out = append(out, sv)
		}
	}
	return out
}

// ResultRows flattens a result Struct into csv records, header first.
func ResultRows(rs *structpb.Struct) [][]string {
	rows := [][]string{csvHeader[:]}
	for _, r := range structs(rs, "results") {
		base := make([]string, eSize)
		base[eSor] = str(r, "sor")
		base[eProtocol] = str(r, "protocol")
		base[eVariant] = str(r, "variant")
		for _, p := range structs(r, "patterns") {
			row := append([]string(nil), base...)
			row[eKind] = "pattern"
			row[eLink] = str(p, "link")
			row[eIndex] = str(p, "index")
			row[ePattern] = str(p, "pattern")
			row[eExpected] = str(p, "expected")
			row[eObserved] = str(p, "observed")
			row[eAttempts] = str(p, "attempts")
			row[ePass] = str(p, "pass")
			rows = append(rows, row)
		}
		for _, l := range structs(r, "lanes") {
			row := append([]string(nil), base...)
			row[eKind] = "iobist"
			row[eLink] = str(l, "sublink")
			row[eIndex] = str(l, "lane")
			row[eExpected] = hex(sorregs.IbErrStatusPass)
			row[eObserved] = str(l, "err_status")
			row[ePass] = str(l, "pass")
			rows = append(rows, row)
		}
	}
	return rows
}

// ConvertToCsv writes rs to csvfn.
func ConvertToCsv(csvfn string, rs *structpb.Struct) error {
	f, err := os.Create(csvfn)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(ResultRows(rs)); err != nil {
		return err
	}
	return f.Close()
}
