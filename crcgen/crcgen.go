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

// This is a standalone expected-CRC table generator.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	log "github.com/golang/glog"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/sorregs"
)

var (
	version   = "2024-06-03"
	buildTime = "unknown"

	getVer   = flag.Bool("version", false, "Return the version number.")
	pattern  = flag.String("pattern", "", "A 40-bit pattern. Default: the whole catalog.")
	xbarCtl  = flag.String("xbar_ctl", "", "Raw XbarControl value. Default: identity.")
	xbarA    = flag.String("xbar_a", "", "Raw crossbar register of link A.")
	xbarB    = flag.String("xbar_b", "", "Raw crossbar register of link B.")
	uphy     = flag.Bool("uphy", false, "Prints the UPHY table instead of the legacy one.")
	lanePair = flag.String("lane_pair", "lanes01", "The UPHY lane pairing: lanes01 or lanes23.")
)

func parseReg(s string) uint32 {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		log.Exit(s, " is not a valid register value.")
	}
	return uint32(v)
}

func crossbar() lanemap.CrossbarConfig {
	if *xbarCtl == "" && *xbarA == "" && *xbarB == "" {
		return lanemap.Identity()
	}
	ctl, links := sorregs.EncodeCrossbar(lanemap.Identity())
	if *xbarCtl != "" {
		ctl = parseReg(*xbarCtl)
	}
	if *xbarA != "" {
		links[lanemap.LinkA] = parseReg(*xbarA)
	}
	if *xbarB != "" {
		links[lanemap.LinkB] = parseReg(*xbarB)
	}
	return sorregs.DecodeCrossbar(ctl, links)
}

func patterns() []lanemap.Pattern {
	if *pattern == "" {
		return lanemap.Catalog()
	}
	v, err := strconv.ParseUint(*pattern, 0, 64)
	if err != nil || v&^lanemap.PatternMask != 0 {
		log.Exit(*pattern, " is not a valid 40-bit pattern.")
	}
	return []lanemap.Pattern{lanemap.Pattern(v)}
}

func main() {
	flag.Parse()

	if *getVer {
		fmt.Printf("Version:\t%s\n", version)
		fmt.Printf("BuildTime:\t%s\n", buildTime)
		os.Exit(0)
	}

	pats := patterns()
	if *uphy {
		lp, err := lanemap.ParseLanePair(*lanePair)
		if err != nil {
			log.Exit(err)
		}
		fmt.Printf("%-14s %-8s %-10s\n", "Pattern", "Value", "CRC")
		for _, enc := range lanemap.EncodeUphyAll(lp, pats) {
			fmt.Printf("%-14s %#07x %#010x\n", enc.Pattern, enc.Value, enc.Crc)
		}
		return
	}

	cfg := crossbar()
	log.V(1).Infof("crossbar: %+v", cfg)
	fmt.Printf("%-14s %-14s %-16s %-14s %-16s\n", "Pattern", "Value A", "CRC A", "Value B", "CRC B")
	for _, enc := range lanemap.EncodeLegacyAll(cfg, pats) {
		fmt.Printf("%-14s %#012x %#014x %#012x %#014x\n", enc.Pattern,
			enc.Value[lanemap.LinkA], enc.Crc[lanemap.LinkA], enc.Value[lanemap.LinkB], enc.Crc[lanemap.LinkB])
	}
}
