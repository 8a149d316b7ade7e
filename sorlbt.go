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

// SOR Loopback Test main()
// This file handles the CLI, and the test spec/result file I/O.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/google/sorloopback/lanemap"
	"github.com/google/sorloopback/sorloopback"
	"github.com/google/sorloopback/sorsim"
)

var (
	// git_hash := $(git rev-parse --short HEAD || echo 'development')
	// go -ldflags "-X main.version=$git_hash -X main.buildTime=$current_time" sorlbt.go
	// The binary builder is expected to overwrite these.
	version   = "2024-06-03"
	buildTime = "unknown"
)

// simUnit returns the power-on state of every simulated SOR.
func simUnit(chip string, corrupt int) (sorsim.Unit, error) {
	var u sorsim.Unit
	switch strings.ToLower(chip) {
	case "legacy":
		u = sorsim.Legacy()
	case "uphy":
		u = sorsim.Uphy()
	case "iobist":
		u = sorsim.Iobist()
	default:
		return u, fmt.Errorf("unknown chip: %q; expecting legacy, uphy, or iobist", chip)
	}
	u.Faults.CorruptCrc = [lanemap.NumLinks]int{corrupt, corrupt}
	return u, nil
}

// singleSpec builds a one-unit spec from the command line.
func singleSpec(sor int, protocol, variant, lanePair string, primary, secondary bool) *sorloopback.Spec {
	return &sorloopback.Spec{Units: []sorloopback.SpecUnit{{
		Sor:           sor,
		Protocol:      strings.ToUpper(protocol),
		Variant:       strings.ToLower(variant),
		LanePair:      lanePair,
		LvdsPrimary:   primary,
		LvdsSecondary: secondary,
	}}}
}

func main() {
	var (
		getVer    = flag.Bool("version", false, "Return the version number.")
		specfn    = flag.String("spec", "", "The test spec .yaml or .json file.")
		sor       = flag.Int("sor", -1, "Tests this SOR only, instead of -spec.")
		protocol  = flag.String("protocol", "TMDS_A", "With -sor: TMDS_A, TMDS_B, DUAL_TMDS or LVDS.")
		variant   = flag.String("variant", "auto", "With -sor: auto, legacy, uphy or iobist.")
		lanePair  = flag.String("lane_pair", "lanes01", "With -sor: the UPHY lane pairing.")
		primary   = flag.Bool("lvds_primary", true, "With -sor -protocol LVDS: tests the primary link.")
		secondary = flag.Bool("lvds_secondary", false, "With -sor -protocol LVDS: tests the secondary link.")
		chip      = flag.String("chip", "legacy", "The simulated chip family: legacy, uphy or iobist.")
		corrupt   = flag.Int("sim_crc_corrupt", 0, "Corrupts this many CRC reads per link; -1 corrupts all.")
		result    = flag.String("result", "result.pbtxt", "The result pbtxt file name.")
		csv       = flag.String("csv", "", "Dumps a csv file for plotting.")
		pb2csv    = flag.Bool("result2csv", false, "Converts the [result] to a [csv] file.")
		ocpPipe   = flag.String("ocp_pipe", "/dev/null", "Named pipe or file to stream the OCP Artifacts.")
		metrics   = flag.String("metrics", "", "Writes the counters to this Prometheus textfile.")
		optFlags  = newOptionFlags(flag.CommandLine)
	)
	flag.Parse()

	if *getVer {
		fmt.Printf("Version:\t%s\n", version)
		fmt.Printf("BuildTime:\t%s\n", buildTime)
		os.Exit(0)
	}

	if *pb2csv {
		if *csv == "" || *result == "" {
			log.Exit("Error: With -result2csv, both -result and -csv must be specified.")
		}
		rs, err := sorloopback.ReadResult(*result)
		if err != nil {
			log.Exit(err)
		}
		if err := sorloopback.ConvertToCsv(*csv, rs); err != nil {
			log.Exit(err)
		}
		os.Exit(0)
	}

	// Either the test spec or -sor is required.
	var (
		spec *sorloopback.Spec
		err  error
		fn   string
	)
	switch {
	case *specfn != "":
		fn = *specfn
		if spec, err = sorloopback.ReadSpec(fn); err != nil {
			log.Exit(err)
		}
	case *sor >= 0:
		fn = fmt.Sprintf("sor%d.yaml", *sor)
		spec = singleSpec(*sor, *protocol, *variant, *lanePair, *primary, *secondary)
	default:
		log.Exit("Error: Either -spec or -sor must be specified.")
	}
	if err := optFlags.applySpec(flag.CommandLine, spec); err != nil {
		log.Exit(err)
	}
	units, err := spec.EngineUnits()
	if err != nil {
		log.Exit(err)
	}

	// Automatically dump the test spec to a .dump.yaml.
	fn = strings.TrimSuffix(fn, filepath.Ext(fn)) + ".dump.yaml"
	if err := sorloopback.WriteSpec(fn, spec); err != nil {
		log.Exit(err)
	}

	u, err := simUnit(*chip, *corrupt)
	if err != nil {
		log.Exit(err)
	}
	sims := make(map[int]sorsim.Unit)
	for _, un := range units {
		sims[un.Sor] = u
	}
	dev := sorsim.New(sims)

	e := sorloopback.NewEngine(dev, spec.EngineOptions())
	m := sorloopback.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		log.Exit(err)
	}
	e.SetMetrics(m)

	pipe, err := os.OpenFile(*ocpPipe, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Exit(err)
	}
	e.SetArtifacts(sorloopback.NewArtifactWriter(pipe, "sorlbt", version, strings.Join(os.Args, " ")))

	// Runs the loopback test.
	t := time.Now()
	log.Infoln("Starting SOR loopback: t = ", t.String())
	results, runErr := e.RunSpec(units)
	log.Infoln("Finished SOR loopback: duration = ", time.Since(t).String())
	// Closed here since log.Exit skips deferred calls.
	if err := pipe.Close(); err != nil {
		log.Error(err)
	}

	if err := sorloopback.WriteResultPbtxt(*result, results); err != nil {
		log.Exit(err)
	}
	if *csv != "" {
		rs, err := sorloopback.ResultsToStruct(results)
		if err != nil {
			log.Exit(err)
		}
		if err := sorloopback.ConvertToCsv(*csv, rs); err != nil {
			log.Exit(err)
		}
	}
	if *metrics != "" {
		if err := prometheus.WriteToTextfile(*metrics, reg); err != nil {
			log.Error(err)
		}
	}

	tr := sorloopback.TallyResults(results)
	for _, sr := range tr.SorResults {
		log.Infoln(sr.Message)
	}
	log.Infof("%d of %d checks passed.", tr.NumPassed, tr.NumChecked)
	if runErr != nil {
		log.Exit(runErr)
	}
	if !tr.Pass {
		log.Exit("SOR loopback failed.")
	}
}
