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

package lanemap

// Legacy (TMDS/LVDS) crossbar encoding.

import (
	"fmt"
)

const (
	// NumLinks is the number of physical links behind one serializer.
	NumLinks = 2
	// NumChannels is the number of logical channels per link.
	NumChannels = 5
	// NumLanes is the number of physical lanes a pattern drives.
	NumLanes = 4
)

// A Link names one of the two physical links.
type Link int

// Link enum
const (
	LinkA Link = iota // primary
	LinkB             // secondary
)

func (l Link) String() string {
	switch l {
	case LinkA:
		return "A"
	case LinkB:
		return "B"
	}
	return fmt.Sprintf("Link(%d)", int(l))
}

// Channel is the crossbar entry of one logical channel.
type Channel struct {
	Lane   uint8 // physical lane feeding the channel
	Invert bool  // polarity inversion
}

// LinkCrossbar is the crossbar of one link.
type LinkCrossbar struct {
	Channels [NumChannels]Channel
	// Lane3Alias is set on chips where the fourth physical lane is routed
	// through the fifth logical channel.
	Lane3Alias bool
}

// CrossbarConfig is the crossbar state read from hardware at session start.
type CrossbarConfig struct {
	Links  [NumLinks]LinkCrossbar
	Swap   bool // link A and link B are exchanged
	Bypass bool // crossbar forced to identity
}

// Identity returns the straight-through crossbar.
func Identity() CrossbarConfig {
	var cfg CrossbarConfig
	for l := range cfg.Links {
		for ch := range cfg.Links[l].Channels {
			cfg.Links[l].Channels[ch] = Channel{Lane: uint8(ch)}
		}
	}
	return cfg
}

// effective applies the bypass override.
func (cfg CrossbarConfig) effective() CrossbarConfig {
	if !cfg.Bypass {
		return cfg
	}
	eff := Identity()
	eff.Bypass = true
	eff.Swap = cfg.Swap
	for l := range eff.Links {
		eff.Links[l].Lane3Alias = cfg.Links[l].Lane3Alias
	}
	return eff
}

// Encoded holds the expected post-crossbar value and CRC of one pattern on
// both links.
type Encoded struct {
	Pattern Pattern
	Value   [NumLinks]uint64
	Crc     [NumLinks]uint64
}

// encodeLink packs the five channel groups of one link.
func encodeLink(lx LinkCrossbar, p Pattern) uint64 {
	var grp [NumChannels]uint64
	for ch, c := range lx.Channels {
		g := p.Group(int(c.Lane))
		if c.Invert {
			g ^= groupMask
		}
		grp[ch] = uint64(g)
	}
	top := grp[3]
	if lx.Lane3Alias {
		top = grp[4]
	}
	return grp[0] | grp[1]<<groupBits | grp[2]<<(2*groupBits) | top<<(3*groupBits)
}

// EncodeLegacy returns the values the capture logic of each link sees when
// pattern p is driven through crossbar cfg, and their CRCs.
func EncodeLegacy(cfg CrossbarConfig, p Pattern) Encoded {
	cfg = cfg.effective()
	enc := Encoded{Pattern: p}
	for l := range cfg.Links {
		enc.Value[l] = encodeLink(cfg.Links[l], p)
	}
	if cfg.Swap {
		enc.Value[LinkA], enc.Value[LinkB] = enc.Value[LinkB], enc.Value[LinkA]
	}
	for l := range enc.Value {
		enc.Crc[l] = Crc48(enc.Value[l])
	}
	return enc
}

// EncodeLegacyAll encodes every pattern in pats.
func EncodeLegacyAll(cfg CrossbarConfig, pats []Pattern) []Encoded {
	encs := make([]Encoded, 0, len(pats))
	for _, p := range pats {
		encs = append(encs, EncodeLegacy(cfg, p))
	}
	return encs
}
