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

// This file covers the IOBIST indirect command/data access.

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/google/sorloopback/regport"
	"github.com/google/sorloopback/sorregs"
)

// indirect drives IobistCmd/IobistData of one unit.
type indirect struct {
	port regport.Port
	base uint32
}

// cmdRsp issues one command word and returns it as rewritten by hardware.
func (x *indirect) cmdRsp(op, addr uint32) (*sorregs.Command, error) {
	if !sorregs.IobistAddressed(addr) {
		return nil, fmt.Errorf("%w: address %#x not supported", ErrIndirectProtocol, addr)
	}
	cmd := sorregs.Command{Op: op, Addr: addr}
	if err := x.port.Write(x.base+sorregs.IobistCmd, cmd.Encode()); err != nil {
		return nil, err
	}
	raw, err := x.port.Read(x.base + sorregs.IobistCmd)
	if err != nil {
		return nil, err
	}
	var rsp sorregs.Command
	rsp.Decode(raw)
	if rsp.Err {
		return &rsp, fmt.Errorf("%w: command %#08x flagged by hardware", ErrIndirectProtocol, cmd.Raw)
	}
	return &rsp, nil
}

// WriteIndirect writes data to an indirect address.
func (x *indirect) WriteIndirect(addr, data uint32) error {
	log.V(2).Infof("IOBIST@%#x: write [%#x] = %#x", x.base, addr, data)
	if !sorregs.IobistAddressed(addr) {
		return fmt.Errorf("%w: address %#x not supported", ErrIndirectProtocol, addr)
	}
	if err := x.port.Write(x.base+sorregs.IobistData, data); err != nil {
		return err
	}
	_, err := x.cmdRsp(sorregs.IndirectOpWrite, addr)
	return err
}

// ReadIndirect reads an indirect address.
func (x *indirect) ReadIndirect(addr uint32) (uint32, error) {
	if _, err := x.cmdRsp(sorregs.IndirectOpRead, addr); err != nil {
		return 0, err
	}
	v, err := x.port.Read(x.base + sorregs.IobistData)
	if err != nil {
		return 0, err
	}
	log.V(3).Infof("IOBIST@%#x: read [%#x] = %#x", x.base, addr, v)
	return v, nil
}

// Read lets regport.Poll poll an indirect register.
func (x *indirect) Read(addr uint32) (uint32, error) { return x.ReadIndirect(addr) }
