// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import "golang.org/x/xerrors"

// Deploy loads the instrument with the given id into the device's
// FPGA fabric and returns the deployed bitstream version. Deploys do
// not return until the device has finished, which can take several
// seconds.
func (m *Moku) Deploy(instrID uint8) (uint16, error) {
	rep, err := m.cmdTimeout([]byte{cmdDeploy, instrID, 0x00}, longTimeout)
	if err != nil {
		return 0, err
	}

	r := rbuf{p: rep}
	typ := r.u8()
	status := r.u8()
	r.u8() // reserved
	bsv := r.u16()
	if r.err != nil {
		return 0, r.err
	}
	if typ != cmdDeploy || status != 0 {
		return 0, xerrors.Errorf("moku: could not deploy instrument %d (status=%d)", instrID, status)
	}

	if err := m.announce(); err != nil {
		return 0, xerrors.Errorf("moku: could not announce host: %w", err)
	}
	return bsv, nil
}
