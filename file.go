// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// Mount points of the device's file systems.
const (
	MountSD        = "e" // external SD card
	MountInternal  = "i" // internal storage
	MountBitstream = "b" // bitstream staging area
	MountFirmware  = "f" // firmware staging area
)

const fsChunkSize = 4 * 1024 * 1024

const (
	fsActRecv     = 1
	fsActSend     = 2
	fsActChecksum = 3
	fsActSize     = 4
	fsActList     = 5
	fsActFree     = 6
	fsActFinalise = 7
)

// FileInfo describes one file on a device mount point.
type FileInfo struct {
	Name     string
	Checksum uint32
	Size     uint64
}

func (m *Moku) fs(action uint8, data []byte) ([]byte, error) {
	var w wbuf
	w.u8(cmdFS)
	w.u64(uint64(len(data) + 1))
	w.u8(action)
	w.raw(data)

	rep, err := m.cmdTimeout(w.p, longTimeout)
	if err != nil {
		return nil, err
	}

	r := rbuf{p: rep}
	typ := r.u8()
	n := r.u64()
	if r.err != nil {
		return nil, r.err
	}
	if typ != cmdFS || int(n) != len(rep)-9 {
		return nil, xerrors.Errorf("moku: bad file reply (type=0x%02x, length=%d/%d)", typ, n, len(rep)-9)
	}
	act := r.u8()
	status := r.u8()
	if r.err != nil {
		return nil, r.err
	}
	if act != action || status != 0 {
		return nil, xerrors.Errorf("moku: file action %d failed (status=%d)", action, status)
	}
	return r.rest(), nil
}

// Checksum returns the CRC-32 of the named file on mp.
func (m *Moku) Checksum(mp, name string) (uint32, error) {
	var w wbuf
	w.str8(mp + ":" + name)
	rep, err := m.fs(fsActChecksum, w.p)
	if err != nil {
		return 0, err
	}
	r := rbuf{p: rep}
	sum := r.u32()
	return sum, r.err
}

// FileSize returns the size of the named file on mp.
func (m *Moku) FileSize(mp, name string) (uint64, error) {
	var w wbuf
	w.str8(mp + ":" + name)
	rep, err := m.fs(fsActSize, w.p)
	if err != nil {
		return 0, err
	}
	r := rbuf{p: rep}
	size := r.u64()
	return size, r.err
}

// ListFiles lists the files on mp. With sums, the device computes a
// CRC-32 for each file, which may be slow.
func (m *Moku) ListFiles(mp string, sums bool) ([]FileInfo, error) {
	var w wbuf
	w.raw([]byte(mp))
	if sums {
		w.u8(1)
	} else {
		w.u8(0)
	}
	rep, err := m.fs(fsActList, w.p)
	if err != nil {
		return nil, err
	}

	r := rbuf{p: rep}
	n := r.u16()
	files := make([]FileInfo, 0, n)
	for i := 0; i < int(n); i++ {
		var fi FileInfo
		fi.Checksum = r.u32()
		fi.Size = r.u64()
		fn := r.load(int(r.u8()))
		if r.err != nil {
			return nil, r.err
		}
		fi.Name = string(fn)
		files = append(files, fi)
	}
	return files, nil
}

// FreeSpace returns the total and free byte counts of mp.
func (m *Moku) FreeSpace(mp string) (total, free uint64, err error) {
	rep, err := m.fs(fsActFree, []byte(mp))
	if err != nil {
		return 0, 0, err
	}
	r := rbuf{p: rep}
	total = r.u64()
	free = r.u64()
	return total, free, r.err
}

// finalise publishes an uploaded file on the device, or deletes it
// when size is zero.
func (m *Moku) finalise(mp, name string, size uint64) error {
	var w wbuf
	w.str8(mp + ":" + name)
	w.u64(size)
	_, err := m.fs(fsActFinalise, w.p)
	return err
}

// DeleteFile removes the named file from mp.
func (m *Moku) DeleteFile(mp, name string) error {
	return m.finalise(mp, name, 0)
}

// SendFile uploads the local file at path to mp, in chunks, and
// finalises it. It returns the remote file name.
func (m *Moku) SendFile(mp, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", xerrors.Errorf("moku: could not open %q: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	buf := make([]byte, fsChunkSize)
	var off uint64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			var w wbuf
			w.str8(mp + ":" + name)
			w.u64(off)
			w.u64(uint64(n))
			w.raw(buf[:n])
			if _, err := m.fs(fsActSend, w.p); err != nil {
				return "", err
			}
			off += uint64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", xerrors.Errorf("moku: could not read %q: %w", path, err)
		}
	}

	if err := m.finalise(mp, name, off); err != nil {
		return "", err
	}
	return name, nil
}

// ReceiveFile downloads the named file from mp to w.
func (m *Moku) ReceiveFile(w io.Writer, mp, name string) error {
	size, err := m.FileSize(mp, name)
	if err != nil {
		return err
	}

	var off uint64
	for off < size {
		n := size - off
		if n > fsChunkSize {
			n = fsChunkSize
		}
		var pkt wbuf
		pkt.str8(mp + ":" + name)
		pkt.u64(off)
		pkt.u64(n)

		rep, err := m.fs(fsActRecv, pkt.p)
		if err != nil {
			return err
		}
		r := rbuf{p: rep}
		got := r.u64()
		data := r.rest()
		if r.err != nil {
			return r.err
		}
		if got != uint64(len(data)) {
			return xerrors.Errorf("moku: bad file chunk (declared=%d, received=%d)", got, len(data))
		}
		if _, err := w.Write(data); err != nil {
			return xerrors.Errorf("moku: could not write file data: %w", err)
		}
		off += got
	}
	return nil
}

// LoadBitstream uploads the bitstream at path and verifies the
// device-side CRC-32 against the local file.
func (m *Moku) LoadBitstream(path string) error {
	name, err := m.SendFile(MountBitstream, path)
	if err != nil {
		return err
	}

	sum, err := m.Checksum(MountBitstream, name)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("moku: could not read %q: %w", path, err)
	}
	if local := crc32.ChecksumIEEE(raw); sum != local {
		return xerrors.Errorf(
			"moku: bitstream upload failed checksum verification (device=0x%08x, local=0x%08x)",
			sum, local,
		)
	}
	return nil
}

// LoadFirmware uploads the firmware image at path and triggers the
// update. The device powers off when the update completes.
func (m *Moku) LoadFirmware(path string) error {
	if _, err := m.SendFile(MountFirmware, path); err != nil {
		return err
	}

	rep, err := m.cmdTimeout([]byte{cmdFWLoad, 0x01}, longTimeout)
	if err != nil {
		return err
	}
	r := rbuf{p: rep}
	typ := r.u8()
	status := r.u8()
	if r.err != nil {
		return r.err
	}
	if typ != cmdFWLoad || status != 0 {
		return xerrors.Errorf("moku: firmware update failed (status=%d)", status)
	}
	return nil
}
