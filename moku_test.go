// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	"github.com/go-moku/moku/datalog"
)

// fakeDevice answers control-plane commands like a Moku:Lab would.
type fakeDevice struct {
	t     *testing.T
	sock  mangos.Socket
	regs  [NumRegs]uint32
	props map[string]string

	streamState uint8
	streamBytes uint64
}

func newFakeDevice(t *testing.T, ep string) *fakeDevice {
	t.Helper()
	sock, err := rep.NewSocket()
	if err != nil {
		t.Fatalf("could not create fake device socket: %+v", err)
	}
	if err := sock.Listen(ep); err != nil {
		t.Fatalf("could not listen on %q: %+v", ep, err)
	}
	dev := &fakeDevice{
		t:     t,
		sock:  sock,
		props: make(map[string]string),
	}
	go dev.run()
	t.Cleanup(func() { sock.Close() })
	return dev
}

func (dev *fakeDevice) run() {
	for {
		pkt, err := dev.sock.Recv()
		if err != nil {
			return
		}
		if err := dev.sock.Send(dev.handle(pkt)); err != nil {
			return
		}
	}
}

func (dev *fakeDevice) handle(pkt []byte) []byte {
	switch pkt[0] {
	case cmdRegBank:
		return dev.handleRegs(pkt)
	case cmdProps:
		return dev.handleProps(pkt)
	case cmdDeploy:
		return []byte{cmdDeploy, 0, 0, 0x2A, 0x00}
	case cmdStream:
		return dev.handleStream(pkt)
	}
	return []byte{pkt[0], 0xFF}
}

func (dev *fakeDevice) handleRegs(pkt []byte) []byte {
	n := int(pkt[2])
	body := pkt[3:]
	if len(body) == n { // read
		out := []byte{cmdRegBank, 0, uint8(n)}
		for _, addr := range body {
			out = append(out, addr)
			out = binary.LittleEndian.AppendUint32(out, dev.regs[addr])
		}
		return out
	}
	for i := 0; i < n; i++ { // write
		addr := body[i*5] - 0x80
		dev.regs[addr] = binary.LittleEndian.Uint32(body[i*5+1:])
	}
	return []byte{cmdRegBank, 0, 0}
}

func (dev *fakeDevice) handleProps(pkt []byte) []byte {
	seq := pkt[1]
	n := int(pkt[2])
	body := pkt[3:]

	out := []byte{cmdProps, seq, 0, 0}
	nr := 0
	emit := func(k, v string) {
		out = append(out, uint8(len(k)))
		out = append(out, k...)
		out = append(out, uint8(len(v)))
		out = append(out, v...)
		nr++
	}

	for i := 0; i < n; i++ {
		action := body[0]
		klen := int(body[1])
		key := string(body[2 : 2+klen])
		body = body[2+klen:]
		dlen := int(body[0])
		data := string(body[1 : 1+dlen])
		body = body[1+dlen:]

		switch action {
		case propRead:
			emit(key, dev.props[key])
		case propWrite:
			dev.props[key] = data
			emit(key, data)
		case propSection:
			for k, v := range dev.props {
				if len(k) > klen && k[:klen+1] == key+"." {
					emit(k, v)
				}
			}
		}
	}
	out[3] = uint8(nr)
	return out
}

func (dev *fakeDevice) handleStream(pkt []byte) []byte {
	switch pkt[2] {
	case streamOpPrep:
		dev.streamState = 2
		return []byte{cmdStream, 0, 0, 2}
	case streamOpStart:
		dev.streamState = 1
		return []byte{cmdStream, 0, 0, 1}
	case streamOpStop:
		dev.streamState = 0
		out := []byte{cmdStream, 0, 0, 0}
		return binary.LittleEndian.AppendUint64(out, dev.streamBytes)
	case streamOpStatus:
		out := []byte{cmdStream, 0, 0, dev.streamState}
		out = binary.LittleEndian.AppendUint64(out, dev.streamBytes)
		out = binary.LittleEndian.AppendUint32(out, 0)          // start-in
		out = binary.LittleEndian.AppendUint32(out, 0xFFFFFFFF) // end-in (-1)
		out = append(out, 0x05)                                 // flags
		out = binary.LittleEndian.AppendUint16(out, 6)
		return append(out, "moku.l"...)
	}
	return []byte{cmdStream, 0, 0, 0xFF}
}

func dialFake(t *testing.T, ep string) (*Moku, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice(t, ep)
	m, err := dialEndpoint(ep)
	if err != nil {
		t.Fatalf("could not dial fake device: %+v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, dev
}

func TestRegs(t *testing.T) {
	m, dev := dialFake(t, "inproc://moku-test-regs")

	err := m.WriteRegs([]Reg{
		{Addr: 0, Value: 0x80000000},
		{Addr: 63, Value: 0x2A},
	})
	if err != nil {
		t.Fatalf("could not write registers: %+v", err)
	}
	if got, want := dev.regs[0], uint32(0x80000000); got != want {
		t.Fatalf("register 0: got=0x%x, want=0x%x", got, want)
	}

	regs, err := m.ReadRegs([]uint8{0, 63, 1})
	if err != nil {
		t.Fatalf("could not read registers: %+v", err)
	}
	want := []Reg{
		{Addr: 0, Value: 0x80000000},
		{Addr: 63, Value: 0x2A},
		{Addr: 1, Value: 0},
	}
	if !reflect.DeepEqual(regs, want) {
		t.Fatalf("invalid registers:\ngot: %v\nwant:%v\n", regs, want)
	}
}

func TestProperties(t *testing.T) {
	m, dev := dialFake(t, "inproc://moku-test-props")
	dev.props["device.serial"] = "000123"
	dev.props["calibration.AG-50-L-D-1"] = "1.0"
	dev.props["calibration.AG-1M-L-D-1"] = "0.5"

	serial, err := m.Serial()
	if err != nil {
		t.Fatalf("could not read serial: %+v", err)
	}
	if got, want := serial, "000123"; got != want {
		t.Fatalf("invalid serial: got=%q, want=%q", got, want)
	}

	if err := m.SetName("bench-1"); err != nil {
		t.Fatalf("could not set name: %+v", err)
	}
	name, err := m.Name()
	if err != nil {
		t.Fatalf("could not read name: %+v", err)
	}
	if got, want := name, "bench-1"; got != want {
		t.Fatalf("invalid name: got=%q, want=%q", got, want)
	}

	cal, err := m.PropertySection("calibration")
	if err != nil {
		t.Fatalf("could not read section: %+v", err)
	}
	if got, want := len(cal), 2; got != want {
		t.Fatalf("invalid section length: got=%d, want=%d", got, want)
	}
	for _, p := range cal {
		if got, want := p.Value, dev.props[p.Key]; got != want {
			t.Fatalf("property %q: got=%q, want=%q", p.Key, got, want)
		}
	}
}

func TestDeploy(t *testing.T) {
	m, dev := dialFake(t, "inproc://moku-test-deploy")

	bsv, err := m.Deploy(1)
	if err != nil {
		t.Fatalf("could not deploy: %+v", err)
	}
	if got, want := bsv, uint16(0x2A); got != want {
		t.Fatalf("invalid bitstream version: got=%d, want=%d", got, want)
	}
	if dev.props["ipad.name"] == "" {
		t.Fatalf("deploy did not announce the controlling host")
	}
}

func TestStreamControl(t *testing.T) {
	m, dev := dialFake(t, "inproc://moku-test-stream")
	dev.streamBytes = 1024

	cfg := StreamConfig{
		Ch1:      true,
		Ch2:      true,
		End:      10,
		UseSD:    true,
		FileName: "moku.li",
		FileType: "net",
		TimeStep: 1e-3,
		Layout:   "<s32",
		Process:  []string{"*C", "*C"},
		Tag:      NewTag(),
	}
	if err := m.StreamPrep(cfg); err != nil {
		t.Fatalf("could not prepare stream: %+v", err)
	}
	if err := m.StreamStart(); err != nil {
		t.Fatalf("could not start stream: %+v", err)
	}

	st, err := m.StreamStatus()
	if err != nil {
		t.Fatalf("could not query stream: %+v", err)
	}
	if !st.Running() {
		t.Fatalf("stream not running: %#v", st)
	}
	if got, want := st.Bytes, uint64(1024); got != want {
		t.Fatalf("invalid byte count: got=%d, want=%d", got, want)
	}
	if got, want := st.EndIn, int32(-1); got != want {
		t.Fatalf("invalid end time: got=%d, want=%d", got, want)
	}
	if got, want := st.FileName, "moku.l"; got != want {
		t.Fatalf("invalid file name: got=%q, want=%q", got, want)
	}

	bt, err := m.StreamStop()
	if err != nil {
		t.Fatalf("could not stop stream: %+v", err)
	}
	if got, want := bt, uint64(1024); got != want {
		t.Fatalf("invalid byte count: got=%d, want=%d", got, want)
	}
}

func TestStreamPrepErrors(t *testing.T) {
	m, _ := dialFake(t, "inproc://moku-test-stream-errs")

	err := m.StreamPrep(StreamConfig{Tag: "short", FileType: "csv"})
	if err == nil || err.Error() != `moku: invalid stream tag "short"` {
		t.Fatalf("invalid error: %+v", err)
	}

	err = m.StreamPrep(StreamConfig{Tag: NewTag(), Start: 5, End: 1, FileType: "csv"})
	if err == nil || err.Error() != "moku: invalid stream times 5/1" {
		t.Fatalf("invalid error: %+v", err)
	}

	err = m.StreamPrep(StreamConfig{Tag: NewTag(), FileType: "xls"})
	if err == nil || err.Error() != `moku: invalid stream file type "xls"` {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestNewTag(t *testing.T) {
	t1 := NewTag()
	t2 := NewTag()
	if len(t1) != streamTagLen || len(t2) != streamTagLen {
		t.Fatalf("invalid tag lengths: %q, %q", t1, t2)
	}
	if t1 == t2 {
		t.Fatalf("tags not unique: %q", t1)
	}
}

func TestFrameCodec(t *testing.T) {
	fr := datalog.StreamFrame{
		Tag:     "0123456789abcdef",
		Channel: 1,
		Index:   1 << 40,
		Cal:     0.5,
		Payload: []byte{0x01, 0x02, 0x03},
	}
	raw, err := marshalFrame(fr)
	if err != nil {
		t.Fatalf("could not marshal: %+v", err)
	}
	got, err := unmarshalFrame(raw)
	if err != nil {
		t.Fatalf("could not unmarshal: %+v", err)
	}
	if !reflect.DeepEqual(got, fr) {
		t.Fatalf("invalid frame:\ngot: %#v\nwant:%#v\n", got, fr)
	}

	if _, err := marshalFrame(datalog.StreamFrame{Tag: "short"}); err == nil {
		t.Fatalf("expected an error")
	}
	if _, err := unmarshalFrame([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestNetstream(t *testing.T) {
	const ep = "inproc://moku-test-netstream"

	pubSock, err := pub.NewSocket()
	if err != nil {
		t.Fatalf("could not create pub socket: %+v", err)
	}
	defer pubSock.Close()
	if err := pubSock.Listen(ep); err != nil {
		t.Fatalf("could not listen: %+v", err)
	}

	tag := "0123456789abcdef"
	ns, err := dialNetstream(ep, tag, 5*time.Second)
	if err != nil {
		t.Fatalf("could not subscribe: %+v", err)
	}
	defer ns.Close()

	want := datalog.StreamFrame{
		Tag:     tag,
		Channel: 0,
		Index:   4,
		Cal:     2,
		Payload: []byte{0x2A, 0x00, 0x00, 0x00},
	}
	other, err := marshalFrame(datalog.StreamFrame{
		Tag:     "ffffffffffffffff",
		Payload: []byte{0xFF},
	})
	if err != nil {
		t.Fatalf("could not marshal: %+v", err)
	}
	raw, err := marshalFrame(want)
	if err != nil {
		t.Fatalf("could not marshal: %+v", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		// publish until the subscriber has caught one; frames for
		// other sessions must be filtered out by the subscription.
		for {
			select {
			case <-done:
				return
			default:
			}
			pubSock.Send(other)
			pubSock.Send(raw)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	got, err := ns.Recv()
	if err != nil {
		t.Fatalf("could not receive: %+v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid frame:\ngot: %#v\nwant:%#v\n", got, want)
	}
}

func TestNetstreamTimeout(t *testing.T) {
	const ep = "inproc://moku-test-netstream-timeout"

	pubSock, err := pub.NewSocket()
	if err != nil {
		t.Fatalf("could not create pub socket: %+v", err)
	}
	defer pubSock.Close()
	if err := pubSock.Listen(ep); err != nil {
		t.Fatalf("could not listen: %+v", err)
	}

	ns, err := dialNetstream(ep, "0123456789abcdef", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("could not subscribe: %+v", err)
	}
	defer ns.Close()

	_, err = ns.Recv()
	if !errors.Is(err, datalog.ErrTimeout) {
		t.Fatalf("got=%v, want=%v", err, datalog.ErrTimeout)
	}
}

func TestWbufRbuf(t *testing.T) {
	var w wbuf
	w.u8(0x01)
	w.u16(0x0203)
	w.u32(0x04050607)
	w.i32(-1)
	w.u64(0x08090A0B0C0D0E0F)
	w.f64(1.5)
	w.str8("hi")
	w.str16("there")

	r := rbuf{p: w.p}
	if got := r.u8(); got != 0x01 {
		t.Fatalf("u8: got=0x%x", got)
	}
	if got := r.u16(); got != 0x0203 {
		t.Fatalf("u16: got=0x%x", got)
	}
	if got := r.u32(); got != 0x04050607 {
		t.Fatalf("u32: got=0x%x", got)
	}
	if got := r.i32(); got != -1 {
		t.Fatalf("i32: got=%d", got)
	}
	if got := r.u64(); got != 0x08090A0B0C0D0E0F {
		t.Fatalf("u64: got=0x%x", got)
	}
	if got := r.f64(); got != 1.5 {
		t.Fatalf("f64: got=%v", got)
	}
	if got := r.str8(); got != "hi" {
		t.Fatalf("str8: got=%q", got)
	}
	if got := r.load(int(r.u16())); !bytes.Equal(got, []byte("there")) {
		t.Fatalf("str16: got=%q", got)
	}
	if r.err != nil {
		t.Fatalf("unexpected error: %+v", r.err)
	}

	r.u8()
	if r.err == nil {
		t.Fatalf("expected an error reading past the end")
	}
}
