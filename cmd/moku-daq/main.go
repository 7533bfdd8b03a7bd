// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command moku-daq exposes a Moku:Lab device as a TDAQ server.
//
// The live sample stream of the device is published on the
// "/moku/samples" output end-point, one frame per message:
//
//	u8  channel
//	u64 absolute index of the first sample
//	f64 calibration coefficient
//	[]  raw record data
package main // import "github.com/go-moku/moku/cmd/moku-daq"

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-moku/moku"
	"github.com/go-moku/moku/datalog"
	"github.com/go-moku/moku/instr"
)

func main() {
	cmd := flags.New()

	if len(cmd.Args) < 2 {
		log.Fatalf("usage: moku-daq [OPTIONS] ADDR INSTRUMENT")
	}

	dev := device{
		addr: cmd.Args[0],
		name: cmd.Args[1],
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/moku/samples", dev.samples)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type device struct {
	addr string // device address
	name string // instrument name

	m   *moku.Moku
	ins instr.Settings
	ns  *moku.Netstream

	n    int
	data chan []byte
}

func (dev *device) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	m, err := moku.Dial(dev.addr)
	if err != nil {
		return err
	}
	dev.m = m

	ins, err := instr.ByName(dev.name)
	if err != nil {
		return err
	}
	dev.ins = ins

	if _, err := m.Deploy(ins.ID()); err != nil {
		return err
	}
	if err := ins.Attach(m); err != nil {
		return err
	}
	if err := ins.SetDefaults(); err != nil {
		return err
	}
	return ins.Commit()
}

func (dev *device) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	dev.data = make(chan []byte, 1024)
	dev.n = 0
	return nil
}

func (dev *device) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.data = make(chan []byte, 1024)
	dev.n = 0
	return nil
}

func (dev *device) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	if err := dev.ins.SetRunning(true); err != nil {
		return err
	}

	lfer, ok := dev.ins.(interface {
		LogFormat(ch1, ch2 bool) (instr.LogFormat, error)
	})
	if !ok {
		return errors.New("instrument does not support datalogging")
	}
	lf, err := lfer.LogFormat(true, true)
	if err != nil {
		return err
	}

	cfg := moku.StreamConfig{
		Ch1:      true,
		Ch2:      true,
		FileType: "net",
		Tag:      moku.NewTag(),
	}
	lf.Apply(&cfg)

	if err := dev.m.StreamPrep(cfg); err != nil {
		return err
	}
	ns, err := dev.m.Netstream(cfg.Tag, 1*time.Second)
	if err != nil {
		return err
	}
	dev.ns = ns

	return dev.m.StreamStart()
}

func (dev *device) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := dev.n
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)

	if _, err := dev.m.StreamStop(); err != nil {
		return err
	}
	if dev.ns != nil {
		_ = dev.ns.Close()
		dev.ns = nil
	}
	return dev.ins.SetRunning(false)
}

func (dev *device) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.m != nil {
		return dev.m.Close()
	}
	return nil
}

func (dev *device) samples(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *device) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		ns := dev.ns
		if ns == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		fr, err := ns.Recv()
		if err != nil {
			if errors.Is(err, datalog.ErrTimeout) {
				continue
			}
			ctx.Msg.Errorf("could not receive stream frame: %+v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if fr.Channel < 0 {
			continue
		}

		select {
		case dev.data <- marshal(fr):
			dev.n++
		default:
		}
	}
}

func marshal(fr datalog.StreamFrame) []byte {
	raw := make([]byte, 0, 1+8+8+len(fr.Payload))
	raw = append(raw, uint8(fr.Channel))
	raw = binary.LittleEndian.AppendUint64(raw, fr.Index)
	raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(fr.Cal))
	raw = append(raw, fr.Payload...)
	return raw
}
