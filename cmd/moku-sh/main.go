// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// moku-sh is an interactive shell to inspect a Moku:Lab device.
//
// Usage: moku-sh [OPTIONS] ADDR
//
// Example:
//
//  $> moku-sh 192.168.0.10
//  moku> serial
//  002119
//  moku> regs 2 3
//  reg[  2] = 0x002a0001
//  reg[  3] = 0x05000847
//  moku> ls i
//  -rw- 12345678 osc.li
//  moku> quit
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-moku/moku"
)

func main() {
	log.SetPrefix("moku-sh: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`moku-sh is an interactive shell to inspect a Moku:Lab device.

Usage: moku-sh [OPTIONS] ADDR

Example:

 $> moku-sh 192.168.0.10
 moku> serial
 002119
 moku> regs 2 3
 reg[  2] = 0x002a0001
 reg[  3] = 0x05000847
 moku> quit

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing device address")
	}

	m, err := moku.Dial(flag.Arg(0))
	if err != nil {
		log.Fatalf("could not dial %q: %+v", flag.Arg(0), err)
	}
	defer m.Close()

	repl(m)
}

const history = ".moku-sh.history"

func repl(m *moku.Moku) {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)

	hfile := history
	if dir, err := os.UserHomeDir(); err == nil {
		hfile = filepath.Join(dir, history)
	}
	if f, err := os.Open(hfile); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hfile)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("moku> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return
			}
			log.Printf("could not read line: %+v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		args := strings.Fields(line)
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		err = dispatch(m, args[0], args[1:])
		if err != nil {
			log.Printf("%+v", err)
		}
	}
}

func dispatch(m *moku.Moku, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Print(`commands:
 regs [ADDR...]         display registers
 wreg ADDR VALUE        write a register
 props SECTION          display a property section
 prop KEY [VALUE]       display or set one property
 ls MOUNT               list the files on a mount point ("i" or "e")
 get MOUNT NAME [PATH]  download a file
 put MOUNT PATH         upload a file
 rm MOUNT NAME          delete a file
 df MOUNT               display mount point usage
 deploy ID              deploy the instrument with the given id
 name [NAME]            display or set the device name
 serial                 display the device serial number
 led [COLOUR]           display or set the LED colour
 quit                   exit the shell
`)
		return nil

	case "regs":
		addrs := make([]uint8, 0, moku.NumRegs)
		switch len(args) {
		case 0:
			for addr := 0; addr < moku.NumRegs; addr++ {
				addrs = append(addrs, uint8(addr))
			}
		default:
			for _, arg := range args {
				addr, err := strconv.ParseUint(arg, 0, 8)
				if err != nil {
					return fmt.Errorf("invalid register address %q: %w", arg, err)
				}
				addrs = append(addrs, uint8(addr))
			}
		}
		regs, err := m.ReadRegs(addrs)
		if err != nil {
			return fmt.Errorf("could not read registers: %w", err)
		}
		for _, reg := range regs {
			fmt.Printf("reg[%3d] = 0x%08x\n", reg.Addr, reg.Value)
		}
		return nil

	case "wreg":
		if len(args) != 2 {
			return fmt.Errorf("usage: wreg ADDR VALUE")
		}
		addr, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid register address %q: %w", args[0], err)
		}
		v, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid register value %q: %w", args[1], err)
		}
		err = m.WriteRegs([]moku.Reg{{Addr: uint8(addr), Value: uint32(v)}})
		if err != nil {
			return fmt.Errorf("could not write register %d: %w", addr, err)
		}
		return nil

	case "props":
		if len(args) != 1 {
			return fmt.Errorf("usage: props SECTION")
		}
		props, err := m.PropertySection(args[0])
		if err != nil {
			return fmt.Errorf("could not read section %q: %w", args[0], err)
		}
		for _, p := range props {
			fmt.Printf("%s = %q\n", p.Key, p.Value)
		}
		return nil

	case "prop":
		switch len(args) {
		case 1:
			v, err := m.Property(args[0])
			if err != nil {
				return fmt.Errorf("could not read property %q: %w", args[0], err)
			}
			fmt.Printf("%s = %q\n", args[0], v)
			return nil
		case 2:
			if _, err := m.SetProperty(args[0], args[1]); err != nil {
				return fmt.Errorf("could not set property %q: %w", args[0], err)
			}
			return nil
		}
		return fmt.Errorf("usage: prop KEY [VALUE]")

	case "ls":
		if len(args) != 1 {
			return fmt.Errorf("usage: ls MOUNT")
		}
		files, err := m.ListFiles(args[0], false)
		if err != nil {
			return fmt.Errorf("could not list files on %q: %w", args[0], err)
		}
		for _, fi := range files {
			fmt.Printf("% 12d %s\n", fi.Size, fi.Name)
		}
		return nil

	case "get":
		if len(args) != 2 && len(args) != 3 {
			return fmt.Errorf("usage: get MOUNT NAME [PATH]")
		}
		oname := args[1]
		if len(args) == 3 {
			oname = args[2]
		}
		f, err := os.Create(oname)
		if err != nil {
			return fmt.Errorf("could not create %q: %w", oname, err)
		}
		defer f.Close()
		if err := m.ReceiveFile(f, args[0], args[1]); err != nil {
			return fmt.Errorf("could not download %q: %w", args[1], err)
		}
		return f.Close()

	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put MOUNT PATH")
		}
		name, err := m.SendFile(args[0], args[1])
		if err != nil {
			return fmt.Errorf("could not upload %q: %w", args[1], err)
		}
		fmt.Printf("uploaded %q\n", name)
		return nil

	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: rm MOUNT NAME")
		}
		if err := m.DeleteFile(args[0], args[1]); err != nil {
			return fmt.Errorf("could not delete %q: %w", args[1], err)
		}
		return nil

	case "df":
		if len(args) != 1 {
			return fmt.Errorf("usage: df MOUNT")
		}
		total, free, err := m.FreeSpace(args[0])
		if err != nil {
			return fmt.Errorf("could not probe mount %q: %w", args[0], err)
		}
		fmt.Printf("total=%d free=%d\n", total, free)
		return nil

	case "deploy":
		if len(args) != 1 {
			return fmt.Errorf("usage: deploy ID")
		}
		id, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid instrument id %q: %w", args[0], err)
		}
		ver, err := m.Deploy(uint8(id))
		if err != nil {
			return fmt.Errorf("could not deploy instrument %d: %w", id, err)
		}
		fmt.Printf("deployed instrument %d (v%d)\n", id, ver)
		return nil

	case "name":
		switch len(args) {
		case 0:
			name, err := m.Name()
			if err != nil {
				return fmt.Errorf("could not read device name: %w", err)
			}
			fmt.Println(name)
			return nil
		case 1:
			return m.SetName(args[0])
		}
		return fmt.Errorf("usage: name [NAME]")

	case "serial":
		serial, err := m.Serial()
		if err != nil {
			return fmt.Errorf("could not read serial: %w", err)
		}
		fmt.Println(serial)
		return nil

	case "led":
		switch len(args) {
		case 0:
			colour, err := m.LEDColour()
			if err != nil {
				return fmt.Errorf("could not read LED colour: %w", err)
			}
			fmt.Println(colour)
			return nil
		case 1:
			return m.SetLEDColour(args[0])
		}
		return fmt.Errorf("usage: led [COLOUR]")
	}

	return fmt.Errorf("unknown command %q (try \"help\")", cmd)
}
