// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// onewiretemp polls a DS18B20 on a bit-banged GPIO 1-wire bus and renders
// the readings at the terminal.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/ds18b20"
	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/onewire"
	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/sched"
	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/tempstrip"
)

func mainImpl() error {
	pinName := flag.String("pin", "GPIO4", "GPIO pin wired to the 1-wire data line")
	resolution := flag.Int("resolution", 12, "conversion resolution in bits (9..12)")
	period := flag.Duration("period", 100*time.Millisecond, "manager poll period")
	noCRC := flag.Bool("nocrc", false, "skip CRC validation of bus transfers")
	allowFake := flag.Bool("allowfake", false, "tolerate non genuine DS18B20 clones")
	verbose := flag.Bool("v", false, "print protocol diagnostics")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	pin := gpioreg.ByName(*pinName)
	if pin == nil {
		return fmt.Errorf("no GPIO named %q", *pinName)
	}
	bus, err := onewire.NewBitBang(pin)
	if err != nil {
		return err
	}

	opts := ds18b20.DefaultOpts
	opts.Resolution = ds18b20.Resolution(*resolution)
	opts.CheckCRC = !*noCRC
	opts.AllowFake = *allowFake
	opts.PollPeriod = *period
	if *verbose {
		opts.Logf = log.Printf
	}

	s := sched.New()
	dev, err := ds18b20.New(bus, s, &opts)
	if err != nil {
		return err
	}
	s.Start()
	defer s.Halt()

	strip := tempstrip.New(&tempstrip.Opts{})
	defer strip.Halt()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	refresh := time.NewTicker(time.Second)
	defer refresh.Stop()
	for {
		select {
		case <-interrupt:
			fmt.Printf("\n%+v\n", dev.Stats())
			return nil
		case <-refresh.C:
			if t, err := dev.LastTemp(); err == nil {
				if err := strip.Push(t); err != nil {
					return err
				}
			}
		}
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "onewiretemp: %s.\n", err)
		os.Exit(1)
	}
}
