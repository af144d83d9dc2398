// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tempstrip renders a rolling window of temperature readings to a
// terminal (stdout) as an ANSI colored strip with a numeric readout.
//
// Useful to watch a polled sensor without any graphical display attached.
package tempstrip

import (
	"bytes"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/physic"
)

// Opts represents the options available for the strip.
type Opts struct {
	// X is the number of readings kept and rendered. Defaults to 32.
	X int
	// Min and Max bound the color scale. Default to 0C and 40C.
	Min physic.Temperature
	Max physic.Temperature
	// Palette used for terminal colors.
	Palette *ansi256.Palette

	_ struct{}
}

// Dev renders readings at the console.
type Dev struct {
	w        io.Writer
	l        int
	min, max physic.Temperature
	palette  ansi256.Palette

	history []physic.Temperature
	buf     bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	return NewWriter(colorable.NewColorableStdout(), opts)
}

// NewWriter returns a Dev that displays to an arbitrary writer.
func NewWriter(w io.Writer, opts *Opts) *Dev {
	l := opts.X
	if l <= 0 {
		l = 32
	}
	min, max := opts.Min, opts.Max
	if min == 0 && max == 0 {
		min = physic.ZeroCelsius
		max = physic.ZeroCelsius + 40*physic.Celsius
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Dev{w: w, l: l, min: min, max: max, palette: *p}
}

func (d *Dev) String() string {
	return "TempStrip"
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes so the shell is not left colored.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Push appends a reading to the strip and redraws it in place.
func (d *Dev) Push(t physic.Temperature) error {
	d.history = append(d.history, t)
	if len(d.history) > d.l {
		d.history = d.history[len(d.history)-d.l:]
	}
	return d.refresh()
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for _, t := range d.history {
		_, _ = io.WriteString(&d.buf, d.palette.Block(d.colorFor(t)))
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, _ = d.buf.WriteString(d.history[len(d.history)-1].String())
	_, _ = d.buf.WriteString("  ")
	_, err := d.buf.WriteTo(d.w)
	return err
}

// colorFor maps a reading onto a cold-blue to hot-red gradient.
func (d *Dev) colorFor(t physic.Temperature) color.NRGBA {
	span := d.max - d.min
	if span <= 0 {
		span = 1
	}
	pos := t - d.min
	if pos < 0 {
		pos = 0
	}
	if pos > span {
		pos = span
	}
	r := byte(int64(pos) * 255 / int64(span))
	return color.NRGBA{R: r, G: 0, B: 255 - r, A: 255}
}
