// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package onewiremgr is a container for a polled DS18B20 temperature manager
// and its 1-wire plumbing.
//
// The ds18b20 package holds the manager itself, onewire the bit-level bus
// abstraction and a GPIO software master, common the Dallas/Maxim CRC8 and
// sched a minimal cooperative task scheduler to drive the manager's polling.
package onewiremgr
