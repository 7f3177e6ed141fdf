// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ak09916 drives the AKM AK09916 magnetometer that sits behind the
// auxiliary I2C master of an ICM-20948.
//
// The AK09916 is never addressed directly. Every register access is proxied
// through the host's I2C_SLV0 registers (see Bridge), and in steady state the
// host streams the ST1..ST2 window into EXT_SLV_SENS_DATA on its own.
//
// Typical use:
//
//	m := ak09916.New(host, sink, nil)
//	if err := m.Setup(); err != nil { ... }
//	if _, err := m.ReadAdjustments(); err != nil { ... }
//	if err := m.StartContinuous(); err != nil { ... }
//	for range ticker.C {
//		f, err := m.ReadFrame()
//		...
//		m.Measure(time.Now(), f)
//	}
package ak09916

import (
	"sync"
	"time"

	"github.com/relabs-tech/auxmag/internal/icm20948"
)

// Host is the ICM-20948 side of the bridge. It owns the physical bus and is
// the only writer of the proxy registers. It must outlive the Mag.
type Host interface {
	WriteReg(r icm20948.Reg, v byte) error
	ReadRegs(r icm20948.Reg, buf []byte) error
	ModifyReg(r icm20948.Reg, clearBits, setBits byte) error
	// ModifyCheckedReg also verifies the register after the write.
	ModifyCheckedReg(r icm20948.Reg, clearBits, setBits byte) error
	IsExternal() bool
	// Temperature is the last host die temperature in °C.
	Temperature() float64
}

// Sink receives calibrated configuration and remapped samples.
type Sink interface {
	SetDeviceType(id uint32)
	SetScale(gaussPerLSB float64)
	SetSensitivity(x, y, z float64)
	SetExternal(external bool)
	SetTemperature(celsius float64)
	Update(ts time.Time, x, y, z float64)
}

// Mode is the AK09916 operating mode as last commanded by this driver.
type Mode uint8

const (
	ModePowerDown Mode = iota
	ModeFuseAccess
	ModeContinuous
)

func (m Mode) String() string {
	switch m {
	case ModePowerDown:
		return "power-down"
	case ModeFuseAccess:
		return "fuse-access"
	case ModeContinuous:
		return "continuous"
	}
	return "unknown"
}

// Opts tunes retries and settle delays. Zero values take the defaults.
type Opts struct {
	Retries       int
	ReadDelay     time.Duration
	WriteDelay    time.Duration
	RecoveryDelay time.Duration
	// Sleep blocks for the given delay. Tests replace it.
	Sleep    func(time.Duration)
	Observer Observer
}

// DefaultOpts matches the AK09916 turnaround at 400 kHz.
var DefaultOpts = Opts{
	Retries:       20,
	ReadDelay:     50 * time.Microsecond,
	WriteDelay:    50 * time.Microsecond,
	RecoveryDelay: 200 * time.Microsecond,
}

// Mag is an AK09916 reached through a Host. All methods are serialized, so
// calibration and measurement never interleave.
type Mag struct {
	mu          sync.Mutex
	host        Host
	sink        Sink
	bridge      Bridge
	opts        Opts
	mode        Mode
	state       SetupState
	attempts    int
	sensitivity Sensitivity
}

// New binds a magnetometer to host and configures sink with the AK09916
// device type and scale. It does not touch the bus.
func New(host Host, sink Sink, o *Opts) *Mag {
	opts := DefaultOpts
	if o != nil {
		opts = *o
		if opts.Retries <= 0 {
			opts.Retries = DefaultOpts.Retries
		}
		if opts.ReadDelay <= 0 {
			opts.ReadDelay = DefaultOpts.ReadDelay
		}
		if opts.WriteDelay <= 0 {
			opts.WriteDelay = DefaultOpts.WriteDelay
		}
		if opts.RecoveryDelay <= 0 {
			opts.RecoveryDelay = DefaultOpts.RecoveryDelay
		}
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	sink.SetDeviceType(DeviceType)
	sink.SetScale(ScaleGaussPerLSB)

	return &Mag{
		host:        host,
		sink:        sink,
		bridge:      Bridge{host: host},
		opts:        opts,
		sensitivity: Sensitivity{1, 1, 1},
	}
}

func (m *Mag) String() string { return "AK09916" }

// Mode returns the last commanded operating mode.
func (m *Mag) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// State returns where the last Setup stopped.
func (m *Mag) State() SetupState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns how many identity checks the last Setup made.
func (m *Mag) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Sensitivity returns the last applied fuse adjustment, {1,1,1} before any.
func (m *Mag) Sensitivity() Sensitivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensitivity
}

// BridgeConfig returns the current proxy configuration.
func (m *Mag) BridgeConfig() BridgeConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bridge.Config()
}
