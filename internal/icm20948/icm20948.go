// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package icm20948 is a register-level driver for the InvenSense ICM-20948.
//
// It only covers what the AK09916 passthrough needs: banked register access,
// read-modify-write helpers, the die temperature and the external-mount flag.
// Accel/gyro configuration is out of scope.
package icm20948

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var sleep = time.Sleep

// DefaultI2CAddr is the address with AD0 pulled low.
const DefaultI2CAddr = 0x68

var (
	// ErrWhoAmI is returned by the constructors when the chip does not answer 0xEA.
	ErrWhoAmI = errors.New("icm20948: unexpected WHO_AM_I")
	// ErrVerify is returned by ModifyCheckedReg when the readback differs.
	ErrVerify = errors.New("icm20948: register readback mismatch")
)

// Opts holds initialization options.
type Opts struct {
	// External marks the board as externally mounted. It is reported with
	// every magnetometer sample.
	External bool
	// SPISpeed is only used by NewSPI.
	SPISpeed physic.Frequency
}

// DefaultOpts is used when nil options are passed.
var DefaultOpts = Opts{SPISpeed: 7 * physic.MegaHertz}

// Dev is an ICM-20948 reachable over I2C or SPI.
type Dev struct {
	mu          sync.Mutex
	c           conn.Conn
	isSPI       bool
	bank        byte
	external    bool
	temperature float64
}

// NewI2C opens the ICM-20948 at addr on bus b, resets and wakes it.
func NewI2C(b i2c.Bus, addr uint16, o *Opts) (*Dev, error) {
	if o == nil {
		o = &DefaultOpts
	}
	if addr == 0 {
		addr = DefaultI2CAddr
	}
	return newDev(&i2c.Dev{Bus: b, Addr: addr}, false, o)
}

// NewSPI opens the ICM-20948 on SPI port p (mode 3, 8 bit words).
func NewSPI(p spi.Port, o *Opts) (*Dev, error) {
	if o == nil {
		o = &DefaultOpts
	}
	speed := o.SPISpeed
	if speed == 0 {
		speed = DefaultOpts.SPISpeed
	}
	c, err := p.Connect(speed, spi.Mode3, 8)
	if err != nil {
		return nil, fmt.Errorf("icm20948: spi connect: %w", err)
	}
	return newDev(c, true, o)
}

func newDev(c conn.Conn, isSPI bool, o *Opts) (*Dev, error) {
	d := &Dev{c: c, isSPI: isSPI, bank: 0xFF, external: o.External}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	if d.isSPI {
		return "ICM20948{spi}"
	}
	return "ICM20948{i2c}"
}

func (d *Dev) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var who [1]byte
	if err := d.readLocked(WhoAmI, who[:]); err != nil {
		return fmt.Errorf("icm20948: whoami read: %w", err)
	}
	if who[0] != WhoAmIValue {
		return fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrWhoAmI, who[0], WhoAmIValue)
	}

	if err := d.writeLocked(PwrMgmt1, BitHReset); err != nil {
		return fmt.Errorf("icm20948: reset: %w", err)
	}
	sleep(100 * time.Millisecond)
	// Reset returns the chip to bank 0.
	d.bank = 0

	// CLKSEL must be 1..5 for full gyro performance.
	if err := d.writeLocked(PwrMgmt1, ClkSelAuto); err != nil {
		return fmt.Errorf("icm20948: wake: %w", err)
	}
	// Accel and gyro on. The I2C master does not run otherwise.
	if err := d.writeLocked(PwrMgmt2, 0x00); err != nil {
		return fmt.Errorf("icm20948: power sensors: %w", err)
	}
	sleep(50 * time.Millisecond)

	// Bypass off: the auxiliary bus belongs to the internal master.
	if err := d.writeLocked(IntPinCfg, 0x00); err != nil {
		return fmt.Errorf("icm20948: disable bypass: %w", err)
	}
	if d.isSPI {
		if err := d.modifyLocked(UserCtrl, 0, BitI2CIFDis); err != nil {
			return fmt.Errorf("icm20948: disable i2c slave: %w", err)
		}
	}
	return nil
}

// WriteReg writes one register.
func (d *Dev) WriteReg(r Reg, v byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeLocked(r, v); err != nil {
		return fmt.Errorf("icm20948: write 0x%02X to %s: %w", v, r, err)
	}
	return nil
}

// ReadRegs reads len(buf) consecutive registers starting at r.
func (d *Dev) ReadRegs(r Reg, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readLocked(r, buf); err != nil {
		return fmt.Errorf("icm20948: read %d bytes at %s: %w", len(buf), r, err)
	}
	return nil
}

// ReadReg reads one register.
func (d *Dev) ReadReg(r Reg) (byte, error) {
	var b [1]byte
	if err := d.ReadRegs(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ModifyReg clears then sets bits in r.
func (d *Dev) ModifyReg(r Reg, clearBits, setBits byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.modifyLocked(r, clearBits, setBits); err != nil {
		return fmt.Errorf("icm20948: modify %s: %w", r, err)
	}
	return nil
}

// ModifyCheckedReg is ModifyReg followed by a readback of the touched bits.
func (d *Dev) ModifyCheckedReg(r Reg, clearBits, setBits byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.modifyLocked(r, clearBits, setBits); err != nil {
		return fmt.Errorf("icm20948: modify %s: %w", r, err)
	}
	var b [1]byte
	if err := d.readLocked(r, b[:]); err != nil {
		return fmt.Errorf("icm20948: verify %s: %w", r, err)
	}
	mask := clearBits | setBits
	if b[0]&mask != setBits&mask {
		return fmt.Errorf("%w: %s=0x%02X, want bits 0x%02X set and 0x%02X clear", ErrVerify, r, b[0], setBits, clearBits&^setBits)
	}
	return nil
}

// IsExternal reports whether the board is externally mounted.
func (d *Dev) IsExternal() bool { return d.external }

// Temperature returns the die temperature in °C from the last UpdateTemperature.
func (d *Dev) Temperature() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.temperature
}

// UpdateTemperature samples TEMP_OUT and caches the result.
func (d *Dev) UpdateTemperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b [2]byte
	if err := d.readLocked(TempOutH, b[:]); err != nil {
		return 0, fmt.Errorf("icm20948: read temperature: %w", err)
	}
	raw := int16(binary.BigEndian.Uint16(b[:]))
	d.temperature = float64(raw)/333.87 + 21.0
	return d.temperature, nil
}

func (d *Dev) modifyLocked(r Reg, clearBits, setBits byte) error {
	var b [1]byte
	if err := d.readLocked(r, b[:]); err != nil {
		return err
	}
	return d.writeLocked(r, b[0]&^clearBits|setBits)
}

func (d *Dev) selectBank(bank byte) error {
	if d.bank == bank {
		return nil
	}
	if err := d.c.Tx([]byte{regBankSel, bank << 4}, nil); err != nil {
		d.bank = 0xFF
		return fmt.Errorf("select bank %d: %w", bank, err)
	}
	d.bank = bank
	return nil
}

func (d *Dev) writeLocked(r Reg, v byte) error {
	if err := d.selectBank(r.Bank()); err != nil {
		return err
	}
	return d.c.Tx([]byte{r.Addr() & 0x7F, v}, nil)
}

func (d *Dev) readLocked(r Reg, buf []byte) error {
	if err := d.selectBank(r.Bank()); err != nil {
		return err
	}
	if !d.isSPI {
		return d.c.Tx([]byte{r.Addr()}, buf)
	}
	// SPI is full duplex: the first clocked-in byte is garbage.
	w := make([]byte, len(buf)+1)
	w[0] = r.Addr() | 0x80
	rx := make([]byte, len(w))
	if err := d.c.Tx(w, rx); err != nil {
		return err
	}
	copy(buf, rx[1:])
	return nil
}
