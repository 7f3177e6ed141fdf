// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package icm20948

import (
	"fmt"
	"strconv"
	"strings"
)

// Reg is an ICM-20948 register address tagged with its user bank.
// The bank lives in the high byte, the in-bank address in the low byte.
type Reg uint16

// Bank returns the user bank (0..3) the register belongs to.
func (r Reg) Bank() byte { return byte(r >> 8) }

// Addr returns the in-bank register address.
func (r Reg) Addr() byte { return byte(r) }

func (r Reg) String() string {
	return fmt.Sprintf("B%d:0x%02X", r.Bank(), r.Addr())
}

// ParseReg parses "B3:0x03" as printed by String. A bare address such as
// "0x3B" is taken from bank 0.
func ParseReg(s string) (Reg, error) {
	bank := uint64(0)
	addr := s
	if b, a, ok := strings.Cut(s, ":"); ok {
		if len(b) < 2 || (b[0] != 'B' && b[0] != 'b') {
			return 0, fmt.Errorf("icm20948: invalid register %q", s)
		}
		n, err := strconv.ParseUint(b[1:], 10, 8)
		if err != nil || n > 3 {
			return 0, fmt.Errorf("icm20948: invalid bank in %q", s)
		}
		bank, addr = n, a
	}
	n, err := strconv.ParseUint(addr, 0, 8)
	if err != nil || n > 0x7F {
		return 0, fmt.Errorf("icm20948: invalid register address in %q", s)
	}
	return Reg(bank<<8 | n), nil
}

// Bank 0.
const (
	WhoAmI         = Reg(0<<8 | 0x00)
	UserCtrl       = Reg(0<<8 | 0x03)
	LPConfig       = Reg(0<<8 | 0x05)
	PwrMgmt1       = Reg(0<<8 | 0x06)
	PwrMgmt2       = Reg(0<<8 | 0x07)
	IntPinCfg      = Reg(0<<8 | 0x0F)
	I2CMstStatus   = Reg(0<<8 | 0x17)
	TempOutH       = Reg(0<<8 | 0x39)
	TempOutL       = Reg(0<<8 | 0x3A)
	ExtSlvSensData = Reg(0<<8 | 0x3B) // EXT_SLV_SENS_DATA_00, 24 bytes
)

// Bank 3: auxiliary I2C master.
const (
	I2CMstODRConfig = Reg(3<<8 | 0x00)
	I2CMstCtrl      = Reg(3<<8 | 0x01)
	I2CMstDelayCtrl = Reg(3<<8 | 0x02)
	I2CSlv0Addr     = Reg(3<<8 | 0x03)
	I2CSlv0Reg      = Reg(3<<8 | 0x04)
	I2CSlv0Ctrl     = Reg(3<<8 | 0x05)
	I2CSlv0DO       = Reg(3<<8 | 0x06)
)

// regBankSel is mapped at the same address in every bank.
const regBankSel = 0x7F

const (
	// WhoAmIValue is the WHO_AM_I answer of an ICM-20948.
	WhoAmIValue = 0xEA

	// ExtSensDataLen is the size of the EXT_SLV_SENS_DATA window.
	ExtSensDataLen = 24
)

// USER_CTRL bits.
const (
	BitDMPEn     = 0x80
	BitFIFOEn    = 0x40
	BitI2CMstEn  = 0x20
	BitI2CIFDis  = 0x10
	BitDMPRst    = 0x08
	BitSRAMRst   = 0x04
	BitI2CMstRst = 0x02
)

// PWR_MGMT_1 bits.
const (
	BitHReset  = 0x80
	BitSleep   = 0x40
	BitTempDis = 0x08
	ClkSelAuto = 0x01
)

// I2C_MST_CTRL bits.
const (
	BitI2CMstPNSR     = 0x10 // stop between reads instead of restart
	I2CMstClock400kHz = 0x07
)

// I2C_SLVx_ADDR / I2C_SLVx_CTRL bits.
const (
	BitI2CSlvRead = 0x80
	BitI2CSlvEn   = 0x80
	MaskI2CSlvLen = 0x0F
)
