// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ak09916

// I2CAddr is the fixed 7-bit address of the AK09916 on the auxiliary bus.
const I2CAddr = 0x0C

// AK09916 registers.
const (
	RegWIA1  = 0x00
	RegWIA2  = 0x01 // device ID
	RegST1   = 0x10
	RegHXL   = 0x11
	RegHXH   = 0x12
	RegHYL   = 0x13
	RegHYH   = 0x14
	RegHZL   = 0x15
	RegHZH   = 0x16
	RegTMPS  = 0x17
	RegST2   = 0x18
	RegCNTL1 = 0x30
	RegCNTL2 = 0x31
	RegCNTL3 = 0x32
	RegASAX  = 0x60
	RegASAY  = 0x61
	RegASAZ  = 0x62
)

// DeviceID is the WIA2 answer of an AK09916.
const DeviceID = 0x09

// FrameSize is the ST1..ST2 window streamed by the host in continuous mode.
const FrameSize = 9

// ST1 / ST2 bits.
const (
	BitST1DRDY = 0x01
	BitST1DOR  = 0x02
	BitST2HOFL = 0x08
)

// Control values.
const (
	CNTL1PowerDown = 0x00
	CNTL1FuseROM   = 0x0F
	CNTL1Bit16     = 0x10

	CNTL2PowerDown       = 0x00
	CNTL2Continuous10Hz  = 0x02
	CNTL2Continuous20Hz  = 0x04
	CNTL2Continuous50Hz  = 0x06
	CNTL2Continuous100Hz = 0x08

	CNTL3SoftReset = 0x01
)

// Sink configuration pushed at construction.
const (
	DeviceType       = 0x09
	ScaleGaussPerLSB = 1.5e-3
)
