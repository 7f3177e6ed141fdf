// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "strings"

// Device names used by the register debugger.
const (
	DeviceICM20948 = "icm20948"
	DeviceAK09916  = "ak09916"
)

// BitField describes one field of a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register metadata for the debugger UI.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Readable reports whether the register may be read.
func (r RegisterInfo) Readable() bool { return strings.Contains(r.Access, "R") }

// Writable reports whether the register may be written.
func (r RegisterInfo) Writable() bool { return strings.Contains(r.Access, "W") }

// getICM20948RegisterMap returns the ICM-20948 registers involved in driving
// the auxiliary I2C master. Addresses carry their user bank.
func getICM20948RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Bank 0
		{Address: "B0:0x00", Name: "WHO_AM_I", Description: "Device identification (should be 0xEA)", Access: "R", Default: "0xEA"},
		{Address: "B0:0x03", Name: "USER_CTRL", Description: "User Control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DMP_EN", Description: "Enable DMP", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "FIFO_EN", Description: "Enable FIFO", Values: "0=Disabled, 1=Enabled"},
				{Bits: "5", Name: "I2C_MST_EN", Description: "Enable auxiliary I2C master", Values: "0=Bypass/off, 1=Master on"},
				{Bits: "4", Name: "I2C_IF_DIS", Description: "Disable I2C slave, SPI only", Values: "0=I2C+SPI, 1=SPI only"},
				{Bits: "3", Name: "DMP_RST", Description: "Reset DMP", Values: "Self clearing"},
				{Bits: "2", Name: "SRAM_RST", Description: "Reset SRAM", Values: "Self clearing"},
				{Bits: "1", Name: "I2C_MST_RST", Description: "Reset auxiliary I2C master", Values: "Self clearing"},
			}},
		{Address: "B0:0x05", Name: "LP_CONFIG", Description: "Low Power Configuration", Access: "RW", Default: "0x40",
			BitFields: []BitField{
				{Bits: "6", Name: "I2C_MST_CYCLE", Description: "I2C master duty cycled at I2C_MST_ODR_CONFIG", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: "B0:0x06", Name: "PWR_MGMT_1", Description: "Power Management 1", Access: "RW", Default: "0x41",
			BitFields: []BitField{
				{Bits: "7", Name: "DEVICE_RESET", Description: "Reset all registers", Values: "Self clearing"},
				{Bits: "6", Name: "SLEEP", Description: "Sleep mode", Values: "0=Awake, 1=Sleep"},
				{Bits: "3", Name: "TEMP_DIS", Description: "Disable temperature sensor", Values: "0=Enabled, 1=Disabled"},
				{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=20MHz, 1-5=Auto select PLL, 7=Stop"},
			}},
		{Address: "B0:0x07", Name: "PWR_MGMT_2", Description: "Power Management 2", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5:3", Name: "DISABLE_ACCEL", Description: "Disable accelerometer axes", Values: "0=On, 7=Off"},
				{Bits: "2:0", Name: "DISABLE_GYRO", Description: "Disable gyroscope axes", Values: "0=On, 7=Off"},
			}},
		{Address: "B0:0x0F", Name: "INT_PIN_CFG", Description: "INT Pin / Bypass Enable Configuration", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "1", Name: "BYPASS_EN", Description: "Auxiliary bus bypass to host pins", Values: "0=Master owns bus, 1=Bypass"},
			}},
		{Address: "B0:0x17", Name: "I2C_MST_STATUS", Description: "I2C Master Status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "I2C_SLV4_DONE", Description: "SLV4 transfer complete", Values: ""},
				{Bits: "5", Name: "I2C_LOST_ARB", Description: "Master lost arbitration", Values: ""},
				{Bits: "0", Name: "I2C_SLV0_NACK", Description: "SLV0 received NACK", Values: ""},
			}},
		{Address: "B0:0x39", Name: "TEMP_OUT_H", Description: "Temperature High Byte", Access: "R"},
		{Address: "B0:0x3A", Name: "TEMP_OUT_L", Description: "Temperature Low Byte", Access: "R"},
		{Address: "B0:0x3B", Name: "EXT_SLV_SENS_DATA_00", Description: "Auxiliary data 0 (AK09916 ST1 when streaming)", Access: "R"},
		{Address: "B0:0x3C", Name: "EXT_SLV_SENS_DATA_01", Description: "Auxiliary data 1 (HXL)", Access: "R"},
		{Address: "B0:0x3D", Name: "EXT_SLV_SENS_DATA_02", Description: "Auxiliary data 2 (HXH)", Access: "R"},
		{Address: "B0:0x3E", Name: "EXT_SLV_SENS_DATA_03", Description: "Auxiliary data 3 (HYL)", Access: "R"},
		{Address: "B0:0x3F", Name: "EXT_SLV_SENS_DATA_04", Description: "Auxiliary data 4 (HYH)", Access: "R"},
		{Address: "B0:0x40", Name: "EXT_SLV_SENS_DATA_05", Description: "Auxiliary data 5 (HZL)", Access: "R"},
		{Address: "B0:0x41", Name: "EXT_SLV_SENS_DATA_06", Description: "Auxiliary data 6 (HZH)", Access: "R"},
		{Address: "B0:0x42", Name: "EXT_SLV_SENS_DATA_07", Description: "Auxiliary data 7 (TMPS)", Access: "R"},
		{Address: "B0:0x43", Name: "EXT_SLV_SENS_DATA_08", Description: "Auxiliary data 8 (ST2)", Access: "R"},

		// Bank 3
		{Address: "B3:0x00", Name: "I2C_MST_ODR_CONFIG", Description: "I2C Master ODR in duty cycled mode", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "3:0", Name: "I2C_MST_ODR_CONFIG", Description: "ODR = 1.1kHz / 2^value", Values: "0-15"},
			}},
		{Address: "B3:0x01", Name: "I2C_MST_CTRL", Description: "I2C Master Control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "MULT_MST_EN", Description: "Multi-master", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "I2C_MST_P_NSR", Description: "Between slave reads", Values: "0=Restart, 1=Stop"},
				{Bits: "3:0", Name: "I2C_MST_CLK", Description: "Master clock", Values: "7=345.6kHz (nominal 400kHz)"},
			}},
		{Address: "B3:0x02", Name: "I2C_MST_DELAY_CTRL", Description: "I2C Master Delay Control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DELAY_ES_SHADOW", Description: "Delay shadowing of external sensor data", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "I2C_SLV0_DELAY_EN", Description: "SLV0 accessed at reduced rate", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: "B3:0x03", Name: "I2C_SLV0_ADDR", Description: "SLV0 target address, owned by the AK09916 bridge", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "I2C_SLV0_RNW", Description: "Transfer direction", Values: "0=Write, 1=Read"},
				{Bits: "6:0", Name: "I2C_ID_0", Description: "Target I2C address", Values: "0x0C=AK09916"},
			}},
		{Address: "B3:0x04", Name: "I2C_SLV0_REG", Description: "SLV0 target register, owned by the AK09916 bridge", Access: "R", Default: "0x00"},
		{Address: "B3:0x05", Name: "I2C_SLV0_CTRL", Description: "SLV0 control, owned by the AK09916 bridge", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "I2C_SLV0_EN", Description: "Enable transfers to EXT_SLV_SENS_DATA", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "I2C_SLV0_BYTE_SW", Description: "Swap bytes of words", Values: "0=No, 1=Swap"},
				{Bits: "5", Name: "I2C_SLV0_REG_DIS", Description: "Do not write the register address", Values: "0=Write reg, 1=Data only"},
				{Bits: "4", Name: "I2C_SLV0_GRP", Description: "Word grouping", Values: "0=0/1 pairs, 1=1/2 pairs"},
				{Bits: "3:0", Name: "I2C_SLV0_LENG", Description: "Bytes to transfer", Values: "0-15"},
			}},
		{Address: "B3:0x06", Name: "I2C_SLV0_DO", Description: "SLV0 data out (write transfers), owned by the AK09916 bridge", Access: "R", Default: "0x00"},
	}
}

// getAK09916RegisterMap returns metadata for the AK09916 registers reachable
// through the bridge at I2C address 0x0C.
func getAK09916RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Identification
		{Address: "0x00", Name: "WIA1", Description: "Company ID (should be 0x48)", Access: "R", Default: "0x48"},
		{Address: "0x01", Name: "WIA2", Description: "Device ID (should be 0x09)", Access: "R", Default: "0x09"},

		// Data
		{Address: "0x10", Name: "ST1", Description: "STATUS 1 - Data ready and overrun", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "0", Name: "DRDY", Description: "Data Ready", Values: "0=Not ready, 1=Data ready"},
				{Bits: "1", Name: "DOR", Description: "Data Overrun", Values: "0=Normal, 1=Sample skipped"},
			}},
		{Address: "0x11", Name: "HXL", Description: "X-axis data low byte", Access: "R"},
		{Address: "0x12", Name: "HXH", Description: "X-axis data high byte", Access: "R"},
		{Address: "0x13", Name: "HYL", Description: "Y-axis data low byte", Access: "R"},
		{Address: "0x14", Name: "HYH", Description: "Y-axis data high byte", Access: "R"},
		{Address: "0x15", Name: "HZL", Description: "Z-axis data low byte", Access: "R"},
		{Address: "0x16", Name: "HZH", Description: "Z-axis data high byte", Access: "R"},
		{Address: "0x17", Name: "TMPS", Description: "Dummy, read to keep the ST1..ST2 window contiguous", Access: "R"},
		{Address: "0x18", Name: "ST2", Description: "STATUS 2 - Overflow", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "3", Name: "HOFL", Description: "Magnetic sensor overflow", Values: "0=Normal, 1=|B| above 4912uT"},
			}},

		// Control
		{Address: "0x30", Name: "CNTL1", Description: "CONTROL 1 - Fuse access and resolution", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "4", Name: "BIT", Description: "Output bit width", Values: "1=16-bit"},
				{Bits: "3:0", Name: "MODE", Description: "Fuse ROM access", Values: "0=PowerDown, 15=Fuse ROM"},
			}},
		{Address: "0x31", Name: "CNTL2", Description: "CONTROL 2 - Operation mode", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "4:0", Name: "MODE", Description: "Operation mode", Values: "0=PowerDown, 1=Single, 2=10Hz, 4=20Hz, 6=50Hz, 8=100Hz, 16=SelfTest"},
			}},
		{Address: "0x32", Name: "CNTL3", Description: "CONTROL 3 - Soft reset", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "0", Name: "SRST", Description: "Soft Reset", Values: "1=Reset, self clearing"},
			}},

		// Factory calibration
		{Address: "0x60", Name: "ASAX", Description: "X-axis sensitivity adjustment (fuse mode only)", Access: "R",
			BitFields: []BitField{
				{Bits: "7:0", Name: "ASAX", Description: "X-axis sensitivity adjustment", Values: "Applied as: (ASA-128)/256 + 1.0, 0x00/0xFF invalid"},
			}},
		{Address: "0x61", Name: "ASAY", Description: "Y-axis sensitivity adjustment (fuse mode only)", Access: "R"},
		{Address: "0x62", Name: "ASAZ", Description: "Z-axis sensitivity adjustment (fuse mode only)", Access: "R"},
	}
}

// RegisterMap returns the metadata for device, or nil if unknown.
func RegisterMap(device string) []RegisterInfo {
	switch device {
	case DeviceICM20948:
		return getICM20948RegisterMap()
	case DeviceAK09916:
		return getAK09916RegisterMap()
	}
	return nil
}

// LookupRegister finds a register of device by its address string.
func LookupRegister(device, addr string) (RegisterInfo, bool) {
	for _, r := range RegisterMap(device) {
		if strings.EqualFold(r.Address, addr) {
			return r, true
		}
	}
	return RegisterInfo{}, false
}
