package ak09916

import (
	"fmt"

	"github.com/relabs-tech/auxmag/internal/icm20948"
)

// ReadReg reads one AK09916 register through the bridge.
func (m *Mag) ReadReg(reg byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readReg(reg)
}

// ReadRegs reads up to FrameSize consecutive AK09916 registers.
func (m *Mag) ReadRegs(reg byte, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readRegs(reg, buf)
}

// WriteReg writes one AK09916 register through the bridge. Writes to CNTL1,
// CNTL2 and CNTL3 update Mode. The frame window is left disarmed, see Resume.
func (m *Mag) WriteReg(reg, v byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeReg(reg, v); err != nil {
		return err
	}
	switch reg {
	case RegCNTL1:
		if v&CNTL1FuseROM == CNTL1FuseROM {
			m.mode = ModeFuseAccess
		} else {
			m.mode = ModePowerDown
		}
	case RegCNTL2:
		m.mode = modeFromCNTL2(v)
	case RegCNTL3:
		if v&CNTL3SoftReset != 0 {
			m.mode = ModePowerDown
		}
	}
	return nil
}

// modeFromCNTL2 maps a CNTL2 value to a Mode. Single measurement and self
// test fall back to power-down on their own, so they count as power-down.
func modeFromCNTL2(v byte) Mode {
	switch v & 0x1F {
	case CNTL2Continuous10Hz, CNTL2Continuous20Hz, CNTL2Continuous50Hz, CNTL2Continuous100Hz:
		return ModeContinuous
	}
	return ModePowerDown
}

func (m *Mag) readReg(reg byte) (byte, error) {
	var b [1]byte
	if err := m.readRegs(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Mag) readRegs(reg byte, buf []byte) error {
	if err := m.bridge.Begin(reg, len(buf), nil); err != nil {
		return fmt.Errorf("ak09916: read 0x%02X: %w", reg, err)
	}
	m.opts.Sleep(m.opts.ReadDelay)

	rerr := m.host.ReadRegs(icm20948.ExtSlvSensData, buf)
	// Stop the master from refreshing the window behind our back.
	derr := m.bridge.Disable()
	if rerr != nil {
		return fmt.Errorf("ak09916: read 0x%02X: %w", reg, rerr)
	}
	if derr != nil {
		return fmt.Errorf("ak09916: read 0x%02X: %w", reg, derr)
	}
	return nil
}

func (m *Mag) writeReg(reg, v byte) error {
	if err := m.bridge.Begin(reg, 1, &v); err != nil {
		return fmt.Errorf("ak09916: write 0x%02X to 0x%02X: %w", v, reg, err)
	}
	m.opts.Sleep(m.opts.WriteDelay)
	if err := m.bridge.Disable(); err != nil {
		return fmt.Errorf("ak09916: write 0x%02X to 0x%02X: %w", v, reg, err)
	}
	return nil
}
