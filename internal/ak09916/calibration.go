package ak09916

import "fmt"

// Sensitivity holds the per-axis fuse adjustment factors (x, y, z).
type Sensitivity [3]float64

// Adjustment converts one fuse byte. ok is false for the unprogrammed
// values 0x00 and 0xFF.
func Adjustment(b byte) (v float64, ok bool) {
	if b == 0x00 || b == 0xFF {
		return 0, false
	}
	return (float64(b)-128)/256 + 1, true
}

// ParseAdjustments converts ASAX..ASAZ. Any sentinel byte rejects the whole
// vector.
func ParseAdjustments(raw [3]byte) (Sensitivity, error) {
	var s Sensitivity
	for i, b := range raw {
		v, ok := Adjustment(b)
		if !ok {
			return Sensitivity{}, fmt.Errorf("%w: axis %c byte 0x%02X", ErrCalibrationInvalid, "xyz"[i], b)
		}
		s[i] = v
	}
	return s, nil
}

// ReadAdjustments reads the factory sensitivity adjustment from fuse ROM and
// pushes it to the sink. The chip is powered down afterwards even when the
// read fails. On ErrCalibrationInvalid the sink is left untouched.
func (m *Mag) ReadAdjustments() (Sensitivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeReg(RegCNTL1, CNTL1FuseROM|CNTL1Bit16); err != nil {
		return Sensitivity{}, err
	}
	m.mode = ModeFuseAccess
	m.opts.Sleep(m.opts.ReadDelay)

	var raw [3]byte
	rerr := m.readRegs(RegASAX, raw[:])
	perr := m.writeReg(RegCNTL1, CNTL1PowerDown)
	if perr == nil {
		m.mode = ModePowerDown
	}
	if rerr != nil {
		return Sensitivity{}, rerr
	}
	if perr != nil {
		return Sensitivity{}, perr
	}

	s, err := ParseAdjustments(raw)
	if err != nil {
		m.opts.Observer.CalibrationInvalid(raw)
		return Sensitivity{}, err
	}
	m.sink.SetSensitivity(s[0], s[1], s[2])
	m.sensitivity = s
	return s, nil
}
