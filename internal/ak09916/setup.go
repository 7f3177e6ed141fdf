package ak09916

import (
	"fmt"

	"github.com/relabs-tech/auxmag/internal/icm20948"
)

// SetupState is a state of the identification loop run by Setup.
type SetupState uint8

const (
	StateStart SetupState = iota
	StateMasterConfigured
	StateIDChecked
	StateDone
	StateFailed
)

func (s SetupState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateMasterConfigured:
		return "master-configured"
	case StateIDChecked:
		return "id-checked"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type retryState struct {
	attemptsRemaining int
	lastObservedID    byte
	idOK              bool
}

// Setup brings the AK09916 up: it enables the host I2C master, soft resets
// the magnetometer and checks its ID, retrying with a master reset in between.
// On success the chip runs at 100 Hz and the bridge auto-refreshes one frame
// from ST1. When every attempt fails the host master is switched off and an
// error matching ErrInitFailed is returned.
//
// Host errors abort Setup immediately and are returned as is.
func (m *Mag) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setup()
}

// Reset runs Setup, soft resets the magnetometer, then runs Setup again.
func (m *Mag) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setup(); err != nil {
		return err
	}
	if err := m.writeReg(RegCNTL3, CNTL3SoftReset); err != nil {
		return err
	}
	m.mode = ModePowerDown
	return m.setup()
}

// StartContinuous puts the AK09916 back into 100 Hz continuous mode and
// re-arms the auto-refresh window. Setup already does this; call it after
// ReadAdjustments, which leaves the chip powered down.
func (m *Mag) StartContinuous() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startContinuous()
}

// Resume re-arms the frame window after single register accesses if the chip
// is still in continuous mode. Unlike StartContinuous it leaves CNTL2 alone,
// so a rate picked with WriteReg is kept. In other modes it does nothing.
func (m *Mag) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeContinuous || m.bridge.cfg.streaming() {
		return nil
	}
	if err := m.bridge.Begin(RegST1, FrameSize, nil); err != nil {
		return fmt.Errorf("ak09916: arm frame window: %w", err)
	}
	return nil
}

func (m *Mag) setup() error {
	rs := retryState{attemptsRemaining: m.opts.Retries}
	m.attempts = 0
	m.state = StateStart

	for {
		switch m.state {
		case StateStart:
			if err := m.configureMaster(); err != nil {
				m.state = StateFailed
				return err
			}
			m.state = StateMasterConfigured

		case StateMasterConfigured:
			m.attempts++
			if err := m.checkID(&rs); err != nil {
				m.state = StateFailed
				return err
			}
			m.state = StateIDChecked

		case StateIDChecked:
			if rs.idOK {
				if err := m.startContinuous(); err != nil {
					m.state = StateFailed
					return err
				}
				m.state = StateDone
				continue
			}
			rs.attemptsRemaining--
			m.opts.Observer.IDMismatch(rs.lastObservedID, rs.attemptsRemaining)
			if err := m.host.ModifyReg(icm20948.UserCtrl, 0, icm20948.BitI2CMstRst); err != nil {
				m.state = StateFailed
				return fmt.Errorf("ak09916: reset i2c master: %w", err)
			}
			m.opts.Sleep(m.opts.RecoveryDelay)
			if rs.attemptsRemaining > 0 {
				m.state = StateStart
				continue
			}
			if err := m.disableMaster(); err != nil {
				m.state = StateFailed
				return err
			}
			m.state = StateFailed
			err := fmt.Errorf("%w after %d attempts: %w (last 0x%02X, want 0x%02X)",
				ErrInitFailed, m.attempts, ErrIDMismatch, rs.lastObservedID, DeviceID)
			m.opts.Observer.SetupFailed(err)
			return err

		case StateDone:
			m.opts.Observer.SetupDone(m.attempts)
			return nil

		default:
			return fmt.Errorf("ak09916: setup in state %s", m.state)
		}
	}
}

func (m *Mag) configureMaster() error {
	if err := m.host.ModifyCheckedReg(icm20948.UserCtrl, 0, icm20948.BitI2CMstEn); err != nil {
		return fmt.Errorf("ak09916: enable i2c master: %w", err)
	}
	if err := m.host.WriteReg(icm20948.I2CMstCtrl, icm20948.BitI2CMstPNSR|icm20948.I2CMstClock400kHz); err != nil {
		return fmt.Errorf("ak09916: set i2c master clock: %w", err)
	}
	return nil
}

func (m *Mag) disableMaster() error {
	if err := m.host.ModifyCheckedReg(icm20948.UserCtrl, icm20948.BitI2CMstEn, 0); err != nil {
		return fmt.Errorf("ak09916: disable i2c master: %w", err)
	}
	if err := m.host.WriteReg(icm20948.I2CMstCtrl, 0); err != nil {
		return fmt.Errorf("ak09916: clear i2c master clock: %w", err)
	}
	return nil
}

func (m *Mag) checkID(rs *retryState) error {
	if err := m.writeReg(RegCNTL3, CNTL3SoftReset); err != nil {
		return err
	}
	m.mode = ModePowerDown
	id, err := m.readReg(RegWIA2)
	if err != nil {
		return err
	}
	rs.lastObservedID = id
	rs.idOK = id == DeviceID
	return nil
}

func (m *Mag) startContinuous() error {
	if err := m.writeReg(RegCNTL2, CNTL2Continuous100Hz); err != nil {
		return err
	}
	m.mode = ModeContinuous
	if err := m.bridge.Begin(RegST1, FrameSize, nil); err != nil {
		return fmt.Errorf("ak09916: arm frame window: %w", err)
	}
	return nil
}
