// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/auxmag/internal/ak09916"
	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/icm20948"
	"github.com/relabs-tech/auxmag/internal/icm20948/icmsim"
)

// ErrNotInitialized is returned by MagManager methods before Init.
var ErrNotInitialized = errors.New("magnetometer not initialized")

// hostDevice is what the manager needs from an ICM-20948, real or simulated.
type hostDevice interface {
	ak09916.Host
	String() string
}

// temperatureUpdater is implemented by hosts that sample their die temperature.
type temperatureUpdater interface {
	UpdateTemperature() (float64, error)
}

// MagManager owns the ICM-20948 host and the AK09916 behind it.
type MagManager struct {
	mu     sync.Mutex
	cfg    *config.Config
	dev    hostDevice
	closer io.Closer
	mag    *ak09916.Mag
	source string
	log    logrus.FieldLogger
}

var (
	magManager *MagManager
	magOnce    sync.Once
)

// GetMagManager returns the process wide manager.
func GetMagManager() *MagManager {
	magOnce.Do(func() {
		magManager = &MagManager{}
	})
	return magManager
}

// Init opens the host configured in config.Get() and brings the
// magnetometer up, pushing its configuration into sink.
func (m *MagManager) Init(sink ak09916.Sink, log logrus.FieldLogger) error {
	return m.InitWith(config.Get(), sink, log)
}

// InitWith is Init with an explicit configuration.
func (m *MagManager) InitWith(cfg *config.Config, sink ak09916.Sink, log logrus.FieldLogger) error {
	if cfg == nil {
		return errors.New("magnetometer: no configuration loaded")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("source", cfg.Source())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closer != nil {
		m.closer.Close()
		m.closer = nil
	}

	dev, closer, err := openHost(cfg)
	if err != nil {
		return err
	}
	log.WithField("host", dev.String()).Info("host opened")

	m.cfg = cfg
	m.dev = dev
	m.closer = closer
	m.source = cfg.Source()
	m.log = log
	m.mag = ak09916.New(dev, sink, &ak09916.Opts{
		Retries:       cfg.MagInitRetries,
		ReadDelay:     cfg.ReadDelay(),
		WriteDelay:    cfg.WriteDelay(),
		RecoveryDelay: cfg.RecoveryDelay(),
		Observer:      ak09916.NewLogObserver(log),
	})
	return m.bringUp()
}

// bringUp runs Setup, optional fuse calibration and re-arms streaming.
func (m *MagManager) bringUp() error {
	if err := m.mag.Setup(); err != nil {
		return fmt.Errorf("magnetometer setup: %w", err)
	}
	if m.cfg.MagReadAdjustments {
		s, err := m.mag.ReadAdjustments()
		switch {
		case errors.Is(err, ak09916.ErrCalibrationInvalid):
			m.log.WithError(err).Warn("continuing with unit sensitivity")
		case err != nil:
			return fmt.Errorf("magnetometer calibration: %w", err)
		default:
			m.log.WithField("sensitivity", s).Info("fuse calibration read")
		}
		if err := m.mag.StartContinuous(); err != nil {
			return fmt.Errorf("magnetometer start: %w", err)
		}
	}
	return nil
}

func openHost(cfg *config.Config) (hostDevice, io.Closer, error) {
	if cfg.MagMock {
		return icmsim.New(icmsim.Options{External: cfg.ICMExternal, Temperature: 25}), nil, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	opts := &icm20948.Opts{
		External: cfg.ICMExternal,
		SPISpeed: physic.Frequency(cfg.ICMSPISpeedHz) * physic.Hertz,
	}

	switch cfg.ICMBus {
	case "spi":
		p, err := spireg.Open(cfg.ICMSPIDevice)
		if err != nil {
			return nil, nil, fmt.Errorf("open spi %q: %w", cfg.ICMSPIDevice, err)
		}
		d, err := icm20948.NewSPI(p, opts)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		return d, p, nil
	default:
		b, err := i2creg.Open(cfg.ICMI2CBus)
		if err != nil {
			return nil, nil, fmt.Errorf("open i2c %q: %w", cfg.ICMI2CBus, err)
		}
		d, err := icm20948.NewI2C(b, cfg.ICMI2CAddr, opts)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		return d, b, nil
	}
}

// Close releases the bus.
func (m *MagManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// IsAvailable reports whether Init succeeded.
func (m *MagManager) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mag != nil && m.mag.State() == ak09916.StateDone
}

// Source returns "mock", "i2c" or "spi".
func (m *MagManager) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Mag returns the driver, nil before Init.
func (m *MagManager) Mag() *ak09916.Mag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mag
}

// Sample refreshes the host temperature, fetches the streamed frame and
// hands it to the driver. accepted is false for frames without DRDY.
func (m *MagManager) Sample(ts time.Time) (f ak09916.Frame, accepted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mag == nil {
		return ak09916.Frame{}, false, ErrNotInitialized
	}
	if tu, ok := m.dev.(temperatureUpdater); ok {
		if _, err := tu.UpdateTemperature(); err != nil {
			m.log.WithError(err).Debug("temperature read failed, keeping last value")
		}
	}
	f, err = m.mag.ReadFrame()
	if err != nil {
		return f, false, err
	}
	return f, m.mag.Measure(ts, f), nil
}

// Reinit soft resets the magnetometer and runs the bring-up sequence again.
func (m *MagManager) Reinit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mag == nil {
		return ErrNotInitialized
	}
	if err := m.mag.Reset(); err != nil {
		return fmt.Errorf("magnetometer reset: %w", err)
	}
	return m.bringUp()
}

// Calibrate re-reads the fuse adjustment and resumes streaming.
func (m *MagManager) Calibrate() (ak09916.Sensitivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mag == nil {
		return ak09916.Sensitivity{}, ErrNotInitialized
	}
	s, err := m.mag.ReadAdjustments()
	if serr := m.mag.StartContinuous(); serr != nil && err == nil {
		err = serr
	}
	return s, err
}

// CanonicalAddress parses addr for device and returns it in the form used
// by the register maps.
func CanonicalAddress(device, addr string) (string, error) {
	switch device {
	case DeviceICM20948:
		r, err := icm20948.ParseReg(addr)
		if err != nil {
			return "", err
		}
		return r.String(), nil
	case DeviceAK09916:
		n, err := strconv.ParseUint(addr, 0, 8)
		if err != nil || n > 0x7F {
			return "", fmt.Errorf("invalid ak09916 register %q", addr)
		}
		return fmt.Sprintf("0x%02X", n), nil
	}
	return "", fmt.Errorf("unknown device %q", device)
}

// ReadRegister reads one register of device. AK09916 reads go through the
// bridge and re-arm the frame window afterwards in continuous mode.
func (m *MagManager) ReadRegister(device, addr string) (byte, error) {
	canon, err := CanonicalAddress(device, addr)
	if err != nil {
		return 0, err
	}
	info, ok := LookupRegister(device, canon)
	if !ok || !info.Readable() {
		return 0, fmt.Errorf("%s register %s is not readable", device, canon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mag == nil {
		return 0, ErrNotInitialized
	}
	return m.readLocked(device, canon)
}

func (m *MagManager) readLocked(device, canon string) (byte, error) {
	if device == DeviceICM20948 {
		r, _ := icm20948.ParseReg(canon)
		var b [1]byte
		err := m.dev.ReadRegs(r, b[:])
		return b[0], err
	}
	reg, _ := strconv.ParseUint(canon, 0, 8)
	v, err := m.mag.ReadReg(byte(reg))
	if err != nil {
		return 0, err
	}
	if err := m.mag.Resume(); err != nil {
		return v, fmt.Errorf("re-arm streaming: %w", err)
	}
	return v, nil
}

// ReadAllRegisters reads every readable register of device, keyed by address.
func (m *MagManager) ReadAllRegisters(device string) (map[string]byte, error) {
	regs := RegisterMap(device)
	if regs == nil {
		return nil, fmt.Errorf("unknown device %q", device)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mag == nil {
		return nil, ErrNotInitialized
	}
	out := make(map[string]byte, len(regs))
	for _, r := range regs {
		if !r.Readable() {
			continue
		}
		v, err := m.readLocked(device, r.Address)
		if err != nil {
			return out, fmt.Errorf("read %s %s: %w", device, r.Name, err)
		}
		out[r.Address] = v
	}
	return out, nil
}

// WriteRegister writes one register of device. Only registers marked
// writable in the register map are accepted. AK09916 writes to the mode
// registers change what Sample returns: outside continuous mode it fails
// with ak09916.ErrNotStreaming instead of repeating the last frame.
func (m *MagManager) WriteRegister(device, addr string, v byte) error {
	canon, err := CanonicalAddress(device, addr)
	if err != nil {
		return err
	}
	info, ok := LookupRegister(device, canon)
	if !ok || !info.Writable() {
		return fmt.Errorf("%s register %s is not writable", device, canon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mag == nil {
		return ErrNotInitialized
	}
	if device == DeviceICM20948 {
		r, _ := icm20948.ParseReg(canon)
		return m.dev.WriteReg(r, v)
	}
	reg, _ := strconv.ParseUint(canon, 0, 8)
	if err := m.mag.WriteReg(byte(reg), v); err != nil {
		return err
	}
	// Streaming resumes only if the write left the chip continuous.
	if err := m.mag.Resume(); err != nil {
		return fmt.Errorf("re-arm streaming: %w", err)
	}
	return nil
}
