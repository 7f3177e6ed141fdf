package ak09916

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/relabs-tech/auxmag/internal/icm20948"
)

// Frame is one ST1..ST2 window in chip axes.
type Frame struct {
	ST1     byte
	X, Y, Z int16
	TMPS    byte
	ST2     byte
}

// ParseFrame decodes a window starting at ST1. Axis words are little-endian.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < FrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes, want %d", ErrShortFrame, len(b), FrameSize)
	}
	return Frame{
		ST1:  b[0],
		X:    int16(binary.LittleEndian.Uint16(b[1:])),
		Y:    int16(binary.LittleEndian.Uint16(b[3:])),
		Z:    int16(binary.LittleEndian.Uint16(b[5:])),
		TMPS: b[7],
		ST2:  b[8],
	}, nil
}

// Ready reports ST1 DRDY.
func (f Frame) Ready() bool { return f.ST1&BitST1DRDY != 0 }

// Overrun reports ST1 DOR: a sample was skipped before this one.
func (f Frame) Overrun() bool { return f.ST1&BitST1DOR != 0 }

// Overflow reports ST2 HOFL: the field exceeded the measurement range.
func (f Frame) Overflow() bool { return f.ST2&BitST2HOFL != 0 }

// ReadFrame fetches the auto-refreshed window from EXT_SLV_SENS_DATA_00.
// The bridge must be streaming ST1..ST2, as left by Setup, StartContinuous
// or Resume. Otherwise the window holds whatever was latched last and
// ReadFrame returns ErrNotStreaming without touching the bus.
func (m *Mag) ReadFrame() (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bridge.cfg.streaming() {
		return Frame{}, fmt.Errorf("%w: %s", ErrNotStreaming, m.bridge.cfg)
	}
	var buf [FrameSize]byte
	if err := m.host.ReadRegs(icm20948.ExtSlvSensData, buf[:]); err != nil {
		return Frame{}, fmt.Errorf("ak09916: read frame: %w", err)
	}
	return ParseFrame(buf[:])
}

// Measure forwards a ready frame to the sink, remapped to the host axes as
// (y, x, -z). Frames without DRDY are dropped and Measure returns false.
func (m *Mag) Measure(ts time.Time, f Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !f.Ready() {
		m.opts.Observer.NotReady()
		return false
	}
	m.sink.SetExternal(m.host.IsExternal())
	m.sink.SetTemperature(m.host.Temperature())
	m.sink.Update(ts, float64(f.Y), float64(f.X), -float64(f.Z))
	return true
}
