// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package icmsim emulates an ICM-20948 with an AK09916 on its auxiliary bus.
//
// It executes I2C_SLV0 proxy transfers against a register-level model of the
// magnetometer, so the driver can run without hardware. It is used for
// MAG_MOCK runs and by tests, which can inspect the recorded operations.
package icmsim

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/auxmag/internal/ak09916"
	"github.com/relabs-tech/auxmag/internal/icm20948"
)

// Op is one host register operation seen by the simulator.
type Op struct {
	Kind  string // "write", "read", "modify", "modify-checked"
	Reg   icm20948.Reg
	Value byte // written value, or the set mask for modify
	Clear byte
	Len   int
}

func (o Op) String() string {
	switch o.Kind {
	case "write":
		return fmt.Sprintf("write %s=0x%02X", o.Reg, o.Value)
	case "read":
		return fmt.Sprintf("read %s[%d]", o.Reg, o.Len)
	}
	return fmt.Sprintf("%s %s clear=0x%02X set=0x%02X", o.Kind, o.Reg, o.Clear, o.Value)
}

// Field returns the magnetic field in chip axes (LSB) at time t.
type Field func(t time.Time) (x, y, z int16)

// Options configures the simulated chips.
type Options struct {
	External    bool
	Temperature float64
	// BadIDReads is the number of initial WIA2 reads that return a wrong ID.
	BadIDReads int
	// Fuse is the content of ASAX..ASAZ.
	Fuse [3]byte
	// NotReadyEvery clears DRDY on every n-th streamed frame. 0 never does.
	NotReadyEvery int
	// OverrunEvery sets DOR on every n-th streamed frame. 0 never does.
	OverrunEvery int
	Field        Field
	Now          func() time.Time
}

// DefaultFuse is a typical factory fuse content.
var DefaultFuse = [3]byte{0xB0, 0xB1, 0xA8}

// Host is a simulated ICM-20948. It implements ak09916.Host.
type Host struct {
	mu   sync.Mutex
	opts Options
	regs [4][128]byte
	fail error

	ak        [256]byte
	idReads   int
	frames    int
	ops       []Op
	resets    int
	mstResets int
	// violations counts SLV0 target writes while the proxy was enabled.
	violations int
}

// New returns a simulated host with the given options.
func New(o Options) *Host {
	if o.Field == nil {
		o.Field = RotatingField(time.Now())
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Fuse == ([3]byte{}) {
		o.Fuse = DefaultFuse
	}
	h := &Host{opts: o}
	h.regs[0][icm20948.WhoAmI.Addr()] = icm20948.WhoAmIValue
	h.resetAK()
	return h
}

// RotatingField is a horizontal field of about 0.3 gauss turning once a
// minute with a small constant downward component.
func RotatingField(start time.Time) Field {
	return func(t time.Time) (int16, int16, int16) {
		a := t.Sub(start).Seconds() * 2 * math.Pi / 60
		return int16(200 * math.Cos(a)), int16(200 * math.Sin(a)), -300
	}
}

// ConstantField always returns the same sample.
func ConstantField(x, y, z int16) Field {
	return func(time.Time) (int16, int16, int16) { return x, y, z }
}

func (h *Host) String() string { return "ICM20948{sim}" }

// SetFault makes every following operation fail with err. nil clears it.
func (h *Host) SetFault(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = err
}

// SetTemperature changes the reported die temperature.
func (h *Host) SetTemperature(c float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts.Temperature = c
}

// WriteReg implements ak09916.Host.
func (h *Host) WriteReg(r icm20948.Reg, v byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	h.record(Op{Kind: "write", Reg: r, Value: v})
	h.write(r, v)
	return nil
}

// ReadRegs implements ak09916.Host.
func (h *Host) ReadRegs(r icm20948.Reg, buf []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	h.record(Op{Kind: "read", Reg: r, Len: len(buf)})
	if r == icm20948.ExtSlvSensData {
		h.refreshWindow()
	}
	for i := range buf {
		a := int(r.Addr()) + i
		if a < len(h.regs[r.Bank()]) {
			buf[i] = h.regs[r.Bank()][a]
		}
	}
	return nil
}

// ModifyReg implements ak09916.Host.
func (h *Host) ModifyReg(r icm20948.Reg, clearBits, setBits byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	h.record(Op{Kind: "modify", Reg: r, Clear: clearBits, Value: setBits})
	h.write(r, h.regs[r.Bank()][r.Addr()]&^clearBits|setBits)
	return nil
}

// ModifyCheckedReg implements ak09916.Host.
func (h *Host) ModifyCheckedReg(r icm20948.Reg, clearBits, setBits byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	h.record(Op{Kind: "modify-checked", Reg: r, Clear: clearBits, Value: setBits})
	h.write(r, h.regs[r.Bank()][r.Addr()]&^clearBits|setBits)
	if got := h.regs[r.Bank()][r.Addr()]; got&(clearBits|setBits) != setBits {
		return fmt.Errorf("%w: %s=0x%02X", icm20948.ErrVerify, r, got)
	}
	return nil
}

// IsExternal implements ak09916.Host.
func (h *Host) IsExternal() bool { return h.opts.External }

// Temperature implements ak09916.Host.
func (h *Host) Temperature() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts.Temperature
}

// Reg returns the current value of a host register.
func (h *Host) Reg(r icm20948.Reg) byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.regs[r.Bank()][r.Addr()]
}

// AKReg returns the current value of a magnetometer register.
func (h *Host) AKReg(reg byte) byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ak[reg]
}

// Ops returns a copy of the recorded operations.
func (h *Host) Ops() []Op {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Op(nil), h.ops...)
}

// ClearOps forgets the recorded operations.
func (h *Host) ClearOps() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = nil
}

// SoftResets is the number of CNTL3 soft resets the magnetometer received.
func (h *Host) SoftResets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resets
}

// MasterResets is the number of USER_CTRL I2C_MST_RST requests.
func (h *Host) MasterResets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mstResets
}

// Violations is the number of SLV0 target writes made while SLV0 was enabled.
func (h *Host) Violations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.violations
}

func (h *Host) slv0Enabled() bool {
	return h.regs[3][icm20948.I2CSlv0Ctrl.Addr()]&icm20948.BitI2CSlvEn != 0
}

func (h *Host) masterEnabled() bool {
	return h.regs[0][icm20948.UserCtrl.Addr()]&icm20948.BitI2CMstEn != 0
}

func (h *Host) write(r icm20948.Reg, v byte) {
	switch r {
	case icm20948.I2CSlv0Addr, icm20948.I2CSlv0Reg, icm20948.I2CSlv0DO:
		if h.slv0Enabled() {
			h.violations++
		}
	case icm20948.UserCtrl:
		if v&icm20948.BitI2CMstRst != 0 {
			h.mstResets++
			// Self clearing.
			v &^= icm20948.BitI2CMstRst
		}
	}
	h.regs[r.Bank()][r.Addr()] = v

	if r == icm20948.I2CSlv0Ctrl && h.slv0Enabled() {
		h.runSlv0Write()
	}
}

// runSlv0Write performs a proxied write as soon as SLV0 is enabled.
func (h *Host) runSlv0Write() {
	addr := h.regs[3][icm20948.I2CSlv0Addr.Addr()]
	if !h.masterEnabled() || addr&icm20948.BitI2CSlvRead != 0 || addr&0x7F != ak09916.I2CAddr {
		return
	}
	reg := h.regs[3][icm20948.I2CSlv0Reg.Addr()]
	h.akWrite(reg, h.regs[3][icm20948.I2CSlv0DO.Addr()])
}

// refreshWindow performs the enabled proxied read into EXT_SLV_SENS_DATA,
// the way the host master does on every sample.
func (h *Host) refreshWindow() {
	addr := h.regs[3][icm20948.I2CSlv0Addr.Addr()]
	if !h.slv0Enabled() || !h.masterEnabled() || addr&icm20948.BitI2CSlvRead == 0 || addr&0x7F != ak09916.I2CAddr {
		return
	}
	reg := h.regs[3][icm20948.I2CSlv0Reg.Addr()]
	n := int(h.regs[3][icm20948.I2CSlv0Ctrl.Addr()] & icm20948.MaskI2CSlvLen)
	if reg == ak09916.RegST1 {
		h.sample()
	}
	base := int(icm20948.ExtSlvSensData.Addr())
	for i := 0; i < n; i++ {
		h.regs[0][base+i] = h.akRead(reg + byte(i))
	}
}

func (h *Host) resetAK() {
	h.ak = [256]byte{}
	h.ak[ak09916.RegWIA1] = 0x48
	h.ak[ak09916.RegWIA2] = ak09916.DeviceID
}

func (h *Host) akWrite(reg, v byte) {
	switch reg {
	case ak09916.RegCNTL3:
		if v&ak09916.CNTL3SoftReset != 0 {
			h.resets++
			h.resetAK()
		}
	case ak09916.RegCNTL1, ak09916.RegCNTL2:
		h.ak[reg] = v
	}
}

func (h *Host) akRead(reg byte) byte {
	switch {
	case reg == ak09916.RegWIA2:
		h.idReads++
		if h.idReads <= h.opts.BadIDReads {
			return 0x00
		}
		return ak09916.DeviceID
	case reg >= ak09916.RegASAX && reg <= ak09916.RegASAZ:
		if h.ak[ak09916.RegCNTL1]&0x0F != ak09916.CNTL1FuseROM {
			return 0x00
		}
		return h.opts.Fuse[reg-ak09916.RegASAX]
	}
	return h.ak[reg]
}

// sample latches a new measurement into ST1..ST2 when running continuously.
func (h *Host) sample() {
	if h.ak[ak09916.RegCNTL2] == ak09916.CNTL2PowerDown {
		h.ak[ak09916.RegST1] = 0
		return
	}
	h.frames++
	st1 := byte(ak09916.BitST1DRDY)
	if n := h.opts.NotReadyEvery; n > 0 && h.frames%n == 0 {
		st1 = 0
	}
	if n := h.opts.OverrunEvery; n > 0 && h.frames%n == 0 {
		st1 |= ak09916.BitST1DOR
	}
	x, y, z := h.opts.Field(h.opts.Now())
	h.ak[ak09916.RegST1] = st1
	binary.LittleEndian.PutUint16(h.ak[ak09916.RegHXL:], uint16(x))
	binary.LittleEndian.PutUint16(h.ak[ak09916.RegHYL:], uint16(y))
	binary.LittleEndian.PutUint16(h.ak[ak09916.RegHZL:], uint16(z))
	h.ak[ak09916.RegTMPS] = 0
	h.ak[ak09916.RegST2] = 0
	if abs(x) > hoflLimit || abs(y) > hoflLimit || abs(z) > hoflLimit {
		h.ak[ak09916.RegST2] = ak09916.BitST2HOFL
	}
}

// maxOps bounds the operation log of long running simulations.
const maxOps = 1 << 14

func (h *Host) record(op Op) {
	if len(h.ops) >= maxOps {
		h.ops = append(h.ops[:0], h.ops[maxOps/2:]...)
	}
	h.ops = append(h.ops, op)
}

// hoflLimit is the ±4912 µT measurement range in LSB.
const hoflLimit = 32752

func abs(v int16) int {
	if v < 0 {
		return -int(v)
	}
	return int(v)
}
