package ak09916

import (
	"errors"
	"testing"

	"github.com/relabs-tech/auxmag/internal/icm20948"
)

type writeLog struct {
	regs []icm20948.Reg
	vals []byte
	fail error
}

func (w *writeLog) WriteReg(r icm20948.Reg, v byte) error {
	if w.fail != nil {
		return w.fail
	}
	w.regs = append(w.regs, r)
	w.vals = append(w.vals, v)
	return nil
}
func (w *writeLog) ReadRegs(icm20948.Reg, []byte) error             { return nil }
func (w *writeLog) ModifyReg(icm20948.Reg, byte, byte) error        { return nil }
func (w *writeLog) ModifyCheckedReg(icm20948.Reg, byte, byte) error { return nil }
func (w *writeLog) IsExternal() bool                                { return false }
func (w *writeLog) Temperature() float64                            { return 0 }

func TestBridgeConfigRefusesRetargetWhileEnabled(t *testing.T) {
	c := BridgeConfig{Addr: I2CAddr, Reg: RegST1, Size: FrameSize, Enabled: true}
	if err := c.retarget(RegWIA2, 1, Read); !errors.Is(err, ErrBridgeBusy) {
		t.Fatalf("err = %v, want ErrBridgeBusy", err)
	}
	if c.Reg != RegST1 || c.Size != FrameSize {
		t.Fatalf("config changed: %s", c)
	}

	c.Enabled = false
	if err := c.retarget(RegWIA2, 1, Read); err != nil {
		t.Fatal(err)
	}
	if c.Reg != RegWIA2 || c.Size != 1 {
		t.Fatalf("config = %s", c)
	}
}

func TestBridgeBeginValidates(t *testing.T) {
	for _, tc := range []struct {
		reg  byte
		size int
		want error
	}{
		{RegST1, 0, ErrTransferSize},
		{RegST1, FrameSize + 1, ErrTransferSize},
		{0x80, 1, ErrRegisterRange},
	} {
		h := &writeLog{}
		b := &Bridge{host: h}
		if err := b.Begin(tc.reg, tc.size, nil); !errors.Is(err, tc.want) {
			t.Errorf("Begin(0x%02X, %d) = %v, want %v", tc.reg, tc.size, err, tc.want)
		}
		if len(h.regs) != 0 {
			t.Errorf("Begin(0x%02X, %d) wrote %v", tc.reg, tc.size, h.regs)
		}
	}
}

func TestBridgeBeginOrder(t *testing.T) {
	h := &writeLog{}
	b := &Bridge{host: h}
	v := byte(0x08)
	if err := b.Begin(RegCNTL2, 1, &v); err != nil {
		t.Fatal(err)
	}
	wantRegs := []icm20948.Reg{icm20948.I2CSlv0Ctrl, icm20948.I2CSlv0DO, icm20948.I2CSlv0Addr, icm20948.I2CSlv0Reg, icm20948.I2CSlv0Ctrl}
	wantVals := []byte{0x00, 0x08, 0x0C, 0x31, 0x81}
	for i := range wantRegs {
		if h.regs[i] != wantRegs[i] || h.vals[i] != wantVals[i] {
			t.Errorf("write %d = %s=0x%02X, want %s=0x%02X", i, h.regs[i], h.vals[i], wantRegs[i], wantVals[i])
		}
	}
	if cfg := b.Config(); !cfg.Enabled || cfg.Dir != Write {
		t.Errorf("config = %s", cfg)
	}
}

func TestBridgeDisableFailureKeepsEnabled(t *testing.T) {
	h := &writeLog{}
	b := &Bridge{host: h}
	if err := b.Begin(RegST1, FrameSize, nil); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("nak")
	h.fail = boom
	if err := b.Disable(); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !b.Config().Enabled {
		t.Fatal("bridge marked disabled after a failed write")
	}
	if err := b.Begin(RegWIA2, 1, nil); !errors.Is(err, boom) {
		t.Fatalf("Begin err = %v, want the disable failure", err)
	}
	if b.Config().Reg != RegST1 {
		t.Fatalf("retargeted to 0x%02X while enabled", b.Config().Reg)
	}
}
