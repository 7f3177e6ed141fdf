package icm20948

import (
	"errors"
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

// regBus is an i2c.Bus backed by a banked register file.
type regBus struct {
	bank    byte
	regs    [4][128]byte
	bankSel int
	failTx  error
	// sticky bits are forced clear after every write
	sticky map[Reg]byte
}

func newRegBus() *regBus {
	b := &regBus{sticky: map[Reg]byte{}}
	b.regs[0][WhoAmI.Addr()] = WhoAmIValue
	return b
}

func (b *regBus) String() string                    { return "regbus" }
func (b *regBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *regBus) Tx(addr uint16, w, r []byte) error {
	if b.failTx != nil {
		return b.failTx
	}
	if len(w) == 0 {
		return errors.New("empty write")
	}
	a := w[0] & 0x7F
	if a == regBankSel {
		if len(w) == 2 {
			b.bank = w[1] >> 4
			b.bankSel++
		}
		return nil
	}
	if len(w) > 1 {
		for i, v := range w[1:] {
			b.regs[b.bank][int(a)+i] = v &^ b.sticky[Reg(uint16(b.bank)<<8|uint16(a)+uint16(i))]
		}
		if a == PwrMgmt1.Addr() && b.bank == 0 && w[1]&BitHReset != 0 {
			b.bank = 0
			b.regs[0][PwrMgmt1.Addr()] = BitSleep | ClkSelAuto
		}
	}
	for i := range r {
		r[i] = b.regs[b.bank][int(a)+i]
	}
	return nil
}

func newTestDev(t *testing.T, b *regBus) *Dev {
	t.Helper()
	old := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = old })
	d, err := NewI2C(b, 0, &Opts{External: true})
	if err != nil {
		t.Fatalf("NewI2C: %v", err)
	}
	return d
}

func TestNewI2CWakesChip(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)

	if got := b.regs[0][PwrMgmt1.Addr()]; got != ClkSelAuto {
		t.Fatalf("PWR_MGMT_1 = 0x%02X, want 0x%02X", got, ClkSelAuto)
	}
	if got := b.regs[0][PwrMgmt2.Addr()]; got != 0 {
		t.Fatalf("PWR_MGMT_2 = 0x%02X, want 0", got)
	}
	if !d.IsExternal() {
		t.Fatal("IsExternal() = false, want true")
	}
	if d.String() != "ICM20948{i2c}" {
		t.Fatalf("String() = %q", d.String())
	}
}

func TestNewI2CWrongWhoAmI(t *testing.T) {
	b := newRegBus()
	b.regs[0][WhoAmI.Addr()] = 0x71

	old := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = old }()

	_, err := NewI2C(b, 0, nil)
	if !errors.Is(err, ErrWhoAmI) {
		t.Fatalf("err = %v, want ErrWhoAmI", err)
	}
}

func TestBankSelectionIsCached(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)
	before := b.bankSel

	for _, step := range []struct {
		r Reg
		v byte
	}{
		{I2CSlv0Addr, 0x8C},
		{I2CSlv0Reg, 0x10},
		{I2CSlv0Ctrl, 0x89},
		{UserCtrl, BitI2CMstEn},
		{I2CMstCtrl, 0x17},
	} {
		if err := d.WriteReg(step.r, step.v); err != nil {
			t.Fatalf("WriteReg(%s): %v", step.r, err)
		}
	}
	// 0 -> 3, 3 -> 0, 0 -> 3
	if got := b.bankSel - before; got != 3 {
		t.Fatalf("bank switches = %d, want 3", got)
	}
	if got := b.regs[3][I2CSlv0Ctrl.Addr()]; got != 0x89 {
		t.Fatalf("SLV0_CTRL = 0x%02X, want 0x89", got)
	}
	if got := b.regs[0][UserCtrl.Addr()]; got != BitI2CMstEn {
		t.Fatalf("USER_CTRL = 0x%02X", got)
	}
}

func TestModifyReg(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)
	b.regs[0][UserCtrl.Addr()] = BitFIFOEn | BitI2CMstEn

	if err := d.ModifyReg(UserCtrl, BitI2CMstEn, BitI2CMstRst); err != nil {
		t.Fatal(err)
	}
	if got, want := b.regs[0][UserCtrl.Addr()], byte(BitFIFOEn|BitI2CMstRst); got != want {
		t.Fatalf("USER_CTRL = 0x%02X, want 0x%02X", got, want)
	}
}

func TestModifyCheckedReg(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)

	if err := d.ModifyCheckedReg(UserCtrl, 0, BitI2CMstEn); err != nil {
		t.Fatalf("ModifyCheckedReg: %v", err)
	}

	b.sticky[UserCtrl] = BitI2CMstEn
	b.regs[0][UserCtrl.Addr()] = 0
	err := d.ModifyCheckedReg(UserCtrl, 0, BitI2CMstEn)
	if !errors.Is(err, ErrVerify) {
		t.Fatalf("err = %v, want ErrVerify", err)
	}
}

func TestReadRegsBurst(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)
	for i := 0; i < ExtSensDataLen; i++ {
		b.regs[0][int(ExtSlvSensData.Addr())+i] = byte(i + 1)
	}
	buf := make([]byte, 9)
	if err := d.ReadRegs(ExtSlvSensData, buf); err != nil {
		t.Fatal(err)
	}
	for i, v := range buf {
		if v != byte(i+1) {
			t.Fatalf("buf[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestUpdateTemperature(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)
	// 3339 / 333.87 ~ 10.0011 °C above the 21 °C offset.
	b.regs[0][TempOutH.Addr()] = 0x0D
	b.regs[0][TempOutL.Addr()] = 0x0B

	got, err := d.UpdateTemperature()
	if err != nil {
		t.Fatal(err)
	}
	want := 3339/333.87 + 21
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("temperature = %v, want %v", got, want)
	}
	if d.Temperature() != got {
		t.Fatalf("Temperature() = %v, want cached %v", d.Temperature(), got)
	}
}

func TestTxErrorsAreWrapped(t *testing.T) {
	b := newRegBus()
	d := newTestDev(t, b)
	boom := errors.New("bus stuck")
	b.failTx = boom

	if err := d.WriteReg(I2CSlv0Ctrl, 0); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	// Failed bank select must force a reselect later.
	if d.bank != 0xFF {
		t.Fatalf("bank cache = %d, want invalidated", d.bank)
	}
}
