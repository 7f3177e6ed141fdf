package icm20948

import "testing"

func TestRegString(t *testing.T) {
	if got := I2CSlv0Ctrl.String(); got != "B3:0x05" {
		t.Errorf("String() = %q", got)
	}
	if I2CSlv0Ctrl.Bank() != 3 || I2CSlv0Ctrl.Addr() != 0x05 {
		t.Errorf("bank/addr = %d/0x%02X", I2CSlv0Ctrl.Bank(), I2CSlv0Ctrl.Addr())
	}
}

func TestParseReg(t *testing.T) {
	for in, want := range map[string]Reg{
		"B3:0x05": I2CSlv0Ctrl,
		"b0:0x3B": ExtSlvSensData,
		"0x03":    UserCtrl,
		"B3:1":    I2CMstCtrl,
	} {
		got, err := ParseReg(in)
		if err != nil || got != want {
			t.Errorf("ParseReg(%q) = %s, %v, want %s", in, got, err, want)
		}
	}
	for _, in := range []string{"", "B4:0x01", "X3:0x01", "B3:0x80", "0x1FF", "B:0x01"} {
		if _, err := ParseReg(in); err == nil {
			t.Errorf("ParseReg(%q) succeeded", in)
		}
	}
	for _, r := range []Reg{WhoAmI, UserCtrl, TempOutH, I2CSlv0DO, I2CMstODRConfig} {
		if got, err := ParseReg(r.String()); err != nil || got != r {
			t.Errorf("round trip %s = %s, %v", r, got, err)
		}
	}
}
