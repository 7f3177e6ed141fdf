package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/relabs-tech/auxmag/internal/ak09916"
	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/mag"
)

func mockConfig() *config.Config {
	cfg := config.Default()
	cfg.MQTTBroker = "tcp://localhost:1883"
	cfg.MagMock = true
	cfg.ICMExternal = true
	return cfg
}

func newMockManager(t *testing.T) (*MagManager, *mag.Publisher) {
	t.Helper()
	log, _ := test.NewNullLogger()
	pub := mag.NewPublisher("mock", func(mag.Sample) error { return nil }, log)
	m := &MagManager{}
	if err := m.InitWith(mockConfig(), pub, log); err != nil {
		t.Fatalf("InitWith: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, pub
}

func TestMagManagerUninitialized(t *testing.T) {
	m := &MagManager{}
	if m.IsAvailable() {
		t.Fatal("IsAvailable() = true before Init")
	}
	if _, _, err := m.Sample(time.Now()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Sample err = %v, want ErrNotInitialized", err)
	}
	if err := m.Reinit(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Reinit err = %v, want ErrNotInitialized", err)
	}
	if err := m.InitWith(nil, nil, nil); err == nil {
		t.Fatal("InitWith(nil) succeeded")
	}
}

func TestMagManagerMockInit(t *testing.T) {
	m, _ := newMockManager(t)

	if !m.IsAvailable() {
		t.Fatal("IsAvailable() = false after Init")
	}
	if m.Source() != "mock" {
		t.Fatalf("Source() = %q, want mock", m.Source())
	}
	d := m.Mag()
	if d.Mode() != ak09916.ModeContinuous {
		t.Fatalf("mode = %s, want continuous", d.Mode())
	}
	want := ak09916.Sensitivity{1.1875, 1.19140625, 1.15625}
	if got := d.Sensitivity(); got != want {
		t.Fatalf("sensitivity = %v, want %v", got, want)
	}
	cfg := d.BridgeConfig()
	if !cfg.Enabled || cfg.Reg != ak09916.RegST1 || cfg.Size != ak09916.FrameSize {
		t.Fatalf("bridge = %s, want streaming window from ST1", cfg)
	}
}

func TestMagManagerSample(t *testing.T) {
	m, pub := newMockManager(t)

	ts := time.Unix(1700000000, 0)
	f, ok, err := m.Sample(ts)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if !ok || !f.Ready() {
		t.Fatalf("frame not accepted: %+v", f)
	}
	s, ok := pub.Last()
	if !ok {
		t.Fatal("publisher got no sample")
	}
	if !s.Time.Equal(ts) || !s.External || s.Source != "mock" {
		t.Fatalf("sample = %+v", s)
	}
	if s.RawX != float64(f.Y) || s.RawY != float64(f.X) || s.RawZ != -float64(f.Z) {
		t.Fatalf("raw = (%v,%v,%v), frame = %+v", s.RawX, s.RawY, s.RawZ, f)
	}
}

func TestMagManagerRegisterAccess(t *testing.T) {
	m, _ := newMockManager(t)

	id, err := m.ReadRegister(DeviceAK09916, "0x01")
	if err != nil {
		t.Fatalf("read WIA2: %v", err)
	}
	if id != ak09916.DeviceID {
		t.Fatalf("WIA2 = 0x%02X, want 0x%02X", id, ak09916.DeviceID)
	}
	// Register reads must not stop streaming.
	if got := m.Mag().BridgeConfig(); !got.Enabled || got.Reg != ak09916.RegST1 {
		t.Fatalf("bridge after read = %s", got)
	}

	who, err := m.ReadRegister(DeviceICM20948, "b0:0x00")
	if err != nil {
		t.Fatalf("read WHO_AM_I: %v", err)
	}
	if who != 0xEA {
		t.Fatalf("WHO_AM_I = 0x%02X", who)
	}

	if err := m.WriteRegister(DeviceAK09916, "0x01", 0); err == nil {
		t.Fatal("write to read-only WIA2 succeeded")
	}
	if _, err := m.ReadRegister(DeviceAK09916, "0x7A"); err == nil {
		t.Fatal("read of unmapped register succeeded")
	}
	if _, err := m.ReadRegister("bmp280", "0x00"); err == nil {
		t.Fatal("read from unknown device succeeded")
	}

	if err := m.WriteRegister(DeviceAK09916, "0x31", ak09916.CNTL2PowerDown); err != nil {
		t.Fatalf("write CNTL2: %v", err)
	}
	if v, err := m.ReadRegister(DeviceAK09916, "0x31"); err != nil || v != ak09916.CNTL2PowerDown {
		t.Fatalf("CNTL2 = 0x%02X, %v", v, err)
	}
}

func TestMagManagerReadAllRegisters(t *testing.T) {
	m, _ := newMockManager(t)

	regs, err := m.ReadAllRegisters(DeviceAK09916)
	if err != nil {
		t.Fatalf("ReadAllRegisters: %v", err)
	}
	if regs["0x00"] != 0x48 || regs["0x01"] != ak09916.DeviceID {
		t.Fatalf("WIA = 0x%02X 0x%02X", regs["0x00"], regs["0x01"])
	}
	if _, err := m.ReadAllRegisters("nope"); err == nil {
		t.Fatal("unknown device accepted")
	}
}

func TestMagManagerReinit(t *testing.T) {
	m, _ := newMockManager(t)

	if err := m.Reinit(); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	if m.Mag().Mode() != ak09916.ModeContinuous || !m.IsAvailable() {
		t.Fatalf("after Reinit: mode %s state %s", m.Mag().Mode(), m.Mag().State())
	}
	if _, ok, err := m.Sample(time.Now()); err != nil || !ok {
		t.Fatalf("Sample after Reinit: ok=%v err=%v", ok, err)
	}
}

func TestCanonicalAddress(t *testing.T) {
	tests := []struct {
		device, in, want string
		ok               bool
	}{
		{DeviceICM20948, "B3:0x05", "B3:0x05", true},
		{DeviceICM20948, "0x3b", "B0:0x3B", true},
		{DeviceICM20948, "B4:0x00", "", false},
		{DeviceAK09916, "0x10", "0x10", true},
		{DeviceAK09916, "49", "0x31", true},
		{DeviceAK09916, "0x80", "", false},
		{"x", "0x00", "", false},
	}
	for _, tt := range tests {
		got, err := CanonicalAddress(tt.device, tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("CanonicalAddress(%q, %q) = %q, %v", tt.device, tt.in, got, err)
		}
	}
}

func TestMagManagerModeWritesStopStaleFrames(t *testing.T) {
	m, pub := newMockManager(t)

	t0 := time.Unix(1700000000, 0)
	if _, ok, err := m.Sample(t0); err != nil || !ok {
		t.Fatalf("first Sample: ok=%v err=%v", ok, err)
	}

	if err := m.WriteRegister(DeviceAK09916, "0x31", ak09916.CNTL2PowerDown); err != nil {
		t.Fatalf("write CNTL2: %v", err)
	}
	if got := m.Mag().Mode(); got != ak09916.ModePowerDown {
		t.Fatalf("mode after power-down write = %s", got)
	}
	for i := 1; i <= 3; i++ {
		_, ok, err := m.Sample(t0.Add(time.Duration(i) * time.Second))
		if !errors.Is(err, ak09916.ErrNotStreaming) || ok {
			t.Fatalf("Sample %d while powered down: ok=%v err=%v", i, ok, err)
		}
	}
	if s, _ := pub.Last(); !s.Time.Equal(t0) {
		t.Fatalf("a frame was published while powered down: %v", s.Time)
	}

	// Back to continuous at 50 Hz: streaming resumes at that rate.
	if err := m.WriteRegister(DeviceAK09916, "0x31", ak09916.CNTL2Continuous50Hz); err != nil {
		t.Fatalf("write CNTL2: %v", err)
	}
	t1 := t0.Add(time.Minute)
	if _, ok, err := m.Sample(t1); err != nil || !ok {
		t.Fatalf("Sample after resume: ok=%v err=%v", ok, err)
	}
	if s, _ := pub.Last(); !s.Time.Equal(t1) {
		t.Fatalf("last sample time = %v, want %v", s.Time, t1)
	}
	if got, err := m.ReadRegister(DeviceAK09916, "0x31"); err != nil || got != ak09916.CNTL2Continuous50Hz {
		t.Fatalf("CNTL2 = 0x%02X, %v", got, err)
	}
	if cfg := m.Mag().BridgeConfig(); !cfg.Enabled || cfg.Reg != ak09916.RegST1 {
		t.Fatalf("bridge = %s", cfg)
	}
}

func TestMagManagerRefusesProxyWrites(t *testing.T) {
	m, _ := newMockManager(t)
	before := m.Mag().BridgeConfig()

	for _, addr := range []string{"B3:0x03", "B3:0x04", "B3:0x05", "B3:0x06"} {
		if err := m.WriteRegister(DeviceICM20948, addr, 0); err == nil {
			t.Errorf("write to %s accepted", addr)
		}
		if _, err := m.ReadRegister(DeviceICM20948, addr); err != nil {
			t.Errorf("read %s: %v", addr, err)
		}
	}
	if got := m.Mag().BridgeConfig(); got != before {
		t.Fatalf("bridge changed: %s -> %s", before, got)
	}
	if v, err := m.ReadRegister(DeviceICM20948, "B3:0x05"); err != nil || v != 0x89 {
		t.Fatalf("SLV0_CTRL = 0x%02X, %v", v, err)
	}
}
