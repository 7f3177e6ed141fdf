package mag

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestPublisherScalesSamples(t *testing.T) {
	var got []Sample
	p := NewPublisher("mock", func(s Sample) error {
		got = append(got, s)
		return nil
	}, nil)
	p.SetDeviceType(0x09)
	p.SetScale(1.5e-3)
	p.SetSensitivity(0.5, 1, 1.5)
	p.SetExternal(true)
	p.SetTemperature(24.5)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.Update(ts, 200, -100, -400)

	if len(got) != 1 {
		t.Fatalf("published %d samples", len(got))
	}
	s := got[0]
	want := Sample{
		Source: "mock", Time: ts,
		X: 0.15, Y: -0.15, Z: -0.9,
		RawX: 200, RawY: -100, RawZ: -400,
		Temperature: 24.5, External: true, DeviceType: 0x09,
	}
	for name, pair := range map[string][2]float64{
		"x": {s.X, want.X}, "y": {s.Y, want.Y}, "z": {s.Z, want.Z},
	} {
		if math.Abs(pair[0]-pair[1]) > 1e-12 {
			t.Errorf("%s = %v, want %v", name, pair[0], pair[1])
		}
	}
	if s.RawX != want.RawX || s.RawY != want.RawY || s.RawZ != want.RawZ {
		t.Errorf("raw = %v %v %v", s.RawX, s.RawY, s.RawZ)
	}
	if s.Source != want.Source || !s.Time.Equal(ts) || s.Temperature != want.Temperature || !s.External || s.DeviceType != 0x09 {
		t.Errorf("sample = %+v", s)
	}
	if wantNorm := math.Sqrt(0.15*0.15 + 0.15*0.15 + 0.9*0.9); math.Abs(s.Norm-wantNorm) > 1e-12 {
		t.Errorf("norm = %v, want %v", s.Norm, wantNorm)
	}
	if math.Abs(s.Heading-45) > 1e-9 {
		t.Errorf("heading = %v, want 45", s.Heading)
	}
	if last, ok := p.Last(); !ok || last != s {
		t.Errorf("Last() = %+v, %t", last, ok)
	}
	if pub, failed := p.Stats(); pub != 1 || failed != 0 {
		t.Errorf("stats = %d/%d", pub, failed)
	}
}

func TestPublisherDefaultsToUnitSensitivity(t *testing.T) {
	p := NewPublisher("i2c", nil, nil)
	if _, ok := p.Last(); ok {
		t.Fatal("Last() before any update")
	}
	p.Update(time.Now(), 3, 4, 0)
	s, ok := p.Last()
	if !ok || s.X != 3 || s.Y != 4 || s.Norm != 5 {
		t.Fatalf("sample = %+v", s)
	}
}

func TestPublisherCountsFailures(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	p := NewPublisher("spi", func(Sample) error { return errors.New("not connected") }, logger)

	p.Update(time.Now(), 1, 1, 1)
	p.Update(time.Now(), 1, 1, 1)

	if pub, failed := p.Stats(); pub != 0 || failed != 2 {
		t.Fatalf("stats = %d/%d, want 0/2", pub, failed)
	}
	if n := len(hook.AllEntries()); n != 2 {
		t.Fatalf("log entries = %d, want 2", n)
	}
	if hook.LastEntry().Level != logrus.WarnLevel {
		t.Errorf("level = %s", hook.LastEntry().Level)
	}
}
