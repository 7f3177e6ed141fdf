package mag

import "time"

// Sample is one calibrated magnetometer reading in host axes, as published
// on the mag topic.
type Sample struct {
	Source string    `json:"source"` // "i2c", "spi" or "mock"
	Time   time.Time `json:"time"`

	X float64 `json:"x"` // gauss
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	RawX float64 `json:"raw_x"` // LSB, after axis remap
	RawY float64 `json:"raw_y"`
	RawZ float64 `json:"raw_z"`

	Norm    float64 `json:"norm"`    // |B| in gauss
	Heading float64 `json:"heading"` // degrees, level sensor

	Temperature float64 `json:"temperature"` // host die, °C
	External    bool    `json:"external"`
	DeviceType  uint32  `json:"device_type"`
}

// Status is the retained producer health record.
type Status struct {
	Time        time.Time  `json:"time"`
	Source      string     `json:"source"`
	State       string     `json:"state"`
	Mode        string     `json:"mode"`
	Attempts    int        `json:"attempts"`
	Sensitivity [3]float64 `json:"sensitivity"`
	Published   uint64     `json:"published"`
	NotReady    uint64     `json:"not_ready"`
	Overruns    uint64     `json:"overruns"`
	Overflows   uint64     `json:"overflows"`
	Errors      uint64     `json:"errors"`
	LastError   string     `json:"last_error,omitempty"`
}
