// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mag turns driver callbacks into published samples.
package mag

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/heading"
)

// PublishFunc delivers a finished sample, typically to MQTT.
type PublishFunc func(Sample) error

// Publisher implements ak09916.Sink. Update scales the raw counts by the fuse
// sensitivity and the device scale and hands the sample to the PublishFunc.
type Publisher struct {
	mu          sync.Mutex
	source      string
	publish     PublishFunc
	log         logrus.FieldLogger
	deviceType  uint32
	scale       float64
	sensitivity [3]float64
	external    bool
	temperature float64

	last      Sample
	published uint64
	failed    uint64
}

// NewPublisher returns a Publisher tagging samples with source.
// A nil publish only keeps the last sample.
func NewPublisher(source string, publish PublishFunc, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{
		source:      source,
		publish:     publish,
		log:         log,
		scale:       1,
		sensitivity: [3]float64{1, 1, 1},
	}
}

func (p *Publisher) SetDeviceType(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deviceType = id
}

func (p *Publisher) SetScale(gaussPerLSB float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scale = gaussPerLSB
}

func (p *Publisher) SetSensitivity(x, y, z float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sensitivity = [3]float64{x, y, z}
	p.log.WithFields(logrus.Fields{"x": x, "y": y, "z": z}).Info("sensitivity adjustment applied")
}

func (p *Publisher) SetExternal(external bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.external = external
}

func (p *Publisher) SetTemperature(celsius float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.temperature = celsius
}

// Update builds and publishes a sample. Publish errors are counted and
// logged, never returned.
func (p *Publisher) Update(ts time.Time, x, y, z float64) {
	p.mu.Lock()
	s := Sample{
		Source:      p.source,
		Time:        ts,
		RawX:        x,
		RawY:        y,
		RawZ:        z,
		X:           x * p.sensitivity[0] * p.scale,
		Y:           y * p.sensitivity[1] * p.scale,
		Z:           z * p.sensitivity[2] * p.scale,
		Temperature: p.temperature,
		External:    p.external,
		DeviceType:  p.deviceType,
	}
	s.Norm = math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	s.Heading = heading.FromField(s.X, s.Y)
	p.last = s
	publish := p.publish
	p.mu.Unlock()

	if publish == nil {
		return
	}
	err := publish(s)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		p.log.WithError(err).Warn("publish sample")
		return
	}
	p.published++
}

// Last returns the most recent sample and whether there is one.
func (p *Publisher) Last() (Sample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, !p.last.Time.IsZero()
}

// Stats returns the number of delivered and failed publishes.
func (p *Publisher) Stats() (published, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}
