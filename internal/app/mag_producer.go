// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/ak09916"
	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/mag"
	"github.com/relabs-tech/auxmag/internal/sensors"
)

// sampleStats counts what the sample loop saw between status publishes.
type sampleStats struct {
	mu        sync.Mutex
	notReady  uint64
	overruns  uint64
	overflows uint64
	errors    uint64
	lastErr   string
}

func (s *sampleStats) record(f ak09916.Frame, accepted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		s.lastErr = err.Error()
		return
	}
	if !accepted {
		s.notReady++
		return
	}
	if f.Overrun() {
		s.overruns++
	}
	if f.Overflow() {
		s.overflows++
	}
}

// status snapshots the counters together with the driver state.
func (s *sampleStats) status(now time.Time, source string, d *ak09916.Mag, pub *mag.Publisher) mag.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := mag.Status{
		Time:      now,
		Source:    source,
		NotReady:  s.notReady,
		Overruns:  s.overruns,
		Overflows: s.overflows,
		Errors:    s.errors,
		LastError: s.lastErr,
	}
	if d != nil {
		st.State = d.State().String()
		st.Mode = d.Mode().String()
		st.Attempts = d.Attempts()
		st.Sensitivity = d.Sensitivity()
	}
	if pub != nil {
		st.Published, _ = pub.Stats()
	}
	return st
}

// mqttPublish returns a PublishFunc sending samples as JSON to topic.
func mqttPublish(client mqtt.Client, topic string) mag.PublishFunc {
	return func(s mag.Sample) error {
		payload, err := json.Marshal(s)
		if err != nil {
			return err
		}
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		return token.Error()
	}
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// RunMagProducer brings the magnetometer up and publishes samples and a
// retained status record until SIGINT or SIGTERM.
func RunMagProducer() error {
	cfg := config.Get()
	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "mag-producer")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.WithField("broker", cfg.MQTTBroker).Info("connected to MQTT")

	pub := mag.NewPublisher(cfg.Source(), mqttPublish(client, cfg.TopicMag), log)

	mgr := sensors.GetMagManager()
	if err := mgr.Init(pub, log); err != nil {
		return err
	}
	defer mgr.Close()

	stats := &sampleStats{}
	publishStatus := func(now time.Time) {
		st := stats.status(now, mgr.Source(), mgr.Mag(), pub)
		payload, err := json.Marshal(st)
		if err != nil {
			log.WithError(err).Warn("marshal status")
			return
		}
		if token := client.Publish(cfg.TopicMagStatus, 0, true, payload); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Warn("publish status")
		}
	}
	publishStatus(time.Now())

	ticker := time.NewTicker(cfg.SampleInterval())
	defer ticker.Stop()
	statusTicker := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer statusTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.WithFields(logrus.Fields{
		"topic":    cfg.TopicMag,
		"interval": cfg.SampleInterval(),
	}).Info("starting sample loop")

	for {
		select {
		case t := <-ticker.C:
			f, ok, err := mgr.Sample(t)
			stats.record(f, ok, err)
			switch {
			case errors.Is(err, ak09916.ErrNotStreaming):
				// Powered down from the register debugger.
				log.WithError(err).Debug("sample")
			case err != nil:
				log.WithError(err).Warn("sample")
			}
		case t := <-statusTicker.C:
			publishStatus(t)
		case <-sigCh:
			log.Info("shutting down")
			publishStatus(time.Now())
			return nil
		}
	}
}
