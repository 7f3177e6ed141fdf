// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/mag"
	"github.com/relabs-tech/auxmag/internal/sensors"
)

// RunMockConsole runs the driver against the simulated ICM-20948 in process
// and prints every sample. No broker is needed.
func RunMockConsole() error {
	cfg := *config.Default()
	if c := config.Get(); c != nil {
		cfg = *c
	}
	cfg.MagMock = true
	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "mock-console")

	pub := mag.NewPublisher(cfg.Source(), func(s mag.Sample) error {
		fmt.Println(formatSample(s))
		return nil
	}, log)

	mgr := sensors.GetMagManager()
	if err := mgr.InitWith(&cfg, pub, log); err != nil {
		return err
	}
	defer mgr.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case t := <-ticker.C:
			if _, _, err := mgr.Sample(t); err != nil {
				return err
			}
		case <-sigCh:
			return nil
		}
	}
}
