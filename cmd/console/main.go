// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/app"
	"github.com/relabs-tech/auxmag/internal/config"
)

func main() {
	configPath := flag.String("config", "./auxmag_config.txt", "optional configuration file")
	flag.Parse()

	logrus.Info("starting auxmag (mock console)")

	if _, err := os.Stat(*configPath); err == nil {
		if err := config.InitGlobal(*configPath); err != nil {
			logrus.Fatalf("failed to load config: %v", err)
		}
	}

	if err := app.RunMockConsole(); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}
