package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/app"
	"github.com/relabs-tech/auxmag/internal/config"
)

func main() {
	configPath := flag.String("config", "./auxmag_config.txt", "path to configuration file")
	flag.Parse()

	logrus.Info("starting auxmag console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}
