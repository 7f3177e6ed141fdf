package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/heading"
	"github.com/relabs-tech/auxmag/internal/mag"
)

var (
	tagMag    = color.New(color.FgCyan, color.Bold).SprintFunc()
	tagStatus = color.New(color.FgMagenta, color.Bold).SprintFunc()
	warnText  = color.New(color.FgYellow).SprintFunc()
	errText   = color.New(color.FgRed).SprintFunc()
)

func formatSample(s mag.Sample) string {
	return fmt.Sprintf(
		"%s x=%+7.4f y=%+7.4f z=%+7.4f |B|=%6.4f G  heading=%5.1f° %-2s  T=%5.1f°C",
		tagMag("[MAG ]"), s.X, s.Y, s.Z, s.Norm, s.Heading, heading.Cardinal(s.Heading), s.Temperature,
	)
}

func formatStatus(st mag.Status) string {
	state := st.State
	if state == "failed" {
		state = errText(state)
	} else if state != "done" {
		state = warnText(state)
	}
	line := fmt.Sprintf(
		"%s source=%s state=%s mode=%s attempts=%d asa=(%.4f,%.4f,%.4f) published=%d not_ready=%d overruns=%d overflows=%d errors=%d",
		tagStatus("[STAT]"), st.Source, state, st.Mode, st.Attempts,
		st.Sensitivity[0], st.Sensitivity[1], st.Sensitivity[2],
		st.Published, st.NotReady, st.Overruns, st.Overflows, st.Errors,
	)
	if st.LastError != "" {
		line += " last_error=" + errText(st.LastError)
	}
	return line
}

// throttle lets one event through per interval.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func (t *throttle) allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// RunConsoleMQTT prints samples and status records from the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()
	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "console")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.WithField("broker", cfg.MQTTBroker).Info("connected to MQTT")

	th := &throttle{interval: time.Duration(cfg.ConsoleLogInterval) * time.Millisecond}
	magToken := client.Subscribe(cfg.TopicMag, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s mag.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.WithError(err).Warn("sample unmarshal")
			return
		}
		if th.allow(time.Now()) {
			fmt.Println(formatSample(s))
		}
	})
	magToken.Wait()
	if magToken.Error() != nil {
		return magToken.Error()
	}
	log.WithField("topic", cfg.TopicMag).Info("subscribed")

	statusToken := client.Subscribe(cfg.TopicMagStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st mag.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.WithError(err).Warn("status unmarshal")
			return
		}
		fmt.Println(formatStatus(st))
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.WithField("topic", cfg.TopicMagStatus).Info("subscribed")

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	client.Disconnect(250)
	return nil
}
