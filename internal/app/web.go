package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/mag"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 2 * time.Second

// webServer keeps the latest broker payloads and fans samples out to
// WebSocket clients.
type webServer struct {
	log logrus.FieldLogger

	mu         sync.RWMutex
	lastSample []byte
	lastStatus []byte

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

func newWebServer(log logrus.FieldLogger) *webServer {
	return &webServer{log: log, clients: make(map[*websocket.Conn]struct{})}
}

// updateSample validates payload as a mag.Sample, stores it and broadcasts it.
func (ws *webServer) updateSample(payload []byte) error {
	var s mag.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	ws.mu.Lock()
	ws.lastSample = append([]byte(nil), payload...)
	ws.mu.Unlock()
	ws.broadcast(payload)
	return nil
}

func (ws *webServer) updateStatus(payload []byte) error {
	var st mag.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return err
	}
	ws.mu.Lock()
	ws.lastStatus = append([]byte(nil), payload...)
	ws.mu.Unlock()
	return nil
}

func (ws *webServer) broadcast(payload []byte) {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	for c := range ws.clients {
		c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			ws.log.WithError(err).Debug("dropping websocket client")
			delete(ws.clients, c)
			c.Close()
		}
	}
}

func (ws *webServer) serveLatest(get func() []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := get()
		if payload == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}
}

// handleStream upgrades to a WebSocket, sends the latest sample and then
// every new one.
func (ws *webServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.WithError(err).Warn("websocket upgrade")
		return
	}

	ws.clientsMu.Lock()
	ws.mu.RLock()
	last := ws.lastSample
	ws.mu.RUnlock()
	if last != nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		conn.WriteMessage(websocket.TextMessage, last)
	}
	ws.clients[conn] = struct{}{}
	ws.clientsMu.Unlock()

	// Drain until the peer goes away.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	ws.clientsMu.Lock()
	delete(ws.clients, conn)
	ws.clientsMu.Unlock()
	conn.Close()
}

func (ws *webServer) routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/mag", ws.serveLatest(func() []byte {
		ws.mu.RLock()
		defer ws.mu.RUnlock()
		return ws.lastSample
	}))
	mux.HandleFunc("/api/mag/status", ws.serveLatest(func() []byte {
		ws.mu.RLock()
		defer ws.mu.RUnlock()
		return ws.lastStatus
	}))
	mux.HandleFunc("/ws/mag", ws.handleStream)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// RunWeb serves the latest sample and status over HTTP and streams samples
// over /ws/mag.
func RunWeb() error {
	cfg := config.Get()
	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "web")
	ws := newWebServer(log)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.WithField("broker", cfg.MQTTBroker).Info("connected to MQTT")

	subs := map[string]func([]byte) error{
		cfg.TopicMag:       ws.updateSample,
		cfg.TopicMagStatus: ws.updateStatus,
	}
	for topic, update := range subs {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := update(msg.Payload()); err != nil {
				log.WithError(err).WithField("topic", msg.Topic()).Warn("payload unmarshal")
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.WithField("topic", topic).Info("subscribed")
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.WithField("addr", addr).Info("web server listening")
	return http.ListenAndServe(addr, ws.routes("web"))
}
