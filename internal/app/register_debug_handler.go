// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/auxmag/internal/ak09916"
	"github.com/relabs-tech/auxmag/internal/config"
	"github.com/relabs-tech/auxmag/internal/mag"
	"github.com/relabs-tech/auxmag/internal/sensors"
)

// RegisterCmd is a register debugger request. Action is one of get_map,
// read, read_all, write, init, calibrate and export_config.
type RegisterCmd struct {
	Action  string `json:"action"`
	Device  string `json:"device,omitempty"` // "icm20948" (default) or "ak09916"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is sent back for every command.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "status", "export_config", "error"
	Device      string                 `json:"device,omitempty"`
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Sensitivity []float64              `json:"sensitivity,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Config      string                 `json:"config,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
}

// RegisterConfigFile represents the JSON structure for exported register configuration
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // address -> hex value
}

// RegisterDebugger serves the register debugging WebSocket and the live
// sample endpoint on top of a MagManager.
type RegisterDebugger struct {
	mgr         *sensors.MagManager
	pub         *mag.Publisher
	allowWrites bool
	log         logrus.FieldLogger
}

// NewRegisterDebugger returns a debugger. pub must be the sink the manager
// was initialized with. Writes are refused unless allowWrites is set.
func NewRegisterDebugger(mgr *sensors.MagManager, pub *mag.Publisher, allowWrites bool, log logrus.FieldLogger) *RegisterDebugger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RegisterDebugger{mgr: mgr, pub: pub, allowWrites: allowWrites, log: log}
}

func errorResponse(format string, args ...any) RegisterResponse {
	return RegisterResponse{Type: "error", Message: fmt.Sprintf(format, args...)}
}

// handle executes one command.
func (d *RegisterDebugger) handle(cmd RegisterCmd, now time.Time) RegisterResponse {
	device := cmd.Device
	if device == "" {
		device = sensors.DeviceICM20948
	}
	ts := now.Format(time.RFC3339)

	switch cmd.Action {
	case "get_map":
		regs := sensors.RegisterMap(device)
		if regs == nil {
			return errorResponse("unknown device: %s", device)
		}
		return RegisterResponse{Type: "register_map", Device: device, RegisterMap: regs}

	case "read":
		if cmd.Address == "" {
			return errorResponse("missing addr field")
		}
		addr, err := sensors.CanonicalAddress(device, cmd.Address)
		if err != nil {
			return errorResponse("invalid address: %v", err)
		}
		v, err := d.mgr.ReadRegister(device, addr)
		if err != nil {
			return errorResponse("read error: %v", err)
		}
		return RegisterResponse{
			Type:      "register_data",
			Device:    device,
			Address:   addr,
			Value:     fmt.Sprintf("0x%02X", v),
			Timestamp: ts,
		}

	case "read_all":
		regs, err := d.readAll(device)
		if err != nil {
			return errorResponse("read all error: %v", err)
		}
		return RegisterResponse{Type: "register_data", Device: device, Registers: regs, Timestamp: ts}

	case "write":
		if !d.allowWrites {
			return errorResponse("register writes are disabled (REGISTER_DEBUG_ALLOW_WRITES)")
		}
		if cmd.Address == "" || cmd.Value == "" {
			return errorResponse("missing addr or value field")
		}
		addr, err := sensors.CanonicalAddress(device, cmd.Address)
		if err != nil {
			return errorResponse("invalid address: %v", err)
		}
		v, err := strconv.ParseUint(cmd.Value, 0, 8)
		if err != nil {
			return errorResponse("invalid value format: %s", cmd.Value)
		}
		if err := d.mgr.WriteRegister(device, addr, byte(v)); err != nil {
			return errorResponse("write error: %v", err)
		}
		d.log.WithFields(logrus.Fields{"device": device, "addr": addr, "value": fmt.Sprintf("0x%02X", v)}).Info("register written")
		return RegisterResponse{
			Type:      "register_data",
			Device:    device,
			Address:   addr,
			Value:     fmt.Sprintf("0x%02X", v),
			Timestamp: ts,
			Message:   "write successful",
		}

	case "init":
		if err := d.mgr.Reinit(); err != nil {
			return errorResponse("reinit error: %v", err)
		}
		m := d.mgr.Mag()
		return RegisterResponse{
			Type:    "status",
			Device:  sensors.DeviceAK09916,
			Status:  m.State().String(),
			Message: fmt.Sprintf("magnetometer reinitialized after %d attempt(s)", m.Attempts()),
		}

	case "calibrate":
		s, err := d.mgr.Calibrate()
		if err != nil {
			return errorResponse("calibration error: %v", err)
		}
		return RegisterResponse{
			Type:        "status",
			Device:      sensors.DeviceAK09916,
			Status:      d.mgr.Mag().Mode().String(),
			Sensitivity: s[:],
			Message:     "fuse ROM adjustment read",
		}

	case "export_config":
		regs, err := d.readAll(device)
		if err != nil {
			return errorResponse("export error: %v", err)
		}
		file := RegisterConfigFile{
			Version:   1,
			Device:    device,
			Source:    d.mgr.Source(),
			Timestamp: ts,
			Registers: regs,
		}
		payload, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return errorResponse("export error: %v", err)
		}
		return RegisterResponse{
			Type:     "export_config",
			Device:   device,
			Message:  "config exported",
			Config:   string(payload),
			Filename: fmt.Sprintf("%s_%s_registers.json", device, now.Format("20060102_150405")),
		}
	}
	return errorResponse("unknown action: %s", cmd.Action)
}

func (d *RegisterDebugger) readAll(device string) (map[string]string, error) {
	regs, err := d.mgr.ReadAllRegisters(device)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(regs))
	for addr, v := range regs {
		out[addr] = fmt.Sprintf("0x%02X", v)
	}
	return out, nil
}

// ServeWS handles the WebSocket connection for register debugging.
func (d *RegisterDebugger) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.WithError(err).Warn("register_debug: websocket upgrade")
		return
	}
	defer conn.Close()

	// Send the host register map on connection.
	if err := conn.WriteJSON(d.handle(RegisterCmd{Action: "get_map"}, time.Now())); err != nil {
		d.log.WithError(err).Warn("register_debug: send register map")
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				d.log.WithError(err).Warn("register_debug: websocket")
			}
			return
		}
		var cmd RegisterCmd
		resp := errorResponse("missing or invalid action field")
		if err := json.Unmarshal(msg, &cmd); err == nil && cmd.Action != "" {
			resp = d.handle(cmd, time.Now())
		}
		if err := conn.WriteJSON(resp); err != nil {
			d.log.WithError(err).Warn("register_debug: write response")
			return
		}
	}
}

// MagData is the /api/mag answer of the register debugger.
type MagData struct {
	Accepted bool          `json:"accepted"`
	Frame    ak09916.Frame `json:"frame"`
	Sample   *mag.Sample   `json:"sample,omitempty"`
	Bridge   string        `json:"bridge"`
}

// ServeMagData takes one sample through the bridge and returns it.
func (d *RegisterDebugger) ServeMagData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	f, ok, err := d.mgr.Sample(time.Now())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	out := MagData{Accepted: ok, Frame: f, Bridge: d.mgr.Mag().BridgeConfig().String()}
	if ok && d.pub != nil {
		if s, have := d.pub.Last(); have {
			out.Sample = &s
		}
	}
	json.NewEncoder(w).Encode(out)
}

// RunRegisterDebug brings the magnetometer up and serves the register
// debugger. Samples are only kept locally, nothing is published.
func RunRegisterDebug() error {
	cfg := config.Get()
	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "register-debug")

	pub := mag.NewPublisher(cfg.Source(), nil, log)
	mgr := sensors.GetMagManager()
	if err := mgr.Init(pub, log); err != nil {
		// Registers stay reachable for diagnosis even when setup gave up.
		log.WithError(err).Warn("magnetometer initialization failed, continuing")
	}
	defer mgr.Close()

	d := NewRegisterDebugger(mgr, pub, cfg.RegisterDebugAllowWrites, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.ServeWS)
	mux.HandleFunc("/api/mag", d.ServeMagData)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	addr := fmt.Sprintf(":%d", cfg.RegisterDebugPort)
	log.WithFields(logrus.Fields{
		"addr":         addr,
		"allow_writes": cfg.RegisterDebugAllowWrites,
	}).Info("register debug tool listening")
	return http.ListenAndServe(addr, mux)
}
