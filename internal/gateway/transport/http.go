// Package transport exposes a Registry over the network: binary
// RPC-over-HTTP for list_devices and send_actuator_command, and a
// websocket stream pushing DeviceAdded/DeviceChanged/DeviceRemoved/Resync
// events, per SPEC_FULL §6's external API note.
package transport

import (
	"io"
	"log/slog"
	"net/http"

	"iotfabric/internal/gateway"
	"iotfabric/internal/model"
)

// Server wires a Registry's operations onto an http.ServeMux.
type Server struct {
	log *slog.Logger
	reg *gateway.Registry
}

// New builds a Server for reg.
func New(log *slog.Logger, reg *gateway.Registry) *Server {
	return &Server{log: log, reg: reg}
}

// Register mounts the API's routes onto mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/devices", s.handleListDevices)
	mux.HandleFunc("POST /v1/commands", s.handleCommand)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
}

const maxRequestBody = model.MaxMessageSize

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil || len(body) > maxRequestBody {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}

	req, err := model.DecodeRequest(body)
	if err != nil || req.Kind != model.ReqListDevices {
		http.Error(w, "expected a ListDevices request", http.StatusBadRequest)
		return
	}

	filter := model.ListDevicesFilter{}
	if req.ListFilter != nil {
		filter = *req.ListFilter
	}
	devices := s.reg.ListDevices(filter)

	s.writeResponse(w, model.Response{Kind: model.RespListDevicesResult, Devices: devices})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil || len(body) > maxRequestBody {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}

	req, err := model.DecodeRequest(body)
	if err != nil || req.Kind != model.ReqSendActuatorCommand || req.Action == nil {
		http.Error(w, "expected a SendActuatorCommand request", http.StatusBadRequest)
		return
	}

	message, cmdErr := s.reg.SendActuatorCommand(r.Context(), req.DeviceID, *req.Action)
	if cmdErr != nil {
		s.writeResponse(w, model.Response{Kind: model.RespError, Err: cmdErr})
		return
	}
	s.writeResponse(w, model.Response{Kind: model.RespSendActuatorCommandResponse, Message: message})
}

func (s *Server) writeResponse(w http.ResponseWriter, resp model.Response) {
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(model.EncodeResponse(resp)); err != nil {
		s.log.Warn("transport: failed writing response", "error", err)
	}
}
