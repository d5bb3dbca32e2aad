// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/platform"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Server exposes the location commands over HTTP and a websocket.
type Server struct {
	acq      *location.Acquirer
	prompter location.Prompter

	broker      platform.Broker // nil: results are not published
	resultTopic string
	answer      func(location.PermissionStatus)
}

// ServerOptions wires the optional collaborators of a Server.
type ServerOptions struct {
	Broker      platform.Broker
	ResultTopic string
	// Answer applies a prompt answer posted to /api/permission; nil rejects
	// such posts.
	Answer func(location.PermissionStatus)
}

func NewServer(acq *location.Acquirer, prompter location.Prompter, opts ServerOptions) *Server {
	return &Server{
		acq:         acq,
		prompter:    prompter,
		broker:      opts.Broker,
		resultTopic: opts.ResultTopic,
		answer:      opts.Answer,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/location", s.handleLocation)
	mux.HandleFunc("GET /api/permission", s.handleCheckPermission)
	mux.HandleFunc("POST /api/permission/request", s.handleRequestPermission)
	mux.HandleFunc("POST /api/permission", s.handleAnswerPermission)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// GetLocation runs one acquisition and publishes the result. The map is nil
// when there is no result.
func (s *Server) GetLocation(ctx context.Context) map[string]any {
	fix := s.acq.Acquire(ctx)

	var out map[string]any
	if fix != nil {
		out = fix.Map(s.acq.Now())
	}
	s.publish(out)
	return out
}

func (s *Server) CheckLocationPermission() PermissionInfo {
	return permissionInfo(s.acq.Gate())
}

func (s *Server) RequestLocationPermission() PermissionRequestInfo {
	return requestPermission(s.acq.Gate(), s.prompter)
}

func (s *Server) publish(result map[string]any) {
	if s.broker == nil || s.resultTopic == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("locator: result marshal error: %v", err)
		return
	}
	if err := s.broker.Publish(s.resultTopic, true, payload); err != nil {
		log.Printf("locator: result publish error: %v", err)
	}
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.GetLocation(r.Context()))
}

func (s *Server) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.CheckLocationPermission())
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.RequestLocationPermission())
}

func (s *Server) handleAnswerPermission(w http.ResponseWriter, r *http.Request) {
	if s.answer == nil {
		http.Error(w, "permission answers are not accepted here", http.StatusNotImplemented)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	st, err := location.ParsePermissionStatus(body.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.answer(st)
	log.Printf("locator: permission answered: %s", st)
	writeJSON(w, s.CheckLocationPermission())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// WSMessage is a command sent over the websocket.
type WSMessage struct {
	Action string `json:"action"` // getLocation, checkLocationPermission, requestLocationPermission
}

// WSResponse answers one WSMessage.
type WSResponse struct {
	Type    string `json:"type"` // the action, or "error"
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// wsSession serializes writes; getLocation answers arrive from their own
// goroutines.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(resp WSResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(resp); err != nil {
		log.Printf("locator: websocket write error: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("locator: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// pending acquisitions are canceled when the client goes away
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := &wsSession{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("locator: websocket read error: %v", err)
			}
			cancel()
			return
		}

		switch msg.Action {
		case "getLocation":
			wg.Add(1)
			go func() {
				defer wg.Done()
				session.send(WSResponse{Type: msg.Action, Data: s.GetLocation(ctx)})
			}()
		case "checkLocationPermission":
			session.send(WSResponse{Type: msg.Action, Data: s.CheckLocationPermission()})
		case "requestLocationPermission":
			session.send(WSResponse{Type: msg.Action, Data: s.RequestLocationPermission()})
		default:
			session.send(WSResponse{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)})
		}
	}
}
