// Package api exposes the player to the browser UI: a small JSON surface for
// state and the two mutating entry points, plus a WebSocket that pushes a
// snapshot on every displayed frame and every committed state change.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/manifest"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/player"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
)

// #region types

// frameJSON is the wire form of a displayable frame reference.
type frameJSON struct {
	PathID string  `json:"path_id"`
	File   string  `json:"file"`
	T      float64 `json:"t"`
	URL    string  `json:"url"`
}

// snapshotJSON is the wire form of the player's observable state.
type snapshotJSON struct {
	Expr       string     `json:"expr"`
	Pose       string     `json:"pose"`
	Phase      string     `json:"phase"`
	ActivePath string     `json:"active_path,omitempty"`
	Frame      *frameJSON `json:"frame,omitempty"`
}

// transitionJSON is the body of POST /transition.
type transitionJSON struct {
	Expr string `json:"expr"`
	Pose string `json:"pose"`
}

// Server serves the UI surface over one player instance.
type Server struct {
	player   *player.Player
	frames   *manifest.Client
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// #endregion types

// #region constructor

// NewServer wires a server to p's frame and state notifications. The frame
// client only builds image URLs; image bytes are fetched by the browser.
func NewServer(p *player.Player, frames *manifest.Client) *Server {
	s := &Server{
		player: p,
		frames: frames,
		upgrader: websocket.Upgrader{
			// The rig editor runs on a different origin during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	p.SetFrameListener(func(player.FrameRef) { s.broadcast() })
	p.SetStateListener(func(statespace.State) { s.broadcast() })
	return s
}

// #endregion constructor

// #region handler

// Handler returns the HTTP mux for the UI surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /transition", s.handleTransition)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	target := statespace.State{
		Expr: statespace.Expression(body.Expr),
		Pose: statespace.Pose(body.Pose),
	}
	if !statespace.ValidState(target) {
		http.Error(w, "unknown expression or pose", http.StatusBadRequest)
		return
	}

	err := s.player.RequestTransition(r.Context(), target)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.snapshot())
	case errors.Is(err, player.ErrBusy):
		http.Error(w, "a route is already active", http.StatusConflict)
	default:
		var fe *manifest.FetchError
		if errors.As(err, &fe) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.player.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// #endregion handler

// #region websocket

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] ws upgrade failed: %v", err)
		return
	}

	// Initial snapshot goes out before the conn joins the broadcast set so
	// writes to a single conn never interleave.
	if err := conn.WriteJSON(s.snapshot()); err != nil {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop only detects close; clients never send anything.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// broadcast pushes the current snapshot to every connected client.
func (s *Server) broadcast() {
	snap := s.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteJSON(snap); err != nil {
			delete(s.conns, conn)
			conn.Close()
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// #endregion websocket

// #region snapshot

func (s *Server) snapshot() snapshotJSON {
	st := s.player.State()
	snap := snapshotJSON{
		Expr:  string(st.Expr),
		Pose:  string(st.Pose),
		Phase: string(s.player.Phase()),
	}
	if id, ok := s.player.ActivePathID(); ok {
		snap.ActivePath = id
	}
	if fr, ok := s.player.CurrentFrame(); ok {
		snap.Frame = &frameJSON{
			PathID: fr.PathID,
			File:   fr.File,
			T:      fr.T,
			URL:    s.frames.FrameURL(fr.PathID, fr.File),
		}
	}
	return snap
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

// #endregion snapshot
