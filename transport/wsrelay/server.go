// SPDX-License-Identifier: LGPL-3.0-or-later

package wsrelay

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/blake2b"
)

// DefaultHistorySize bounds how many past frames a newly connected
// client is replayed, mirroring lobby.DMBuffer's bounded, drop-oldest
// discipline rather than an unbounded backlog.
const DefaultHistorySize = 256

// Server fans every published frame out to every connected client,
// chaining each frame's hash to the previous one the same way
// transport/memdag does, so a client reconnecting mid-session can tell
// whether it missed anything by comparing its last-seen hash against
// history. Grounded on the teacher's WSServer
// (pkg/agent/transport/websocket/server.go): an http.Handler wrapping
// an Upgrader plus a tracked connection set, generalized from
// request/response RPC to broadcast relay.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan frame
	history []frame

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewServer builds a relay server with default timeouts.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:      make(map[*websocket.Conn]chan frame),
		readTimeout:  60 * time.Second,
		writeTimeout: 30 * time.Second,
	}
}

// Handler returns an http.Handler that upgrades incoming requests to
// relay connections.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("wsrelay: upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		defer conn.Close()

		out := s.addClient(conn)
		defer s.removeClient(conn)

		done := make(chan struct{})
		go s.writeLoop(conn, out, done)
		s.readLoop(conn)
		close(done)
	})
}

// addClient registers conn and replays the current history backlog to
// it before returning the channel future broadcasts are delivered on.
func (s *Server) addClient(conn *websocket.Conn) chan frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(chan frame, DefaultHistorySize)
	for _, f := range s.history {
		out <- f
	}
	s.clients[conn] = out
	return out
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out, ok := s.clients[conn]; ok {
		close(out)
		delete(s.clients, conn)
	}
}

func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return
		}
		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		s.broadcast(in.Data)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, out chan frame, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case f, ok := <-out:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}
}

// broadcast chains data onto history and fans it out to every
// connected client, including the publisher — a relay client learns
// its own publish succeeded the same way it learns about anyone
// else's.
func (s *Server) broadcast(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev string
	if n := len(s.history); n > 0 {
		prev = s.history[n-1].Hash
	}
	sum := blake2b.Sum256([]byte(prev + data))
	f := frame{Hash: hex.EncodeToString(sum[:]), Data: data, PublishedAt: time.Now()}

	s.history = append(s.history, f)
	if len(s.history) > DefaultHistorySize {
		s.history = s.history[len(s.history)-DefaultHistorySize:]
	}

	for _, out := range s.clients {
		select {
		case out <- f:
		default:
			// Slow client; drop rather than block the relay for everyone.
		}
	}
}

// Close disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, out := range s.clients {
		close(out)
		_ = conn.Close()
	}
	s.clients = make(map[*websocket.Conn]chan frame)
	return nil
}
