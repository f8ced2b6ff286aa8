// Package server implements the push socket that streams samples to UI
// clients over a Unix-domain stream socket (§4.7).
package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net"
	"os"
	"sync"

	"github.com/rogue-hunter/roguehunter/engine"
	"github.com/rogue-hunter/roguehunter/model"
)

const initialStateSampleCount = 30

// client wraps one connected UI with its own write lock, since broadcast
// writes happen from the sampling loop goroutine while the client's own
// connection may be read from concurrently.
type client struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *client) writeFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// Server is the push socket server. The client set is mutated by each
// connection's handler goroutine (added after initial_state is sent, removed
// on disconnect) and by Broadcast/Stop, all guarded by mu. The daemon calls
// Broadcast synchronously from its own loop.
type Server struct {
	socketPath string
	ring       *engine.Ring

	mu       sync.Mutex
	listener net.Listener
	clients  map[*client]struct{}
	stopped  bool
}

// New returns a Server that will listen at socketPath and replay recent
// contents of ring on each new client connection.
func New(socketPath string, ring *engine.Ring) *Server {
	return &Server{
		socketPath: socketPath,
		ring:       ring,
		clients:    make(map[*client]struct{}),
	}
}

// Start removes any stale socket file, binds the listener, widens its
// permissions so a UI running as a different principal than the daemon can
// connect, and begins accepting clients in the background.
func (s *Server) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("roguehunter: server: remove stale socket: %v", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o666); err != nil {
		log.Printf("roguehunter: server: chmod socket: %v", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopped() {
				return
			}
			log.Printf("roguehunter: server: accept: %v", err)
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Server) handleConn(conn net.Conn) {
	c := &client{conn: conn}

	if err := c.writeFrame(s.initialState()); err != nil {
		log.Printf("roguehunter: server: send initial_state: %v", err)
		conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.handleClientFrame(scanner.Bytes())
	}
}

// handleClientFrame handles a small client-to-server frame. Invalid JSON
// and unrecognized types are logged and ignored (§4.7).
func (s *Server) handleClientFrame(raw []byte) {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("roguehunter: server: client sent invalid JSON frame, ignoring")
		return
	}
	msgType, _ := msg["type"].(string)
	switch msgType {
	case "log":
		log.Printf("roguehunter: server: client log event: %v", msg["message"])
	default:
		log.Printf("roguehunter: server: ignoring unknown client frame type %q", msgType)
	}
}

type initialStateFrame struct {
	Type        string             `json:"type"`
	Samples     []model.RingSample `json:"samples"`
	MaxScore    int                `json:"max_score"`
	SampleCount int                `json:"sample_count"`
}

func (s *Server) initialState() initialStateFrame {
	all := s.ring.Samples()
	start := 0
	if len(all) > initialStateSampleCount {
		start = len(all) - initialStateSampleCount
	}
	recent := all[start:]

	maxScore := 0
	for _, sample := range all {
		if sample.MaxScore > maxScore {
			maxScore = sample.MaxScore
		}
	}

	return initialStateFrame{
		Type:        "initial_state",
		Samples:     recent,
		MaxScore:    maxScore,
		SampleCount: s.ring.Len(),
	}
}

type sampleFrame struct {
	Type string `json:"type"`
	model.SampleSet
}

// Broadcast sends one sample frame to every connected client, dropping any
// client whose write fails (it has disconnected).
func (s *Server) Broadcast(sample model.SampleSet) {
	frame := sampleFrame{Type: "sample", SampleSet: sample}

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.writeFrame(frame); err != nil {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			c.conn.Close()
		}
	}
}

// Stop closes the listener, closes every connected client, and removes the
// socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	ln := s.listener
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	var firstErr error
	if ln != nil {
		if err := ln.Close(); err != nil {
			firstErr = err
		}
	}
	for _, c := range clients {
		c.conn.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) && !errors.Is(err, os.ErrClosed) {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
