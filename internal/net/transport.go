package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"InkBoard/internal/input"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 256 * 1024
)

// Sink receives pen batches for a page. It must not block.
type Sink interface {
	Deliver(pageID string, b input.Batch) error
	Pages() []string
}

// Peer is one connected remote pen.
type Peer struct {
	ID     string
	Remote string
	conn   *websocket.Conn
	send   chan []byte
}

// PeerManager tracks the connected remote pens.
type PeerManager struct {
	peers map[string]*Peer
	mu    sync.RWMutex
}

func NewPeerManager() *PeerManager {
	return &PeerManager{peers: make(map[string]*Peer)}
}

func (pm *PeerManager) Add(p *Peer) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.peers[p.ID] = p
}

func (pm *PeerManager) Remove(p *Peer) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.peers, p.ID)
}

func (pm *PeerManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// closeAll closes every peer connection, which ends their pumps.
func (pm *PeerManager) closeAll() {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for _, p := range pm.peers {
		p.conn.Close()
	}
}

// Server accepts remote pens on /pen and feeds their samples to a Sink.
type Server struct {
	sink       Sink
	peers      *PeerManager
	viewWidth  int
	viewHeight int
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

func NewServer(sink Sink, viewWidth, viewHeight int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sink:       sink,
		peers:      NewPeerManager(),
		viewWidth:  viewWidth,
		viewHeight: viewHeight,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// pens join from the local network, not from browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Peers returns the connected pen tracker.
func (s *Server) Peers() *PeerManager {
	return s.peers
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pen", s.handlePen)
	return mux
}

// Serve accepts pens on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.log.Info("remote pen server listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.peers.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown pen server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handlePen(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade", "error", err)
		return
	}

	p := &Peer{
		ID:     uuid.NewString(),
		Remote: r.RemoteAddr,
		conn:   conn,
		send:   make(chan []byte, 32),
	}
	s.peers.Add(p)
	s.log.Info("pen connected", "peer", p.ID, "remote", p.Remote)

	go s.writePump(p)
	s.readPump(p)
}

func (s *Server) readPump(p *Peer) {
	defer func() {
		s.peers.Remove(p)
		close(p.send)
		p.conn.Close()
		s.log.Info("pen disconnected", "peer", p.ID)
	}()

	p.conn.SetReadLimit(maxMsgSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read error", "peer", p.ID, "error", err)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warn("invalid frame", "peer", p.ID, "error", err)
			s.reply(p, Frame{Type: TypeError, Error: "invalid frame"})
			continue
		}
		s.handleFrame(p, f)
	}
}

func (s *Server) handleFrame(p *Peer, f Frame) {
	switch f.Type {
	case TypeHello:
		s.reply(p, Frame{Type: TypeWelcome, Width: s.viewWidth, Height: s.viewHeight, Pages: s.sink.Pages()})
	case TypeSamples:
		if err := s.sink.Deliver(f.Page, input.Batch(f.Points)); err != nil {
			s.log.Warn("samples rejected", "peer", p.ID, "page", f.Page, "error", err)
			s.reply(p, Frame{Type: TypeError, Page: f.Page, Error: err.Error()})
		}
	default:
		s.reply(p, Frame{Type: TypeError, Error: fmt.Sprintf("unknown frame type %q", f.Type)})
	}
}

// reply queues f for p without blocking the reader.
func (s *Server) reply(p *Peer, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error("marshal frame", "error", err)
		return
	}
	select {
	case p.send <- data:
	default:
		s.log.Warn("peer send buffer full, dropping frame", "peer", p.ID)
	}
}

func (s *Server) writePump(p *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("write error", "peer", p.ID, "error", err)
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
