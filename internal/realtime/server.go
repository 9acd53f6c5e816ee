package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/cooperativa/registro/internal/schema"
)

// MessageType defines the type of a broadcast message
type MessageType string

const (
	// MessageTypeTableChanged reports that a table changed. Clients refetch.
	MessageTypeTableChanged MessageType = "table_changed"

	// MessageTypeConnected is the first message a client receives.
	MessageTypeConnected MessageType = "connected"
)

// Message is one websocket frame sent to clients.
type Message struct {
	ID        string       `json:"id"`
	Type      MessageType  `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Table     schema.Table `json:"table,omitempty"`
}

// clientQueue bounds the frames waiting for one client. A client that
// falls this far behind is disconnected.
const clientQueue = 64

// writeTimeout bounds a single frame write.
const writeTimeout = 5 * time.Second

// Server pushes table change notifications from a Feed to websocket clients.
// Every client has its own queue and writer goroutine, so one stalled client
// does not delay the others.
type Server struct {
	port   int
	feed   Feed
	logger *log.Logger

	listener net.Listener
	http     *http.Server
	unsub    func()
	started  time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8080). Zero picks a free port.
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{Port: 8080}
}

// NewServer creates a server broadcasting the changes of feed.
func NewServer(feed Feed, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[realtime] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:    config.Port,
		feed:    feed,
		logger:  logger,
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start binds the port, subscribes to every data table and the change log,
// and serves /ws, /health and / in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	s.listener = ln
	s.started = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.unsub = subscribeEach(s.feed, append(schema.Tables(), schema.ChangeLogTable), func(table schema.Table) {
		s.Broadcast(Message{Type: MessageTypeTableChanged, Table: table})
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Listening on %s", ln.Addr())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("WARNING: serve failed: %v", err)
		}
	}()
	return nil
}

// Stop detaches from the feed, closes every client and waits for the
// server goroutines to exit.
func (s *Server) Stop() error {
	if s.unsub != nil {
		s.unsub()
	}
	s.cancel()

	s.mu.Lock()
	for c := range s.clients {
		s.dropLocked(c, websocket.StatusGoingAway, "server shutting down")
	}
	s.mu.Unlock()

	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to shut down realtime server: %w", shutdownErr)
		}
	}
	s.wg.Wait()
	s.logger.Println("Stopped")
	return err
}

// Broadcast sends msg to every connected client. A client whose queue is
// full is disconnected; it reconnects and refetches.
func (s *Server) Broadcast(msg Message) {
	if s.ctx.Err() != nil {
		return
	}
	data, err := encode(msg)
	if err != nil {
		s.logger.Printf("WARNING: failed to encode %s message: %v", msg.Type, err)
		return
	}

	var slow []*client
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.logger.Printf("WARNING: client queue full, dropping client")
		s.drop(c, websocket.StatusPolicyViolation, "too slow")
	}
}

// encode fills in the id and timestamp and marshals msg.
func encode(msg Message) ([]byte, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return json.Marshal(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Printf("WARNING: websocket upgrade failed: %v", err)
		return
	}

	welcome, err := encode(Message{Type: MessageTypeConnected})
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientQueue)}
	// Queued ahead of any broadcast: the welcome is always the first frame,
	// and a client that has read it is registered.
	c.send <- welcome

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.wg.Add(2)
	s.mu.Unlock()
	s.logger.Printf("Client connected from %s (total: %d)", r.RemoteAddr, n)

	go s.writeLoop(c)
	go s.readLoop(c)
}

func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()
	for data := range c.send {
		ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.drop(c, websocket.StatusInternalError, "write failed")
			return
		}
	}
}

// readLoop discards client frames; its only job is to notice a disconnect.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	for {
		if _, _, err := c.conn.Read(s.ctx); err != nil {
			s.drop(c, websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (s *Server) drop(c *client, code websocket.StatusCode, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c, code, reason)
}

// dropLocked unregisters c and closes its queue and connection. It is a
// no-op for a client already dropped. s.mu must be held.
func (s *Server) dropLocked(c *client, code websocket.StatusCode, reason string) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	go func() { _ = c.conn.Close(code, reason) }()
	s.logger.Printf("Client disconnected (total: %d)", len(s.clients))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "registro realtime server\n\nws://%s/ws     change notifications\nhttp://%s/health  status\n\nTables:\n", r.Host, r.Host)
	for _, t := range schema.Tables() {
		fmt.Fprintf(w, "  %s\n", t)
	}
}

// GetAddr returns the listening address once started, else the configured
// port.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf(":%d", s.port)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
