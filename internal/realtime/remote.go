package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cooperativa/registro/internal/schema"
)

// RemoteFeed is a Feed fed by a realtime Server over a websocket. It lets a
// process that does not own the store hear about changes made elsewhere.
//
// A dropped connection is redialled. After reconnecting, every subscribed
// table is notified once, since changes may have been missed meanwhile.
type RemoteFeed struct {
	url        string
	retryDelay time.Duration
	logger     *log.Logger

	mu   sync.Mutex
	next int
	subs map[schema.Table]map[int]func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Dial connects to the server at url (ws://host:port/ws) and waits for its
// welcome message. If logger is nil, a default logger writing to stderr is
// used.
func Dial(ctx context.Context, url string, logger *log.Logger) (*RemoteFeed, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[realtime] ", log.LstdFlags)
	}

	conn, err := connect(ctx, url)
	if err != nil {
		return nil, err
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	f := &RemoteFeed{
		url:        url,
		retryDelay: time.Second,
		logger:     logger,
		subs:       make(map[schema.Table]map[int]func()),
		ctx:        feedCtx,
		cancel:     cancel,
	}

	f.wg.Add(1)
	go f.run(conn)
	return f, nil
}

// connect dials url and consumes the welcome message.
func connect(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	if _, _, err := conn.Read(ctx); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "no welcome")
		return nil, fmt.Errorf("failed to read welcome from %s: %w", url, err)
	}
	return conn, nil
}

// SubscribeChanges registers callback for changes of table.
func (f *RemoteFeed) SubscribeChanges(table schema.Table, callback func()) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	if f.subs[table] == nil {
		f.subs[table] = make(map[int]func())
	}
	f.subs[table][id] = callback
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[table], id)
			f.mu.Unlock()
		})
	}
}

// Close disconnects and stops reconnecting.
func (f *RemoteFeed) Close() error {
	f.cancel()
	f.wg.Wait()
	return nil
}

func (f *RemoteFeed) run(conn *websocket.Conn) {
	defer f.wg.Done()

	for {
		err := f.readLoop(conn)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if f.ctx.Err() != nil {
			return
		}
		f.logger.Printf("WARNING: realtime connection lost: %v", err)

		conn = f.redial()
		if conn == nil {
			return
		}
		f.logger.Printf("Realtime connection restored: %s", f.url)
		f.notifyAll()
	}
}

func (f *RemoteFeed) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(f.ctx)
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Printf("WARNING: ignoring malformed realtime message: %v", err)
			continue
		}
		if msg.Type == MessageTypeTableChanged {
			f.notify(msg.Table)
		}
	}
}

// redial retries until it connects or the feed is closed.
func (f *RemoteFeed) redial() *websocket.Conn {
	for {
		select {
		case <-f.ctx.Done():
			return nil
		case <-time.After(f.retryDelay):
		}
		ctx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
		conn, err := connect(ctx, f.url)
		cancel()
		if err == nil {
			return conn
		}
		if f.ctx.Err() != nil {
			return nil
		}
		f.logger.Printf("WARNING: realtime reconnect failed: %v", err)
	}
}

func (f *RemoteFeed) notify(table schema.Table) {
	f.mu.Lock()
	callbacks := make([]func(), 0, len(f.subs[table]))
	for _, cb := range f.subs[table] {
		callbacks = append(callbacks, cb)
	}
	f.mu.Unlock()

	for _, cb := range callbacks {
		go cb()
	}
}

func (f *RemoteFeed) notifyAll() {
	f.mu.Lock()
	tables := make([]schema.Table, 0, len(f.subs))
	for t, subs := range f.subs {
		if len(subs) > 0 {
			tables = append(tables, t)
		}
	}
	f.mu.Unlock()

	for _, t := range tables {
		f.notify(t)
	}
}
