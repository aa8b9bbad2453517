// Package push consumes the service's notification push stream and
// republishes decoded events as typed records.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zonebook/zonebook-go/internal/notify"
	"github.com/zonebook/zonebook-go/internal/platform/config"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/transport"
)

// Sink receives decoded push records. Implemented by the notification
// synchronizer.
type Sink interface {
	HandlePush(ctx context.Context, rec *notify.Record) bool
}

// MessageType defines stream message types
type MessageType string

const (
	MessageTypeEvent MessageType = "event"
	MessageTypePing  MessageType = "ping"
	MessageTypePong  MessageType = "pong"
)

// Message is the stream envelope
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Payload is the inbound push payload
type Payload struct {
	Type  string                 `json:"type"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data"`
}

// Record converts the payload into a notification record. Payloads
// without a notification id get a generated one; dedup against the
// server copy happens on the next refresh, which replaces the cache.
func (p Payload) Record() *notify.Record {
	id := ""
	if p.Data != nil {
		for _, key := range []string{"notificationId", "id"} {
			if s, ok := p.Data[key].(string); ok && s != "" {
				id = s
				break
			}
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	rec := &notify.Record{
		ID:        id,
		Type:      notify.Type(p.Type),
		Title:     p.Title,
		Message:   p.Body,
		Data:      p.Data,
		CreatedAt: time.Now(),
	}
	if p.Data != nil {
		if s, ok := p.Data["priority"].(string); ok {
			rec.Priority = notify.Priority(s)
		}
		if s, ok := p.Data["category"].(string); ok {
			rec.Category = notify.Category(s)
		}
	}
	return rec
}

// Listener maintains the websocket connection to the push stream and
// feeds decoded events into the sink, reconnecting with a delay when
// the stream drops.
type Listener struct {
	url            string
	tokens         transport.TokenSource
	sink           Sink
	log            logger.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewListener creates a push listener.
func NewListener(cfg config.PushConfig, tokens transport.TokenSource, sink Sink, log logger.Logger) *Listener {
	return &Listener{
		url:            cfg.URL,
		tokens:         tokens,
		sink:           sink,
		log:            log,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
	}
}

// Start begins consuming the stream in the background. Idempotent.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx)
}

// Stop closes the stream and waits for the read loop to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	for {
		if err := l.consume(ctx); err != nil {
			l.log.Warn("push stream disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.reconnectDelay):
		}
	}
}

// consume dials the stream and reads messages until the connection
// drops or the context is cancelled.
func (l *Listener) consume(ctx context.Context) error {
	token, err := l.tokens.Token(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.log.Info("push stream connected", "url", l.url)

	// Close the connection when either the session ends or this
	// connection is done, so ReadMessage unblocks and the watcher
	// never outlives the connection it guards.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-connDone:
		}
		conn.Close()
	}()

	// A websocket connection allows one writer at a time; the
	// keepalive ticker and the read loop's pong reply both go
	// through send.
	var writeMu sync.Mutex
	send := func(msg Message) error {
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, raw)
	}

	if l.pingInterval > 0 {
		go l.keepalive(ctx, connDone, send)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.handleMessage(ctx, send, raw)
	}
}

func (l *Listener) handleMessage(ctx context.Context, send func(Message) error, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		l.log.Warn("ignoring malformed push message", "error", err)
		return
	}

	switch msg.Type {
	case MessageTypeEvent:
		var payload Payload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			l.log.Warn("ignoring malformed push payload", "error", err)
			return
		}
		l.sink.HandlePush(ctx, payload.Record())

	case MessageTypePing:
		_ = send(Message{Type: MessageTypePong, Timestamp: time.Now()})
	}
}

func (l *Listener) keepalive(ctx context.Context, connDone <-chan struct{}, send func(Message) error) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-connDone:
			return
		case <-ticker.C:
			if err := send(Message{Type: MessageTypePing, Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}
