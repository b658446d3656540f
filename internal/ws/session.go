package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 12
	sendBufferSize = 32
)

// command is what a dashboard client sends over the socket.
type command struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

// Session is one connected dashboard client. A single writer pump drains the
// buffered send channel, which preserves per-session FIFO ordering.
type Session struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, hub *Hub, logger *zap.Logger) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    hub,
		logger: logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run launches the write pump and blocks on the read pump until the client
// disconnects.
func (s *Session) Run() {
	go s.writePump()
	s.readPump()
}

// Send enqueues a payload without blocking. When the client cannot keep up the
// event is dropped so one slow session never stalls delivery to the others.
func (s *Session) Send(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("send on closed session", zap.String("session_id", s.id))
		}
	}()
	select {
	case s.send <- payload:
	default:
		s.logger.Warn("dropping event, session buffer full", zap.String("session_id", s.id))
	}
}

func (s *Session) readPump() {
	defer s.cleanup()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Info("ws read closed", zap.String("session_id", s.id), zap.Error(err))
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			s.reply(Event{Name: "error", Data: map[string]string{"message": "invalid command"}})
			continue
		}
		s.handle(cmd)
	}
}

func (s *Session) handle(cmd command) {
	switch cmd.Action {
	case "subscribe":
		if cmd.Target == "" {
			s.reply(Event{Name: "error", Data: map[string]string{"message": "target is required"}})
			return
		}
		s.hub.Subscribe(s, cmd.Target)
		s.reply(Event{Name: "subscribed", Data: map[string]string{"target": cmd.Target}})
	case "unsubscribe":
		s.hub.Unsubscribe(s, cmd.Target)
		s.reply(Event{Name: "unsubscribed", Data: map[string]string{"target": cmd.Target}})
	default:
		s.reply(Event{Name: "error", Data: map[string]string{"message": "unknown action"}})
	}
}

func (s *Session) reply(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.Send(payload)
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				_ = s.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) cleanup() {
	s.hub.Unregister(s)
	close(s.send)
	_ = s.conn.Close()
}
