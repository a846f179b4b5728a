package backendtest

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"AgentChat/internal/backend"

	"github.com/gorilla/websocket"
)

// Conn is the server side of one fake streaming channel
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// SendFrame writes a JSON frame
func (c *Conn) SendFrame(f backend.StreamFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.SendRaw(string(data))
}

// SendRaw writes text as-is, JSON or not
func (c *Conn) SendRaw(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// End closes the channel with a normal closure
func (c *Conn) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "END_OF_CONVERSATION"),
		time.Now().Add(time.Second))
}

// Drop closes the underlying connection without a closing handshake
func (c *Conn) Drop() {
	_ = c.ws.UnderlyingConn().Close()
}

func (b *Backend) handleWS(w http.ResponseWriter, r *http.Request) {
	if b.RejectStreams {
		http.Error(w, "streams disabled", http.StatusServiceUnavailable)
		return
	}
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Conn{ws: ws}

	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()
		ws.Close()
	}()

	if b.OnStreamOpen != nil {
		b.OnStreamOpen(c)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		text := string(data)

		b.mu.Lock()
		b.received = append(b.received, text)
		b.mu.Unlock()

		if b.OnStreamText != nil {
			b.OnStreamText(c, text)
			continue
		}
		defaultStreamText(c, text)
	}
}

func defaultStreamText(c *Conn, text string) {
	if text == StreamEnd {
		_ = c.SendFrame(backend.StreamFrame{Type: backend.FrameFinalAnswer, Text: "Goodbye from the team."})
		c.End()
		return
	}
	_ = c.SendFrame(backend.StreamFrame{Type: backend.FrameAgentMessage, Sender: "Supervisor", Text: "ack: " + text})
}
