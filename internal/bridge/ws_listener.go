package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventListener streams sink events to one websocket subscriber. Events are
// dropped, not queued without bound, when the client falls behind.
type eventListener struct {
	ws   *websocket.Conn
	log  *slog.Logger
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newEventListener(ws *websocket.Conn, log *slog.Logger) *eventListener {
	return &eventListener{
		ws:   ws,
		log:  log.With("component", "event-listener"),
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (l *eventListener) OnFrame(frame pose.LandmarkFrame) {
	l.enqueue(frame)
}

func (l *eventListener) OnError(code, message string) {
	l.enqueue(errorEvent{Error: NewCallError(code, message)})
}

func (l *eventListener) enqueue(event any) {
	select {
	case <-l.done:
		return
	default:
	}

	data, err := json.Marshal(event)
	if err != nil {
		l.log.Error("failed to marshal event", "error", err)
		return
	}

	select {
	case l.send <- data:
	default:
		l.log.Warn("send buffer full, dropping event")
	}
}

func (l *eventListener) Done() <-chan struct{} {
	return l.done
}

func (l *eventListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		_ = l.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = l.ws.Close()
	})
	return err
}

// readPump only services control frames; the event stream is one-way.
func (l *eventListener) readPump() {
	defer l.Close()

	l.ws.SetReadLimit(maxMessageSize)
	_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
	l.ws.SetPongHandler(func(string) error {
		_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := l.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.log.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (l *eventListener) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.Close()
	}()

	for {
		select {
		case <-l.done:
			return

		case data := <-l.send:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				l.log.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
