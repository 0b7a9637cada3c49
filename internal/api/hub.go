package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventProject  = "project"
	eventPlayback = "playback"
	eventBatch    = "batch"
)

// event — сообщение, которое получают WebSocket-клиенты.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var upgrader = websocket.Upgrader{
	// Клиент — локальная оболочка приложения, origin у неё file:// или свой
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub рассылает события всем подключённым клиентам. Медленный клиент теряет сообщения,
// а не тормозит рассылку.
type hub struct {
	logger  *zap.SugaredLogger
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub(logger *zap.SugaredLogger) *hub {
	return &hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.WebSocketClients.Dec()
	}
	h.mu.Unlock()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

func (h *hub) broadcast(typ string, data any) {
	msg, err := json.Marshal(event{Type: typ, Data: data})
	if err != nil {
		h.logger.Warnw("Failed to marshal event", "type", typ, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			metrics.DroppedEvents.Inc()
		}
	}
}

// serveWS подключает клиента и сразу отправляет ему текущее состояние.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("Failed to upgrade websocket connection", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, 32)}

	first, _ := json.Marshal(event{Type: eventProject, Data: viewOf(s.deps.Store.Snapshot())})
	second, _ := json.Marshal(event{Type: eventPlayback, Data: s.playbackView(s.deps.Player.State())})
	c.send <- first
	c.send <- second
	s.hub.add(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debugw("websocket write failed", "error", err)
				break
			}
		}
		// Закрытие соединения будит цикл чтения, он снимает клиента с рассылки
		_ = conn.Close()
		for range c.send {
		}
	}()

	// Клиент ничего не присылает; чтение нужно, чтобы заметить закрытие соединения
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.remove(c)
	<-done
	_ = conn.Close()
}
