package services

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"matchpulse/internal/models"
	"matchpulse/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// LiveMessage is one frame pushed to dashboard clients: score/status changes
// after a live refresh, plus run summaries when the automation engine fires.
type LiveMessage struct {
	Type      string      `json:"type"` // score_update, status_update, run_summary
	LeagueID  uint        `json:"league_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type liveClient struct {
	id       string
	leagueID uint // 0 = all leagues
	conn     *websocket.Conn
	send     chan LiveMessage
	hub      *LiveHub
}

// LiveHub fans live updates out to connected dashboard clients. Clients may
// subscribe to a single league via ?league_id= or receive everything.
type LiveHub struct {
	clients    map[string]*liveClient
	broadcast  chan LiveMessage
	register   chan *liveClient
	unregister chan *liveClient
	mutex      sync.RWMutex
}

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin checks are enforced by the CORS layer in front
	},
}

func NewLiveHub() *LiveHub {
	return &LiveHub{
		clients:    make(map[string]*liveClient),
		broadcast:  make(chan LiveMessage, 64),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
	}
}

func (h *LiveHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.id] = client
			h.mutex.Unlock()
			logrus.Infof("live: client %s connected", client.id)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
				logrus.Infof("live: client %s disconnected", client.id)
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.RLock()
			for _, client := range h.clients {
				if client.leagueID != 0 && message.LeagueID != 0 && client.leagueID != message.LeagueID {
					continue
				}
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// BroadcastFixtureUpdate pushes one fixture's fresh score/status.
func (h *LiveHub) BroadcastFixtureUpdate(fixture *models.Fixture) {
	if h == nil || fixture == nil {
		return
	}
	h.broadcast <- LiveMessage{
		Type:      "score_update",
		LeagueID:  fixture.LeagueID,
		Data:      fixture,
		Timestamp: time.Now().UTC(),
	}
}

// BroadcastRunSummary pushes the automation run outcome to all clients.
func (h *LiveHub) BroadcastRunSummary(summary interface{}) {
	if h == nil {
		return
	}
	h.broadcast <- LiveMessage{
		Type:      "run_summary",
		Data:      summary,
		Timestamp: time.Now().UTC(),
	}
}

// GetClientCount reports connected clients for the stats surface.
func (h *LiveHub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *LiveHub) HandleWebSocket(c *gin.Context) {
	conn, err := liveUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("live: websocket upgrade failed: %v", err)
		return
	}

	var leagueID uint
	if raw := c.Query("league_id"); raw != "" {
		var parsed uint64
		if _, err := fmt.Sscanf(raw, "%d", &parsed); err == nil {
			leagueID = uint(parsed)
		}
	}

	client := &liveClient{
		id:       utils.GenerateClientID(),
		leagueID: leagueID,
		conn:     conn,
		send:     make(chan LiveMessage, 256),
		hub:      h,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; the live feed is one-directional.
func (c *liveClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("live: websocket error: %v", err)
			}
			break
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("live: write failed: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
