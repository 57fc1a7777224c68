package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/wallet-gnn/internal/batch"
	"github.com/rawblock/wallet-gnn/internal/metrics"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for local dashboard
	},
}

// Hub maintains the set of active websocket clients and broadcasts risk
// alerts to them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Set write deadline to prevent blocked clients from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := client.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		metrics.ActiveWebSocketClients.Set(float64(len(h.clients)))
		h.mutex.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Subscribe handles incoming websocket connections
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()
	metrics.ActiveWebSocketClients.Set(float64(total))

	log.Printf("New WebSocket client connected. Total clients: %d", total)

	// Keep alive loop (we only push, but reads surface disconnects)
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mutex.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(total))
			conn.Close()
			log.Printf("WebSocket client disconnected. Total clients: %d", total)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast queues data for all connected clients. Messages are dropped
// when the queue is full.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		log.Println("[Hub] Warning: broadcast queue full, dropping message")
	}
}

// BroadcastRiskAlert sends a high-risk wallet alert via the WebSocket hub.
// This is wired as the alertFunc callback for the batch scorer.
func BroadcastRiskAlert(wsHub *Hub) func(batch.RiskAlert) {
	return func(alert batch.RiskAlert) {
		payload := gin.H{
			"type":  "risk_alert",
			"alert": alert,
		}
		alertBytes, _ := json.Marshal(payload)
		wsHub.Broadcast(alertBytes)
		log.Printf("[ALERT] HIGH risk wallet %s (score %.4f, %d transactions)",
			alert.Address, alert.RiskScore, alert.TransactionCount)
	}
}

func assessmentAlert(a models.RiskAssessment) batch.RiskAlert {
	return batch.RiskAlert{
		Address:          a.Address,
		RiskScore:        a.RiskScore,
		RiskCategory:     a.RiskCategory,
		TransactionCount: a.TransactionCount,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}
