// Package ws implements the WebSocket hub fanning committed-mutation events
// out to connected admin clients, scoped per company.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/metrics"
)

// Hub channel buffer sizes.
const (
	broadcastBuffer = 256
	registerBuffer  = 64
)

// Connection caps.
const (
	maxClients           = 1000
	maxClientsPerCompany = 50
)

// companyBroadcast is sent through the broadcast channel to the Run goroutine.
type companyBroadcast struct {
	companyID int64
	msg       []byte
}

// Hub manages active WebSocket clients and broadcasts messages.
// All client map mutations happen exclusively in the Run goroutine.
type Hub struct {
	clients      map[*Client]bool
	companyCount map[int64]int // O(1) per-company connection counting
	register     chan *Client
	unregister   chan *Client
	broadcast    chan companyBroadcast
	shutdown     chan struct{} // signals Run to begin graceful drain
	done         chan struct{} // closed when Run has finished draining
	count        atomic.Int64
	log          *logrus.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		companyCount: make(map[int64]int),
		register:     make(chan *Client, registerBuffer),
		unregister:   make(chan *Client, registerBuffer),
		broadcast:    make(chan companyBroadcast, broadcastBuffer),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		log:          log,
	}
}

// drainTimeout is how long the hub waits for clients to flush after shutdown.
const drainTimeout = 3 * time.Second

// Run starts the hub event loop. It should be run as a goroutine.
// It exits when Shutdown is called or the context is cancelled.
func (h *Hub) Run(ctx context.Context) { //nolint:gocognit,gocyclo,cyclop // connection-limit checks add necessary branching.
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.drainClients()

			return
		case <-h.shutdown:
			h.drainClients()

			return

		case client := <-h.register:
			if len(h.clients) >= maxClients {
				h.log.Warn("global connection limit reached, dropping client")
				client.closeSend()
				continue
			}
			if h.companyCount[client.CompanyID] >= maxClientsPerCompany {
				h.log.WithField("company_id", client.CompanyID).Warn("per-company connection limit reached, dropping client")
				client.closeSend()
				continue
			}
			h.clients[client] = true
			h.companyCount[client.CompanyID]++
			h.count.Store(int64(len(h.clients)))
			metrics.WSConnections.Set(float64(len(h.clients)))
			h.log.WithField("total", len(h.clients)).Info("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.dropCompanyCount(client.CompanyID)
			}
			h.count.Store(int64(len(h.clients)))
			metrics.WSConnections.Set(float64(len(h.clients)))
			h.log.WithField("total", len(h.clients)).Info("client unregistered")

		case b := <-h.broadcast:
			for client := range h.clients {
				if client.CompanyID != b.companyID {
					continue
				}
				select {
				case client.send <- b.msg:
				default:
					client.closeSend()
					delete(h.clients, client)
					h.dropCompanyCount(client.CompanyID)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// dropCompanyCount decrements one company's connection count, removing the
// entry at zero. Run-goroutine only.
func (h *Hub) dropCompanyCount(companyID int64) {
	h.companyCount[companyID]--
	if h.companyCount[companyID] <= 0 {
		delete(h.companyCount, companyID)
	}
}

// Publish implements the store's change notifier: it fans a committed
// mutation out to the clients of the affected company.
func (h *Hub) Publish(companyID int64, entityName, action string, entityID int64) {
	evt := ChangeEvent{
		Type:     changeEventType,
		Entity:   entityName,
		Action:   action,
		EntityID: entityID,
		Time:     time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal change event")

		return
	}

	h.broadcastToCompany(companyID, msg)
}

// broadcastToCompany hands a message to the Run goroutine for delivery to
// one company's clients. Drops rather than blocks when the channel is full.
func (h *Hub) broadcastToCompany(companyID int64, msg []byte) {
	select {
	case h.broadcast <- companyBroadcast{companyID: companyID, msg: msg}:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
		// Run loop already exited; client cleanup happened in Run shutdown.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Shutdown initiates a graceful WebSocket drain: sends a shutdown frame to
// every connected client, waits for their write pumps to flush, then closes
// all connections. It blocks until drain is complete or the timeout expires.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainClients sends a close frame to every client and waits for buffers to flush.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining WebSocket clients")

	// Send shutdown notification so clients know to reconnect.
	shutdownMsg := []byte(`{"type":"shutdown","message":"server shutting down"}`)
	for client := range h.clients {
		select {
		case client.send <- shutdownMsg:
		default:
		}
	}

	// Wait for send buffers to empty or timeout.
	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond) //nolint:mnd // poll interval
	defer ticker.Stop()

	for {
		allDrained := true

		for client := range h.clients {
			if len(client.send) > 0 {
				allDrained = false

				break
			}
		}

		if allDrained {
			break
		}

		select {
		case <-deadline:
			h.log.Warn("WebSocket drain timeout, closing remaining clients")

			goto closeAll
		case <-ticker.C:
		}
	}

closeAll:
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}

	h.companyCount = make(map[int64]int)
	h.count.Store(0)
	metrics.WSConnections.Set(0)
}
