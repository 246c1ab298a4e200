package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
	"go.uber.org/zap"
)

// WebSocket message types
const (
	EventPrint          = "print"
	EventPrintStarted   = string(command.EventPrintStarted)
	EventPrintFinished  = string(command.EventPrintFinished)
	EventProfileChanged = "profile_changed"
	EventResponse       = "response"
	EventError          = "error"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// wsPrintRequest is the data of a "print" message. Without a receipt the sample is printed.
type wsPrintRequest struct {
	PrinterID *uint                  `json:"printer_id"`
	Receipt   *receiptformat.Payload `json:"receipt"`
	Test      bool                   `json:"test"`
}

// Hub tracks connected clients for broadcasts
type Hub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	log     *zap.Logger
}

// NewHub creates an empty hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*WSClient]struct{}),
		log:     log,
	}
}

func (h *Hub) add(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("websocket client connected", zap.Int("clients", n))
}

// remove drops the client and closes its send channel, which stops its writer
func (h *Hub) remove(client *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.Info("websocket client disconnected", zap.Int("clients", n))
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client. Clients with a full buffer miss it.
func (h *Hub) Broadcast(event string, data map[string]interface{}) {
	message := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.log.Warn("websocket client buffer full, dropping event", zap.String("event", event))
		}
	}
}

// CloseAll disconnects every client
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		_ = client.conn.Close()
	}
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, sendBuffer),
		server: s,
	}
	s.hub.add(client)

	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.server.log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.hub.remove(c)
		c.conn.Close()
	}()

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

// handlePrintEvent runs a print on the reader goroutine and answers with the result
func (c *WSClient) handlePrintEvent(data map[string]interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.sendError(fmt.Sprintf("invalid print request: %v", err))
		return
	}

	var req wsPrintRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(fmt.Sprintf("invalid print request: %v", err))
		return
	}

	ctx := c.server.baseCtx
	orchestrator := c.server.orchestrator

	var res command.PrintResult
	if req.Receipt == nil || req.Test {
		res = orchestrator.TestPrint(ctx, req.PrinterID)
	} else {
		res = orchestrator.PrintReceipt(ctx, req.Receipt, req.PrinterID)
	}

	c.sendResponse(resultData(res))
}

func resultData(res command.PrintResult) map[string]interface{} {
	data := map[string]interface{}{
		"success": res.Success,
	}
	if res.Message != "" {
		data["message"] = res.Message
	}
	if res.Code != "" {
		data["code"] = res.Code
	}
	if res.JobID != "" {
		data["job_id"] = res.JobID
	}
	if res.PrinterID != 0 {
		data["printer_id"] = res.PrinterID
	}
	return data
}

// queue hands msg to the writer. The reader is the only goroutine that closes send,
// so this is safe from the reader.
func (c *WSClient) queue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		c.server.log.Warn("websocket client buffer full, dropping reply", zap.String("event", msg.Event))
	}
}

func (c *WSClient) sendResponse(data map[string]interface{}) {
	c.queue(WSMessage{
		Event: EventResponse,
		Data:  data,
	})
}

func (c *WSClient) sendError(message string) {
	c.queue(WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	})
}
