package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
)

// WebSocket message types for the progress protocol
const (
	// Client -> Server messages
	MsgTypePing   = "ping"
	MsgTypeCancel = "cancel"

	// Server -> Client messages
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// WSMessage is the envelope for both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	TaskID    string          `json:"taskId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ProgressSocketHandler pushes conversion progress over WebSocket instead
// of SSE polling, for clients that keep a connection open.
type ProgressSocketHandler struct {
	state    *session.State
	tasks    *TaskManager
	upgrader websocket.Upgrader
}

// NewProgressSocketHandler creates a WebSocket progress handler.
func NewProgressSocketHandler(state *session.State, tasks *TaskManager) *ProgressSocketHandler {
	return &ProgressSocketHandler{
		state:    state,
		tasks:    tasks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// HandleProgressSocket upgrades the connection and streams status updates
// for one task until it reaches a terminal state or the client leaves.
func (wsh *ProgressSocketHandler) HandleProgressSocket(c echo.Context) error {
	taskID := c.Param("taskId")
	task, ok := wsh.tasks.Get(taskID)
	if !ok {
		return NewNotFoundError("task", taskID)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	conn := &progressConn{ws: ws}

	fmt.Printf("[WebSocket] Client connected for task %s\n", taskID[:8])

	// Reader goroutine: pings keep the connection alive, cancel aborts
	// the task, anything else (including close) ends the stream.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					fmt.Printf("[WebSocket] Connection error: %v\n", err)
				}
				return
			}
			switch msg.Type {
			case MsgTypePing:
				conn.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
			case MsgTypeCancel:
				task.Cancel()
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	var lastProgress = -1
	for {
		select {
		case <-ticker.C:
			rec, ok := wsh.tasks.Record(task)
			if !ok {
				continue
			}
			if rec.Status.Terminal() {
				msgType := MsgTypeComplete
				if rec.Status == "error" {
					msgType = MsgTypeError
				}
				conn.send(WSMessage{
					Type:      msgType,
					TaskID:    task.ID,
					Timestamp: time.Now().UnixMilli(),
					Payload:   mustJSON(rec),
				})
				return nil
			}
			if rec.Progress != lastProgress {
				lastProgress = rec.Progress
				conn.send(WSMessage{
					Type:      MsgTypeProgress,
					TaskID:    task.ID,
					Timestamp: time.Now().UnixMilli(),
					Payload:   mustJSON(rec),
				})
			}
		case <-timeout.C:
			conn.send(WSMessage{
				Type:      MsgTypeError,
				TaskID:    task.ID,
				Timestamp: time.Now().UnixMilli(),
				Payload:   mustJSON(map[string]string{"error": "progress stream timed out"}),
			})
			return nil
		case <-clientGone:
			return nil
		}
	}
}

// progressConn serializes writes to one connection. The reader goroutine
// answers pings while the main loop pushes progress frames, and the
// websocket package allows only a single concurrent writer.
type progressConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *progressConn) send(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
