// websocket_test.go - Tests for the websocket progress stream
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// Pong replies come from the reader goroutine while progress frames come
// from the ticker loop; both write to the same connection, so a ping
// flood during a slow conversion exercises the write serialization.
func TestProgressSocketPingsDuringStream(t *testing.T) {
	td := newTestDeps(t)
	td.exec.delay = 300 * time.Millisecond
	srv := startTestServer(t, td)

	body, contentType := multipartBody(t, "file", []string{"photo.png"},
		map[string]string{"output_format": "jpg"})
	resp, err := http.Post(srv.URL+"/api/convert/image-convert", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", resp.StatusCode)
	}

	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	taskID := accepted["task_id"]
	if taskID == "" {
		t.Fatal("expected non-empty task_id")
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/progress/" + taskID
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer ws.Close()

	// Second goroutine hammers pings while the server streams progress.
	go func() {
		for i := 0; i < 100; i++ {
			if err := ws.WriteJSON(WSMessage{Type: MsgTypePing, Timestamp: time.Now().UnixMilli()}); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	sawPong := false
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		switch msg.Type {
		case MsgTypePong:
			sawPong = true
		case MsgTypeComplete:
			var rec models.FileRecord
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				t.Fatalf("decoding payload: %v", err)
			}
			if rec.Status != models.FileStatusCompleted {
				t.Errorf("expected completed record, got %s", rec.Status)
			}
			if !sawPong {
				t.Error("expected at least one pong reply")
			}
			return
		case MsgTypeError:
			t.Fatalf("unexpected error frame: %s", msg.Payload)
		}
	}
}

func TestProgressSocketUnknownTask(t *testing.T) {
	td := newTestDeps(t)
	srv := startTestServer(t, td)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/progress/nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake to fail for unknown task")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake reply, got %+v", resp)
	}
}
