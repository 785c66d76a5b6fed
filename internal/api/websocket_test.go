package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-bridge/internal/auth"
	"github.com/nerrad567/gray-logic-bridge/internal/control"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/logging"
)

func mintToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	token, err := auth.GenerateToken(subject, testSecret, ttl)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func signedToken(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	}}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return token
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	err := conn.WriteJSON(map[string]any{
		"type":    WSTypeSubscribe,
		"id":      "sub-1",
		"payload": map[string]any{"channels": channels},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}
}

func TestWebSocket_StateChangedEvent(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	subscribe(t, conn, control.ChannelStateChanged)

	resp, err := http.Post(ts.URL+"/api/v1/blind/set", "application/json",
		strings.NewReader(`{"name":"tapparella sud","value":55}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != control.ChannelStateChanged {
		t.Fatalf("message = %+v", msg)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T", msg.Payload)
	}
	if payload["room"] != "cucina" || payload["label"] != "tapparella cucina sud" ||
		payload["value"] != float64(55) || payload["source"] != "api" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_PingAndUnknown(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")

	if err := conn.WriteJSON(map[string]any{"type": WSTypePing, "id": "p1"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "shout", "id": "x"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", msg)
	}
}

func TestWebSocket_NotSubscribed(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	subscribe(t, conn, control.ChannelSceneRun)

	resp, err := http.Post(ts.URL+"/api/v1/device/power", "application/json",
		strings.NewReader(`{"name":"luce tavolo","on":true}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/api/v1/scene/run", "application/json",
		strings.NewReader(`{"name":"buonanotte"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	// The state change is filtered out, so the scene event arrives first.
	if msg := readWS(t, conn); msg.EventType != control.ChannelSceneRun {
		t.Errorf("first event = %+v, want %s", msg, control.ChannelSceneRun)
	}
}

func TestWebSocket_Auth(t *testing.T) {
	env := testServer(t, withAuth)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}

	conn := dialWS(t, ts, "?token="+mintToken(t, "panel", time.Hour))
	subscribe(t, conn, control.ChannelStateChanged)

	if env.srv.hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", env.srv.hub.ClientCount())
	}
}

func TestHubBroadcast_Envelope(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	subscribe(t, conn, "custom")

	env.srv.hub.Broadcast("custom", map[string]any{"n": 1})

	raw := readWS(t, conn)
	data, err := json.Marshal(raw.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if raw.EventType != "custom" || string(data) != `{"n":1}` || raw.Timestamp == "" {
		t.Errorf("message = %+v", raw)
	}
}

func TestWebSocket_SubscribeWithoutChannels(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")

	tests := []struct {
		name    string
		payload any
	}{
		{"missing", nil},
		{"empty", map[string]any{"channels": []string{}}},
		{"not a list", map[string]any{"channels": "state_changed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := conn.WriteJSON(map[string]any{"type": WSTypeSubscribe, "id": tt.name, "payload": tt.payload})
			if err != nil {
				t.Fatal(err)
			}
			if msg := readWS(t, conn); msg.Type != WSTypeError || msg.ID != tt.name {
				t.Errorf("reply = %+v, want error", msg)
			}
		})
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v", msg)
	}
}

func TestWebSocket_KeepalivePing(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.WS.PingInterval = 1 })
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(5 * time.Second):
		t.Fatal("no keepalive ping within 5s")
	}
}

func TestHubRun_ClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test"))
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	env := testServer(t, func(d *Deps) { d.ExternalHub = hub })
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	subscribe(t, conn, control.ChannelStateChanged)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	cancel()
	<-done

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after hub stopped")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}
