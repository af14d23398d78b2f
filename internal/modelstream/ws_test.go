package modelstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSReader_ForwardsTextFramesThroughParser(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.output_text.delta","delta":"hi"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.completed"}`))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	reader, err := DialWS(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer reader.Close()

	p := NewParser(reader, 0, nil)
	events := drain(t, p.Events(context.Background()))

	require.Len(t, events, 2)
	require.Equal(t, EventTextDelta, events[0].Kind)
	require.Equal(t, "hi", events[0].Text)
	require.Equal(t, EventCompleted, events[1].Kind)
}

func TestWSReader_BinaryFrameFailsStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	reader, err := DialWS(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Next()
	require.ErrorIs(t, err, ErrBinaryFrame)
}

func TestWSReader_PingIsAnsweredWithPong(t *testing.T) {
	pongReceived := make(chan struct{}, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetPongHandler(func(string) error {
			select {
			case pongReceived <- struct{}{}:
			default:
			}
			return nil
		})

		require.NoError(t, conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)))

		// Keep reading so gorilla/websocket's control-frame handling runs.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	reader, err := DialWS(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer reader.Close()

	go func() { _, _ = reader.Next() }()

	select {
	case <-pongReceived:
	case <-time.After(time.Second):
		t.Fatal("server did not receive pong in time")
	}
}
