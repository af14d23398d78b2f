package modelstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket keepalive timings, named the way haasonsaas-nexus's server-side
// control plane names its own (wsPongWait/wsTickInterval in
// internal/gateway/ws_control_plane.go), adapted from the upgrade side to
// the dial side since modelstream is the consumer of a remote realtime
// model endpoint rather than the server accepting connections.
const (
	wsPongWait  = 45 * time.Second
	wsPingEvery = wsPongWait * 9 / 10
)

// ErrBinaryFrame is returned when the model stream sends a binary frame;
// per spec §4.D the websocket transport only carries JSON text frames, so a
// binary frame fails the stream rather than being silently dropped.
var ErrBinaryFrame = errors.New("modelstream: unexpected binary frame on model stream")

// WSReader adapts a websocket connection to the eventSource interface, so
// Parser can consume a realtime-API-style model stream exactly as it
// consumes an SSE body.
//
// Maps to: spec §4.D websocket transport variant ("ping frames are answered
// with pong; binary frames fail the stream").
type WSReader struct {
	conn *websocket.Conn
	done chan struct{}
}

// DialWS opens a websocket connection to url and starts answering ping
// frames with pong, resetting the read deadline on every pong per the
// standard gorilla/websocket keepalive idiom.
func DialWS(ctx context.Context, url string, header map[string][]string) (*WSReader, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	r := &WSReader{conn: conn, done: make(chan struct{})}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go r.pingLoop()

	return r, nil
}

func (r *WSReader) pingLoop() {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-r.done:
			return
		}
	}
}

// Next reads the next text frame and returns it as an SSEEvent whose Data is
// the frame's raw JSON payload — the same shape Parser.handleEvent already
// decodes a rawServerEvent from, so a websocket-backed Parser needs no
// special-casing versus an SSE-backed one. A binary frame fails the stream
// with ErrBinaryFrame; a close frame is surfaced as ErrStreamClosed so
// Parser flushes pending tag state exactly as it does on SSE EOF.
func (r *WSReader) Next() (SSEEvent, error) {
	messageType, data, err := r.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return SSEEvent{}, ErrStreamClosed
		}
		return SSEEvent{}, err
	}

	if messageType == websocket.BinaryMessage {
		return SSEEvent{}, ErrBinaryFrame
	}

	return SSEEvent{Data: json.RawMessage(data)}, nil
}

// Close stops the keepalive ping loop and closes the underlying connection.
func (r *WSReader) Close() error {
	close(r.done)
	return r.conn.Close()
}
