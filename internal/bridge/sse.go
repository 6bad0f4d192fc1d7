// ABOUTME: Server-sent event framing and the per-connection stream loop.
// ABOUTME: Emits endpoint, message, ping and error events.

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

func formatSSEEvent(eventType, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

// writeSSEEvent writes one event and flushes it to the client.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data []byte) error {
	if _, err := fmt.Fprint(w, formatSSEEvent(event, string(data))); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

type ping struct {
	Type              string  `json:"type"`
	Timestamp         float64 `json:"timestamp"`
	Counter           int     `json:"counter"`
	ActiveConnections int     `json:"active_connections"`
}

// stream writes queued responses and keepalive pings until the client goes
// away or an iteration fails. A failed iteration sends one error event.
func (b *Bridge) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, conn *connection) {
	counter := 0
	for {
		done, err := b.streamOnce(ctx, w, flusher, conn, &counter)
		if done {
			return
		}
		if err != nil {
			b.logger.Error("stream error", "connection_id", conn.id, "error", err)
			_ = writeSSEEvent(w, flusher, "error", errorResponse([]byte("null"), codeInternalError, "Stream error", err.Error()))
			return
		}
	}
}

// streamOnce handles a single wait. done is set when the stream should end
// without an error event.
func (b *Bridge) streamOnce(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, conn *connection, counter *int) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	msg, err := conn.queue.pop(ctx, b.cfg.Keepalive)
	switch {
	case errors.Is(err, errKeepalive):
		*counter++
		data, err := json.Marshal(ping{
			Type:              "ping",
			Timestamp:         float64(b.now().UnixNano()) / 1e9,
			Counter:           *counter,
			ActiveConnections: b.Stats().ActiveConnections,
		})
		if err != nil {
			return false, err
		}
		return writeSSEEvent(w, flusher, "ping", data) != nil, nil
	case err != nil:
		return true, nil
	}

	// Event data must stay on one line.
	var compact bytes.Buffer
	if err := json.Compact(&compact, msg); err != nil {
		return false, fmt.Errorf("queued message is not valid JSON: %w", err)
	}
	return writeSSEEvent(w, flusher, "message", compact.Bytes()) != nil, nil
}
