package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/sse"
)

// ErrStreamClosed is reported when the server ends the stream.
var ErrStreamClosed = errors.New("client: stream closed by server")

// HTTPDialer reads the server-sent event stream at URL.
type HTTPDialer struct {
	URL    string
	Client *http.Client
	Header http.Header
}

func (d *HTTPDialer) Dial(h Handler) (Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("client.HTTPDialer.Dial: %w", err)
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := d.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	go readSSE(httpClient, req, h)
	return cancelConn(cancel), nil
}

func readSSE(c *http.Client, req *http.Request, h Handler) {
	resp, err := c.Do(req)
	if err != nil {
		h.OnError(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.OnError(fmt.Errorf("client: unexpected status %d", resp.StatusCode))
		return
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		h.OnError(fmt.Errorf("client: unexpected content type %q", ct))
		return
	}

	h.OnOpen()

	reader := sse.NewReader(resp.Body)
	for {
		frame, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamClosed
			}
			h.OnError(err)
			return
		}

		msg, err := sse.DecodeMessage(frame)
		if err != nil {
			log.Warn().Err(err).Msg("client: malformed frame")
			continue
		}
		h.OnMessage(msg)
	}
}

// WebSocketDialer reads the same messages from the websocket endpoint, one
// JSON message per text frame.
type WebSocketDialer struct {
	URL     string
	Options *websocket.DialOptions
}

func (d *WebSocketDialer) Dial(h Handler) (Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	go d.read(ctx, h)
	return cancelConn(cancel), nil
}

func (d *WebSocketDialer) read(ctx context.Context, h Handler) {
	conn, _, err := websocket.Dial(ctx, d.URL, d.Options)
	if err != nil {
		h.OnError(err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(8 << 20)

	h.OnOpen()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				err = ErrStreamClosed
			}
			h.OnError(err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			log.Warn().Err(err).Msg("client: malformed websocket message")
			continue
		}
		h.OnMessage(msg)
	}
}

type cancelConn context.CancelFunc

func (c cancelConn) Close() error {
	c()
	return nil
}
