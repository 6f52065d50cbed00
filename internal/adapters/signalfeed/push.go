package signalfeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// pushLoop connects to the push channel and reconnects with exponential
// backoff (2s -> 60s, factor 1.8) on any error (spec.md §4.2).
func (f *Feed) pushLoop(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := f.connectAndRead(ctx)
		f.scores.SetPushOK(false)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			f.log.Warn("ws_failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: pollTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.CentrifugoWSURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	connect := connectFrame{ID: 1}
	connect.Connect.Token = f.cfg.CentrifugoToken
	connect.Connect.Name = clientName
	if err := conn.WriteJSON(connect); err != nil {
		return err
	}

	f.scores.SetPushOK(true)
	f.log.Info("ws_connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var frame serverFrame
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		f.handleFrame(conn, frame)
	}
}

func (f *Feed) handleFrame(conn *websocket.Conn, frame serverFrame) {
	if frame.Ping != nil {
		if frame.ID != nil {
			pong := pongFrame{ID: *frame.ID}
			_ = conn.WriteJSON(pong)
		}
		return
	}

	if frame.Push == nil {
		return
	}
	pub := frame.Push.Pub
	if pub == nil {
		pub = frame.Push.Publication
	}
	if pub == nil {
		return
	}

	ts := pub.Data.T
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	f.scores.Upsert(pub.Data.D.toMap(), pub.Data.E, ts)
}
