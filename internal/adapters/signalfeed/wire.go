package signalfeed

import (
	"encoding/json"
	"fmt"
)

// scorePair decodes a wire-format [symbol, score] tuple (spec.md §6:
// "m: [[symbol: str, score: int], ...]").
type scorePair struct {
	Symbol string
	Score  int
}

func (p *scorePair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("signalfeed: score pair: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("signalfeed: score pair: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Symbol); err != nil {
		return fmt.Errorf("signalfeed: score pair symbol: %w", err)
	}
	var score float64
	if err := json.Unmarshal(raw[1], &score); err != nil {
		return fmt.Errorf("signalfeed: score pair score: %w", err)
	}
	p.Score = int(score)
	return nil
}

func (p scorePairs) toMap() map[string]int {
	out := make(map[string]int, len(p))
	for _, pair := range p {
		out[pair.Symbol] = pair.Score
	}
	return out
}

type scorePairs []scorePair

// snapshotResponse is the polled baseline payload (spec.md §6):
// {e, t, m: [[sym, score], ...]}. Unknown fields are ignored.
type snapshotResponse struct {
	E int64      `json:"e"`
	T int64      `json:"t"`
	M scorePairs `json:"m"`
}

// connectFrame is the push-channel handshake (spec.md §6):
// {id:1, connect:{token, name}}.
type connectFrame struct {
	ID      int `json:"id"`
	Connect struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	} `json:"connect"`
}

// pongFrame replies to a server ping, echoing its id.
type pongFrame struct {
	ID   int         `json:"id"`
	Pong struct{}    `json:"pong"`
}

// serverFrame is any frame the push channel may send: a ping, or a
// publication wrapped as push.pub or push.publication. Any other shape is
// ignored (spec.md §6).
type serverFrame struct {
	ID   *int             `json:"id"`
	Ping *struct{}        `json:"ping"`
	Push *pushEnvelope    `json:"push"`
}

type pushEnvelope struct {
	Pub         *publication `json:"pub"`
	Publication *publication `json:"publication"`
}

type publication struct {
	Data publicationData `json:"data"`
}

// publicationData is the delta payload (spec.md §6):
// {e, t, d: [[sym, score], ...]}.
type publicationData struct {
	E int64      `json:"e"`
	T int64      `json:"t"`
	D scorePairs `json:"d"`
}
