package http

import (
	"log"
	"net/http"

	"house-points-service/internal/domain"
)

type outboundMessage struct {
	Type    string           `json:"type"`
	Payload domain.Standings `json:"payload"`
}

// serveStandingsWS streams house standings over a websocket: one initial
// snapshot, then a frame on every points change. Writes happen only from
// this goroutine; the read loop exists to detect the peer closing.
func (h *Handler) serveStandingsWS(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.StandingsSnapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(outboundMessage{Type: "standings", Payload: domain.Standings{Houses: snapshot}}); err != nil {
		return
	}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "standings", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
