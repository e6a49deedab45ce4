package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kalambet/faultchat/internal/conversation"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
	streamBuffer    = 64
)

func newStreamUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}
}

// originChecker admits browser upgrades from the configured origins. With
// none configured only same-origin pages may connect. Requests without an
// Origin header come from non-browser clients and are admitted.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// streamMessage is one frame on /v1/transcript/stream. The first frame is a
// snapshot; later frames mirror transcript events. Entries in the snapshot
// may repeat in the first append frames; clients dedupe by seq.
type streamMessage struct {
	Type    string                `json:"type"`
	Entries []conversation.Entry  `json:"entries,omitempty"`
	Entry   *conversation.Entry   `json:"entry,omitempty"`
	Context *conversation.Context `json:"context,omitempty"`
}

func handleStream(d Deps) http.HandlerFunc {
	upgrader := newStreamUpgrader(d.AllowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			d.Logger.Debug("transcript stream upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events, unsubscribe := d.Conv.Transcript().Subscribe(streamBuffer)
		defer unsubscribe()

		if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})

		// The reader only services control frames and notices the close.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		cc := d.Conv.Context()
		if !writeFrame(conn, streamMessage{Type: "snapshot", Entries: d.Conv.Transcript().Entries(), Context: &cc}) {
			return
		}

		ticker := time.NewTicker(streamPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg := streamMessage{Type: string(ev.Type), Entry: ev.Entry}
				if ev.Type == conversation.EventReset {
					cc := d.Conv.Context()
					msg.Context = &cc
				}
				if !writeFrame(conn, msg) {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg streamMessage) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return false
	}
	return conn.WriteJSON(msg) == nil
}
