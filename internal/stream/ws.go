package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// WSHandler upgrades to a websocket and streams every hub event as a JSON
// text message until the client goes away or the hub stops.
func WSHandler(hub *Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("ws_upgrade_failed")
			return
		}
		events := hub.Subscribe()
		logger.Debug().Str("remote", r.RemoteAddr).Msg("ws_client_connected")

		// reads only detect the close; clients have nothing to say
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		defer func() {
			hub.Unsubscribe(events)
			if err := conn.Close(); err != nil {
				logger.Debug().Err(err).Msg("ws_close")
			}
			logger.Debug().Str("remote", r.RemoteAddr).Msg("ws_client_disconnected")
		}()

		for {
			select {
			case <-gone:
				return
			case ev, ok := <-events:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
						time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug().Err(err).Msg("ws_write_failed")
					return
				}
			}
		}
	}
}
