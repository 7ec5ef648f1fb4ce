package ws

import (
	"log"
	"net/http"
)

// SubscribeHandler upgrades the connection and parks it in a room until the
// client goes away. Clients pass ?runID=<id> to follow one run; without it
// they land in the all-runs room.
func SubscribeHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[ws][ERR] upgrade failed: %v", err)
			return
		}

		room := r.URL.Query().Get("runID")
		if room == "" {
			room = AllRuns
		}

		hub.Register(room, conn)
		defer hub.Unregister(room, conn)

		// Drain control frames and client messages until disconnect. The
		// feed is one-way; anything the client sends is ignored.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
