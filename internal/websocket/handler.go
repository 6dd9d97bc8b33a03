package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Serve upgrades the request and runs it as a client of houseID until the
// connection ends. Membership must be checked by the caller.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, houseID, userID int64, originPatterns []string) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		hub.logger.Warn("websocket accept", "error", err, "house_id", houseID)
		return
	}

	hub.logger.Debug("websocket connected", slog.Int64("house_id", houseID), slog.Int64("user_id", userID))
	NewClient(hub, conn, houseID, userID).Run(r.Context())
}
