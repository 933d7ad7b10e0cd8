package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeInventoryWS GET /api/v1/ws/inventory
// Streams ledger, order and stocktake events to dashboards.
func (h *Hub) ServeInventoryWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.AddClient(conn)
	h.logger.WithField("clients", h.GetClientsCount()).Info("inventory dashboard connected")

	defer func() {
		h.RemoveClient(conn)
		h.logger.WithField("clients", h.GetClientsCount()).Info("inventory dashboard disconnected")
	}()

	// Reads only keep the connection alive; clients send nothing useful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("websocket read failed")
			}
			break
		}
	}
}
