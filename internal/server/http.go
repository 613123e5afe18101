package server

// http.go implements the HTTP upgrade entry point.

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/kbrandt/gqltransport/internal/transport"
	"github.com/kbrandt/gqltransport/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:  func(r *http.Request) bool { return true },
	Subprotocols: []string{protocol.Subprotocol},
}

// Handler is an http.Handler that upgrades every request to a
// graphql-transport-ws connection and serves it per Config.
type Handler struct {
	cfg Config
}

// New builds a Handler, applying Config defaults once up front.
func New(cfg Config) *Handler {
	cfg.setDefaults()
	return &Handler{cfg: cfg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// w's HTTP status has already been written by Upgrade.
		return
	}

	if conn.Subprotocol() != protocol.Subprotocol {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(
			protocol.CloseSubprotocolNotAcceptable, "expected subprotocol "+protocol.Subprotocol))
		_ = conn.Close()
		return
	}

	t := transport.NewWS(conn)
	Serve(r.Context(), h.cfg, t)
}
