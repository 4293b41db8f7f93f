package httpinterface

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// streamTransaction pushes a copy of the transaction at every change over a
// websocket, the last one being the terminal state. The connection is then
// closed normally.
func (h *handler) streamTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.signerSvc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("failed to upgrade transaction stream")
		return
	}
	defer conn.Close()

	updates, cancel := tx.Subscribe()
	defer cancel()

	// the read loop only serves control frames and detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case info, ok := <-updates:
			if !ok {
				//nolint
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteTimeout),
				)
				return
			}
			//nolint
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(info); err != nil {
				log.WithError(err).Debugf("failed to push update of tx %s", tx.ID)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout),
			); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
