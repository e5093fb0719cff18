package api

import (
	"encoding/json"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/echo"
	"github.com/nsyszr/pushbridge/pkg/api/resource"
	log "github.com/sirupsen/logrus"
)

// statusEventsHandler streams the status of all bridges over a websocket
// every interval until the client goes away.
func (h *Handler) statusEventsHandler(interval time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			log.Error("api: failed to upgrade to websocket: ", err)
			return nil
		}
		defer conn.Close()

		// Drain client frames so close and ping frames are handled
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			out, err := h.statusSnapshot()
			if err != nil {
				log.Error("api: failed to collect bridge status: ", err)
				return nil
			}
			if err := wsutil.WriteServerMessage(conn, ws.OpText, out); err != nil {
				log.Debug("api: status stream closed: ", err)
				return nil
			}

			select {
			case <-ticker.C:
			case <-gone:
				return nil
			}
		}
	}
}

func (h *Handler) statusSnapshot() ([]byte, error) {
	bridges, err := h.store.Bridges().FetchAll()
	if err != nil {
		return nil, err
	}

	list := resource.NewBridgeList(bridges)
	out := &resource.StatusListResource{Members: make([]*resource.StatusResource, 0, len(list.Members))}
	for _, b := range list.Members {
		out.Members = append(out.Members, resource.NewStatus(h.supervisor.Status(b.ID), b.Connected))
	}

	return json.Marshal(out)
}
