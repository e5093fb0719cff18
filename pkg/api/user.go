package api

import (
	"net/http"

	"github.com/labstack/echo"
	"github.com/nsyszr/pushbridge/pkg/api/resource"
	"github.com/nsyszr/pushbridge/pkg/bridge"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

func notifierStatus(err error) int {
	switch err {
	case bridge.ErrNotConnected:
		return http.StatusServiceUnavailable
	case bridge.ErrNoDefaultBridge, storage.ErrNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleSendToUser(c echo.Context) error {
	userID, err := paramID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	r := &resource.SendResource{}
	if err := c.Bind(r); err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	var m *model.Message
	switch r.Type {
	case "", model.KindObject:
		m, err = h.notifier.SendToUser(c.Request().Context(), userID, r.Model, r.Data)
	case model.KindNotification:
		m, err = h.notifier.Notify(c.Request().Context(), userID, r.Data)
	default:
		return c.JSON(http.StatusBadRequest, &errorResponse{Error: "unsupported type " + r.Type})
	}
	if err != nil {
		return jsonError(c, notifierStatus(err), err)
	}

	return c.JSON(http.StatusAccepted, resource.NewMessage(m))
}

func (h *Handler) handleUserReachable(c echo.Context) error {
	userID, err := paramID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	ok, err := h.notifier.IsReachable(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, notifierStatus(err), err)
	}

	return c.JSON(http.StatusOK, &resource.ReachableResource{UserID: userID, Reachable: ok})
}
