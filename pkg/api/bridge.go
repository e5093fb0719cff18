package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo"
	"github.com/nsyszr/pushbridge/pkg/api/resource"
	"github.com/nsyszr/pushbridge/pkg/bridge"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

func paramID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}

// findBridge writes the error response itself when the bridge cannot be loaded.
func (h *Handler) findBridge(c echo.Context) (*model.Bridge, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, jsonError(c, http.StatusBadRequest, err)
	}

	m, err := h.store.Bridges().FindByID(id)
	if err != nil && err == storage.ErrNotFound {
		return nil, jsonError(c, http.StatusNotFound, err)
	} else if err != nil {
		return nil, jsonError(c, http.StatusInternalServerError, err)
	}

	return m, nil
}

func (h *Handler) handleFetchBridges(c echo.Context) error {
	m, err := h.store.Bridges().FetchAll()
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewBridgeList(m))
}

func (h *Handler) handleGetBridgeByID(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	return c.JSON(http.StatusOK, resource.NewBridge(m))
}

func (h *Handler) handleCreateBridge(c echo.Context) error {
	r := &resource.BridgeResource{}
	if err := c.Bind(r); err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	m, err := resource.ValidateBridge(r)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}

	err = h.store.Bridges().Create(m)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusCreated, resource.NewBridge(m))
}

func (h *Handler) handleUpdateBridge(c echo.Context) error {
	existing, err := h.findBridge(c)
	if existing == nil {
		return err
	}

	r := &resource.BridgeResource{}
	if err := c.Bind(r); err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}
	if r.Secret == "" {
		r.Secret = existing.Secret
	}

	m, err := resource.ValidateBridge(r)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err)
	}
	m.ID = existing.ID
	m.Connected = existing.Connected
	m.CreatedAt = existing.CreatedAt
	if m.SessionTimeout == 0 {
		m.SessionTimeout = existing.SessionTimeout
	}

	if err := h.store.Bridges().Update(m); err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewBridge(m))
}

func (h *Handler) handleDeleteBridge(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	if h.supervisor.Status(m.ID).Running {
		return jsonError(c, http.StatusConflict, bridge.ErrAlreadyRunning)
	}

	err = h.store.Bridges().Delete(m.ID)
	if err == storage.ErrReferenced {
		return jsonError(c, http.StatusConflict, err)
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleStartBridge(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	if err := h.supervisor.Start(m); err == bridge.ErrAlreadyRunning {
		return jsonError(c, http.StatusConflict, err)
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusAccepted, resource.NewStatus(h.supervisor.Status(m.ID), m.Connected))
}

func (h *Handler) handleStopBridge(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	if err := h.supervisor.Stop(m.ID); err == bridge.ErrNotRunning {
		return jsonError(c, http.StatusConflict, err)
	} else if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusAccepted, resource.NewStatus(h.supervisor.Status(m.ID), m.Connected))
}

func (h *Handler) handleGetBridgeStatus(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	return c.JSON(http.StatusOK, resource.NewStatus(h.supervisor.Status(m.ID), m.Connected))
}

func (h *Handler) handleFetchSessions(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	sessions, err := h.store.Sessions().FetchByBridge(m.ID)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewSessionList(sessions, h.now(), m.Timeout()))
}

func (h *Handler) handleFetchMessages(c echo.Context) error {
	m, err := h.findBridge(c)
	if m == nil {
		return err
	}

	var messages []model.Message
	if c.QueryParam("pending") == "true" {
		messages, err = h.store.Messages().FetchPending(m.ID)
	} else {
		messages, err = h.store.Messages().FetchByBridge(m.ID)
	}
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, resource.NewMessageList(messages))
}
