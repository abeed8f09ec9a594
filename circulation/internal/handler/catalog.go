package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

func (h *Handler) CreateTitle(c echo.Context) error {
	var req model.CreateTitleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	title, err := h.catalog.CreateTitle(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, title)
}

func (h *Handler) GetTitle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	title, err := h.catalog.GetTitle(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, title)
}

func (h *Handler) ResizeTitle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.ResizeTitleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	title, err := h.catalog.ResizeTitle(c.Request().Context(), id, req.TotalCopies)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, title)
}

func (h *Handler) DeleteTitle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteTitle(c.Request().Context(), id); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateMember(c echo.Context) error {
	var req model.CreateMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.catalog.CreateMember(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, member)
}

func (h *Handler) GetMember(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	member, err := h.catalog.GetMember(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, member)
}

func (h *Handler) SetMemberStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.MemberStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.catalog.SetMemberStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, member)
}

func (h *Handler) DeleteMember(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteMember(c.Request().Context(), id); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
